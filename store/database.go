// Package store persists the development server's users, channels, and
// messages in an embedded SQLite database, so the client and its tests
// run without external infrastructure.
package store

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/parleychat/parley"

	_ "modernc.org/sqlite" // sqlite driver
)

// Database provides everything the dev server needs from storage. Errors
// use the shared taxonomy so handlers can map them straight to statuses.
type Database interface {
	CreateUser(username string, passwordHash []byte) (*parley.User, error)
	UserForAuth(username string) (passwordHash []byte, err error)

	CreateChannel(name string) (*parley.Channel, error)
	GetChannels() ([]*parley.Channel, error)
	GetChannel(id string) (*parley.Channel, error)
	RenameChannel(id, name string) error
	DeleteChannel(id string) (*parley.Channel, error)
	EnsureDefaultChannel(name string) error

	CreateMessage(username string, msg parley.OutgoingMessage) (*parley.Message, error)
	GetMessages() ([]*parley.Message, error)

	Close() error
}

type database struct {
	*sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id       TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE COLLATE NOCASE,
	password BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS channels (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL UNIQUE COLLATE NOCASE,
	removable INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	channel_id TEXT NOT NULL,
	username   TEXT NOT NULL,
	body       TEXT NOT NULL
);
`

// New opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database in tests.
func New(path string) (Database, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "pinging database")
	}

	// the sqlite driver opens one connection per query by default;
	// in-memory databases vanish with their connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "applying schema")
	}

	return &database{db}, nil
}

func (d *database) Close() error {
	return d.DB.Close()
}
