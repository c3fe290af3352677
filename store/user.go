package store

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/parleychat/parley"
)

// CreateUser inserts a new user. Usernames are unique case-insensitively;
// a taken name is a Conflict.
func (d *database) CreateUser(username string, passwordHash []byte) (*parley.User, error) {
	var existing string
	err := sq.Select("username").From("users").
		Where("username = ? COLLATE NOCASE", username).
		RunWith(d).QueryRow().Scan(&existing)
	if err == nil {
		return nil, parley.NewConflictError("username already taken")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(err, "checking username")
	}

	_, err = sq.Insert("users").
		Columns("id", "username", "password").
		Values(uuid.New().String(), username, passwordHash).
		RunWith(d).Exec()
	if err != nil {
		return nil, errors.Wrap(err, "inserting user")
	}

	return &parley.User{Username: username}, nil
}

// UserForAuth returns the stored password hash for a username, or NotFound.
func (d *database) UserForAuth(username string) ([]byte, error) {
	var hash []byte
	err := sq.Select("password").From("users").
		Where("username = ? COLLATE NOCASE", username).
		RunWith(d).QueryRow().Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, parley.NewNotFoundError("no such user")
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying user")
	}
	return hash, nil
}
