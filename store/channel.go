package store

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/parleychat/parley"
)

func (d *database) nameTaken(name, excludeID string) (bool, error) {
	q := sq.Select("id").From("channels").Where("name = ? COLLATE NOCASE", name)
	if excludeID != "" {
		q = q.Where(sq.NotEq{"id": excludeID})
	}

	var id string
	err := q.RunWith(d).QueryRow().Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "checking channel name")
	}
	return true, nil
}

// CreateChannel inserts a removable channel. Duplicate names, compared
// case-insensitively, are a Conflict.
func (d *database) CreateChannel(name string) (*parley.Channel, error) {
	taken, err := d.nameTaken(name, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, parley.NewConflictError("a channel with that name already exists")
	}

	ch := &parley.Channel{ID: uuid.New().String(), Name: name, Removable: true}
	_, err = sq.Insert("channels").
		Columns("id", "name", "removable").
		Values(ch.ID, ch.Name, ch.Removable).
		RunWith(d).Exec()
	if err != nil {
		return nil, errors.Wrap(err, "inserting channel")
	}
	return ch, nil
}

// EnsureDefaultChannel seeds the non-removable channel every workspace
// starts with. Idempotent.
func (d *database) EnsureDefaultChannel(name string) error {
	taken, err := d.nameTaken(name, "")
	if err != nil {
		return err
	}
	if taken {
		return nil
	}

	_, err = sq.Insert("channels").
		Columns("id", "name", "removable").
		Values(uuid.New().String(), name, false).
		RunWith(d).Exec()
	return errors.Wrap(err, "seeding default channel")
}

func (d *database) GetChannels() ([]*parley.Channel, error) {
	rows, err := sq.Select("id", "name", "removable").From("channels").
		OrderBy("rowid").
		RunWith(d).Query()
	if err != nil {
		return nil, errors.Wrap(err, "querying channels")
	}
	defer rows.Close()

	channels := []*parley.Channel{}
	for rows.Next() {
		var ch parley.Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Removable); err != nil {
			return nil, errors.Wrap(err, "scanning channel")
		}
		channels = append(channels, &ch)
	}
	return channels, rows.Err()
}

func (d *database) GetChannel(id string) (*parley.Channel, error) {
	var ch parley.Channel
	err := sq.Select("id", "name", "removable").From("channels").
		Where(sq.Eq{"id": id}).
		RunWith(d).QueryRow().Scan(&ch.ID, &ch.Name, &ch.Removable)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, parley.NewNotFoundError("no such channel")
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying channel")
	}
	return &ch, nil
}

// RenameChannel renames in place. Unknown ids are NotFound; a name held
// by another channel is a Conflict.
func (d *database) RenameChannel(id, name string) error {
	if _, err := d.GetChannel(id); err != nil {
		return err
	}

	taken, err := d.nameTaken(name, id)
	if err != nil {
		return err
	}
	if taken {
		return parley.NewConflictError("a channel with that name already exists")
	}

	_, err = sq.Update("channels").Set("name", name).
		Where(sq.Eq{"id": id}).
		RunWith(d).Exec()
	return errors.Wrap(err, "renaming channel")
}

// DeleteChannel removes a channel and all of its messages. Non-removable
// channels are refused.
func (d *database) DeleteChannel(id string) (*parley.Channel, error) {
	ch, err := d.GetChannel(id)
	if err != nil {
		return nil, err
	}
	if !ch.Removable {
		return nil, parley.NewValidationError("channel cannot be deleted")
	}

	if _, err := sq.Delete("messages").Where(sq.Eq{"channel_id": id}).RunWith(d).Exec(); err != nil {
		return nil, errors.Wrap(err, "deleting channel messages")
	}
	if _, err := sq.Delete("channels").Where(sq.Eq{"id": id}).RunWith(d).Exec(); err != nil {
		return nil, errors.Wrap(err, "deleting channel")
	}
	return ch, nil
}
