package store

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/parleychat/parley"
)

// CreateMessage stores a message from username. The channel must exist.
func (d *database) CreateMessage(username string, msg parley.OutgoingMessage) (*parley.Message, error) {
	if _, err := d.GetChannel(msg.ChannelID); err != nil {
		return nil, err
	}

	m := &parley.Message{
		ID:        uuid.New().String(),
		ChannelID: msg.ChannelID,
		Username:  username,
		Body:      msg.Body,
	}

	_, err := sq.Insert("messages").
		Columns("id", "channel_id", "username", "body").
		Values(m.ID, m.ChannelID, m.Username, m.Body).
		RunWith(d).Exec()
	if err != nil {
		return nil, errors.Wrap(err, "inserting message")
	}
	return m, nil
}

// GetMessages returns every message in arrival order.
func (d *database) GetMessages() ([]*parley.Message, error) {
	rows, err := sq.Select("id", "channel_id", "username", "body").From("messages").
		OrderBy("rowid").
		RunWith(d).Query()
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	defer rows.Close()

	messages := []*parley.Message{}
	for rows.Next() {
		var m parley.Message
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.Username, &m.Body); err != nil {
			return nil, errors.Wrap(err, "scanning message")
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
