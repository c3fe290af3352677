package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleychat/parley"
	"github.com/parleychat/parley/store"
)

func setup(t *testing.T) store.Database {
	t.Helper()
	db, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.EnsureDefaultChannel("general"))
	return db
}

func TestCreateUser(t *testing.T) {
	db := setup(t)

	u, err := db.CreateUser("alice", []byte("hash"))
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	hash, err := db.UserForAuth("alice")
	require.NoError(t, err)
	assert.Equal(t, []byte("hash"), hash)
}

func TestCreateUserDuplicate(t *testing.T) {
	db := setup(t)

	_, err := db.CreateUser("alice", []byte("hash"))
	require.NoError(t, err)

	_, err = db.CreateUser("ALICE", []byte("other"))
	require.Error(t, err)
	assert.True(t, parley.IsConflict(err), "usernames are unique case-insensitively")
}

func TestUserForAuthMissing(t *testing.T) {
	db := setup(t)
	_, err := db.UserForAuth("nobody")
	require.Error(t, err)
	assert.True(t, parley.IsNotFound(err))
}

func TestEnsureDefaultChannelIdempotent(t *testing.T) {
	db := setup(t)
	require.NoError(t, db.EnsureDefaultChannel("general"))

	channels, err := db.GetChannels()
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, "general", channels[0].Name)
	assert.False(t, channels[0].Removable)
}

func TestCreateChannel(t *testing.T) {
	db := setup(t)

	ch, err := db.CreateChannel("random")
	require.NoError(t, err)
	assert.NotEmpty(t, ch.ID)
	assert.True(t, ch.Removable)

	got, err := db.GetChannel(ch.ID)
	require.NoError(t, err)
	assert.Equal(t, ch, got)
}

func TestCreateChannelDuplicateName(t *testing.T) {
	db := setup(t)

	_, err := db.CreateChannel("random")
	require.NoError(t, err)

	_, err = db.CreateChannel("RANDOM")
	require.Error(t, err)
	assert.True(t, parley.IsConflict(err))
}

func TestRenameChannel(t *testing.T) {
	db := setup(t)
	ch, err := db.CreateChannel("random")
	require.NoError(t, err)

	require.NoError(t, db.RenameChannel(ch.ID, "casual"))

	got, err := db.GetChannel(ch.ID)
	require.NoError(t, err)
	assert.Equal(t, "casual", got.Name)

	// renaming to its own name is fine
	require.NoError(t, db.RenameChannel(ch.ID, "casual"))
}

func TestRenameChannelConflicts(t *testing.T) {
	db := setup(t)
	ch, err := db.CreateChannel("random")
	require.NoError(t, err)

	err = db.RenameChannel(ch.ID, "general")
	require.Error(t, err)
	assert.True(t, parley.IsConflict(err))

	err = db.RenameChannel("bogus", "whatever")
	require.Error(t, err)
	assert.True(t, parley.IsNotFound(err))
}

func TestDeleteChannelCascades(t *testing.T) {
	db := setup(t)
	ch, err := db.CreateChannel("random")
	require.NoError(t, err)

	_, err = db.CreateMessage("alice", parley.OutgoingMessage{Body: "hi", ChannelID: ch.ID})
	require.NoError(t, err)

	deleted, err := db.DeleteChannel(ch.ID)
	require.NoError(t, err)
	assert.Equal(t, ch.ID, deleted.ID)

	msgs, err := db.GetMessages()
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = db.GetChannel(ch.ID)
	assert.True(t, parley.IsNotFound(err))
}

func TestDeleteChannelRefusals(t *testing.T) {
	db := setup(t)

	channels, err := db.GetChannels()
	require.NoError(t, err)
	general := channels[0]

	_, err = db.DeleteChannel(general.ID)
	require.Error(t, err)
	assert.True(t, parley.IsValidation(err), "the default channel is not removable")

	_, err = db.DeleteChannel("bogus")
	require.Error(t, err)
	assert.True(t, parley.IsNotFound(err))
}

func TestMessagesKeepArrivalOrder(t *testing.T) {
	db := setup(t)
	ch, err := db.CreateChannel("random")
	require.NoError(t, err)

	for _, body := range []string{"one", "two", "three"} {
		_, err := db.CreateMessage("alice", parley.OutgoingMessage{Body: body, ChannelID: ch.ID})
		require.NoError(t, err)
	}

	msgs, err := db.GetMessages()
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Body)
	assert.Equal(t, "three", msgs[2].Body)
}

func TestCreateMessageUnknownChannel(t *testing.T) {
	db := setup(t)
	_, err := db.CreateMessage("alice", parley.OutgoingMessage{Body: "hi", ChannelID: "bogus"})
	require.Error(t, err)
	assert.True(t, parley.IsNotFound(err))
}
