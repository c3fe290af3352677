package transport_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleychat/parley"
	"github.com/parleychat/parley/session"
	"github.com/parleychat/parley/state"
	"github.com/parleychat/parley/transport"
)

// pushServer upgrades one connection and writes the given frames, then
// keeps the socket open until the test ends.
func pushServer(t *testing.T, frames []parley.WireEvent, gotAuth *string) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotAuth != nil {
			*gotAuth = r.Header.Get("Authorization")
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		for _, f := range frames {
			require.NoError(t, conn.WriteJSON(f))
		}
		// hold the connection open; the client closes on context cancel
		conn.ReadMessage()
	}))
}

func raw(t *testing.T, v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func collectEvents(t *testing.T, p *transport.Push, want int) []parley.Event {
	events := make(chan parley.Event, 32)
	p.Subscribe(func(ev parley.Event) { events <- ev })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	var got []parley.Event
	deadline := time.After(5 * time.Second)
	for len(got) < want {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-deadline:
			t.Fatalf("timed out after %d of %d events", len(got), want)
		}
	}
	return got
}

func TestPushDeliversNormalizedEvents(t *testing.T) {
	frames := []parley.WireEvent{
		{Event: parley.EventNewChannel, Payload: raw(t, parley.Channel{ID: "2", Name: "random", Removable: true})},
		{Event: parley.EventNewMessage, Payload: raw(t, parley.Message{ID: "m1", ChannelID: "2", Username: "bob", Body: "yo"})},
		{Event: parley.EventRenameChannel, Payload: raw(t, parley.ChannelRef{ID: "2", Name: "casual"})},
		{Event: parley.EventRemoveChannel, Payload: raw(t, parley.ChannelRef{ID: "2"})},
	}

	var auth string
	srv := pushServer(t, frames, &auth)
	defer srv.Close()

	sess := session.New()
	sess.Set("tok-1", "alice")

	p := transport.NewPush(srv.URL, sess, transport.Policy{MaxAttempts: 1}, nil)
	got := collectEvents(t, p, 5) // connectionChanged + 4 frames

	assert.Equal(t, parley.EventConnectionChanged, got[0].Kind)
	assert.True(t, got[0].Connected)
	assert.Equal(t, "Bearer tok-1", auth)

	assert.Equal(t, parley.EventNewChannel, got[1].Kind)
	assert.Equal(t, "random", got[1].Channel.Name)

	assert.Equal(t, parley.EventNewMessage, got[2].Kind)
	assert.Equal(t, "bob", got[2].Message.Username)

	assert.Equal(t, parley.EventRenameChannel, got[3].Kind)
	assert.Equal(t, "casual", got[3].Ref.Name)

	assert.Equal(t, parley.EventRemoveChannel, got[4].Kind)
	assert.Equal(t, "2", got[4].Ref.ID)
}

func TestPushSubstitutesMissingSender(t *testing.T) {
	frames := []parley.WireEvent{
		{Event: parley.EventNewMessage, Payload: raw(t, parley.Message{ID: "m1", ChannelID: "1", Body: "mine"})},
	}
	srv := pushServer(t, frames, nil)
	defer srv.Close()

	sess := session.New()
	sess.Set("tok", "alice")

	p := transport.NewPush(srv.URL, sess, transport.Policy{MaxAttempts: 1}, nil)
	got := collectEvents(t, p, 2)

	require.Equal(t, parley.EventNewMessage, got[1].Kind)
	assert.Equal(t, "alice", got[1].Message.Username)
}

func TestPushBuffersMessagesForUnknownChannels(t *testing.T) {
	frames := []parley.WireEvent{
		// message for a channel the store has never seen
		{Event: parley.EventNewMessage, Payload: raw(t, parley.Message{ID: "m1", ChannelID: "9", Username: "bob", Body: "early"})},
		// the channel shows up afterwards; the message replays behind it
		{Event: parley.EventNewChannel, Payload: raw(t, parley.Channel{ID: "9", Name: "late", Removable: true})},
	}
	srv := pushServer(t, frames, nil)
	defer srv.Close()

	sess := session.New()
	sess.Set("tok", "alice")

	store := state.NewStore()
	p := transport.NewPush(srv.URL, sess, transport.Policy{MaxAttempts: 1}, store)

	events := make(chan parley.Event, 32)
	p.Subscribe(func(ev parley.Event) {
		store.Apply(ev)
		events <- ev
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	var kinds []string
	deadline := time.After(5 * time.Second)
	for len(kinds) < 3 {
		select {
		case ev := <-events:
			kinds = append(kinds, ev.Kind)
		case <-deadline:
			t.Fatalf("timed out, saw %v", kinds)
		}
	}

	assert.Equal(t, []string{
		parley.EventConnectionChanged,
		parley.EventNewChannel,
		parley.EventNewMessage,
	}, kinds)

	msgs := store.Snapshot().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, "early", msgs[0].Body)
}

func TestPushReplaysAfterBulkLoad(t *testing.T) {
	frames := []parley.WireEvent{
		// pushed while the bulk fetch is still in flight
		{Event: parley.EventNewMessage, Payload: raw(t, parley.Message{ID: "m1", ChannelID: "1", Username: "bob", Body: "early"})},
		// marker frame so the test knows the message above was processed
		{Event: parley.EventNewChannel, Payload: raw(t, parley.Channel{ID: "marker", Name: "marker", Removable: true})},
	}
	srv := pushServer(t, frames, nil)
	defer srv.Close()

	sess := session.New()
	sess.Set("tok", "alice")

	store := state.NewStore()
	p := transport.NewPush(srv.URL, sess, transport.Policy{MaxAttempts: 1}, store)

	events := make(chan parley.Event, 32)
	p.Subscribe(func(ev parley.Event) {
		store.Apply(ev)
		events <- ev
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	deadline := time.After(5 * time.Second)
	seen := 0
	for seen < 2 { // connectionChanged + the marker channel
		select {
		case <-events:
			seen++
		case <-deadline:
			t.Fatal("timed out waiting for the marker event")
		}
	}
	require.Empty(t, store.Snapshot().Messages, "the early message must be held, not applied")

	// the fetch lands, bringing channel "1" with it
	store.BulkLoadSucceeded(parley.BulkData{
		Channels: []*parley.Channel{{ID: "1", Name: "general"}},
	})
	p.ReplayPending()

	select {
	case ev := <-events:
		require.Equal(t, parley.EventNewMessage, ev.Kind)
		assert.Equal(t, "early", ev.Message.Body)
	case <-time.After(5 * time.Second):
		t.Fatal("held message was never replayed")
	}

	msgs := store.Snapshot().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, "early", msgs[0].Body)
}

func TestPushPendingOverflowDropsOldest(t *testing.T) {
	// one more message than the buffer holds, then the channel appears
	var frames []parley.WireEvent
	for i := 0; i <= 64; i++ {
		frames = append(frames, parley.WireEvent{
			Event:   parley.EventNewMessage,
			Payload: raw(t, parley.Message{ID: fmt.Sprintf("m%d", i), ChannelID: "X", Username: "bob", Body: "swarm"}),
		})
	}
	frames = append(frames, parley.WireEvent{
		Event:   parley.EventNewChannel,
		Payload: raw(t, parley.Channel{ID: "X", Name: "swamped", Removable: true}),
	})

	srv := pushServer(t, frames, nil)
	defer srv.Close()

	sess := session.New()
	sess.Set("tok", "alice")

	p := transport.NewPush(srv.URL, sess, transport.Policy{MaxAttempts: 1}, state.NewStore())
	got := collectEvents(t, p, 66) // connectionChanged + newChannel + 64 replayed

	require.Equal(t, parley.EventNewChannel, got[1].Kind)
	// m0 was evicted to make room; replay starts at m1 and keeps order
	assert.Equal(t, "m1", got[2].Message.ID)
	assert.Equal(t, "m64", got[65].Message.ID)
}

func TestPushDropsMalformedEvents(t *testing.T) {
	frames := []parley.WireEvent{
		{Event: parley.EventNewChannel, Payload: json.RawMessage(`"not an object"`)},
		{Event: "someUnknownEvent", Payload: json.RawMessage(`{}`)},
		{Event: parley.EventNewChannel, Payload: raw(t, parley.Channel{ID: "3", Name: "fine", Removable: true})},
	}
	srv := pushServer(t, frames, nil)
	defer srv.Close()

	sess := session.New()
	sess.Set("tok", "alice")

	p := transport.NewPush(srv.URL, sess, transport.Policy{MaxAttempts: 1}, nil)
	got := collectEvents(t, p, 2)

	// only the connection signal and the well-formed event arrive
	assert.Equal(t, parley.EventConnectionChanged, got[0].Kind)
	require.Equal(t, parley.EventNewChannel, got[1].Kind)
	assert.Equal(t, "fine", got[1].Channel.Name)
}

func TestPushReportsDisconnect(t *testing.T) {
	srv := pushServer(t, nil, nil)

	sess := session.New()
	sess.Set("tok", "alice")

	p := transport.NewPush(srv.URL, sess, transport.Policy{MaxAttempts: 1}, nil)

	events := make(chan parley.Event, 8)
	p.Subscribe(func(ev parley.Event) { events <- ev })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { p.Run(ctx); close(done) }()

	// wait for the connection, then kill the server
	select {
	case ev := <-events:
		require.True(t, ev.Connected)
		assert.True(t, p.Connected())
	case <-time.After(5 * time.Second):
		t.Fatal("never connected")
	}
	srv.CloseClientConnections()
	srv.Close()

	select {
	case ev := <-events:
		assert.Equal(t, parley.EventConnectionChanged, ev.Kind)
		assert.False(t, ev.Connected)
	case <-time.After(5 * time.Second):
		t.Fatal("no disconnect event")
	}

	select {
	case <-done:
		assert.False(t, p.Connected())
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after budget exhausted")
	}
}
