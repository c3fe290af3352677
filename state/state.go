// Package state holds the single source of truth for the chat view: the
// channel list, the message log, the active channel, and the bulk-load
// status. Server fetches, optimistic local actions, and push events all
// funnel through the same transitions, and every transition is safe to
// apply more than once, so it does not matter whether a change arrives
// first as a request response or as a push event.
package state

import (
	"sync"

	"github.com/parleychat/parley"
)

// LoadStatus tracks the bulk fetch cycle.
type LoadStatus int

const (
	StatusIdle LoadStatus = iota
	StatusLoading
	StatusSucceeded
	StatusFailed
)

func (s LoadStatus) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Snapshot is a copy of the chat state, safe to hold across transitions.
type Snapshot struct {
	Channels        []parley.Channel
	Messages        []parley.Message
	ActiveChannelID string
	Status          LoadStatus
	LoadError       string
}

// Store owns the chat state. All mutation goes through the named
// transitions below; none of them ever fails, and each one upholds the
// invariant that the active channel, when set, names a channel that
// exists.
type Store struct {
	mu       sync.RWMutex
	channels []*parley.Channel
	messages []*parley.Message
	active   string
	status   LoadStatus
	loadErr  string

	// name substituted into messages that arrive without a sender,
	// which the server omits when the sender is the current user
	currentUser string

	onChange func()
}

func NewStore() *Store {
	return &Store{}
}

// SetCurrentUser records the logged-in user's name for sender fallback.
func (s *Store) SetCurrentUser(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentUser = username
}

// OnChange registers a single callback invoked after every transition that
// changed the state. Intended for the view layer.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// notify fires the change callback. Called without the lock held so the
// callback is free to read the store.
func (s *Store) notify(changed bool) {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if changed && fn != nil {
		fn()
	}
}

// defaultChannelID picks the channel the view falls back to: the first
// non-removable channel if one exists, else the first channel, else none.
func (s *Store) defaultChannelID() string {
	for _, ch := range s.channels {
		if !ch.Removable {
			return ch.ID
		}
	}
	if len(s.channels) > 0 {
		return s.channels[0].ID
	}
	return ""
}

func (s *Store) findChannel(id string) *parley.Channel {
	for _, ch := range s.channels {
		if ch.ID == id {
			return ch
		}
	}
	return nil
}

// SetActiveChannel switches the active channel. Unknown ids are ignored so
// a stale reference can never break the invariant.
func (s *Store) SetActiveChannel(id string) {
	s.mu.Lock()
	changed := false
	if s.findChannel(id) != nil && s.active != id {
		s.active = id
		changed = true
	}
	s.mu.Unlock()
	s.notify(changed)
}

// AddMessage appends a message. Messages already present by id are
// dropped, and a missing sender is replaced with the current user's name,
// falling back to "unknown".
func (s *Store) AddMessage(m parley.Message) {
	s.mu.Lock()
	changed := true
	for _, existing := range s.messages {
		if existing.ID == m.ID {
			changed = false
			break
		}
	}
	if changed {
		if m.Username == "" {
			if s.currentUser != "" {
				m.Username = s.currentUser
			} else {
				m.Username = "unknown"
			}
		}
		s.messages = append(s.messages, &m)
	}
	s.mu.Unlock()
	s.notify(changed)
}

// AddChannel appends a channel unless its id is already present. The
// duplicate case is routine: a channel created locally comes back both as
// the request response and as a push event.
func (s *Store) AddChannel(ch parley.Channel) {
	s.mu.Lock()
	changed := s.findChannel(ch.ID) == nil
	if changed {
		s.channels = append(s.channels, &ch)
	}
	s.mu.Unlock()
	s.notify(changed)
}

// RemoveChannel deletes a channel, purges its messages, and reassigns the
// active channel if it was the one removed. Unknown ids are a no-op.
func (s *Store) RemoveChannel(id string) {
	s.mu.Lock()
	if s.findChannel(id) == nil {
		s.mu.Unlock()
		return
	}

	kept := s.channels[:0]
	for _, ch := range s.channels {
		if ch.ID != id {
			kept = append(kept, ch)
		}
	}
	s.channels = kept

	msgs := s.messages[:0]
	for _, m := range s.messages {
		if m.ChannelID != id {
			msgs = append(msgs, m)
		}
	}
	s.messages = msgs

	if s.active == id {
		s.active = s.defaultChannelID()
	}
	s.mu.Unlock()
	s.notify(true)
}

// RenameChannel renames in place; unknown ids are a no-op.
func (s *Store) RenameChannel(id, name string) {
	s.mu.Lock()
	changed := false
	if ch := s.findChannel(id); ch != nil && ch.Name != name {
		ch.Name = name
		changed = true
	}
	s.mu.Unlock()
	s.notify(changed)
}

// BulkLoadStarted marks the start of a fetch cycle.
func (s *Store) BulkLoadStarted() {
	s.mu.Lock()
	s.status = StatusLoading
	s.loadErr = ""
	s.mu.Unlock()
	s.notify(true)
}

// BulkLoadSucceeded replaces channels and messages wholesale and points
// the active channel at the default. Applying the same payload twice
// yields the same state.
func (s *Store) BulkLoadSucceeded(data parley.BulkData) {
	s.mu.Lock()

	s.channels = make([]*parley.Channel, 0, len(data.Channels))
	for _, ch := range data.Channels {
		c := *ch
		s.channels = append(s.channels, &c)
	}

	s.messages = make([]*parley.Message, 0, len(data.Messages))
	for _, m := range data.Messages {
		msg := *m
		if msg.Username == "" {
			if s.currentUser != "" {
				msg.Username = s.currentUser
			} else {
				msg.Username = "unknown"
			}
		}
		s.messages = append(s.messages, &msg)
	}

	s.active = s.defaultChannelID()
	s.status = StatusSucceeded
	s.loadErr = ""
	s.mu.Unlock()
	s.notify(true)
}

// BulkLoadFailed records the failure; the view blocks the chat behind the
// error until a new fetch cycle starts.
func (s *Store) BulkLoadFailed(err string) {
	s.mu.Lock()
	s.status = StatusFailed
	s.loadErr = err
	s.mu.Unlock()
	s.notify(true)
}

// Apply routes a normalized push event to its transition. Connection
// changes are the transport's own state, not chat state, and are ignored
// here.
func (s *Store) Apply(ev parley.Event) {
	switch ev.Kind {
	case parley.EventNewMessage:
		if ev.Message != nil {
			s.AddMessage(*ev.Message)
		}
	case parley.EventNewChannel:
		if ev.Channel != nil {
			s.AddChannel(*ev.Channel)
		}
	case parley.EventRemoveChannel:
		if ev.Ref != nil {
			s.RemoveChannel(ev.Ref.ID)
		}
	case parley.EventRenameChannel:
		if ev.Ref != nil {
			s.RenameChannel(ev.Ref.ID, ev.Ref.Name)
		}
	}
}

// Snapshot copies the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ActiveChannelID: s.active,
		Status:          s.status,
		LoadError:       s.loadErr,
		Channels:        make([]parley.Channel, 0, len(s.channels)),
		Messages:        make([]parley.Message, 0, len(s.messages)),
	}
	for _, ch := range s.channels {
		snap.Channels = append(snap.Channels, *ch)
	}
	for _, m := range s.messages {
		snap.Messages = append(snap.Messages, *m)
	}
	return snap
}

// ActiveMessages returns the messages of the active channel, in arrival
// order.
func (s *Store) ActiveMessages() []parley.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []parley.Message
	for _, m := range s.messages {
		if m.ChannelID == s.active {
			out = append(out, *m)
		}
	}
	return out
}

// HasChannel reports whether a channel id is known.
func (s *Store) HasChannel(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findChannel(id) != nil
}
