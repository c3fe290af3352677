package parley

import "encoding/json"

// Push event kinds sent by the server over the websocket.
const (
	EventNewMessage    = "newMessage"
	EventNewChannel    = "newChannel"
	EventRemoveChannel = "removeChannel"
	EventRenameChannel = "renameChannel"
)

// WireEvent is the envelope for anything sent over the websocket. The
// receiver decodes the payload based on the event name.
type WireEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// ChannelRef identifies a channel in removeChannel and renameChannel
// events.
type ChannelRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Event is a fully normalized inbound event, decoded and patched up by the
// transport before anyone else sees it. Exactly one of the payload fields
// is set, matching Kind; ConnectionChanged events carry Connected instead.
type Event struct {
	Kind      string
	Message   *Message
	Channel   *Channel
	Ref       *ChannelRef
	Connected bool
}

// EventConnectionChanged is synthesized by the transport itself when the
// push connection goes up or down; the server never sends it.
const EventConnectionChanged = "connectionChanged"

// EventHandler receives normalized events. A single handler is registered
// per subscription and is invoked once per event instance, in the order
// events were received.
type EventHandler func(Event)
