package parley

// Message is a single chat message. Messages are append-only; there is no
// edit operation. When a channel is deleted its messages go with it.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channelId"`
	Username  string `json:"username"`
	Body      string `json:"body"`
}

// OutgoingMessage is the payload the client sends; the server fills in the
// id and the sender.
type OutgoingMessage struct {
	Body      string `json:"body"`
	ChannelID string `json:"channelId"`
}
