package parley

import "context"

// BulkData is everything the client needs to render: the full channel and
// message lists as the server knows them.
type BulkData struct {
	Channels []*Channel `json:"channels"`
	Messages []*Message `json:"messages"`
}

// Authenticater exchanges credentials for a token.
type Authenticater interface {
	Login(context.Context, Credentials) (*AuthResponse, error)
	Signup(context.Context, Credentials) (*AuthResponse, error)
}

// Fetcher loads the complete chat state in one shot. No retries; the
// caller decides what a failure means.
type Fetcher interface {
	BulkFetch(context.Context) (*BulkData, error)
}

// Creater makes new things exist on the server.
type Creater interface {
	CreateChannel(context.Context, string) (*Channel, error)
	SendMessage(context.Context, OutgoingMessage) error
}

// Updater renames an existing channel.
type Updater interface {
	RenameChannel(ctx context.Context, id, name string) error
}

// Deleter removes a channel and, with it, its messages.
type Deleter interface {
	DeleteChannel(ctx context.Context, id string) error
}

// Subscriber registers the single dispatcher for inbound push events.
// Delivery is at most once per event instance, in the order received.
// ReplayPending re-delivers messages that were held back because their
// channel was unknown when they arrived; callers invoke it after applying
// a bulk fetch, the other way a channel can become known.
type Subscriber interface {
	Subscribe(EventHandler)
	ReplayPending()
}

// Transport is the full client-side contract with the server.
type Transport interface {
	Authenticater
	Fetcher
	Creater
	Updater
	Deleter
	Subscriber
}
