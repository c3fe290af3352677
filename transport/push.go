package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/parleychat/parley"
	"github.com/parleychat/parley/session"
)

// pendingLimit bounds how many messages can wait for a channel the client
// has not heard of yet (fetch still in flight when the push arrives).
const pendingLimit = 64

// ChannelSet answers whether a channel id is already known locally. The
// state store satisfies it.
type ChannelSet interface {
	HasChannel(id string) bool
}

// Push maintains the websocket to the server, normalizes inbound events,
// and delivers them to the single registered handler. Reconnection is
// automatic and bounded by the policy; once the budget is exhausted the
// adapter stays disconnected and the UI shows a degraded banner.
type Push struct {
	url     string
	session *session.Session
	retrier *Retrier
	known   ChannelSet

	mu      sync.Mutex
	handler parley.EventHandler
	pending []parley.Message // messages for unknown channels, oldest first

	connected atomic.Bool
}

// NewPush builds a push subscriber for the server at baseURL (http or
// https; the websocket scheme is derived). known may be nil, in which case
// no buffering of early messages happens.
func NewPush(baseURL string, sess *session.Session, policy Policy, known ChannelSet) *Push {
	wsURL := strings.Replace(baseURL, "http", "ws", 1) + "/ws"
	return &Push{
		url:     wsURL,
		session: sess,
		retrier: NewRetrier(policy),
		known:   known,
	}
}

// Subscribe registers the dispatcher. Only one handler is supported;
// registering again replaces it.
func (p *Push) Subscribe(h parley.EventHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

// Connected reports whether the websocket is currently up.
func (p *Push) Connected() bool {
	return p.connected.Load()
}

// Run connects and pumps events until the context ends or the reconnect
// budget is exhausted. Each successful connection resets the budget.
func (p *Push) Run(ctx context.Context) error {
	return p.retrier.Run(ctx, func(up func()) error {
		if err := p.pump(ctx, up); err != nil {
			logrus.Errorf("push connection lost: %v", err)
			return err
		}
		return nil
	})
}

// pump dials, announces the connection, and reads frames until the
// connection drops. A clean shutdown through the context returns nil so
// the retrier stops.
func (p *Push) pump(ctx context.Context, up func()) error {
	header := http.Header{}
	if tok := p.session.Token(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, p.url, header)
	if err != nil {
		return errors.Wrap(err, "dialing websocket")
	}
	defer conn.Close()

	up()
	p.connected.Store(true)
	p.emit(parley.Event{Kind: parley.EventConnectionChanged, Connected: true})
	defer func() {
		p.connected.Store(false)
		p.emit(parley.Event{Kind: parley.EventConnectionChanged, Connected: false})
	}()

	// close the socket when the context ends so ReadMessage unblocks
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var wire parley.WireEvent
		if err := conn.ReadJSON(&wire); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "reading event")
		}
		p.dispatch(wire)
	}
}

// dispatch decodes a wire event, applies the sender shim, and hands the
// normalized event to the subscriber. Malformed events are dropped with a
// diagnostic; they must never take the pump down.
func (p *Push) dispatch(wire parley.WireEvent) {
	switch wire.Event {
	case parley.EventNewMessage:
		var msg parley.Message
		if err := json.Unmarshal(wire.Payload, &msg); err != nil {
			logrus.Warnf("dropping malformed %s event: %v", wire.Event, err)
			return
		}
		// events from "me" arrive without a sender
		if msg.Username == "" {
			msg.Username = p.session.Username()
		}
		if p.known != nil && !p.known.HasChannel(msg.ChannelID) {
			p.buffer(msg)
			return
		}
		p.emit(parley.Event{Kind: parley.EventNewMessage, Message: &msg})

	case parley.EventNewChannel:
		var ch parley.Channel
		if err := json.Unmarshal(wire.Payload, &ch); err != nil {
			logrus.Warnf("dropping malformed %s event: %v", wire.Event, err)
			return
		}
		p.emit(parley.Event{Kind: parley.EventNewChannel, Channel: &ch})
		p.replay(ch.ID)

	case parley.EventRemoveChannel, parley.EventRenameChannel:
		var ref parley.ChannelRef
		if err := json.Unmarshal(wire.Payload, &ref); err != nil {
			logrus.Warnf("dropping malformed %s event: %v", wire.Event, err)
			return
		}
		p.emit(parley.Event{Kind: wire.Event, Ref: &ref})
		if wire.Event == parley.EventRemoveChannel {
			p.drop(ref.ID)
		}

	default:
		logrus.Warnf("dropping unknown event %q", wire.Event)
	}
}

func (p *Push) emit(ev parley.Event) {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

// buffer holds a message whose channel is not known yet, so a push that
// races ahead of the bulk fetch is replayed instead of silently lost.
func (p *Push) buffer(msg parley.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) >= pendingLimit {
		logrus.Warnf("pending buffer full, dropping oldest message for channel %s", p.pending[0].ChannelID)
		p.pending = p.pending[1:]
	}
	p.pending = append(p.pending, msg)
}

// takePending removes and returns the buffered messages whose channel
// matches, oldest first.
func (p *Push) takePending(match func(channelID string) bool) []parley.Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	var taken []parley.Message
	kept := p.pending[:0]
	for _, m := range p.pending {
		if match(m.ChannelID) {
			taken = append(taken, m)
		} else {
			kept = append(kept, m)
		}
	}
	p.pending = kept
	return taken
}

// replay delivers buffered messages for a channel that just appeared.
func (p *Push) replay(channelID string) {
	queue := p.takePending(func(id string) bool { return id == channelID })
	for i := range queue {
		p.emit(parley.Event{Kind: parley.EventNewMessage, Message: &queue[i]})
	}
}

// ReplayPending delivers any buffered messages whose channel has become
// known since they arrived. The view layer calls it after applying a bulk
// fetch, which is the other way a channel can appear.
func (p *Push) ReplayPending() {
	if p.known == nil {
		return
	}
	queue := p.takePending(p.known.HasChannel)
	for i := range queue {
		p.emit(parley.Event{Kind: parley.EventNewMessage, Message: &queue[i]})
	}
}

// drop discards buffered messages for a channel that was deleted before it
// ever became known.
func (p *Push) drop(channelID string) {
	p.takePending(func(id string) bool { return id == channelID })
}

// Adapter bundles the REST client and the push subscriber into the full
// transport contract.
type Adapter struct {
	*Client
	*Push
}

// NewAdapter wires a REST client and a push subscriber against the same
// server and session.
func NewAdapter(baseURL string, sess *session.Session, policy Policy, known ChannelSet) *Adapter {
	return &Adapter{
		Client: NewClient(baseURL, sess),
		Push:   NewPush(baseURL, sess, policy, known),
	}
}

var _ parley.Transport = (*Adapter)(nil)
