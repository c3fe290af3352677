package server

import (
	"github.com/sirupsen/logrus"

	"github.com/parleychat/parley"
)

// chathub tracks connected websocket clients and fans events out to
// them. Handlers never touch clients directly; they hand the hub an
// event and the hub delivers it to everyone still listening.
type chathub struct {
	clients    map[*client]bool
	broadcast  chan parley.WireEvent
	register   chan *client
	unregister chan *client
}

func newChathub() *chathub {
	return &chathub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan parley.WireEvent),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

func (h *chathub) run() {
	for {
		select {
		case client := <-h.register:
			logrus.Infof("registering client %s", client.username)
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case event := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- event:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}
