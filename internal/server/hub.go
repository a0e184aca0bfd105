package server

import (
	"log/slog"
	"sync/atomic"

	"github.com/JreyForFun/Whispr/internal/protocol"
)

// relay is one inbound signal together with its origin, so the hub can
// forward to everyone else on the topic without echoing back.
type relay struct {
	from *Client
	msg  *protocol.SignalMessage
}

// Hub fans signals out across room topics. A single goroutine owns the
// subscription map; clients talk to it over channels only.
type Hub struct {
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *relay
	deleted    chan string

	online atomic.Int64
}

// NewHub creates an empty hub. Call Run before serving connections.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *relay),
		deleted:    make(chan string),
	}
}

// Online is the number of currently connected signaling clients.
func (h *Hub) Online() int {
	return int(h.online.Load())
}

// RoomDeleted notifies every subscriber of the room that its record is
// gone, so a peer whose partner vanished without a bye still finds out.
func (h *Hub) RoomDeleted(roomID string) {
	h.deleted <- roomID
}

// Run is the hub's event loop. All room-map access happens here.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			subs := h.rooms[client.roomID]
			if subs == nil {
				subs = make(map[*Client]bool)
				h.rooms[client.roomID] = subs
			}
			subs[client] = true
			h.online.Add(1)
			slog.Debug("client subscribed", "room", client.roomID, "session", client.sessionID)

		case client := <-h.unregister:
			if subs, ok := h.rooms[client.roomID]; ok && subs[client] {
				delete(subs, client)
				if len(subs) == 0 {
					delete(h.rooms, client.roomID)
				}
				h.online.Add(-1)
				close(client.send)
				slog.Debug("client unsubscribed", "room", client.roomID, "session", client.sessionID)
			}

		case r := <-h.broadcast:
			for client := range h.rooms[r.from.roomID] {
				if client == r.from {
					continue
				}
				select {
				case client.send <- r.msg:
				default:
					// Slow subscriber. Signals are best-effort; the
					// offer retry loop covers the loss.
					slog.Warn("dropping signal for slow client", "room", client.roomID, "event", r.msg.Event)
				}
			}

		case roomID := <-h.deleted:
			msg := &protocol.SignalMessage{Event: protocol.EventRoomDeleted}
			for client := range h.rooms[roomID] {
				select {
				case client.send <- msg:
				default:
				}
			}
		}
	}
}
