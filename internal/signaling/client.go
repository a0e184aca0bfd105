// Package signaling is the realtime channel between the two peers of a
// room: a WebSocket subscription to the room-scoped topic on whisprd over
// which offer/answer/candidate/bye events are relayed, plus the
// server-pushed notification that the room record was deleted.
package signaling

import (
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JreyForFun/Whispr/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client manages the WebSocket subscription to one room topic.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	roomID    string
	sessionID string
	incoming  chan *protocol.SignalMessage
	outgoing  chan *protocol.SignalMessage
	done      chan struct{}
	closed    bool
}

// NewClient creates a signaling client for the given room topic.
func NewClient(serverURL, roomID, sessionID string) *Client {
	return &Client{
		serverURL: serverURL,
		roomID:    roomID,
		sessionID: sessionID,
		incoming:  make(chan *protocol.SignalMessage, 32),
		outgoing:  make(chan *protocol.SignalMessage, 32),
		done:      make(chan struct{}, 1),
	}
}

// Connect establishes the WebSocket connection and subscribes to the room
// topic. Returning without error means the subscription is live; the
// initiator may start its offer loop.
func (c *Client) Connect() error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	q := u.Query()
	q.Set("room", c.roomID)
	q.Set("session", c.sessionID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn

	c.conn.SetReadLimit(maxMessageSize)

	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return nil
}

// readPump reads events from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg protocol.SignalMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		c.incoming <- &msg
	}
}

// writePump writes events to the WebSocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			// Flush anything already queued (a departing bye in
			// particular) before saying goodbye.
			for {
				select {
				case message := <-c.outgoing:
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.conn.WriteJSON(message); err != nil {
						return
					}
				default:
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					c.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			}
		}
	}
}

// Send queues an event for delivery. Best-effort: delivery is at-most-once
// and the relay may drop it; the offer retry loop is the only reliability
// mechanism on top.
func (c *Client) Send(msg *protocol.SignalMessage) {
	select {
	case c.outgoing <- msg:
	default:
	}
}

// Incoming returns the channel of events from the peer and server.
func (c *Client) Incoming() <-chan *protocol.SignalMessage {
	return c.incoming
}

// Close unsubscribes and closes the connection. Idempotent.
func (c *Client) Close() {
	if c.closed {
		return
	}
	c.closed = true

	close(c.done)
}
