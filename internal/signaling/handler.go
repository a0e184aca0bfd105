package signaling

import (
	"encoding/json"
	"log/slog"

	"github.com/JreyForFun/Whispr/internal/protocol"
)

// Handler routes incoming room-topic events to typed channels.
type Handler struct {
	client      *Client
	Offers      chan *protocol.SDPPayload
	Answers     chan *protocol.SDPPayload
	Candidates  chan *protocol.ICEPayload
	Byes        chan struct{}
	RoomDeleted chan struct{}
}

// NewHandler creates a handler over the given client.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:      client,
		Offers:      make(chan *protocol.SDPPayload, 4),
		Answers:     make(chan *protocol.SDPPayload, 4),
		Candidates:  make(chan *protocol.ICEPayload, 32),
		Byes:        make(chan struct{}, 1),
		RoomDeleted: make(chan struct{}, 1),
	}
}

// Start consumes the client's incoming stream and routes events until the
// connection closes. Run it in its own goroutine.
func (h *Handler) Start() {
	for msg := range h.client.Incoming() {
		h.route(msg)
	}
}

func (h *Handler) route(msg *protocol.SignalMessage) {
	switch msg.Event {

	case protocol.EventOffer:
		if sdp := decodeSDP(msg.Payload); sdp != nil {
			h.Offers <- sdp
		}

	case protocol.EventAnswer:
		if sdp := decodeSDP(msg.Payload); sdp != nil {
			h.Answers <- sdp
		}

	case protocol.EventICE:
		var payload protocol.ICEPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			slog.Warn("dropping malformed ICE payload", "error", err)
			return
		}
		h.Candidates <- &payload

	case protocol.EventBye:
		select {
		case h.Byes <- struct{}{}:
		default:
		}

	case protocol.EventRoomDeleted:
		select {
		case h.RoomDeleted <- struct{}{}:
		default:
		}

	default:
		slog.Debug("ignoring unknown signal event", "event", msg.Event)
	}
}

func decodeSDP(data []byte) *protocol.SDPPayload {
	var payload protocol.SDPPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		slog.Warn("dropping malformed SDP payload", "error", err)
		return nil
	}
	return &payload
}
