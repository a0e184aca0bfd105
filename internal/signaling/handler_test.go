package signaling

import (
	"encoding/json"
	"testing"
	"time"

	pion "github.com/pion/webrtc/v4"

	"github.com/JreyForFun/Whispr/internal/protocol"
)

func newTestHandler() (*Handler, chan *protocol.SignalMessage) {
	incoming := make(chan *protocol.SignalMessage, 8)
	client := &Client{incoming: incoming}
	return NewHandler(client), incoming
}

func TestHandlerRoutesEvents(t *testing.T) {
	t.Parallel()
	handler, incoming := newTestHandler()
	go handler.Start()
	defer close(incoming)

	offer, _ := protocol.NewSignal(protocol.EventOffer, protocol.SDPPayload{
		SDP: pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: "v=0"},
	})
	ice, _ := protocol.NewSignal(protocol.EventICE, protocol.ICEPayload{
		Candidate: pion.ICECandidateInit{Candidate: "candidate:1"},
	})
	bye, _ := protocol.NewSignal(protocol.EventBye, nil)
	deleted, _ := protocol.NewSignal(protocol.EventRoomDeleted, nil)

	incoming <- &offer
	incoming <- &ice
	incoming <- &bye
	incoming <- &deleted

	select {
	case got := <-handler.Offers:
		if got.SDP.SDP != "v=0" {
			t.Errorf("offer SDP: got %q", got.SDP.SDP)
		}
	case <-time.After(time.Second):
		t.Fatal("offer not routed")
	}

	select {
	case got := <-handler.Candidates:
		if got.Candidate.Candidate != "candidate:1" {
			t.Errorf("candidate: got %q", got.Candidate.Candidate)
		}
	case <-time.After(time.Second):
		t.Fatal("candidate not routed")
	}

	select {
	case <-handler.Byes:
	case <-time.After(time.Second):
		t.Fatal("bye not routed")
	}

	select {
	case <-handler.RoomDeleted:
	case <-time.After(time.Second):
		t.Fatal("room deletion not routed")
	}
}

func TestHandlerDropsMalformedPayloads(t *testing.T) {
	t.Parallel()
	handler, incoming := newTestHandler()
	go handler.Start()

	incoming <- &protocol.SignalMessage{Event: protocol.EventOffer, Payload: json.RawMessage(`{`)}
	incoming <- &protocol.SignalMessage{Event: protocol.EventICE, Payload: json.RawMessage(`nope`)}
	incoming <- &protocol.SignalMessage{Event: "unknown_event"}
	close(incoming)

	// Give the routing goroutine time to finish, then verify nothing leaked
	// through.
	time.Sleep(50 * time.Millisecond)
	select {
	case got := <-handler.Offers:
		t.Errorf("malformed offer routed: %+v", got)
	default:
	}
	select {
	case got := <-handler.Candidates:
		t.Errorf("malformed candidate routed: %+v", got)
	default:
	}
}
