package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JreyForFun/Whispr/internal/backend"
	"github.com/JreyForFun/Whispr/internal/protocol"
	"github.com/JreyForFun/Whispr/internal/server/store"
	"github.com/JreyForFun/Whispr/internal/signaling"
)

func newRelayServer(t *testing.T) (wsURL string, rest *backend.Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemory()
	hub := NewHub()
	go hub.Run()

	srv := httptest.NewServer(NewRouter(Config{}, st, hub))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", backend.NewClient(srv.URL + "/api")
}

func connect(t *testing.T, wsURL, roomID, sessionID string) *signaling.Client {
	t.Helper()
	client := signaling.NewClient(wsURL, roomID, sessionID)
	if err := client.Connect(); err != nil {
		t.Fatalf("connect %s: %v", sessionID, err)
	}
	t.Cleanup(client.Close)
	return client
}

func receive(t *testing.T, client *signaling.Client) *protocol.SignalMessage {
	t.Helper()
	select {
	case msg := <-client.Incoming():
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no signal relayed within deadline")
		return nil
	}
}

func TestHubRelaysSignalsWithinRoomWithoutEcho(t *testing.T) {
	t.Parallel()
	wsURL, _ := newRelayServer(t)

	alpha := connect(t, wsURL, "room-1", "sess-a")
	beta := connect(t, wsURL, "room-1", "sess-b")
	outsider := connect(t, wsURL, "room-2", "sess-c")

	// Subscription racing the first send: give the hub a beat.
	time.Sleep(50 * time.Millisecond)

	offer, err := protocol.NewSignal(protocol.EventOffer, protocol.SDPPayload{})
	if err != nil {
		t.Fatalf("NewSignal: %v", err)
	}
	alpha.Send(&offer)

	if msg := receive(t, beta); msg.Event != protocol.EventOffer {
		t.Errorf("relayed event = %q, want %q", msg.Event, protocol.EventOffer)
	}

	// Neither the sender nor another room sees it.
	select {
	case msg := <-alpha.Incoming():
		t.Errorf("signal echoed to sender: %q", msg.Event)
	case msg := <-outsider.Incoming():
		t.Errorf("signal leaked across rooms: %q", msg.Event)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRoomDeletionIsPushedToSubscribers(t *testing.T) {
	t.Parallel()
	wsURL, rest := newRelayServer(t)
	ctx := context.Background()

	// Create a real room so the DELETE endpoint has something to remove.
	text := backend.Constraints{HasVideo: false}
	for _, sid := range []string{"sess-a", "sess-b"} {
		if err := rest.UpsertQueueEntry(ctx, backend.QueueEntry{SessionID: sid, Constraints: text}); err != nil {
			t.Fatalf("UpsertQueueEntry: %v", err)
		}
	}
	match, err := rest.Match(ctx, "sess-a", text)
	if err != nil || match == nil {
		t.Fatalf("match: %+v, %v", match, err)
	}

	survivor := connect(t, wsURL, match.RoomID, "sess-b")
	time.Sleep(50 * time.Millisecond)

	if err := rest.DeleteRoom(ctx, match.RoomID); err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}

	if msg := receive(t, survivor); msg.Event != protocol.EventRoomDeleted {
		t.Errorf("pushed event = %q, want %q", msg.Event, protocol.EventRoomDeleted)
	}
}
