package signaling

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JreyForFun/Whispr/internal/protocol"
)

// echoServer upgrades connections and forwards every received signal to the
// received channel.
func echoServer(t *testing.T) (wsURL string, received <-chan *protocol.SignalMessage) {
	t.Helper()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	out := make(chan *protocol.SignalMessage, 16)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg protocol.SignalMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			out <- &msg
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), out
}

func TestConnectSetsRoomAndSessionParams(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	params := make(chan [2]string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params <- [2]string{r.URL.Query().Get("room"), r.URL.Query().Get("session")}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	t.Cleanup(srv.Close)

	client := NewClient("ws"+strings.TrimPrefix(srv.URL, "http"), "room-1", "sess-a")
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(client.Close)

	got := <-params
	if got[0] != "room-1" || got[1] != "sess-a" {
		t.Errorf("subscription params = %v", got)
	}
}

// A message queued right before Close must still reach the server; the
// leaving peer's bye rides exactly this path.
func TestQueuedMessageSurvivesImmediateClose(t *testing.T) {
	t.Parallel()
	wsURL, received := echoServer(t)

	client := NewClient(wsURL, "room-1", "sess-a")
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	bye, err := protocol.NewSignal(protocol.EventBye, nil)
	if err != nil {
		t.Fatalf("NewSignal: %v", err)
	}
	client.Send(&bye)
	client.Close()

	select {
	case msg := <-received:
		if msg.Event != protocol.EventBye {
			t.Errorf("delivered event = %q, want %q", msg.Event, protocol.EventBye)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queued message lost on close")
	}
}
