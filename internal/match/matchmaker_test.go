package match

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/JreyForFun/Whispr/internal/backend"
	"github.com/JreyForFun/Whispr/internal/session"
)

type fakeBackend struct {
	mu sync.Mutex

	rooms       []*backend.Room // returned newest-first, head first
	matchResult *backend.Match
	findErr     error

	upserts []backend.QueueEntry
	matches int
	finds   int
}

func (b *fakeBackend) FindRoom(ctx context.Context, sessionID string) (*backend.Room, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finds++
	if b.findErr != nil {
		return nil, b.findErr
	}
	if len(b.rooms) == 0 {
		return nil, nil
	}
	return b.rooms[0], nil
}

func (b *fakeBackend) UpsertQueueEntry(ctx context.Context, entry backend.QueueEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.upserts = append(b.upserts, entry)
	return nil
}

func (b *fakeBackend) Match(ctx context.Context, sessionID string, constraints backend.Constraints) (*backend.Match, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.matches++
	return b.matchResult, nil
}

func testSession() session.Session {
	return session.Session{ID: "sess-a", HasVideo: true, ConsentGiven: true}
}

func TestPassiveMatchAdoptsRoomAsAnswerer(t *testing.T) {
	t.Parallel()
	fake := &fakeBackend{
		rooms: []*backend.Room{{ID: "room-1", UserASession: "sess-b", UserBSession: "sess-a"}},
	}
	m := New(fake, 10*time.Millisecond, nil)

	result, err := m.Search(context.Background(), testSession())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Initiator {
		t.Error("passive match must be the answerer")
	}
	if result.RoomID != "room-1" || result.PartnerSessionID != "sess-b" {
		t.Errorf("result: %+v", result)
	}
	if fake.matches != 0 {
		t.Error("active match attempted despite passive hit")
	}
}

func TestActiveMatchMakesInitiator(t *testing.T) {
	t.Parallel()
	fake := &fakeBackend{
		matchResult: &backend.Match{RoomID: "room-9", PartnerSessionID: "sess-b"},
	}
	m := New(fake, 10*time.Millisecond, nil)

	result, err := m.Search(context.Background(), testSession())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !result.Initiator {
		t.Error("active match must be the initiator")
	}
	if result.RoomID != "room-9" {
		t.Errorf("room: %q", result.RoomID)
	}

	// Intent was published before the active attempt, with our constraints.
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.upserts) == 0 {
		t.Fatal("queue entry never upserted")
	}
	if !fake.upserts[0].Constraints.HasVideo {
		t.Error("constraints not carried into queue entry")
	}
}

func TestGhostRoomIgnoredUntilNewRoomAppears(t *testing.T) {
	t.Parallel()
	ghost := &backend.Room{ID: "room-old", UserASession: "sess-a", UserBSession: "sess-b"}
	fake := &fakeBackend{rooms: []*backend.Room{ghost}}
	m := New(fake, 5*time.Millisecond, nil)
	m.RememberDeleted("room-old")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	if _, err := m.Search(ctx, testSession()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ghost room was adopted: err=%v", err)
	}

	// A genuinely new room id is accepted.
	fake.mu.Lock()
	fake.rooms = []*backend.Room{{ID: "room-new", UserASession: "sess-a", UserBSession: "sess-c"}}
	fake.mu.Unlock()

	result, err := m.Search(context.Background(), testSession())
	if err != nil {
		t.Fatalf("Search after new room: %v", err)
	}
	if result.RoomID != "room-new" {
		t.Errorf("adopted %q, want room-new", result.RoomID)
	}
}

func TestTransientErrorsSurfaceAndBackOff(t *testing.T) {
	t.Parallel()
	fake := &fakeBackend{findErr: errors.New("backend down")}

	var mu sync.Mutex
	var surfaced []error
	m := New(fake, 20*time.Millisecond, func(err error) {
		mu.Lock()
		surfaced = append(surfaced, err)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if _, err := m.Search(ctx, testSession()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Search: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(surfaced) == 0 {
		t.Fatal("transient error never surfaced")
	}

	// Backed-off interval (2x) means clearly fewer attempts than the
	// normal cadence would produce in the same window.
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.finds > 5 {
		t.Errorf("no backoff: %d attempts in 150ms at 20ms base interval", fake.finds)
	}
}

func TestSearchCancellation(t *testing.T) {
	t.Parallel()
	fake := &fakeBackend{}
	m := New(fake, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.Search(ctx, testSession())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Search returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Search did not stop on cancellation")
	}
}
