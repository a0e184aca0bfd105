// Package match turns "this session wants a partner" into a room id and a
// handshake role by polling the coordination backend. Two independent
// clients race here; the backend's atomic pairing RPC is the single source
// of truth for "one room per pair", the client only guards against
// rediscovering a room it just tore down.
package match

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/JreyForFun/Whispr/internal/backend"
	"github.com/JreyForFun/Whispr/internal/session"
)

// Backend is the slice of the coordination API the matchmaker uses.
type Backend interface {
	FindRoom(ctx context.Context, sessionID string) (*backend.Room, error)
	UpsertQueueEntry(ctx context.Context, entry backend.QueueEntry) error
	Match(ctx context.Context, sessionID string, constraints backend.Constraints) (*backend.Match, error)
}

// Result is a successful pairing. Initiator is true when our own
// active-match attempt created the room; that side sends the offer.
type Result struct {
	RoomID           string
	PartnerSessionID string
	Initiator        bool
}

// Matchmaker runs the polling loop.
type Matchmaker struct {
	backend  Backend
	interval time.Duration
	onError  func(error)

	mu          sync.Mutex
	lastDeleted string
}

// New creates a matchmaker. onError surfaces transient backend errors to
// presentation; they are never fatal and the loop retries at a backed-off
// interval. A nil onError just logs.
func New(b Backend, interval time.Duration, onError func(error)) *Matchmaker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if onError == nil {
		onError = func(err error) { slog.Warn("matchmaking error", "error", err) }
	}
	return &Matchmaker{backend: b, interval: interval, onError: onError}
}

// RememberDeleted records the id of a room this client just tore down so a
// stale passive-match rediscovery of it is ignored (ghost-room guard). Any
// genuinely new room id is still accepted.
func (m *Matchmaker) RememberDeleted(roomID string) {
	m.mu.Lock()
	m.lastDeleted = roomID
	m.mu.Unlock()
}

// Search polls until a partner is found or ctx is cancelled. Cancelling is
// the only way to stop an unmatched search; the caller cancels the moment a
// room id becomes known through any other path or the user gives up.
func (m *Matchmaker) Search(ctx context.Context, sess session.Session) (Result, error) {
	wait := time.NewTimer(0)
	defer wait.Stop()

	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-wait.C:
		}

		result, found, err := m.tick(ctx, sess)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			m.onError(err)
			wait.Reset(2 * m.interval)
			continue
		}
		if found {
			return result, nil
		}
		wait.Reset(m.interval)
	}
}

// tick runs one poll iteration: passive-match check, queue upsert, then the
// active-match attempt.
func (m *Matchmaker) tick(ctx context.Context, sess session.Session) (Result, bool, error) {
	room, err := m.backend.FindRoom(ctx, sess.ID)
	if err != nil {
		return Result{}, false, err
	}
	if room != nil {
		if m.isGhost(room.ID) {
			slog.Debug("ignoring ghost room", "room", room.ID)
			return Result{}, false, nil
		}
		// Someone else's active match created this room; we answer.
		return Result{
			RoomID:           room.ID,
			PartnerSessionID: partnerOf(room, sess.ID),
			Initiator:        false,
		}, true, nil
	}

	entry := backend.QueueEntry{
		SessionID:   sess.ID,
		Constraints: backend.Constraints{HasVideo: sess.HasVideo},
		LastPing:    time.Now().UTC(),
	}
	if err := m.backend.UpsertQueueEntry(ctx, entry); err != nil {
		return Result{}, false, err
	}

	matched, err := m.backend.Match(ctx, sess.ID, entry.Constraints)
	if err != nil {
		return Result{}, false, err
	}
	if matched != nil {
		// Our attempt created the room; we offer.
		return Result{
			RoomID:           matched.RoomID,
			PartnerSessionID: matched.PartnerSessionID,
			Initiator:        true,
		}, true, nil
	}

	return Result{}, false, nil
}

func (m *Matchmaker) isGhost(roomID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return roomID == m.lastDeleted
}

func partnerOf(room *backend.Room, sessionID string) string {
	if room.UserASession == sessionID {
		return room.UserBSession
	}
	return room.UserASession
}
