package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JreyForFun/Whispr/internal/backend"
)

// Memory is the in-process Store used by default and in tests. A single
// mutex makes Match trivially atomic.
type Memory struct {
	mu       sync.Mutex
	rooms    map[string]backend.Room
	queue    map[string]backend.QueueEntry
	reports  []backend.Report
	entryTTL time.Duration
	now      func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		rooms:    make(map[string]backend.Room),
		queue:    make(map[string]backend.QueueEntry),
		entryTTL: DefaultEntryTTL,
		now:      time.Now,
	}
}

func (m *Memory) FindRoomBySession(ctx context.Context, sessionID string) (*backend.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var newest *backend.Room
	for id := range m.rooms {
		room := m.rooms[id]
		if room.UserASession != sessionID && room.UserBSession != sessionID {
			continue
		}
		if newest == nil || room.CreatedAt.After(newest.CreatedAt) {
			newest = &room
		}
	}
	if newest == nil {
		return nil, ErrNotFound
	}
	found := *newest
	return &found, nil
}

func (m *Memory) UpsertQueueEntry(ctx context.Context, entry backend.QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.LastPing.IsZero() {
		entry.LastPing = m.now()
	}
	m.queue[entry.SessionID] = entry
	return nil
}

func (m *Memory) Match(ctx context.Context, sessionID string, constraints backend.Constraints) (*backend.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.entryTTL)
	for sid, entry := range m.queue {
		if sid == sessionID {
			continue
		}
		if entry.LastPing.Before(cutoff) {
			// Stale: the owner stopped pinging. Sweep it as we pass.
			delete(m.queue, sid)
			continue
		}
		if !Compatible(constraints, entry.Constraints) {
			continue
		}

		room := backend.Room{
			ID:           uuid.New().String(),
			UserASession: sessionID,
			UserBSession: sid,
			CreatedAt:    m.now(),
		}
		m.rooms[room.ID] = room
		delete(m.queue, sid)
		delete(m.queue, sessionID)

		return &backend.Match{RoomID: room.ID, PartnerSessionID: sid}, nil
	}

	return nil, nil
}

func (m *Memory) DeleteRoom(ctx context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[roomID]; !ok {
		return ErrNotFound
	}
	delete(m.rooms, roomID)
	return nil
}

func (m *Memory) InsertReport(ctx context.Context, report backend.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
	return nil
}

func (m *Memory) Counts(ctx context.Context) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue), len(m.rooms), nil
}

// Reports returns a snapshot for inspection.
func (m *Memory) Reports() []backend.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]backend.Report, len(m.reports))
	copy(out, m.reports)
	return out
}
