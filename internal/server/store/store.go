// Package store persists the coordination state behind whisprd: the match
// queue, active rooms and abuse reports. The atomic Match operation is the
// single source of truth for "exactly one room per pair".
package store

import (
	"context"
	"errors"
	"time"

	"github.com/JreyForFun/Whispr/internal/backend"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("not found")

// DefaultEntryTTL is how long a queue entry stays matchable without a ping
// refresh. Stale entries are garbage, not partners.
const DefaultEntryTTL = 10 * time.Second

// Store is the persistence surface. Implementations must make Match atomic:
// two sessions racing into it produce exactly one room.
type Store interface {
	// FindRoomBySession returns the newest room referencing sessionID as
	// either participant, or ErrNotFound.
	FindRoomBySession(ctx context.Context, sessionID string) (*backend.Room, error)

	// UpsertQueueEntry inserts or refreshes the entry keyed by its session
	// id.
	UpsertQueueEntry(ctx context.Context, entry backend.QueueEntry) error

	// Match attempts to pair sessionID with a compatible waiting entry.
	// On success it creates exactly one room, removes both queue entries
	// and returns the pairing; (nil, nil) means nobody compatible is
	// waiting.
	Match(ctx context.Context, sessionID string, constraints backend.Constraints) (*backend.Match, error)

	// DeleteRoom removes a room. Returns ErrNotFound if it did not exist.
	DeleteRoom(ctx context.Context, roomID string) error

	// InsertReport stores an abuse report.
	InsertReport(ctx context.Context, report backend.Report) error

	// Counts returns the waiting-queue depth and active room count.
	Counts(ctx context.Context) (waiting, rooms int, err error)
}

// Compatible is the pairing policy: constraints match only when both sides
// want the same mode.
func Compatible(a, b backend.Constraints) bool {
	return a.HasVideo == b.HasVideo
}
