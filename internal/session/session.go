// Package session holds the anonymous identity a client carries for the
// lifetime of one chat session. The identifier is minted when the user gives
// consent and survives process restarts until explicitly reset, mirroring a
// browser tab's transient storage.
package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// ErrNoConsent is returned when an identity is requested before consent.
var ErrNoConsent = errors.New("consent not given")

// Session is the anonymous identity for one client.
type Session struct {
	ID           string `json:"id"`
	HasVideo     bool   `json:"has_video"`
	ConsentGiven bool   `json:"consent_given"`
}

// Store owns the session and its persistence. It is passed by handle to the
// components that need identity; nothing reads it as ambient global state.
type Store struct {
	mu      sync.Mutex
	path    string
	current Session
}

// NewStore loads any previously persisted session from path. A missing or
// unreadable file just means no session exists yet.
func NewStore(path string) *Store {
	s := &Store{path: path}
	if data, err := os.ReadFile(path); err == nil {
		var sess Session
		if json.Unmarshal(data, &sess) == nil && sess.ID != "" {
			s.current = sess
		}
	}
	return s
}

// DefaultPath returns the session file location under the user cache dir.
func DefaultPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "whispr", "session.json")
}

// Consent mints the session identity. Calling it again is a no-op that
// returns the existing session.
func (s *Store) Consent() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.ConsentGiven {
		return s.current
	}
	s.current = Session{
		ID:           uuid.New().String(),
		ConsentGiven: true,
	}
	s.persistLocked()
	return s.current
}

// Current returns the session, or ErrNoConsent if none exists.
func (s *Store) Current() (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current.ConsentGiven {
		return Session{}, ErrNoConsent
	}
	return s.current, nil
}

// SetHasVideo records the mode for the next search. Identity is immutable;
// the mode is the only mutable field.
func (s *Store) SetHasVideo(hasVideo bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.HasVideo = hasVideo
	if s.current.ConsentGiven {
		s.persistLocked()
	}
}

// Reset clears the identity and removes the persisted file.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = Session{}
	if s.path != "" {
		os.Remove(s.path)
	}
}

func (s *Store) persistLocked() {
	if s.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return
	}
	data, err := json.Marshal(s.current)
	if err != nil {
		return
	}
	os.WriteFile(s.path, data, 0o600)
}
