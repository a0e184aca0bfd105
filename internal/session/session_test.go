package session

import (
	"path/filepath"
	"testing"
)

func TestConsentMintsStableIdentity(t *testing.T) {
	t.Parallel()
	store := NewStore(filepath.Join(t.TempDir(), "session.json"))

	if _, err := store.Current(); err != ErrNoConsent {
		t.Fatalf("Current before consent: got %v, want ErrNoConsent", err)
	}

	first := store.Consent()
	if first.ID == "" || !first.ConsentGiven {
		t.Fatalf("Consent returned incomplete session: %+v", first)
	}

	second := store.Consent()
	if second.ID != first.ID {
		t.Errorf("repeat consent changed identity: %s != %s", second.ID, first.ID)
	}
}

func TestSessionSurvivesReload(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "session.json")

	sess := NewStore(path).Consent()

	reloaded := NewStore(path)
	got, err := reloaded.Current()
	if err != nil {
		t.Fatalf("Current after reload: %v", err)
	}
	if got.ID != sess.ID {
		t.Errorf("identity changed across reload: %s != %s", got.ID, sess.ID)
	}
}

func TestResetClearsIdentity(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "session.json")

	store := NewStore(path)
	store.Consent()
	store.Reset()

	if _, err := store.Current(); err != ErrNoConsent {
		t.Errorf("Current after reset: got %v, want ErrNoConsent", err)
	}
	if _, err := NewStore(path).Current(); err != ErrNoConsent {
		t.Errorf("reloaded store after reset: got %v, want ErrNoConsent", err)
	}
}

func TestHasVideoIsMutablePerSearch(t *testing.T) {
	t.Parallel()
	store := NewStore(filepath.Join(t.TempDir(), "session.json"))
	store.Consent()

	store.SetHasVideo(true)
	got, _ := store.Current()
	if !got.HasVideo {
		t.Error("HasVideo not recorded")
	}

	store.SetHasVideo(false)
	got, _ = store.Current()
	if got.HasVideo {
		t.Error("HasVideo not cleared")
	}
}
