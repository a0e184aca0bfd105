// Package pairing orchestrates one anonymous pairing end to end: searching,
// adopting the matched room, driving the peer connection, and making
// "leaving" safe and idempotent across explicit stop/next, peer-initiated
// bye and abrupt process exit.
package pairing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	pion "github.com/pion/webrtc/v4"

	"github.com/JreyForFun/Whispr/internal/backend"
	"github.com/JreyForFun/Whispr/internal/config"
	"github.com/JreyForFun/Whispr/internal/match"
	"github.com/JreyForFun/Whispr/internal/media"
	"github.com/JreyForFun/Whispr/internal/peer"
	"github.com/JreyForFun/Whispr/internal/session"
	"github.com/JreyForFun/Whispr/internal/signaling"
)

// Phase is the user-visible pairing state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSearching
	PhaseConnected
	// PhasePartnerLeft is distinct from idle: the partner ended the
	// pairing and the user chooses what to do next.
	PhasePartnerLeft
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSearching:
		return "searching"
	case PhaseConnected:
		return "connected"
	case PhasePartnerLeft:
		return "partner left"
	default:
		return "unknown"
	}
}

// EventKind discriminates Event.
type EventKind int

const (
	EventPhase EventKind = iota
	EventWarning
	EventError
	EventPeer
)

// Event is one observable state change for presentation.
type Event struct {
	Kind    EventKind
	Phase   Phase
	Warning string
	Err     error
	Peer    peer.Notification
}

// Backend is the coordination API slice the controller needs beyond
// matchmaking.
type Backend interface {
	match.Backend
	DeleteRoom(ctx context.Context, roomID string) error
	FileReport(ctx context.Context, report backend.Report) error
}

// Dialer subscribes to a room's signaling topic, returning the sender, the
// typed inbound channels, and a close function.
type Dialer func(roomID, sessionID string) (peer.SignalSender, peer.Signals, func(), error)

// ConnFactory creates the peer connection for a new pairing.
type ConnFactory func() (peer.Conn, error)

// Deps are the injectable collaborators of a Controller.
type Deps struct {
	Config  *config.Config
	Session *session.Store
	Backend Backend
	Media   media.Provider
	Dial    Dialer
	NewConn ConnFactory
}

// DefaultDialer connects to the whisprd realtime endpoint.
func DefaultDialer(wsURL string) Dialer {
	return func(roomID, sessionID string) (peer.SignalSender, peer.Signals, func(), error) {
		client := signaling.NewClient(wsURL, roomID, sessionID)
		if err := client.Connect(); err != nil {
			return nil, peer.Signals{}, nil, err
		}
		handler := signaling.NewHandler(client)
		go handler.Start()
		return client, peer.SignalsFromHandler(handler), client.Close, nil
	}
}

// Controller owns the pairing lifecycle.
type Controller struct {
	deps       Deps
	matchmaker *match.Matchmaker
	events     chan Event

	mu           sync.Mutex
	phase        Phase
	roomID       string
	partnerID    string
	manager      *peer.Manager
	closeLink    func()
	searchCancel context.CancelFunc
}

// NewController builds a controller. Media defaults to media.None().
func NewController(deps Deps) *Controller {
	if deps.Media == nil {
		deps.Media = media.None()
	}
	c := &Controller{
		deps:   deps,
		events: make(chan Event, 64),
		phase:  PhaseIdle,
	}
	c.matchmaker = match.New(deps.Backend, deps.Config.MatchPollInterval, func(err error) {
		c.emit(Event{Kind: EventError, Err: err})
	})
	return c
}

// Events is the stream consumed by presentation.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Manager returns the active peer manager, or nil outside a pairing.
func (c *Controller) Manager() *peer.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager
}

// StartSearch begins looking for a partner in the given mode. A no-op when
// a search or pairing is already active.
func (c *Controller) StartSearch(ctx context.Context, hasVideo bool) error {
	c.mu.Lock()
	if c.phase == PhaseSearching || c.phase == PhaseConnected {
		c.mu.Unlock()
		return nil
	}
	c.deps.Session.SetHasVideo(hasVideo)
	sess, err := c.deps.Session.Current()
	if err != nil {
		c.mu.Unlock()
		return err
	}

	searchCtx, cancel := context.WithCancel(ctx)
	c.searchCancel = cancel
	c.setPhaseLocked(PhaseSearching)
	c.mu.Unlock()

	// Media acquisition happens before the search loop: a denied camera
	// aborts the search with an explanation instead of failing later mid
	// handshake.
	var tracks []pion.TrackLocal
	if hasVideo {
		tracks, err = c.deps.Media.Acquire(searchCtx)
		if err != nil {
			cancel()
			c.mu.Lock()
			c.setPhaseLocked(PhaseIdle)
			c.searchCancel = nil
			c.mu.Unlock()
			return fmt.Errorf("media acquisition: %w", err)
		}
	}

	go c.search(searchCtx, sess, tracks)
	return nil
}

func (c *Controller) search(ctx context.Context, sess session.Session, tracks []pion.TrackLocal) {
	result, err := c.matchmaker.Search(ctx, sess)
	if err != nil {
		// Cancelled: Stop already handled the state transition.
		return
	}
	if err := c.adoptRoom(ctx, sess, result, tracks); err != nil {
		c.emit(Event{Kind: EventError, Err: err})
		c.mu.Lock()
		c.setPhaseLocked(PhaseIdle)
		c.mu.Unlock()
	}
}

// adoptRoom wires the signaling subscription and peer manager for a matched
// room.
func (c *Controller) adoptRoom(ctx context.Context, sess session.Session, result match.Result, tracks []pion.TrackLocal) error {
	sender, signals, closeLink, err := c.deps.Dial(result.RoomID, sess.ID)
	if err != nil {
		return fmt.Errorf("subscribe signaling: %w", err)
	}

	conn, err := c.deps.NewConn()
	if err != nil {
		closeLink()
		return err
	}

	role := peer.RoleAnswerer
	if result.Initiator {
		role = peer.RoleInitiator
	}
	manager := peer.NewManager(conn, sender, signals, peer.Options{
		Role:               role,
		OfferRetryInterval: c.deps.Config.OfferRetryInterval,
		DisconnectGrace:    c.deps.Config.DisconnectGrace,
		LocalTracks:        tracks,
	})

	c.mu.Lock()
	c.roomID = result.RoomID
	c.partnerID = result.PartnerSessionID
	c.manager = manager
	c.closeLink = closeLink
	c.setPhaseLocked(PhaseConnected)
	c.mu.Unlock()

	manager.Start(ctx)
	go c.forward(manager)

	slog.Info("room adopted", "room", result.RoomID, "initiator", result.Initiator)
	return nil
}

// forward relays peer notifications to presentation and reacts to the peer
// leaving.
func (c *Controller) forward(manager *peer.Manager) {
	for {
		select {
		case n := <-manager.Notifications():
			c.emit(Event{Kind: EventPeer, Peer: n})
			if n.Kind == peer.NotifyPeerLeft {
				// The peer already knows it left: tear down without
				// echoing bye back, and land in the distinct
				// partner-left state.
				c.teardown(context.Background(), false, PhasePartnerLeft)
			}
		case <-manager.Done():
			return
		}
	}
}

// Stop ends the current search or pairing on the user's initiative: bye
// first, then room cleanup, then local teardown. Safe to call repeatedly
// and in any phase.
func (c *Controller) Stop(ctx context.Context) {
	c.teardown(ctx, true, PhaseIdle)
}

// Next stops the current pairing and immediately searches again in the same
// mode.
func (c *Controller) Next(ctx context.Context) error {
	c.teardown(ctx, true, PhaseIdle)
	sess, err := c.deps.Session.Current()
	if err != nil {
		return err
	}
	return c.StartSearch(ctx, sess.HasVideo)
}

// Report files an abuse report against the current partner, fire and
// forget, then stops. Report failures are logged, never surfaced as fatal.
func (c *Controller) Report(ctx context.Context, reason string) {
	c.mu.Lock()
	sess, _ := c.deps.Session.Current()
	report := backend.Report{
		ReporterID: sess.ID,
		ReportedID: c.partnerID,
		RoomID:     c.roomID,
		Reason:     reason,
	}
	c.mu.Unlock()

	if report.RoomID != "" {
		if err := c.deps.Backend.FileReport(ctx, report); err != nil {
			slog.Error("report failed", "error", err)
		}
	}
	c.teardown(ctx, true, PhaseIdle)
}

// Shutdown is the process-exit path: best-effort local teardown only. The
// peer's room-deletion listener is the backstop that detects our absence.
func (c *Controller) Shutdown(ctx context.Context) {
	c.teardown(ctx, false, PhaseIdle)
}

func (c *Controller) teardown(ctx context.Context, sendBye bool, nextPhase Phase) {
	c.mu.Lock()
	manager := c.manager
	closeLink := c.closeLink
	roomID := c.roomID
	cancelSearch := c.searchCancel
	c.manager = nil
	c.closeLink = nil
	c.roomID = ""
	c.partnerID = ""
	c.searchCancel = nil
	c.mu.Unlock()

	if manager != nil && sendBye {
		manager.SendBye()
	}

	if roomID != "" {
		// Remember the id before deleting so a stale passive-match poll
		// cannot resurrect the pairing.
		c.matchmaker.RememberDeleted(roomID)
		if err := c.deps.Backend.DeleteRoom(ctx, roomID); err != nil {
			slog.Error("room cleanup failed", "room", roomID, "error", err)
			c.emit(Event{Kind: EventWarning, Warning: "cleanup incomplete, a stale room may linger"})
		}
	}

	if manager != nil {
		manager.Close()
	}
	// The search context stays alive through adoption as the manager's
	// parent; cancel it only after the manager has wound down.
	if cancelSearch != nil {
		cancelSearch()
	}
	if closeLink != nil {
		closeLink()
	}
	c.deps.Media.Release()

	c.mu.Lock()
	c.setPhaseLocked(nextPhase)
	c.mu.Unlock()
}

func (c *Controller) setPhaseLocked(phase Phase) {
	if c.phase == phase {
		return
	}
	c.phase = phase
	c.emit(Event{Kind: EventPhase, Phase: phase})
}

func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		slog.Debug("pairing event dropped", "kind", ev.Kind)
	}
}
