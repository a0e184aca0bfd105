// Package peer owns the direct peer-to-peer connection for one pairing: it
// drives the offer/answer/candidate handshake over the signaling channel,
// manages the ordered chat data channel on top of it, and surfaces
// connection state to presentation.
//
// All handshake and channel state is mutated by a single event loop; the
// pion callbacks and the public send methods only post typed events onto
// its queue.
package peer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"

	"github.com/JreyForFun/Whispr/internal/protocol"
	"github.com/JreyForFun/Whispr/internal/signaling"
)

// Role is the side of the handshake assigned by matchmaking. Exactly one
// side offers; the other only answers.
type Role int

const (
	RoleInitiator Role = iota
	RoleAnswerer
)

// Sender tags who produced a chat message.
type Sender string

const (
	SenderMe   Sender = "me"
	SenderThem Sender = "them"
)

// Message is one entry in the chat transcript.
type Message struct {
	Sender Sender
	Text   string
}

// NotificationKind discriminates Notification.
type NotificationKind int

const (
	NotifyState NotificationKind = iota
	NotifyMessage
	NotifyTyping
	NotifyEmoji
	NotifyRemoteTrack
	NotifyPeerLeft
	NotifyConnectionLost
	NotifyError
)

// Notification is one observable event for presentation.
type Notification struct {
	Kind     NotificationKind
	State    pion.PeerConnectionState
	Message  Message
	IsTyping bool
	Emoji    string
	Track    *pion.TrackRemote
	Err      error
}

// SignalSender delivers signaling events to the peer, best-effort.
type SignalSender interface {
	Send(msg *protocol.SignalMessage)
}

// Signals are the typed inbound signaling channels for one room.
type Signals struct {
	Offers      <-chan *protocol.SDPPayload
	Answers     <-chan *protocol.SDPPayload
	Candidates  <-chan *protocol.ICEPayload
	Byes        <-chan struct{}
	RoomDeleted <-chan struct{}
}

// SignalsFromHandler adapts a signaling handler's channels.
func SignalsFromHandler(h *signaling.Handler) Signals {
	return Signals{
		Offers:      h.Offers,
		Answers:     h.Answers,
		Candidates:  h.Candidates,
		Byes:        h.Byes,
		RoomDeleted: h.RoomDeleted,
	}
}

const chatChannelLabel = "chat"

type eventKind int

const (
	evLocalCandidate eventKind = iota
	evConnState
	evDataChannel
	evChannelOpen
	evChannelMessage
	evChannelClose
	evRemoteTrack
	evSendChat
	evSendTyping
	evSendEmoji
)

type event struct {
	kind      eventKind
	candidate pion.ICECandidateInit
	state     pion.PeerConnectionState
	channel   DataChannel
	data      []byte
	text      string
	flag      bool
	track     *pion.TrackRemote
}

// Options configure a Manager.
type Options struct {
	Role               Role
	OfferRetryInterval time.Duration
	DisconnectGrace    time.Duration

	// LocalTracks are added before the offer/answer is created so their
	// descriptors are part of the negotiated session. Empty in text mode.
	LocalTracks []pion.TrackLocal
}

// Manager drives one peer connection from roomId-known to teardown.
type Manager struct {
	conn    Conn
	sender  SignalSender
	signals Signals
	opts    Options

	events        chan event
	notifications chan Notification

	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once

	mu            sync.Mutex
	state         pion.PeerConnectionState
	messages      []Message
	partnerTyping bool
}

// NewManager creates a manager over an existing Conn. Start must be called
// to begin the handshake.
func NewManager(conn Conn, sender SignalSender, signals Signals, opts Options) *Manager {
	if opts.OfferRetryInterval <= 0 {
		opts.OfferRetryInterval = time.Second
	}
	if opts.DisconnectGrace <= 0 {
		opts.DisconnectGrace = 500 * time.Millisecond
	}
	return &Manager{
		conn:          conn,
		sender:        sender,
		signals:       signals,
		opts:          opts,
		events:        make(chan event, 64),
		notifications: make(chan Notification, 128),
		done:          make(chan struct{}),
		state:         pion.PeerConnectionStateNew,
	}
}

// Start wires the connection callbacks and launches the event loop. For the
// initiator this also creates the data channel and begins the offer retry
// loop.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.conn.OnICECandidate(func(candidate pion.ICECandidateInit) {
		m.post(event{kind: evLocalCandidate, candidate: candidate})
	})
	m.conn.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		m.post(event{kind: evConnState, state: state})
	})
	m.conn.OnDataChannel(func(dc DataChannel) {
		m.post(event{kind: evDataChannel, channel: dc})
	})
	m.conn.OnTrack(func(track *pion.TrackRemote) {
		m.post(event{kind: evRemoteTrack, track: track})
	})

	for _, track := range m.opts.LocalTracks {
		if err := m.conn.AddTrack(track); err != nil {
			m.notify(Notification{Kind: NotifyError, Err: NewError("add track", err)})
		}
	}

	go m.run(ctx)
}

// Notifications is the stream of observable events for presentation.
func (m *Manager) Notifications() <-chan Notification {
	return m.notifications
}

// Done is closed when the event loop has exited. Consumers of
// Notifications select on it to stop.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// ConnectionState returns the last observed connection state.
func (m *Manager) ConnectionState() pion.PeerConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Messages returns a snapshot of the transcript in order.
func (m *Manager) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// PartnerTyping reports whether the partner is currently typing.
func (m *Manager) PartnerTyping() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.partnerTyping
}

// SendChat sends a chat message. The local echo happens unconditionally;
// delivery is queued until the data channel opens.
func (m *Manager) SendChat(text string) {
	m.post(event{kind: evSendChat, text: text})
}

// SendTyping sends the typing indicator. Typing state is ephemeral and is
// dropped rather than queued when the channel is not open.
func (m *Manager) SendTyping(isTyping bool) {
	m.post(event{kind: evSendTyping, flag: isTyping})
}

// SendEmoji sends an emoji reaction. Dropped when the channel is not open.
func (m *Manager) SendEmoji(emoji string) {
	m.post(event{kind: evSendEmoji, text: emoji})
}

// SendBye tells the peer we are leaving. It writes through the signaling
// sender directly rather than via the event loop, so the bye is on the wire
// before any teardown that follows, even when Close comes immediately after.
func (m *Manager) SendBye() {
	msg, err := protocol.NewSignal(protocol.EventBye, nil)
	if err != nil {
		return
	}
	m.sender.Send(&msg)
}

// Close tears the connection down. Idempotent: safe to call from any state
// and any number of times.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
			<-m.done
		}
		m.conn.Close()

		m.mu.Lock()
		m.state = pion.PeerConnectionStateClosed
		m.messages = nil
		m.partnerTyping = false
		m.mu.Unlock()
	})
}

// post hands an event to the loop without ever blocking a pion callback. A
// full queue means the loop is gone or wedged; dropping is the lesser evil.
func (m *Manager) post(ev event) {
	select {
	case m.events <- ev:
	case <-m.done:
	default:
		slog.Warn("peer event queue full, dropping event", "kind", ev.kind)
	}
}

func (m *Manager) notify(n Notification) {
	select {
	case m.notifications <- n:
	default:
		slog.Debug("notification dropped, consumer not keeping up", "kind", n.Kind)
	}
}

// loopState is the mutable handshake state owned by run.
type loopState struct {
	dc DataChannel

	// Candidates received before the remote description exists, applied in
	// receipt order the moment it is set.
	pendingCandidates []pion.ICECandidateInit

	// Chat payloads waiting for the data channel to open, flushed in send
	// order.
	sendQueue [][]byte

	offerMsg *protocol.SignalMessage
	peerLeft bool
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	state := &loopState{}

	retry := time.NewTicker(m.opts.OfferRetryInterval)
	retry.Stop()
	var retryActive bool

	grace := time.NewTimer(m.opts.DisconnectGrace)
	if !grace.Stop() {
		<-grace.C
	}
	var graceActive bool

	if m.opts.Role == RoleInitiator {
		if err := m.startOffer(state); err != nil {
			m.notify(Notification{Kind: NotifyError, Err: err})
		} else {
			retry.Reset(m.opts.OfferRetryInterval)
			retryActive = true
		}
	}

	stopRetry := func() {
		if retryActive {
			retry.Stop()
			retryActive = false
		}
	}

	for {
		select {
		case <-ctx.Done():
			stopRetry()
			if graceActive {
				grace.Stop()
			}
			return

		case <-retry.C:
			if m.conn.RemoteDescription() != nil || state.peerLeft {
				stopRetry()
				continue
			}
			slog.Debug("resending offer")
			m.sender.Send(state.offerMsg)

		case <-grace.C:
			graceActive = false
			m.notify(Notification{
				Kind: NotifyConnectionLost,
				Err:  WrapError("connection", ErrConnectionFailed, m.ConnectionState().String()),
			})

		case payload := <-m.signals.Offers:
			m.handleOffer(state, payload)

		case payload := <-m.signals.Answers:
			if m.handleAnswer(state, payload) {
				stopRetry()
			}

		case payload := <-m.signals.Candidates:
			m.handleRemoteCandidate(state, payload.Candidate)

		case <-m.signals.Byes:
			m.handlePeerLeft(state)

		case <-m.signals.RoomDeleted:
			// Zombie protection: the peer may have crashed without sending
			// bye, but its room deletion reaches us through the backend.
			m.handlePeerLeft(state)

		case ev := <-m.events:
			switch ev.kind {

			case evLocalCandidate:
				msg, err := protocol.NewSignal(protocol.EventICE, protocol.ICEPayload{Candidate: ev.candidate})
				if err != nil {
					slog.Warn("encode ICE candidate", "error", err)
					continue
				}
				m.sender.Send(&msg)

			case evConnState:
				m.setState(ev.state)
				m.notify(Notification{Kind: NotifyState, State: ev.state})
				switch ev.state {
				case pion.PeerConnectionStateDisconnected, pion.PeerConnectionStateFailed:
					if !graceActive {
						grace.Reset(m.opts.DisconnectGrace)
						graceActive = true
					}
				case pion.PeerConnectionStateConnected:
					if graceActive {
						if !grace.Stop() {
							<-grace.C
						}
						graceActive = false
					}
				}

			case evDataChannel:
				// Answerer path: the channel arrives with the offer.
				m.setupDataChannel(ev.channel)
				state.dc = ev.channel

			case evChannelOpen:
				for _, payload := range state.sendQueue {
					if err := state.dc.Send(payload); err != nil {
						slog.Warn("flush queued message", "error", err)
					}
				}
				state.sendQueue = nil

			case evChannelMessage:
				m.handleEnvelope(protocol.DecodeEnvelope(ev.data))

			case evChannelClose:
				m.setPartnerTyping(false)
				m.notify(Notification{Kind: NotifyTyping, IsTyping: false})

			case evRemoteTrack:
				m.notify(Notification{Kind: NotifyRemoteTrack, Track: ev.track})

			case evSendChat:
				m.appendMessage(Message{Sender: SenderMe, Text: ev.text})
				payload := protocol.EncodeChat(ev.text)
				if state.dc != nil && state.dc.ReadyState() == pion.DataChannelStateOpen {
					if err := state.dc.Send(payload); err != nil {
						slog.Warn("send chat", "error", err)
					}
				} else {
					state.sendQueue = append(state.sendQueue, payload)
				}

			case evSendTyping:
				if state.dc != nil && state.dc.ReadyState() == pion.DataChannelStateOpen {
					state.dc.Send(protocol.EncodeTyping(ev.flag))
				}

			case evSendEmoji:
				if state.dc != nil && state.dc.ReadyState() == pion.DataChannelStateOpen {
					state.dc.Send(protocol.EncodeEmoji(ev.text))
				}
			}
		}
	}
}

// startOffer creates the data channel first so its descriptor is embedded
// in the offer, then applies and sends the offer. The identical message is
// resent by the retry loop until an answer arrives.
func (m *Manager) startOffer(state *loopState) error {
	dc, err := m.conn.CreateDataChannel(chatChannelLabel)
	if err != nil {
		return err
	}
	m.setupDataChannel(dc)
	state.dc = dc

	offer, err := m.conn.CreateOffer()
	if err != nil {
		return NewError("create offer", err)
	}
	if err := m.conn.SetLocalDescription(offer); err != nil {
		return NewError("set local description", err)
	}

	msg, err := protocol.NewSignal(protocol.EventOffer, protocol.SDPPayload{SDP: offer})
	if err != nil {
		return NewError("encode offer", err)
	}
	state.offerMsg = &msg
	m.sender.Send(state.offerMsg)
	return nil
}

// handleOffer is the answerer path. Duplicate offers (the initiator resends
// until answered) and glare (an offer arriving while we are mid-negotiation
// ourselves) are both discarded.
func (m *Manager) handleOffer(state *loopState, payload *protocol.SDPPayload) {
	if m.conn.RemoteDescription() != nil {
		slog.Debug("ignoring duplicate offer, remote description already set")
		return
	}
	if m.conn.SignalingState() != pion.SignalingStateStable {
		slog.Warn("ignoring offer collision in non-stable state")
		return
	}

	if err := m.conn.SetRemoteDescription(payload.SDP); err != nil {
		m.notify(Notification{Kind: NotifyError, Err: NewError("set remote description", err)})
		return
	}
	m.flushCandidates(state)

	answer, err := m.conn.CreateAnswer()
	if err != nil {
		m.notify(Notification{Kind: NotifyError, Err: NewError("create answer", err)})
		return
	}
	if err := m.conn.SetLocalDescription(answer); err != nil {
		m.notify(Notification{Kind: NotifyError, Err: NewError("set local description", err)})
		return
	}

	msg, err := protocol.NewSignal(protocol.EventAnswer, protocol.SDPPayload{SDP: answer})
	if err != nil {
		m.notify(Notification{Kind: NotifyError, Err: NewError("encode answer", err)})
		return
	}
	m.sender.Send(&msg)
}

// handleAnswer is the initiator path. Returns true when the answer was
// applied and the offer retry loop should stop.
func (m *Manager) handleAnswer(state *loopState, payload *protocol.SDPPayload) bool {
	if m.conn.RemoteDescription() != nil {
		slog.Debug("ignoring duplicate answer")
		return true
	}
	if err := m.conn.SetRemoteDescription(payload.SDP); err != nil {
		m.notify(Notification{Kind: NotifyError, Err: NewError("set remote description", err)})
		return false
	}
	m.flushCandidates(state)
	return true
}

// handleRemoteCandidate applies a candidate immediately when a remote
// description exists, otherwise buffers it. Applying before the description
// is set fails, so ordering here is load-bearing.
func (m *Manager) handleRemoteCandidate(state *loopState, candidate pion.ICECandidateInit) {
	if m.conn.RemoteDescription() == nil {
		state.pendingCandidates = append(state.pendingCandidates, candidate)
		return
	}
	if err := m.conn.AddICECandidate(candidate); err != nil {
		slog.Warn("add ICE candidate", "error", err)
	}
}

func (m *Manager) flushCandidates(state *loopState) {
	for _, candidate := range state.pendingCandidates {
		if err := m.conn.AddICECandidate(candidate); err != nil {
			slog.Warn("add queued ICE candidate", "error", err)
		}
	}
	state.pendingCandidates = nil
}

func (m *Manager) handlePeerLeft(state *loopState) {
	if state.peerLeft {
		return
	}
	state.peerLeft = true
	m.setPartnerTyping(false)
	m.notify(Notification{Kind: NotifyPeerLeft, Err: ErrPeerDisconnected})
}

func (m *Manager) setupDataChannel(dc DataChannel) {
	dc.OnOpen(func() {
		m.post(event{kind: evChannelOpen})
	})
	dc.OnMessage(func(data []byte) {
		m.post(event{kind: evChannelMessage, data: data})
	})
	dc.OnClose(func() {
		m.post(event{kind: evChannelClose})
	})
}

func (m *Manager) handleEnvelope(env protocol.Envelope) {
	switch env.Type {
	case protocol.EnvelopeChat:
		m.setPartnerTyping(false)
		m.appendMessage(Message{Sender: SenderThem, Text: env.Text})
	case protocol.EnvelopeTyping:
		m.setPartnerTyping(env.IsTyping)
		m.notify(Notification{Kind: NotifyTyping, IsTyping: env.IsTyping})
	case protocol.EnvelopeEmoji:
		m.notify(Notification{Kind: NotifyEmoji, Emoji: env.Emoji})
	default:
		slog.Debug("ignoring unknown envelope type", "type", env.Type)
	}
}

func (m *Manager) appendMessage(msg Message) {
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()
	m.notify(Notification{Kind: NotifyMessage, Message: msg})
}

func (m *Manager) setState(state pion.PeerConnectionState) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

func (m *Manager) setPartnerTyping(isTyping bool) {
	m.mu.Lock()
	m.partnerTyping = isTyping
	m.mu.Unlock()
}
