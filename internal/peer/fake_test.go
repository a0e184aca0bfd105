package peer

import (
	"errors"
	"sync"

	pion "github.com/pion/webrtc/v4"

	"github.com/JreyForFun/Whispr/internal/protocol"
)

// fakeConn scripts the parts of a peer connection the state machine touches,
// mirroring the real ordering rules (candidates cannot be applied before a
// remote description exists).
type fakeConn struct {
	mu sync.Mutex

	local          *pion.SessionDescription
	remote         *pion.SessionDescription
	signalingState pion.SignalingState

	applied []pion.ICECandidateInit

	onICE   func(pion.ICECandidateInit)
	onDC    func(DataChannel)
	onTrack func(*pion.TrackRemote)
	onState func(pion.PeerConnectionState)

	created *fakeChannel
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{signalingState: pion.SignalingStateStable}
}

func (c *fakeConn) CreateDataChannel(label string) (DataChannel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created = &fakeChannel{label: label, state: pion.DataChannelStateConnecting}
	return c.created, nil
}

func (c *fakeConn) CreateOffer() (pion.SessionDescription, error) {
	return pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: "v=0 fake-offer"}, nil
}

func (c *fakeConn) CreateAnswer() (pion.SessionDescription, error) {
	return pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: "v=0 fake-answer"}, nil
}

func (c *fakeConn) SetLocalDescription(desc pion.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local = &desc
	if desc.Type == pion.SDPTypeOffer {
		c.signalingState = pion.SignalingStateHaveLocalOffer
	} else {
		c.signalingState = pion.SignalingStateStable
	}
	return nil
}

func (c *fakeConn) SetRemoteDescription(desc pion.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remote = &desc
	if desc.Type == pion.SDPTypeOffer {
		c.signalingState = pion.SignalingStateHaveRemoteOffer
	} else {
		c.signalingState = pion.SignalingStateStable
	}
	return nil
}

func (c *fakeConn) RemoteDescription() *pion.SessionDescription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

func (c *fakeConn) SignalingState() pion.SignalingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signalingState
}

func (c *fakeConn) AddICECandidate(candidate pion.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remote == nil {
		return errors.New("remote description not set")
	}
	c.applied = append(c.applied, candidate)
	return nil
}

func (c *fakeConn) AddTrack(track pion.TrackLocal) error { return nil }

func (c *fakeConn) OnICECandidate(fn func(pion.ICECandidateInit)) { c.onICE = fn }

func (c *fakeConn) OnDataChannel(fn func(DataChannel)) { c.onDC = fn }

func (c *fakeConn) OnTrack(fn func(*pion.TrackRemote)) { c.onTrack = fn }

func (c *fakeConn) OnConnectionStateChange(fn func(pion.PeerConnectionState)) { c.onState = fn }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) appliedCandidates() []pion.ICECandidateInit {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]pion.ICECandidateInit, len(c.applied))
	copy(out, c.applied)
	return out
}

func (c *fakeConn) changeState(state pion.PeerConnectionState) {
	c.mu.Lock()
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}

func (c *fakeConn) deliverDataChannel(dc *fakeChannel) {
	c.mu.Lock()
	fn := c.onDC
	c.mu.Unlock()
	if fn != nil {
		fn(dc)
	}
}

type fakeChannel struct {
	mu    sync.Mutex
	label string
	state pion.DataChannelState
	sent  [][]byte

	onOpen    func()
	onMessage func([]byte)
	onClose   func()
}

func (c *fakeChannel) Label() string { return c.label }

func (c *fakeChannel) ReadyState() pion.DataChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeChannel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != pion.DataChannelStateOpen {
		return ErrChannelNotOpen
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeChannel) OnOpen(fn func())           { c.onOpen = fn }
func (c *fakeChannel) OnMessage(fn func([]byte))  { c.onMessage = fn }
func (c *fakeChannel) OnClose(fn func())          { c.onClose = fn }

func (c *fakeChannel) open() {
	c.mu.Lock()
	c.state = pion.DataChannelStateOpen
	fn := c.onOpen
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *fakeChannel) receive(data []byte) {
	c.mu.Lock()
	fn := c.onMessage
	c.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

func (c *fakeChannel) sentPayloads() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, payload := range c.sent {
		out[i] = string(payload)
	}
	return out
}

// fakeSender records every signaling message the manager sends.
type fakeSender struct {
	mu   sync.Mutex
	sent []*protocol.SignalMessage
}

func (s *fakeSender) Send(msg *protocol.SignalMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
}

func (s *fakeSender) countEvent(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, msg := range s.sent {
		if msg.Event == name {
			count++
		}
	}
	return count
}
