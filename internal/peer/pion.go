package peer

import (
	pion "github.com/pion/webrtc/v4"

	"github.com/JreyForFun/Whispr/internal/config"
)

// NewConn creates a pion-backed Conn with ICE servers from config.
func NewConn(cfg *config.Config) (Conn, error) {
	iceServers := []pion.ICEServer{{URLs: cfg.GetSTUNServers()}}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers: iceServers,
	})
	if err != nil {
		return nil, NewError("create peer connection", err)
	}
	return &pionConn{pc: pc}, nil
}

type pionConn struct {
	pc *pion.PeerConnection
}

func (c *pionConn) CreateDataChannel(label string) (DataChannel, error) {
	ordered := true
	dc, err := c.pc.CreateDataChannel(label, &pion.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, NewError("create data channel", err)
	}
	return &pionChannel{dc: dc}, nil
}

func (c *pionConn) CreateOffer() (pion.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *pionConn) CreateAnswer() (pion.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *pionConn) SetLocalDescription(desc pion.SessionDescription) error {
	return c.pc.SetLocalDescription(desc)
}

func (c *pionConn) SetRemoteDescription(desc pion.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *pionConn) RemoteDescription() *pion.SessionDescription {
	return c.pc.RemoteDescription()
}

func (c *pionConn) SignalingState() pion.SignalingState {
	return c.pc.SignalingState()
}

func (c *pionConn) AddICECandidate(candidate pion.ICECandidateInit) error {
	return c.pc.AddICECandidate(candidate)
}

func (c *pionConn) AddTrack(track pion.TrackLocal) error {
	_, err := c.pc.AddTrack(track)
	return err
}

func (c *pionConn) OnICECandidate(fn func(pion.ICECandidateInit)) {
	c.pc.OnICECandidate(func(candidate *pion.ICECandidate) {
		if candidate == nil {
			return
		}
		fn(candidate.ToJSON())
	})
}

func (c *pionConn) OnDataChannel(fn func(DataChannel)) {
	c.pc.OnDataChannel(func(dc *pion.DataChannel) {
		fn(&pionChannel{dc: dc})
	})
}

func (c *pionConn) OnTrack(fn func(*pion.TrackRemote)) {
	c.pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		fn(track)
	})
}

func (c *pionConn) OnConnectionStateChange(fn func(pion.PeerConnectionState)) {
	c.pc.OnConnectionStateChange(fn)
}

func (c *pionConn) Close() error {
	return c.pc.Close()
}

type pionChannel struct {
	dc *pion.DataChannel
}

func (c *pionChannel) Label() string {
	return c.dc.Label()
}

func (c *pionChannel) ReadyState() pion.DataChannelState {
	return c.dc.ReadyState()
}

func (c *pionChannel) Send(data []byte) error {
	return c.dc.Send(data)
}

func (c *pionChannel) OnOpen(fn func()) {
	c.dc.OnOpen(fn)
}

func (c *pionChannel) OnMessage(fn func(data []byte)) {
	c.dc.OnMessage(func(msg pion.DataChannelMessage) {
		fn(msg.Data)
	})
}

func (c *pionChannel) OnClose(fn func()) {
	c.dc.OnClose(fn)
}
