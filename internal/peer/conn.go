package peer

import (
	pion "github.com/pion/webrtc/v4"
)

// Conn is the slice of a WebRTC peer connection the handshake state machine
// needs. The only production implementation wraps pion; tests drive the
// state machine through a scripted fake instead of running ICE.
type Conn interface {
	CreateDataChannel(label string) (DataChannel, error)
	CreateOffer() (pion.SessionDescription, error)
	CreateAnswer() (pion.SessionDescription, error)
	SetLocalDescription(desc pion.SessionDescription) error
	SetRemoteDescription(desc pion.SessionDescription) error
	RemoteDescription() *pion.SessionDescription
	SignalingState() pion.SignalingState
	AddICECandidate(candidate pion.ICECandidateInit) error
	AddTrack(track pion.TrackLocal) error

	OnICECandidate(func(pion.ICECandidateInit))
	OnDataChannel(func(DataChannel))
	OnTrack(func(*pion.TrackRemote))
	OnConnectionStateChange(func(pion.PeerConnectionState))

	Close() error
}

// DataChannel is the slice of a WebRTC data channel the manager needs.
type DataChannel interface {
	Label() string
	ReadyState() pion.DataChannelState
	Send(data []byte) error
	OnOpen(func())
	OnMessage(func(data []byte))
	OnClose(func())
}
