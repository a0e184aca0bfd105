// Package protocol defines the wire formats shared by both peers: the
// room-scoped signaling events relayed through the backend, and the JSON
// envelopes exchanged over the application data channel once it opens.
package protocol

import (
	"encoding/json"

	pion "github.com/pion/webrtc/v4"
)

// Signaling event names carried on a room topic.
const (
	EventOffer       = "signal_offer"
	EventAnswer      = "signal_answer"
	EventICE         = "signal_ice"
	EventBye         = "signal_bye"
	EventRoomDeleted = "room_deleted"
)

// SignalMessage is one event on a room topic.
type SignalMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SDPPayload carries an offer or answer description.
type SDPPayload struct {
	SDP pion.SessionDescription `json:"sdp"`
}

// ICEPayload carries one network candidate.
type ICEPayload struct {
	Candidate pion.ICECandidateInit `json:"candidate"`
}

// NewSignal builds a SignalMessage with the given payload marshalled.
func NewSignal(event string, payload any) (SignalMessage, error) {
	msg := SignalMessage{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return SignalMessage{}, err
		}
		msg.Payload = data
	}
	return msg, nil
}

// Data channel envelope types.
const (
	EnvelopeChat   = "chat"
	EnvelopeTyping = "typing"
	EnvelopeEmoji  = "emoji"
)

// Envelope is one application message on the data channel.
type Envelope struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	IsTyping bool   `json:"isTyping,omitempty"`
	Emoji    string `json:"emoji,omitempty"`
}

// EncodeChat returns the wire form of a chat message.
func EncodeChat(text string) []byte {
	data, _ := json.Marshal(Envelope{Type: EnvelopeChat, Text: text})
	return data
}

// EncodeTyping returns the wire form of a typing indicator.
func EncodeTyping(isTyping bool) []byte {
	data, _ := json.Marshal(Envelope{Type: EnvelopeTyping, IsTyping: isTyping})
	return data
}

// EncodeEmoji returns the wire form of an emoji reaction.
func EncodeEmoji(emoji string) []byte {
	data, _ := json.Marshal(Envelope{Type: EnvelopeEmoji, Emoji: emoji})
	return data
}

// DecodeEnvelope parses an inbound data channel payload. Payloads that do
// not parse as JSON are treated as legacy plain-text chat rather than
// rejected, so an old peer never breaks the channel.
func DecodeEnvelope(data []byte) Envelope {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		return Envelope{Type: EnvelopeChat, Text: string(data)}
	}
	return env
}
