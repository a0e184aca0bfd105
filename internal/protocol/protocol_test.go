package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeEnvelope(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want Envelope
	}{
		{
			name: "chat",
			data: EncodeChat("hi"),
			want: Envelope{Type: EnvelopeChat, Text: "hi"},
		},
		{
			name: "typing",
			data: EncodeTyping(true),
			want: Envelope{Type: EnvelopeTyping, IsTyping: true},
		},
		{
			name: "emoji",
			data: EncodeEmoji("🔥"),
			want: Envelope{Type: EnvelopeEmoji, Emoji: "🔥"},
		},
		{
			name: "legacy plain text falls back to chat",
			data: []byte("hello there"),
			want: Envelope{Type: EnvelopeChat, Text: "hello there"},
		},
		{
			name: "json without discriminator falls back to chat",
			data: []byte(`{"text":"x"}`),
			want: Envelope{Type: EnvelopeChat, Text: `{"text":"x"}`},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got := DecodeEnvelope(test.data)
			if got != test.want {
				t.Errorf("DecodeEnvelope(%q) = %+v, want %+v", test.data, got, test.want)
			}
		})
	}
}

func TestNewSignalCarriesPayload(t *testing.T) {
	t.Parallel()
	msg, err := NewSignal(EventICE, ICEPayload{})
	if err != nil {
		t.Fatalf("NewSignal: %v", err)
	}
	if msg.Event != EventICE {
		t.Errorf("event: got %q", msg.Event)
	}

	var payload ICEPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Errorf("payload round trip: %v", err)
	}
}

func TestNewSignalWithoutPayload(t *testing.T) {
	t.Parallel()
	msg, err := NewSignal(EventBye, nil)
	if err != nil {
		t.Fatalf("NewSignal: %v", err)
	}
	if msg.Payload != nil {
		t.Errorf("bye should carry no payload, got %s", msg.Payload)
	}
}
