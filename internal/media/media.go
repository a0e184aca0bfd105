// Package media supplies local capture tracks for video mode. The core only
// decides whether tracks are requested at all; actual capture devices are
// presentation's concern, plugged in through Provider.
package media

import (
	"context"

	pion "github.com/pion/webrtc/v4"
)

// Provider acquires local media tracks. Acquisition is a separate, fallible
// step: a failure cancels the pending search, never a handshake already in
// flight.
type Provider interface {
	// Acquire returns the local tracks to add to the peer connection.
	Acquire(ctx context.Context) ([]pion.TrackLocal, error)

	// Release stops capture and frees the devices. Idempotent.
	Release()
}

// None is the provider for text-only mode: it never touches capture
// hardware.
func None() Provider {
	return noneProvider{}
}

type noneProvider struct{}

func (noneProvider) Acquire(context.Context) ([]pion.TrackLocal, error) { return nil, nil }

func (noneProvider) Release() {}

// Placeholder negotiates a video section without capturing anything: the
// local track carries no frames, but its presence makes the remote side's
// video flow in. Used where no capture integration exists.
func Placeholder() Provider {
	return &placeholderProvider{}
}

type placeholderProvider struct{}

func (p *placeholderProvider) Acquire(context.Context) ([]pion.TrackLocal, error) {
	track, err := pion.NewTrackLocalStaticSample(
		pion.RTPCodecCapability{MimeType: pion.MimeTypeVP8},
		"video", "whispr",
	)
	if err != nil {
		return nil, err
	}
	return []pion.TrackLocal{track}, nil
}

func (p *placeholderProvider) Release() {}
