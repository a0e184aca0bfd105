package peer

import (
	"errors"
	"fmt"
)

var (
	ErrPeerDisconnected = errors.New("peer disconnected")
	ErrChannelNotOpen   = errors.New("channel not open")
	ErrConnectionFailed = errors.New("connection failed")
)

// PeerError wraps a failure with the operation that produced it.
type PeerError struct {
	Op      string
	Err     error
	Details string
}

func (e *PeerError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PeerError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *PeerError {
	return &PeerError{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *PeerError {
	return &PeerError{Op: op, Err: err, Details: details}
}
