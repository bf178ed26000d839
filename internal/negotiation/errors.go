package negotiation

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownPeer         = errors.New("unknown peer")
	ErrNoRemoteDescription = errors.New("no remote description")
	ErrUnexpectedSignal    = errors.New("unexpected signal")
	ErrClosed              = errors.New("negotiator closed")
)

// Error describes a failed negotiation step toward one peer.
type Error struct {
	Op   string
	Peer string
	Err  error
}

func (e *Error) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Peer, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, peer string, err error) *Error {
	return &Error{Op: op, Peer: peer, Err: err}
}
