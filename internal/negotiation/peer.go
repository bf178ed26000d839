package negotiation

import (
	"encoding/json"

	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/protocol"
)

// TransportState is the connectivity of one peer's media transport.
type TransportState int

const (
	TransportNew TransportState = iota
	TransportConnecting
	TransportConnected
	TransportDisconnected
	TransportFailed
	TransportClosed
)

func (s TransportState) String() string {
	switch s {
	case TransportNew:
		return "new"
	case TransportConnecting:
		return "connecting"
	case TransportConnected:
		return "connected"
	case TransportDisconnected:
		return "disconnected"
	case TransportFailed:
		return "failed"
	case TransportClosed:
		return "closed"
	}
	return "unknown"
}

// PeerCallbacks receive asynchronous notifications from a Peer. They may be
// invoked from any goroutine.
type PeerCallbacks struct {
	// OnICECandidate carries a local candidate in its JSON wire form.
	OnICECandidate func(candidate json.RawMessage)
	OnStateChange  func(state TransportState)
}

// Peer is one media session toward a remote participant. Descriptions and
// candidates travel in their JSON wire form and are opaque to the
// negotiator.
type Peer interface {
	// CreateOffer creates an offer and applies it as the local description.
	CreateOffer() (json.RawMessage, error)
	// AcceptOffer applies a remote offer and returns the local answer.
	AcceptOffer(offer json.RawMessage) (json.RawMessage, error)
	// AcceptAnswer applies a remote answer.
	AcceptAnswer(answer json.RawMessage) error
	// AddICECandidate applies a remote candidate. It fails with
	// ErrNoRemoteDescription until a remote description is set.
	AddICECandidate(candidate json.RawMessage) error
	// SetScreenShare swaps the outgoing video source without renegotiating.
	SetScreenShare(on bool) error
	Close() error
}

// Engine creates media sessions.
type Engine interface {
	NewPeer(peerID string, cb PeerCallbacks) (Peer, error)
}

// Signaler delivers envelopes to the signaling server.
type Signaler interface {
	Send(msg *protocol.Message) error
}
