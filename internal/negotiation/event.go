package negotiation

// State is the negotiation progress toward one remote peer.
type State string

const (
	StateIdle           State = "idle"
	StateAwaitingAnswer State = "awaiting-answer"
	StateConnected      State = "connected"
	StateDisconnected   State = "disconnected"
)

// EventKind tells what changed in an Event.
type EventKind int

const (
	EventPeerAdded EventKind = iota
	EventPeerState
	EventPeerPresenting
	EventPeerRemoved
	EventLocalPresenting
)

// Event reports a change the call view should render.
type Event struct {
	Kind        EventKind
	PeerID      string
	DisplayName string
	Initiator   bool
	State       State
	Presenting  bool
}

// PeerStatus is a snapshot of one remote peer.
type PeerStatus struct {
	ID          string
	DisplayName string
	Initiator   bool
	State       State
	Presenting  bool
}
