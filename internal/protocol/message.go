package protocol

import "encoding/json"

// Message defines the structure for all client-to-server and server-to-client
// websocket messages. Only the fields relevant to a given Type are set.
type Message struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId,omitempty"`

	// join-room, user-joined
	DisplayName string `json:"displayName,omitempty"`

	// connected, user-joined, user-left, screen-share-started/stopped
	ConnectionID string `json:"connectionId,omitempty"`

	// signal
	SignalType         SignalType      `json:"signalType,omitempty"`
	TargetConnectionID string          `json:"targetConnectionId,omitempty"`
	FromConnectionID   string          `json:"fromConnectionId,omitempty"`
	Payload            json.RawMessage `json:"payload,omitempty"`

	// room-users
	Members []MemberInfo `json:"members,omitempty"`
}

// MemberInfo is the public view of a room member.
type MemberInfo struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
}

// Client to server message types.
const (
	TypeJoinRoom         = "join-room"
	TypeLeaveRoom        = "leave-room"
	TypeSignal           = "signal"
	TypeScreenShareStart = "screen-share-start"
	TypeScreenShareStop  = "screen-share-stop"
)

// Server to client message types.
const (
	TypeConnected          = "connected"
	TypeRoomUsers          = "room-users"
	TypeUserJoined         = "user-joined"
	TypeUserLeft           = "user-left"
	TypeScreenShareStarted = "screen-share-started"
	TypeScreenShareStopped = "screen-share-stopped"
)

// SignalType is the kind of a relayed WebRTC signal.
type SignalType string

const (
	SignalOffer        SignalType = "offer"
	SignalAnswer       SignalType = "answer"
	SignalICECandidate SignalType = "ice-candidate"
)

// Valid reports whether t is one of the relayable signal kinds.
func (t SignalType) Valid() bool {
	switch t {
	case SignalOffer, SignalAnswer, SignalICECandidate:
		return true
	}
	return false
}

// MarshalJSON encodes room-users with an explicit empty members array so that
// a first arrival can tell "nobody here" apart from a malformed reply.
func (m Message) MarshalJSON() ([]byte, error) {
	type alias Message
	if m.Type == TypeRoomUsers && m.Members == nil {
		return json.Marshal(struct {
			alias
			Members []MemberInfo `json:"members"`
		}{alias: alias(m), Members: []MemberInfo{}})
	}
	return json.Marshal(alias(m))
}
