package webrtc

import "github.com/vmihailenco/msgpack/v5"

// ControlLabel is the label of the pre-negotiated control data channel.
const ControlLabel = "control"

// Control message types.
const (
	ControlHello = "hello"
)

// ControlMessage represents all control data channel messages
type ControlMessage struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// ParticipantInfo is exchanged once the control channel opens.
type ParticipantInfo struct {
	DisplayName string `msgpack:"displayName"`
	Client      string `msgpack:"client"`
	Version     string `msgpack:"version"`
}

// DecodePayload decodes the message payload into the provided struct
func (m ControlMessage) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// NewControlMessage creates a ControlMessage with the given type and payload
func NewControlMessage(t string, payload any) (ControlMessage, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return ControlMessage{}, err
	}

	return ControlMessage{
		Type:    t,
		Payload: b,
	}, nil
}

func encodeControl(t string, payload any) ([]byte, error) {
	msg, err := NewControlMessage(t, payload)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(msg)
}

func decodeControl(data []byte) (ControlMessage, error) {
	var msg ControlMessage
	err := msgpack.Unmarshal(data, &msg)
	return msg, err
}
