package signalclient

import (
	"context"

	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/protocol"
)

// Handler consumes server messages.
type Handler interface {
	HandleMessage(msg *protocol.Message)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(msg *protocol.Message)

func (f HandlerFunc) HandleMessage(msg *protocol.Message) { f(msg) }

// Listen forwards incoming messages to h until ctx is cancelled or the
// connection ends. It returns ErrClosed when the server went away.
func (c *Client) Listen(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c.incoming:
			if !ok {
				return ErrClosed
			}
			h.HandleMessage(msg)
		}
	}
}

// JoinRoom asks the server to add us to roomID.
func (c *Client) JoinRoom(roomID, displayName string) error {
	return c.Send(&protocol.Message{
		Type:        protocol.TypeJoinRoom,
		RoomID:      roomID,
		DisplayName: displayName,
	})
}

// LeaveRoom asks the server to remove us from roomID.
func (c *Client) LeaveRoom(roomID string) error {
	return c.Send(&protocol.Message{Type: protocol.TypeLeaveRoom, RoomID: roomID})
}
