package signaling

import (
	"context"
	"sync"

	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const defaultSendBuffer = 256

// Gateway bridges websocket connections to the Router. It tracks live
// connections for shutdown only; all room state lives in the Registry.
type Gateway struct {
	router     *Router
	sendBuffer int
	newID      func() string

	conns sync.Map // connectionID -> *Conn
	wg    sync.WaitGroup
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithSendBuffer sets the per-connection outbound queue size.
func WithSendBuffer(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.sendBuffer = n
		}
	}
}

// WithIDGenerator overrides how connection IDs are assigned.
func WithIDGenerator(fn func() string) Option {
	return func(g *Gateway) {
		if fn != nil {
			g.newID = fn
		}
	}
}

// NewGateway creates a Gateway dispatching to router.
func NewGateway(router *Router, opts ...Option) *Gateway {
	g := &Gateway{
		router:     router,
		sendBuffer: defaultSendBuffer,
		newID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Router returns the router connections are dispatched to.
func (g *Gateway) Router() *Router {
	return g.router
}

// Serve takes ownership of an upgraded websocket connection: it assigns a
// connection ID, greets the client with it and starts the pumps.
func (g *Gateway) Serve(ws *websocket.Conn) *Conn {
	id := g.newID()
	l := log.With().Str("conn_id", id).Logger()

	c := newConn(id, ws, g, l)
	g.conns.Store(id, c)
	g.router.Register(id, c)

	l.Info().Str("remote_addr", ws.RemoteAddr().String()).Msg("New client connected")

	c.Send(&protocol.Message{Type: protocol.TypeConnected, ConnectionID: id})

	g.wg.Add(2)
	go func() {
		defer g.wg.Done()
		c.WritePump()
	}()
	go func() {
		defer g.wg.Done()
		c.ReadPump()
	}()

	return c
}

// Dispatch routes one decoded envelope from connID.
func (g *Gateway) Dispatch(connID string, msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeJoinRoom:
		if msg.RoomID == "" {
			log.Warn().Str("conn_id", connID).Msg("Dropping join without room id")
			return
		}
		g.router.Join(connID, msg.RoomID, msg.DisplayName)

	case protocol.TypeSignal:
		g.router.Relay(connID, msg)

	case protocol.TypeScreenShareStart:
		g.router.ScreenShare(connID, msg.RoomID, true)

	case protocol.TypeScreenShareStop:
		g.router.ScreenShare(connID, msg.RoomID, false)

	case protocol.TypeLeaveRoom:
		g.router.Leave(connID, msg.RoomID)

	default:
		log.Warn().Str("conn_id", connID).Str("type", msg.Type).Msg("Unknown message type")
	}
}

// disconnect runs the room cleanup for c exactly once.
func (g *Gateway) disconnect(c *Conn) {
	if _, loaded := g.conns.LoadAndDelete(c.ID); !loaded {
		return
	}
	c.log.Info().Msg("Client disconnected")
	g.router.Disconnect(c.ID)
}

// Shutdown closes every live connection and waits for their pumps to exit.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.conns.Range(func(_, v any) bool {
		v.(*Conn).Close()
		return true
	})
	g.router.Close()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
