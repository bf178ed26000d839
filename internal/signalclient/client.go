// Package signalclient is the participant side of the signaling websocket.
package signalclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/dns"
	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	handshakeWait  = 10 * time.Second
)

var (
	ErrClosed       = errors.New("signaling connection closed")
	ErrNoGreeting   = errors.New("server did not assign a connection id")
	ErrNotConnected = errors.New("signaling client not connected")
)

// Client manages the WebSocket connection to the signaling server.
type Client struct {
	serverURL string
	resolver  *dns.Resolver

	conn     *websocket.Conn
	id       string
	incoming chan *protocol.Message
	outgoing chan *protocol.Message

	// mu is held by Send across its enqueue and by the write pump while it
	// stops, so a message accepted by Send is never queued behind the final
	// flush.
	mu      sync.Mutex
	stopped bool

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a signaling client for serverURL.
func New(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		resolver:  dns.NewResolver(),
		incoming:  make(chan *protocol.Message, 32),
		outgoing:  make(chan *protocol.Message, 32),
		done:      make(chan struct{}),
	}
}

// Connect dials the server, waits for the connection greeting and starts
// the pumps.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	dialer := *websocket.DefaultDialer
	dialer.NetDialContext = c.resolver.DialContext

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	// The first frame is always the greeting carrying our connection id.
	conn.SetReadDeadline(time.Now().Add(handshakeWait))
	var hello protocol.Message
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return fmt.Errorf("read greeting: %w", err)
	}
	if hello.Type != protocol.TypeConnected || hello.ConnectionID == "" {
		conn.Close()
		return ErrNoGreeting
	}

	c.conn = conn
	c.id = hello.ConnectionID

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	log.Debug().Str("conn_id", c.id).Str("server", c.serverURL).Msg("Connected to signaling server")
	return nil
}

// ID is the connection id assigned by the server.
func (c *Client) ID() string {
	return c.id
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Signaling connection lost")
			}
			return
		}

		select {
		case c.incoming <- &msg:
		case <-c.done:
			return
		}
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.stop(false)
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				log.Warn().Err(err).Str("type", message.Type).Msg("Failed to write signaling message")
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.stop(true)
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// stop refuses further sends. With flush it first writes what is already
// queued, such as a final leave-room.
func (c *Client) stop(flush bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	if !flush {
		return
	}
	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Send queues msg for the server. It returns ErrClosed once the connection
// is shutting down. A message accepted while Close is racing is still
// written before the close frame.
func (c *Client) Send(msg *protocol.Message) error {
	if c.conn == nil {
		return ErrNotConnected
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrClosed
	}

	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Incoming returns the channel of server messages. It is closed when the
// connection ends.
func (c *Client) Incoming() <-chan *protocol.Message {
	return c.incoming
}

// Done is closed once the connection is shutting down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close ends the connection. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
