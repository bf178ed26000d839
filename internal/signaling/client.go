package signaling

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // 64 KB - enough for WebRTC SDP messages
)

// ErrSendBufferFull is returned when a slow connection's outbound queue is full.
var ErrSendBufferFull = errors.New("send buffer full")

// Conn is a single participant's websocket connection.
type Conn struct {
	ID string

	ws      *websocket.Conn
	gateway *Gateway
	log     zerolog.Logger

	// send is a buffered queue drained by WritePump.
	send chan *protocol.Message

	done      chan struct{}
	closeOnce sync.Once
}

func newConn(id string, ws *websocket.Conn, g *Gateway, l zerolog.Logger) *Conn {
	return &Conn{
		ID:      id,
		ws:      ws,
		gateway: g,
		log:     l,
		send:    make(chan *protocol.Message, g.sendBuffer),
		done:    make(chan struct{}),
	}
}

// Send queues msg for delivery without blocking.
func (c *Conn) Send(msg *protocol.Message) error {
	select {
	case <-c.done:
		return ErrSinkClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ErrSinkClosed
	default:
		return ErrSendBufferFull
	}
}

// Close stops both pumps. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// ReadPump pumps messages from the websocket connection to the gateway.
//
// The application runs ReadPump in a per-connection goroutine. All dispatch
// for a connection, including its final disconnect cleanup, happens on this
// goroutine.
func (c *Conn) ReadPump() {
	defer func() {
		c.gateway.disconnect(c)
		c.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("Unexpected close error")
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn().Err(err).Msg("Dropping malformed message")
			continue
		}

		c.gateway.Dispatch(c.ID, &msg)
	}
}

// WritePump pumps messages from the send queue to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(message); err != nil {
				c.log.Debug().Err(err).Msg("Write failed")
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
