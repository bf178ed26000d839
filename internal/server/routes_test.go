package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/config"
	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/protocol"
	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/signaling"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, origins ...string) (*Server, *httptest.Server) {
	t.Helper()
	s := New(&config.ServerConfig{
		Addr:            "127.0.0.1:0",
		AllowedOrigins:  origins,
		SendBuffer:      16,
		ShutdownTimeout: time.Second,
	})
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return s, ts
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func dial(t *testing.T, ts *httptest.Server) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &wsClient{t: t, conn: conn}
	hello := c.expect(protocol.TypeConnected)
	require.NotEmpty(t, hello.ConnectionID)
	c.id = hello.ConnectionID
	return c
}

func (c *wsClient) send(msg protocol.Message) {
	require.NoError(c.t, c.conn.WriteJSON(msg))
}

func (c *wsClient) expect(msgType string) protocol.Message {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg protocol.Message
	require.NoError(c.t, c.conn.ReadJSON(&msg))
	require.Equal(c.t, msgType, msg.Type)
	return msg
}

func TestGatewayInterviewRoundTrip(t *testing.T) {
	s, ts := newTestServer(t)
	alice := dial(t, ts)
	bob := dial(t, ts)

	alice.send(protocol.Message{Type: protocol.TypeJoinRoom, RoomID: "r1", DisplayName: "Alice"})
	users := alice.expect(protocol.TypeRoomUsers)
	assert.Empty(t, users.Members)

	bob.send(protocol.Message{Type: protocol.TypeJoinRoom, RoomID: "r1", DisplayName: "Bob"})
	users = bob.expect(protocol.TypeRoomUsers)
	assert.Equal(t, []protocol.MemberInfo{{ConnectionID: alice.id, DisplayName: "Alice"}}, users.Members)

	joined := alice.expect(protocol.TypeUserJoined)
	assert.Equal(t, bob.id, joined.ConnectionID)
	assert.Equal(t, "Bob", joined.DisplayName)

	bob.send(protocol.Message{
		Type:               protocol.TypeSignal,
		RoomID:             "r1",
		SignalType:         protocol.SignalOffer,
		TargetConnectionID: alice.id,
		Payload:            json.RawMessage(`{"type":"offer","sdp":"v=0"}`),
	})
	signal := alice.expect(protocol.TypeSignal)
	assert.Equal(t, bob.id, signal.FromConnectionID)
	assert.Equal(t, protocol.SignalOffer, signal.SignalType)

	alice.conn.Close()
	left := bob.expect(protocol.TypeUserLeft)
	assert.Equal(t, alice.id, left.ConnectionID)

	registry := s.Gateway().Router().Registry()
	assert.False(t, registry.IsMember(alice.id, "r1"))

	bob.send(protocol.Message{Type: protocol.TypeLeaveRoom, RoomID: "r1"})
	require.Eventually(t, func() bool { return !registry.Exists("r1") }, 2*time.Second, 10*time.Millisecond)
}

func TestGatewayIgnoresBadInput(t *testing.T) {
	_, ts := newTestServer(t)
	alice := dial(t, ts)

	require.NoError(t, alice.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	alice.send(protocol.Message{Type: "teleport", RoomID: "r1"})
	alice.send(protocol.Message{Type: protocol.TypeJoinRoom})

	// The connection survives and still answers a valid join.
	alice.send(protocol.Message{Type: protocol.TypeJoinRoom, RoomID: "r1", DisplayName: "Alice"})
	users := alice.expect(protocol.TypeRoomUsers)
	assert.Equal(t, "r1", users.RoomID)
}

func TestRoomEndpoints(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/rooms", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created createRoomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.RoomID)

	alice := dial(t, ts)
	alice.send(protocol.Message{Type: protocol.TypeJoinRoom, RoomID: created.RoomID, DisplayName: "Alice"})
	alice.expect(protocol.TypeRoomUsers)

	resp, err = http.Get(ts.URL + "/api/rooms/" + created.RoomID)
	require.NoError(t, err)
	defer resp.Body.Close()

	var status roomStatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.True(t, status.Exists)
	assert.Equal(t, 1, status.Members)

	resp, err = http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats signaling.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, signaling.Stats{Rooms: 1, Members: 1}, stats)

	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOriginAllowList(t *testing.T) {
	_, ts := newTestServer(t, "https://app.example")
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"https://app.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}

func TestGatewayShutdownClosesConnections(t *testing.T) {
	s, ts := newTestServer(t)
	alice := dial(t, ts)
	alice.send(protocol.Message{Type: protocol.TypeJoinRoom, RoomID: "r1", DisplayName: "Alice"})
	alice.expect(protocol.TypeRoomUsers)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Gateway().Shutdown(ctx))

	router := s.Gateway().Router()
	assert.False(t, router.Connected(alice.id))
	assert.False(t, router.Registry().Exists("r1"))

	alice.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := alice.conn.ReadMessage()
	assert.Error(t, err)
}
