package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakePeer struct {
	id string
	cb PeerCallbacks

	mu         sync.Mutex
	offered    int
	offer      json.RawMessage
	answer     json.RawMessage
	candidates []string
	sharing    bool
	closed     bool
	shareErr   error
}

func (p *fakePeer) CreateOffer() (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offered++
	return json.RawMessage(`{"type":"offer","sdp":"offer-` + p.id + `"}`), nil
}

func (p *fakePeer) AcceptOffer(offer json.RawMessage) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offer = offer
	return json.RawMessage(`{"type":"answer","sdp":"answer-` + p.id + `"}`), nil
}

func (p *fakePeer) AcceptAnswer(answer json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.answer = answer
	return nil
}

func (p *fakePeer) AddICECandidate(c json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candidates = append(p.candidates, string(c))
	return nil
}

func (p *fakePeer) SetScreenShare(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shareErr != nil {
		return p.shareErr
	}
	p.sharing = on
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type peerView struct {
	offered    int
	offer      json.RawMessage
	answer     json.RawMessage
	candidates []string
	sharing    bool
	closed     bool
}

func (p *fakePeer) snapshot() peerView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return peerView{
		offered:    p.offered,
		offer:      p.offer,
		answer:     p.answer,
		candidates: append([]string(nil), p.candidates...),
		sharing:    p.sharing,
		closed:     p.closed,
	}
}

type fakeEngine struct {
	mu    sync.Mutex
	peers map[string][]*fakePeer
}

func (e *fakeEngine) NewPeer(id string, cb PeerCallbacks) (Peer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := &fakePeer{id: id, cb: cb}
	e.peers[id] = append(e.peers[id], p)
	return p, nil
}

// peer returns the latest session created toward id.
func (e *fakeEngine) peer(id string) *fakePeer {
	e.mu.Lock()
	defer e.mu.Unlock()
	ps := e.peers[id]
	if len(ps) == 0 {
		return nil
	}
	return ps[len(ps)-1]
}

type fakeSignaler struct {
	mu   sync.Mutex
	sent []*protocol.Message
}

func (s *fakeSignaler) Send(msg *protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSignaler) signals(kind protocol.SignalType, target string) []*protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*protocol.Message
	for _, m := range s.sent {
		if m.Type == protocol.TypeSignal && m.SignalType == kind && m.TargetConnectionID == target {
			out = append(out, m)
		}
	}
	return out
}

func (s *fakeSignaler) ofType(t string) []*protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*protocol.Message
	for _, m := range s.sent {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

type harness struct {
	n      *Negotiator
	engine *fakeEngine
	sig    *fakeSignaler
	cancel context.CancelFunc
	runErr chan error
}

func start(t *testing.T, delay time.Duration) *harness {
	t.Helper()
	h := &harness{
		engine: &fakeEngine{peers: make(map[string][]*fakePeer)},
		sig:    &fakeSignaler{},
		runErr: make(chan error, 1),
	}
	h.n = New(Config{RoomID: "r1", SelfID: "me", DisplayName: "Me", OfferDelay: delay}, h.engine, h.sig)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.runErr <- h.n.Run(ctx) }()
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.cancel()
	<-h.runErr
	h.runErr <- context.Canceled
}

func (h *harness) deliver(msg *protocol.Message) {
	msg.RoomID = "r1"
	h.n.HandleMessage(msg)
}

func (h *harness) waitPeer(t *testing.T, id string) *fakePeer {
	t.Helper()
	require.Eventually(t, func() bool { return h.engine.peer(id) != nil }, waitFor, tick)
	return h.engine.peer(id)
}

func (h *harness) state(t *testing.T, id string) State {
	t.Helper()
	peers, err := h.n.Peers()
	require.NoError(t, err)
	for _, p := range peers {
		if p.ID == id {
			return p.State
		}
	}
	return ""
}

func TestNegotiatorJoinsRoom(t *testing.T) {
	h := start(t, time.Millisecond)
	require.Eventually(t, func() bool { return len(h.sig.ofType(protocol.TypeJoinRoom)) == 1 }, waitFor, tick)

	join := h.sig.ofType(protocol.TypeJoinRoom)[0]
	assert.Equal(t, "r1", join.RoomID)
	assert.Equal(t, "Me", join.DisplayName)
}

func TestNonInitiatorAnswersOffer(t *testing.T) {
	h := start(t, time.Millisecond)

	h.deliver(&protocol.Message{
		Type:    protocol.TypeRoomUsers,
		Members: []protocol.MemberInfo{{ConnectionID: "alice", DisplayName: "Alice"}, {ConnectionID: "me", DisplayName: "Me"}},
	})
	alice := h.waitPeer(t, "alice")
	assert.Nil(t, h.engine.peer("me"))

	// Candidates on both sides arrive before any description.
	alice.cb.OnICECandidate(json.RawMessage(`{"candidate":"local-1"}`))
	h.deliver(&protocol.Message{Type: protocol.TypeSignal, SignalType: protocol.SignalICECandidate, FromConnectionID: "alice", Payload: json.RawMessage(`{"candidate":"remote-1"}`)})

	peers, err := h.n.Peers()
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.False(t, peers[0].Initiator)
	assert.Equal(t, StateIdle, peers[0].State)
	assert.Empty(t, h.sig.signals(protocol.SignalICECandidate, "alice"))
	assert.Empty(t, alice.snapshot().candidates)

	h.deliver(&protocol.Message{Type: protocol.TypeSignal, SignalType: protocol.SignalOffer, FromConnectionID: "alice", Payload: json.RawMessage(`{"type":"offer","sdp":"x"}`)})

	require.Eventually(t, func() bool { return len(h.sig.signals(protocol.SignalAnswer, "alice")) == 1 }, waitFor, tick)
	assert.JSONEq(t, `{"type":"offer","sdp":"x"}`, string(alice.snapshot().offer))
	assert.Equal(t, []string{`{"candidate":"remote-1"}`}, alice.snapshot().candidates)
	require.Eventually(t, func() bool { return len(h.sig.signals(protocol.SignalICECandidate, "alice")) == 1 }, waitFor, tick)

	// After the answer went out, new local candidates flow immediately.
	alice.cb.OnICECandidate(json.RawMessage(`{"candidate":"local-2"}`))
	require.Eventually(t, func() bool { return len(h.sig.signals(protocol.SignalICECandidate, "alice")) == 2 }, waitFor, tick)

	alice.cb.OnStateChange(TransportConnected)
	require.Eventually(t, func() bool { return h.state(t, "alice") == StateConnected }, waitFor, tick)
	assert.Equal(t, 0, alice.snapshot().offered)
}

func TestInitiatorOffersAfterDelay(t *testing.T) {
	h := start(t, 20*time.Millisecond)

	h.deliver(&protocol.Message{Type: protocol.TypeUserJoined, ConnectionID: "bob", DisplayName: "Bob"})
	bob := h.waitPeer(t, "bob")

	require.Eventually(t, func() bool { return len(h.sig.signals(protocol.SignalOffer, "bob")) == 1 }, waitFor, tick)
	assert.Equal(t, StateAwaitingAnswer, h.state(t, "bob"))

	h.deliver(&protocol.Message{Type: protocol.TypeSignal, SignalType: protocol.SignalAnswer, FromConnectionID: "bob", Payload: json.RawMessage(`{"type":"answer","sdp":"y"}`)})
	require.Eventually(t, func() bool { return bob.snapshot().answer != nil }, waitFor, tick)

	bob.cb.OnStateChange(TransportConnected)
	require.Eventually(t, func() bool { return h.state(t, "bob") == StateConnected }, waitFor, tick)

	// A duplicate answer is ignored once connected.
	h.deliver(&protocol.Message{Type: protocol.TypeSignal, SignalType: protocol.SignalAnswer, FromConnectionID: "bob", Payload: json.RawMessage(`{"type":"answer","sdp":"z"}`)})
	assert.Equal(t, StateConnected, h.state(t, "bob"))
	assert.JSONEq(t, `{"type":"answer","sdp":"y"}`, string(bob.snapshot().answer))
	assert.Equal(t, 1, bob.snapshot().offered)
}

func TestOfferCancelledWhenPeerLeavesFirst(t *testing.T) {
	h := start(t, 150*time.Millisecond)

	h.deliver(&protocol.Message{Type: protocol.TypeUserJoined, ConnectionID: "bob", DisplayName: "Bob"})
	bob := h.waitPeer(t, "bob")
	h.deliver(&protocol.Message{Type: protocol.TypeUserLeft, ConnectionID: "bob"})

	require.Eventually(t, func() bool { return bob.snapshot().closed }, waitFor, tick)
	time.Sleep(250 * time.Millisecond)

	assert.Equal(t, 0, bob.snapshot().offered)
	assert.Empty(t, h.sig.signals(protocol.SignalOffer, "bob"))
	peers, err := h.n.Peers()
	require.NoError(t, err)
	assert.Empty(t, peers)
}

func TestTransportFailureRemovesOnlyThatPeer(t *testing.T) {
	h := start(t, time.Millisecond)
	h.deliver(&protocol.Message{
		Type:    protocol.TypeRoomUsers,
		Members: []protocol.MemberInfo{{ConnectionID: "alice"}, {ConnectionID: "carol"}},
	})
	alice := h.waitPeer(t, "alice")
	carol := h.waitPeer(t, "carol")

	alice.cb.OnStateChange(TransportDisconnected)
	require.Eventually(t, func() bool { return h.state(t, "alice") == StateDisconnected }, waitFor, tick)

	alice.cb.OnStateChange(TransportFailed)
	require.Eventually(t, func() bool { return alice.snapshot().closed }, waitFor, tick)

	peers, err := h.n.Peers()
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, "carol", peers[0].ID)
	assert.False(t, carol.snapshot().closed)

	// Late callbacks from the dead session change nothing.
	alice.cb.OnStateChange(TransportConnected)
	peers, err = h.n.Peers()
	require.NoError(t, err)
	assert.Len(t, peers, 1)
}

func TestUnknownPeerSignalsAreDropped(t *testing.T) {
	h := start(t, time.Millisecond)

	h.deliver(&protocol.Message{Type: protocol.TypeSignal, SignalType: protocol.SignalAnswer, FromConnectionID: "ghost"})
	h.deliver(&protocol.Message{Type: protocol.TypeSignal, SignalType: protocol.SignalICECandidate, FromConnectionID: "ghost"})

	peers, err := h.n.Peers()
	require.NoError(t, err)
	assert.Empty(t, peers)
	assert.Nil(t, h.engine.peer("ghost"))
}

func TestMessagesForOtherRoomsAreIgnored(t *testing.T) {
	h := start(t, time.Millisecond)
	h.n.HandleMessage(&protocol.Message{Type: protocol.TypeUserJoined, RoomID: "elsewhere", ConnectionID: "bob"})

	peers, err := h.n.Peers()
	require.NoError(t, err)
	assert.Empty(t, peers)
}

func TestScreenShare(t *testing.T) {
	h := start(t, time.Hour)
	h.deliver(&protocol.Message{Type: protocol.TypeUserJoined, ConnectionID: "bob", DisplayName: "Bob"})
	bob := h.waitPeer(t, "bob")

	require.NoError(t, h.n.SetScreenShare(true))
	assert.True(t, bob.snapshot().sharing)
	require.Len(t, h.sig.ofType(protocol.TypeScreenShareStart), 1)

	// Toggling to the current value is a no-op.
	require.NoError(t, h.n.SetScreenShare(true))
	assert.Len(t, h.sig.ofType(protocol.TypeScreenShareStart), 1)

	// Peers that arrive while sharing start on the screen source.
	h.deliver(&protocol.Message{Type: protocol.TypeUserJoined, ConnectionID: "carol"})
	carol := h.waitPeer(t, "carol")
	require.Eventually(t, func() bool { return carol.snapshot().sharing }, waitFor, tick)

	h.deliver(&protocol.Message{Type: protocol.TypeScreenShareStarted, ConnectionID: "bob"})
	require.Eventually(t, func() bool {
		peers, _ := h.n.Peers()
		return len(peers) == 2 && peers[0].Presenting
	}, waitFor, tick)

	require.NoError(t, h.n.SetScreenShare(false))
	assert.False(t, bob.snapshot().sharing)
	assert.Len(t, h.sig.ofType(protocol.TypeScreenShareStop), 1)
}

func TestScreenShareReportsPerPeerErrors(t *testing.T) {
	h := start(t, time.Hour)
	h.deliver(&protocol.Message{Type: protocol.TypeUserJoined, ConnectionID: "bob"})
	h.deliver(&protocol.Message{Type: protocol.TypeUserJoined, ConnectionID: "carol"})
	bob := h.waitPeer(t, "bob")
	carol := h.waitPeer(t, "carol")

	boom := errors.New("no screen source")
	bob.mu.Lock()
	bob.shareErr = boom
	bob.mu.Unlock()

	err := h.n.SetScreenShare(true)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var nerr *Error
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "bob", nerr.Peer)
	assert.True(t, carol.snapshot().sharing)
}

func TestRunShutdownClosesEverything(t *testing.T) {
	h := start(t, time.Hour)
	h.deliver(&protocol.Message{Type: protocol.TypeUserJoined, ConnectionID: "bob"})
	bob := h.waitPeer(t, "bob")

	h.cancel()
	require.ErrorIs(t, <-h.runErr, context.Canceled)
	h.runErr <- context.Canceled

	assert.True(t, bob.snapshot().closed)
	assert.Len(t, h.sig.ofType(protocol.TypeLeaveRoom), 1)
	assert.ErrorIs(t, h.n.SetScreenShare(true), ErrClosed)

	var kinds []EventKind
	for ev := range h.n.Events() {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{EventPeerAdded, EventPeerRemoved}, kinds)
}
