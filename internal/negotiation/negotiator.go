// Package negotiation runs the participant side of the room protocol: it
// decides who offers to whom, relays descriptions and candidates through the
// signaling server and tracks per-peer connection state.
package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultOfferDelay = time.Second
	eventBuffer       = 256
)

// Config identifies the local participant.
type Config struct {
	RoomID      string
	SelfID      string
	DisplayName string
	// OfferDelay is how long an initiator waits after user-joined before
	// offering, so the newcomer has finished its own setup.
	OfferDelay time.Duration
}

// Negotiator owns every peer session of one room. All state is touched by
// the Run goroutine only; other goroutines talk to it through the mailbox.
type Negotiator struct {
	cfg      Config
	engine   Engine
	signaler Signaler
	log      zerolog.Logger

	inbox  mailbox
	events chan Event
	done   chan struct{}

	peers   map[string]*session
	sharing bool
}

type session struct {
	id          string
	displayName string
	initiator   bool
	state       State
	presenting  bool
	peer        Peer

	localSent     bool
	remoteSet     bool
	pendingLocal  []json.RawMessage
	pendingRemote []json.RawMessage

	offerTimer *time.Timer
}

// New creates a Negotiator. Nothing happens until Run is called.
func New(cfg Config, engine Engine, signaler Signaler) *Negotiator {
	if cfg.OfferDelay <= 0 {
		cfg.OfferDelay = DefaultOfferDelay
	}
	return &Negotiator{
		cfg:      cfg,
		engine:   engine,
		signaler: signaler,
		log:      log.With().Str("room_id", cfg.RoomID).Logger(),
		inbox:    mailbox{signal: make(chan struct{}, 1)},
		events:   make(chan Event, eventBuffer),
		done:     make(chan struct{}),
		peers:    make(map[string]*session),
	}
}

// Events streams changes for the call view. It is closed when Run returns.
func (n *Negotiator) Events() <-chan Event {
	return n.events
}

// Run joins the room and processes signaling until ctx is cancelled. On
// return every peer is closed and the room is left.
func (n *Negotiator) Run(ctx context.Context) error {
	defer n.shutdown()

	err := n.signaler.Send(&protocol.Message{
		Type:        protocol.TypeJoinRoom,
		RoomID:      n.cfg.RoomID,
		DisplayName: n.cfg.DisplayName,
	})
	if err != nil {
		return newError("join room", "", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-n.inbox.signal:
			for _, fn := range n.inbox.drain() {
				fn()
			}
		}
	}
}

// HandleMessage queues a server message for processing.
func (n *Negotiator) HandleMessage(msg *protocol.Message) {
	n.inbox.push(func() { n.handle(msg) })
}

// SetScreenShare swaps the outgoing video on every peer and tells the room.
// Per-peer failures are joined into the returned error; the remaining peers
// are still switched.
func (n *Negotiator) SetScreenShare(on bool) error {
	return n.do(func() error { return n.setScreenShare(on) })
}

// Peers returns a snapshot of the remote peers ordered by id.
func (n *Negotiator) Peers() ([]PeerStatus, error) {
	var out []PeerStatus
	err := n.do(func() error {
		for _, s := range n.peers {
			out = append(out, PeerStatus{
				ID:          s.id,
				DisplayName: s.displayName,
				Initiator:   s.initiator,
				State:       s.state,
				Presenting:  s.presenting,
			})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// do runs fn on the Run goroutine and waits for it.
func (n *Negotiator) do(fn func() error) error {
	result := make(chan error, 1)
	n.inbox.push(func() { result <- fn() })

	select {
	case err := <-result:
		return err
	case <-n.done:
		return ErrClosed
	}
}

func (n *Negotiator) shutdown() {
	close(n.done)

	for id, s := range n.peers {
		delete(n.peers, id)
		n.teardown(s)
	}

	if err := n.signaler.Send(&protocol.Message{Type: protocol.TypeLeaveRoom, RoomID: n.cfg.RoomID}); err != nil {
		n.log.Debug().Err(err).Msg("Leave not delivered")
	}
	close(n.events)
}

func (n *Negotiator) handle(msg *protocol.Message) {
	if msg.RoomID != "" && msg.RoomID != n.cfg.RoomID {
		n.log.Debug().Str("type", msg.Type).Str("other_room", msg.RoomID).Msg("Ignoring message for another room")
		return
	}

	switch msg.Type {
	case protocol.TypeRoomUsers:
		for _, m := range msg.Members {
			if m.ConnectionID != n.cfg.SelfID {
				n.addPeer(m.ConnectionID, m.DisplayName, false)
			}
		}

	case protocol.TypeUserJoined:
		if msg.ConnectionID != n.cfg.SelfID {
			n.addPeer(msg.ConnectionID, msg.DisplayName, true)
		}

	case protocol.TypeUserLeft:
		n.removePeer(msg.ConnectionID)

	case protocol.TypeSignal:
		n.handleSignal(msg)

	case protocol.TypeScreenShareStarted, protocol.TypeScreenShareStopped:
		s := n.peers[msg.ConnectionID]
		if s == nil {
			n.log.Debug().Str("peer", msg.ConnectionID).Msg("Screen share from unknown peer")
			return
		}
		s.presenting = msg.Type == protocol.TypeScreenShareStarted
		n.emit(Event{Kind: EventPeerPresenting, PeerID: s.id, DisplayName: s.displayName, State: s.state, Presenting: s.presenting})

	default:
		n.log.Debug().Str("type", msg.Type).Msg("Ignoring message")
	}
}

func (n *Negotiator) addPeer(id, displayName string, initiator bool) *session {
	if old := n.peers[id]; old != nil {
		// Same connection joined again; start over.
		delete(n.peers, id)
		n.teardown(old)
	}

	s := &session{
		id:          id,
		displayName: displayName,
		initiator:   initiator,
		state:       StateIdle,
	}

	peer, err := n.engine.NewPeer(id, PeerCallbacks{
		OnICECandidate: func(c json.RawMessage) {
			n.inbox.push(func() { n.localCandidate(s, c) })
		},
		OnStateChange: func(st TransportState) {
			n.inbox.push(func() { n.transportState(s, st) })
		},
	})
	if err != nil {
		n.log.Error().Err(newError("create peer", id, err)).Msg("Peer setup failed")
		return nil
	}
	s.peer = peer
	n.peers[id] = s

	if n.sharing {
		if err := peer.SetScreenShare(true); err != nil {
			n.log.Warn().Err(newError("screen share", id, err)).Msg("New peer stays on camera")
		}
	}

	n.log.Info().Str("peer", id).Str("name", displayName).Bool("initiator", initiator).Msg("Peer added")
	n.emit(Event{Kind: EventPeerAdded, PeerID: id, DisplayName: displayName, Initiator: initiator, State: s.state})

	if initiator {
		s.offerTimer = time.AfterFunc(n.cfg.OfferDelay, func() {
			n.inbox.push(func() { n.sendOffer(s) })
		})
	}
	return s
}

func (n *Negotiator) removePeer(id string) {
	s := n.peers[id]
	if s == nil {
		return
	}
	delete(n.peers, id)
	n.teardown(s)
	n.log.Info().Str("peer", id).Msg("Peer removed")
}

func (n *Negotiator) teardown(s *session) {
	if s.offerTimer != nil {
		s.offerTimer.Stop()
	}
	if err := s.peer.Close(); err != nil {
		n.log.Debug().Err(err).Str("peer", s.id).Msg("Close peer")
	}
	n.emit(Event{Kind: EventPeerRemoved, PeerID: s.id, DisplayName: s.displayName})
}

// current reports whether s is still the live session for its peer.
// Callbacks from a replaced or removed session are ignored.
func (n *Negotiator) current(s *session) bool {
	return n.peers[s.id] == s
}

func (n *Negotiator) sendOffer(s *session) {
	if !n.current(s) {
		return
	}

	offer, err := s.peer.CreateOffer()
	if err != nil {
		n.log.Error().Err(newError("create offer", s.id, err)).Msg("Negotiation failed")
		return
	}

	n.signal(s, protocol.SignalOffer, offer)
	s.localSent = true
	n.flushLocal(s)
	n.setState(s, StateAwaitingAnswer)
}

func (n *Negotiator) handleSignal(msg *protocol.Message) {
	from := msg.FromConnectionID
	s := n.peers[from]
	l := n.log.With().Str("peer", from).Str("signal", string(msg.SignalType)).Logger()

	switch msg.SignalType {
	case protocol.SignalOffer:
		if s == nil {
			if s = n.addPeer(from, "", false); s == nil {
				return
			}
		}
		if s.initiator {
			l.Warn().Err(newError("accept offer", from, ErrUnexpectedSignal)).Msg("Dropping offer toward our own offer")
			return
		}

		answer, err := s.peer.AcceptOffer(msg.Payload)
		if err != nil {
			l.Error().Err(newError("accept offer", from, err)).Msg("Negotiation failed")
			return
		}
		s.remoteSet = true
		n.flushRemote(s)

		n.signal(s, protocol.SignalAnswer, answer)
		s.localSent = true
		n.flushLocal(s)

	case protocol.SignalAnswer:
		if s == nil {
			l.Debug().Err(newError("accept answer", from, ErrUnknownPeer)).Msg("Dropping signal")
			return
		}
		if s.state != StateAwaitingAnswer {
			l.Warn().Err(newError("accept answer", from, ErrUnexpectedSignal)).Str("state", string(s.state)).Msg("Dropping signal")
			return
		}
		if err := s.peer.AcceptAnswer(msg.Payload); err != nil {
			l.Error().Err(newError("accept answer", from, err)).Msg("Negotiation failed")
			return
		}
		s.remoteSet = true
		n.flushRemote(s)

	case protocol.SignalICECandidate:
		if s == nil {
			l.Debug().Err(newError("add candidate", from, ErrUnknownPeer)).Msg("Dropping signal")
			return
		}
		if !s.remoteSet {
			s.pendingRemote = append(s.pendingRemote, msg.Payload)
			return
		}
		if err := s.peer.AddICECandidate(msg.Payload); err != nil {
			l.Warn().Err(newError("add candidate", from, err)).Msg("Candidate rejected")
		}

	default:
		l.Debug().Msg("Ignoring unknown signal type")
	}
}

func (n *Negotiator) localCandidate(s *session, c json.RawMessage) {
	if !n.current(s) {
		return
	}
	if !s.localSent {
		s.pendingLocal = append(s.pendingLocal, c)
		return
	}
	n.signal(s, protocol.SignalICECandidate, c)
}

func (n *Negotiator) flushLocal(s *session) {
	for _, c := range s.pendingLocal {
		n.signal(s, protocol.SignalICECandidate, c)
	}
	s.pendingLocal = nil
}

func (n *Negotiator) flushRemote(s *session) {
	for _, c := range s.pendingRemote {
		if err := s.peer.AddICECandidate(c); err != nil {
			n.log.Warn().Err(newError("add candidate", s.id, err)).Msg("Buffered candidate rejected")
		}
	}
	s.pendingRemote = nil
}

func (n *Negotiator) transportState(s *session, st TransportState) {
	if !n.current(s) {
		return
	}
	n.log.Debug().Str("peer", s.id).Stringer("transport", st).Msg("Transport state changed")

	switch st {
	case TransportConnected:
		n.setState(s, StateConnected)
	case TransportDisconnected:
		n.setState(s, StateDisconnected)
	case TransportFailed, TransportClosed:
		n.removePeer(s.id)
	}
}

func (n *Negotiator) setState(s *session, st State) {
	if s.state == st {
		return
	}
	s.state = st
	n.emit(Event{Kind: EventPeerState, PeerID: s.id, DisplayName: s.displayName, Initiator: s.initiator, State: st, Presenting: s.presenting})
}

func (n *Negotiator) setScreenShare(on bool) error {
	if on == n.sharing {
		return nil
	}

	var errs []error
	for _, s := range n.peers {
		if err := s.peer.SetScreenShare(on); err != nil {
			errs = append(errs, newError("screen share", s.id, err))
		}
	}
	n.sharing = on

	msgType := protocol.TypeScreenShareStop
	if on {
		msgType = protocol.TypeScreenShareStart
	}
	if err := n.signaler.Send(&protocol.Message{Type: msgType, RoomID: n.cfg.RoomID}); err != nil {
		errs = append(errs, newError("announce screen share", "", err))
	}

	n.emit(Event{Kind: EventLocalPresenting, Presenting: on})
	return errors.Join(errs...)
}

func (n *Negotiator) signal(s *session, kind protocol.SignalType, payload json.RawMessage) {
	err := n.signaler.Send(&protocol.Message{
		Type:               protocol.TypeSignal,
		RoomID:             n.cfg.RoomID,
		SignalType:         kind,
		TargetConnectionID: s.id,
		Payload:            payload,
	})
	if err != nil {
		n.log.Warn().Err(err).Str("peer", s.id).Str("signal", string(kind)).Msg("Failed to send signal")
	}
}

func (n *Negotiator) emit(ev Event) {
	select {
	case n.events <- ev:
	default:
		n.log.Warn().Str("peer", ev.PeerID).Msg("Event buffer full, dropping event")
	}
}

// mailbox is an unbounded FIFO of closures; push never blocks.
type mailbox struct {
	mu     sync.Mutex
	queue  []func()
	signal chan struct{}
}

func (m *mailbox) push(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queue
	m.queue = nil
	return q
}
