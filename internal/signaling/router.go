package signaling

import (
	"errors"
	"sync"

	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/protocol"
	"github.com/rs/zerolog/log"
)

// ErrSinkClosed is returned by a Sink that can no longer deliver messages.
var ErrSinkClosed = errors.New("sink closed")

// Sink delivers outbound messages to one connection. Send must not block.
type Sink interface {
	Send(msg *protocol.Message) error
}

// Router turns inbound envelopes into registry mutations and deliveries.
// Routing never fails: missing rooms or members mean zero recipients, and a
// failed delivery only affects its own recipient.
type Router struct {
	registry *Registry
	presence *Presence

	sinks sync.Map // connectionID -> Sink
}

// NewRouter creates a Router with its own Presence tracker over registry.
func NewRouter(registry *Registry) *Router {
	rt := &Router{registry: registry}
	rt.presence = NewPresence(registry, rt)
	return rt
}

// Registry returns the registry the router mutates.
func (rt *Router) Registry() *Registry {
	return rt.registry
}

// Register makes connID addressable.
func (rt *Router) Register(connID string, sink Sink) {
	rt.sinks.Store(connID, sink)
}

// Connected reports whether connID is currently registered.
func (rt *Router) Connected(connID string) bool {
	_, ok := rt.sinks.Load(connID)
	return ok
}

// Join adds connID to roomID. The joiner receives room-users with the members
// that were already present before any of them is told about the newcomer.
// Both deliveries happen under the room lock, so they are ordered against
// user-left from a concurrent departure.
func (rt *Router) Join(connID, roomID, displayName string) {
	if !rt.Connected(connID) {
		log.Debug().Str("conn_id", connID).Str("room_id", roomID).Msg("Dropping join from unregistered connection")
		return
	}

	rt.registry.JoinFunc(connID, roomID, displayName, func(existing []Member) {
		log.Info().
			Str("conn_id", connID).
			Str("room_id", roomID).
			Int("peers", len(existing)).
			Msg("Member joined room")

		rt.deliver(connID, &protocol.Message{
			Type:    protocol.TypeRoomUsers,
			RoomID:  roomID,
			Members: memberInfos(existing),
		})

		rt.fanout(existing, connID, &protocol.Message{
			Type:         protocol.TypeUserJoined,
			RoomID:       roomID,
			ConnectionID: connID,
			DisplayName:  displayName,
		})
	})
}

// Relay forwards a signal from connID. With a target it goes to that member
// only; without one it goes to every other member of the room.
func (rt *Router) Relay(connID string, msg *protocol.Message) {
	if !msg.SignalType.Valid() {
		log.Warn().Str("conn_id", connID).Str("signal_type", string(msg.SignalType)).Msg("Dropping signal with unknown type")
		return
	}
	if !rt.registry.IsMember(connID, msg.RoomID) {
		log.Debug().Str("conn_id", connID).Str("room_id", msg.RoomID).Msg("Dropping signal from non-member")
		return
	}

	out := &protocol.Message{
		Type:             protocol.TypeSignal,
		RoomID:           msg.RoomID,
		SignalType:       msg.SignalType,
		FromConnectionID: connID,
		Payload:          msg.Payload,
	}

	if msg.TargetConnectionID != "" {
		if msg.TargetConnectionID == connID || !rt.registry.IsMember(msg.TargetConnectionID, msg.RoomID) {
			log.Debug().
				Str("conn_id", connID).
				Str("target", msg.TargetConnectionID).
				Str("room_id", msg.RoomID).
				Msg("Signal target not in room")
			return
		}
		log.Debug().
			Str("conn_id", connID).
			Str("target", msg.TargetConnectionID).
			Str("signal_type", string(msg.SignalType)).
			Msg("Relaying signal")
		rt.deliver(msg.TargetConnectionID, out)
		return
	}

	rt.fanout(rt.registry.MembersOf(msg.RoomID), connID, out)
}

// ScreenShare tells the rest of the room that connID started or stopped
// presenting its screen.
func (rt *Router) ScreenShare(connID, roomID string, started bool) {
	if !rt.registry.IsMember(connID, roomID) {
		log.Debug().Str("conn_id", connID).Str("room_id", roomID).Msg("Dropping screen share toggle from non-member")
		return
	}

	msgType := protocol.TypeScreenShareStopped
	if started {
		msgType = protocol.TypeScreenShareStarted
	}

	rt.fanout(rt.registry.MembersOf(roomID), connID, &protocol.Message{
		Type:         msgType,
		RoomID:       roomID,
		ConnectionID: connID,
	})
}

// Leave removes connID from roomID and tells the remaining members.
func (rt *Router) Leave(connID, roomID string) {
	if _, ok := rt.presence.Leave(connID, roomID); !ok {
		log.Debug().Str("conn_id", connID).Str("room_id", roomID).Msg("Leave left nobody to notify")
	}
}

// Disconnect unregisters connID and removes it from every room it was in.
// It is idempotent.
func (rt *Router) Disconnect(connID string) []Departure {
	rt.sinks.Delete(connID)
	departures := rt.presence.Disconnect(connID)

	log.Info().Str("conn_id", connID).Int("rooms_notified", len(departures)).Msg("Connection cleaned up")
	return departures
}

// MemberLeft implements Notifier by broadcasting user-left.
func (rt *Router) MemberLeft(d Departure) {
	log.Info().Str("conn_id", d.ConnectionID).Str("room_id", d.RoomID).Int("remaining", len(d.Remaining)).Msg("Member left room")

	rt.fanout(d.Remaining, d.ConnectionID, &protocol.Message{
		Type:         protocol.TypeUserLeft,
		RoomID:       d.RoomID,
		ConnectionID: d.ConnectionID,
	})
}

// Close unregisters every sink.
func (rt *Router) Close() {
	rt.sinks.Range(func(k, _ any) bool {
		rt.sinks.Delete(k)
		return true
	})
}

func (rt *Router) fanout(members []Member, except string, msg *protocol.Message) {
	for _, m := range members {
		if m.ConnectionID == except {
			continue
		}
		rt.deliver(m.ConnectionID, msg)
	}
}

func (rt *Router) deliver(connID string, msg *protocol.Message) {
	v, ok := rt.sinks.Load(connID)
	if !ok {
		log.Debug().Str("conn_id", connID).Str("type", msg.Type).Msg("No sink for recipient, skipping")
		return
	}
	if err := v.(Sink).Send(msg); err != nil {
		log.Warn().Err(err).Str("conn_id", connID).Str("type", msg.Type).Msg("Delivery failed")
	}
}

func memberInfos(members []Member) []protocol.MemberInfo {
	out := make([]protocol.MemberInfo, len(members))
	for i, m := range members {
		out[i] = protocol.MemberInfo{ConnectionID: m.ConnectionID, DisplayName: m.DisplayName}
	}
	return out
}
