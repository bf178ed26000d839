package signaling

// Departure describes a connection leaving a room that still has members.
type Departure struct {
	RoomID       string
	ConnectionID string
	Remaining    []Member
}

// Notifier is told about departures that someone is left to hear about.
// MemberLeft is called with the room locked and must not block.
type Notifier interface {
	MemberLeft(d Departure)
}

// NotifierFunc adapts a function to a Notifier.
type NotifierFunc func(d Departure)

func (f NotifierFunc) MemberLeft(d Departure) { f(d) }

// Presence turns a transport disconnect into room departures.
type Presence struct {
	registry *Registry
	notifier Notifier
}

// NewPresence creates a Presence tracker over registry. notifier may be nil.
func NewPresence(registry *Registry, notifier Notifier) *Presence {
	return &Presence{registry: registry, notifier: notifier}
}

// Disconnect removes connID from every room it belongs to and notifies once
// per room that still has members. Rooms deleted by the departure produce no
// notification. Calling it again for the same connection is a no-op.
func (p *Presence) Disconnect(connID string) []Departure {
	var departures []Departure

	for _, roomID := range p.registry.RoomsOf(connID) {
		d, ok := p.Leave(connID, roomID)
		if ok {
			departures = append(departures, d)
		}
	}
	p.registry.Forget(connID)

	return departures
}

// Leave removes connID from a single room and notifies the remaining members.
// The notifier runs while the room is still locked, so a concurrent join into
// the same room sees either the member or its departure, never both out of
// order. It reports false when nothing was removed or the room is now gone.
func (p *Presence) Leave(connID, roomID string) (Departure, bool) {
	var (
		d        Departure
		notified bool
	)
	p.registry.LeaveFunc(connID, roomID, func(remaining []Member, removed bool) {
		if !removed || len(remaining) == 0 {
			return
		}
		d = Departure{RoomID: roomID, ConnectionID: connID, Remaining: remaining}
		notified = true
		if p.notifier != nil {
			p.notifier.MemberLeft(d)
		}
	})
	return d, notified
}
