package signaling

import (
	"sort"
	"sync"
	"time"
)

// Member is a single connection's presence in a room.
type Member struct {
	ConnectionID string
	DisplayName  string
	JoinedAt     time.Time
}

// Room is a set of members sharing one call.
//
// A Room is only reachable from the Registry while it has members. Once the
// last member leaves it is marked closed and unlinked; a join racing with that
// removal sees the closed flag and retries against a fresh Room.
type Room struct {
	ID        string
	CreatedAt time.Time

	mu      sync.Mutex
	members map[string]Member
	closed  bool
}

// membership indexes the rooms a single connection belongs to.
type membership struct {
	mu    sync.Mutex
	rooms map[string]struct{}
}

// Stats is a point-in-time count of registry contents.
type Stats struct {
	Rooms   int `json:"rooms"`
	Members int `json:"members"`
}

// Registry maps room IDs to member sets.
//
// There is no registry-wide lock. Each Room serializes its own mutations and
// each connection's membership index has its own mutex; lock order is always
// room, then membership.
type Registry struct {
	rooms       sync.Map // roomID -> *Room
	memberships sync.Map // connectionID -> *membership

	now func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{now: time.Now}
}

// Join inserts (or replaces) the connection's member entry in roomID, creating
// the room if needed. It returns a snapshot of the other members that were in
// the room before the insert.
func (r *Registry) Join(connID, roomID, displayName string) []Member {
	var existing []Member
	r.JoinFunc(connID, roomID, displayName, func(m []Member) { existing = m })
	return existing
}

// JoinFunc is Join with fn run on the pre-insert snapshot before the room is
// unlocked, so anything fn sends is ordered against other joins and leaves of
// the same room. fn must not block or call back into the Registry.
func (r *Registry) JoinFunc(connID, roomID, displayName string, fn func(existing []Member)) {
	for {
		if r.tryJoin(r.loadOrCreate(roomID), connID, displayName, fn) {
			return
		}
	}
}

func (r *Registry) tryJoin(room *Room, connID, displayName string, fn func([]Member)) bool {
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.closed {
		return false
	}

	existing := snapshot(room.members, connID)
	room.members[connID] = Member{
		ConnectionID: connID,
		DisplayName:  displayName,
		JoinedAt:     r.now(),
	}
	r.index(connID).add(room.ID)

	if fn != nil {
		fn(existing)
	}
	return true
}

// Leave removes the connection from roomID and deletes the room if it became
// empty. It returns the members still in the room and whether the connection
// was actually removed. Missing rooms or members are a no-op.
func (r *Registry) Leave(connID, roomID string) (remaining []Member, removed bool) {
	removed = r.LeaveFunc(connID, roomID, func(m []Member, _ bool) { remaining = m })
	return remaining, removed
}

// LeaveFunc is Leave with fn run on the post-removal member set before the
// room is unlocked. fn is not called when the room does not exist. The same
// restrictions as JoinFunc apply to fn.
func (r *Registry) LeaveFunc(connID, roomID string, fn func(remaining []Member, removed bool)) bool {
	room, ok := r.load(roomID)
	if !ok {
		return false
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if _, ok := room.members[connID]; !ok {
		if fn != nil {
			fn(snapshot(room.members, ""), false)
		}
		return false
	}

	delete(room.members, connID)
	if m, ok := r.memberships.Load(connID); ok {
		m.(*membership).remove(roomID)
	}

	var remaining []Member
	if len(room.members) == 0 {
		room.closed = true
		r.rooms.CompareAndDelete(roomID, room)
	} else {
		remaining = snapshot(room.members, "")
	}

	if fn != nil {
		fn(remaining, true)
	}
	return true
}

// MembersOf returns a copy of the room's members ordered by join time.
func (r *Registry) MembersOf(roomID string) []Member {
	room, ok := r.load(roomID)
	if !ok {
		return nil
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	return snapshot(room.members, "")
}

// RoomsOf returns the IDs of every room the connection is a member of.
func (r *Registry) RoomsOf(connID string) []string {
	m, ok := r.memberships.Load(connID)
	if !ok {
		return nil
	}
	return m.(*membership).list()
}

// Exists reports whether roomID currently has at least one member.
func (r *Registry) Exists(roomID string) bool {
	room, ok := r.load(roomID)
	if !ok {
		return false
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	return !room.closed
}

// IsMember reports whether connID is currently a member of roomID.
func (r *Registry) IsMember(connID, roomID string) bool {
	room, ok := r.load(roomID)
	if !ok {
		return false
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	_, ok = room.members[connID]
	return ok
}

// Forget drops the membership index for a connection that has no rooms left.
func (r *Registry) Forget(connID string) {
	m, ok := r.memberships.Load(connID)
	if !ok {
		return
	}
	if m.(*membership).empty() {
		r.memberships.CompareAndDelete(connID, m)
	}
}

// Stats counts live rooms and members.
func (r *Registry) Stats() Stats {
	var s Stats
	r.rooms.Range(func(_, v any) bool {
		room := v.(*Room)
		room.mu.Lock()
		if !room.closed {
			s.Rooms++
			s.Members += len(room.members)
		}
		room.mu.Unlock()
		return true
	})
	return s
}

func (r *Registry) load(roomID string) (*Room, bool) {
	v, ok := r.rooms.Load(roomID)
	if !ok {
		return nil, false
	}
	return v.(*Room), true
}

func (r *Registry) loadOrCreate(roomID string) *Room {
	if room, ok := r.load(roomID); ok {
		return room
	}
	v, _ := r.rooms.LoadOrStore(roomID, &Room{
		ID:        roomID,
		CreatedAt: r.now(),
		members:   make(map[string]Member),
	})
	return v.(*Room)
}

func (r *Registry) index(connID string) *membership {
	v, _ := r.memberships.LoadOrStore(connID, &membership{rooms: make(map[string]struct{})})
	return v.(*membership)
}

func (m *membership) add(roomID string) {
	m.mu.Lock()
	m.rooms[roomID] = struct{}{}
	m.mu.Unlock()
}

func (m *membership) remove(roomID string) {
	m.mu.Lock()
	delete(m.rooms, roomID)
	m.mu.Unlock()
}

func (m *membership) empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms) == 0
}

func (m *membership) list() []string {
	m.mu.Lock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// snapshot copies the member set, skipping the excluded connection.
func snapshot(members map[string]Member, exclude string) []Member {
	out := make([]Member, 0, len(members))
	for id, m := range members {
		if id == exclude {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ConnectionID < out[j].ConnectionID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}
