package room

import (
	"sort"
	"time"
)

// Member is one connected participant of a room.
type Member struct {
	ConnectionID string    `json:"connection_id"`
	UserID       string    `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	JoinedAt     time.Time `json:"joined_at"`

	seq uint64 // join order inside the room lifetime
}

// Room is the aggregate for one editing session. It is only touched through
// Store.Mutate, which guarantees exclusive access.
type Room struct {
	ID      string
	OwnerID string // "" = no owner yet
	HostID  string // "" = headless
	Locked  bool

	members map[string]*Member // userID -> member
	typing  map[string]struct{}
	nextSeq uint64
}

func newRoom(id string) *Room {
	return &Room{
		ID:      id,
		members: make(map[string]*Member),
		typing:  make(map[string]struct{}),
	}
}

// AddMember inserts or replaces the member for userID. A repeated join keeps
// the original join order. It reports whether the user was already present.
func (r *Room) AddMember(connID, userID, displayName string) (replaced bool) {
	if m, ok := r.members[userID]; ok {
		m.ConnectionID = connID
		m.DisplayName = displayName
		return true
	}
	r.nextSeq++
	r.members[userID] = &Member{
		ConnectionID: connID,
		UserID:       userID,
		DisplayName:  displayName,
		JoinedAt:     time.Now().UTC(),
		seq:          r.nextSeq,
	}
	// Owner is sticky for the whole lifetime of the room.
	if r.OwnerID == "" {
		r.OwnerID = userID
	}
	return false
}

// RemoveMember drops userID if it is still bound to connID. A stale
// connection (the user re-joined elsewhere) does not evict the member.
func (r *Room) RemoveMember(connID, userID string) bool {
	m, ok := r.members[userID]
	if !ok || m.ConnectionID != connID {
		return false
	}
	delete(r.members, userID)
	delete(r.typing, userID)
	return true
}

func (r *Room) Member(userID string) (Member, bool) {
	m, ok := r.members[userID]
	if !ok {
		return Member{}, false
	}
	return *m, true
}

func (r *Room) HasMember(userID string) bool {
	_, ok := r.members[userID]
	return ok
}

// IsBound reports whether userID is a member whose current connection is
// connID. A connection replaced by a later re-join is no longer bound.
func (r *Room) IsBound(connID, userID string) bool {
	m, ok := r.members[userID]
	return ok && m.ConnectionID == connID
}

func (r *Room) Len() int { return len(r.members) }

func (r *Room) Empty() bool { return len(r.members) == 0 }

// Members returns the members in join order.
func (r *Room) Members() []Member {
	out := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// ConnectionIDs returns the connection of every member in join order.
func (r *Room) ConnectionIDs() []string {
	ms := r.Members()
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ConnectionID
	}
	return out
}

// ElectHost recomputes HostID after a membership change and reports whether
// it changed. The owner always wins while present; otherwise a still-present
// host keeps the role when preferCurrent is set, and the earliest-joined
// member takes over in every other case.
func (r *Room) ElectHost(preferCurrent bool) bool {
	prev := r.HostID
	switch {
	case r.Empty():
		r.HostID = ""
	case r.HasMember(r.OwnerID):
		r.HostID = r.OwnerID
	case preferCurrent && r.HasMember(r.HostID):
	default:
		r.HostID = r.Members()[0].UserID
	}
	return prev != r.HostID
}

// IsHost reports whether userID currently holds host authority.
func (r *Room) IsHost(userID string) bool {
	return userID != "" && r.HostID == userID
}

// CanBroadcast is the lock gate for text, cursor and typing events.
func (r *Room) CanBroadcast(userID string) bool {
	return !r.Locked || r.IsHost(userID)
}

// SetTyping flips the typing flag of userID and reports whether it changed.
func (r *Room) SetTyping(userID string, typing bool) bool {
	_, was := r.typing[userID]
	if typing == was {
		return false
	}
	if typing {
		r.typing[userID] = struct{}{}
	} else {
		delete(r.typing, userID)
	}
	return true
}

func (r *Room) IsTyping(userID string) bool {
	_, ok := r.typing[userID]
	return ok
}

// Snapshot is a copy of the room state that is safe to use after the room
// lock has been released.
type Snapshot struct {
	ID      string   `json:"id"`
	OwnerID string   `json:"owner_id,omitempty"`
	HostID  string   `json:"host_id,omitempty"`
	Locked  bool     `json:"locked"`
	Members []Member `json:"members"`
	Typing  []string `json:"typing"`
}

func (r *Room) Snapshot() Snapshot {
	typing := make([]string, 0, len(r.typing))
	for _, m := range r.Members() {
		if r.IsTyping(m.UserID) {
			typing = append(typing, m.UserID)
		}
	}
	return Snapshot{
		ID:      r.ID,
		OwnerID: r.OwnerID,
		HostID:  r.HostID,
		Locked:  r.Locked,
		Members: r.Members(),
		Typing:  typing,
	}
}
