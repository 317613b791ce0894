package coordinator

import "time"

type EventKind string

const (
	KindRoomOpened  EventKind = "room_opened"
	KindJoined      EventKind = "joined"
	KindLeft        EventKind = "left"
	KindHostChanged EventKind = "host_changed"
	KindLocked      EventKind = "locked"
	KindUnlocked    EventKind = "unlocked"
	KindRoomClosed  EventKind = "room_closed"
)

// Event is a committed room lifecycle transition.
type Event struct {
	RoomID string    `json:"room_id"`
	Kind   EventKind `json:"kind"`
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
}

// Observer receives lifecycle events in commit order per room. Observe is
// called under the room lock and must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }
