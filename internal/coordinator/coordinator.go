// Package coordinator is the room state machine: membership, owner and host
// election, the edit lock, and the gate in front of every relayed event.
package coordinator

import (
	"time"

	"go.uber.org/zap"

	"collabnotes/internal/protocol"
	"collabnotes/internal/room"
)

// Relay fans committed events out to connections. Implementations must only
// enqueue: they are called while the room is held.
type Relay interface {
	BroadcastToAll(roomID string, recipients []string, msg protocol.Outbound)
	BroadcastExcludingSender(roomID string, recipients []string, senderConnID string, msg protocol.Outbound)
}

// Sender identifies the connection an operation comes from.
type Sender struct {
	ConnectionID string
	UserID       string
	DisplayName  string
}

type Coordinator struct {
	store     *room.Store
	relay     Relay
	observers []Observer
}

func New(store *room.Store, relay Relay, observers ...Observer) *Coordinator {
	return &Coordinator{store: store, relay: relay, observers: observers}
}

func (c *Coordinator) Store() *room.Store { return c.store }

// AddObserver registers o for lifecycle events. Not safe once the
// coordinator is serving; call it during startup.
func (c *Coordinator) AddObserver(o Observer) {
	c.observers = append(c.observers, o)
}

func (c *Coordinator) emit(roomID string, kind EventKind, userID string) {
	if len(c.observers) == 0 {
		return
	}
	ev := Event{RoomID: roomID, Kind: kind, UserID: userID, At: time.Now().UTC()}
	for _, o := range c.observers {
		o.Observe(ev)
	}
}

// Join adds the sender to roomID, opening a new room lifetime if needed.
func (c *Coordinator) Join(roomID string, s Sender) error {
	return c.store.MutateOrCreate(roomID, func(r *room.Room) error {
		opened := r.OwnerID == ""
		replaced := r.AddMember(s.ConnectionID, s.UserID, s.DisplayName)
		hostChanged := r.ElectHost(true)

		if opened {
			c.emit(roomID, KindRoomOpened, r.OwnerID)
		}
		if !replaced {
			c.emit(roomID, KindJoined, s.UserID)
		}
		if hostChanged {
			c.emit(roomID, KindHostChanged, r.HostID)
		}

		to := r.ConnectionIDs()
		c.relay.BroadcastToAll(roomID, to, protocol.HostInfo(r.HostID))
		c.relay.BroadcastToAll(roomID, to, protocol.UserJoined(s.UserID, s.DisplayName))

		zap.L().Debug("coordinator.join",
			zap.String("room", roomID),
			zap.String("user", s.UserID),
			zap.String("owner", r.OwnerID),
			zap.String("host", r.HostID),
			zap.Bool("rejoin", replaced),
		)
		return nil
	})
}

// Leave removes the sender. The last leave tears the room down silently.
func (c *Coordinator) Leave(roomID string, s Sender) error {
	return c.store.Mutate(roomID, func(r *room.Room) error {
		wasTyping := r.IsTyping(s.UserID)
		if !r.RemoveMember(s.ConnectionID, s.UserID) {
			return ErrNotMember
		}
		c.emit(roomID, KindLeft, s.UserID)

		if r.Empty() {
			c.emit(roomID, KindRoomClosed, s.UserID)
			zap.L().Debug("coordinator.room_closed", zap.String("room", roomID))
			return nil
		}

		to := r.ConnectionIDs()
		c.relay.BroadcastToAll(roomID, to, protocol.UserLeft(s.UserID))
		if wasTyping {
			c.relay.BroadcastToAll(roomID, to, protocol.HideTyping(s.UserID))
		}
		if r.ElectHost(false) {
			c.emit(roomID, KindHostChanged, r.HostID)
			zap.L().Info("coordinator.host_failover",
				zap.String("room", roomID),
				zap.String("owner", r.OwnerID),
				zap.String("host", r.HostID),
			)
		}
		c.relay.BroadcastToAll(roomID, to, protocol.HostInfo(r.HostID))
		return nil
	})
}

func (c *Coordinator) Lock(roomID string, s Sender) error {
	return c.store.Mutate(roomID, func(r *room.Room) error {
		if !r.IsBound(s.ConnectionID, s.UserID) {
			return ErrNotMember
		}
		if !r.IsHost(s.UserID) {
			return ErrNotHost
		}
		r.Locked = true
		c.emit(roomID, KindLocked, s.UserID)
		c.relay.BroadcastToAll(roomID, r.ConnectionIDs(), protocol.Locked(s.UserID))
		return nil
	})
}

func (c *Coordinator) Unlock(roomID string, s Sender) error {
	return c.store.Mutate(roomID, func(r *room.Room) error {
		if !r.IsBound(s.ConnectionID, s.UserID) {
			return ErrNotMember
		}
		if !r.Locked {
			return ErrAlreadyUnlocked
		}
		if !r.IsHost(s.UserID) {
			return ErrNotHost
		}
		r.Locked = false
		c.emit(roomID, KindUnlocked, s.UserID)
		c.relay.BroadcastToAll(roomID, r.ConnectionIDs(), protocol.Unlocked())
		return nil
	})
}

// gated relays msg to everyone but the sender when the lock allows it.
// before runs after authorization and before the relay.
func (c *Coordinator) gated(roomID string, s Sender, msg protocol.Outbound, before func(r *room.Room)) error {
	return c.store.Mutate(roomID, func(r *room.Room) error {
		if !r.IsBound(s.ConnectionID, s.UserID) {
			return ErrNotMember
		}
		if !r.CanBroadcast(s.UserID) {
			return ErrLocked
		}
		if before != nil {
			before(r)
		}
		c.relay.BroadcastExcludingSender(roomID, r.ConnectionIDs(), s.ConnectionID, msg)
		return nil
	})
}

func (c *Coordinator) UpdateText(roomID string, s Sender, text string) error {
	return c.gated(roomID, s, protocol.UpdateText(text), nil)
}

func (c *Coordinator) UpdateCursor(roomID string, s Sender, position int) error {
	return c.gated(roomID, s, protocol.CursorPosition(s.UserID, position, s.DisplayName), nil)
}

// Typing marks the sender as typing (or not) and relays the presence change.
func (c *Coordinator) Typing(roomID string, s Sender, typing bool) error {
	msg := protocol.ShowTyping(s.UserID, s.DisplayName)
	if !typing {
		msg = protocol.HideTyping(s.UserID)
	}
	return c.gated(roomID, s, msg, func(r *room.Room) {
		r.SetTyping(s.UserID, typing)
	})
}

// Chat is never gated by the lock and echoes back to the sender.
func (c *Coordinator) Chat(roomID string, s Sender, message string) error {
	return c.store.Mutate(roomID, func(r *room.Room) error {
		if !r.IsBound(s.ConnectionID, s.UserID) {
			return ErrNotMember
		}
		c.relay.BroadcastToAll(roomID, r.ConnectionIDs(), protocol.ChatMessage(s.UserID, s.DisplayName, message))
		return nil
	})
}

// Notice relays a server-originated message (e.g. "note saved") to every
// member of the room.
func (c *Coordinator) Notice(roomID, message string) error {
	return c.store.Mutate(roomID, func(r *room.Room) error {
		c.relay.BroadcastToAll(roomID, r.ConnectionIDs(), protocol.Notice(message))
		return nil
	})
}

// Rooms lists every live room.
func (c *Coordinator) Rooms() []room.Snapshot { return c.store.List() }

// Snapshot returns the current state of a live room.
func (c *Coordinator) Snapshot(roomID string) (room.Snapshot, bool) {
	return c.store.Get(roomID)
}
