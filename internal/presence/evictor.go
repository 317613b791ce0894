package presence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"collabnotes/internal/coordinator"
	"collabnotes/internal/room"
)

const delTimeout = 2 * time.Second

// Lookup reports whether a room is live; *room.Store satisfies it.
type Lookup interface {
	Get(roomID string) (room.Snapshot, bool)
}

// Evictor deletes a room's mirrored hash as soon as the room closes, instead
// of leaving its last members visible until the TTL runs out.
type Evictor struct {
	rdc    *redis.Client
	rooms  Lookup
	closed chan string
}

func NewEvictor(rdc *redis.Client, rooms Lookup, buffer int) *Evictor {
	if buffer <= 0 {
		buffer = 256
	}
	return &Evictor{rdc: rdc, rooms: rooms, closed: make(chan string, buffer)}
}

// Observe implements coordinator.Observer.
func (e *Evictor) Observe(ev coordinator.Event) {
	if ev.Kind != coordinator.KindRoomClosed {
		return
	}
	select {
	case e.closed <- ev.RoomID:
	default:
		// the TTL still cleans the hash up
		zap.L().Debug("presence.evict_queue_full", zap.String("room", ev.RoomID))
	}
}

// Run deletes hashes of closed rooms until ctx is done.
func (e *Evictor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-e.closed:
			if err := e.evict(ctx, id); err != nil {
				zap.L().Warn("presence.evict", zap.String("room", id), zap.Error(err))
			}
		}
	}
}

func (e *Evictor) evict(ctx context.Context, roomID string) error {
	// reopened in the meantime: the next sync owns the hash again
	if _, live := e.rooms.Get(roomID); live {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, delTimeout)
	defer cancel()
	return e.rdc.Del(ctx, Key(roomID)).Err()
}
