// Package presence mirrors live room state into Redis so that other services
// (the notes API, dashboards) can see who is editing what. The mirror is
// write-only: nothing is read back. Hashes of closed rooms are deleted by the
// Evictor, and entries expire on their own once the process stops refreshing
// them.
package presence

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"collabnotes/internal/room"
)

const (
	hashPrefix  = "room:"
	pipeTimeout = 1500 * time.Millisecond
)

// Key returns the Redis hash holding a room's mirrored state.
func Key(roomID string) string { return hashPrefix + roomID }

// Source yields the rooms to mirror; *room.Store satisfies it.
type Source interface {
	List() []room.Snapshot
}

// Run mirrors every live room into Redis each interval.
func Run(ctx context.Context, rdc *redis.Client, src Source, interval, ttl time.Duration) {
	tk := time.NewTicker(interval)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				if err := syncOnce(ctx, rdc, src.List(), ttl); err != nil {
					zap.L().Warn("presence.sync", zap.Error(err))
				}
			}
		}
	}()
}

func syncOnce(ctx context.Context, rdc *redis.Client, rooms []room.Snapshot, ttl time.Duration) error {
	if len(rooms) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, pipeTimeout)
	defer cancel()

	// one pipelined round‑trip for all rooms
	pipe := rdc.Pipeline()
	for _, r := range rooms {
		key := Key(r.ID)
		pipe.HSet(ctx, key,
			"owner", r.OwnerID,
			"host", r.HostID,
			"locked", strconv.FormatBool(r.Locked),
			"members", memberList(r),
			"typing", strings.Join(r.Typing, ","),
		)
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func memberList(r room.Snapshot) string {
	ids := make([]string, len(r.Members))
	for i, m := range r.Members {
		ids[i] = m.UserID
	}
	return strings.Join(ids, ",")
}
