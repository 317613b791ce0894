package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS room_events (
    stream_id TEXT PRIMARY KEY,
    room_id   TEXT        NOT NULL,
    kind      TEXT        NOT NULL,
    user_id   TEXT        NOT NULL DEFAULT '',
    at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS room_events_room_at ON room_events (room_id, at DESC);`

// EnsureSchema creates the audit table if needed.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("audit schema: %w", err)
	}
	return nil
}

// Run tails the Redis stream and persists every event. Stream ids are the
// primary key, so replaying from the start is harmless.
func Run(ctx context.Context, rdc *redis.Client, db *sql.DB) {
	go func() {
		lastID := "0-0"
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			// block up to 2 s for new entries
			res, err := rdc.XRead(ctx, &redis.XReadArgs{
				Streams: []string{stream, lastID},
				Count:   100,
				Block:   2000 * time.Millisecond,
			}).Result()
			if err != nil && err != redis.Nil {
				if ctx.Err() != nil {
					return
				}
				zap.L().Warn("audit.xread", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			if len(res) == 0 || len(res[0].Messages) == 0 {
				continue
			}
			entries := res[0].Messages
			if err := persist(ctx, db, entries); err != nil {
				zap.L().Error("audit.persist", zap.Error(err))
				time.Sleep(time.Second)
				continue // retry the same batch
			}
			lastID = entries[len(entries)-1].ID
		}
	}()
}

func persist(ctx context.Context, db *sql.DB, msgs []redis.XMessage) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	const ins = `INSERT INTO room_events (stream_id, room_id, kind, user_id, at)
	             VALUES ($1, $2, $3, $4, $5)
	             ON CONFLICT DO NOTHING`
	for _, m := range msgs {
		room, _ := m.Values["room"].(string)
		kind, _ := m.Values["kind"].(string)
		user, _ := m.Values["user"].(string)
		at, _ := m.Values["at"].(string)
		if room == "" || kind == "" {
			zap.L().Warn("audit.malformed_entry", zap.String("id", m.ID))
			continue
		}
		ms, _ := strconv.ParseInt(at, 10, 64)
		if _, err := tx.ExecContext(ctx, ins, m.ID, room, kind, user, time.UnixMilli(ms).UTC()); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
