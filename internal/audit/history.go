package audit

import (
	"context"
	"database/sql"
	"time"
)

// Entry is one persisted lifecycle event.
type Entry struct {
	StreamID string    `json:"stream_id"`
	RoomID   string    `json:"room_id"`
	Kind     string    `json:"kind"`
	UserID   string    `json:"user_id"`
	At       time.Time `json:"at" example:"2025-07-27T16:05:05Z"`
}

type IHistory interface {
	RoomHistory(ctx context.Context, roomID string, limit, offset int) ([]Entry, error)
}

type history struct {
	db *sql.DB
}

func NewHistory(db *sql.DB) IHistory { return &history{db: db} }

// RoomHistory lists the newest events of a room first.
func (h *history) RoomHistory(ctx context.Context, roomID string, limit, offset int) ([]Entry, error) {
	if limit == 0 {
		limit = 50
	}
	const q = `SELECT stream_id, room_id, kind, user_id, at
	             FROM room_events
	            WHERE room_id = $1
	         ORDER BY at DESC, stream_id DESC
	            LIMIT $2 OFFSET $3`
	rows, err := h.db.QueryContext(ctx, q, roomID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.StreamID, &e.RoomID, &e.Kind, &e.UserID, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
