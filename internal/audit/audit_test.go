package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabnotes/internal/coordinator"
)

func TestPublisher_Publish(t *testing.T) {
	rdc, mock := redismock.NewClientMock()
	p := NewPublisher(rdc, 4)

	at := time.UnixMilli(1_700_000_000_123).UTC()
	mock.ExpectXAdd(&redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: []interface{}{"room", "r1", "kind", "locked", "user", "A", "at", at.UnixMilli()},
	}).SetVal("1-0")

	err := p.publish(context.Background(), coordinator.Event{RoomID: "r1", Kind: coordinator.KindLocked, UserID: "A", At: at})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublisher_ObserveNeverBlocks(t *testing.T) {
	rdc, _ := redismock.NewClientMock()
	p := NewPublisher(rdc, 2)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			p.Observe(coordinator.Event{RoomID: "r1", Kind: coordinator.KindJoined})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Observe blocked on a full queue")
	}
	assert.EqualValues(t, 8, p.Dropped())
}

func TestPersist(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.UnixMilli(1_700_000_000_000).UTC()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO room_events").
		WithArgs("1-0", "r1", "joined", "A", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO room_events").
		WithArgs("1-2", "r1", "room_closed", "A", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	msgs := []redis.XMessage{
		{ID: "1-0", Values: map[string]interface{}{"room": "r1", "kind": "joined", "user": "A", "at": "1700000000000"}},
		{ID: "1-1", Values: map[string]interface{}{"kind": "joined"}}, // malformed, skipped
		{ID: "1-2", Values: map[string]interface{}{"room": "r1", "kind": "room_closed", "user": "A", "at": "1700000000000"}},
	}
	require.NoError(t, persist(context.Background(), db, msgs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersist_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO room_events").WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	msgs := []redis.XMessage{
		{ID: "1-0", Values: map[string]interface{}{"room": "r1", "kind": "joined", "user": "A", "at": "1"}},
	}
	assert.EqualError(t, persist(context.Background(), db, msgs), "db down")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2025, 7, 27, 16, 5, 5, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"stream_id", "room_id", "kind", "user_id", "at"}).
		AddRow("1-1", "r1", "locked", "A", at).
		AddRow("1-0", "r1", "room_opened", "A", at)
	mock.ExpectQuery("SELECT stream_id, room_id, kind, user_id, at").
		WithArgs("r1", 50, 0).
		WillReturnRows(rows)

	got, err := NewHistory(db).RoomHistory(context.Background(), "r1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{StreamID: "1-1", RoomID: "r1", Kind: "locked", UserID: "A", At: at},
		{StreamID: "1-0", RoomID: "r1", Kind: "room_opened", UserID: "A", At: at},
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS room_events").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, EnsureSchema(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}
