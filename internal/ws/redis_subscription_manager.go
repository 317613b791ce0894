package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"collabnotes/internal/coordinator"
)

const noticeChannelPrefix = "room:"
const noticeChannelSuffix = ":notices"

// NoticeChannel is the Redis channel external services publish room
// notices to, e.g. the notes API after a save.
func NoticeChannel(roomID string) string {
	return noticeChannelPrefix + roomID + noticeChannelSuffix
}

// noticeSink is satisfied by *coordinator.Coordinator.
type noticeSink interface {
	Notice(roomID, message string) error
}

// subscribeFunc opens a subscription and returns its message stream plus a
// closer. Swapped out in tests.
type subscribeFunc func(ctx context.Context, channel string) (<-chan *redis.Message, func() error)

type subOp struct {
	roomID    string
	subscribe bool
}

// SubscriptionManager keeps **exactly one** Redis subscription per live
// room. It follows room lifetimes through coordinator events, so Observe
// only queues work and Run performs the Redis I/O in order.
type SubscriptionManager struct {
	sink      noticeSink
	subscribe subscribeFunc

	mu      sync.Mutex
	pending []subOp
	wake    chan struct{}

	subs map[string]context.CancelFunc // roomID → stop fan‑out; owned by Run
}

func NewSubscriptionManager(rdb *redis.Client, sink noticeSink) *SubscriptionManager {
	return newSubscriptionManager(func(ctx context.Context, channel string) (<-chan *redis.Message, func() error) {
		ps := rdb.Subscribe(ctx, channel)
		return ps.Channel(), ps.Close
	}, sink)
}

func newSubscriptionManager(sub subscribeFunc, sink noticeSink) *SubscriptionManager {
	return &SubscriptionManager{
		sink:      sink,
		subscribe: sub,
		wake:      make(chan struct{}, 1),
		subs:      make(map[string]context.CancelFunc),
	}
}

// Observe implements coordinator.Observer.
func (sm *SubscriptionManager) Observe(ev coordinator.Event) {
	var op subOp
	switch ev.Kind {
	case coordinator.KindRoomOpened:
		op = subOp{roomID: ev.RoomID, subscribe: true}
	case coordinator.KindRoomClosed:
		op = subOp{roomID: ev.RoomID}
	default:
		return
	}

	sm.mu.Lock()
	sm.pending = append(sm.pending, op)
	sm.mu.Unlock()

	select {
	case sm.wake <- struct{}{}:
	default:
	}
}

// Run applies queued subscription changes until ctx is done.
func (sm *SubscriptionManager) Run(ctx context.Context) {
	defer func() {
		for id, cancel := range sm.subs {
			cancel()
			delete(sm.subs, id)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sm.wake:
		}

		sm.mu.Lock()
		ops := sm.pending
		sm.pending = nil
		sm.mu.Unlock()

		for _, op := range ops {
			if op.subscribe {
				sm.start(ctx, op.roomID)
			} else {
				sm.stop(op.roomID)
			}
		}
	}
}

func (sm *SubscriptionManager) start(parent context.Context, roomID string) {
	if _, ok := sm.subs[roomID]; ok {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	msgs, closeFn := sm.subscribe(ctx, NoticeChannel(roomID))
	sm.subs[roomID] = cancel

	go func() {
		defer func() { _ = closeFn() }()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok { // Redis connection closed.
					return
				}
				if err := sm.sink.Notice(roomID, noticeText(m.Payload)); err != nil {
					zap.L().Debug("ws.notice_dropped", zap.String("room", roomID), zap.Error(err))
				}
			}
		}
	}()
}

func (sm *SubscriptionManager) stop(roomID string) {
	cancel, ok := sm.subs[roomID]
	if !ok {
		return
	}
	delete(sm.subs, roomID)
	cancel()
}

// noticeText accepts either {"message":"..."} or a bare string payload.
func noticeText(payload string) string {
	var body struct {
		Message string `json:"message"`
	}
	if strings.HasPrefix(strings.TrimSpace(payload), "{") &&
		json.Unmarshal([]byte(payload), &body) == nil && body.Message != "" {
		return body.Message
	}
	return payload
}
