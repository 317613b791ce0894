// Package audit records room lifecycle transitions. The coordinator hands
// events to a Publisher, which appends them to a Redis stream; Run tails
// that stream into Postgres for later inspection.
package audit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"collabnotes/internal/coordinator"
)

const (
	stream       = "room_events_stream"
	streamMaxLen = 100_000
	xaddTimeout  = 2 * time.Second
)

// Publisher is a coordinator.Observer that never blocks: events queue in a
// bounded buffer and are dropped (and counted) when it is full.
type Publisher struct {
	rdc     *redis.Client
	queue   chan coordinator.Event
	dropped atomic.Int64
}

func NewPublisher(rdc *redis.Client, buffer int) *Publisher {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Publisher{rdc: rdc, queue: make(chan coordinator.Event, buffer)}
}

// Observe implements coordinator.Observer.
func (p *Publisher) Observe(ev coordinator.Event) {
	select {
	case p.queue <- ev:
	default:
		if n := p.dropped.Add(1); n%100 == 1 {
			zap.L().Warn("audit.queue_full", zap.Int64("dropped", n))
		}
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

// Run drains the queue into Redis until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.queue:
			if err := p.publish(ctx, ev); err != nil {
				zap.L().Warn("audit.xadd", zap.String("room", ev.RoomID), zap.Error(err))
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, ev coordinator.Event) error {
	ctx, cancel := context.WithTimeout(ctx, xaddTimeout)
	defer cancel()
	return p.rdc.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: []interface{}{
			"room", ev.RoomID,
			"kind", string(ev.Kind),
			"user", ev.UserID,
			"at", ev.At.UnixMilli(),
		},
	}).Err()
}
