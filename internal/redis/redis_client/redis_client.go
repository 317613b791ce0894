package redis_client

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const pingTimeout = 5 * time.Second

// NewRedisClient connects to the Redis instance used for presence mirroring,
// the room event stream and per-room notice channels. The pool is sized for
// one long-lived SUBSCRIBE connection per live room on top of regular traffic.
func NewRedisClient(host string, port int) (*redis.Client, error) {
	maxPool := runtime.NumCPU() * 8
	if maxPool > 512 {
		maxPool = 512
	}

	rc := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		PoolSize: maxPool,
	})

	ctx, cancelFunc := context.WithTimeout(context.Background(), pingTimeout)
	defer cancelFunc()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		err = errors.New("redis connection failed: " + err.Error())
		zap.L().Error("redis.connect", zap.Error(err))
		return nil, err
	}
	return rc, nil
}
