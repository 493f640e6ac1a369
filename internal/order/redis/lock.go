package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-ticketcodes/internal/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var ErrLockTimeout = errors.New("timed out waiting for order lock")

// releaseScript deletes the key only while it still holds our token, so a
// holder whose TTL expired cannot drop a lock someone else now owns.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// OrderLock serializes completion work for one order across instances.
// The database guard is authoritative; this lock only lets a second caller
// wait for the first instead of racing it.
type OrderLock struct {
	Client  *redis.Client
	TTL     time.Duration
	Wait    time.Duration
	Backoff time.Duration
	Logger  *logger.Logger
}

func NewOrderLock(client *redis.Client, ttl, wait, backoff time.Duration, log *logger.Logger) *OrderLock {
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	return &OrderLock{
		Client:  client,
		TTL:     ttl,
		Wait:    wait,
		Backoff: backoff,
		Logger:  log,
	}
}

func lockKey(orderID string) string {
	return "order_complete_lock:" + orderID
}

// Acquire blocks until the lock for orderID is held, the wait budget runs
// out, or ctx is done. The returned release func is safe to call once.
func (l *OrderLock) Acquire(ctx context.Context, orderID string) (func(), error) {
	key := lockKey(orderID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.Wait)

	for {
		ok, err := l.Client.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock error: %w", err)
		}
		if ok {
			l.Logger.Debug("REDIS", fmt.Sprintf("Acquired completion lock for order %s", orderID))
			return func() { l.release(key, token, orderID) }, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.Backoff):
		}
	}
}

func (l *OrderLock) release(key, token, orderID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.Client, []string{key}, token).Err(); err != nil && err != redis.Nil {
		l.Logger.Warn("REDIS", fmt.Sprintf("Failed to release completion lock for order %s: %v", orderID, err))
	}
}
