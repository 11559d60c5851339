package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SscSPs/procure_to_pay/internal/middleware"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// Options tune redsync mutexes.
type Options struct {
	// Expiry bounds how long a crashed holder can keep a line locked. Live holders
	// extend it every half expiry. If an extension is lost anyway, ledger writes are
	// still serialized by the SELECT ... FOR UPDATE on the budget line row.
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		Expiry:     10 * time.Second,
		Tries:      32,
		RetryDelay: 100 * time.Millisecond,
	}
}

// RedisLocker holds redsync mutexes so that every instance sharing the Redis
// server serializes on the same keys.
type RedisLocker struct {
	rs   *redsync.Redsync
	opts Options
}

func NewRedisLocker(client redis.UniversalClient, opts Options) *RedisLocker {
	return &RedisLocker{rs: redsync.New(goredis.NewPool(client)), opts: opts}
}

func (l *RedisLocker) WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	logger := middleware.GetLoggerFromCtx(ctx)
	todo := pending(ctx, keys)

	acquired := make([]*redsync.Mutex, 0, len(todo))
	defer func() {
		unlockCtx := context.WithoutCancel(ctx)
		for i := len(acquired) - 1; i >= 0; i-- {
			if ok, err := acquired[i].UnlockContext(unlockCtx); !ok || err != nil {
				logger.Warn("Failed to release lock", slog.String("key", acquired[i].Name()), slog.Any("error", err))
			}
		}
	}()

	for _, key := range todo {
		mutex := l.rs.NewMutex(key,
			redsync.WithExpiry(l.opts.Expiry),
			redsync.WithTries(l.opts.Tries),
			redsync.WithRetryDelay(l.opts.RetryDelay),
		)
		if err := mutex.LockContext(ctx); err != nil {
			logger.Error("Failed to acquire lock", slog.String("key", key), slog.String("error", err.Error()))
			return fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		acquired = append(acquired, mutex)
	}

	stop := l.keepAlive(ctx, acquired)
	defer stop()

	return fn(withHeld(ctx, todo))
}

// keepAlive extends the held mutexes every half expiry until stop is called.
func (l *RedisLocker) keepAlive(ctx context.Context, mutexes []*redsync.Mutex) (stop func()) {
	if len(mutexes) == 0 || l.opts.Expiry <= 0 {
		return func() {}
	}
	logger := middleware.GetLoggerFromCtx(ctx)
	extendCtx := context.WithoutCancel(ctx)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(l.opts.Expiry / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				for _, m := range mutexes {
					if ok, err := m.ExtendContext(extendCtx); !ok || err != nil {
						logger.Warn("Failed to extend lock", slog.String("key", m.Name()), slog.Any("error", err))
					}
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}
