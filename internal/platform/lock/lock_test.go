package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type locker interface {
	WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

func newRedisLocker(t *testing.T) *RedisLocker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, Options{Expiry: 5 * time.Second, Tries: 200, RetryDelay: 5 * time.Millisecond})
}

func lockers(t *testing.T) map[string]locker {
	return map[string]locker{
		"local": NewLocalLocker(),
		"redis": newRedisLocker(t),
	}
}

func TestWithLock_SerializesSameKey(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			var inside, maxInside int32
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := l.WithLock(context.Background(), []string{domain.BudgetLineLockKey("line-1")}, func(ctx context.Context) error {
						n := atomic.AddInt32(&inside, 1)
						for {
							m := atomic.LoadInt32(&maxInside)
							if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
								break
							}
						}
						time.Sleep(2 * time.Millisecond)
						atomic.AddInt32(&inside, -1)
						return nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), maxInside)
		})
	}
}

func TestWithLock_ReentrantForHeldKeys(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			key := domain.BudgetLineLockKey("line-1")
			calls := 0
			err := l.WithLock(context.Background(), []string{key}, func(ctx context.Context) error {
				return l.WithLock(ctx, []string{key, key}, func(ctx context.Context) error {
					calls++
					return nil
				})
			})
			require.NoError(t, err)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestWithLock_ReleasesOnError(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			key := domain.BudgetLineLockKey("line-2")
			boom := assert.AnError
			err := l.WithLock(context.Background(), []string{key}, func(ctx context.Context) error { return boom })
			assert.ErrorIs(t, err, boom)

			done := make(chan struct{})
			go func() {
				_ = l.WithLock(context.Background(), []string{key}, func(ctx context.Context) error { return nil })
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("lock was not released after an error")
			}
		})
	}
}

func TestPending_SortsAndSkipsHeld(t *testing.T) {
	ctx := withHeld(context.Background(), []string{"b"})
	assert.Equal(t, []string{"a", "c"}, pending(ctx, []string{"c", "b", "a", "c"}))
}

func TestRedisLocker_ExtendsWhileHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := NewRedisLocker(client, Options{Expiry: 200 * time.Millisecond, Tries: 1, RetryDelay: time.Millisecond})
	key := domain.BudgetLineLockKey("line-3")

	err := l.WithLock(context.Background(), []string{key}, func(ctx context.Context) error {
		mr.FastForward(150 * time.Millisecond)
		require.Less(t, mr.TTL(key), 100*time.Millisecond)
		assert.Eventually(t, func() bool { return mr.TTL(key) > 100*time.Millisecond }, time.Second, 10*time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(key))
}
