// Package lock serializes ledger mutations per budget line, in process or across
// instances through Redis.
package lock

import (
	"context"
	"sort"
	"sync"
)

type heldKeysKey struct{}

// pending returns the sorted, de-duplicated keys that ctx does not hold yet.
func pending(ctx context.Context, keys []string) []string {
	held, _ := ctx.Value(heldKeysKey{}).(map[string]struct{})
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := held[k]; ok {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func withHeld(ctx context.Context, keys []string) context.Context {
	if len(keys) == 0 {
		return ctx
	}
	prev, _ := ctx.Value(heldKeysKey{}).(map[string]struct{})
	next := make(map[string]struct{}, len(prev)+len(keys))
	for k := range prev {
		next[k] = struct{}{}
	}
	for _, k := range keys {
		next[k] = struct{}{}
	}
	return context.WithValue(ctx, heldKeysKey{}, next)
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

// LocalLocker is a keyed mutex for single-instance deployments.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: map[string]*refMutex{}}
}

func (l *LocalLocker) WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	todo := pending(ctx, keys)
	for _, k := range todo {
		l.acquire(k)
	}
	defer func() {
		for i := len(todo) - 1; i >= 0; i-- {
			l.release(todo[i])
		}
	}()
	return fn(withHeld(ctx, todo))
}

func (l *LocalLocker) acquire(key string) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &refMutex{}
		l.locks[key] = m
	}
	m.refs++
	l.mu.Unlock()
	m.mu.Lock()
}

func (l *LocalLocker) release(key string) {
	l.mu.Lock()
	m := l.locks[key]
	m.refs--
	if m.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
	m.mu.Unlock()
}
