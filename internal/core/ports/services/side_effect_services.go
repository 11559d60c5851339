package services

import (
	"context"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
)

// AuditSink records who did what to which entity. Failures are logged, never returned.
type AuditSink interface {
	Log(ctx context.Context, entry domain.AuditLog)
}

// Notifier dispatches messages to users. Failures are logged, never returned.
type Notifier interface {
	Notify(ctx context.Context, notification domain.Notification)
}

// Locker serializes work on named resources across processes.
type Locker interface {
	// WithLock acquires every key, in sorted order, runs fn and releases them.
	// Keys already held by ctx are not acquired again.
	WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}
