package repositories

import "context"

// TransactionManager runs units of work atomically. The active transaction travels
// in the context, so repositories called with that context take part in it.
type TransactionManager interface {
	// WithinTx runs fn in a transaction. A nested call joins the outer transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	// AfterCommit queues fn to run once the outermost transaction commits. Queued
	// functions are dropped on rollback. Without an open transaction fn runs immediately.
	AfterCommit(ctx context.Context, fn func(ctx context.Context))
}
