package pgsql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/middleware"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of pgx shared by the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type txKey struct{}

type txState struct {
	tx          pgx.Tx
	afterCommit []func(ctx context.Context)
}

func txFrom(ctx context.Context) *txState {
	st, _ := ctx.Value(txKey{}).(*txState)
	return st
}

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	Pool *pgxpool.Pool
}

// db returns the transaction carried by ctx, or the pool outside one.
func (r *BaseRepository) db(ctx context.Context) querier {
	if st := txFrom(ctx); st != nil {
		return st.tx
	}
	return r.Pool
}

// Begin starts a new database transaction
func (r *BaseRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to begin transaction", err)
	}
	return tx, nil
}

// Commit commits a transaction
func (r *BaseRepository) Commit(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewAppError(500, "failed to commit transaction", err)
	}
	return nil
}

// Rollback rolls back a transaction
func (r *BaseRepository) Rollback(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return apperrors.NewAppError(500, "failed to rollback transaction", err)
	}
	return nil
}

// TxManager runs units of work in a pgx transaction carried by the context.
type TxManager struct {
	BaseRepository
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{BaseRepository: BaseRepository{Pool: pool}}
}

// WithinTx implements repositories.TransactionManager.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}
	tx, err := m.Begin(ctx)
	if err != nil {
		return err
	}
	st := &txState{tx: tx}
	defer func() {
		if p := recover(); p != nil {
			_ = m.Rollback(ctx, tx)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		if rbErr := m.Rollback(ctx, tx); rbErr != nil {
			middleware.GetLoggerFromCtx(ctx).Error("Failed to roll back transaction", slog.String("error", rbErr.Error()))
		}
		return err
	}
	if err := m.Commit(ctx, tx); err != nil {
		return err
	}
	for _, f := range st.afterCommit {
		f(ctx)
	}
	return nil
}

// AfterCommit implements repositories.TransactionManager.
func (m *TxManager) AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if st := txFrom(ctx); st != nil {
		st.afterCommit = append(st.afterCommit, fn)
		return
	}
	fn(ctx)
}

// saveError maps a unique violation to apperrors.ErrDuplicate.
func saveError(err error, what string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		return fmt.Errorf("%s: %w", what, apperrors.ErrDuplicate)
	}
	return apperrors.NewAppError(500, "failed to save "+what, err)
}

// findError maps pgx.ErrNoRows to apperrors.ErrNotFound.
func findError(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, apperrors.ErrNotFound)
	}
	return apperrors.NewAppError(500, "failed to find "+what, err)
}

// mustAffect turns an update that touched no row into apperrors.ErrNotFound.
func mustAffect(tag pgconn.CommandTag, err error, what string) error {
	if err != nil {
		return apperrors.NewAppError(500, "failed to update "+what, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", what, apperrors.ErrNotFound)
	}
	return nil
}
