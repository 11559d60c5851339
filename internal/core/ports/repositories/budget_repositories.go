package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
)

// BudgetLineReader defines read operations for budget lines
type BudgetLineReader interface {
	// FindBudgetLineByID retrieves a budget line by its unique identifier.
	FindBudgetLineByID(ctx context.Context, budgetLineID string) (*domain.BudgetLine, error)

	// ListBudgetLines retrieves every line matching the filter, ordered by department and cost center.
	ListBudgetLines(ctx context.Context, filter domain.BudgetLineFilter) ([]domain.BudgetLine, error)
}

// BudgetLineWriter defines write operations for budget lines
type BudgetLineWriter interface {
	// SaveBudgetLine persists a new line. A second line for the same department, cost
	// center, fiscal year and category returns apperrors.ErrDuplicate.
	SaveBudgetLine(ctx context.Context, line domain.BudgetLine) error

	// UpdateBudgetLineBalances stores allocated, committed and spent amounts of the line.
	UpdateBudgetLineBalances(ctx context.Context, line domain.BudgetLine) error

	// LockFiscalYear finalizes every unlocked line of the year and returns how many changed.
	LockFiscalYear(ctx context.Context, fiscalYear int, userID string, now time.Time) (int64, error)
}

// BudgetLineTransactionSupport defines operations that must run inside a transaction
type BudgetLineTransactionSupport interface {
	// FindBudgetLineForUpdate selects the line and holds it until the transaction ends.
	FindBudgetLineForUpdate(ctx context.Context, budgetLineID string) (*domain.BudgetLine, error)
}

// BudgetTransactionRepository stores the append-only ledger trail.
type BudgetTransactionRepository interface {
	SaveBudgetTransactions(ctx context.Context, txns ...domain.BudgetTransaction) error

	// ListBudgetTransactions returns the trail of a line newest first, with a token for the next page.
	ListBudgetTransactions(ctx context.Context, budgetLineID string, limit int, nextToken *string) ([]domain.BudgetTransaction, *string, error)
}

// BudgetRepositoryFacade combines all budget-related repository interfaces
type BudgetRepositoryFacade interface {
	BudgetLineReader
	BudgetLineWriter
	BudgetLineTransactionSupport
	BudgetTransactionRepository
}
