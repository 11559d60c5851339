package services

import (
	"context"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	"github.com/SscSPs/procure_to_pay/internal/dto"
	"github.com/shopspring/decimal"
)

// BudgetLedgerReaderSvc defines read operations for budget lines
type BudgetLedgerReaderSvc interface {
	// GetBudgetLine retrieves a specific budget line by its unique identifier.
	GetBudgetLine(ctx context.Context, budgetLineID string) (*domain.BudgetLine, error)

	// AvailableAmount is allocated - committed - spent for the line.
	AvailableAmount(ctx context.Context, budgetLineID string) (decimal.Decimal, error)

	// UtilizationPercentage is spent / allocated * 100 for the line.
	UtilizationPercentage(ctx context.Context, budgetLineID string) (decimal.Decimal, error)

	ListBudgetLines(ctx context.Context, filter domain.BudgetLineFilter) ([]domain.BudgetLine, error)

	// ListTransactions returns the ledger trail of a line newest first using token-based pagination.
	ListTransactions(ctx context.Context, budgetLineID string, limit int, nextToken *string) ([]domain.BudgetTransaction, *string, error)
}

// BudgetLedgerWriterSvc defines every operation that may change a budget line.
// All of them run under the per-line lock inside a single transaction.
type BudgetLedgerWriterSvc interface {
	// Allocate creates a new line with nothing committed or spent.
	Allocate(ctx context.Context, req dto.AllocateBudgetRequest, actorID string) (*domain.BudgetLine, error)

	// Reallocate moves allocation between two lines of the same fiscal year.
	Reallocate(ctx context.Context, fromLineID, toLineID string, amount decimal.Decimal, reason string, actorID string) error

	// Commit reserves amount against an order that is not yet paid.
	Commit(ctx context.Context, budgetLineID string, amount decimal.Decimal, ref domain.LedgerReference, actorID string) (*domain.BudgetLine, error)

	// ReleaseCommitment frees min(amount, committed) and returns what was released.
	// Releasing nothing is a no-op that writes no row.
	ReleaseCommitment(ctx context.Context, budgetLineID string, amount decimal.Decimal, ref domain.LedgerReference, actorID string) (decimal.Decimal, error)

	// RecordExpenditure releases up to amount of commitment and adds the full amount to spend.
	RecordExpenditure(ctx context.Context, budgetLineID string, amount decimal.Decimal, ref domain.LedgerReference, actorID string) (*domain.BudgetLine, error)

	// CloseFiscalYear locks every line of the year against further mutation.
	CloseFiscalYear(ctx context.Context, fiscalYear int, actorID string) (int64, error)
}

// BudgetLedgerSvcFacade combines all ledger-related service interfaces
type BudgetLedgerSvcFacade interface {
	BudgetLedgerReaderSvc
	BudgetLedgerWriterSvc
}

// BudgetReportingSvc aggregates budget lines for a fiscal year.
type BudgetReportingSvc interface {
	DepartmentBudgetReport(ctx context.Context, fiscalYear int) ([]domain.DepartmentBudgetSummary, error)
	VarianceAnalysis(ctx context.Context, fiscalYear int) ([]domain.BudgetVariance, error)
	BudgetByCategory(ctx context.Context, fiscalYear int) ([]domain.CategoryBudgetSummary, error)
}
