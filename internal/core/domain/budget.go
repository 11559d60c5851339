package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetCategory separates recurrent spending from capital projects.
type BudgetCategory string

const (
	CategoryOperational BudgetCategory = "OPERATIONAL"
	CategoryCapital     BudgetCategory = "CAPITAL"
)

// BudgetTransactionType identifies which balance a ledger row moved.
type BudgetTransactionType string

const (
	TxnAllocation        BudgetTransactionType = "allocation"
	TxnCommitment        BudgetTransactionType = "commitment"
	TxnCommitmentRelease BudgetTransactionType = "commitment_release"
	TxnExpenditure       BudgetTransactionType = "expenditure"
	TxnReallocationIn    BudgetTransactionType = "reallocation_in"
	TxnReallocationOut   BudgetTransactionType = "reallocation_out"
)

var hundred = decimal.NewFromInt(100)

// BudgetLine is one fiscal-year allocation for a department cost center.
type BudgetLine struct {
	BudgetLineID    string          `json:"budgetLineID"`
	DepartmentID    string          `json:"departmentID"`
	CostCenter      string          `json:"costCenter"`
	FiscalYear      int             `json:"fiscalYear"`
	Category        BudgetCategory  `json:"category"`
	AllocatedAmount decimal.Decimal `json:"allocatedAmount"`
	CommittedAmount decimal.Decimal `json:"committedAmount"`
	SpentAmount     decimal.Decimal `json:"spentAmount"`
	IsActive        bool            `json:"isActive"`
	IsLocked        bool            `json:"isLocked"`
	AuditFields
}

// AvailableAmount is allocated - committed - spent. It may go negative after price variance.
func (b BudgetLine) AvailableAmount() decimal.Decimal {
	return b.AllocatedAmount.Sub(b.CommittedAmount).Sub(b.SpentAmount)
}

// UtilizationPercentage is spent / allocated * 100, rounded to 2 places. Zero allocation yields zero.
func (b BudgetLine) UtilizationPercentage() decimal.Decimal {
	if b.AllocatedAmount.IsZero() {
		return decimal.Zero
	}
	return b.SpentAmount.Div(b.AllocatedAmount).Mul(hundred).Round(2)
}

// CanMutate reports whether ledger operations may still change the line.
func (b BudgetLine) CanMutate() bool {
	return b.IsActive && !b.IsLocked
}

// BudgetTransaction is an immutable ledger row. Amount is signed by its effect on the
// balance named by Type: allocation, reallocation_in, commitment and expenditure are
// positive; reallocation_out and commitment_release are negative.
type BudgetTransaction struct {
	TransactionID string                `json:"transactionID"`
	BudgetLineID  string                `json:"budgetLineID"`
	Type          BudgetTransactionType `json:"type"`
	Amount        decimal.Decimal       `json:"amount"`
	ReferenceType string                `json:"referenceType,omitempty"`
	ReferenceID   string                `json:"referenceID,omitempty"`
	Description   string                `json:"description"`
	CreatedBy     string                `json:"createdBy"`
	CreatedAt     time.Time             `json:"createdAt"`
}

// BudgetBalances are the three stored balances of a line.
type BudgetBalances struct {
	Allocated decimal.Decimal
	Committed decimal.Decimal
	Spent     decimal.Decimal
}

// ReplayBalances rebuilds line balances from its transaction trail.
func ReplayBalances(txns []BudgetTransaction) BudgetBalances {
	b := BudgetBalances{Allocated: decimal.Zero, Committed: decimal.Zero, Spent: decimal.Zero}
	for _, t := range txns {
		switch t.Type {
		case TxnAllocation, TxnReallocationIn, TxnReallocationOut:
			b.Allocated = b.Allocated.Add(t.Amount)
		case TxnCommitment, TxnCommitmentRelease:
			b.Committed = b.Committed.Add(t.Amount)
		case TxnExpenditure:
			b.Spent = b.Spent.Add(t.Amount)
		}
	}
	return b
}

// BudgetLineFilter narrows ListBudgetLines. Zero values are ignored.
type BudgetLineFilter struct {
	FiscalYear   int
	DepartmentID string
	Category     BudgetCategory
}

// DepartmentBudgetSummary aggregates all lines of one department for a fiscal year.
type DepartmentBudgetSummary struct {
	DepartmentID          string          `json:"departmentID"`
	FiscalYear            int             `json:"fiscalYear"`
	LineCount             int             `json:"lineCount"`
	Allocated             decimal.Decimal `json:"allocated"`
	Committed             decimal.Decimal `json:"committed"`
	Spent                 decimal.Decimal `json:"spent"`
	Available             decimal.Decimal `json:"available"`
	UtilizationPercentage decimal.Decimal `json:"utilizationPercentage"`
}

// BudgetVariance compares a line's allocation with its actual spend.
type BudgetVariance struct {
	BudgetLineID    string          `json:"budgetLineID"`
	DepartmentID    string          `json:"departmentID"`
	CostCenter      string          `json:"costCenter"`
	Allocated       decimal.Decimal `json:"allocated"`
	Actual          decimal.Decimal `json:"actual"`
	Committed       decimal.Decimal `json:"committed"`
	Variance        decimal.Decimal `json:"variance"`
	VariancePercent decimal.Decimal `json:"variancePercent"`
	OverBudget      bool            `json:"overBudget"`
}

// CategoryBudgetSummary aggregates lines per budget category.
type CategoryBudgetSummary struct {
	Category  BudgetCategory  `json:"category"`
	Allocated decimal.Decimal `json:"allocated"`
	Committed decimal.Decimal `json:"committed"`
	Spent     decimal.Decimal `json:"spent"`
	Available decimal.Decimal `json:"available"`
}

// LedgerReference tags a ledger mutation with the document that caused it.
type LedgerReference struct {
	Type        string
	ID          string
	Description string
}

// BudgetLineLockKey names the exclusive lock guarding one budget line.
func BudgetLineLockKey(budgetLineID string) string {
	return "lock:budget_line:" + budgetLineID
}
