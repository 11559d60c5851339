package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetLine is a row of budget_lines.
type BudgetLine struct {
	BudgetLineID    string          `db:"budget_line_id"`
	DepartmentID    string          `db:"department_id"`
	CostCenter      string          `db:"cost_center"`
	FiscalYear      int32           `db:"fiscal_year"`
	Category        string          `db:"category"`
	AllocatedAmount decimal.Decimal `db:"allocated_amount"`
	CommittedAmount decimal.Decimal `db:"committed_amount"`
	SpentAmount     decimal.Decimal `db:"spent_amount"`
	IsActive        bool            `db:"is_active"`
	IsLocked        bool            `db:"is_locked"`
	AuditFields
}

// BudgetTransaction is a row of budget_transactions. Reference columns are nullable.
type BudgetTransaction struct {
	TransactionID   string          `db:"transaction_id"`
	BudgetLineID    string          `db:"budget_line_id"`
	TransactionType string          `db:"transaction_type"`
	Amount          decimal.Decimal `db:"amount"`
	ReferenceType   *string         `db:"reference_type"`
	ReferenceID     *string         `db:"reference_id"`
	Description     string          `db:"description"`
	CreatedBy       string          `db:"created_by"`
	CreatedAt       time.Time       `db:"created_at"`
}
