package dto

import (
	"time"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	"github.com/shopspring/decimal"
)

// AllocateBudgetRequest defines the data needed to open a budget line for a fiscal year.
type AllocateBudgetRequest struct {
	DepartmentID  string          `json:"departmentID" binding:"required"`
	CostCenter    string          `json:"costCenter" binding:"required"`
	FiscalYear    int             `json:"fiscalYear" binding:"required,min=2000,max=2100"`
	Amount        decimal.Decimal `json:"amount" binding:"dgt=0"`
	IsOperational bool            `json:"isOperational"`
	Description   string          `json:"description"`
}

// ReallocateBudgetRequest moves allocation from one line to another.
type ReallocateBudgetRequest struct {
	FromBudgetLineID string          `json:"fromBudgetLineID" binding:"required"`
	ToBudgetLineID   string          `json:"toBudgetLineID" binding:"required"`
	Amount           decimal.Decimal `json:"amount" binding:"dgt=0"`
	Reason           string          `json:"reason" binding:"required"`
}

// LedgerMutationRequest is the body of commit, release and expenditure calls.
type LedgerMutationRequest struct {
	Amount        decimal.Decimal `json:"amount" binding:"dgt=0"`
	ReferenceType string          `json:"referenceType" binding:"required"`
	ReferenceID   string          `json:"referenceID" binding:"required"`
	Description   string          `json:"description"`
}

// ToReference converts the request into the reference carried by ledger rows.
func (r LedgerMutationRequest) ToReference() domain.LedgerReference {
	return domain.LedgerReference{Type: r.ReferenceType, ID: r.ReferenceID, Description: r.Description}
}

// ListBudgetLinesParams defines query parameters for listing budget lines.
type ListBudgetLinesParams struct {
	FiscalYear   int    `form:"fiscalYear"`
	DepartmentID string `form:"departmentID"`
	Category     string `form:"category" binding:"omitempty,oneof=OPERATIONAL CAPITAL"`
}

// ListTransactionsParams defines query parameters for the ledger trail.
type ListTransactionsParams struct {
	Limit     int     `form:"limit,default=20" binding:"min=1,max=100"`
	NextToken *string `form:"nextToken"`
}

// BudgetLineResponse defines the data returned for a budget line, including derived balances.
type BudgetLineResponse struct {
	BudgetLineID          string                `json:"budgetLineID"`
	DepartmentID          string                `json:"departmentID"`
	CostCenter            string                `json:"costCenter"`
	FiscalYear            int                   `json:"fiscalYear"`
	Category              domain.BudgetCategory `json:"category"`
	AllocatedAmount       decimal.Decimal       `json:"allocatedAmount"`
	CommittedAmount       decimal.Decimal       `json:"committedAmount"`
	SpentAmount           decimal.Decimal       `json:"spentAmount"`
	AvailableAmount       decimal.Decimal       `json:"availableAmount"`
	UtilizationPercentage decimal.Decimal       `json:"utilizationPercentage"`
	IsActive              bool                  `json:"isActive"`
	IsLocked              bool                  `json:"isLocked"`
	CreatedAt             time.Time             `json:"createdAt"`
	CreatedBy             string                `json:"createdBy"`
	LastUpdatedAt         time.Time             `json:"lastUpdatedAt"`
	LastUpdatedBy         string                `json:"lastUpdatedBy"`
}

// ToBudgetLineResponse converts a domain.BudgetLine to BudgetLineResponse DTO
func ToBudgetLineResponse(line *domain.BudgetLine) BudgetLineResponse {
	return BudgetLineResponse{
		BudgetLineID:          line.BudgetLineID,
		DepartmentID:          line.DepartmentID,
		CostCenter:            line.CostCenter,
		FiscalYear:            line.FiscalYear,
		Category:              line.Category,
		AllocatedAmount:       line.AllocatedAmount,
		CommittedAmount:       line.CommittedAmount,
		SpentAmount:           line.SpentAmount,
		AvailableAmount:       line.AvailableAmount(),
		UtilizationPercentage: line.UtilizationPercentage(),
		IsActive:              line.IsActive,
		IsLocked:              line.IsLocked,
		CreatedAt:             line.CreatedAt,
		CreatedBy:             line.CreatedBy,
		LastUpdatedAt:         line.LastUpdatedAt,
		LastUpdatedBy:         line.LastUpdatedBy,
	}
}

// ToBudgetLineResponses converts a slice of domain.BudgetLine.
func ToBudgetLineResponses(lines []domain.BudgetLine) []BudgetLineResponse {
	out := make([]BudgetLineResponse, len(lines))
	for i := range lines {
		out[i] = ToBudgetLineResponse(&lines[i])
	}
	return out
}

// ListBudgetTransactionsResponse wraps a page of the ledger trail.
type ListBudgetTransactionsResponse struct {
	Transactions []domain.BudgetTransaction `json:"transactions"`
	NextToken    *string                    `json:"nextToken,omitempty"`
}

// ReleaseCommitmentResponse reports how much commitment was actually freed.
type ReleaseCommitmentResponse struct {
	Released decimal.Decimal    `json:"released"`
	Line     BudgetLineResponse `json:"line"`
}

// CloseFiscalYearResponse reports how many lines were finalized.
type CloseFiscalYearResponse struct {
	FiscalYear  int   `json:"fiscalYear"`
	LinesLocked int64 `json:"linesLocked"`
}
