package mapping

import (
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	"github.com/SscSPs/procure_to_pay/internal/models"
)

func ToModelBudgetLine(d domain.BudgetLine) models.BudgetLine {
	return models.BudgetLine{
		BudgetLineID:    d.BudgetLineID,
		DepartmentID:    d.DepartmentID,
		CostCenter:      d.CostCenter,
		FiscalYear:      int32(d.FiscalYear),
		Category:        string(d.Category),
		AllocatedAmount: d.AllocatedAmount,
		CommittedAmount: d.CommittedAmount,
		SpentAmount:     d.SpentAmount,
		IsActive:        d.IsActive,
		IsLocked:        d.IsLocked,
		AuditFields:     ToModelAuditFields(d.AuditFields),
	}
}

func ToDomainBudgetLine(m models.BudgetLine) domain.BudgetLine {
	return domain.BudgetLine{
		BudgetLineID:    m.BudgetLineID,
		DepartmentID:    m.DepartmentID,
		CostCenter:      m.CostCenter,
		FiscalYear:      int(m.FiscalYear),
		Category:        domain.BudgetCategory(m.Category),
		AllocatedAmount: m.AllocatedAmount,
		CommittedAmount: m.CommittedAmount,
		SpentAmount:     m.SpentAmount,
		IsActive:        m.IsActive,
		IsLocked:        m.IsLocked,
		AuditFields:     ToDomainAuditFields(m.AuditFields),
	}
}

func ToDomainBudgetLineSlice(ms []models.BudgetLine) []domain.BudgetLine {
	ds := make([]domain.BudgetLine, len(ms))
	for i, m := range ms {
		ds[i] = ToDomainBudgetLine(m)
	}
	return ds
}

// ToModelBudgetTransaction stores empty references as NULL.
func ToModelBudgetTransaction(d domain.BudgetTransaction) models.BudgetTransaction {
	return models.BudgetTransaction{
		TransactionID:   d.TransactionID,
		BudgetLineID:    d.BudgetLineID,
		TransactionType: string(d.Type),
		Amount:          d.Amount,
		ReferenceType:   nullable(d.ReferenceType),
		ReferenceID:     nullable(d.ReferenceID),
		Description:     d.Description,
		CreatedBy:       d.CreatedBy,
		CreatedAt:       d.CreatedAt,
	}
}

func ToDomainBudgetTransaction(m models.BudgetTransaction) domain.BudgetTransaction {
	return domain.BudgetTransaction{
		TransactionID: m.TransactionID,
		BudgetLineID:  m.BudgetLineID,
		Type:          domain.BudgetTransactionType(m.TransactionType),
		Amount:        m.Amount,
		ReferenceType: deref(m.ReferenceType),
		ReferenceID:   deref(m.ReferenceID),
		Description:   m.Description,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
