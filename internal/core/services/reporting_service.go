package services

import (
	"context"
	"sort"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/procure_to_pay/internal/core/ports/services"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// reportingService implements the BudgetReportingSvc interface
type reportingService struct {
	BaseService
	budgets portsrepo.BudgetLineReader
}

// NewReportingService creates the fiscal year budget reports.
func NewReportingService(base BaseService, budgets portsrepo.BudgetLineReader) portssvc.BudgetReportingSvc {
	return &reportingService{BaseService: base, budgets: budgets}
}

// Ensure reportingService implements the BudgetReportingSvc interface
var _ portssvc.BudgetReportingSvc = (*reportingService)(nil)

func (s *reportingService) linesFor(ctx context.Context, fiscalYear int) ([]domain.BudgetLine, error) {
	lines, err := s.budgets.ListBudgetLines(ctx, domain.BudgetLineFilter{FiscalYear: fiscalYear})
	if err != nil {
		s.LogError(ctx, err, "Failed to load budget lines for report")
		return nil, err
	}
	return lines, nil
}

// DepartmentBudgetReport sums every line of a department, ordered by department id.
func (s *reportingService) DepartmentBudgetReport(ctx context.Context, fiscalYear int) ([]domain.DepartmentBudgetSummary, error) {
	lines, err := s.linesFor(ctx, fiscalYear)
	if err != nil {
		return nil, err
	}

	byDept := map[string]*domain.DepartmentBudgetSummary{}
	for _, l := range lines {
		sum, ok := byDept[l.DepartmentID]
		if !ok {
			sum = &domain.DepartmentBudgetSummary{
				DepartmentID: l.DepartmentID,
				FiscalYear:   fiscalYear,
				Allocated:    decimal.Zero,
				Committed:    decimal.Zero,
				Spent:        decimal.Zero,
			}
			byDept[l.DepartmentID] = sum
		}
		sum.LineCount++
		sum.Allocated = sum.Allocated.Add(l.AllocatedAmount)
		sum.Committed = sum.Committed.Add(l.CommittedAmount)
		sum.Spent = sum.Spent.Add(l.SpentAmount)
	}

	report := make([]domain.DepartmentBudgetSummary, 0, len(byDept))
	for _, sum := range byDept {
		sum.Available = sum.Allocated.Sub(sum.Committed).Sub(sum.Spent)
		sum.UtilizationPercentage = decimal.Zero
		if !sum.Allocated.IsZero() {
			sum.UtilizationPercentage = sum.Spent.Div(sum.Allocated).Mul(hundred).Round(2)
		}
		report = append(report, *sum)
	}
	sort.Slice(report, func(i, j int) bool { return report[i].DepartmentID < report[j].DepartmentID })
	return report, nil
}

// VarianceAnalysis compares allocation with actual spend per line.
func (s *reportingService) VarianceAnalysis(ctx context.Context, fiscalYear int) ([]domain.BudgetVariance, error) {
	lines, err := s.linesFor(ctx, fiscalYear)
	if err != nil {
		return nil, err
	}
	report := make([]domain.BudgetVariance, 0, len(lines))
	for _, l := range lines {
		variance := l.AllocatedAmount.Sub(l.SpentAmount)
		pct := decimal.Zero
		if !l.AllocatedAmount.IsZero() {
			pct = variance.Div(l.AllocatedAmount).Mul(hundred).Round(2)
		}
		report = append(report, domain.BudgetVariance{
			BudgetLineID:    l.BudgetLineID,
			DepartmentID:    l.DepartmentID,
			CostCenter:      l.CostCenter,
			Allocated:       l.AllocatedAmount,
			Actual:          l.SpentAmount,
			Committed:       l.CommittedAmount,
			Variance:        variance,
			VariancePercent: pct,
			OverBudget:      l.CommittedAmount.Add(l.SpentAmount).GreaterThan(l.AllocatedAmount),
		})
	}
	sort.Slice(report, func(i, j int) bool {
		if report[i].DepartmentID != report[j].DepartmentID {
			return report[i].DepartmentID < report[j].DepartmentID
		}
		return report[i].CostCenter < report[j].CostCenter
	})
	return report, nil
}

// BudgetByCategory sums lines per category. Both categories are always present.
func (s *reportingService) BudgetByCategory(ctx context.Context, fiscalYear int) ([]domain.CategoryBudgetSummary, error) {
	lines, err := s.linesFor(ctx, fiscalYear)
	if err != nil {
		return nil, err
	}
	categories := []domain.BudgetCategory{domain.CategoryOperational, domain.CategoryCapital}
	byCat := make(map[domain.BudgetCategory]*domain.CategoryBudgetSummary, len(categories))
	for _, c := range categories {
		byCat[c] = &domain.CategoryBudgetSummary{Category: c, Allocated: decimal.Zero, Committed: decimal.Zero, Spent: decimal.Zero}
	}
	for _, l := range lines {
		sum, ok := byCat[l.Category]
		if !ok {
			continue
		}
		sum.Allocated = sum.Allocated.Add(l.AllocatedAmount)
		sum.Committed = sum.Committed.Add(l.CommittedAmount)
		sum.Spent = sum.Spent.Add(l.SpentAmount)
	}
	report := make([]domain.CategoryBudgetSummary, 0, len(categories))
	for _, c := range categories {
		sum := byCat[c]
		sum.Available = sum.Allocated.Sub(sum.Committed).Sub(sum.Spent)
		report = append(report, *sum)
	}
	return report, nil
}
