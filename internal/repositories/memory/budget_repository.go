package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
	"github.com/SscSPs/procure_to_pay/internal/utils/pagination"
)

type BudgetRepository struct {
	store *Store
}

func NewBudgetRepository(store *Store) *BudgetRepository {
	return &BudgetRepository{store: store}
}

var _ portsrepo.BudgetRepositoryFacade = (*BudgetRepository)(nil)

func (r *BudgetRepository) FindBudgetLineByID(ctx context.Context, budgetLineID string) (*domain.BudgetLine, error) {
	var line domain.BudgetLine
	err := r.store.view(ctx, func(st *memoryState) error {
		l, ok := st.budgetLines[budgetLineID]
		if !ok {
			return fmt.Errorf("budget line %s: %w", budgetLineID, apperrors.ErrNotFound)
		}
		line = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// FindBudgetLineForUpdate needs no extra locking: transactions are already serialized.
func (r *BudgetRepository) FindBudgetLineForUpdate(ctx context.Context, budgetLineID string) (*domain.BudgetLine, error) {
	return r.FindBudgetLineByID(ctx, budgetLineID)
}

func (r *BudgetRepository) ListBudgetLines(ctx context.Context, filter domain.BudgetLineFilter) ([]domain.BudgetLine, error) {
	var lines []domain.BudgetLine
	_ = r.store.view(ctx, func(st *memoryState) error {
		for _, l := range st.budgetLines {
			if filter.FiscalYear != 0 && l.FiscalYear != filter.FiscalYear {
				continue
			}
			if filter.DepartmentID != "" && l.DepartmentID != filter.DepartmentID {
				continue
			}
			if filter.Category != "" && l.Category != filter.Category {
				continue
			}
			lines = append(lines, l)
		}
		return nil
	})
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].DepartmentID != lines[j].DepartmentID {
			return lines[i].DepartmentID < lines[j].DepartmentID
		}
		if lines[i].CostCenter != lines[j].CostCenter {
			return lines[i].CostCenter < lines[j].CostCenter
		}
		return lines[i].Category < lines[j].Category
	})
	return lines, nil
}

func (r *BudgetRepository) SaveBudgetLine(ctx context.Context, line domain.BudgetLine) error {
	return r.store.update(ctx, func(st *memoryState) error {
		if _, ok := st.budgetLines[line.BudgetLineID]; ok {
			return fmt.Errorf("budget line %s: %w", line.BudgetLineID, apperrors.ErrDuplicate)
		}
		for _, l := range st.budgetLines {
			if l.DepartmentID == line.DepartmentID && l.CostCenter == line.CostCenter &&
				l.FiscalYear == line.FiscalYear && l.Category == line.Category {
				return fmt.Errorf("budget line for %s/%s FY%d %s: %w",
					line.DepartmentID, line.CostCenter, line.FiscalYear, line.Category, apperrors.ErrDuplicate)
			}
		}
		st.budgetLines[line.BudgetLineID] = line
		return nil
	})
}

func (r *BudgetRepository) UpdateBudgetLineBalances(ctx context.Context, line domain.BudgetLine) error {
	return r.store.update(ctx, func(st *memoryState) error {
		current, ok := st.budgetLines[line.BudgetLineID]
		if !ok {
			return fmt.Errorf("budget line %s: %w", line.BudgetLineID, apperrors.ErrNotFound)
		}
		current.AllocatedAmount = line.AllocatedAmount
		current.CommittedAmount = line.CommittedAmount
		current.SpentAmount = line.SpentAmount
		current.LastUpdatedAt = line.LastUpdatedAt
		current.LastUpdatedBy = line.LastUpdatedBy
		st.budgetLines[line.BudgetLineID] = current
		return nil
	})
}

func (r *BudgetRepository) LockFiscalYear(ctx context.Context, fiscalYear int, userID string, now time.Time) (int64, error) {
	var n int64
	err := r.store.update(ctx, func(st *memoryState) error {
		for id, l := range st.budgetLines {
			if l.FiscalYear != fiscalYear || l.IsLocked {
				continue
			}
			l.IsLocked = true
			l.LastUpdatedAt = now
			l.LastUpdatedBy = userID
			st.budgetLines[id] = l
			n++
		}
		return nil
	})
	return n, err
}

func (r *BudgetRepository) SaveBudgetTransactions(ctx context.Context, txns ...domain.BudgetTransaction) error {
	return r.store.update(ctx, func(st *memoryState) error {
		st.budgetTxns = append(st.budgetTxns, txns...)
		return nil
	})
}

func (r *BudgetRepository) ListBudgetTransactions(ctx context.Context, budgetLineID string, limit int, nextToken *string) ([]domain.BudgetTransaction, *string, error) {
	var (
		cursorAt time.Time
		cursorID string
	)
	if nextToken != nil && *nextToken != "" {
		var err error
		cursorAt, cursorID, err = pagination.DecodeToken(*nextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
	}

	var rows []domain.BudgetTransaction
	_ = r.store.view(ctx, func(st *memoryState) error {
		for _, t := range st.budgetTxns {
			if t.BudgetLineID != budgetLineID {
				continue
			}
			if cursorID != "" && !pagination.Before(t.CreatedAt, t.TransactionID, cursorAt, cursorID) {
				continue
			}
			rows = append(rows, t)
		}
		return nil
	})
	sort.Slice(rows, func(i, j int) bool {
		return pagination.Before(rows[j].CreatedAt, rows[j].TransactionID, rows[i].CreatedAt, rows[i].TransactionID)
	})

	if limit <= 0 || len(rows) <= limit {
		return rows, nil, nil
	}
	rows = rows[:limit]
	last := rows[len(rows)-1]
	token := pagination.EncodeToken(last.CreatedAt, last.TransactionID)
	return rows, &token, nil
}
