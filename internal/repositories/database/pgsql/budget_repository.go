package pgsql

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
	"github.com/SscSPs/procure_to_pay/internal/models"
	"github.com/SscSPs/procure_to_pay/internal/utils/mapping"
	"github.com/SscSPs/procure_to_pay/internal/utils/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgxBudgetRepository struct {
	BaseRepository
}

func newPgxBudgetRepository(pool *pgxpool.Pool) portsrepo.BudgetRepositoryFacade {
	return &PgxBudgetRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.BudgetRepositoryFacade = (*PgxBudgetRepository)(nil)

const budgetLineColumns = `budget_line_id, department_id, cost_center, fiscal_year, category,
	allocated_amount, committed_amount, spent_amount, is_active, is_locked,
	created_at, created_by, last_updated_at, last_updated_by`

func scanBudgetLine(row pgx.Row) (models.BudgetLine, error) {
	var m models.BudgetLine
	err := row.Scan(
		&m.BudgetLineID,
		&m.DepartmentID,
		&m.CostCenter,
		&m.FiscalYear,
		&m.Category,
		&m.AllocatedAmount,
		&m.CommittedAmount,
		&m.SpentAmount,
		&m.IsActive,
		&m.IsLocked,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.LastUpdatedAt,
		&m.LastUpdatedBy,
	)
	return m, err
}

func (r *PgxBudgetRepository) findLine(ctx context.Context, budgetLineID string, forUpdate bool) (*domain.BudgetLine, error) {
	query := `SELECT ` + budgetLineColumns + ` FROM budget_lines WHERE budget_line_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	m, err := scanBudgetLine(r.db(ctx).QueryRow(ctx, query, budgetLineID))
	if err != nil {
		return nil, findError(err, "budget line "+budgetLineID)
	}
	line := mapping.ToDomainBudgetLine(m)
	return &line, nil
}

func (r *PgxBudgetRepository) FindBudgetLineByID(ctx context.Context, budgetLineID string) (*domain.BudgetLine, error) {
	return r.findLine(ctx, budgetLineID, false)
}

// FindBudgetLineForUpdate holds a row lock until the surrounding transaction ends.
func (r *PgxBudgetRepository) FindBudgetLineForUpdate(ctx context.Context, budgetLineID string) (*domain.BudgetLine, error) {
	return r.findLine(ctx, budgetLineID, true)
}

func (r *PgxBudgetRepository) ListBudgetLines(ctx context.Context, filter domain.BudgetLineFilter) ([]domain.BudgetLine, error) {
	var (
		conds []string
		args  []any
	)
	if filter.FiscalYear != 0 {
		args = append(args, filter.FiscalYear)
		conds = append(conds, "fiscal_year = $"+strconv.Itoa(len(args)))
	}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		conds = append(conds, "department_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		conds = append(conds, "category = $"+strconv.Itoa(len(args)))
	}
	query := `SELECT ` + budgetLineColumns + ` FROM budget_lines`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY department_id, cost_center, category;`

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list budget lines", err)
	}
	defer rows.Close()

	var ms []models.BudgetLine
	for rows.Next() {
		m, err := scanBudgetLine(rows)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan budget line", err)
		}
		ms = append(ms, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "failed to iterate budget lines", err)
	}
	return mapping.ToDomainBudgetLineSlice(ms), nil
}

func (r *PgxBudgetRepository) SaveBudgetLine(ctx context.Context, line domain.BudgetLine) error {
	m := mapping.ToModelBudgetLine(line)
	query := `
		INSERT INTO budget_lines (` + budgetLineColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14);
	`
	_, err := r.db(ctx).Exec(ctx, query,
		m.BudgetLineID,
		m.DepartmentID,
		m.CostCenter,
		m.FiscalYear,
		m.Category,
		m.AllocatedAmount,
		m.CommittedAmount,
		m.SpentAmount,
		m.IsActive,
		m.IsLocked,
		m.CreatedAt,
		m.CreatedBy,
		m.LastUpdatedAt,
		m.LastUpdatedBy,
	)
	if err != nil {
		return saveError(err, fmt.Sprintf("budget line for %s/%s FY%d %s", line.DepartmentID, line.CostCenter, line.FiscalYear, line.Category))
	}
	return nil
}

func (r *PgxBudgetRepository) UpdateBudgetLineBalances(ctx context.Context, line domain.BudgetLine) error {
	query := `
		UPDATE budget_lines
		SET allocated_amount = $2, committed_amount = $3, spent_amount = $4,
		    last_updated_at = $5, last_updated_by = $6
		WHERE budget_line_id = $1;
	`
	tag, err := r.db(ctx).Exec(ctx, query,
		line.BudgetLineID,
		line.AllocatedAmount,
		line.CommittedAmount,
		line.SpentAmount,
		line.LastUpdatedAt,
		line.LastUpdatedBy,
	)
	return mustAffect(tag, err, "budget line "+line.BudgetLineID)
}

func (r *PgxBudgetRepository) LockFiscalYear(ctx context.Context, fiscalYear int, userID string, now time.Time) (int64, error) {
	query := `
		UPDATE budget_lines
		SET is_locked = TRUE, last_updated_at = $2, last_updated_by = $3
		WHERE fiscal_year = $1 AND is_locked = FALSE;
	`
	tag, err := r.db(ctx).Exec(ctx, query, fiscalYear, now, userID)
	if err != nil {
		return 0, apperrors.NewAppError(500, fmt.Sprintf("failed to lock fiscal year %d", fiscalYear), err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgxBudgetRepository) SaveBudgetTransactions(ctx context.Context, txns ...domain.BudgetTransaction) error {
	if len(txns) == 0 {
		return nil
	}
	query := `
		INSERT INTO budget_transactions (
			transaction_id, budget_line_id, transaction_type, amount,
			reference_type, reference_id, description, created_by, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	batch := &pgx.Batch{}
	for _, t := range txns {
		m := mapping.ToModelBudgetTransaction(t)
		batch.Queue(query,
			m.TransactionID,
			m.BudgetLineID,
			m.TransactionType,
			m.Amount,
			m.ReferenceType,
			m.ReferenceID,
			m.Description,
			m.CreatedBy,
			m.CreatedAt,
		)
	}
	// Close reports the first failed insert of the batch.
	if err := r.db(ctx).SendBatch(ctx, batch).Close(); err != nil {
		return saveError(err, "budget transactions")
	}
	return nil
}

// ListBudgetTransactions pages newest first on (created_at, transaction_id).
func (r *PgxBudgetRepository) ListBudgetTransactions(ctx context.Context, budgetLineID string, limit int, nextToken *string) ([]domain.BudgetTransaction, *string, error) {
	args := []any{budgetLineID}
	query := `
		SELECT transaction_id, budget_line_id, transaction_type, amount,
		       reference_type, reference_id, description, created_by, created_at
		FROM budget_transactions
		WHERE budget_line_id = $1`
	if nextToken != nil && *nextToken != "" {
		cursorAt, cursorID, err := pagination.DecodeToken(*nextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		args = append(args, cursorAt, cursorID)
		query += ` AND (created_at, transaction_id) < ($2, $3)`
	}
	query += ` ORDER BY created_at DESC, transaction_id DESC`
	if limit > 0 {
		args = append(args, limit+1)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, nil, apperrors.NewAppError(500, "failed to list budget transactions", err)
	}
	defer rows.Close()

	var out []domain.BudgetTransaction
	for rows.Next() {
		var m models.BudgetTransaction
		if err := rows.Scan(
			&m.TransactionID,
			&m.BudgetLineID,
			&m.TransactionType,
			&m.Amount,
			&m.ReferenceType,
			&m.ReferenceID,
			&m.Description,
			&m.CreatedBy,
			&m.CreatedAt,
		); err != nil {
			return nil, nil, apperrors.NewAppError(500, "failed to scan budget transaction", err)
		}
		out = append(out, mapping.ToDomainBudgetTransaction(m))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, apperrors.NewAppError(500, "failed to iterate budget transactions", err)
	}

	if limit <= 0 || len(out) <= limit {
		return out, nil, nil
	}
	out = out[:limit]
	last := out[len(out)-1]
	token := pagination.EncodeToken(last.CreatedAt, last.TransactionID)
	return out, &token, nil
}
