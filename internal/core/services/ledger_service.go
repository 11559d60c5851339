package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/procure_to_pay/internal/core/ports/services"
	"github.com/SscSPs/procure_to_pay/internal/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultTransactionPageSize = 20
	maxTransactionPageSize     = 100
)

// DefaultBudgetAlertThreshold is the utilization percentage above which spend triggers an alert.
var DefaultBudgetAlertThreshold = decimal.NewFromInt(90)

// ledgerService owns every balance change of a budget line.
type ledgerService struct {
	BaseService
	repo      portsrepo.BudgetRepositoryFacade
	users     portsrepo.UserRepository
	locker    portssvc.Locker
	threshold decimal.Decimal
}

// LedgerOption configures the ledger service.
type LedgerOption func(*ledgerService)

// WithAlertThreshold overrides the utilization percentage that triggers threshold notifications.
func WithAlertThreshold(percent decimal.Decimal) LedgerOption {
	return func(s *ledgerService) {
		s.threshold = percent
	}
}

// NewLedgerService creates the budget ledger.
func NewLedgerService(base BaseService, repo portsrepo.BudgetRepositoryFacade, users portsrepo.UserRepository, locker portssvc.Locker, opts ...LedgerOption) portssvc.BudgetLedgerSvcFacade {
	s := &ledgerService{
		BaseService: base,
		repo:        repo,
		users:       users,
		locker:      locker,
		threshold:   DefaultBudgetAlertThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ portssvc.BudgetLedgerSvcFacade = (*ledgerService)(nil)

// withLines runs fn in a transaction while holding the locks of every listed line.
func (s *ledgerService) withLines(ctx context.Context, lineIDs []string, fn func(ctx context.Context) error) error {
	keys := make([]string, len(lineIDs))
	for i, id := range lineIDs {
		keys[i] = domain.BudgetLineLockKey(id)
	}
	return s.locker.WithLock(ctx, keys, func(ctx context.Context) error {
		return s.TxManager.WithinTx(ctx, fn)
	})
}

// loadMutable reads a line for update and rejects finalized or inactive lines.
func (s *ledgerService) loadMutable(ctx context.Context, budgetLineID string) (*domain.BudgetLine, error) {
	line, err := s.repo.FindBudgetLineForUpdate(ctx, budgetLineID)
	if err != nil {
		return nil, err
	}
	if line.IsLocked {
		return nil, apperrors.NewValidationError("budgetLineID", fmt.Sprintf("budget line %s is locked for fiscal year %d", line.BudgetLineID, line.FiscalYear))
	}
	if !line.IsActive {
		return nil, apperrors.NewValidationError("budgetLineID", fmt.Sprintf("budget line %s is inactive", line.BudgetLineID))
	}
	return line, nil
}

func (s *ledgerService) newTransaction(line *domain.BudgetLine, kind domain.BudgetTransactionType, amount decimal.Decimal, ref domain.LedgerReference, actorID string) domain.BudgetTransaction {
	return domain.BudgetTransaction{
		TransactionID: uuid.NewString(),
		BudgetLineID:  line.BudgetLineID,
		Type:          kind,
		Amount:        amount,
		ReferenceType: ref.Type,
		ReferenceID:   ref.ID,
		Description:   ref.Description,
		CreatedBy:     actorID,
		CreatedAt:     s.now(),
	}
}

func (s *ledgerService) touch(line *domain.BudgetLine, actorID string) {
	line.LastUpdatedAt = s.now()
	line.LastUpdatedBy = actorID
}

func (s *ledgerService) auditLine(ctx context.Context, line *domain.BudgetLine, action, actorID, description string, meta map[string]any) {
	s.recordAudit(ctx, domain.AuditLog{
		AuditID:     uuid.NewString(),
		ActorID:     actorID,
		Action:      action,
		ModelType:   "budget_line",
		ModelID:     line.BudgetLineID,
		Description: description,
		Metadata:    meta,
	})
}

func validateReference(ref domain.LedgerReference) error {
	if ref.Type == "" || ref.ID == "" {
		return apperrors.NewValidationError("reference", "reference type and id are required")
	}
	return nil
}

// Allocate creates a new budget line.
func (s *ledgerService) Allocate(ctx context.Context, req dto.AllocateBudgetRequest, actorID string) (line *domain.BudgetLine, err error) {
	ctx, span := s.startSpan(ctx, "ledger.Allocate",
		attribute.String("department_id", req.DepartmentID), attribute.Int("fiscal_year", req.FiscalYear))
	defer func() { endSpan(span, err) }()

	if err := validateAmount("amount", req.Amount, false); err != nil {
		return nil, err
	}
	if req.DepartmentID == "" || req.CostCenter == "" {
		return nil, apperrors.NewValidationError("costCenter", "department and cost center are required")
	}
	if req.FiscalYear <= 0 {
		return nil, apperrors.NewValidationError("fiscalYear", "must be a positive year")
	}

	category := domain.CategoryCapital
	if req.IsOperational {
		category = domain.CategoryOperational
	}
	now := s.now()
	newLine := domain.BudgetLine{
		BudgetLineID:    uuid.NewString(),
		DepartmentID:    req.DepartmentID,
		CostCenter:      req.CostCenter,
		FiscalYear:      req.FiscalYear,
		Category:        category,
		AllocatedAmount: req.Amount,
		CommittedAmount: decimal.Zero,
		SpentAmount:     decimal.Zero,
		IsActive:        true,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     actorID,
			LastUpdatedAt: now,
			LastUpdatedBy: actorID,
		},
	}
	description := req.Description
	if description == "" {
		description = fmt.Sprintf("FY%d allocation for %s", req.FiscalYear, req.CostCenter)
	}
	txn := s.newTransaction(&newLine, domain.TxnAllocation, req.Amount,
		domain.LedgerReference{Type: "budget_line", ID: newLine.BudgetLineID, Description: description}, actorID)

	err = s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.SaveBudgetLine(ctx, newLine); err != nil {
			return err
		}
		if err := s.repo.SaveBudgetTransactions(ctx, txn); err != nil {
			return err
		}
		s.auditLine(ctx, &newLine, "budget.allocate", actorID, description,
			map[string]any{"amount": req.Amount.StringFixed(2), "fiscal_year": req.FiscalYear})
		return nil
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to allocate budget", slog.String("cost_center", req.CostCenter), slog.Int("fiscal_year", req.FiscalYear))
		return nil, err
	}

	s.LogInfo(ctx, "Budget allocated", slog.String("budget_line_id", newLine.BudgetLineID), slog.String("amount", req.Amount.StringFixed(2)))
	return &newLine, nil
}

// Reallocate moves amount of allocation from one line to another of the same fiscal year.
func (s *ledgerService) Reallocate(ctx context.Context, fromLineID, toLineID string, amount decimal.Decimal, reason string, actorID string) (err error) {
	ctx, span := s.startSpan(ctx, "ledger.Reallocate",
		attribute.String("from_budget_line_id", fromLineID), attribute.String("to_budget_line_id", toLineID), attribute.String("amount", amount.String()))
	defer func() { endSpan(span, err) }()

	if err := validateAmount("amount", amount, true); err != nil {
		return err
	}
	if fromLineID == toLineID {
		return apperrors.NewValidationError("toBudgetLineID", "source and destination lines must differ")
	}

	return s.withLines(ctx, []string{fromLineID, toLineID}, func(ctx context.Context) error {
		// Row locks follow the same id order as the line locks.
		first, second := fromLineID, toLineID
		if second < first {
			first, second = second, first
		}
		loaded := map[string]*domain.BudgetLine{}
		for _, id := range []string{first, second} {
			line, err := s.loadMutable(ctx, id)
			if err != nil {
				return err
			}
			loaded[id] = line
		}
		from, to := loaded[fromLineID], loaded[toLineID]

		if from.FiscalYear != to.FiscalYear {
			return apperrors.NewValidationError("toBudgetLineID", "reallocation must stay within one fiscal year")
		}
		if available := from.AvailableAmount(); available.LessThan(amount) {
			return &apperrors.InsufficientFundsError{BudgetLineID: from.BudgetLineID, Available: available, Requested: amount}
		}

		from.AllocatedAmount = from.AllocatedAmount.Sub(amount)
		to.AllocatedAmount = to.AllocatedAmount.Add(amount)
		s.touch(from, actorID)
		s.touch(to, actorID)

		pairID := uuid.NewString()
		out := s.newTransaction(from, domain.TxnReallocationOut, amount.Neg(),
			domain.LedgerReference{Type: "budget_reallocation", ID: pairID, Description: reason}, actorID)
		in := s.newTransaction(to, domain.TxnReallocationIn, amount,
			domain.LedgerReference{Type: "budget_reallocation", ID: pairID, Description: reason}, actorID)

		if err := s.repo.UpdateBudgetLineBalances(ctx, *from); err != nil {
			return err
		}
		if err := s.repo.UpdateBudgetLineBalances(ctx, *to); err != nil {
			return err
		}
		if err := s.repo.SaveBudgetTransactions(ctx, out, in); err != nil {
			return err
		}

		meta := map[string]any{"amount": amount.StringFixed(2), "from": from.BudgetLineID, "to": to.BudgetLineID, "reallocation_id": pairID}
		s.auditLine(ctx, from, "budget.reallocate_out", actorID, reason, meta)
		s.auditLine(ctx, to, "budget.reallocate_in", actorID, reason, meta)
		return nil
	})
}

// Commit reserves amount on a line for an order that is not yet paid.
func (s *ledgerService) Commit(ctx context.Context, budgetLineID string, amount decimal.Decimal, ref domain.LedgerReference, actorID string) (line *domain.BudgetLine, err error) {
	ctx, span := s.startSpan(ctx, "ledger.Commit",
		attribute.String("budget_line_id", budgetLineID), attribute.String("amount", amount.String()), attribute.String("reference_id", ref.ID))
	defer func() { endSpan(span, err) }()

	if err := validateAmount("amount", amount, true); err != nil {
		return nil, err
	}
	if err := validateReference(ref); err != nil {
		return nil, err
	}

	err = s.withLines(ctx, []string{budgetLineID}, func(ctx context.Context) error {
		l, err := s.loadMutable(ctx, budgetLineID)
		if err != nil {
			return err
		}
		if available := l.AvailableAmount(); available.LessThan(amount) {
			return &apperrors.InsufficientFundsError{BudgetLineID: l.BudgetLineID, Available: available, Requested: amount}
		}

		l.CommittedAmount = l.CommittedAmount.Add(amount)
		s.touch(l, actorID)
		if err := s.repo.UpdateBudgetLineBalances(ctx, *l); err != nil {
			return err
		}
		if err := s.repo.SaveBudgetTransactions(ctx, s.newTransaction(l, domain.TxnCommitment, amount, ref, actorID)); err != nil {
			return err
		}
		s.auditLine(ctx, l, "budget.commit", actorID, ref.Description,
			map[string]any{"amount": amount.StringFixed(2), "reference_type": ref.Type, "reference_id": ref.ID})
		line = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// release frees min(amount, committed) on an already locked line and returns the
// ledger row for it, or nil when nothing was committed.
func (s *ledgerService) release(line *domain.BudgetLine, amount decimal.Decimal, ref domain.LedgerReference, actorID string) (decimal.Decimal, *domain.BudgetTransaction) {
	released := decimal.Min(amount, line.CommittedAmount)
	if !released.IsPositive() {
		return decimal.Zero, nil
	}
	line.CommittedAmount = line.CommittedAmount.Sub(released)
	txn := s.newTransaction(line, domain.TxnCommitmentRelease, released.Neg(), ref, actorID)
	return released, &txn
}

// ReleaseCommitment frees up to amount of the line's commitment.
func (s *ledgerService) ReleaseCommitment(ctx context.Context, budgetLineID string, amount decimal.Decimal, ref domain.LedgerReference, actorID string) (released decimal.Decimal, err error) {
	ctx, span := s.startSpan(ctx, "ledger.ReleaseCommitment",
		attribute.String("budget_line_id", budgetLineID), attribute.String("amount", amount.String()))
	defer func() { endSpan(span, err) }()

	if err := validateAmount("amount", amount, false); err != nil {
		return decimal.Zero, err
	}

	err = s.withLines(ctx, []string{budgetLineID}, func(ctx context.Context) error {
		l, err := s.loadMutable(ctx, budgetLineID)
		if err != nil {
			return err
		}
		var txn *domain.BudgetTransaction
		released, txn = s.release(l, amount, ref, actorID)
		if txn == nil {
			s.LogDebug(ctx, "Nothing committed to release", slog.String("budget_line_id", budgetLineID))
			return nil
		}

		s.touch(l, actorID)
		if err := s.repo.UpdateBudgetLineBalances(ctx, *l); err != nil {
			return err
		}
		if err := s.repo.SaveBudgetTransactions(ctx, *txn); err != nil {
			return err
		}
		s.auditLine(ctx, l, "budget.release", actorID, ref.Description,
			map[string]any{"requested": amount.StringFixed(2), "released": released.StringFixed(2), "reference_id": ref.ID})
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return released, nil
}

// RecordExpenditure recognizes amount as spent. Up to amount of commitment is released
// first; spend grows by the full amount even when less was committed.
func (s *ledgerService) RecordExpenditure(ctx context.Context, budgetLineID string, amount decimal.Decimal, ref domain.LedgerReference, actorID string) (line *domain.BudgetLine, err error) {
	ctx, span := s.startSpan(ctx, "ledger.RecordExpenditure",
		attribute.String("budget_line_id", budgetLineID), attribute.String("amount", amount.String()), attribute.String("reference_id", ref.ID))
	defer func() { endSpan(span, err) }()

	if err := validateAmount("amount", amount, true); err != nil {
		return nil, err
	}
	if err := validateReference(ref); err != nil {
		return nil, err
	}

	err = s.withLines(ctx, []string{budgetLineID}, func(ctx context.Context) error {
		l, err := s.loadMutable(ctx, budgetLineID)
		if err != nil {
			return err
		}

		var rows []domain.BudgetTransaction
		released, releaseTxn := s.release(l, amount, ref, actorID)
		if releaseTxn != nil {
			rows = append(rows, *releaseTxn)
		}
		l.SpentAmount = l.SpentAmount.Add(amount)
		rows = append(rows, s.newTransaction(l, domain.TxnExpenditure, amount, ref, actorID))
		s.touch(l, actorID)

		if err := s.repo.UpdateBudgetLineBalances(ctx, *l); err != nil {
			return err
		}
		if err := s.repo.SaveBudgetTransactions(ctx, rows...); err != nil {
			return err
		}

		if releaseTxn != nil {
			s.auditLine(ctx, l, "budget.release", actorID, ref.Description,
				map[string]any{"requested": amount.StringFixed(2), "released": released.StringFixed(2), "reference_id": ref.ID})
		}
		s.auditLine(ctx, l, "budget.expenditure", actorID, ref.Description,
			map[string]any{"amount": amount.StringFixed(2), "reference_type": ref.Type, "reference_id": ref.ID})

		if utilization := l.UtilizationPercentage(); utilization.GreaterThan(s.threshold) {
			s.notifyAfterCommit(ctx, usersWithRole(s.users, domain.RoleFinanceManager, ""), domain.Notification{
				Type: domain.NotifyBudgetThresholdExceeded,
				Message: fmt.Sprintf("Budget line %s (%s FY%d) is %s%% utilized",
					l.BudgetLineID, l.CostCenter, l.FiscalYear, utilization.StringFixed(2)),
				ModelType: "budget_line",
				ModelID:   l.BudgetLineID,
				Metadata:  map[string]any{"utilization": utilization.StringFixed(2), "threshold": s.threshold.String()},
			})
			s.GetLogger(ctx).Warn("Budget utilization above threshold",
				slog.String("budget_line_id", l.BudgetLineID), slog.String("utilization", utilization.StringFixed(2)))
		}
		line = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// CloseFiscalYear finalizes every line of the year.
func (s *ledgerService) CloseFiscalYear(ctx context.Context, fiscalYear int, actorID string) (n int64, err error) {
	ctx, span := s.startSpan(ctx, "ledger.CloseFiscalYear", attribute.Int("fiscal_year", fiscalYear))
	defer func() { endSpan(span, err) }()

	if fiscalYear <= 0 {
		return 0, apperrors.NewValidationError("fiscalYear", "must be a positive year")
	}
	err = s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		n, err = s.repo.LockFiscalYear(ctx, fiscalYear, actorID, s.now())
		if err != nil {
			return err
		}
		s.recordAudit(ctx, domain.AuditLog{
			AuditID:     uuid.NewString(),
			ActorID:     actorID,
			Action:      "budget.close_fiscal_year",
			ModelType:   "fiscal_year",
			ModelID:     fmt.Sprint(fiscalYear),
			Description: fmt.Sprintf("locked %d budget lines", n),
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.LogInfo(ctx, "Fiscal year closed", slog.Int("fiscal_year", fiscalYear), slog.Int64("lines_locked", n))
	return n, nil
}

func (s *ledgerService) GetBudgetLine(ctx context.Context, budgetLineID string) (*domain.BudgetLine, error) {
	return s.repo.FindBudgetLineByID(ctx, budgetLineID)
}

func (s *ledgerService) AvailableAmount(ctx context.Context, budgetLineID string) (decimal.Decimal, error) {
	line, err := s.repo.FindBudgetLineByID(ctx, budgetLineID)
	if err != nil {
		return decimal.Zero, err
	}
	return line.AvailableAmount(), nil
}

func (s *ledgerService) UtilizationPercentage(ctx context.Context, budgetLineID string) (decimal.Decimal, error) {
	line, err := s.repo.FindBudgetLineByID(ctx, budgetLineID)
	if err != nil {
		return decimal.Zero, err
	}
	return line.UtilizationPercentage(), nil
}

func (s *ledgerService) ListBudgetLines(ctx context.Context, filter domain.BudgetLineFilter) ([]domain.BudgetLine, error) {
	return s.repo.ListBudgetLines(ctx, filter)
}

func (s *ledgerService) ListTransactions(ctx context.Context, budgetLineID string, limit int, nextToken *string) ([]domain.BudgetTransaction, *string, error) {
	if _, err := s.repo.FindBudgetLineByID(ctx, budgetLineID); err != nil {
		return nil, nil, err
	}
	if limit <= 0 {
		limit = defaultTransactionPageSize
	}
	if limit > maxTransactionPageSize {
		limit = maxTransactionPageSize
	}
	return s.repo.ListBudgetTransactions(ctx, budgetLineID, limit, nextToken)
}
