package services

import (
	"context"
	"fmt"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/procure_to_pay/internal/core/ports/services"
	"github.com/shopspring/decimal"
)

// approvalBand routes amounts up to and including UpTo to Level.
type approvalBand struct {
	UpTo  *decimal.Decimal
	Level *domain.ApprovalLevel
}

func levelPtr(l domain.ApprovalLevel) *domain.ApprovalLevel { return &l }

func amountPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

var approvalBands = []approvalBand{
	{UpTo: amountPtr(50_000)},
	{UpTo: amountPtr(500_000), Level: levelPtr(domain.LevelFinanceManager)},
	{UpTo: amountPtr(2_000_000), Level: levelPtr(domain.LevelProcurementOfficer)},
	{Level: levelPtr(domain.LevelSuperAdmin)},
}

// sodRule says an actor taking Role must not already be recorded under any of Excludes.
type sodRule struct {
	Role     domain.ActorRole
	Excludes []domain.ActorRole
}

var sodRules = map[domain.EntityType][]sodRule{
	domain.EntityRequisition: {
		{Role: domain.ActorApprover, Excludes: []domain.ActorRole{domain.ActorSubmitter}},
		{Role: domain.ActorRejecter, Excludes: []domain.ActorRole{domain.ActorSubmitter}},
	},
	domain.EntitySupplierInvoice: {
		{Role: domain.ActorVerifier, Excludes: []domain.ActorRole{domain.ActorSubmitter}},
		{Role: domain.ActorApprover, Excludes: []domain.ActorRole{domain.ActorVerifier, domain.ActorSubmitter}},
		{Role: domain.ActorRejecter, Excludes: []domain.ActorRole{domain.ActorSubmitter}},
	},
	domain.EntityPayment: {
		{Role: domain.ActorApprover, Excludes: []domain.ActorRole{domain.ActorSubmitter}},
		{Role: domain.ActorRejecter, Excludes: []domain.ActorRole{domain.ActorSubmitter}},
		{Role: domain.ActorProcessor, Excludes: []domain.ActorRole{domain.ActorSubmitter, domain.ActorApprover}},
	},
}

type approvalAuthority struct {
	conflicts  portsrepo.ConflictOfInterestRepository
	coiEnabled bool
}

// NewApprovalAuthority creates the rule set consulted before approvals and awards.
// When coiEnabled is false declarations are not consulted.
func NewApprovalAuthority(conflicts portsrepo.ConflictOfInterestRepository, coiEnabled bool) portssvc.ApprovalAuthoritySvc {
	return &approvalAuthority{conflicts: conflicts, coiEnabled: coiEnabled}
}

var _ portssvc.ApprovalAuthoritySvc = (*approvalAuthority)(nil)

func (a *approvalAuthority) RouteNextApprovalLevel(amount decimal.Decimal) *domain.ApprovalLevel {
	for _, b := range approvalBands {
		if b.UpTo == nil || amount.LessThanOrEqual(*b.UpTo) {
			if b.Level == nil {
				return nil
			}
			return levelPtr(*b.Level)
		}
	}
	return nil
}

func (a *approvalAuthority) NextApprovalLevel(current domain.ApprovalLevel, amount decimal.Decimal) *domain.ApprovalLevel {
	routed := a.RouteNextApprovalLevel(amount)
	if routed == nil || *routed <= current {
		return nil
	}
	return routed
}

func (a *approvalAuthority) CheckApproverRole(approver domain.User, level domain.ApprovalLevel) error {
	if approver.IsSuperAdmin() || approver.HasRole(level.RequiredRole()) {
		return nil
	}
	return &apperrors.AuthorizationError{
		UserID: approver.UserID,
		Reason: fmt.Sprintf("approval level %d requires role %s", level, level.RequiredRole()),
	}
}

func (a *approvalAuthority) CheckAuthorityLimit(approver domain.User, amount decimal.Decimal) error {
	if approver.IsSuperAdmin() || amount.LessThanOrEqual(approver.ApprovalLimit) {
		return nil
	}
	limit, amt := approver.ApprovalLimit, amount
	return &apperrors.AuthorizationError{UserID: approver.UserID, Limit: &limit, Amount: &amt}
}

func (a *approvalAuthority) CheckSegregationOfDuties(entity domain.Approvable, actorID string, role domain.ActorRole) error {
	for _, rule := range sodRules[entity.EntityType()] {
		if rule.Role != role {
			continue
		}
		for _, excluded := range rule.Excludes {
			if holder := entity.ActorFor(excluded); holder != "" && holder == actorID {
				return &apperrors.SegregationOfDutiesViolation{
					EntityType:    string(entity.EntityType()),
					EntityID:      entity.EntityID(),
					UserID:        actorID,
					Role:          string(role),
					ConflictsWith: string(excluded),
				}
			}
		}
	}
	return nil
}

func (a *approvalAuthority) CheckConflictOfInterest(ctx context.Context, evaluatorID string, process domain.ProcurementProcess, bids []domain.Bid) error {
	if !a.coiEnabled {
		return nil
	}
	onProcess, err := a.conflicts.FindConflicts(ctx, evaluatorID, domain.ConflictTargetProcess, []string{process.ProcessID})
	if err != nil {
		return err
	}
	if len(onProcess) > 0 {
		return &apperrors.ConflictOfInterestError{EvaluatorID: evaluatorID, ProcessID: process.ProcessID}
	}

	if len(bids) == 0 {
		return nil
	}
	supplierIDs := make([]string, 0, len(bids))
	for _, b := range bids {
		supplierIDs = append(supplierIDs, b.SupplierID)
	}
	onSuppliers, err := a.conflicts.FindConflicts(ctx, evaluatorID, domain.ConflictTargetSupplier, supplierIDs)
	if err != nil {
		return err
	}
	if len(onSuppliers) > 0 {
		conflicted := make([]string, 0, len(onSuppliers))
		seen := map[string]bool{}
		for _, d := range onSuppliers {
			if !seen[d.TargetID] {
				seen[d.TargetID] = true
				conflicted = append(conflicted, d.TargetID)
			}
		}
		return &apperrors.ConflictOfInterestError{EvaluatorID: evaluatorID, ProcessID: process.ProcessID, SupplierIDs: conflicted}
	}
	return nil
}

func (a *approvalAuthority) CheckMinimumQuotes(process domain.ProcurementProcess, bids []domain.Bid) error {
	band := domain.CashBandFor(process.EstimatedAmount)
	if len(bids) < band.MinimumQuotes {
		return &apperrors.MinimumQuotesError{
			ProcessID: process.ProcessID,
			Band:      band.Label,
			Required:  band.MinimumQuotes,
			Actual:    len(bids),
		}
	}
	return nil
}
