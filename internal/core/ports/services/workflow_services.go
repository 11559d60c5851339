package services

import (
	"context"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	"github.com/shopspring/decimal"
)

// WorkflowEngineSvc applies graph-legal status changes to approvable entities.
type WorkflowEngineSvc interface {
	// Transition checks the edge against the persisted status, swaps the status and
	// appends a StateTransition. On success entity carries the new status.
	Transition(ctx context.Context, entity domain.Approvable, req domain.TransitionRequest) (*domain.StateTransition, error)

	// History returns the transitions of an entity, oldest first.
	History(ctx context.Context, entityType domain.EntityType, entityID string) ([]domain.StateTransition, error)
}

// ApprovalAuthoritySvc holds the business rules consulted before a transition is attempted.
type ApprovalAuthoritySvc interface {
	// RouteNextApprovalLevel returns the level an amount needs, or nil when no further approval is required.
	RouteNextApprovalLevel(amount decimal.Decimal) *domain.ApprovalLevel

	// NextApprovalLevel returns the level after an approval at current, or nil when current was final.
	NextApprovalLevel(current domain.ApprovalLevel, amount decimal.Decimal) *domain.ApprovalLevel

	// CheckApproverRole verifies approver may sign at level.
	CheckApproverRole(approver domain.User, level domain.ApprovalLevel) error

	// CheckAuthorityLimit verifies amount is within the approver's limit. Super admins are exempt.
	CheckAuthorityLimit(approver domain.User, amount decimal.Decimal) error

	// CheckSegregationOfDuties verifies actorID does not already hold a role that conflicts with role.
	CheckSegregationOfDuties(entity domain.Approvable, actorID string, role domain.ActorRole) error

	// CheckConflictOfInterest fails when the evaluator declared a conflict with the process or a bidder.
	CheckConflictOfInterest(ctx context.Context, evaluatorID string, process domain.ProcurementProcess, bids []domain.Bid) error

	// CheckMinimumQuotes fails when fewer bids arrived than the process's cash band requires.
	CheckMinimumQuotes(process domain.ProcurementProcess, bids []domain.Bid) error
}
