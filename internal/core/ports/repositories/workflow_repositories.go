package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
)

// EntityStatusRepository reads and swaps the status column of any approvable entity.
type EntityStatusRepository interface {
	FindEntityStatus(ctx context.Context, entityType domain.EntityType, entityID string) (string, error)

	// CompareAndSetStatus moves the status from one state to another and reports
	// false when the stored status was no longer from.
	CompareAndSetStatus(ctx context.Context, entityType domain.EntityType, entityID, from, to, userID string, now time.Time) (bool, error)
}

type StateTransitionRepository interface {
	SaveStateTransition(ctx context.Context, transition domain.StateTransition) error
	ListStateTransitions(ctx context.Context, entityType domain.EntityType, entityID string) ([]domain.StateTransition, error)
}

type ApprovalRecordRepository interface {
	SaveApprovalRecord(ctx context.Context, record domain.ApprovalRecord) error
	// ListApprovalRecords returns decisions in sequence order.
	ListApprovalRecords(ctx context.Context, entityType domain.EntityType, entityID string) ([]domain.ApprovalRecord, error)
}
