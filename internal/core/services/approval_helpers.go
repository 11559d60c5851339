package services

import (
	"context"
	"time"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
	"github.com/google/uuid"
)

// appendDecision writes the next ApprovalRecord of an entity.
func appendDecision(ctx context.Context, repo portsrepo.ApprovalRecordRepository, entity domain.Approvable, level domain.ApprovalLevel, approverID string, decision domain.ApprovalDecision, comments string, now time.Time) (*domain.ApprovalRecord, error) {
	existing, err := repo.ListApprovalRecords(ctx, entity.EntityType(), entity.EntityID())
	if err != nil {
		return nil, err
	}
	record := domain.ApprovalRecord{
		ApprovalID: uuid.NewString(),
		EntityType: entity.EntityType(),
		EntityID:   entity.EntityID(),
		Level:      level,
		Sequence:   len(existing) + 1,
		ApproverID: approverID,
		Decision:   decision,
		Comments:   comments,
		CreatedAt:  now,
	}
	if err := repo.SaveApprovalRecord(ctx, record); err != nil {
		return nil, err
	}
	return &record, nil
}

// checkNotPriorApprover rejects an approver who already signed the entity at an earlier level.
func checkNotPriorApprover(ctx context.Context, repo portsrepo.ApprovalRecordRepository, entity domain.Approvable, approverID string) error {
	records, err := repo.ListApprovalRecords(ctx, entity.EntityType(), entity.EntityID())
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.Decision == domain.DecisionApproved && r.ApproverID == approverID {
			return &apperrors.SegregationOfDutiesViolation{
				EntityType:    string(entity.EntityType()),
				EntityID:      entity.EntityID(),
				UserID:        approverID,
				Role:          string(domain.ActorApprover),
				ConflictsWith: "approver at a previous level",
			}
		}
	}
	return nil
}

func timePtr(t time.Time) *time.Time { return &t }
