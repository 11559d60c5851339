package repositories

import (
	"context"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
)

// ProcurementRepository defines persistence for procurement processes, bids and evaluations.
type ProcurementRepository interface {
	SaveProcess(ctx context.Context, process domain.ProcurementProcess) error
	UpdateProcess(ctx context.Context, process domain.ProcurementProcess) error
	FindProcessByID(ctx context.Context, processID string) (*domain.ProcurementProcess, error)
	FindProcessForUpdate(ctx context.Context, processID string) (*domain.ProcurementProcess, error)

	// SaveBid returns apperrors.ErrDuplicate when the supplier already bid in the process.
	SaveBid(ctx context.Context, bid domain.Bid) error
	ListBidsByProcess(ctx context.Context, processID string) ([]domain.Bid, error)

	// SaveBidEvaluations writes all rows or none.
	SaveBidEvaluations(ctx context.Context, evaluations []domain.BidEvaluation) error
	ListBidEvaluations(ctx context.Context, processID string) ([]domain.BidEvaluation, error)
}

// ConflictOfInterestRepository stores declarations. The core only reads them.
type ConflictOfInterestRepository interface {
	SaveDeclaration(ctx context.Context, declaration domain.ConflictOfInterestDeclaration) error

	// FindConflicts returns declarations with a conflict by userID against any of the targets.
	FindConflicts(ctx context.Context, userID string, targetType domain.ConflictTargetType, targetIDs []string) ([]domain.ConflictOfInterestDeclaration, error)
}
