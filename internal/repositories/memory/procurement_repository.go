package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
)

type ProcurementRepository struct {
	store *Store
}

func NewProcurementRepository(store *Store) *ProcurementRepository {
	return &ProcurementRepository{store: store}
}

var _ portsrepo.ProcurementRepository = (*ProcurementRepository)(nil)

func (r *ProcurementRepository) SaveProcess(ctx context.Context, process domain.ProcurementProcess) error {
	return insertRow(ctx, r.store, processes, "procurement process", process.ProcessID, process)
}

func (r *ProcurementRepository) UpdateProcess(ctx context.Context, process domain.ProcurementProcess) error {
	return replaceRow(ctx, r.store, processes, "procurement process", process.ProcessID, process)
}

func (r *ProcurementRepository) FindProcessByID(ctx context.Context, processID string) (*domain.ProcurementProcess, error) {
	return findRow(ctx, r.store, processes, "procurement process", processID)
}

func (r *ProcurementRepository) FindProcessForUpdate(ctx context.Context, processID string) (*domain.ProcurementProcess, error) {
	return findRow(ctx, r.store, processes, "procurement process", processID)
}

func (r *ProcurementRepository) SaveBid(ctx context.Context, bid domain.Bid) error {
	return r.store.update(ctx, func(st *memoryState) error {
		for _, b := range st.bids {
			if b.ProcessID == bid.ProcessID && b.SupplierID == bid.SupplierID {
				return fmt.Errorf("bid from supplier %s in process %s: %w", bid.SupplierID, bid.ProcessID, apperrors.ErrDuplicate)
			}
		}
		st.bids = append(st.bids, bid)
		return nil
	})
}

func (r *ProcurementRepository) ListBidsByProcess(ctx context.Context, processID string) ([]domain.Bid, error) {
	var out []domain.Bid
	_ = r.store.view(ctx, func(st *memoryState) error {
		for _, b := range st.bids {
			if b.ProcessID == processID {
				out = append(out, b)
			}
		}
		return nil
	})
	return out, nil
}

func (r *ProcurementRepository) SaveBidEvaluations(ctx context.Context, evaluations []domain.BidEvaluation) error {
	return r.store.update(ctx, func(st *memoryState) error {
		st.evaluations = append(st.evaluations, slices.Clone(evaluations)...)
		return nil
	})
}

func (r *ProcurementRepository) ListBidEvaluations(ctx context.Context, processID string) ([]domain.BidEvaluation, error) {
	var out []domain.BidEvaluation
	_ = r.store.view(ctx, func(st *memoryState) error {
		for _, e := range st.evaluations {
			if e.ProcessID == processID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, nil
}

type ConflictOfInterestRepository struct {
	store *Store
}

func NewConflictOfInterestRepository(store *Store) *ConflictOfInterestRepository {
	return &ConflictOfInterestRepository{store: store}
}

func (r *ConflictOfInterestRepository) SaveDeclaration(ctx context.Context, declaration domain.ConflictOfInterestDeclaration) error {
	return r.store.update(ctx, func(st *memoryState) error {
		st.declarations = append(st.declarations, declaration)
		return nil
	})
}

func (r *ConflictOfInterestRepository) FindConflicts(ctx context.Context, userID string, targetType domain.ConflictTargetType, targetIDs []string) ([]domain.ConflictOfInterestDeclaration, error) {
	var out []domain.ConflictOfInterestDeclaration
	_ = r.store.view(ctx, func(st *memoryState) error {
		for _, d := range st.declarations {
			if d.UserID == userID && d.TargetType == targetType && d.HasConflict && slices.Contains(targetIDs, d.TargetID) {
				out = append(out, d)
			}
		}
		return nil
	})
	return out, nil
}
