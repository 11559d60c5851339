package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
)

type EntityStatusRepository struct {
	store *Store
}

func NewEntityStatusRepository(store *Store) *EntityStatusRepository {
	return &EntityStatusRepository{store: store}
}

var _ portsrepo.EntityStatusRepository = (*EntityStatusRepository)(nil)

func (r *EntityStatusRepository) FindEntityStatus(ctx context.Context, entityType domain.EntityType, entityID string) (string, error) {
	var status string
	err := r.store.view(ctx, func(st *memoryState) error {
		s, ok := st.status(entityType, entityID)
		if !ok {
			return fmt.Errorf("%s %s: %w", entityType, entityID, apperrors.ErrNotFound)
		}
		status = s
		return nil
	})
	return status, err
}

func (r *EntityStatusRepository) CompareAndSetStatus(ctx context.Context, entityType domain.EntityType, entityID, from, to, userID string, now time.Time) (bool, error) {
	swapped := false
	err := r.store.update(ctx, func(st *memoryState) error {
		current, ok := st.status(entityType, entityID)
		if !ok {
			return fmt.Errorf("%s %s: %w", entityType, entityID, apperrors.ErrNotFound)
		}
		if current != from {
			return nil
		}
		st.setStatus(entityType, entityID, to, userID, now)
		swapped = true
		return nil
	})
	return swapped, err
}

func (st *memoryState) status(entityType domain.EntityType, id string) (string, bool) {
	switch entityType {
	case domain.EntityRequisition:
		e, ok := st.requisitions[id]
		return e.Status, ok
	case domain.EntitySupplierInvoice:
		e, ok := st.invoices[id]
		return e.Status, ok
	case domain.EntityPayment:
		e, ok := st.payments[id]
		return e.Status, ok
	case domain.EntityProcurementProcess:
		e, ok := st.processes[id]
		return e.Status, ok
	}
	return "", false
}

func (st *memoryState) setStatus(entityType domain.EntityType, id, status, userID string, now time.Time) {
	switch entityType {
	case domain.EntityRequisition:
		e := st.requisitions[id]
		e.Status, e.LastUpdatedBy, e.LastUpdatedAt = status, userID, now
		st.requisitions[id] = e
	case domain.EntitySupplierInvoice:
		e := st.invoices[id]
		e.Status, e.LastUpdatedBy, e.LastUpdatedAt = status, userID, now
		st.invoices[id] = e
	case domain.EntityPayment:
		e := st.payments[id]
		e.Status, e.LastUpdatedBy, e.LastUpdatedAt = status, userID, now
		st.payments[id] = e
	case domain.EntityProcurementProcess:
		e := st.processes[id]
		e.Status, e.LastUpdatedBy, e.LastUpdatedAt = status, userID, now
		st.processes[id] = e
	}
}

type StateTransitionRepository struct {
	store *Store
}

func NewStateTransitionRepository(store *Store) *StateTransitionRepository {
	return &StateTransitionRepository{store: store}
}

func (r *StateTransitionRepository) SaveStateTransition(ctx context.Context, transition domain.StateTransition) error {
	return r.store.update(ctx, func(st *memoryState) error {
		st.transitions = append(st.transitions, transition)
		return nil
	})
}

func (r *StateTransitionRepository) ListStateTransitions(ctx context.Context, entityType domain.EntityType, entityID string) ([]domain.StateTransition, error) {
	var out []domain.StateTransition
	_ = r.store.view(ctx, func(st *memoryState) error {
		for _, t := range st.transitions {
			if t.EntityType == entityType && t.EntityID == entityID {
				out = append(out, t)
			}
		}
		return nil
	})
	return out, nil
}

type ApprovalRecordRepository struct {
	store *Store
}

func NewApprovalRecordRepository(store *Store) *ApprovalRecordRepository {
	return &ApprovalRecordRepository{store: store}
}

func (r *ApprovalRecordRepository) SaveApprovalRecord(ctx context.Context, record domain.ApprovalRecord) error {
	return r.store.update(ctx, func(st *memoryState) error {
		st.approvals = append(st.approvals, record)
		return nil
	})
}

func (r *ApprovalRecordRepository) ListApprovalRecords(ctx context.Context, entityType domain.EntityType, entityID string) ([]domain.ApprovalRecord, error) {
	var out []domain.ApprovalRecord
	_ = r.store.view(ctx, func(st *memoryState) error {
		for _, a := range st.approvals {
			if a.EntityType == entityType && a.EntityID == entityID {
				out = append(out, a)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}
