package pgsql

import (
	"context"
	"fmt"
	"time"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

// statusTables names the table and key column holding the status of each entity type.
var statusTables = map[domain.EntityType]struct{ table, key string }{
	domain.EntityRequisition:        {"requisitions", "requisition_id"},
	domain.EntitySupplierInvoice:    {"supplier_invoices", "invoice_id"},
	domain.EntityPayment:            {"payments", "payment_id"},
	domain.EntityProcurementProcess: {"procurement_processes", "process_id"},
}

type PgxEntityStatusRepository struct {
	BaseRepository
}

func newPgxEntityStatusRepository(pool *pgxpool.Pool) portsrepo.EntityStatusRepository {
	return &PgxEntityStatusRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.EntityStatusRepository = (*PgxEntityStatusRepository)(nil)

func (r *PgxEntityStatusRepository) FindEntityStatus(ctx context.Context, entityType domain.EntityType, entityID string) (string, error) {
	t, ok := statusTables[entityType]
	if !ok {
		return "", apperrors.NewValidationError("entityType", fmt.Sprintf("unknown entity type %q", entityType))
	}
	var status string
	query := `SELECT status FROM ` + t.table + ` WHERE ` + t.key + ` = $1;`
	if err := r.db(ctx).QueryRow(ctx, query, entityID).Scan(&status); err != nil {
		return "", findError(err, fmt.Sprintf("%s %s", entityType, entityID))
	}
	return status, nil
}

// CompareAndSetStatus is a single conditional UPDATE, so two racing writers cannot both win.
func (r *PgxEntityStatusRepository) CompareAndSetStatus(ctx context.Context, entityType domain.EntityType, entityID, from, to, userID string, now time.Time) (bool, error) {
	t, ok := statusTables[entityType]
	if !ok {
		return false, apperrors.NewValidationError("entityType", fmt.Sprintf("unknown entity type %q", entityType))
	}
	query := `
		UPDATE ` + t.table + `
		SET status = $3, last_updated_at = $4, last_updated_by = $5
		WHERE ` + t.key + ` = $1 AND status = $2;
	`
	tag, err := r.db(ctx).Exec(ctx, query, entityID, from, to, now, userID)
	if err != nil {
		return false, apperrors.NewAppError(500, fmt.Sprintf("failed to update status of %s %s", entityType, entityID), err)
	}
	return tag.RowsAffected() == 1, nil
}

type PgxStateTransitionRepository struct {
	BaseRepository
}

func newPgxStateTransitionRepository(pool *pgxpool.Pool) portsrepo.StateTransitionRepository {
	return &PgxStateTransitionRepository{BaseRepository: BaseRepository{Pool: pool}}
}

func (r *PgxStateTransitionRepository) SaveStateTransition(ctx context.Context, t domain.StateTransition) error {
	query := `
		INSERT INTO state_transitions (
			transition_id, entity_type, entity_id, workflow, event,
			from_state, to_state, actor_id, justification, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`
	_, err := r.db(ctx).Exec(ctx, query,
		t.TransitionID,
		string(t.EntityType),
		t.EntityID,
		t.Workflow,
		t.Event,
		t.FromState,
		t.ToState,
		t.ActorID,
		t.Justification,
		t.CreatedAt,
	)
	if err != nil {
		return saveError(err, "state transition "+t.TransitionID)
	}
	return nil
}

func (r *PgxStateTransitionRepository) ListStateTransitions(ctx context.Context, entityType domain.EntityType, entityID string) ([]domain.StateTransition, error) {
	query := `
		SELECT transition_id, entity_type, entity_id, workflow, event,
		       from_state, to_state, actor_id, justification, created_at
		FROM state_transitions
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at, transition_id;
	`
	rows, err := r.db(ctx).Query(ctx, query, string(entityType), entityID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list state transitions", err)
	}
	defer rows.Close()

	var out []domain.StateTransition
	for rows.Next() {
		var (
			t  domain.StateTransition
			et string
		)
		if err := rows.Scan(&t.TransitionID, &et, &t.EntityID, &t.Workflow, &t.Event,
			&t.FromState, &t.ToState, &t.ActorID, &t.Justification, &t.CreatedAt); err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan state transition", err)
		}
		t.EntityType = domain.EntityType(et)
		out = append(out, t)
	}
	return out, rows.Err()
}

type PgxApprovalRecordRepository struct {
	BaseRepository
}

func newPgxApprovalRecordRepository(pool *pgxpool.Pool) portsrepo.ApprovalRecordRepository {
	return &PgxApprovalRecordRepository{BaseRepository: BaseRepository{Pool: pool}}
}

func (r *PgxApprovalRecordRepository) SaveApprovalRecord(ctx context.Context, a domain.ApprovalRecord) error {
	query := `
		INSERT INTO approval_records (
			approval_id, entity_type, entity_id, level, sequence,
			approver_id, decision, comments, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	_, err := r.db(ctx).Exec(ctx, query,
		a.ApprovalID,
		string(a.EntityType),
		a.EntityID,
		int(a.Level),
		a.Sequence,
		a.ApproverID,
		string(a.Decision),
		a.Comments,
		a.CreatedAt,
	)
	if err != nil {
		return saveError(err, fmt.Sprintf("approval %d of %s %s", a.Sequence, a.EntityType, a.EntityID))
	}
	return nil
}

func (r *PgxApprovalRecordRepository) ListApprovalRecords(ctx context.Context, entityType domain.EntityType, entityID string) ([]domain.ApprovalRecord, error) {
	query := `
		SELECT approval_id, entity_type, entity_id, level, sequence,
		       approver_id, decision, comments, created_at
		FROM approval_records
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY sequence;
	`
	rows, err := r.db(ctx).Query(ctx, query, string(entityType), entityID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list approval records", err)
	}
	defer rows.Close()

	var out []domain.ApprovalRecord
	for rows.Next() {
		var (
			a            domain.ApprovalRecord
			et, decision string
			level        int
		)
		if err := rows.Scan(&a.ApprovalID, &et, &a.EntityID, &level, &a.Sequence,
			&a.ApproverID, &decision, &a.Comments, &a.CreatedAt); err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan approval record", err)
		}
		a.EntityType = domain.EntityType(et)
		a.Level = domain.ApprovalLevel(level)
		a.Decision = domain.ApprovalDecision(decision)
		out = append(out, a)
	}
	return out, rows.Err()
}
