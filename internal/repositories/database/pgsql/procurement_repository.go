package pgsql

import (
	"context"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgxProcurementRepository struct {
	BaseRepository
}

func newPgxProcurementRepository(pool *pgxpool.Pool) portsrepo.ProcurementRepository {
	return &PgxProcurementRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.ProcurementRepository = (*PgxProcurementRepository)(nil)

const processColumns = `process_id, reference_number, requisition_id, title, estimated_amount, method, status,
	closing_date, published_by, awarded_by, awarded_bid_id, awarded_at,
	created_at, created_by, last_updated_at, last_updated_by`

func (r *PgxProcurementRepository) SaveProcess(ctx context.Context, p domain.ProcurementProcess) error {
	query := `
		INSERT INTO procurement_processes (` + processColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16);
	`
	_, err := r.db(ctx).Exec(ctx, query,
		p.ProcessID, p.ReferenceNumber, p.RequisitionID, p.Title, p.EstimatedAmount, p.Method, p.Status,
		p.ClosingDate, p.PublishedBy, p.AwardedBy, p.AwardedBidID, p.AwardedAt,
		p.CreatedAt, p.CreatedBy, p.LastUpdatedAt, p.LastUpdatedBy,
	)
	if err != nil {
		return saveError(err, "procurement process "+p.ReferenceNumber)
	}
	return nil
}

func (r *PgxProcurementRepository) UpdateProcess(ctx context.Context, p domain.ProcurementProcess) error {
	query := `
		UPDATE procurement_processes
		SET title = $2, closing_date = $3, published_by = $4, awarded_by = $5, awarded_bid_id = $6,
		    awarded_at = $7, last_updated_at = $8, last_updated_by = $9
		WHERE process_id = $1;
	`
	tag, err := r.db(ctx).Exec(ctx, query,
		p.ProcessID, p.Title, p.ClosingDate, p.PublishedBy, p.AwardedBy, p.AwardedBidID,
		p.AwardedAt, p.LastUpdatedAt, p.LastUpdatedBy,
	)
	return mustAffect(tag, err, "procurement process "+p.ProcessID)
}

func (r *PgxProcurementRepository) findProcess(ctx context.Context, id string, forUpdate bool) (*domain.ProcurementProcess, error) {
	query := `SELECT ` + processColumns + ` FROM procurement_processes WHERE process_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var p domain.ProcurementProcess
	err := r.db(ctx).QueryRow(ctx, query, id).Scan(
		&p.ProcessID, &p.ReferenceNumber, &p.RequisitionID, &p.Title, &p.EstimatedAmount, &p.Method, &p.Status,
		&p.ClosingDate, &p.PublishedBy, &p.AwardedBy, &p.AwardedBidID, &p.AwardedAt,
		&p.CreatedAt, &p.CreatedBy, &p.LastUpdatedAt, &p.LastUpdatedBy,
	)
	if err != nil {
		return nil, findError(err, "procurement process "+id)
	}
	return &p, nil
}

func (r *PgxProcurementRepository) FindProcessByID(ctx context.Context, processID string) (*domain.ProcurementProcess, error) {
	return r.findProcess(ctx, processID, false)
}

func (r *PgxProcurementRepository) FindProcessForUpdate(ctx context.Context, processID string) (*domain.ProcurementProcess, error) {
	return r.findProcess(ctx, processID, true)
}

func (r *PgxProcurementRepository) SaveBid(ctx context.Context, bid domain.Bid) error {
	query := `
		INSERT INTO bids (bid_id, process_id, supplier_id, amount, notes, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := r.db(ctx).Exec(ctx, query, bid.BidID, bid.ProcessID, bid.SupplierID, bid.Amount, bid.Notes, bid.SubmittedAt)
	if err != nil {
		return saveError(err, "bid from supplier "+bid.SupplierID)
	}
	return nil
}

func (r *PgxProcurementRepository) ListBidsByProcess(ctx context.Context, processID string) ([]domain.Bid, error) {
	query := `
		SELECT bid_id, process_id, supplier_id, amount, notes, submitted_at
		FROM bids
		WHERE process_id = $1
		ORDER BY submitted_at, bid_id;
	`
	rows, err := r.db(ctx).Query(ctx, query, processID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list bids", err)
	}
	defer rows.Close()

	var out []domain.Bid
	for rows.Next() {
		var b domain.Bid
		if err := rows.Scan(&b.BidID, &b.ProcessID, &b.SupplierID, &b.Amount, &b.Notes, &b.SubmittedAt); err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan bid", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SaveBidEvaluations sends the rows as one batch inside a transaction, so a
// duplicate score rolls back the whole sheet.
func (r *PgxProcurementRepository) SaveBidEvaluations(ctx context.Context, evaluations []domain.BidEvaluation) error {
	if len(evaluations) == 0 {
		return nil
	}
	query := `
		INSERT INTO bid_evaluations (evaluation_id, process_id, bid_id, evaluator_id, technical_score,
			financial_score, total_score, comments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	return (&TxManager{BaseRepository: r.BaseRepository}).WithinTx(ctx, func(ctx context.Context) error {
		batch := &pgx.Batch{}
		for _, e := range evaluations {
			batch.Queue(query, e.EvaluationID, e.ProcessID, e.BidID, e.EvaluatorID, e.TechnicalScore,
				e.FinancialScore, e.TotalScore, e.Comments, e.CreatedAt)
		}
		br := r.db(ctx).SendBatch(ctx, batch)
		defer br.Close()
		for range evaluations {
			if _, err := br.Exec(); err != nil {
				return saveError(err, "bid evaluation")
			}
		}
		return nil
	})
}

func (r *PgxProcurementRepository) ListBidEvaluations(ctx context.Context, processID string) ([]domain.BidEvaluation, error) {
	query := `
		SELECT evaluation_id, process_id, bid_id, evaluator_id, technical_score, financial_score,
			total_score, comments, created_at
		FROM bid_evaluations
		WHERE process_id = $1
		ORDER BY created_at, evaluation_id;
	`
	rows, err := r.db(ctx).Query(ctx, query, processID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list bid evaluations", err)
	}
	defer rows.Close()

	var out []domain.BidEvaluation
	for rows.Next() {
		var e domain.BidEvaluation
		err := rows.Scan(&e.EvaluationID, &e.ProcessID, &e.BidID, &e.EvaluatorID, &e.TechnicalScore,
			&e.FinancialScore, &e.TotalScore, &e.Comments, &e.CreatedAt)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan bid evaluation", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type PgxConflictOfInterestRepository struct {
	BaseRepository
}

func newPgxConflictOfInterestRepository(pool *pgxpool.Pool) portsrepo.ConflictOfInterestRepository {
	return &PgxConflictOfInterestRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.ConflictOfInterestRepository = (*PgxConflictOfInterestRepository)(nil)

func (r *PgxConflictOfInterestRepository) SaveDeclaration(ctx context.Context, d domain.ConflictOfInterestDeclaration) error {
	query := `
		INSERT INTO conflict_of_interest_declarations (declaration_id, user_id, target_type, target_id,
			has_conflict, details, declared_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err := r.db(ctx).Exec(ctx, query, d.DeclarationID, d.UserID, string(d.TargetType), d.TargetID,
		d.HasConflict, d.Details, d.DeclaredAt)
	if err != nil {
		return saveError(err, "conflict of interest declaration")
	}
	return nil
}

func (r *PgxConflictOfInterestRepository) FindConflicts(ctx context.Context, userID string, targetType domain.ConflictTargetType, targetIDs []string) ([]domain.ConflictOfInterestDeclaration, error) {
	if len(targetIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT declaration_id, user_id, target_type, target_id, has_conflict, details, declared_at
		FROM conflict_of_interest_declarations
		WHERE user_id = $1 AND target_type = $2 AND has_conflict AND target_id = ANY($3)
		ORDER BY declared_at, declaration_id;
	`
	rows, err := r.db(ctx).Query(ctx, query, userID, string(targetType), targetIDs)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to find conflict declarations", err)
	}
	defer rows.Close()

	var out []domain.ConflictOfInterestDeclaration
	for rows.Next() {
		var (
			d          domain.ConflictOfInterestDeclaration
			targetKind string
		)
		err := rows.Scan(&d.DeclarationID, &d.UserID, &targetKind, &d.TargetID, &d.HasConflict, &d.Details, &d.DeclaredAt)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan conflict declaration", err)
		}
		d.TargetType = domain.ConflictTargetType(targetKind)
		out = append(out, d)
	}
	return out, rows.Err()
}
