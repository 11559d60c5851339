package pgsql

import (
	"context"
	"strconv"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgxRequisitionRepository struct {
	BaseRepository
}

func newPgxRequisitionRepository(pool *pgxpool.Pool) portsrepo.RequisitionRepository {
	return &PgxRequisitionRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.RequisitionRepository = (*PgxRequisitionRepository)(nil)

const requisitionColumns = `requisition_id, department_id, budget_line_id, title, justification, amount, status,
	current_approval_level, submitted_by, approved_by, rejected_by, rejection_reason,
	submitted_at, approved_at, purchase_order_id,
	created_at, created_by, last_updated_at, last_updated_by`

func scanRequisition(row pgx.Row) (*domain.Requisition, error) {
	var (
		r     domain.Requisition
		level int
	)
	err := row.Scan(
		&r.RequisitionID,
		&r.DepartmentID,
		&r.BudgetLineID,
		&r.Title,
		&r.Justification,
		&r.Amount,
		&r.Status,
		&level,
		&r.SubmittedBy,
		&r.ApprovedBy,
		&r.RejectedBy,
		&r.RejectionReason,
		&r.SubmittedAt,
		&r.ApprovedAt,
		&r.PurchaseOrderID,
		&r.CreatedAt,
		&r.CreatedBy,
		&r.LastUpdatedAt,
		&r.LastUpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	r.CurrentApprovalLevel = domain.ApprovalLevel(level)
	return &r, nil
}

func (r *PgxRequisitionRepository) SaveRequisition(ctx context.Context, req domain.Requisition) error {
	query := `
		INSERT INTO requisitions (` + requisitionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19);
	`
	_, err := r.db(ctx).Exec(ctx, query,
		req.RequisitionID, req.DepartmentID, req.BudgetLineID, req.Title, req.Justification, req.Amount, req.Status,
		int(req.CurrentApprovalLevel), req.SubmittedBy, req.ApprovedBy, req.RejectedBy, req.RejectionReason,
		req.SubmittedAt, req.ApprovedAt, req.PurchaseOrderID,
		req.CreatedAt, req.CreatedBy, req.LastUpdatedAt, req.LastUpdatedBy,
	)
	if err != nil {
		return saveError(err, "requisition "+req.RequisitionID)
	}
	return nil
}

// UpdateRequisition writes every mutable column except status, which only the workflow engine changes.
func (r *PgxRequisitionRepository) UpdateRequisition(ctx context.Context, req domain.Requisition) error {
	query := `
		UPDATE requisitions
		SET title = $2, justification = $3, amount = $4, current_approval_level = $5,
		    submitted_by = $6, approved_by = $7, rejected_by = $8, rejection_reason = $9,
		    submitted_at = $10, approved_at = $11, purchase_order_id = $12,
		    last_updated_at = $13, last_updated_by = $14
		WHERE requisition_id = $1;
	`
	tag, err := r.db(ctx).Exec(ctx, query,
		req.RequisitionID, req.Title, req.Justification, req.Amount, int(req.CurrentApprovalLevel),
		req.SubmittedBy, req.ApprovedBy, req.RejectedBy, req.RejectionReason,
		req.SubmittedAt, req.ApprovedAt, req.PurchaseOrderID,
		req.LastUpdatedAt, req.LastUpdatedBy,
	)
	return mustAffect(tag, err, "requisition "+req.RequisitionID)
}

func (r *PgxRequisitionRepository) findRequisition(ctx context.Context, id string, forUpdate bool) (*domain.Requisition, error) {
	query := `SELECT ` + requisitionColumns + ` FROM requisitions WHERE requisition_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	req, err := scanRequisition(r.db(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, findError(err, "requisition "+id)
	}
	return req, nil
}

func (r *PgxRequisitionRepository) FindRequisitionByID(ctx context.Context, requisitionID string) (*domain.Requisition, error) {
	return r.findRequisition(ctx, requisitionID, false)
}

func (r *PgxRequisitionRepository) FindRequisitionForUpdate(ctx context.Context, requisitionID string) (*domain.Requisition, error) {
	return r.findRequisition(ctx, requisitionID, true)
}

func (r *PgxRequisitionRepository) ListRequisitions(ctx context.Context, status string, limit int, offset int) ([]domain.Requisition, error) {
	query := `
		SELECT ` + requisitionColumns + `
		FROM requisitions
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, requisition_id DESC
		OFFSET $2`
	args := []any{status, offset}
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list requisitions", err)
	}
	defer rows.Close()

	var out []domain.Requisition
	for rows.Next() {
		req, err := scanRequisition(rows)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan requisition", err)
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

const purchaseOrderColumns = `purchase_order_id, po_number, requisition_id, budget_line_id, supplier_id, amount, status,
	created_at, created_by, last_updated_at, last_updated_by`

func (r *PgxRequisitionRepository) SavePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error {
	query := `
		INSERT INTO purchase_orders (` + purchaseOrderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`
	_, err := r.db(ctx).Exec(ctx, query,
		po.PurchaseOrderID, po.PONumber, po.RequisitionID, po.BudgetLineID, po.SupplierID, po.Amount, po.Status,
		po.CreatedAt, po.CreatedBy, po.LastUpdatedAt, po.LastUpdatedBy,
	)
	if err != nil {
		return saveError(err, "purchase order "+po.PONumber)
	}
	return nil
}

func (r *PgxRequisitionRepository) UpdatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error {
	query := `
		UPDATE purchase_orders
		SET status = $2, last_updated_at = $3, last_updated_by = $4
		WHERE purchase_order_id = $1;
	`
	tag, err := r.db(ctx).Exec(ctx, query, po.PurchaseOrderID, po.Status, po.LastUpdatedAt, po.LastUpdatedBy)
	return mustAffect(tag, err, "purchase order "+po.PurchaseOrderID)
}

func (r *PgxRequisitionRepository) findPurchaseOrder(ctx context.Context, id string, forUpdate bool) (*domain.PurchaseOrder, error) {
	query := `SELECT ` + purchaseOrderColumns + ` FROM purchase_orders WHERE purchase_order_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var po domain.PurchaseOrder
	err := r.db(ctx).QueryRow(ctx, query, id).Scan(
		&po.PurchaseOrderID, &po.PONumber, &po.RequisitionID, &po.BudgetLineID, &po.SupplierID, &po.Amount, &po.Status,
		&po.CreatedAt, &po.CreatedBy, &po.LastUpdatedAt, &po.LastUpdatedBy,
	)
	if err != nil {
		return nil, findError(err, "purchase order "+id)
	}
	return &po, nil
}

func (r *PgxRequisitionRepository) FindPurchaseOrderByID(ctx context.Context, purchaseOrderID string) (*domain.PurchaseOrder, error) {
	return r.findPurchaseOrder(ctx, purchaseOrderID, false)
}

func (r *PgxRequisitionRepository) FindPurchaseOrderForUpdate(ctx context.Context, purchaseOrderID string) (*domain.PurchaseOrder, error) {
	return r.findPurchaseOrder(ctx, purchaseOrderID, true)
}

type PgxInvoiceRepository struct {
	BaseRepository
}

func newPgxInvoiceRepository(pool *pgxpool.Pool) portsrepo.InvoiceRepository {
	return &PgxInvoiceRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.InvoiceRepository = (*PgxInvoiceRepository)(nil)

const invoiceColumns = `invoice_id, invoice_number, supplier_id, purchase_order_id, budget_line_id, amount,
	goods_received_amount, match_variance_percent, variance_justification, status,
	submitted_by, verified_by, approved_by, rejected_by, rejection_reason, verified_at, approved_at,
	created_at, created_by, last_updated_at, last_updated_by`

func (r *PgxInvoiceRepository) SaveInvoice(ctx context.Context, inv domain.SupplierInvoice) error {
	query := `
		INSERT INTO supplier_invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21);
	`
	_, err := r.db(ctx).Exec(ctx, query,
		inv.InvoiceID, inv.InvoiceNumber, inv.SupplierID, inv.PurchaseOrderID, inv.BudgetLineID, inv.Amount,
		inv.GoodsReceivedAmount, inv.MatchVariancePercent, inv.VarianceJustification, inv.Status,
		inv.SubmittedBy, inv.VerifiedBy, inv.ApprovedBy, inv.RejectedBy, inv.RejectionReason, inv.VerifiedAt, inv.ApprovedAt,
		inv.CreatedAt, inv.CreatedBy, inv.LastUpdatedAt, inv.LastUpdatedBy,
	)
	if err != nil {
		return saveError(err, "invoice "+inv.InvoiceNumber)
	}
	return nil
}

func (r *PgxInvoiceRepository) UpdateInvoice(ctx context.Context, inv domain.SupplierInvoice) error {
	query := `
		UPDATE supplier_invoices
		SET goods_received_amount = $2, match_variance_percent = $3, variance_justification = $4,
		    submitted_by = $5, verified_by = $6, approved_by = $7, rejected_by = $8, rejection_reason = $9,
		    verified_at = $10, approved_at = $11, last_updated_at = $12, last_updated_by = $13
		WHERE invoice_id = $1;
	`
	tag, err := r.db(ctx).Exec(ctx, query,
		inv.InvoiceID, inv.GoodsReceivedAmount, inv.MatchVariancePercent, inv.VarianceJustification,
		inv.SubmittedBy, inv.VerifiedBy, inv.ApprovedBy, inv.RejectedBy, inv.RejectionReason,
		inv.VerifiedAt, inv.ApprovedAt, inv.LastUpdatedAt, inv.LastUpdatedBy,
	)
	return mustAffect(tag, err, "invoice "+inv.InvoiceID)
}

func (r *PgxInvoiceRepository) findInvoice(ctx context.Context, id string, forUpdate bool) (*domain.SupplierInvoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM supplier_invoices WHERE invoice_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var inv domain.SupplierInvoice
	err := r.db(ctx).QueryRow(ctx, query, id).Scan(
		&inv.InvoiceID, &inv.InvoiceNumber, &inv.SupplierID, &inv.PurchaseOrderID, &inv.BudgetLineID, &inv.Amount,
		&inv.GoodsReceivedAmount, &inv.MatchVariancePercent, &inv.VarianceJustification, &inv.Status,
		&inv.SubmittedBy, &inv.VerifiedBy, &inv.ApprovedBy, &inv.RejectedBy, &inv.RejectionReason, &inv.VerifiedAt, &inv.ApprovedAt,
		&inv.CreatedAt, &inv.CreatedBy, &inv.LastUpdatedAt, &inv.LastUpdatedBy,
	)
	if err != nil {
		return nil, findError(err, "invoice "+id)
	}
	return &inv, nil
}

func (r *PgxInvoiceRepository) FindInvoiceByID(ctx context.Context, invoiceID string) (*domain.SupplierInvoice, error) {
	return r.findInvoice(ctx, invoiceID, false)
}

func (r *PgxInvoiceRepository) FindInvoiceForUpdate(ctx context.Context, invoiceID string) (*domain.SupplierInvoice, error) {
	return r.findInvoice(ctx, invoiceID, true)
}

type PgxPaymentRepository struct {
	BaseRepository
}

func newPgxPaymentRepository(pool *pgxpool.Pool) portsrepo.PaymentRepository {
	return &PgxPaymentRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.PaymentRepository = (*PgxPaymentRepository)(nil)

const paymentColumns = `payment_id, invoice_id, supplier_id, amount, method, reference, status,
	submitted_by, approved_by, processed_by, rejected_by, rejection_reason, approved_at, processed_at,
	created_at, created_by, last_updated_at, last_updated_by`

func (r *PgxPaymentRepository) SavePayment(ctx context.Context, p domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18);
	`
	_, err := r.db(ctx).Exec(ctx, query,
		p.PaymentID, p.InvoiceID, p.SupplierID, p.Amount, string(p.Method), p.Reference, p.Status,
		p.SubmittedBy, p.ApprovedBy, p.ProcessedBy, p.RejectedBy, p.RejectionReason, p.ApprovedAt, p.ProcessedAt,
		p.CreatedAt, p.CreatedBy, p.LastUpdatedAt, p.LastUpdatedBy,
	)
	if err != nil {
		return saveError(err, "payment "+p.PaymentID)
	}
	return nil
}

func (r *PgxPaymentRepository) UpdatePayment(ctx context.Context, p domain.Payment) error {
	query := `
		UPDATE payments
		SET reference = $2, submitted_by = $3, approved_by = $4, processed_by = $5, rejected_by = $6,
		    rejection_reason = $7, approved_at = $8, processed_at = $9, last_updated_at = $10, last_updated_by = $11
		WHERE payment_id = $1;
	`
	tag, err := r.db(ctx).Exec(ctx, query,
		p.PaymentID, p.Reference, p.SubmittedBy, p.ApprovedBy, p.ProcessedBy, p.RejectedBy,
		p.RejectionReason, p.ApprovedAt, p.ProcessedAt, p.LastUpdatedAt, p.LastUpdatedBy,
	)
	return mustAffect(tag, err, "payment "+p.PaymentID)
}

func (r *PgxPaymentRepository) findPayment(ctx context.Context, id string, forUpdate bool) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var (
		p      domain.Payment
		method string
	)
	err := r.db(ctx).QueryRow(ctx, query, id).Scan(
		&p.PaymentID, &p.InvoiceID, &p.SupplierID, &p.Amount, &method, &p.Reference, &p.Status,
		&p.SubmittedBy, &p.ApprovedBy, &p.ProcessedBy, &p.RejectedBy, &p.RejectionReason, &p.ApprovedAt, &p.ProcessedAt,
		&p.CreatedAt, &p.CreatedBy, &p.LastUpdatedAt, &p.LastUpdatedBy,
	)
	if err != nil {
		return nil, findError(err, "payment "+id)
	}
	p.Method = domain.PaymentMethod(method)
	return &p, nil
}

func (r *PgxPaymentRepository) FindPaymentByID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return r.findPayment(ctx, paymentID, false)
}

func (r *PgxPaymentRepository) FindPaymentForUpdate(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return r.findPayment(ctx, paymentID, true)
}
