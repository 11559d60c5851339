package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
)

// table picks one keyed collection out of a state.
type table[T any] func(st *memoryState) map[string]T

func findRow[T any](ctx context.Context, s *Store, tbl table[T], kind, id string) (*T, error) {
	var row T
	err := s.view(ctx, func(st *memoryState) error {
		v, ok := tbl(st)[id]
		if !ok {
			return fmt.Errorf("%s %s: %w", kind, id, apperrors.ErrNotFound)
		}
		row = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func insertRow[T any](ctx context.Context, s *Store, tbl table[T], kind, id string, row T) error {
	return s.update(ctx, func(st *memoryState) error {
		m := tbl(st)
		if _, ok := m[id]; ok {
			return fmt.Errorf("%s %s: %w", kind, id, apperrors.ErrDuplicate)
		}
		m[id] = row
		return nil
	})
}

func replaceRow[T any](ctx context.Context, s *Store, tbl table[T], kind, id string, row T) error {
	return s.update(ctx, func(st *memoryState) error {
		m := tbl(st)
		if _, ok := m[id]; !ok {
			return fmt.Errorf("%s %s: %w", kind, id, apperrors.ErrNotFound)
		}
		m[id] = row
		return nil
	})
}

var (
	requisitions   table[domain.Requisition]        = func(st *memoryState) map[string]domain.Requisition { return st.requisitions }
	purchaseOrders table[domain.PurchaseOrder]      = func(st *memoryState) map[string]domain.PurchaseOrder { return st.purchaseOrders }
	invoices       table[domain.SupplierInvoice]    = func(st *memoryState) map[string]domain.SupplierInvoice { return st.invoices }
	payments       table[domain.Payment]            = func(st *memoryState) map[string]domain.Payment { return st.payments }
	processes      table[domain.ProcurementProcess] = func(st *memoryState) map[string]domain.ProcurementProcess { return st.processes }
	users          table[domain.User]               = func(st *memoryState) map[string]domain.User { return st.users }
)

type RequisitionRepository struct {
	store *Store
}

func NewRequisitionRepository(store *Store) *RequisitionRepository {
	return &RequisitionRepository{store: store}
}

var _ portsrepo.RequisitionRepository = (*RequisitionRepository)(nil)

func (r *RequisitionRepository) SaveRequisition(ctx context.Context, requisition domain.Requisition) error {
	return insertRow(ctx, r.store, requisitions, "requisition", requisition.RequisitionID, requisition)
}

func (r *RequisitionRepository) UpdateRequisition(ctx context.Context, requisition domain.Requisition) error {
	return replaceRow(ctx, r.store, requisitions, "requisition", requisition.RequisitionID, requisition)
}

func (r *RequisitionRepository) FindRequisitionByID(ctx context.Context, requisitionID string) (*domain.Requisition, error) {
	return findRow(ctx, r.store, requisitions, "requisition", requisitionID)
}

func (r *RequisitionRepository) FindRequisitionForUpdate(ctx context.Context, requisitionID string) (*domain.Requisition, error) {
	return findRow(ctx, r.store, requisitions, "requisition", requisitionID)
}

func (r *RequisitionRepository) ListRequisitions(ctx context.Context, status string, limit int, offset int) ([]domain.Requisition, error) {
	var out []domain.Requisition
	_ = r.store.view(ctx, func(st *memoryState) error {
		for _, req := range st.requisitions {
			if status == "" || req.Status == status {
				out = append(out, req)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []domain.Requisition{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *RequisitionRepository) SavePurchaseOrder(ctx context.Context, order domain.PurchaseOrder) error {
	return insertRow(ctx, r.store, purchaseOrders, "purchase order", order.PurchaseOrderID, order)
}

func (r *RequisitionRepository) UpdatePurchaseOrder(ctx context.Context, order domain.PurchaseOrder) error {
	return replaceRow(ctx, r.store, purchaseOrders, "purchase order", order.PurchaseOrderID, order)
}

func (r *RequisitionRepository) FindPurchaseOrderByID(ctx context.Context, purchaseOrderID string) (*domain.PurchaseOrder, error) {
	return findRow(ctx, r.store, purchaseOrders, "purchase order", purchaseOrderID)
}

func (r *RequisitionRepository) FindPurchaseOrderForUpdate(ctx context.Context, purchaseOrderID string) (*domain.PurchaseOrder, error) {
	return findRow(ctx, r.store, purchaseOrders, "purchase order", purchaseOrderID)
}

type InvoiceRepository struct {
	store *Store
}

func NewInvoiceRepository(store *Store) *InvoiceRepository {
	return &InvoiceRepository{store: store}
}

func (r *InvoiceRepository) SaveInvoice(ctx context.Context, invoice domain.SupplierInvoice) error {
	return insertRow(ctx, r.store, invoices, "invoice", invoice.InvoiceID, invoice)
}

func (r *InvoiceRepository) UpdateInvoice(ctx context.Context, invoice domain.SupplierInvoice) error {
	return replaceRow(ctx, r.store, invoices, "invoice", invoice.InvoiceID, invoice)
}

func (r *InvoiceRepository) FindInvoiceByID(ctx context.Context, invoiceID string) (*domain.SupplierInvoice, error) {
	return findRow(ctx, r.store, invoices, "invoice", invoiceID)
}

func (r *InvoiceRepository) FindInvoiceForUpdate(ctx context.Context, invoiceID string) (*domain.SupplierInvoice, error) {
	return findRow(ctx, r.store, invoices, "invoice", invoiceID)
}

type PaymentRepository struct {
	store *Store
}

func NewPaymentRepository(store *Store) *PaymentRepository {
	return &PaymentRepository{store: store}
}

func (r *PaymentRepository) SavePayment(ctx context.Context, payment domain.Payment) error {
	return insertRow(ctx, r.store, payments, "payment", payment.PaymentID, payment)
}

func (r *PaymentRepository) UpdatePayment(ctx context.Context, payment domain.Payment) error {
	return replaceRow(ctx, r.store, payments, "payment", payment.PaymentID, payment)
}

func (r *PaymentRepository) FindPaymentByID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return findRow(ctx, r.store, payments, "payment", paymentID)
}

func (r *PaymentRepository) FindPaymentForUpdate(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return findRow(ctx, r.store, payments, "payment", paymentID)
}
