package repositories

import (
	"context"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
)

// RequisitionRepository defines persistence for requisitions and the purchase orders they become.
type RequisitionRepository interface {
	SaveRequisition(ctx context.Context, requisition domain.Requisition) error
	UpdateRequisition(ctx context.Context, requisition domain.Requisition) error
	FindRequisitionByID(ctx context.Context, requisitionID string) (*domain.Requisition, error)
	// FindRequisitionForUpdate locks the row for the rest of the transaction.
	FindRequisitionForUpdate(ctx context.Context, requisitionID string) (*domain.Requisition, error)
	ListRequisitions(ctx context.Context, status string, limit int, offset int) ([]domain.Requisition, error)

	SavePurchaseOrder(ctx context.Context, order domain.PurchaseOrder) error
	UpdatePurchaseOrder(ctx context.Context, order domain.PurchaseOrder) error
	FindPurchaseOrderByID(ctx context.Context, purchaseOrderID string) (*domain.PurchaseOrder, error)
	FindPurchaseOrderForUpdate(ctx context.Context, purchaseOrderID string) (*domain.PurchaseOrder, error)
}

// InvoiceRepository defines persistence for supplier invoices.
type InvoiceRepository interface {
	SaveInvoice(ctx context.Context, invoice domain.SupplierInvoice) error
	UpdateInvoice(ctx context.Context, invoice domain.SupplierInvoice) error
	FindInvoiceByID(ctx context.Context, invoiceID string) (*domain.SupplierInvoice, error)
	FindInvoiceForUpdate(ctx context.Context, invoiceID string) (*domain.SupplierInvoice, error)
}

// PaymentRepository defines persistence for payments.
type PaymentRepository interface {
	SavePayment(ctx context.Context, payment domain.Payment) error
	UpdatePayment(ctx context.Context, payment domain.Payment) error
	FindPaymentByID(ctx context.Context, paymentID string) (*domain.Payment, error)
	FindPaymentForUpdate(ctx context.Context, paymentID string) (*domain.Payment, error)
}
