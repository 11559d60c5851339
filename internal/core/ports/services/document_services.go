package services

import (
	"context"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	"github.com/SscSPs/procure_to_pay/internal/dto"
)

// RequisitionSvc drives requisitions from draft to purchase order.
type RequisitionSvc interface {
	CreateRequisition(ctx context.Context, req dto.CreateRequisitionRequest, actorID string) (*domain.Requisition, error)
	GetRequisition(ctx context.Context, requisitionID string) (*domain.Requisition, error)
	ListRequisitions(ctx context.Context, status string, limit int, offset int) ([]domain.Requisition, error)
	SubmitRequisition(ctx context.Context, requisitionID string, actorID string) (*domain.Requisition, error)
	// ApproveRequisition signs at the current level and either routes to the next level or finalizes.
	ApproveRequisition(ctx context.Context, requisitionID string, req dto.DecisionRequest, actorID string) (*domain.Requisition, error)
	RejectRequisition(ctx context.Context, requisitionID string, req dto.DecisionRequest, actorID string) (*domain.Requisition, error)
	CancelRequisition(ctx context.Context, requisitionID string, actorID string) (*domain.Requisition, error)
	// ConvertToPurchaseOrder issues a PO and commits its amount on the requisition's budget line.
	ConvertToPurchaseOrder(ctx context.Context, requisitionID string, req dto.CreatePurchaseOrderRequest, actorID string) (*domain.PurchaseOrder, error)
	// CancelPurchaseOrder cancels an issued PO and releases its commitment.
	CancelPurchaseOrder(ctx context.Context, purchaseOrderID string, reason string, actorID string) (*domain.PurchaseOrder, error)
	GetPurchaseOrder(ctx context.Context, purchaseOrderID string) (*domain.PurchaseOrder, error)
	ApprovalHistory(ctx context.Context, requisitionID string) ([]domain.ApprovalRecord, error)
}

// InvoiceSvc drives supplier invoices through verification and approval.
type InvoiceSvc interface {
	CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest, actorID string) (*domain.SupplierInvoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*domain.SupplierInvoice, error)
	SubmitInvoice(ctx context.Context, invoiceID string, actorID string) (*domain.SupplierInvoice, error)
	// VerifyInvoice performs the three-way match and records the variance.
	VerifyInvoice(ctx context.Context, invoiceID string, req dto.VerifyInvoiceRequest, actorID string) (*domain.SupplierInvoice, error)
	// ApproveInvoice recognizes the invoice amount as spend on the PO's budget line.
	ApproveInvoice(ctx context.Context, invoiceID string, req dto.DecisionRequest, actorID string) (*domain.SupplierInvoice, error)
	RejectInvoice(ctx context.Context, invoiceID string, req dto.DecisionRequest, actorID string) (*domain.SupplierInvoice, error)
}

// PaymentSvc drives payments from draft to paid.
type PaymentSvc interface {
	CreatePayment(ctx context.Context, req dto.CreatePaymentRequest, actorID string) (*domain.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error)
	SubmitPayment(ctx context.Context, paymentID string, actorID string) (*domain.Payment, error)
	ApprovePayment(ctx context.Context, paymentID string, req dto.DecisionRequest, actorID string) (*domain.Payment, error)
	RejectPayment(ctx context.Context, paymentID string, req dto.DecisionRequest, actorID string) (*domain.Payment, error)
	CancelPayment(ctx context.Context, paymentID string, actorID string) (*domain.Payment, error)
	// ProcessPayment releases the funds and marks the invoice paid.
	ProcessPayment(ctx context.Context, paymentID string, actorID string) (*domain.Payment, error)
}

// ProcurementSvc runs competitive sourcing from publication to award.
type ProcurementSvc interface {
	CreateProcess(ctx context.Context, req dto.CreateProcessRequest, actorID string) (*domain.ProcurementProcess, error)
	GetProcess(ctx context.Context, processID string) (*domain.ProcurementProcess, error)
	PublishProcess(ctx context.Context, processID string, actorID string) (*domain.ProcurementProcess, error)
	SubmitBid(ctx context.Context, processID string, req dto.SubmitBidRequest, actorID string) (*domain.Bid, error)
	ListBids(ctx context.Context, processID string) ([]domain.Bid, error)
	DeclareConflict(ctx context.Context, req dto.DeclareConflictRequest, actorID string) (*domain.ConflictOfInterestDeclaration, error)
	CloseBidding(ctx context.Context, processID string, actorID string) (*domain.ProcurementProcess, error)
	// EvaluateBids records one evaluation per score, all or nothing.
	EvaluateBids(ctx context.Context, processID string, req dto.EvaluateBidsRequest, actorID string) ([]domain.BidEvaluation, error)
	// AwardContract picks the bid with the highest mean total score.
	AwardContract(ctx context.Context, processID string, actorID string) (*domain.ProcurementProcess, error)
	CompleteProcess(ctx context.Context, processID string, actorID string) (*domain.ProcurementProcess, error)
	CancelProcess(ctx context.Context, processID string, reason string, actorID string) (*domain.ProcurementProcess, error)
}

// UserSvc manages the users the authority checks roles and limits against.
type UserSvc interface {
	CreateUser(ctx context.Context, req dto.CreateUserRequest, actorID string) (*domain.User, error)
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
}
