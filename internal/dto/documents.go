package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateRequisitionRequest defines the data needed to raise a requisition.
type CreateRequisitionRequest struct {
	DepartmentID  string          `json:"departmentID" binding:"required"`
	BudgetLineID  string          `json:"budgetLineID" binding:"required"`
	Title         string          `json:"title" binding:"required,max=255"`
	Justification string          `json:"justification"`
	Amount        decimal.Decimal `json:"amount" binding:"dgt=0"`
}

// DecisionRequest carries an approver's comments, or the reason for a rejection.
type DecisionRequest struct {
	Comments string `json:"comments"`
}

// CreatePurchaseOrderRequest converts an approved requisition into an order.
type CreatePurchaseOrderRequest struct {
	SupplierID string `json:"supplierID" binding:"required"`
	// Amount defaults to the requisition amount when omitted.
	Amount *decimal.Decimal `json:"amount"`
}

// CancelRequest carries the reason for a cancellation.
type CancelRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// CreateInvoiceRequest records a supplier invoice against a purchase order.
type CreateInvoiceRequest struct {
	InvoiceNumber   string          `json:"invoiceNumber" binding:"required"`
	SupplierID      string          `json:"supplierID" binding:"required"`
	PurchaseOrderID string          `json:"purchaseOrderID" binding:"required"`
	Amount          decimal.Decimal `json:"amount"`
}

// VerifyInvoiceRequest carries the goods received value for the three-way match.
type VerifyInvoiceRequest struct {
	GoodsReceivedAmount   decimal.Decimal `json:"goodsReceivedAmount"`
	VarianceJustification string          `json:"varianceJustification"`
}

// CreatePaymentRequest defines the data needed to pay an approved invoice.
type CreatePaymentRequest struct {
	InvoiceID string `json:"invoiceID" binding:"required"`
	Method    string `json:"method" binding:"required,oneof=BANK_TRANSFER CHEQUE MOBILE_MONEY"`
	Reference string `json:"reference"`
}

// CreateProcessRequest opens a procurement process.
type CreateProcessRequest struct {
	ReferenceNumber string          `json:"referenceNumber" binding:"required"`
	RequisitionID   string          `json:"requisitionID"`
	Title           string          `json:"title" binding:"required"`
	EstimatedAmount decimal.Decimal `json:"estimatedAmount"`
	ClosingDate     *time.Time      `json:"closingDate"`
}

// SubmitBidRequest records a supplier quotation.
type SubmitBidRequest struct {
	SupplierID string          `json:"supplierID" binding:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Notes      string          `json:"notes"`
}

// DeclareConflictRequest records the caller's relationship with a process or supplier.
type DeclareConflictRequest struct {
	TargetType  string `json:"targetType" binding:"required,oneof=procurement_process supplier"`
	TargetID    string `json:"targetID" binding:"required"`
	HasConflict bool   `json:"hasConflict"`
	Details     string `json:"details"`
}

// BidScoreRequest is one row of an evaluation sheet.
type BidScoreRequest struct {
	BidID          string          `json:"bidID" binding:"required"`
	TechnicalScore decimal.Decimal `json:"technicalScore"`
	FinancialScore decimal.Decimal `json:"financialScore"`
	Comments       string          `json:"comments"`
}

// EvaluateBidsRequest is an evaluator's full sheet for a process.
type EvaluateBidsRequest struct {
	Scores []BidScoreRequest `json:"scores" binding:"required,min=1,dive"`
}

// CreateUserRequest defines the data needed to register a user.
type CreateUserRequest struct {
	Name          string          `json:"name" binding:"required"`
	Email         string          `json:"email" binding:"required,email"`
	DepartmentID  string          `json:"departmentID"`
	Roles         []string        `json:"roles" binding:"required,min=1,dive,oneof=staff hod finance_manager procurement_officer accountant evaluator super_admin"`
	ApprovalLimit decimal.Decimal `json:"approvalLimit"`
}

// ListRequisitionsParams defines query parameters for listing requisitions.
type ListRequisitionsParams struct {
	Status string `form:"status"`
	Limit  int    `form:"limit,default=20" binding:"min=1,max=100"`
	Offset int    `form:"offset,default=0" binding:"min=0"`
}
