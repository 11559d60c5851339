package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentDraft           = "draft"
	PaymentPendingApproval = "pending_approval"
	PaymentApproved        = "approved"
	PaymentRejected        = "rejected"
	PaymentPaid            = "paid"
	PaymentCancelled       = "cancelled"
)

const WorkflowPayment = "PaymentWorkflow"

var PaymentWorkflowDefinition = WorkflowDefinition{
	Name:       WorkflowPayment,
	EntityType: EntityPayment,
	Initial:    PaymentDraft,
	Terminal:   []string{PaymentRejected, PaymentPaid, PaymentCancelled},
	Edges: []WorkflowEdge{
		{Event: "submit", From: []string{PaymentDraft}, To: PaymentPendingApproval},
		{Event: "approve", From: []string{PaymentPendingApproval}, To: PaymentApproved},
		{Event: "reject", From: []string{PaymentPendingApproval}, To: PaymentRejected},
		{Event: "process", From: []string{PaymentApproved}, To: PaymentPaid},
		{Event: "cancel", From: []string{PaymentDraft}, To: PaymentCancelled},
	},
}

// PaymentMethod is how funds leave the organisation.
type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCheque       PaymentMethod = "CHEQUE"
	PaymentMethodMobileMoney  PaymentMethod = "MOBILE_MONEY"
)

// Payment settles an approved supplier invoice.
type Payment struct {
	PaymentID       string          `json:"paymentID"`
	InvoiceID       string          `json:"invoiceID"`
	SupplierID      string          `json:"supplierID"`
	Amount          decimal.Decimal `json:"amount"`
	Method          PaymentMethod   `json:"method"`
	Reference       string          `json:"reference,omitempty"`
	Status          string          `json:"status"`
	SubmittedBy     string          `json:"submittedBy,omitempty"`
	ApprovedBy      string          `json:"approvedBy,omitempty"`
	ProcessedBy     string          `json:"processedBy,omitempty"`
	RejectedBy      string          `json:"rejectedBy,omitempty"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	ApprovedAt      *time.Time      `json:"approvedAt,omitempty"`
	ProcessedAt     *time.Time      `json:"processedAt,omitempty"`
	AuditFields
}

func (p *Payment) EntityType() EntityType       { return EntityPayment }
func (p *Payment) EntityID() string             { return p.PaymentID }
func (p *Payment) CurrentStatus() string        { return p.Status }
func (p *Payment) SetStatus(status string)      { p.Status = status }
func (p *Payment) TotalAmount() decimal.Decimal { return p.Amount }

func (p *Payment) ActorFor(role ActorRole) string {
	switch role {
	case ActorSubmitter:
		return p.SubmittedBy
	case ActorApprover:
		return p.ApprovedBy
	case ActorProcessor:
		return p.ProcessedBy
	case ActorRejecter:
		return p.RejectedBy
	}
	return ""
}
