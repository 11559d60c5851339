package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	InvoiceDraft     = "draft"
	InvoiceSubmitted = "submitted"
	InvoiceVerified  = "verified"
	InvoiceApproved  = "approved"
	InvoiceRejected  = "rejected"
	InvoicePaid      = "paid"
)

const WorkflowInvoice = "InvoiceWorkflow"

var InvoiceWorkflowDefinition = WorkflowDefinition{
	Name:       WorkflowInvoice,
	EntityType: EntitySupplierInvoice,
	Initial:    InvoiceDraft,
	Terminal:   []string{InvoiceRejected, InvoicePaid},
	Edges: []WorkflowEdge{
		{Event: "submit", From: []string{InvoiceDraft}, To: InvoiceSubmitted},
		{Event: "verify", From: []string{InvoiceSubmitted}, To: InvoiceVerified},
		{Event: "approve", From: []string{InvoiceVerified}, To: InvoiceApproved},
		{Event: "reject", From: []string{InvoiceSubmitted, InvoiceVerified}, To: InvoiceRejected},
		{Event: "mark_paid", From: []string{InvoiceApproved}, To: InvoicePaid},
	},
}

// SupplierInvoice is a bill against a purchase order awaiting three-way match and approval.
type SupplierInvoice struct {
	InvoiceID             string          `json:"invoiceID"`
	InvoiceNumber         string          `json:"invoiceNumber"`
	SupplierID            string          `json:"supplierID"`
	PurchaseOrderID       string          `json:"purchaseOrderID"`
	BudgetLineID          string          `json:"budgetLineID"`
	Amount                decimal.Decimal `json:"amount"`
	GoodsReceivedAmount   decimal.Decimal `json:"goodsReceivedAmount"`
	MatchVariancePercent  decimal.Decimal `json:"matchVariancePercent"`
	VarianceJustification string          `json:"varianceJustification,omitempty"`
	Status                string          `json:"status"`
	SubmittedBy           string          `json:"submittedBy,omitempty"`
	VerifiedBy            string          `json:"verifiedBy,omitempty"`
	ApprovedBy            string          `json:"approvedBy,omitempty"`
	RejectedBy            string          `json:"rejectedBy,omitempty"`
	RejectionReason       string          `json:"rejectionReason,omitempty"`
	VerifiedAt            *time.Time      `json:"verifiedAt,omitempty"`
	ApprovedAt            *time.Time      `json:"approvedAt,omitempty"`
	AuditFields
}

func (i *SupplierInvoice) EntityType() EntityType       { return EntitySupplierInvoice }
func (i *SupplierInvoice) EntityID() string             { return i.InvoiceID }
func (i *SupplierInvoice) CurrentStatus() string        { return i.Status }
func (i *SupplierInvoice) SetStatus(status string)      { i.Status = status }
func (i *SupplierInvoice) TotalAmount() decimal.Decimal { return i.Amount }

func (i *SupplierInvoice) ActorFor(role ActorRole) string {
	switch role {
	case ActorSubmitter:
		return i.SubmittedBy
	case ActorVerifier:
		return i.VerifiedBy
	case ActorApprover:
		return i.ApprovedBy
	case ActorRejecter:
		return i.RejectedBy
	}
	return ""
}

// ThreeWayMatchVariance returns the largest absolute deviation, in percent of the PO
// amount, between the order, the goods received and the invoice.
func ThreeWayMatchVariance(poAmount, goodsReceived, invoiced decimal.Decimal) decimal.Decimal {
	if poAmount.IsZero() {
		return decimal.Zero
	}
	invoiceDev := invoiced.Sub(poAmount).Abs()
	receiptDev := goodsReceived.Sub(poAmount).Abs()
	worst := decimal.Max(invoiceDev, receiptDev, invoiced.Sub(goodsReceived).Abs())
	return worst.Div(poAmount).Mul(hundred).Round(2)
}
