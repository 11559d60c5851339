package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RequisitionDraft           = "draft"
	RequisitionPendingApproval = "pending_approval"
	RequisitionHODApproved     = "hod_approved"
	RequisitionRejected        = "rejected"
	RequisitionCancelled       = "cancelled"
	RequisitionPOCreated       = "po_created"
)

const WorkflowRequisition = "RequisitionWorkflow"

// RequisitionWorkflowDefinition re-enters pending_approval through approve_partial
// while higher approval levels remain.
var RequisitionWorkflowDefinition = WorkflowDefinition{
	Name:       WorkflowRequisition,
	EntityType: EntityRequisition,
	Initial:    RequisitionDraft,
	Terminal:   []string{RequisitionRejected, RequisitionCancelled, RequisitionPOCreated},
	Edges: []WorkflowEdge{
		{Event: "submit", From: []string{RequisitionDraft}, To: RequisitionPendingApproval},
		{Event: "approve", From: []string{RequisitionPendingApproval}, To: RequisitionHODApproved},
		{Event: "approve_partial", From: []string{RequisitionHODApproved}, To: RequisitionPendingApproval},
		{Event: "reject", From: []string{RequisitionPendingApproval}, To: RequisitionRejected},
		{Event: "cancel", From: []string{RequisitionDraft, RequisitionPendingApproval}, To: RequisitionCancelled},
		{Event: "convert_to_po", From: []string{RequisitionHODApproved}, To: RequisitionPOCreated},
	},
}

// Requisition is a departmental request to buy, routed through amount-banded approval.
type Requisition struct {
	RequisitionID        string          `json:"requisitionID"`
	DepartmentID         string          `json:"departmentID"`
	BudgetLineID         string          `json:"budgetLineID"`
	Title                string          `json:"title"`
	Justification        string          `json:"justification"`
	Amount               decimal.Decimal `json:"amount"`
	Status               string          `json:"status"`
	CurrentApprovalLevel ApprovalLevel   `json:"currentApprovalLevel"`
	SubmittedBy          string          `json:"submittedBy,omitempty"`
	ApprovedBy           string          `json:"approvedBy,omitempty"`
	RejectedBy           string          `json:"rejectedBy,omitempty"`
	RejectionReason      string          `json:"rejectionReason,omitempty"`
	SubmittedAt          *time.Time      `json:"submittedAt,omitempty"`
	ApprovedAt           *time.Time      `json:"approvedAt,omitempty"`
	PurchaseOrderID      string          `json:"purchaseOrderID,omitempty"`
	AuditFields
}

func (r *Requisition) EntityType() EntityType       { return EntityRequisition }
func (r *Requisition) EntityID() string             { return r.RequisitionID }
func (r *Requisition) CurrentStatus() string        { return r.Status }
func (r *Requisition) SetStatus(status string)      { r.Status = status }
func (r *Requisition) TotalAmount() decimal.Decimal { return r.Amount }

func (r *Requisition) ActorFor(role ActorRole) string {
	switch role {
	case ActorSubmitter:
		return r.SubmittedBy
	case ActorApprover:
		return r.ApprovedBy
	case ActorRejecter:
		return r.RejectedBy
	}
	return ""
}

const (
	PurchaseOrderIssued    = "issued"
	PurchaseOrderCancelled = "cancelled"
	PurchaseOrderClosed    = "closed"
)

// PurchaseOrder is raised from an approved requisition and holds the budget commitment.
type PurchaseOrder struct {
	PurchaseOrderID string          `json:"purchaseOrderID"`
	PONumber        string          `json:"poNumber"`
	RequisitionID   string          `json:"requisitionID"`
	BudgetLineID    string          `json:"budgetLineID"`
	SupplierID      string          `json:"supplierID"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
	AuditFields
}
