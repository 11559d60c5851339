package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType names an approvable record kind. It doubles as the audit model type.
type EntityType string

const (
	EntityRequisition        EntityType = "requisition"
	EntitySupplierInvoice    EntityType = "supplier_invoice"
	EntityPayment            EntityType = "payment"
	EntityProcurementProcess EntityType = "procurement_process"
)

// ActorRole is the part a user played on a single financial record.
type ActorRole string

const (
	ActorSubmitter ActorRole = "submitted_by"
	ActorVerifier  ActorRole = "verified_by"
	ActorApprover  ActorRole = "approved_by"
	ActorProcessor ActorRole = "processed_by"
	ActorRejecter  ActorRole = "rejected_by"
)

// Approvable is the capability set the workflow engine and the approval authority
// need from a requisition, invoice, payment or procurement process.
type Approvable interface {
	EntityType() EntityType
	EntityID() string
	CurrentStatus() string
	SetStatus(status string)
	TotalAmount() decimal.Decimal
	// ActorFor returns the user recorded for role, or "" when nobody holds it yet.
	ActorFor(role ActorRole) string
}

// StateTransition is one append-only row of an entity's workflow history.
type StateTransition struct {
	TransitionID  string     `json:"transitionID"`
	EntityType    EntityType `json:"entityType"`
	EntityID      string     `json:"entityID"`
	Workflow      string     `json:"workflow"`
	Event         string     `json:"event"`
	FromState     string     `json:"fromState"`
	ToState       string     `json:"toState"`
	ActorID       string     `json:"actorID"`
	Justification string     `json:"justification,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// WorkflowEdge is a single legal move of a workflow graph.
type WorkflowEdge struct {
	Event string
	From  []string
	To    string
}

// WorkflowDefinition is the transition table for one workflow name.
type WorkflowDefinition struct {
	Name       string
	EntityType EntityType
	Initial    string
	Terminal   []string
	Edges      []WorkflowEdge
}

// IsTerminal reports whether state has no outgoing edges by definition.
func (d WorkflowDefinition) IsTerminal(state string) bool {
	for _, t := range d.Terminal {
		if t == state {
			return true
		}
	}
	return false
}

// EdgeForEvent finds the edge named event that leaves from.
func (d WorkflowDefinition) EdgeForEvent(event, from string) (WorkflowEdge, bool) {
	for _, e := range d.Edges {
		if e.Event == event && containsState(e.From, from) {
			return e, true
		}
	}
	return WorkflowEdge{}, false
}

// EdgeToState finds the first edge that moves from into to.
func (d WorkflowDefinition) EdgeToState(from, to string) (WorkflowEdge, bool) {
	for _, e := range d.Edges {
		if e.To == to && containsState(e.From, from) {
			return e, true
		}
	}
	return WorkflowEdge{}, false
}

func containsState(states []string, s string) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}

// TransitionRequest asks the engine to move an entity along one edge. Either Event
// or ToState must be set; ExpectedFrom, when set, must equal the persisted status.
type TransitionRequest struct {
	Workflow      string
	Event         string
	ExpectedFrom  string
	ToState       string
	ActorID       string
	Justification string
}

// Workflows returns the transition tables shipped with the application.
func Workflows() []WorkflowDefinition {
	return []WorkflowDefinition{
		RequisitionWorkflowDefinition,
		InvoiceWorkflowDefinition,
		PaymentWorkflowDefinition,
		ProcurementWorkflowDefinition,
	}
}
