package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProcessDraft      = "draft"
	ProcessPublished  = "published"
	ProcessEvaluation = "evaluation"
	ProcessAwarded    = "awarded"
	ProcessCompleted  = "completed"
	ProcessCancelled  = "cancelled"
)

const WorkflowProcurement = "ProcurementWorkflow"

var ProcurementWorkflowDefinition = WorkflowDefinition{
	Name:       WorkflowProcurement,
	EntityType: EntityProcurementProcess,
	Initial:    ProcessDraft,
	Terminal:   []string{ProcessCompleted, ProcessCancelled},
	Edges: []WorkflowEdge{
		{Event: "publish", From: []string{ProcessDraft}, To: ProcessPublished},
		{Event: "close_bidding", From: []string{ProcessPublished}, To: ProcessEvaluation},
		{Event: "award", From: []string{ProcessEvaluation}, To: ProcessAwarded},
		{Event: "complete", From: []string{ProcessAwarded}, To: ProcessCompleted},
		{Event: "cancel", From: []string{ProcessDraft, ProcessPublished, ProcessEvaluation}, To: ProcessCancelled},
	},
}

// ProcurementProcess is a competitive sourcing exercise (RFQ, RFP or tender).
type ProcurementProcess struct {
	ProcessID       string          `json:"processID"`
	ReferenceNumber string          `json:"referenceNumber"`
	RequisitionID   string          `json:"requisitionID,omitempty"`
	Title           string          `json:"title"`
	EstimatedAmount decimal.Decimal `json:"estimatedAmount"`
	Method          string          `json:"method"`
	Status          string          `json:"status"`
	ClosingDate     *time.Time      `json:"closingDate,omitempty"`
	PublishedBy     string          `json:"publishedBy,omitempty"`
	AwardedBy       string          `json:"awardedBy,omitempty"`
	AwardedBidID    string          `json:"awardedBidID,omitempty"`
	AwardedAt       *time.Time      `json:"awardedAt,omitempty"`
	AuditFields
}

func (p *ProcurementProcess) EntityType() EntityType       { return EntityProcurementProcess }
func (p *ProcurementProcess) EntityID() string             { return p.ProcessID }
func (p *ProcurementProcess) CurrentStatus() string        { return p.Status }
func (p *ProcurementProcess) SetStatus(status string)      { p.Status = status }
func (p *ProcurementProcess) TotalAmount() decimal.Decimal { return p.EstimatedAmount }

func (p *ProcurementProcess) ActorFor(role ActorRole) string {
	switch role {
	case ActorSubmitter:
		return p.PublishedBy
	case ActorApprover:
		return p.AwardedBy
	}
	return ""
}

// Bid is one supplier's quotation in a procurement process.
type Bid struct {
	BidID       string          `json:"bidID"`
	ProcessID   string          `json:"processID"`
	SupplierID  string          `json:"supplierID"`
	Amount      decimal.Decimal `json:"amount"`
	Notes       string          `json:"notes,omitempty"`
	SubmittedAt time.Time       `json:"submittedAt"`
}

// BidScore is an evaluator's input for one bid.
type BidScore struct {
	BidID          string
	TechnicalScore decimal.Decimal
	FinancialScore decimal.Decimal
	Comments       string
}

// Score bounds: technical 0..70, financial 0..30, total out of 100.
var (
	MaxTechnicalScore = decimal.NewFromInt(70)
	MaxFinancialScore = decimal.NewFromInt(30)
)

// BidEvaluation is an immutable scoring row written by one evaluator for one bid.
type BidEvaluation struct {
	EvaluationID   string          `json:"evaluationID"`
	ProcessID      string          `json:"processID"`
	BidID          string          `json:"bidID"`
	EvaluatorID    string          `json:"evaluatorID"`
	TechnicalScore decimal.Decimal `json:"technicalScore"`
	FinancialScore decimal.Decimal `json:"financialScore"`
	TotalScore     decimal.Decimal `json:"totalScore"`
	Comments       string          `json:"comments,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// ConflictTargetType is what a conflict of interest declaration points at.
type ConflictTargetType string

const (
	ConflictTargetProcess  ConflictTargetType = "procurement_process"
	ConflictTargetSupplier ConflictTargetType = "supplier"
)

// ConflictOfInterestDeclaration records a user's relationship with a process or supplier.
type ConflictOfInterestDeclaration struct {
	DeclarationID string             `json:"declarationID"`
	UserID        string             `json:"userID"`
	TargetType    ConflictTargetType `json:"targetType"`
	TargetID      string             `json:"targetID"`
	HasConflict   bool               `json:"hasConflict"`
	Details       string             `json:"details,omitempty"`
	DeclaredAt    time.Time          `json:"declaredAt"`
}

// CashBand maps a purchase value to a sourcing method and the quotes it needs.
type CashBand struct {
	Label         string
	UpTo          *decimal.Decimal
	MinimumQuotes int
}

func bandLimit(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// CashBands are ordered by ascending upper bound; the last band is open ended.
var CashBands = []CashBand{
	{Label: "direct", UpTo: bandLimit(50_000), MinimumQuotes: 1},
	{Label: "rfq", UpTo: bandLimit(1_000_000), MinimumQuotes: 3},
	{Label: "rfp", UpTo: bandLimit(5_000_000), MinimumQuotes: 5},
	{Label: "open_tender", MinimumQuotes: 7},
}

// CashBandFor returns the band whose inclusive upper bound covers amount.
func CashBandFor(amount decimal.Decimal) CashBand {
	for _, b := range CashBands {
		if b.UpTo == nil || amount.LessThanOrEqual(*b.UpTo) {
			return b
		}
	}
	return CashBands[len(CashBands)-1]
}
