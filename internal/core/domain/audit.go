package domain

import "time"

type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditFailure AuditStatus = "failure"
)

// AuditLog is one "who did what to which entity" row.
type AuditLog struct {
	AuditID     string         `json:"auditID"`
	ActorID     string         `json:"actorID"`
	Action      string         `json:"action"`
	Status      AuditStatus    `json:"status"`
	ModelType   string         `json:"modelType"`
	ModelID     string         `json:"modelID"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type NotificationType string

const (
	NotifyBudgetThresholdExceeded NotificationType = "budget_threshold_exceeded"
	NotifyApprovalRequired        NotificationType = "approval_required"
	NotifyRequisitionApproved     NotificationType = "requisition_approved"
	NotifyRequisitionRejected     NotificationType = "requisition_rejected"
	NotifyInvoiceApproved         NotificationType = "invoice_approved"
	NotifyPaymentApproved         NotificationType = "payment_approved"
	NotifyPaymentProcessed        NotificationType = "payment_processed"
	NotifyContractAwarded         NotificationType = "contract_awarded"
)

// Notification is a message for a set of users.
type Notification struct {
	Recipients []string         `json:"recipients"`
	Type       NotificationType `json:"type"`
	Message    string           `json:"message"`
	ModelType  string           `json:"modelType,omitempty"`
	ModelID    string           `json:"modelID,omitempty"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
}
