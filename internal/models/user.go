package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a row of users. Roles are stored as a text[] column.
type User struct {
	UserID        string          `db:"user_id"`
	Name          string          `db:"name"`
	Email         string          `db:"email"`
	DepartmentID  string          `db:"department_id"`
	Roles         []string        `db:"roles"`
	ApprovalLimit decimal.Decimal `db:"approval_limit"`
	IsActive      bool            `db:"is_active"`
	AuditFields
	DeletedAt *time.Time `db:"deleted_at"`
}

// AuditLog is a row of audit_logs. Metadata is a jsonb document.
type AuditLog struct {
	AuditID     string    `db:"audit_id"`
	ActorID     string    `db:"actor_id"`
	Action      string    `db:"action"`
	Status      string    `db:"status"`
	ModelType   string    `db:"model_type"`
	ModelID     string    `db:"model_id"`
	Description string    `db:"description"`
	Metadata    []byte    `db:"metadata"`
	CreatedAt   time.Time `db:"created_at"`
}
