package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role is a system-wide capability held by a user.
type Role string

const (
	RoleStaff              Role = "staff"
	RoleHOD                Role = "hod"
	RoleFinanceManager     Role = "finance_manager"
	RoleProcurementOfficer Role = "procurement_officer"
	RoleAccountant         Role = "accountant"
	RoleEvaluator          Role = "evaluator"
	RoleSuperAdmin         Role = "super_admin"
)

// User represents a user of the application in the domain.
type User struct {
	UserID        string          `json:"userID"` // Primary Key (e.g., UUID)
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	DepartmentID  string          `json:"departmentID"`
	Roles         []Role          `json:"roles"`
	ApprovalLimit decimal.Decimal `json:"approvalLimit"`
	IsActive      bool            `json:"isActive"`
	AuditFields
	DeletedAt *time.Time `json:"deletedAt,omitempty" db:"deleted_at"` // Used for soft delete
}

func (u User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsSuperAdmin reports the administrative role that bypasses approval limits.
func (u User) IsSuperAdmin() bool {
	return u.HasRole(RoleSuperAdmin)
}
