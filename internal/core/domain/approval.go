package domain

import "time"

// ApprovalLevel is a rung of the amount-banded approval ladder.
type ApprovalLevel int

const (
	LevelHeadOfDepartment   ApprovalLevel = 1
	LevelFinanceManager     ApprovalLevel = 2
	LevelProcurementOfficer ApprovalLevel = 3
	LevelSuperAdmin         ApprovalLevel = 4
)

// RequiredRole is the role that may sign off at the level.
func (l ApprovalLevel) RequiredRole() Role {
	switch l {
	case LevelHeadOfDepartment:
		return RoleHOD
	case LevelFinanceManager:
		return RoleFinanceManager
	case LevelProcurementOfficer:
		return RoleProcurementOfficer
	default:
		return RoleSuperAdmin
	}
}

type ApprovalDecision string

const (
	DecisionApproved ApprovalDecision = "approved"
	DecisionRejected ApprovalDecision = "rejected"
)

// ApprovalRecord is one approval or rejection decision. Records are never edited.
type ApprovalRecord struct {
	ApprovalID string           `json:"approvalID"`
	EntityType EntityType       `json:"entityType"`
	EntityID   string           `json:"entityID"`
	Level      ApprovalLevel    `json:"level"`
	Sequence   int              `json:"sequence"`
	ApproverID string           `json:"approverID"`
	Decision   ApprovalDecision `json:"decision"`
	Comments   string           `json:"comments,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}
