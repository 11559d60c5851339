package repositories

import (
	"context"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
)

// UserRepository defines persistence operations for users
type UserRepository interface {
	// SaveUser persists a new user.
	SaveUser(ctx context.Context, user domain.User) error

	// FindUserByID retrieves a user by their unique identifier.
	FindUserByID(ctx context.Context, userID string) (*domain.User, error)

	// FindUsersByRole returns active users holding role, used to address notifications.
	FindUsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
}

// AuditLogRepository is the storage behind the audit sink.
type AuditLogRepository interface {
	SaveAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, modelType, modelID string) ([]domain.AuditLog, error)
}
