package memory

import (
	"context"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
)

type UserRepository struct {
	store *Store
}

func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) SaveUser(ctx context.Context, user domain.User) error {
	return insertRow(ctx, r.store, users, "user", user.UserID, user)
}

func (r *UserRepository) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	return findRow(ctx, r.store, users, "user", userID)
}

func (r *UserRepository) FindUsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	var out []domain.User
	_ = r.store.view(ctx, func(st *memoryState) error {
		for _, u := range st.users {
			if u.IsActive && u.HasRole(role) {
				out = append(out, u)
			}
		}
		return nil
	})
	return out, nil
}

type AuditLogRepository struct {
	store *Store
}

func NewAuditLogRepository(store *Store) *AuditLogRepository {
	return &AuditLogRepository{store: store}
}

func (r *AuditLogRepository) SaveAuditLog(ctx context.Context, entry domain.AuditLog) error {
	return r.store.update(ctx, func(st *memoryState) error {
		st.auditLogs = append(st.auditLogs, entry)
		return nil
	})
}

func (r *AuditLogRepository) ListAuditLogs(ctx context.Context, modelType, modelID string) ([]domain.AuditLog, error) {
	var out []domain.AuditLog
	_ = r.store.view(ctx, func(st *memoryState) error {
		for _, a := range st.auditLogs {
			if (modelType == "" || a.ModelType == modelType) && (modelID == "" || a.ModelID == modelID) {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, nil
}
