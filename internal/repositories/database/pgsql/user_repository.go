package pgsql

import (
	"context"
	"fmt"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
	"github.com/SscSPs/procure_to_pay/internal/models"
	"github.com/SscSPs/procure_to_pay/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgxUserRepository struct {
	BaseRepository
}

func newPgxUserRepository(pool *pgxpool.Pool) portsrepo.UserRepository {
	return &PgxUserRepository{BaseRepository: BaseRepository{Pool: pool}}
}

// Ensure PgxUserRepository implements portsrepo.UserRepository
var _ portsrepo.UserRepository = (*PgxUserRepository)(nil)

const userColumns = `user_id, name, email, department_id, roles, approval_limit, is_active,
	created_at, created_by, last_updated_at, last_updated_by, deleted_at`

func scanUser(row pgx.Row) (models.User, error) {
	var m models.User
	err := row.Scan(
		&m.UserID,
		&m.Name,
		&m.Email,
		&m.DepartmentID,
		&m.Roles,
		&m.ApprovalLimit,
		&m.IsActive,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.LastUpdatedAt,
		&m.LastUpdatedBy,
		&m.DeletedAt,
	)
	return m, err
}

func (r *PgxUserRepository) SaveUser(ctx context.Context, user domain.User) error {
	m := mapping.ToModelUser(user)
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
	`
	_, err := r.db(ctx).Exec(ctx, query,
		m.UserID,
		m.Name,
		m.Email,
		m.DepartmentID,
		m.Roles,
		m.ApprovalLimit,
		m.IsActive,
		m.CreatedAt,
		m.CreatedBy,
		m.LastUpdatedAt,
		m.LastUpdatedBy,
		m.DeletedAt,
	)
	if err != nil {
		return saveError(err, "user "+user.UserID)
	}
	return nil
}

func (r *PgxUserRepository) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1 AND deleted_at IS NULL;`
	m, err := scanUser(r.db(ctx).QueryRow(ctx, query, userID))
	if err != nil {
		return nil, findError(err, "user "+userID)
	}
	u := mapping.ToDomainUser(m)
	return &u, nil
}

func (r *PgxUserRepository) FindUsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE $1 = ANY(roles) AND is_active AND deleted_at IS NULL
		ORDER BY user_id;
	`
	rows, err := r.db(ctx).Query(ctx, query, string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to find users with role %s: %w", role, err)
	}
	defer rows.Close()

	var ms []models.User
	for rows.Next() {
		m, err := scanUser(rows)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan user", err)
		}
		ms = append(ms, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "failed to iterate users", err)
	}
	return mapping.ToDomainUserSlice(ms), nil
}

type PgxAuditLogRepository struct {
	BaseRepository
}

func newPgxAuditLogRepository(pool *pgxpool.Pool) portsrepo.AuditLogRepository {
	return &PgxAuditLogRepository{BaseRepository: BaseRepository{Pool: pool}}
}

func (r *PgxAuditLogRepository) SaveAuditLog(ctx context.Context, entry domain.AuditLog) error {
	m, err := mapping.ToModelAuditLog(entry)
	if err != nil {
		return fmt.Errorf("failed to encode audit metadata: %w", err)
	}
	query := `
		INSERT INTO audit_logs (audit_id, actor_id, action, status, model_type, model_id, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	_, err = r.db(ctx).Exec(ctx, query,
		m.AuditID, m.ActorID, m.Action, m.Status, m.ModelType, m.ModelID, m.Description, m.Metadata, m.CreatedAt)
	if err != nil {
		return saveError(err, "audit log "+m.AuditID)
	}
	return nil
}

// ListAuditLogs treats an empty modelType or modelID as a wildcard.
func (r *PgxAuditLogRepository) ListAuditLogs(ctx context.Context, modelType, modelID string) ([]domain.AuditLog, error) {
	query := `
		SELECT audit_id, actor_id, action, status, model_type, model_id, description, metadata, created_at
		FROM audit_logs
		WHERE ($1 = '' OR model_type = $1) AND ($2 = '' OR model_id = $2)
		ORDER BY created_at, audit_id;
	`
	rows, err := r.db(ctx).Query(ctx, query, modelType, modelID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list audit logs", err)
	}
	defer rows.Close()

	var out []domain.AuditLog
	for rows.Next() {
		var m models.AuditLog
		if err := rows.Scan(&m.AuditID, &m.ActorID, &m.Action, &m.Status, &m.ModelType,
			&m.ModelID, &m.Description, &m.Metadata, &m.CreatedAt); err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan audit log", err)
		}
		d, err := mapping.ToDomainAuditLog(m)
		if err != nil {
			return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
