package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/procure_to_pay/internal/core/ports/services"
	"github.com/SscSPs/procure_to_pay/internal/dto"
	"github.com/google/uuid"
)

type userService struct {
	BaseService
	userRepo portsrepo.UserRepository
}

func NewUserService(base BaseService, userRepo portsrepo.UserRepository) portssvc.UserSvc {
	return &userService{BaseService: base, userRepo: userRepo}
}

var _ portssvc.UserSvc = (*userService)(nil)

// CreateUser registers a user. Only super admins may create users.
func (s *userService) CreateUser(ctx context.Context, req dto.CreateUserRequest, creatorUserID string) (*domain.User, error) {
	creator, err := loadActor(ctx, s.userRepo, creatorUserID)
	if err != nil {
		return nil, err
	}
	if !creator.IsSuperAdmin() {
		return nil, &apperrors.AuthorizationError{UserID: creatorUserID, Reason: "only super admins may create users"}
	}
	return s.createUser(ctx, req, creatorUserID)
}

// BootstrapAdmin creates the first super admin without an acting user.
func BootstrapAdmin(ctx context.Context, base BaseService, userRepo portsrepo.UserRepository, req dto.CreateUserRequest) (*domain.User, error) {
	s := &userService{BaseService: base, userRepo: userRepo}
	req.Roles = append(req.Roles, string(domain.RoleSuperAdmin))
	return s.createUser(ctx, req, "system")
}

func (s *userService) createUser(ctx context.Context, req dto.CreateUserRequest, creatorUserID string) (*domain.User, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperrors.NewValidationError("name", "is required")
	}
	if err := validateAmount("approvalLimit", req.ApprovalLimit, false); err != nil {
		return nil, err
	}
	roles := make([]domain.Role, 0, len(req.Roles))
	seen := map[domain.Role]bool{}
	for _, r := range req.Roles {
		role := domain.Role(r)
		switch role {
		case domain.RoleStaff, domain.RoleHOD, domain.RoleFinanceManager, domain.RoleProcurementOfficer,
			domain.RoleAccountant, domain.RoleEvaluator, domain.RoleSuperAdmin:
		default:
			return nil, apperrors.NewValidationError("roles", fmt.Sprintf("unknown role %q", r))
		}
		if !seen[role] {
			seen[role] = true
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		return nil, apperrors.NewValidationError("roles", "at least one role is required")
	}

	now := s.now()
	user := domain.User{
		UserID:        uuid.NewString(),
		Name:          req.Name,
		Email:         req.Email,
		DepartmentID:  req.DepartmentID,
		Roles:         roles,
		ApprovalLimit: req.ApprovalLimit,
		IsActive:      true,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     creatorUserID,
			LastUpdatedAt: now,
			LastUpdatedBy: creatorUserID,
		},
	}

	err := s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.userRepo.SaveUser(ctx, user); err != nil {
			return err
		}
		s.recordAudit(ctx, domain.AuditLog{
			ActorID:     creatorUserID,
			Action:      "user.create",
			ModelType:   "user",
			ModelID:     user.UserID,
			Description: user.Name,
			Metadata:    map[string]any{"roles": req.Roles},
		})
		return nil
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to create user", slog.String("email", req.Email))
		return nil, fmt.Errorf("failed to create user in service: %w", err)
	}
	return &user, nil
}

func (s *userService) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID in service: %w", err)
	}
	return user, nil
}
