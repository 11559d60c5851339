package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/procure_to_pay/internal/core/ports/services"
	"github.com/SscSPs/procure_to_pay/internal/middleware"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/SscSPs/procure_to_pay/internal/core/services")

// BaseService provides common functionality for all services
type BaseService struct {
	TxManager portsrepo.TransactionManager
	Audit     portssvc.AuditSink
	Notifier  portssvc.Notifier
	Clock     func() time.Time
}

// GetLogger gets the logger from context or returns a default one
func (s *BaseService) GetLogger(ctx context.Context) *slog.Logger {
	return middleware.GetLoggerFromCtx(ctx)
}

// LogError logs an error with consistent formatting
func (s *BaseService) LogError(ctx context.Context, err error, msg string, keyvals ...any) {
	logger := s.GetLogger(ctx)
	args := make([]any, 0, len(keyvals)+2)
	args = append(args, slog.String("error", err.Error()))
	args = append(args, keyvals...)
	logger.Error(msg, args...)
}

// LogInfo logs an info message with consistent formatting
func (s *BaseService) LogInfo(ctx context.Context, msg string, keyvals ...any) {
	logger := s.GetLogger(ctx)
	logger.Info(msg, keyvals...)
}

// LogDebug logs a debug message with consistent formatting
func (s *BaseService) LogDebug(ctx context.Context, msg string, keyvals ...any) {
	logger := s.GetLogger(ctx)
	logger.Debug(msg, keyvals...)
}

func (s *BaseService) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

// startSpan opens a span for one service operation.
func (s *BaseService) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on span and closes it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// recordAudit queues an audit entry to be written once the current transaction commits.
func (s *BaseService) recordAudit(ctx context.Context, entry domain.AuditLog) {
	if s.Audit == nil {
		return
	}
	if entry.Status == "" {
		entry.Status = domain.AuditSuccess
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	s.TxManager.AfterCommit(ctx, func(ctx context.Context) {
		s.Audit.Log(ctx, entry)
	})
}

// notifyAfterCommit resolves recipients and dispatches once the current transaction commits.
func (s *BaseService) notifyAfterCommit(ctx context.Context, recipients func(ctx context.Context) ([]string, error), n domain.Notification) {
	if s.Notifier == nil {
		return
	}
	s.TxManager.AfterCommit(ctx, func(ctx context.Context) {
		if recipients != nil {
			ids, err := recipients(ctx)
			if err != nil {
				s.GetLogger(ctx).Warn("Failed to resolve notification recipients",
					slog.String("type", string(n.Type)), slog.String("error", err.Error()))
				return
			}
			n.Recipients = append(n.Recipients, ids...)
		}
		s.Notifier.Notify(ctx, n)
	})
}

// usersWithRole returns a recipient resolver for every active user holding role,
// narrowed to departmentID when it is set.
func usersWithRole(users portsrepo.UserRepository, role domain.Role, departmentID string) func(ctx context.Context) ([]string, error) {
	return func(ctx context.Context) ([]string, error) {
		found, err := users.FindUsersByRole(ctx, role)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(found))
		for _, u := range found {
			if departmentID == "" || u.DepartmentID == departmentID {
				ids = append(ids, u.UserID)
			}
		}
		return ids, nil
	}
}

// loadActor resolves the acting user. Unknown or inactive users are not authorized.
func loadActor(ctx context.Context, users portsrepo.UserRepository, actorID string) (*domain.User, error) {
	if actorID == "" {
		return nil, apperrors.NewValidationError("actorID", "acting user is required")
	}
	user, err := users.FindUserByID(ctx, actorID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, &apperrors.AuthorizationError{UserID: actorID, Reason: "unknown user"}
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, &apperrors.AuthorizationError{UserID: actorID, Reason: "user is inactive"}
	}
	return user, nil
}

// requireAnyRole fails unless user holds one of roles. Super admins always pass.
func requireAnyRole(user *domain.User, action string, roles ...domain.Role) error {
	if user.IsSuperAdmin() {
		return nil
	}
	for _, r := range roles {
		if user.HasRole(r) {
			return nil
		}
	}
	return &apperrors.AuthorizationError{
		UserID: user.UserID,
		Reason: fmt.Sprintf("%s requires one of the roles %v", action, roles),
	}
}

// validateAmount enforces non-negative currency amounts with at most two decimal places.
func validateAmount(field string, amount decimal.Decimal, positive bool) error {
	if amount.IsNegative() {
		return apperrors.NewValidationError(field, "must not be negative")
	}
	if positive && amount.IsZero() {
		return apperrors.NewValidationError(field, "must be greater than zero")
	}
	if !amount.Equal(amount.Round(2)) {
		return apperrors.NewValidationError(field, "must have at most 2 decimal places")
	}
	return nil
}
