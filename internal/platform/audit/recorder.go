// Package audit is the audit sink backed by the audit log repository.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
	"github.com/SscSPs/procure_to_pay/internal/middleware"
	"github.com/google/uuid"
)

// Recorder persists audit entries. A failed write is logged and dropped.
type Recorder struct {
	repo portsrepo.AuditLogRepository
	now  func() time.Time
}

func NewRecorder(repo portsrepo.AuditLogRepository) *Recorder {
	return &Recorder{repo: repo, now: time.Now}
}

func (r *Recorder) Log(ctx context.Context, entry domain.AuditLog) {
	if entry.AuditID == "" {
		entry.AuditID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}
	if entry.Status == "" {
		entry.Status = domain.AuditSuccess
	}

	if err := r.repo.SaveAuditLog(ctx, entry); err != nil {
		middleware.GetLoggerFromCtx(ctx).Warn("Failed to write audit log (non-fatal)",
			slog.String("action", entry.Action),
			slog.String("model_type", entry.ModelType),
			slog.String("model_id", entry.ModelID),
			slog.String("error", err.Error()),
		)
	}
}
