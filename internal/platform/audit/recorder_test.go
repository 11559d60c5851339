package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockAuditLogRepository struct {
	mock.Mock
}

func (m *MockAuditLogRepository) SaveAuditLog(ctx context.Context, entry domain.AuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditLogRepository) ListAuditLogs(ctx context.Context, modelType, modelID string) ([]domain.AuditLog, error) {
	args := m.Called(ctx, modelType, modelID)
	return args.Get(0).([]domain.AuditLog), args.Error(1)
}

func TestRecorder_FillsDefaults(t *testing.T) {
	repo := new(MockAuditLogRepository)
	repo.On("SaveAuditLog", mock.Anything, mock.MatchedBy(func(e domain.AuditLog) bool {
		return e.AuditID != "" && !e.CreatedAt.IsZero() && e.Status == domain.AuditSuccess && e.Action == "budget.commit"
	})).Return(nil).Once()

	NewRecorder(repo).Log(context.Background(), domain.AuditLog{Action: "budget.commit", ModelType: "budget_line", ModelID: "BL-1"})

	repo.AssertExpectations(t)
}

func TestRecorder_SwallowsStorageErrors(t *testing.T) {
	repo := new(MockAuditLogRepository)
	repo.On("SaveAuditLog", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()

	assert.NotPanics(t, func() {
		NewRecorder(repo).Log(context.Background(), domain.AuditLog{Action: "payment.process"})
	})
	repo.AssertExpectations(t)
}
