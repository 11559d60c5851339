package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperrors.NewValidationError("amount", "must be positive"), http.StatusBadRequest},
		{"authority", &apperrors.AuthorizationError{UserID: "u1", Reason: "missing role"}, http.StatusForbidden},
		{"segregation", &apperrors.SegregationOfDutiesViolation{UserID: "u1"}, http.StatusForbidden},
		{"conflict of interest", &apperrors.ConflictOfInterestError{EvaluatorID: "u1"}, http.StatusForbidden},
		{"not found", fmt.Errorf("budget line b1: %w", apperrors.ErrNotFound), http.StatusNotFound},
		{"duplicate", fmt.Errorf("bid: %w", apperrors.ErrDuplicate), http.StatusConflict},
		{"transition", &apperrors.InvalidTransitionError{Attempted: "approve"}, http.StatusConflict},
		{"funds", &apperrors.InsufficientFundsError{Available: decimal.Zero, Requested: decimal.NewFromInt(1)}, http.StatusUnprocessableEntity},
		{"quotes", &apperrors.MinimumQuotesError{Required: 3, Actual: 1}, http.StatusUnprocessableEntity},
		{"app error client code", apperrors.NewAppError(http.StatusTooManyRequests, "slow down", nil), http.StatusTooManyRequests},
		{"app error server code", apperrors.NewAppError(500, "db down", errors.New("boom")), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
