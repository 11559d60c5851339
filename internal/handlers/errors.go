package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/middleware"
	"github.com/gin-gonic/gin"
)

// statusFor maps core errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrForbidden),
		errors.Is(err, apperrors.ErrSegregationOfDuties),
		errors.Is(err, apperrors.ErrConflictOfInterest):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrDuplicate),
		errors.Is(err, apperrors.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrInsufficientFunds),
		errors.Is(err, apperrors.ErrMinimumQuotes):
		return http.StatusUnprocessableEntity
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code >= 400 && appErr.Code < 500 {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// respondError writes err as a JSON error body. Server errors are logged and masked with msg.
func respondError(c *gin.Context, err error, msg string) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(msg, slog.String("error", err.Error()))
		c.JSON(status, gin.H{"error": msg})
		return
	}
	logger.Warn(msg, slog.Int("status", status), slog.String("error", err.Error()))
	c.JSON(status, gin.H{"error": err.Error()})
}

// actingUser returns the authenticated user or writes 401.
func actingUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		middleware.GetLoggerFromCtx(c.Request.Context()).Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}
	return userID, true
}

// bindJSON binds the request body or writes 400.
func bindJSON(c *gin.Context, req any) bool {
	registerValidators()
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.GetLoggerFromCtx(c.Request.Context()).Warn("Failed to bind JSON", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return false
	}
	return true
}

// bindOptionalJSON binds the body when one was sent. Decision endpoints accept an empty body.
func bindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, req)
}
