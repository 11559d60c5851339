package apperrors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrInternal indicates an unexpected failure inside the application.
var ErrInternal = errors.New("internal error")

// ErrForbidden indicates that the actor is not allowed to perform the operation.
var ErrForbidden = errors.New("forbidden")

var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrSegregationOfDuties = errors.New("segregation of duties violation")
	ErrConflictOfInterest  = errors.New("conflict of interest")
	ErrMinimumQuotes       = errors.New("minimum quotes not met")
)

// AppError carries an HTTP-ish status code alongside a wrapped cause.
type AppError struct {
	Code    int
	Message string
	Err     error
}

// NewAppError creates a new AppError.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// ValidationError reports malformed input on a named field.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientFundsError is returned when a budget line cannot cover the requested amount.
type InsufficientFundsError struct {
	BudgetLineID string
	Available    decimal.Decimal
	Requested    decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s: budget line %s has %s available, %s requested",
		ErrInsufficientFunds, e.BudgetLineID, e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// InvalidTransitionError is returned when a workflow has no edge for the requested move.
type InvalidTransitionError struct {
	Workflow     string
	EntityType   string
	EntityID     string
	CurrentState string
	Attempted    string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: %s cannot apply %q to %s %s in state %q",
		ErrInvalidTransition, e.Workflow, e.Attempted, e.EntityType, e.EntityID, e.CurrentState)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// AuthorizationError is returned when an approver lacks the role or the limit for an amount.
type AuthorizationError struct {
	UserID string
	Reason string
	Limit  *decimal.Decimal
	Amount *decimal.Decimal
}

func (e *AuthorizationError) Error() string {
	if e.Limit != nil && e.Amount != nil {
		return fmt.Sprintf("%s: user %s approval limit %s is below amount %s",
			ErrForbidden, e.UserID, e.Limit.StringFixed(2), e.Amount.StringFixed(2))
	}
	return fmt.Sprintf("%s: user %s: %s", ErrForbidden, e.UserID, e.Reason)
}

func (e *AuthorizationError) Unwrap() error { return ErrForbidden }

// SegregationOfDutiesViolation names the two roles one actor tried to hold.
type SegregationOfDutiesViolation struct {
	EntityType    string
	EntityID      string
	UserID        string
	Role          string
	ConflictsWith string
}

func (e *SegregationOfDutiesViolation) Error() string {
	return fmt.Sprintf("%s: user %s cannot act as %s on %s %s because they are also %s",
		ErrSegregationOfDuties, e.UserID, e.Role, e.EntityType, e.EntityID, e.ConflictsWith)
}

func (e *SegregationOfDutiesViolation) Unwrap() error { return ErrSegregationOfDuties }

// ConflictOfInterestError names the process or supplier the evaluator declared a conflict with.
type ConflictOfInterestError struct {
	EvaluatorID string
	ProcessID   string
	SupplierIDs []string
}

func (e *ConflictOfInterestError) Error() string {
	if len(e.SupplierIDs) == 0 {
		return fmt.Sprintf("%s: evaluator %s declared a conflict with procurement process %s",
			ErrConflictOfInterest, e.EvaluatorID, e.ProcessID)
	}
	return fmt.Sprintf("%s: evaluator %s declared a conflict with supplier(s) %s bidding in process %s",
		ErrConflictOfInterest, e.EvaluatorID, strings.Join(e.SupplierIDs, ", "), e.ProcessID)
}

func (e *ConflictOfInterestError) Unwrap() error { return ErrConflictOfInterest }

// MinimumQuotesError is the count-deficiency error for bid evaluation.
type MinimumQuotesError struct {
	ProcessID string
	Band      string
	Required  int
	Actual    int
}

func (e *MinimumQuotesError) Error() string {
	return fmt.Sprintf("%s: process %s in cash band %s requires %d quotes, %d received",
		ErrMinimumQuotes, e.ProcessID, e.Band, e.Required, e.Actual)
}

func (e *MinimumQuotesError) Unwrap() error { return ErrMinimumQuotes }

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
