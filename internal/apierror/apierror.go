// internal/apierror/apierror.go
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	// Transition errors: the primary defense against double-processing.
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrDuplicateRecord   ErrorCode = "DUPLICATE_RECORD"
	ErrAlreadyPaid       ErrorCode = "ALREADY_PAID"
	ErrAmountMismatch    ErrorCode = "AMOUNT_MISMATCH"
	ErrInvalidState      ErrorCode = "INVALID_STATE"

	// Validation errors: bad input, state unchanged.
	ErrMissingProof        ErrorCode = "MISSING_PROOF"
	ErrInvalidRate         ErrorCode = "INVALID_RATE"
	ErrInvalidPrice        ErrorCode = "INVALID_PRICE"
	ErrPayoutBelowMinimum  ErrorCode = "PAYOUT_BELOW_MINIMUM"
	ErrValidation          ErrorCode = "VALIDATION_ERROR"
	ErrProductNotActive    ErrorCode = "PRODUCT_NOT_ACTIVE"
	ErrSelfPurchase        ErrorCode = "SELF_PURCHASE"

	// Authorization.
	ErrForbidden ErrorCode = "FORBIDDEN"

	// Lookup and infrastructure.
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"

	// Consistency errors indicate a bug, never auto-corrected.
	ErrInvariantViolation ErrorCode = "INVARIANT_VIOLATION"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code ErrorCode, message string) APIError {
	return APIError{Code: code, Message: message}
}

func NewWithDetails(code ErrorCode, message string, details interface{}) APIError {
	return APIError{Code: code, Message: message, Details: details}
}

// Is lets callers match against sentinel codes with errors.Is by comparing
// codes only.
func (e APIError) Is(target error) bool {
	var other APIError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// CodeOf extracts the error code, or ErrInternalServer for untyped errors.
func CodeOf(err error) ErrorCode {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ErrInternalServer
}

func MapErrorToHTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrForbidden:
		return http.StatusForbidden
	case ErrInvalidTransition, ErrDuplicateRecord, ErrAlreadyPaid,
		ErrInvalidState, ErrProductNotActive:
		return http.StatusConflict
	case ErrAmountMismatch, ErrMissingProof, ErrInvalidRate, ErrInvalidPrice,
		ErrPayoutBelowMinimum, ErrValidation, ErrSelfPurchase:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
