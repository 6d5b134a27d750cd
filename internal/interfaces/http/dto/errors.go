package dto

import (
	"net/http"

	"github.com/reseller/backend/internal/domain/shared"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationFailed is used when a domain invariant rejects input
	ErrCodeValidationFailed = "ERR_VALIDATION_FAILED"
)

// Access error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
)

// Resource error codes
const (
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeConcurrencyConflict is used when a product lock or a
	// serializable transaction loses a race
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Stock ledger error codes
const (
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeInsufficientStock is returned when a delivery cannot be
	// covered by lots and force was not set
	ErrCodeInsufficientStock = "ERR_INSUFFICIENT_STOCK"
	// ErrCodeStockAlreadyReallocated is returned when released units have
	// been consumed by later deliveries
	ErrCodeStockAlreadyReallocated = "ERR_STOCK_ALREADY_REALLOCATED"
	// ErrCodeLotBoundViolation is returned when out_quantity would leave
	// the range [0, quantity]
	ErrCodeLotBoundViolation = "ERR_LOT_BOUND_VIOLATION"
)

// Input error codes
const (
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:       http.StatusBadRequest,
	ErrCodeValidationFailed: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Stock conflicts -> 409 so clients can retry with force
	ErrCodeInvalidState:            http.StatusConflict,
	ErrCodeInsufficientStock:       http.StatusConflict,
	ErrCodeStockAlreadyReallocated: http.StatusConflict,
	ErrCodeLotBoundViolation:       http.StatusConflict,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	shared.CodeNotFound:                ErrCodeNotFound,
	shared.CodeInvalidInput:            ErrCodeInvalidInput,
	shared.CodeValidationFailed:        ErrCodeValidationFailed,
	shared.CodeConcurrencyConflict:     ErrCodeConcurrencyConflict,
	shared.CodeInvalidState:            ErrCodeInvalidState,
	shared.CodeInsufficientStock:       ErrCodeInsufficientStock,
	shared.CodeStockAlreadyReallocated: ErrCodeStockAlreadyReallocated,
	shared.CodeLotBoundViolation:       ErrCodeLotBoundViolation,
}

// NormalizeErrorCode converts a domain error code to its API form.
// Codes already in ERR_ form pass through; unknown codes become ERR_UNKNOWN.
func NormalizeErrorCode(code string) string {
	if _, ok := ErrorCodeHTTPStatus[code]; ok {
		return code
	}
	if mapped, ok := DomainErrorCodeMapping[code]; ok {
		return mapped
	}
	return ErrCodeUnknown
}
