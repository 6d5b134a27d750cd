package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so that errors.Is works against the
// shared sentinels even when details were attached to a copy.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithDetails returns a copy of the error carrying the given details
func (e *DomainError) WithDetails(details map[string]any) *DomainError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: merged,
	}
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes
const (
	CodeNotFound                = "NOT_FOUND"
	CodeInvalidInput            = "INVALID_INPUT"
	CodeValidationFailed        = "VALIDATION_FAILED"
	CodeConcurrencyConflict     = "CONCURRENCY_CONFLICT"
	CodeInvalidState            = "INVALID_STATE"
	CodeInsufficientStock       = "INSUFFICIENT_STOCK"
	CodeStockAlreadyReallocated = "STOCK_ALREADY_REALLOCATED"
	CodeLotBoundViolation       = "LOT_BOUND_VIOLATION"
)

// Common domain errors
var (
	ErrNotFound                = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput            = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrValidationFailed        = NewDomainError(CodeValidationFailed, "Validation failed")
	ErrConcurrencyConflict     = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrInvalidState            = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrInsufficientStock       = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrStockAlreadyReallocated = NewDomainError(CodeStockAlreadyReallocated, "Cannot revert stock: already reallocated")
	ErrLotBoundViolation       = NewDomainError(CodeLotBoundViolation, "Lot out quantity must stay within 0 and quantity")
)

// AsDomainError extracts a *DomainError from err, if any
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
