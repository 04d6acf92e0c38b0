package model

import "errors"

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON      = "INVALID_JSON"
	ErrCodeMissingField     = "MISSING_FIELD"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeAlreadyUsed      = "CODE_ALREADY_USED"
	ErrCodeItemNotInOrder   = "ITEM_NOT_IN_ORDER"
	ErrCodeCodeUnavailable  = "CODE_UNAVAILABLE"
	ErrCodeUnauthorised     = "UNAUTHORIZED"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrOrderNotFound   = NewDomainError(ErrCodeNotFound, "Invalid download code or order ID")
	ErrEmptyItems      = NewDomainError(ErrCodeValidation, "Order must contain at least one item")
	ErrInvalidEmail    = NewDomainError(ErrCodeValidation, "Buyer email is malformed")
	ErrInvalidItem     = NewDomainError(ErrCodeValidation, "Every item needs a unique image ID and an HQ URL")
	ErrInvalidTotal    = NewDomainError(ErrCodeValidation, "Order total must not be negative")
	ErrItemNotInOrder  = NewDomainError(ErrCodeItemNotInOrder, "Image is not part of this order")
	ErrCodeUsed        = NewDomainError(ErrCodeAlreadyUsed, "This download code has already been used")
	ErrCodeExhausted   = NewDomainError(ErrCodeCodeUnavailable, "Could not allocate a unique download code")
)

// IsValidation reports whether err is a ValidationError raised before any write.
func IsValidation(err error) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Code == ErrCodeValidation
}

// IsNotFound reports whether err means the order or code matched nothing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound)
}
