// Package errors provides the relayer's domain error taxonomy.
// Configuration and validation errors stop a request before any chain work starts;
// per-chain failures never use these types and are reported inside results instead.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input was provided
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration indicates the relayer is not configured to serve the request
	ErrConfiguration = errors.New("configuration error")

	// ErrConflict indicates a conflict with work already in progress
	ErrConflict = errors.New("conflict")

	// ErrRateLimit indicates rate limit exceeded
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrServiceUnavailable indicates a dependency is temporarily unavailable
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Error codes surfaced in the HTTP envelope
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeMissingField       = "MISSING_FIELD"
	CodeInvalidAddress     = "INVALID_ADDRESS"
	CodeInvalidName        = "INVALID_NAME"
	CodeEmptyCoinTypes     = "EMPTY_COIN_TYPES"
	CodeUnsupportedCoins   = "UNSUPPORTED_COIN_TYPES"
	CodeSignatureExpired   = "SIGNATURE_EXPIRED"
	CodeInvalidSignature   = "INVALID_SIGNATURE"
	CodeMixedNetworks      = "MIXED_NETWORKS"
	CodeRelayerNotReady    = "RELAYER_NOT_CONFIGURED"
	CodeConflict           = "CONFLICT"
	CodeRateLimit          = "RATE_LIMIT_EXCEEDED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// DomainError represents a domain-specific error with additional context
type DomainError struct {
	Err       error
	Code      string
	Message   string
	Details   map[string]interface{}
	Retryable bool
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error
func (e *DomainError) WithDetails(details map[string]interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{}, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// IsRetryable returns true if the error is retryable
func (e *DomainError) IsRetryable() bool {
	return e.Retryable
}

// ValidationError creates a validation error for one field
func ValidationError(code, field, message string) *DomainError {
	de := &DomainError{
		Err:     ErrInvalidInput,
		Code:    code,
		Message: message,
	}
	if field != "" {
		de.Details = map[string]interface{}{"field": field}
	}
	return de
}

// ConfigurationError creates a configuration error
func ConfigurationError(message string) *DomainError {
	return &DomainError{
		Err:     ErrConfiguration,
		Code:    CodeRelayerNotReady,
		Message: message,
	}
}

// NotFoundError creates a not found error
func NotFoundError(resource string) *DomainError {
	return &DomainError{
		Err:     ErrNotFound,
		Code:    fmt.Sprintf("%s_NOT_FOUND", resource),
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// ConflictError creates a conflict error
func ConflictError(resource, reason string) *DomainError {
	return &DomainError{
		Err:     ErrConflict,
		Code:    CodeConflict,
		Message: fmt.Sprintf("conflict with %s: %s", resource, reason),
	}
}

// RateLimitError creates a rate limit error
func RateLimitError(scope string, retryAfterSeconds int) *DomainError {
	return &DomainError{
		Err:     ErrRateLimit,
		Code:    CodeRateLimit,
		Message: "rate limit exceeded",
		Details: map[string]interface{}{
			"scope":       scope,
			"retry_after": retryAfterSeconds,
		},
	}
}

// InternalError creates an internal error
func InternalError(message string, err error) *DomainError {
	de := &DomainError{
		Err:     ErrInternal,
		Code:    CodeInternal,
		Message: message,
	}
	if err != nil {
		de.Details = map[string]interface{}{"cause": err.Error()}
	}
	return de
}

// ServiceUnavailableError creates a service unavailable error
func ServiceUnavailableError(service string, err error) *DomainError {
	de := &DomainError{
		Err:       ErrServiceUnavailable,
		Code:      CodeServiceUnavailable,
		Message:   fmt.Sprintf("%s service is temporarily unavailable", service),
		Retryable: true,
	}
	if err != nil {
		de.Details = map[string]interface{}{"cause": err.Error()}
	}
	return de
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput checks if an error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsConfiguration checks if an error is a configuration error
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsRateLimit checks if an error is a rate limit error
func IsRateLimit(err error) bool {
	return errors.Is(err, ErrRateLimit)
}

// IsServiceUnavailable checks if an error is a service unavailable error
func IsServiceUnavailable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}

// GetErrorCode extracts the error code from a domain error
func GetErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "UNKNOWN_ERROR"
}

// GetErrorDetails extracts details from a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}
