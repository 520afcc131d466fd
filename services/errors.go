package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of a gateway failure
type ErrorType string

const (
	ErrorTypeMalformedCredential ErrorType = "malformed_credential"
	ErrorTypeInvalidSignature    ErrorType = "invalid_signature"
	ErrorTypeExpiredCredential   ErrorType = "expired_credential"
	ErrorTypeInvalidCredentials  ErrorType = "invalid_credentials"
	ErrorTypeMFARequired         ErrorType = "mfa_required"
	ErrorTypeMFAInvalid          ErrorType = "mfa_invalid"
	ErrorTypePermission          ErrorType = "insufficient_permission"
	ErrorTypeRateLimit           ErrorType = "rate_limited"
	ErrorTypeThreat              ErrorType = "threat_detected"
	ErrorTypeValidation          ErrorType = "validation_failed"
	ErrorTypeEncryption          ErrorType = "encryption_failure"
	ErrorTypeAuditWrite          ErrorType = "audit_write_failure"
	ErrorTypeNotFound            ErrorType = "not_found"
	ErrorTypeInternal            ErrorType = "internal"
)

// DomainError is a structured error carrying a stable reason code plus
// optional machine-readable details for the response body
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on error type so sentinel comparisons work through wrapping
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

var (
	// Credential verification failures. Malformed and bad-signature paths
	// must stay indistinguishable at the HTTP surface; the distinct types
	// exist for internal logging only.
	ErrMalformedCredential = NewDomainError(ErrorTypeMalformedCredential, "credential is malformed", nil)
	ErrInvalidSignature    = NewDomainError(ErrorTypeInvalidSignature, "credential signature is invalid", nil)
	ErrExpiredCredential   = NewDomainError(ErrorTypeExpiredCredential, "credential has expired", nil)

	// Login contract failures
	ErrInvalidCredentials = NewDomainError(ErrorTypeInvalidCredentials, "invalid credentials", nil)
	ErrMFARequired        = NewDomainError(ErrorTypeMFARequired, "mfa code required", nil)
	ErrMFAInvalid         = NewDomainError(ErrorTypeMFAInvalid, "invalid mfa code", nil)

	// Authorization / pipeline failures
	ErrInsufficientPermission = NewDomainError(ErrorTypePermission, "insufficient permissions", nil)
	ErrRateLimited            = NewDomainError(ErrorTypeRateLimit, "rate limit exceeded", nil)
	ErrThreatDetected         = NewDomainError(ErrorTypeThreat, "request blocked due to security policy", nil)
	ErrValidationFailed       = NewDomainError(ErrorTypeValidation, "invalid input detected", nil)

	// Fail-closed protection failures: the request dies rather than
	// proceeding without its confidentiality/compliance guarantees.
	ErrEncryptionFailure = NewDomainError(ErrorTypeEncryption, "encryption failure", nil)
	ErrAuditWriteFailure = NewDomainError(ErrorTypeAuditWrite, "audit write failure", nil)

	ErrPrincipalNotFound = NewDomainError(ErrorTypeNotFound, "principal not found", nil)
	ErrRecordNotFound    = NewDomainError(ErrorTypeNotFound, "record not found", nil)
	ErrInternal          = NewDomainError(ErrorTypeInternal, "internal error", nil)
)

// RateLimitedError builds a RateLimited error carrying the violated window
// and the retry hint in seconds
func RateLimitedError(window string, retryAfter int) *DomainError {
	return NewDomainError(ErrorTypeRateLimit, "rate limit exceeded", nil).
		WithDetail("window", window).
		WithDetail("retry_after", retryAfter)
}

// ThreatDetectedError builds a ThreatDetected error with category and severity
func ThreatDetectedError(category, severity string) *DomainError {
	return NewDomainError(ErrorTypeThreat, "request blocked due to security policy", nil).
		WithDetail("category", category).
		WithDetail("severity", severity)
}

// ValidationError builds a ValidationFailed error for one offending field
func ValidationError(field, violationType string) *DomainError {
	return NewDomainError(ErrorTypeValidation, "invalid input detected", nil).
		WithDetail("field", field).
		WithDetail("violation_type", violationType)
}

// GetErrorType returns the ErrorType of a domain error, or empty string otherwise
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil otherwise
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// IsCredentialError reports whether err is any of the three verify failures
func IsCredentialError(err error) bool {
	switch GetErrorType(err) {
	case ErrorTypeMalformedCredential, ErrorTypeInvalidSignature, ErrorTypeExpiredCredential:
		return true
	}
	return false
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	return GetErrorType(err) == ErrorTypeRateLimit
}

// IsThreatError checks if an error is a threat detection error
func IsThreatError(err error) bool {
	return GetErrorType(err) == ErrorTypeThreat
}

// IsPermissionError checks if an error is an authorization error
func IsPermissionError(err error) bool {
	return GetErrorType(err) == ErrorTypePermission
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsFailClosedError reports whether err must abort the request even though
// the protected operation itself may have succeeded
func IsFailClosedError(err error) bool {
	switch GetErrorType(err) {
	case ErrorTypeEncryption, ErrorTypeAuditWrite:
		return true
	}
	return false
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
