package utils

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/healthassess/secure-gateway/services"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes a 200 OK response with optional data
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Data: data})
}

// WriteCreated writes a 201 Created response with optional data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, SuccessResponse{Data: data})
}

// WriteNoContent writes a 204 No Content response
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteBadRequest writes a 400 Bad Request response with error details
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return WriteJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "bad_request",
		Message: message,
		Details: details,
	})
}

// WriteUnauthorized writes a 401 Unauthorized response. The message is
// always generic; which verification step failed is never disclosed.
func WriteUnauthorized(w http.ResponseWriter) error {
	return WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
		Error:   "unauthorized",
		Message: "Authentication required",
	})
}

// WriteForbidden writes a 403 Forbidden response
func WriteForbidden(w http.ResponseWriter, reason string) error {
	if reason == "" {
		reason = "forbidden"
	}
	return WriteJSON(w, http.StatusForbidden, ErrorResponse{
		Error:   reason,
		Message: "Access forbidden",
	})
}

// WriteNotFound writes a 404 Not Found response
func WriteNotFound(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Resource not found"
	}
	return WriteJSON(w, http.StatusNotFound, ErrorResponse{
		Error:   "not_found",
		Message: message,
	})
}

// WriteTooManyRequests writes a 429 Too Many Requests response. When
// retryAfter is positive a Retry-After header is attached.
func WriteTooManyRequests(w http.ResponseWriter, retryAfter int, details map[string]interface{}) error {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	}
	return WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{
		Error:   "rate_limit_exceeded",
		Message: "Rate limit exceeded",
		Details: details,
	})
}

// WriteInternalServerError writes a 500 Internal Server Error response.
// The body never carries internal detail.
func WriteInternalServerError(w http.ResponseWriter) error {
	return WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Internal server error",
	})
}

// WriteDomainError maps a typed service error onto the wire contract:
// stable reason codes, retry hints where relevant, no internal detail on
// credential, permission, or fail-closed failures.
func WriteDomainError(w http.ResponseWriter, err error) error {
	switch {
	case services.IsCredentialError(err):
		return WriteUnauthorized(w)

	case services.IsPermissionError(err):
		return WriteJSON(w, http.StatusForbidden, ErrorResponse{
			Error:   "insufficient_permission",
			Message: "Access forbidden",
		})

	case services.IsRateLimitError(err):
		details := services.GetErrorDetails(err)
		retryAfter := 0
		if v, ok := details["retry_after"].(int); ok {
			retryAfter = v
		}
		return WriteTooManyRequests(w, retryAfter, details)

	case services.IsThreatError(err):
		return WriteJSON(w, http.StatusForbidden, ErrorResponse{
			Error:   "threat_detected",
			Message: "Request blocked due to security policy",
			Details: services.GetErrorDetails(err),
		})

	case services.IsValidationError(err):
		return WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_failed",
			Message: "Invalid input detected",
			Details: services.GetErrorDetails(err),
		})

	// The login contract names its three failure modes; unlike credential
	// verification, these reasons are safe to disclose to the caller who
	// just supplied them.
	case services.GetErrorType(err) == services.ErrorTypeInvalidCredentials:
		return WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_credentials",
			Message: "Invalid credentials",
		})

	case services.GetErrorType(err) == services.ErrorTypeMFAInvalid:
		return WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "mfa_invalid",
			Message: "Invalid multi-factor code",
		})

	case services.GetErrorType(err) == services.ErrorTypeMFARequired:
		return WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "mfa_required",
			Message: "Multi-factor code required",
		})

	case services.GetErrorType(err) == services.ErrorTypeNotFound:
		return WriteNotFound(w, "")

	default:
		// EncryptionFailure, AuditWriteFailure, and anything internal all
		// collapse to an opaque 500.
		return WriteInternalServerError(w)
	}
}
