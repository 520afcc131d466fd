package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthassess/secure-gateway/services"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestWriteOK(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteOK(w, map[string]string{"status": "healthy"}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp SuccessResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "healthy", data["status"])
}

func TestWriteDomainErrorCredentialFailuresIndistinguishable(t *testing.T) {
	bodies := make(map[string]string)
	for name, err := range map[string]error{
		"malformed": services.ErrMalformedCredential,
		"signature": services.ErrInvalidSignature,
		"expired":   services.ErrExpiredCredential,
	} {
		w := httptest.NewRecorder()
		require.NoError(t, WriteDomainError(w, err))
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
		bodies[name] = w.Body.String()
	}
	assert.Equal(t, bodies["malformed"], bodies["signature"])
	assert.Equal(t, bodies["signature"], bodies["expired"])
}

func TestWriteDomainErrorPermission(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteDomainError(w, services.ErrInsufficientPermission))

	assert.Equal(t, http.StatusForbidden, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "insufficient_permission", resp.Error)
	assert.Empty(t, resp.Details)
}

func TestWriteDomainErrorRateLimited(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteDomainError(w, services.RateLimitedError("minute", 60)))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	resp := decodeError(t, w)
	assert.Equal(t, "rate_limit_exceeded", resp.Error)
	assert.Equal(t, "minute", resp.Details["window"])
}

func TestWriteDomainErrorThreat(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteDomainError(w, services.ThreatDetectedError("sql_injection", "high")))

	assert.Equal(t, http.StatusForbidden, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "threat_detected", resp.Error)
	assert.Equal(t, "sql_injection", resp.Details["category"])
}

func TestWriteDomainErrorValidation(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteDomainError(w, services.ValidationError("age", "out_of_range")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "validation_failed", resp.Error)
	assert.Equal(t, "age", resp.Details["field"])
}

func TestWriteDomainErrorFailClosedIsOpaque(t *testing.T) {
	for name, err := range map[string]error{
		"encryption": services.ErrEncryptionFailure,
		"audit":      services.ErrAuditWriteFailure,
		"internal":   services.WrapInternal("boom", nil),
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, WriteDomainError(w, err))

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, "internal_error", resp.Error)
			assert.Empty(t, resp.Details)
			assert.NotContains(t, w.Body.String(), "boom")
		})
	}
}

func TestWriteDomainErrorLoginContractReasons(t *testing.T) {
	for reason, err := range map[string]error{
		"invalid_credentials": services.ErrInvalidCredentials,
		"mfa_required":        services.ErrMFARequired,
		"mfa_invalid":         services.ErrMFAInvalid,
	} {
		t.Run(reason, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, WriteDomainError(w, err))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, reason, decodeError(t, w).Error)
		})
	}
}

func TestWriteDomainErrorNotFound(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteDomainError(w, services.ErrRecordNotFound))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
