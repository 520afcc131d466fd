package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/healthassess/secure-gateway/gateway"
	"github.com/healthassess/secure-gateway/middleware"
	"github.com/healthassess/secure-gateway/models"
	"github.com/healthassess/secure-gateway/services/privacy"
	"github.com/healthassess/secure-gateway/services/ratelimit"
	"github.com/healthassess/secure-gateway/services/rbac"
	"github.com/healthassess/secure-gateway/services/threat"
	"github.com/healthassess/secure-gateway/services/token"
)

type assessmentFixture struct {
	router     chi.Router
	tokens     *token.Service
	store      *AssessmentStore
	compliance *privacy.Compliance
}

func newAssessmentFixture(t *testing.T) *assessmentFixture {
	t.Helper()
	logger := zap.NewNop()

	registry := rbac.NewRegistry(rbac.DefaultPolicy())
	tokens := token.NewService(token.Config{Secret: []byte("unit-test-secret")}, registry, logger)
	limiter := ratelimit.NewService(ratelimit.NewMemoryStore(), models.DefaultRateLimitConfig(), logger)
	monitor := threat.NewMonitor(0, logger)
	compliance := privacy.NewCompliance(privacy.NewMemoryAuditStore(), logger)

	encryptor, err := privacy.NewEncryptor(filepath.Join(t.TempDir(), "key"), logger)
	require.NoError(t, err)

	gw := gateway.New(tokens, limiter, threat.NewScanner(), monitor, compliance, nil, logger)
	store := NewAssessmentStore()
	handler := NewAssessmentHandler(gw, store, encryptor, logger)

	router := chi.NewRouter()
	router.Post("/api/v1/assessments", handler.HandleCreate)
	router.Get("/api/v1/assessments", handler.HandleHistory)
	router.Get("/api/v1/assessments/{id}", handler.HandleGet)

	return &assessmentFixture{
		router:     router,
		tokens:     tokens,
		store:      store,
		compliance: compliance,
	}
}

func (f *assessmentFixture) accessToken(t *testing.T, role models.Role) (string, string) {
	t.Helper()
	principal := models.NewPrincipal("user@clinic.example", "user-"+string(role), role, "")
	pair, err := f.tokens.Issue(principal)
	require.NoError(t, err)
	return pair.AccessToken, principal.ID
}

func (f *assessmentFixture) do(t *testing.T, method, path, credential string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	req = req.WithContext(middleware.WithClientIP(req.Context(), "198.51.100.7"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func validAssessmentBody() map[string]interface{} {
	return map[string]interface{}{
		"symptoms": []string{"headache", "fever"},
		"severity": map[string]int{"headache": 6, "fever": 4},
		"age":      41,
		"gender":   "female",
	}
}

func TestCreateAssessment(t *testing.T) {
	f := newAssessmentFixture(t)
	credential, principalID := f.accessToken(t, models.RoleDoctor)

	rec := f.do(t, http.MethodPost, "/api/v1/assessments", credential, validAssessmentBody())

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.NotEmpty(t, data["assessment_id"])
	assert.InDelta(t, 0.5, data["risk_score"].(float64), 0.01)
	assert.Equal(t, "moderate", data["severity_level"])
	assert.Equal(t, true, data["encrypted"])

	// Security headers ride on the gateway success path.
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	// Stored input is sealed, not plaintext.
	stored := f.store.Find(data["assessment_id"].(string))
	require.NotNil(t, stored)
	assert.Equal(t, principalID, stored.PrincipalID)
	assert.NotEmpty(t, stored.EncryptedInput)
	assert.NotContains(t, stored.EncryptedInput, "headache")

	entries, err := f.compliance.Trail(context.Background(), privacy.TrailFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Success)
	assert.Equal(t, "create_assessment", entries[0].Action)
}

func TestCreateAssessmentBlocksInjection(t *testing.T) {
	f := newAssessmentFixture(t)
	credential, _ := f.accessToken(t, models.RoleDoctor)

	body := validAssessmentBody()
	body["symptoms"] = []string{"headache UNION SELECT * FROM patients"}

	rec := f.do(t, http.MethodPost, "/api/v1/assessments", credential, body)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "threat_detected", decodeBody(t, rec)["error"])

	// Blocked classified access is still audited, as a failure.
	entries, err := f.compliance.Trail(context.Background(), privacy.TrailFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
}

func TestCreateAssessmentValidation(t *testing.T) {
	f := newAssessmentFixture(t)
	credential, _ := f.accessToken(t, models.RoleDoctor)

	body := validAssessmentBody()
	delete(body, "age")

	rec := f.do(t, http.MethodPost, "/api/v1/assessments", credential, body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decodeBody(t, rec)["error"])
}

func TestCreateAssessmentRequiresWritePermission(t *testing.T) {
	f := newAssessmentFixture(t)
	credential, _ := f.accessToken(t, models.RoleViewer)

	rec := f.do(t, http.MethodPost, "/api/v1/assessments", credential, validAssessmentBody())

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "insufficient_permission", decodeBody(t, rec)["error"])
}

func TestCreateAssessmentRequiresCredential(t *testing.T) {
	f := newAssessmentFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/assessments", "", validAssessmentBody())

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetAssessmentNotFound(t *testing.T) {
	f := newAssessmentFixture(t)
	credential, _ := f.accessToken(t, models.RoleDoctor)

	rec := f.do(t, http.MethodGet, "/api/v1/assessments/missing-id", credential, nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAssessmentOwnershipGuard(t *testing.T) {
	f := newAssessmentFixture(t)
	doctorCred, _ := f.accessToken(t, models.RoleDoctor)

	rec := f.do(t, http.MethodPost, "/api/v1/assessments", doctorCred, validAssessmentBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody(t, rec)["data"].(map[string]interface{})["assessment_id"].(string)

	// A different patient cannot read it.
	patientCred, _ := f.accessToken(t, models.RolePatient)
	rec = f.do(t, http.MethodGet, "/api/v1/assessments/"+id, patientCred, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// A second doctor can, via the patient-data permission.
	otherDoctorCred, _ := f.accessToken(t, models.RoleDoctor)
	rec = f.do(t, http.MethodGet, "/api/v1/assessments/"+id, otherDoctorCred, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHistoryReturnsOwnRecordsOnly(t *testing.T) {
	f := newAssessmentFixture(t)
	credA, _ := f.accessToken(t, models.RoleDoctor)
	credB, _ := f.accessToken(t, models.RoleDoctor)

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/assessments", credA, validAssessmentBody()).Code)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/assessments", credA, validAssessmentBody()).Code)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/assessments", credB, validAssessmentBody()).Code)

	rec := f.do(t, http.MethodGet, "/api/v1/assessments", credA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["count"])
}

func TestScoreAssessment(t *testing.T) {
	result := ScoreAssessment(&models.AssessmentRequest{
		Symptoms: []string{"chest pain"},
		Severity: map[string]int{"chest pain": 9},
		Age:      58,
		Gender:   "male",
	})
	assert.Equal(t, "high", result.SeverityLevel)
	assert.InDelta(t, 0.9, result.RiskScore, 0.001)
	assert.NotEmpty(t, result.Recommendations)

	mild := ScoreAssessment(&models.AssessmentRequest{
		Symptoms: []string{"sniffles"},
		Severity: map[string]int{"sniffles": 2},
		Age:      30,
		Gender:   "female",
	})
	assert.Equal(t, "low", mild.SeverityLevel)
}
