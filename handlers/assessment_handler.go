package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/healthassess/secure-gateway/gateway"
	"github.com/healthassess/secure-gateway/middleware"
	"github.com/healthassess/secure-gateway/models"
	"github.com/healthassess/secure-gateway/services"
	"github.com/healthassess/secure-gateway/services/privacy"
	"github.com/healthassess/secure-gateway/services/token"
	"github.com/healthassess/secure-gateway/utils"
)

// StoredAssessment is one completed assessment at rest. The submitted input
// is encrypted before it is stored; only the derived result stays plaintext.
type StoredAssessment struct {
	ID             string
	PrincipalID    string
	Result         models.AssessmentResult
	EncryptedInput string
	CreatedAt      time.Time
}

// AssessmentStore keeps completed assessments in memory, newest first per
// principal.
type AssessmentStore struct {
	mu          sync.RWMutex
	byID        map[string]*StoredAssessment
	byPrincipal map[string][]string
}

// NewAssessmentStore creates an empty AssessmentStore.
func NewAssessmentStore() *AssessmentStore {
	return &AssessmentStore{
		byID:        make(map[string]*StoredAssessment),
		byPrincipal: make(map[string][]string),
	}
}

// Save stores the assessment.
func (s *AssessmentStore) Save(rec *StoredAssessment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[rec.ID] = rec
	s.byPrincipal[rec.PrincipalID] = append(s.byPrincipal[rec.PrincipalID], rec.ID)
}

// Find returns the assessment by id, nil when absent.
func (s *AssessmentStore) Find(id string) *StoredAssessment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[id]
}

// All returns every stored assessment in unspecified order.
func (s *AssessmentStore) All() []*StoredAssessment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*StoredAssessment, 0, len(s.byID))
	for _, rec := range s.byID {
		out = append(out, rec)
	}
	return out
}

// History returns the principal's assessments, newest first.
func (s *AssessmentStore) History(principalID string) []*StoredAssessment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byPrincipal[principalID]
	out := make([]*StoredAssessment, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// AssessmentHandler serves the assessment endpoints. Every request runs
// through the gateway pipeline so threat scanning, rate limiting, permission
// checks and audit logging apply uniformly.
type AssessmentHandler struct {
	gw        *gateway.Gateway
	store     *AssessmentStore
	encryptor *privacy.Encryptor
	logger    *zap.Logger
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(gw *gateway.Gateway, store *AssessmentStore, encryptor *privacy.Encryptor, logger *zap.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		gw:        gw,
		store:     store,
		encryptor: encryptor,
		logger:    logger,
	}
}

// HandleCreate handles POST /api/v1/assessments.
func (h *AssessmentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		_ = utils.WriteBadRequest(w, "invalid request body", nil)
		return
	}

	var input models.AssessmentRequest
	req := h.gatewayRequest(r, payload)
	req.RequiredPermission = models.PermWriteAssessments
	req.WriteOperation = true
	req.ResourceClass = "assessment_data"
	req.Action = "create_assessment"
	req.Purpose = "health_assessment"
	req.ValidateInput = func() error {
		raw, err := json.Marshal(payload)
		if err != nil {
			return services.ValidationError("body", "malformed")
		}
		if err := json.Unmarshal(raw, &input); err != nil {
			return services.ValidationError("body", "malformed")
		}
		return utils.ValidateStruct(input)
	}
	req.Dispatch = func(ctx context.Context, claims *token.Claims, _ *gateway.Request) (interface{}, error) {
		return h.createAssessment(claims, &input, payload)
	}

	h.respond(w, r, req, http.StatusCreated)
}

// HandleGet handles GET /api/v1/assessments/{id}.
func (h *AssessmentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	assessmentID := chi.URLParam(r, "id")

	req := h.gatewayRequest(r, nil)
	req.RequiredPermission = models.PermReadAssessments
	req.ResourceClass = "assessment_data"
	req.Action = "read_assessment"
	req.Purpose = "treatment"
	req.Dispatch = func(ctx context.Context, claims *token.Claims, _ *gateway.Request) (interface{}, error) {
		rec := h.store.Find(assessmentID)
		if rec == nil {
			return nil, services.ErrRecordNotFound
		}
		if rec.PrincipalID != claims.Subject && !claims.HasPermission(models.PermPatientData) {
			return nil, services.ErrInsufficientPermission
		}
		return rec.Result, nil
	}

	h.respond(w, r, req, http.StatusOK)
}

// HandleHistory handles GET /api/v1/assessments.
// Returns the caller's own assessment history.
func (h *AssessmentHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	req := h.gatewayRequest(r, nil)
	req.RequiredPermission = models.PermReadAssessments
	req.ResourceClass = "assessment_data"
	req.Action = "list_assessments"
	req.Purpose = "treatment"
	req.Dispatch = func(ctx context.Context, claims *token.Claims, _ *gateway.Request) (interface{}, error) {
		records := h.store.History(claims.Subject)
		results := make([]models.AssessmentResult, 0, len(records))
		for _, rec := range records {
			results = append(results, rec.Result)
		}
		return map[string]interface{}{
			"assessments": results,
			"count":       len(results),
		}, nil
	}

	h.respond(w, r, req, http.StatusOK)
}

func (h *AssessmentHandler) gatewayRequest(r *http.Request, payload interface{}) *gateway.Request {
	return &gateway.Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		SourceIP:   middleware.GetClientIPFromContext(r.Context()),
		UserAgent:  r.UserAgent(),
		Credential: middleware.ExtractBearerCredential(r),
		Payload:    payload,
		Protected:  true,
	}
}

func (h *AssessmentHandler) respond(w http.ResponseWriter, r *http.Request, req *gateway.Request, successStatus int) {
	res := h.gw.Execute(r.Context(), req)
	for k, v := range res.Headers {
		w.Header().Set(k, v)
	}
	if res.Err != nil {
		_ = utils.WriteDomainError(w, res.Err)
		return
	}
	_ = utils.WriteJSON(w, successStatus, utils.SuccessResponse{Data: res.Output})
}

// createAssessment scores the input, encrypts the submitted payload and
// stores the record.
func (h *AssessmentHandler) createAssessment(claims *token.Claims, input *models.AssessmentRequest, payload map[string]interface{}) (interface{}, error) {
	result := ScoreAssessment(input)

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, services.WrapInternal("serialize assessment input", err)
	}
	sealed, err := h.encryptor.Encrypt(string(raw))
	if err != nil {
		return nil, err
	}
	result.Encrypted = true

	rec := &StoredAssessment{
		ID:             result.AssessmentID,
		PrincipalID:    claims.Subject,
		Result:         result,
		EncryptedInput: sealed,
		CreatedAt:      result.Timestamp,
	}
	h.store.Save(rec)

	h.logger.Info("assessment stored",
		zap.String("assessment_id", rec.ID),
		zap.String("principal_id", claims.Subject),
		zap.String("severity_level", result.SeverityLevel))
	return result, nil
}

// ScoreAssessment is a deterministic placeholder for the risk-scoring
// collaborator. The score is the mean reported severity normalized to [0,1],
// nudged upward for long symptom lists.
func ScoreAssessment(input *models.AssessmentRequest) models.AssessmentResult {
	total := 0
	for _, v := range input.Severity {
		total += v
	}
	score := 0.0
	if len(input.Severity) > 0 {
		score = float64(total) / float64(len(input.Severity)) / 10.0
	}
	if len(input.Symptoms) > 5 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}

	level := "low"
	recommendations := []string{"Monitor symptoms and rest"}
	switch {
	case score >= 0.7:
		level = "high"
		recommendations = []string{"Seek medical attention promptly", "Do not delay if symptoms worsen"}
	case score >= 0.4:
		level = "moderate"
		recommendations = []string{"Schedule an appointment with your provider", "Track symptom changes daily"}
	}

	return models.AssessmentResult{
		AssessmentID:    uuid.NewString(),
		RiskScore:       score,
		Recommendations: recommendations,
		SeverityLevel:   level,
		Timestamp:       time.Now().UTC(),
	}
}
