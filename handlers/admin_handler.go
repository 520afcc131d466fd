package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/healthassess/secure-gateway/middleware"
	"github.com/healthassess/secure-gateway/services/privacy"
	"github.com/healthassess/secure-gateway/services/threat"
	"github.com/healthassess/secure-gateway/utils"
)

// AdminHandler serves the security and compliance surface. Routes using it
// sit behind the admin permission guard.
type AdminHandler struct {
	monitor    *threat.Monitor
	compliance *privacy.Compliance
	anonymizer *privacy.Anonymizer
	store      *AssessmentStore
	logger     *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(monitor *threat.Monitor, compliance *privacy.Compliance, anonymizer *privacy.Anonymizer, store *AssessmentStore, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		monitor:    monitor,
		compliance: compliance,
		anonymizer: anonymizer,
		store:      store,
		logger:     logger,
	}
}

// HandleSecuritySummary handles GET /api/v1/admin/security/summary.
// Aggregates threat events over the requested window (default 24h).
func (h *AdminHandler) HandleSecuritySummary(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 24)
	_ = utils.WriteOK(w, h.monitor.Summary(hours))
}

// HandleThreatEvents handles GET /api/v1/admin/security/events.
func (h *AdminHandler) HandleThreatEvents(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 24)
	events := h.monitor.Events(hours)
	_ = utils.WriteOK(w, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// HandleAuditTrail handles GET /api/v1/admin/audit/trail.
// Filters: principal_id, start, end (RFC3339), limit.
func (h *AdminHandler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	filter := privacy.TrailFilter{
		PrincipalID: r.URL.Query().Get("principal_id"),
		Limit:       queryInt(r, "limit", 100),
	}
	if v := r.URL.Query().Get("start"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			_ = utils.WriteBadRequest(w, "invalid start timestamp", nil)
			return
		}
		filter.Start = parsed
	}
	if v := r.URL.Query().Get("end"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			_ = utils.WriteBadRequest(w, "invalid end timestamp", nil)
			return
		}
		filter.End = parsed
	}

	entries, err := h.compliance.Trail(r.Context(), filter)
	if err != nil {
		h.logger.Error("audit trail query failed", zap.Error(err))
		_ = utils.WriteDomainError(w, err)
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// HandleRetentionReport handles GET /api/v1/admin/audit/retention.
// Reports expired record counts per resource class; nothing is deleted.
func (h *AdminHandler) HandleRetentionReport(w http.ResponseWriter, r *http.Request) {
	reports, err := h.compliance.ScanRetention(r.Context())
	if err != nil {
		h.logger.Error("retention scan failed", zap.Error(err))
		_ = utils.WriteDomainError(w, err)
		return
	}
	_ = utils.WriteOK(w, map[string]interface{}{
		"reports":      reports,
		"generated_at": time.Now().UTC(),
	})
}

// HandleAnonymizedExport handles GET /api/v1/admin/export/anonymized.
// Produces a de-identified projection of stored assessment results for
// analytics use.
func (h *AdminHandler) HandleAnonymizedExport(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	principalID := ""
	if claims != nil {
		principalID = claims.Subject
	}

	records := h.exportRecords()
	h.logger.Info("anonymized export",
		zap.String("principal_id", principalID),
		zap.Int("records", len(records)))

	_ = utils.WriteOK(w, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

func (h *AdminHandler) exportRecords() []map[string]interface{} {
	records := h.store.All()
	out := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		out = append(out, h.anonymizer.Anonymize(map[string]interface{}{
			"name":           rec.PrincipalID,
			"assessment_id":  rec.ID,
			"risk_score":     rec.Result.RiskScore,
			"severity_level": rec.Result.SeverityLevel,
			"created_at":     rec.CreatedAt,
		}))
	}
	return out
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}
