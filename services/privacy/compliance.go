package privacy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/healthassess/secure-gateway/models"
	"github.com/healthassess/secure-gateway/services"
)

// DefaultClassifications is the static policy table keyed by resource
// class. Unknown classes fall back to restricted with one-year retention.
func DefaultClassifications() map[string]models.DataClassification {
	return map[string]models.DataClassification{
		"assessment_data": {
			Level:           models.ClassificationRestricted,
			RetentionDays:   2555,
			RequiresConsent: true,
		},
		"analytics_data": {
			Level:           models.ClassificationInternal,
			RetentionDays:   1095,
			RequiresConsent: false,
		},
		"system_logs": {
			Level:           models.ClassificationConfidential,
			RetentionDays:   365,
			RequiresConsent: false,
		},
	}
}

var fallbackClassification = models.DataClassification{
	Level:         models.ClassificationRestricted,
	RetentionDays: 365,
}

// AuditStore persists the append-only audit trail.
type AuditStore interface {
	Append(ctx context.Context, entry models.AuditEntry) error
	Trail(ctx context.Context, filter TrailFilter) ([]models.AuditEntry, error)
	// CountExpired returns, for one resource class, the number of entries
	// older than cutoff and the oldest such timestamp.
	CountExpired(ctx context.Context, resourceClass string, cutoff time.Time) (int, time.Time, error)
}

// TrailFilter narrows an audit trail query. Zero values mean no constraint.
type TrailFilter struct {
	PrincipalID string
	Start       time.Time
	End         time.Time
	Limit       int
}

// Compliance writes the audit trail and reports retention status. Audit
// writes are fail-closed: a failed write surfaces as AuditWriteFailure and
// the caller must abort the operation it was auditing.
type Compliance struct {
	store           AuditStore
	classifications map[string]models.DataClassification
	logger          *zap.Logger
	now             func() time.Time
}

// NewCompliance creates the compliance service over the given store.
func NewCompliance(store AuditStore, logger *zap.Logger) *Compliance {
	return &Compliance{
		store:           store,
		classifications: DefaultClassifications(),
		logger:          logger,
		now:             time.Now,
	}
}

// Classify returns the classification for a resource class, falling back
// to the restricted default for unknown classes.
func (c *Compliance) Classify(resourceClass string) models.DataClassification {
	if cl, ok := c.classifications[resourceClass]; ok {
		return cl
	}
	return fallbackClassification
}

// LogAccess appends one audit entry for a data access. The entry's
// classification comes from the policy table. A store failure is returned
// as AuditWriteFailure so the gateway denies the underlying request.
func (c *Compliance) LogAccess(ctx context.Context, principalID, action, resourceClass, recordID, purpose, ipAddress string, success bool) error {
	entry := models.AuditEntry{
		ID:             uuid.New(),
		Timestamp:      c.now().UTC(),
		PrincipalID:    principalID,
		Action:         action,
		ResourceClass:  resourceClass,
		RecordID:       recordID,
		Classification: c.Classify(resourceClass).Level,
		Purpose:        purpose,
		IPAddress:      ipAddress,
		Success:        success,
	}

	if err := c.store.Append(ctx, entry); err != nil {
		c.logger.Error("audit write failed",
			zap.String("action", action),
			zap.String("resource_class", resourceClass),
			zap.Error(err))
		return services.ErrAuditWriteFailure
	}

	c.logger.Info("audit",
		zap.String("action", action),
		zap.String("resource_class", resourceClass),
		zap.String("principal_id", principalID),
		zap.Bool("success", success))
	return nil
}

// Trail returns audit entries matching the filter.
func (c *Compliance) Trail(ctx context.Context, filter TrailFilter) ([]models.AuditEntry, error) {
	entries, err := c.store.Trail(ctx, filter)
	if err != nil {
		return nil, services.WrapInternal("audit trail query", err)
	}
	return entries, nil
}

// ScanRetention reports, per resource class, how many audit entries have
// outlived their retention horizon. Classes with nothing expired are
// omitted. The scan never deletes anything.
func (c *Compliance) ScanRetention(ctx context.Context) ([]models.RetentionReport, error) {
	now := c.now().UTC()
	var reports []models.RetentionReport

	for _, class := range []string{"assessment_data", "analytics_data", "system_logs"} {
		policy := c.classifications[class]
		cutoff := now.AddDate(0, 0, -policy.RetentionDays)

		count, oldest, err := c.store.CountExpired(ctx, class, cutoff)
		if err != nil {
			return nil, services.WrapInternal("retention scan", err)
		}
		if count == 0 {
			continue
		}
		reports = append(reports, models.RetentionReport{
			ResourceClass: class,
			RetentionDays: policy.RetentionDays,
			ExpiredCount:  count,
			OldestRecord:  oldest,
		})
	}
	return reports, nil
}
