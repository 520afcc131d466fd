package models

import (
	"time"

	"github.com/google/uuid"
)

// ClassificationLevel is the sensitivity tier governing encryption and
// retention policy for a resource class.
type ClassificationLevel string

const (
	ClassificationPublic       ClassificationLevel = "public"
	ClassificationInternal     ClassificationLevel = "internal"
	ClassificationConfidential ClassificationLevel = "confidential"
	ClassificationRestricted   ClassificationLevel = "restricted"
)

// DataClassification is static policy keyed by resource-class name.
type DataClassification struct {
	Level           ClassificationLevel `json:"level"`
	RetentionDays   int                 `json:"retention_days"`
	RequiresConsent bool                `json:"requires_consent"`
}

// AuditEntry records one access to a classified resource. Entries are
// append-only: the gateway never edits or deletes them, only scans them
// for retention reporting.
type AuditEntry struct {
	ID             uuid.UUID           `json:"id" db:"id"`
	Timestamp      time.Time           `json:"timestamp" db:"timestamp"`
	PrincipalID    string              `json:"principal_id" db:"principal_id"`
	Action         string              `json:"action" db:"action"`
	ResourceClass  string              `json:"resource_class" db:"resource_class"`
	RecordID       string              `json:"record_id,omitempty" db:"record_id"`
	Classification ClassificationLevel `json:"classification" db:"classification"`
	Purpose        string              `json:"purpose" db:"purpose"`
	IPAddress      string              `json:"ip_address" db:"ip_address"`
	Success        bool                `json:"success" db:"success"`
}

// RetentionReport describes audit entries past their retention horizon
// for one resource class. Reporting only; purge execution is external.
type RetentionReport struct {
	ResourceClass string    `json:"resource_class"`
	RetentionDays int       `json:"retention_days"`
	ExpiredCount  int       `json:"expired_count"`
	OldestRecord  time.Time `json:"oldest_record"`
}
