package models

import "time"

// ThreatLevel grades the severity of a detected threat.
type ThreatLevel string

const (
	ThreatLevelLow      ThreatLevel = "low"
	ThreatLevelMedium   ThreatLevel = "medium"
	ThreatLevelHigh     ThreatLevel = "high"
	ThreatLevelCritical ThreatLevel = "critical"
)

// Blocking reports whether this level causes the gateway to short-circuit.
func (l ThreatLevel) Blocking() bool {
	return l == ThreatLevelHigh || l == ThreatLevelCritical
}

// ThreatCategory identifies a signature family or anomaly class.
type ThreatCategory string

const (
	ThreatSQLInjection      ThreatCategory = "sql_injection"
	ThreatXSS               ThreatCategory = "xss"
	ThreatPathTraversal     ThreatCategory = "path_traversal"
	ThreatRateLimitExceeded ThreatCategory = "rate_limit_exceeded"
	ThreatSuspiciousPattern ThreatCategory = "suspicious_pattern"
	ThreatInvalidInput      ThreatCategory = "invalid_input"
	ThreatBruteForce        ThreatCategory = "brute_force"
)

// ThreatEvent is an append-only record of one detected threat.
type ThreatEvent struct {
	Timestamp   time.Time              `json:"timestamp"`
	Category    ThreatCategory         `json:"category"`
	Level       ThreatLevel            `json:"level"`
	SourceIP    string                 `json:"source_ip"`
	UserAgent   string                 `json:"user_agent"`
	Endpoint    string                 `json:"endpoint"`
	PrincipalID string                 `json:"principal_id,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Blocked     bool                   `json:"blocked"`
}

// Violation is one signature match inside a scanned payload.
type Violation struct {
	Type  ThreatCategory `json:"type"`
	Field string         `json:"field"`
	Level ThreatLevel    `json:"threat_level"`
}

// ThreatSummary aggregates recent threat events for the admin surface.
type ThreatSummary struct {
	PeriodHours     int            `json:"period_hours"`
	TotalEvents     int            `json:"total_events"`
	EventTypes      map[string]int `json:"event_types"`
	ThreatLevels    map[string]int `json:"threat_levels"`
	TopSourceIPs    map[string]int `json:"top_source_ips"`
	BlockedRequests int            `json:"blocked_requests"`
}
