package threat

import (
	"net"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/healthassess/secure-gateway/models"
)

var suspiciousAgentPatterns = compileAll(
	`(?i)bot`,
	`(?i)crawler`,
	`(?i)spider`,
	`(?i)scraper`,
	`(?i)python-requests`,
	`(?i)curl`,
	`(?i)wget`,
	`(?i)sqlmap`,
	`(?i)nikto`,
	`(?i)nmap`,
)

// Monitor records threat events in memory and aggregates them for the admin
// surface. The event log is capped so a sustained attack cannot grow it
// without bound.
type Monitor struct {
	mu        sync.Mutex
	events    []models.ThreatEvent
	maxEvents int
	logger    *zap.Logger
	now       func() time.Time
}

// NewMonitor creates a monitor retaining at most maxEvents entries. A
// non-positive cap defaults to 10000.
func NewMonitor(maxEvents int, logger *zap.Logger) *Monitor {
	if maxEvents <= 0 {
		maxEvents = 10000
	}
	return &Monitor{
		maxEvents: maxEvents,
		logger:    logger,
		now:       time.Now,
	}
}

// RequestTrait is one suspicious trait found in request metadata.
type RequestTrait struct {
	Category models.ThreatCategory  `json:"category"`
	Level    models.ThreatLevel     `json:"level"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// AnalyzeRequest scores request metadata. A suspicious user agent or an
// unparseable source address yields informational traits; neither blocks on
// its own. Every trait is recorded as an event.
func (m *Monitor) AnalyzeRequest(sourceIP, userAgent, endpoint, principalID string) []RequestTrait {
	var traits []RequestTrait

	if isSuspiciousAgent(userAgent) {
		traits = append(traits, RequestTrait{
			Category: models.ThreatSuspiciousPattern,
			Level:    models.ThreatLevelMedium,
			Details:  map[string]interface{}{"user_agent": userAgent},
		})
	}

	if sourceIP != "" && net.ParseIP(sourceIP) == nil {
		traits = append(traits, RequestTrait{
			Category: models.ThreatSuspiciousPattern,
			Level:    models.ThreatLevelMedium,
			Details:  map[string]interface{}{"invalid_source_ip": sourceIP},
		})
	}

	for _, trait := range traits {
		m.Record(models.ThreatEvent{
			Category:    trait.Category,
			Level:       trait.Level,
			SourceIP:    sourceIP,
			UserAgent:   userAgent,
			Endpoint:    endpoint,
			PrincipalID: principalID,
			Details:     trait.Details,
			Blocked:     false,
		})
	}

	return traits
}

// Record appends one event, stamping the time if unset. Blocked events are
// logged at warn level.
func (m *Monitor) Record(event models.ThreatEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = m.now().UTC()
	}

	m.mu.Lock()
	m.events = append(m.events, event)
	if len(m.events) > m.maxEvents {
		m.events = m.events[len(m.events)-m.maxEvents:]
	}
	m.mu.Unlock()

	if event.Blocked {
		m.logger.Warn("security threat blocked",
			zap.String("category", string(event.Category)),
			zap.String("level", string(event.Level)),
			zap.String("source_ip", event.SourceIP),
			zap.String("endpoint", event.Endpoint))
	}
}

// Events returns a copy of events recorded within the last `hours` hours,
// newest last.
func (m *Monitor) Events(hours int) []models.ThreatEvent {
	cutoff := m.now().UTC().Add(-time.Duration(hours) * time.Hour)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ThreatEvent, 0)
	for _, e := range m.events {
		if e.Timestamp.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// Summary aggregates the last `hours` hours of events: counts per category
// and level, plus the ten busiest source addresses.
func (m *Monitor) Summary(hours int) *models.ThreatSummary {
	recent := m.Events(hours)

	categories := make(map[string]int)
	levels := make(map[string]int)
	ipCounts := make(map[string]int)
	blocked := 0

	for _, e := range recent {
		categories[string(e.Category)]++
		levels[string(e.Level)]++
		ipCounts[e.SourceIP]++
		if e.Blocked {
			blocked++
		}
	}

	type ipCount struct {
		ip    string
		count int
	}
	ranked := make([]ipCount, 0, len(ipCounts))
	for ip, c := range ipCounts {
		ranked = append(ranked, ipCount{ip, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].ip < ranked[j].ip
	})
	if len(ranked) > 10 {
		ranked = ranked[:10]
	}
	top := make(map[string]int, len(ranked))
	for _, rc := range ranked {
		top[rc.ip] = rc.count
	}

	return &models.ThreatSummary{
		PeriodHours:     hours,
		TotalEvents:     len(recent),
		EventTypes:      categories,
		ThreatLevels:    levels,
		TopSourceIPs:    top,
		BlockedRequests: blocked,
	}
}

func isSuspiciousAgent(userAgent string) bool {
	for _, p := range suspiciousAgentPatterns {
		if p.MatchString(userAgent) {
			return true
		}
	}
	return false
}
