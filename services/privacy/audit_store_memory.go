package privacy

import (
	"context"
	"sync"
	"time"

	"github.com/healthassess/secure-gateway/models"
)

// MemoryAuditStore keeps the audit trail in process memory. Suitable for
// development and tests; production deployments use the Postgres store.
type MemoryAuditStore struct {
	mu      sync.RWMutex
	entries []models.AuditEntry
}

// NewMemoryAuditStore creates an empty in-memory store.
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

func (m *MemoryAuditStore) Append(_ context.Context, entry models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MemoryAuditStore) Trail(_ context.Context, filter TrailFilter) ([]models.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.AuditEntry, 0)
	for _, e := range m.entries {
		if filter.PrincipalID != "" && e.PrincipalID != filter.PrincipalID {
			continue
		}
		if !filter.Start.IsZero() && e.Timestamp.Before(filter.Start) {
			continue
		}
		if !filter.End.IsZero() && e.Timestamp.After(filter.End) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryAuditStore) CountExpired(_ context.Context, resourceClass string, cutoff time.Time) (int, time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	var oldest time.Time
	for _, e := range m.entries {
		if e.ResourceClass != resourceClass || !e.Timestamp.Before(cutoff) {
			continue
		}
		count++
		if oldest.IsZero() || e.Timestamp.Before(oldest) {
			oldest = e.Timestamp
		}
	}
	return count, oldest, nil
}
