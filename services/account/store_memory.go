package account

import (
	"context"
	"sync"

	"github.com/healthassess/secure-gateway/models"
)

// MemoryPrincipalStore keeps principals in process memory, for development
// and tests.
type MemoryPrincipalStore struct {
	mu         sync.RWMutex
	byID       map[string]*models.Principal
	byUsername map[string]string
}

// NewMemoryPrincipalStore creates an empty in-memory store.
func NewMemoryPrincipalStore() *MemoryPrincipalStore {
	return &MemoryPrincipalStore{
		byID:       make(map[string]*models.Principal),
		byUsername: make(map[string]string),
	}
}

func (m *MemoryPrincipalStore) FindByUsername(_ context.Context, username string) (*models.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byUsername[username]
	if !ok {
		return nil, nil
	}
	return clonePrincipal(m.byID[id]), nil
}

func (m *MemoryPrincipalStore) FindByID(_ context.Context, id string) (*models.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return clonePrincipal(p), nil
}

func (m *MemoryPrincipalStore) Create(_ context.Context, principal *models.Principal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[principal.ID] = clonePrincipal(principal)
	m.byUsername[principal.Username] = principal.ID
	return nil
}

func (m *MemoryPrincipalStore) Update(_ context.Context, principal *models.Principal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[principal.ID] = clonePrincipal(principal)
	return nil
}

func clonePrincipal(p *models.Principal) *models.Principal {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
