package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/service-matching/internal/models"
)

// MemoryStore is an in-process Store for tests and single-node local runs.
// All conditional transitions happen under one mutex, which gives the same
// linearizability the Postgres store gets from conditional UPDATEs.
type MemoryStore struct {
	mu        sync.RWMutex
	requests  map[string]*models.ServiceRequest
	providers map[string]*models.Provider
	matches   map[string]map[string]*models.Match // requestID -> providerID -> match
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:  make(map[string]*models.ServiceRequest),
		providers: make(map[string]*models.Provider),
		matches:   make(map[string]map[string]*models.Match),
	}
}

func (m *MemoryStore) CreateRequest(ctx context.Context, r *models.ServiceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *MemoryStore) GetRequest(ctx context.Context, id string) (*models.ServiceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) MarkMatched(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status != models.RequestPending {
		return fmt.Errorf("request %s is %s, not pending", id, r.Status)
	}
	r.Status = models.RequestMatched
	r.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) AcceptRequest(ctx context.Context, id, providerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.Status != models.RequestMatched {
		return false, nil
	}
	r.Status = models.RequestAccepted
	pid := providerID
	r.AcceptedProviderID = &pid
	r.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) CancelRequest(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.Status != models.RequestPending && r.Status != models.RequestMatched {
		return false, nil
	}
	r.Status = models.RequestCancelled
	r.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) UpsertProvider(ctx context.Context, p *models.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	cp.UpdatedAt = time.Now()
	m.providers[p.ID] = &cp
	return nil
}

func (m *MemoryStore) GetProvider(ctx context.Context, id string) (*models.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) ListProviders(ctx context.Context, category string) ([]models.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Provider, 0)
	for _, p := range m.providers {
		if p.Category == category {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateMatches(ctx context.Context, matches []models.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mt := range matches {
		byProvider, ok := m.matches[mt.RequestID]
		if !ok {
			byProvider = make(map[string]*models.Match)
			m.matches[mt.RequestID] = byProvider
		}
		cp := mt
		byProvider[mt.ProviderID] = &cp
	}
	return nil
}

func (m *MemoryStore) GetMatch(ctx context.Context, requestID, providerID string) (*models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mt, ok := m.matches[requestID][providerID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *mt
	return &cp, nil
}

func (m *MemoryStore) ListMatches(ctx context.Context, requestID string) ([]models.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Match, 0, len(m.matches[requestID]))
	for _, mt := range m.matches[requestID] {
		out = append(out, *mt)
	}
	return out, nil
}

func (m *MemoryStore) AcceptMatch(ctx context.Context, requestID, providerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt, ok := m.matches[requestID][providerID]
	if !ok {
		return ErrNotFound
	}
	if mt.Status != models.MatchPending {
		return fmt.Errorf("match %s/%s is %s, not pending", requestID, providerID, mt.Status)
	}
	mt.Status = models.MatchAccepted
	return nil
}

func (m *MemoryStore) RejectPending(ctx context.Context, requestID, exceptProviderID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for pid, mt := range m.matches[requestID] {
		if pid == exceptProviderID || mt.Status != models.MatchPending {
			continue
		}
		mt.Status = models.MatchRejected
		n++
	}
	return n, nil
}
