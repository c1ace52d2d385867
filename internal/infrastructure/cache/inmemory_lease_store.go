package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mxsuite/backend/internal/domain/sat"
)

// InMemoryJobLeaseStore implements the job lease port for single-node
// deployments and tests. Expired leases are reclaimed lazily on the
// next Acquire for the same request.
type InMemoryJobLeaseStore struct {
	mu     sync.Mutex
	leases map[uuid.UUID]time.Time
}

// NewInMemoryJobLeaseStore creates a new in-memory lease store
func NewInMemoryJobLeaseStore() *InMemoryJobLeaseStore {
	return &InMemoryJobLeaseStore{
		leases: make(map[uuid.UUID]time.Time),
	}
}

// Acquire implements sat.JobLeaseStore
func (s *InMemoryJobLeaseStore) Acquire(_ context.Context, requestID uuid.UUID, _ sat.TriggerAction, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if expiresAt, held := s.leases[requestID]; held && now.Before(expiresAt) {
		return false, nil
	}
	s.leases[requestID] = now.Add(ttl)
	return true, nil
}

// Release implements sat.JobLeaseStore
func (s *InMemoryJobLeaseStore) Release(_ context.Context, requestID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.leases, requestID)
	return nil
}

// Ensure InMemoryJobLeaseStore implements JobLeaseStore
var _ sat.JobLeaseStore = (*InMemoryJobLeaseStore)(nil)
