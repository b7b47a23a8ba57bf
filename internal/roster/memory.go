// Package roster holds the in-memory activity roster and its seed catalog.
package roster

import (
	"context"
	"slices"
	"sync"

	"example.com/roster/internal/domain"
)

// InMemoryStore keeps the catalog for the lifetime of the process.
// A single RWMutex serialises mutations so concurrent signups never lose updates.
type InMemoryStore struct {
	mu              sync.RWMutex
	activities      map[string]domain.Activity
	enforceCapacity bool
}

// StoreOption configures an InMemoryStore.
type StoreOption func(*InMemoryStore)

// WithCapacityEnforcement toggles the max_participants check on Enroll. It is on by default.
func WithCapacityEnforcement(enabled bool) StoreOption {
	return func(s *InMemoryStore) {
		s.enforceCapacity = enabled
	}
}

// NewInMemoryStore constructs a store populated with a copy of seed.
func NewInMemoryStore(seed domain.Catalog, opts ...StoreOption) *InMemoryStore {
	s := &InMemoryStore{
		activities:      make(map[string]domain.Activity, len(seed)),
		enforceCapacity: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	for name, activity := range seed {
		activity.Name = name
		s.activities[name] = activity.Clone()
	}
	return s
}

// List implements domain.Store. The returned catalog shares no memory with the store.
func (s *InMemoryStore) List(ctx context.Context) domain.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(domain.Catalog, len(s.activities))
	for name, activity := range s.activities {
		out[name] = activity.Clone()
	}
	return out
}

// Enroll implements domain.Store.
func (s *InMemoryStore) Enroll(ctx context.Context, name, email string) (domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	activity, ok := s.activities[name]
	if !ok {
		return domain.Activity{}, domain.ErrActivityNotFound
	}
	if activity.HasParticipant(email) {
		return domain.Activity{}, domain.ErrAlreadyEnrolled
	}
	if s.enforceCapacity && activity.IsFull() {
		return domain.Activity{}, domain.ErrActivityFull
	}

	activity.Participants = append(slices.Clip(activity.Participants), email)
	s.activities[name] = activity
	return activity.Clone(), nil
}

// Unenroll implements domain.Store.
func (s *InMemoryStore) Unenroll(ctx context.Context, name, email string) (domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	activity, ok := s.activities[name]
	if !ok {
		return domain.Activity{}, domain.ErrActivityNotFound
	}
	idx := slices.Index(activity.Participants, email)
	if idx < 0 {
		return domain.Activity{}, domain.ErrNotEnrolled
	}

	activity.Participants = slices.Delete(slices.Clone(activity.Participants), idx, idx+1)
	s.activities[name] = activity
	return activity.Clone(), nil
}
