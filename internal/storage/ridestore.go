package storage

import (
	"context"
	"sync"

	"github.com/example/ride-sharing/internal/models"
)

// RideStore archives ride and selection records emitted by the engine.
type RideStore interface {
	SaveRide(ctx context.Context, r *models.Ride) error
	UpdateRide(ctx context.Context, r *models.Ride) error
	SaveSelection(ctx context.Context, s models.Selection) error
}

type MemoryStore struct {
	mu         sync.RWMutex
	rides      map[string]models.Ride
	selections map[string][]models.Selection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rides: make(map[string]models.Ride), selections: make(map[string][]models.Selection)}
}

func (m *MemoryStore) SaveRide(_ context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[r.ID] = *r
	return nil
}

func (m *MemoryStore) UpdateRide(_ context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[r.ID] = *r
	return nil
}

func (m *MemoryStore) SaveSelection(_ context.Context, s models.Selection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selections[s.RideID] = append(m.selections[s.RideID], s)
	return nil
}

func (m *MemoryStore) Get(id string) (models.Ride, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	return r, ok
}

func (m *MemoryStore) Selections(rideID string) []models.Selection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Selection(nil), m.selections[rideID]...)
}
