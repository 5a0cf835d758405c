// Package directory keeps users and their registered vehicles in memory.
package directory

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/example/ride-sharing/internal/models"
)

type user struct {
	models.User
	vehicles map[string]*models.Vehicle
}

type Memory struct {
	mu    sync.RWMutex
	users map[string]*user
	newID func() string
}

func NewMemory() *Memory {
	return &Memory{users: make(map[string]*user), newID: uuid.NewString}
}

// AddUser onboards a user and returns the generated id.
func (m *Memory) AddUser(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: user name is required", models.ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.newID()
	m.users[id] = &user{User: models.User{ID: id, Name: name}, vehicles: make(map[string]*models.Vehicle)}
	return id, nil
}

// AddVehicle registers a vehicle for userID. New vehicles start available.
func (m *Memory) AddVehicle(userID, category, number string, totalSeats int) error {
	number = strings.TrimSpace(number)
	if number == "" {
		return fmt.Errorf("%w: vehicle number is required", models.ErrValidation)
	}
	if totalSeats <= 0 {
		return fmt.Errorf("%w: vehicle %s must have at least one seat", models.ErrValidation, number)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
	}
	if _, dup := u.vehicles[number]; dup {
		return fmt.Errorf("%w: vehicle %s is already registered for user %s", models.ErrValidation, number, u.Name)
	}
	u.vehicles[number] = &models.Vehicle{
		OwnerID:    userID,
		Number:     number,
		Category:   category,
		TotalSeats: totalSeats,
		Available:  true,
	}
	return nil
}

func (m *Memory) LookupUser(userID string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return models.User{}, fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
	}
	return u.User, nil
}

func (m *Memory) LookupVehicle(userID, number string) (models.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, err := m.vehicle(userID, number)
	if err != nil {
		return models.Vehicle{}, err
	}
	return *v, nil
}

func (m *Memory) SetVehicleAvailability(userID, number string, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, err := m.vehicle(userID, number)
	if err != nil {
		return err
	}
	v.Available = available
	return nil
}

// Vehicles returns the vehicles of userID ordered by number.
func (m *Memory) Vehicles(userID string) ([]models.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
	}
	out := make([]models.Vehicle, 0, len(u.vehicles))
	for _, v := range u.vehicles {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// caller holds m.mu
func (m *Memory) vehicle(userID, number string) (*models.Vehicle, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
	}
	v, ok := u.vehicles[number]
	if !ok {
		return nil, fmt.Errorf("%w: vehicle %s for user %s", models.ErrNotFound, number, userID)
	}
	return v, nil
}
