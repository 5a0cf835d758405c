// Package engine offers, matches, and terminates shared rides.
//
// An Engine owns the ride registry, the route index, the selection ledger, and
// per-user counters. All of them sit behind one mutex; a selection searches
// and reserves seats inside the same critical section, so two riders can
// never both take the last seat of a leg. Archive, event, and notification
// side effects run after the lock is released, in the order the mutations
// were made, and are best-effort.
package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/ride-sharing/internal/matcher"
	"github.com/example/ride-sharing/internal/models"
	"github.com/example/ride-sharing/internal/storage"
)

// Directory resolves users and vehicles owned outside the engine.
type Directory interface {
	LookupUser(userID string) (models.User, error)
	LookupVehicle(userID, vehicleNumber string) (models.Vehicle, error)
	SetVehicleAvailability(userID, vehicleNumber string, available bool) error
}

type Publisher interface {
	Publish(ctx context.Context, ev models.RideEvent) error
}

type Notifier interface {
	NotifySelection(ctx context.Context, ownerID string, sel models.Selection, remaining int) error
}

type Engine struct {
	dir Directory

	mu         sync.Mutex
	rides      map[string]*models.Ride
	index      *matcher.RouteIndex
	selections map[string][]models.Selection
	stats      map[string]*models.UserStats
	active     int
	order      sequencer

	store    storage.RideStore
	events   Publisher
	notifier Notifier
	logger   *slog.Logger
	newID    func() string
	now      func() time.Time
}

type Option func(*Engine)

func WithStore(s storage.RideStore) Option { return func(e *Engine) { e.store = s } }

func WithPublisher(p Publisher) Option { return func(e *Engine) { e.events = p } }

func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIDGenerator replaces the uuid ride id generator. Generated ids must be unique.
func WithIDGenerator(fn func() string) Option { return func(e *Engine) { e.newID = fn } }

func WithClock(fn func() time.Time) Option { return func(e *Engine) { e.now = fn } }

func New(dir Directory, opts ...Option) *Engine {
	e := &Engine{
		dir:        dir,
		rides:      make(map[string]*models.Ride),
		index:      matcher.NewRouteIndex(),
		selections: make(map[string][]models.Selection),
		stats:      make(map[string]*models.UserStats),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:      uuid.NewString,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ride returns a snapshot of a ride in any state.
func (e *Engine) Ride(rideID string) (models.Ride, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.lookupRide(rideID)
	if err != nil {
		return models.Ride{}, err
	}
	return *r, nil
}

// ActiveRides returns snapshots of every active ride.
func (e *Engine) ActiveRides() []models.Ride {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Ride, 0, e.active)
	for _, r := range e.rides {
		if r.Active() {
			out = append(out, *r)
		}
	}
	return out
}

// Selections returns the selections recorded against rideID, oldest first.
func (e *Engine) Selections(rideID string) ([]models.Selection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.lookupRide(rideID); err != nil {
		return nil, err
	}
	return append([]models.Selection(nil), e.selections[rideID]...), nil
}

// Stats returns the counters of userID; users without activity report zeros.
func (e *Engine) Stats(userID string) models.UserStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.stats[userID]; ok {
		return *s
	}
	return models.UserStats{UserID: userID}
}

// AllStats returns the counters of every user that offered or took a ride.
func (e *Engine) AllStats() []models.UserStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.UserStats, 0, len(e.stats))
	for _, s := range e.stats {
		out = append(out, *s)
	}
	return out
}

// caller holds e.mu
func (e *Engine) userStats(userID string) *models.UserStats {
	s, ok := e.stats[userID]
	if !ok {
		s = &models.UserStats{UserID: userID}
		e.stats[userID] = s
	}
	return s
}

// sequencer hands out tickets under e.mu and lets their holders run one at a
// time in ticket order. Every ticket taken must be run.
type sequencer struct {
	mu      sync.Mutex
	cond    *sync.Cond
	next    uint64
	serving uint64
}

// take is called under e.mu so tickets follow mutation order.
func (s *sequencer) take() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.next
	s.next++
	return t
}

func (s *sequencer) run(ticket uint64, fn func()) {
	s.mu.Lock()
	if s.cond == nil {
		s.cond = sync.NewCond(&s.mu)
	}
	for s.serving != ticket {
		s.cond.Wait()
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.serving++
		s.cond.Broadcast()
		s.mu.Unlock()
	}()
	fn()
}

// effects collects side effects produced under the lock. seq is the ticket
// taken before the lock was released.
type effects struct {
	seq       uint64
	saved     *models.Ride
	updated   *models.Ride
	selection *models.Selection
	ownerID   string
	remaining int
	events    []models.RideEvent
}

func (e *Engine) flush(ctx context.Context, fx effects) {
	e.order.run(fx.seq, func() { e.apply(ctx, fx) })
}

func (e *Engine) apply(ctx context.Context, fx effects) {
	if e.store != nil {
		if fx.saved != nil {
			if err := e.store.SaveRide(ctx, fx.saved); err != nil {
				e.logger.Warn("archive ride failed", "ride_id", fx.saved.ID, "error", err)
			}
		}
		if fx.updated != nil {
			if err := e.store.UpdateRide(ctx, fx.updated); err != nil {
				e.logger.Warn("archive ride update failed", "ride_id", fx.updated.ID, "error", err)
			}
		}
		if fx.selection != nil {
			if err := e.store.SaveSelection(ctx, *fx.selection); err != nil {
				e.logger.Warn("archive selection failed", "ride_id", fx.selection.RideID, "error", err)
			}
		}
	}
	if e.events != nil {
		for _, ev := range fx.events {
			if err := e.events.Publish(ctx, ev); err != nil {
				e.logger.Warn("publish ride event failed", "type", ev.Type, "ride_id", ev.RideID, "error", err)
			}
		}
	}
	if e.notifier != nil && fx.selection != nil {
		if err := e.notifier.NotifySelection(ctx, fx.ownerID, *fx.selection, fx.remaining); err != nil {
			e.logger.Debug("selection notification not delivered", "owner_id", fx.ownerID, "error", err)
		}
	}
}
