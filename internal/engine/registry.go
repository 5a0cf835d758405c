package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/ride-sharing/internal/models"
	"github.com/example/ride-sharing/internal/observability"
)

type OfferCommand struct {
	UserID        string
	VehicleNumber string
	Origin        string
	Destination   string
	Seats         int
}

func (c OfferCommand) validate() error {
	if c.Seats <= 0 {
		return fmt.Errorf("%w: seats must be positive, got %d", models.ErrValidation, c.Seats)
	}
	if strings.TrimSpace(c.Origin) == "" || strings.TrimSpace(c.Destination) == "" {
		return fmt.Errorf("%w: origin and destination are required", models.ErrValidation)
	}
	return nil
}

// OfferRide publishes a ride on an available vehicle of cmd.UserID and returns
// its id. The vehicle stays in use until the ride is ended or cancelled.
func (e *Engine) OfferRide(ctx context.Context, cmd OfferCommand) (string, error) {
	if err := cmd.validate(); err != nil {
		return "", err
	}

	e.mu.Lock()
	ride, err := e.offerLocked(cmd)
	var seq uint64
	if err == nil {
		seq = e.order.take()
	}
	e.mu.Unlock()
	if err != nil {
		return "", err
	}

	observability.RidesOffered.Inc()
	observability.RidesActive.Inc()
	e.logger.Info("ride offered", "ride_id", ride.ID, "owner_id", ride.OwnerID, "origin", ride.Origin,
		"destination", ride.Destination, "seats", ride.OfferedSeats)
	e.flush(ctx, effects{
		seq:   seq,
		saved: &ride,
		events: []models.RideEvent{{
			Type: models.EventRideOffered, RideID: ride.ID, UserID: ride.OwnerID, Seats: ride.OfferedSeats,
			Origin: ride.Origin, Destination: ride.Destination, At: ride.OfferedAt,
		}},
	})
	return ride.ID, nil
}

func (e *Engine) offerLocked(cmd OfferCommand) (models.Ride, error) {
	if _, err := e.dir.LookupUser(cmd.UserID); err != nil {
		return models.Ride{}, err
	}
	v, err := e.dir.LookupVehicle(cmd.UserID, cmd.VehicleNumber)
	if err != nil {
		return models.Ride{}, fmt.Errorf("%w: %w", models.ErrVehicleUnavailable, err)
	}
	if !v.Available {
		return models.Ride{}, fmt.Errorf("%w: vehicle %s is in use", models.ErrVehicleUnavailable, v.Number)
	}
	if cmd.Seats > v.TotalSeats {
		return models.Ride{}, fmt.Errorf("%w: vehicle %s has %d seats, offered %d",
			models.ErrValidation, v.Number, v.TotalSeats, cmd.Seats)
	}

	id := e.newID()
	if _, dup := e.rides[id]; dup {
		return models.Ride{}, fmt.Errorf("%w: ride id %s already issued", models.ErrInvalidState, id)
	}
	if err := e.dir.SetVehicleAvailability(cmd.UserID, v.Number, false); err != nil {
		return models.Ride{}, err
	}

	now := e.now()
	r := &models.Ride{
		ID:             id,
		OwnerID:        cmd.UserID,
		VehicleNumber:  v.Number,
		Category:       v.Category,
		Origin:         cmd.Origin,
		Destination:    cmd.Destination,
		OfferedSeats:   cmd.Seats,
		RemainingSeats: cmd.Seats,
		Status:         models.RideActive,
		OfferedAt:      now,
		UpdatedAt:      now,
	}
	e.rides[id] = r
	e.index.Add(r)
	e.active++
	e.userStats(cmd.UserID).OfferedRides++
	return *r, nil
}

// EndRide completes an active ride and frees its vehicle. The ride stays in
// the route index but is never matched again.
func (e *Engine) EndRide(ctx context.Context, rideID string) error {
	return e.terminate(ctx, rideID, models.RideEnded)
}

// CancelRide aborts an active ride, frees its vehicle, and removes it from
// every route index entry.
func (e *Engine) CancelRide(ctx context.Context, rideID string) error {
	return e.terminate(ctx, rideID, models.RideCancelled)
}

func (e *Engine) terminate(ctx context.Context, rideID string, to models.RideStatus) error {
	e.mu.Lock()
	r, err := e.lookupRide(rideID)
	if err == nil && !r.Active() {
		err = fmt.Errorf("%w: ride %s is already %s", models.ErrInvalidState, rideID, r.Status)
	}
	if err == nil {
		err = e.dir.SetVehicleAvailability(r.OwnerID, r.VehicleNumber, true)
	}
	if err != nil {
		e.mu.Unlock()
		return err
	}
	r.Status = to
	r.UpdatedAt = e.now()
	e.active--
	if to == models.RideCancelled {
		e.index.Remove(rideID)
	}
	snapshot := *r
	seq := e.order.take()
	e.mu.Unlock()

	evType := models.EventRideEnded
	if to == models.RideCancelled {
		evType = models.EventRideCancelled
		observability.RidesCancelled.Inc()
	} else {
		observability.RidesEnded.Inc()
	}
	observability.RidesActive.Dec()
	e.logger.Info("ride terminated", "ride_id", rideID, "status", to, "remaining_seats", snapshot.RemainingSeats)
	e.flush(ctx, effects{
		seq:     seq,
		updated: &snapshot,
		events: []models.RideEvent{{
			Type: evType, RideID: rideID, UserID: snapshot.OwnerID,
			Origin: snapshot.Origin, Destination: snapshot.Destination, At: snapshot.UpdatedAt,
		}},
	})
	return nil
}

// Reserve takes seats on a single active ride without running a search.
func (e *Engine) Reserve(ctx context.Context, rideID string, seats int) error {
	e.mu.Lock()
	r, err := e.lookupRide(rideID)
	if err == nil {
		err = e.reserveLocked(r, seats)
	}
	var snapshot models.Ride
	var seq uint64
	if err == nil {
		snapshot = *r
		seq = e.order.take()
	}
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.flush(ctx, effects{seq: seq, updated: &snapshot})
	return nil
}

// caller holds e.mu
func (e *Engine) lookupRide(rideID string) (*models.Ride, error) {
	r, ok := e.rides[rideID]
	if !ok {
		return nil, fmt.Errorf("%w: ride %s", models.ErrNotFound, rideID)
	}
	return r, nil
}

// reserveLocked keeps 0 <= RemainingSeats <= OfferedSeats. caller holds e.mu.
func (e *Engine) reserveLocked(r *models.Ride, seats int) error {
	if seats <= 0 {
		return fmt.Errorf("%w: seats must be positive, got %d", models.ErrValidation, seats)
	}
	if !r.Active() {
		return fmt.Errorf("%w: ride %s is %s", models.ErrInvalidState, r.ID, r.Status)
	}
	if seats > r.RemainingSeats {
		return fmt.Errorf("%w: ride %s has %d seats left, requested %d",
			models.ErrCapacityExceeded, r.ID, r.RemainingSeats, seats)
	}
	r.RemainingSeats -= seats
	r.UpdatedAt = e.now()
	return nil
}
