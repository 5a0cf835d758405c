package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/ride-sharing/internal/matcher"
	"github.com/example/ride-sharing/internal/models"
	"github.com/example/ride-sharing/internal/observability"
)

type SelectCommand struct {
	RiderID     string
	Origin      string
	Destination string
	Seats       int
	// Category restricts every leg to one vehicle category; empty allows any.
	Category string
}

func (c SelectCommand) validate() error {
	if c.Seats <= 0 {
		return fmt.Errorf("%w: seats must be positive, got %d", models.ErrValidation, c.Seats)
	}
	if strings.TrimSpace(c.Origin) == "" || strings.TrimSpace(c.Destination) == "" {
		return fmt.Errorf("%w: origin and destination are required", models.ErrValidation)
	}
	return nil
}

// SelectRide finds the fewest-leg chain of active rides from cmd.Origin to
// cmd.Destination and reserves cmd.Seats on its first leg. It returns the
// legs in travel order; ok is false when no chain satisfies the constraints.
//
// Only the first leg is charged. Later legs keep their seat counts, so a
// rider on leg two does not occupy a seat there. This is kept deliberately
// but is suspected to be a defect; downstream legs should probably be
// decremented too once the intended behaviour is confirmed.
func (e *Engine) SelectRide(ctx context.Context, cmd SelectCommand) (legs []models.Ride, ok bool, err error) {
	if err := cmd.validate(); err != nil {
		return nil, false, err
	}

	e.mu.Lock()
	if _, err := e.dir.LookupUser(cmd.RiderID); err != nil {
		e.mu.Unlock()
		return nil, false, err
	}

	start := time.Now()
	path, found := matcher.FindPath(e.index, cmd.Origin, cmd.Destination,
		matcher.Constraints{Seats: cmd.Seats, Category: cmd.Category})
	observability.MatchLatency.Observe(time.Since(start).Seconds())

	if !found {
		e.mu.Unlock()
		observability.NoMatch.Inc()
		e.logger.Info("no ride path", "rider_id", cmd.RiderID, "origin", cmd.Origin,
			"destination", cmd.Destination, "seats", cmd.Seats, "category", cmd.Category)
		return nil, false, nil
	}
	if len(path) == 0 {
		e.mu.Unlock()
		observability.PathLegs.Observe(0)
		return []models.Ride{}, true, nil
	}

	first := path[0]
	if err := e.reserveLocked(first, cmd.Seats); err != nil {
		e.mu.Unlock()
		return nil, false, err
	}
	sel := models.Selection{RiderID: cmd.RiderID, RideID: first.ID, Seats: cmd.Seats, SelectedAt: e.now()}
	e.selections[first.ID] = append(e.selections[first.ID], sel)
	e.userStats(cmd.RiderID).TakenRides++

	legs = make([]models.Ride, len(path))
	for i, r := range path {
		legs[i] = *r
	}
	seq := e.order.take()
	e.mu.Unlock()

	observability.Selections.Inc()
	observability.PathLegs.Observe(float64(len(legs)))
	e.logger.Info("ride selected", "rider_id", cmd.RiderID, "ride_id", sel.RideID, "legs", len(legs),
		"seats", sel.Seats, "remaining_seats", legs[0].RemainingSeats)
	e.flush(ctx, effects{
		seq:       seq,
		updated:   &legs[0],
		selection: &sel,
		ownerID:   legs[0].OwnerID,
		remaining: legs[0].RemainingSeats,
		events: []models.RideEvent{{
			Type: models.EventRideSelected, RideID: sel.RideID, UserID: sel.RiderID, Seats: sel.Seats,
			Origin: cmd.Origin, Destination: cmd.Destination, At: sel.SelectedAt,
		}},
	})
	return legs, true, nil
}
