package matcher

import "github.com/example/ride-sharing/internal/models"

// RouteIndex maps an origin location to the rides departing from it, in
// offer order. It holds pointers owned by the caller and is not safe for
// concurrent use; the engine guards it with its own lock.
type RouteIndex struct {
	byOrigin map[string][]*models.Ride
}

func NewRouteIndex() *RouteIndex {
	return &RouteIndex{byOrigin: make(map[string][]*models.Ride)}
}

// Add appends r to the entry for r.Origin.
func (ix *RouteIndex) Add(r *models.Ride) {
	ix.byOrigin[r.Origin] = append(ix.byOrigin[r.Origin], r)
}

// Remove prunes rideID from every entry and reports whether anything was removed.
func (ix *RouteIndex) Remove(rideID string) bool {
	removed := false
	for origin, rides := range ix.byOrigin {
		kept := rides[:0]
		for _, r := range rides {
			if r.ID == rideID {
				removed = true
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			delete(ix.byOrigin, origin)
			continue
		}
		// clear the tail so dropped rides can be collected
		for i := len(kept); i < len(rides); i++ {
			rides[i] = nil
		}
		ix.byOrigin[origin] = kept
	}
	return removed
}

// Departures returns the rides leaving origin, including ended rides that
// were never pruned. The slice must not be modified.
func (ix *RouteIndex) Departures(origin string) []*models.Ride {
	return ix.byOrigin[origin]
}

// Contains reports whether any entry still references rideID.
func (ix *RouteIndex) Contains(rideID string) bool {
	for _, rides := range ix.byOrigin {
		for _, r := range rides {
			if r.ID == rideID {
				return true
			}
		}
	}
	return false
}

// Locations returns the number of origins with at least one entry.
func (ix *RouteIndex) Locations() int { return len(ix.byOrigin) }
