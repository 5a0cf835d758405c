// Package matcher finds chains of offered rides connecting two locations.
//
// The search is a breadth-first walk over locations. Outgoing edges of a
// location are its active rides, in offer order, that pass the seat and
// category constraints. A location is enqueued at most once: the first ride
// reaching it wins, so among equally short paths the earliest-offered legs
// are preferred.
package matcher

import "github.com/example/ride-sharing/internal/models"

// Constraints filter the rides a path may use.
type Constraints struct {
	// Seats is the minimum number of vacant seats a ride must still have.
	Seats int
	// Category, if non-empty, must equal the ride's vehicle category.
	Category string
}

func (c Constraints) allows(r *models.Ride) bool {
	if !r.Active() {
		return false
	}
	if c.Category != "" && r.Category != c.Category {
		return false
	}
	return r.RemainingSeats >= c.Seats
}

// node is one queue entry: a location plus the leg used to reach it.
type node struct {
	location string
	leg      *models.Ride
	parent   int // index into walker.nodes, -1 for the source
}

type walker struct {
	index   *RouteIndex
	cons    Constraints
	nodes   []node
	head    int
	visited map[string]bool
}

// FindPath returns the legs of the fewest-leg path from src to dst.
// ok is false when dst is unreachable under c. src == dst is a match with
// zero legs.
func FindPath(ix *RouteIndex, src, dst string, c Constraints) (legs []*models.Ride, ok bool) {
	w := &walker{
		index:   ix,
		cons:    c,
		nodes:   []node{{location: src, parent: -1}},
		visited: make(map[string]bool),
	}
	return w.loop(dst)
}

func (w *walker) loop(dst string) ([]*models.Ride, bool) {
	for w.head < len(w.nodes) {
		cur := w.head
		w.head++
		if w.nodes[cur].location == dst {
			return w.path(cur), true
		}
		w.expand(cur)
	}
	return nil, false
}

// expand enqueues every unvisited destination reachable by one allowed ride.
// The source itself is not pre-marked, matching how destinations are tracked.
func (w *walker) expand(cur int) {
	for _, r := range w.index.Departures(w.nodes[cur].location) {
		if w.visited[r.Destination] || !w.cons.allows(r) {
			continue
		}
		w.visited[r.Destination] = true
		w.nodes = append(w.nodes, node{location: r.Destination, leg: r, parent: cur})
	}
}

func (w *walker) path(end int) []*models.Ride {
	var legs []*models.Ride
	for i := end; w.nodes[i].parent >= 0; i = w.nodes[i].parent {
		legs = append(legs, w.nodes[i].leg)
	}
	for i, j := 0, len(legs)-1; i < j; i, j = i+1, j-1 {
		legs[i], legs[j] = legs[j], legs[i]
	}
	if legs == nil {
		legs = []*models.Ride{}
	}
	return legs
}
