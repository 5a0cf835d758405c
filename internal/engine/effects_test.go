package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ride-sharing/internal/models"
	"github.com/example/ride-sharing/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.RideEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.RideEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type recordingNotifier struct {
	owners    []string
	remaining []int
}

func (n *recordingNotifier) NotifySelection(_ context.Context, ownerID string, _ models.Selection, remaining int) error {
	n.owners = append(n.owners, ownerID)
	n.remaining = append(n.remaining, remaining)
	return nil
}

func TestSideEffectsFollowMutations(t *testing.T) {
	store := storage.NewMemoryStore()
	pub := &recordingPublisher{}
	notif := &recordingNotifier{}
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, WithStore(store), WithPublisher(pub), WithNotifier(notif), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	a, b, c := f.offerChain(t)
	_, ok, err := f.eng.SelectRide(ctx, SelectCommand{RiderID: f.riders[0], Origin: "bangalore", Destination: "madurai", Seats: 1, Category: "XUV"})
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, f.eng.EndRide(ctx, a))
	require.NoError(t, f.eng.CancelRide(ctx, c))

	assert.Equal(t, []models.EventType{
		models.EventRideOffered, models.EventRideOffered, models.EventRideOffered,
		models.EventRideSelected, models.EventRideEnded, models.EventRideCancelled,
	}, pub.types())
	sel := pub.events[3]
	assert.Equal(t, a, sel.RideID)
	assert.Equal(t, f.riders[0], sel.UserID)
	assert.Equal(t, now, sel.At)

	archived, ok := store.Get(a)
	require.True(t, ok)
	assert.Equal(t, models.RideEnded, archived.Status)
	assert.Equal(t, 1, archived.RemainingSeats)
	archivedB, _ := store.Get(b)
	assert.Equal(t, models.RideActive, archivedB.Status)
	archivedC, _ := store.Get(c)
	assert.Equal(t, models.RideCancelled, archivedC.Status)
	require.Len(t, store.Selections(a), 1)

	assert.Equal(t, []string{f.drivers["xa-213-1231"]}, notif.owners)
	assert.Equal(t, []int{1}, notif.remaining)
}

func TestSinkFailuresDoNotFailOperations(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	f := newFixture(t, WithPublisher(pub))
	ctx := context.Background()

	a := f.offer(t, "xa-213-1231", "bangalore", "chennai", 2)
	_, ok, err := f.eng.SelectRide(ctx, SelectCommand{RiderID: f.riders[0], Origin: "bangalore", Destination: "chennai", Seats: 1})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, f.eng.EndRide(ctx, a))
	assert.Len(t, pub.types(), 3)
}

func TestNoSideEffectsOnFailure(t *testing.T) {
	pub := &recordingPublisher{}
	f := newFixture(t, WithPublisher(pub))
	ctx := context.Background()

	_, err := f.eng.OfferRide(ctx, OfferCommand{UserID: "ghost", VehicleNumber: "x", Origin: "a", Destination: "b", Seats: 1})
	require.Error(t, err)
	_, ok, err := f.eng.SelectRide(ctx, SelectCommand{RiderID: f.riders[0], Origin: "a", Destination: "b", Seats: 1})
	require.NoError(t, err)
	require.False(t, ok)
	assert.Error(t, f.eng.EndRide(ctx, "missing"))
	assert.Empty(t, pub.types())
}

// gatedStore holds the first UpdateRide of an active ride until release is closed.
type gatedStore struct {
	*storage.MemoryStore
	once    sync.Once
	blocked chan struct{}
	release chan struct{}
}

func (g *gatedStore) UpdateRide(ctx context.Context, r *models.Ride) error {
	if r.Status == models.RideActive {
		hold := false
		g.once.Do(func() { hold = true })
		if hold {
			close(g.blocked)
			<-g.release
		}
	}
	return g.MemoryStore.UpdateRide(ctx, r)
}

func TestSideEffectsKeepMutationOrder(t *testing.T) {
	store := &gatedStore{MemoryStore: storage.NewMemoryStore(), blocked: make(chan struct{}), release: make(chan struct{})}
	pub := &recordingPublisher{}
	f := newFixture(t, WithStore(store), WithPublisher(pub))
	ctx := context.Background()
	a := f.offer(t, "xa-213-1231", "bangalore", "chennai", 2)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, err := f.eng.SelectRide(ctx, SelectCommand{RiderID: f.riders[0], Origin: "bangalore", Destination: "chennai", Seats: 1})
		errs <- err
	}()
	<-store.blocked

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- f.eng.EndRide(ctx, a)
	}()
	require.Eventually(t, func() bool {
		r, err := f.eng.Ride(a)
		return err == nil && r.Status == models.RideEnded
	}, 2*time.Second, 5*time.Millisecond)

	close(store.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	archived, ok := store.Get(a)
	require.True(t, ok)
	assert.Equal(t, models.RideEnded, archived.Status)
	assert.Equal(t, []models.EventType{models.EventRideOffered, models.EventRideSelected, models.EventRideEnded}, pub.types())
}
