// README: Trip service tests; memRepo mirrors the store's conditional-update
// contract so concurrency behaviour matches production.
package trip

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ridepool/internal/types"
)

// memRepo implements Repository in memory. Every seat mutation happens under
// one mutex, matching the single-statement atomicity of the SQL store.
type memRepo struct {
	mu     sync.Mutex
	trips  map[types.ID]*Trip
	booked map[types.ID]int
}

func newMemRepo() *memRepo {
	return &memRepo{trips: map[types.ID]*Trip{}, booked: map[types.ID]int{}}
}

func (r *memRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *memRepo) Create(_ context.Context, t *Trip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.trips[t.ID] = &cp
	return nil
}

func (r *memRepo) Get(_ context.Context, id types.ID) (*Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memRepo) ReserveSeats(_ context.Context, id types.ID, seats int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok || IsTerminal(t.Status) || t.AvailableSeats < seats {
		return false, nil
	}
	t.AvailableSeats -= seats
	r.booked[id] += seats
	t.Status = DeriveStatus(t.AvailableSeats, t.TotalSeats, t.Status)
	return true, nil
}

func (r *memRepo) ReleaseSeats(_ context.Context, id types.ID, seats int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok {
		return false, nil
	}
	t.AvailableSeats += seats
	if t.AvailableSeats > t.TotalSeats {
		t.AvailableSeats = t.TotalSeats
	}
	if r.booked[id] -= seats; r.booked[id] < 0 {
		r.booked[id] = 0
	}
	if !IsTerminal(t.Status) {
		t.Status = DeriveStatus(t.AvailableSeats, t.TotalSeats, t.Status)
	}
	return true, nil
}

func (r *memRepo) SetTerminal(_ context.Context, id types.ID, status Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok || IsTerminal(t.Status) {
		return false, nil
	}
	t.Status = status
	return true, nil
}

func (r *memRepo) RecalculateSeats(_ context.Context, id types.ID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok {
		return 0, ErrNotFound
	}
	t.AvailableSeats = t.TotalSeats - r.booked[id]
	if t.AvailableSeats < 0 {
		t.AvailableSeats = 0
	}
	if !IsTerminal(t.Status) {
		t.Status = DeriveStatus(t.AvailableSeats, t.TotalSeats, t.Status)
	}
	return t.AvailableSeats, nil
}

func mustCreateTrip(t *testing.T, svc *Service, seats int) types.ID {
	t.Helper()
	id, err := svc.Create(context.Background(), CreateCommand{
		DriverID:    "d1",
		Origin:      "Central Station",
		Destination: "Airport",
		TotalSeats:  seats,
	})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	return id
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemRepo(), nil)
	cases := []CreateCommand{
		{Origin: "a", Destination: "b", TotalSeats: 2},
		{DriverID: "d1", Destination: "b", TotalSeats: 2},
		{DriverID: "d1", Origin: "a", TotalSeats: 2},
		{DriverID: "d1", Origin: "a", Destination: "b", TotalSeats: 0},
		{DriverID: "d1", Origin: "a", Destination: "b", TotalSeats: -1},
	}
	for _, cmd := range cases {
		if _, err := svc.Create(context.Background(), cmd); !errors.Is(err, ErrBadRequest) {
			t.Errorf("Create(%+v) err = %v, want ErrBadRequest", cmd, err)
		}
	}
}

func TestReserveDecrementsAndFlipsFullyBooked(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	id := mustCreateTrip(t, svc, 4)

	if err := svc.Reserve(ctx, id, 3); err != nil {
		t.Fatalf("reserve 3: %v", err)
	}
	tr, _ := svc.Get(ctx, id)
	if tr.AvailableSeats != 1 || tr.Status != StatusScheduled {
		t.Fatalf("after reserve 3: seats=%d status=%s", tr.AvailableSeats, tr.Status)
	}

	if err := svc.Reserve(ctx, id, 1); err != nil {
		t.Fatalf("reserve last seat: %v", err)
	}
	tr, _ = svc.Get(ctx, id)
	if tr.AvailableSeats != 0 || tr.Status != StatusFullyBooked {
		t.Fatalf("after reserving all: seats=%d status=%s", tr.AvailableSeats, tr.Status)
	}
}

func TestReserveInsufficientSeats(t *testing.T) {
	svc := NewService(newMemRepo(), nil)
	ctx := context.Background()
	id := mustCreateTrip(t, svc, 2)

	if err := svc.Reserve(ctx, id, 3); !errors.Is(err, ErrInsufficientSeats) {
		t.Fatalf("reserve over capacity: err = %v, want ErrInsufficientSeats", err)
	}
	tr, _ := svc.Get(ctx, id)
	if tr.AvailableSeats != 2 {
		t.Fatalf("failed reserve must not mutate seats, got %d", tr.AvailableSeats)
	}
}

func TestReserveClosedTrip(t *testing.T) {
	svc := NewService(newMemRepo(), nil)
	ctx := context.Background()
	id := mustCreateTrip(t, svc, 2)

	if err := svc.Close(ctx, id, StatusCancelled); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := svc.Reserve(ctx, id, 1); !errors.Is(err, ErrTripClosed) {
		t.Fatalf("reserve on cancelled trip: err = %v, want ErrTripClosed", err)
	}
}

func TestConcurrentReserveLastSeat(t *testing.T) {
	svc := NewService(newMemRepo(), nil)
	ctx := context.Background()
	id := mustCreateTrip(t, svc, 1)

	const callers = 8
	errs := make(chan error, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs <- svc.Reserve(ctx, id, 1)
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrInsufficientSeats) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one winner for the last seat, got %d", success)
	}
	tr, _ := svc.Get(ctx, id)
	if tr.AvailableSeats != 0 || tr.Status != StatusFullyBooked {
		t.Fatalf("final state: seats=%d status=%s", tr.AvailableSeats, tr.Status)
	}
}

func TestReleaseClampedToTotal(t *testing.T) {
	svc := NewService(newMemRepo(), nil)
	ctx := context.Background()
	id := mustCreateTrip(t, svc, 3)

	if err := svc.Reserve(ctx, id, 1); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	// Releasing more than is outstanding never pushes available past total.
	if err := svc.Release(ctx, id, 5); err != nil {
		t.Fatalf("release: %v", err)
	}
	tr, _ := svc.Get(ctx, id)
	if tr.AvailableSeats != 3 {
		t.Fatalf("available=%d, want clamp at total 3", tr.AvailableSeats)
	}
}

func TestCloseIdempotent(t *testing.T) {
	svc := NewService(newMemRepo(), nil)
	ctx := context.Background()
	id := mustCreateTrip(t, svc, 2)

	if err := svc.Close(ctx, id, StatusCompleted); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := svc.Close(ctx, id, StatusCompleted); err != nil {
		t.Fatalf("repeat close with same status must be a no-op, got %v", err)
	}
	if err := svc.Close(ctx, id, StatusCancelled); !errors.Is(err, ErrTripClosed) {
		t.Fatalf("close with conflicting terminal status: err = %v, want ErrTripClosed", err)
	}
	if err := svc.Close(ctx, id, StatusScheduled); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("close with non-terminal status: err = %v, want ErrBadRequest", err)
	}
}

func TestRecalculateRepairsDrift(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	id := mustCreateTrip(t, svc, 4)

	if err := svc.Reserve(ctx, id, 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	// Corrupt the counter directly, then let Recalculate rebuild it from the
	// booked total.
	repo.mu.Lock()
	repo.trips[id].AvailableSeats = 0
	repo.trips[id].Status = StatusFullyBooked
	repo.mu.Unlock()

	available, err := svc.Recalculate(ctx, id)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if available != 1 {
		t.Fatalf("recalculated available = %d, want 1", available)
	}
	tr, _ := svc.Get(ctx, id)
	if tr.Status != StatusScheduled {
		t.Fatalf("status after repair = %s, want scheduled", tr.Status)
	}
}
