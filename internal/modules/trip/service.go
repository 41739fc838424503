// README: Trip service; the seat ledger lives here and is the only writer of
// available_seats.
package trip

import (
	"context"
	"errors"
	"log"
	"time"

	"ridepool/internal/types"
)

var (
	ErrNotFound          = errors.New("trip not found")
	ErrInsufficientSeats = errors.New("insufficient seats")
	ErrTripClosed        = errors.New("trip is closed")
	ErrBadRequest        = errors.New("bad request")
)

// Repository is the persistence contract for trips. Seat mutations are atomic
// conditional updates: a false return means the precondition did not hold.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, t *Trip) error
	Get(ctx context.Context, id types.ID) (*Trip, error)
	ReserveSeats(ctx context.Context, id types.ID, seats int) (bool, error)
	ReleaseSeats(ctx context.Context, id types.ID, seats int) (bool, error)
	SetTerminal(ctx context.Context, id types.ID, status Status) (bool, error)
	RecalculateSeats(ctx context.Context, id types.ID) (int, error)
}

// Routes estimates travel for a trip's route. Implemented by maps.RouteService.
type Routes interface {
	GetTravelEstimate(ctx context.Context, origin, destination string) (time.Duration, string, error)
}

type Service struct {
	repo   Repository
	routes Routes
}

func NewService(repo Repository, routes Routes) *Service {
	return &Service{repo: repo, routes: routes}
}

type CreateCommand struct {
	DriverID    types.ID
	Origin      string
	Destination string
	TotalSeats  int
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.DriverID == "" || cmd.Origin == "" || cmd.Destination == "" || cmd.TotalSeats <= 0 {
		return "", ErrBadRequest
	}

	estimate := ""
	if s.routes != nil {
		// Display-only; trip creation does not depend on the Maps API being up.
		if _, human, err := s.routes.GetTravelEstimate(ctx, cmd.Origin, cmd.Destination); err == nil {
			estimate = human
		} else {
			log.Printf("travel estimate for %s -> %s unavailable: %v", cmd.Origin, cmd.Destination, err)
		}
	}

	t := &Trip{
		ID:             types.NewID(),
		DriverID:       cmd.DriverID,
		Origin:         cmd.Origin,
		Destination:    cmd.Destination,
		TotalSeats:     cmd.TotalSeats,
		AvailableSeats: cmd.TotalSeats,
		Status:         StatusScheduled,
		TravelEstimate: estimate,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return "", err
	}
	return t.ID, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Trip, error) {
	return s.repo.Get(ctx, id)
}

// Reserve atomically claims seats on a trip. Two concurrent reservations for
// the last seat cannot both succeed: the conditional update serializes them.
func (s *Service) Reserve(ctx context.Context, id types.ID, seats int) error {
	if seats <= 0 {
		return ErrBadRequest
	}
	ok, err := s.repo.ReserveSeats(ctx, id, seats)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	// The update matched no row; read the trip to tell the caller why.
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if IsTerminal(t.Status) {
		return ErrTripClosed
	}
	return ErrInsufficientSeats
}

// Release returns seats to a trip, clamped to the total. Idempotency is the
// booking state machine's responsibility; the ledger adds unconditionally.
func (s *Service) Release(ctx context.Context, id types.ID, seats int) error {
	if seats <= 0 {
		return ErrBadRequest
	}
	ok, err := s.repo.ReleaseSeats(ctx, id, seats)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Close marks the trip with a terminal status. Already-terminal trips are left
// untouched: the same terminal status is an idempotent no-op, a different one
// is rejected.
func (s *Service) Close(ctx context.Context, id types.ID, status Status) error {
	if !IsTerminal(status) {
		return ErrBadRequest
	}
	ok, err := s.repo.SetTerminal(ctx, id, status)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.Status == status {
		return nil
	}
	return ErrTripClosed
}

// Recalculate rebuilds available_seats from the live set of seat-consuming
// bookings. Used for drift detection and repair, not on the hot path.
func (s *Service) Recalculate(ctx context.Context, id types.ID) (int, error) {
	return s.repo.RecalculateSeats(ctx, id)
}

// WithTx exposes the repository transaction so callers can combine ledger
// mutations with their own writes in one atomic unit.
func (s *Service) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.repo.WithTx(ctx, fn)
}
