// README: Booking service implements the lifecycle state machine; every seat
// mutation goes through the trip ledger inside the same transaction.
package booking

import (
	"context"
	"errors"
	"log"
	"time"

	"ridepool/internal/clock"
	"ridepool/internal/modules/sanction"
	"ridepool/internal/modules/trip"
	"ridepool/internal/types"
)

var (
	ErrNotFound     = errors.New("booking not found")
	ErrInvalidState = errors.New("invalid state transition")
	ErrSuspended    = errors.New("user is suspended")
	ErrConflict     = errors.New("booking state conflict")
	ErrTransient    = errors.New("transient conflict, retry")
	ErrBadRequest   = errors.New("bad request")
)

// maxAttempts bounds the retry loop around optimistic-concurrency misses
// before they surface as ErrTransient.
const maxAttempts = 3

// Repository is the persistence contract for bookings. UpdateStatus is a
// conditional write: false means the booking was no longer in `from`.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id types.ID) (*Booking, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, at time.Time) (bool, error)
	ListActiveByTrip(ctx context.Context, tripID types.ID) ([]Booking, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]Booking, error)
	AppendEvent(ctx context.Context, e *Event) error
}

// SeatLedger is the slice of the trip service the state machine needs. Only
// the ledger touches available_seats.
type SeatLedger interface {
	Get(ctx context.Context, id types.ID) (*trip.Trip, error)
	Reserve(ctx context.Context, id types.ID, seats int) error
	Release(ctx context.Context, id types.ID, seats int) error
	Close(ctx context.Context, id types.ID, status trip.Status) error
}

// SuspensionGate answers whether a user may create new bookings.
type SuspensionGate interface {
	IsSuspended(ctx context.Context, userID types.ID) (bool, error)
}

// CancellationSink observes cancellations for the suspension policy.
type CancellationSink interface {
	RecordCancellation(ctx context.Context, userID types.ID, role sanction.Role, bookingID types.ID, attribution sanction.Attribution) error
}

// Notifier publishes lifecycle events for downstream dispatch; never awaited.
type Notifier interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type Service struct {
	repo     Repository
	ledger   SeatLedger
	gate     SuspensionGate
	sink     CancellationSink
	notifier Notifier
	clock    clock.Clock
}

func NewService(repo Repository, ledger SeatLedger, gate SuspensionGate, sink CancellationSink, notifier Notifier, clk clock.Clock) *Service {
	return &Service{repo: repo, ledger: ledger, gate: gate, sink: sink, notifier: notifier, clock: clk}
}

type CreateCommand struct {
	TripID      types.ID
	PassengerID types.ID
	Seats       int
}

type ConfirmCommand struct {
	BookingID types.ID
}

type StartCommand struct {
	BookingID types.ID
}

type CancelCommand struct {
	BookingID   types.ID
	ActorType   string // "passenger", "driver" or "system"
	Reason      string
	Attribution sanction.Attribution
}

type CompleteCommand struct {
	BookingID types.ID
}

type CompleteTripCommand struct {
	TripID types.ID
}

type CancelTripCommand struct {
	TripID types.ID
	Reason string
}

// Create reserves seats and persists the pending booking in one atomic unit.
// Suspended passengers are rejected before the ledger is touched.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Booking, error) {
	if cmd.TripID == "" || cmd.PassengerID == "" {
		return nil, ErrBadRequest
	}
	if cmd.Seats <= 0 {
		return nil, ErrBadRequest
	}

	suspended, err := s.gate.IsSuspended(ctx, cmd.PassengerID)
	if err != nil {
		return nil, err
	}
	if suspended {
		return nil, ErrSuspended
	}

	t, err := s.ledger.Get(ctx, cmd.TripID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	b := &Booking{
		ID:          types.NewID(),
		TripID:      cmd.TripID,
		PassengerID: cmd.PassengerID,
		DriverID:    t.DriverID,
		Seats:       cmd.Seats,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.ledger.Reserve(txCtx, cmd.TripID, cmd.Seats); err != nil {
			return err
		}
		return s.repo.Create(txCtx, b)
	})
	if err != nil {
		return nil, err
	}

	s.appendEvent(ctx, b.ID, StatusNone, StatusPending, "passenger", &cmd.PassengerID)
	s.publish(ctx, "booking.created", b)
	return b, nil
}

// Confirm moves a pending booking to confirmed. Seats were already reserved
// at creation, so the ledger is not involved.
func (s *Service) Confirm(ctx context.Context, cmd ConfirmCommand) (*Booking, error) {
	b, err := s.transition(ctx, cmd.BookingID, StatusConfirmed, "driver", nil)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "booking.confirmed", b)
	return b, nil
}

// Start marks a confirmed booking enroute at trip start.
func (s *Service) Start(ctx context.Context, cmd StartCommand) (*Booking, error) {
	b, err := s.transition(ctx, cmd.BookingID, StatusEnroute, "driver", nil)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "booking.started", b)
	return b, nil
}

// Cancel releases the booking's seats and records a cancellation event, all
// in one transaction. Idempotent: cancelling a cancelled booking returns it
// unchanged without touching the ledger again.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Booking, error) {
	if cmd.Attribution == "" {
		cmd.Attribution = sanction.AttributionUser
	}

	b, err := s.transition(ctx, cmd.BookingID, StatusCancelled, cmd.ActorType, func(txCtx context.Context, b *Booking) error {
		if err := s.ledger.Release(txCtx, b.TripID, b.Seats); err != nil {
			return err
		}
		userID, role := b.PassengerID, sanction.RolePassenger
		if cmd.ActorType == "driver" {
			userID, role = b.DriverID, sanction.RoleDriver
		}
		return s.sink.RecordCancellation(txCtx, userID, role, b.ID, cmd.Attribution)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "booking.cancelled", b)
	return b, nil
}

// CompleteBooking completes a single booking; its seats stay consumed.
// Idempotent for already-completed bookings.
func (s *Service) CompleteBooking(ctx context.Context, cmd CompleteCommand) (*Booking, error) {
	b, err := s.transition(ctx, cmd.BookingID, StatusCompleted, "driver", nil)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, "booking.completed", b)
	return b, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Booking, error) {
	if id == "" {
		return nil, ErrBadRequest
	}
	return s.repo.Get(ctx, id)
}

// CompleteTrip cascades completion to every non-terminal booking on the trip
// and marks the trip completed. Confirmed and enroute bookings complete;
// pendings that never got driver acceptance are cancelled and their seats
// released. Idempotent.
func (s *Service) CompleteTrip(ctx context.Context, cmd CompleteTripCommand) (*trip.Trip, error) {
	if cmd.TripID == "" {
		return nil, ErrBadRequest
	}
	t, err := s.ledger.Get(ctx, cmd.TripID)
	if err != nil {
		return nil, err
	}
	alreadyClosed := trip.IsTerminal(t.Status)
	if err := s.cascade(ctx, cmd.TripID, trip.StatusCompleted, ""); err != nil {
		return nil, err
	}
	if t, err = s.ledger.Get(ctx, cmd.TripID); err != nil {
		return nil, err
	}
	if !alreadyClosed {
		s.publish(ctx, "trip.completed", t)
	}
	return t, nil
}

// CancelTrip is the driver abandoning the whole trip: every non-terminal
// booking is cancelled with its seats released, the trip goes terminal, and a
// single driver-role cancellation event is recorded.
func (s *Service) CancelTrip(ctx context.Context, cmd CancelTripCommand) (*trip.Trip, error) {
	if cmd.TripID == "" {
		return nil, ErrBadRequest
	}
	t, err := s.ledger.Get(ctx, cmd.TripID)
	if err != nil {
		return nil, err
	}
	alreadyClosed := trip.IsTerminal(t.Status)

	// On an idempotent retry of an already-cancelled trip the driver event
	// must not be recorded a second time.
	driverID := t.DriverID
	if alreadyClosed {
		driverID = ""
	}
	if err := s.cascade(ctx, cmd.TripID, trip.StatusCancelled, driverID); err != nil {
		return nil, err
	}
	if t, err = s.ledger.Get(ctx, cmd.TripID); err != nil {
		return nil, err
	}
	if !alreadyClosed {
		s.publish(ctx, "trip.cancelled", t)
	}
	return t, nil
}

// cascade drives every non-terminal booking on the trip to its terminal state
// and closes the trip, retrying the whole unit on concurrent interference.
func (s *Service) cascade(ctx context.Context, tripID types.ID, target trip.Status, driverID types.ID) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
			active, err := s.repo.ListActiveByTrip(txCtx, tripID)
			if err != nil {
				return err
			}
			now := s.clock.Now()
			for i := range active {
				b := &active[i]
				to := StatusCancelled
				if target == trip.StatusCompleted && (b.Status == StatusConfirmed || b.Status == StatusEnroute) {
					to = StatusCompleted
				}
				ok, err := s.repo.UpdateStatus(txCtx, b.ID, b.Status, to, now)
				if err != nil {
					return err
				}
				if !ok {
					return ErrConflict
				}
				if to == StatusCancelled {
					if err := s.ledger.Release(txCtx, tripID, b.Seats); err != nil {
						return err
					}
					// Bookings torn down by a trip-level action are logged
					// against the passenger but never count toward their
					// suspension threshold.
					if err := s.sink.RecordCancellation(txCtx, b.PassengerID, sanction.RolePassenger, b.ID, sanction.AttributionExpired); err != nil {
						return err
					}
				}
			}
			if err := s.ledger.Close(txCtx, tripID, target); err != nil {
				return err
			}
			if target == trip.StatusCancelled && driverID != "" {
				// One driver event per trip cancellation, not per booking.
				return s.sink.RecordCancellation(txCtx, driverID, sanction.RoleDriver, tripID, sanction.AttributionUser)
			}
			return nil
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}
		lastErr = err
	}
	log.Printf("cascade on trip %s exhausted retries: %v", tripID, lastErr)
	return ErrTransient
}

// transition drives one booking to `to` with optimistic concurrency. extra,
// when non-nil, runs inside the same transaction as the status flip. A
// booking already in the requested terminal state is returned as-is.
func (s *Service) transition(ctx context.Context, id types.ID, to Status, actorType string, extra func(ctx context.Context, b *Booking) error) (*Booking, error) {
	if id == "" {
		return nil, ErrBadRequest
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		b, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if b.Status == to && IsTerminal(to) {
			// Idempotent retry of a terminal transition: success, no ledger call.
			return b, nil
		}
		if !CanTransition(b.Status, to) {
			return nil, ErrInvalidState
		}

		from := b.Status
		now := s.clock.Now()
		err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
			ok, err := s.repo.UpdateStatus(txCtx, id, from, to, now)
			if err != nil {
				return err
			}
			if !ok {
				return ErrConflict
			}
			if extra != nil {
				return extra(txCtx, b)
			}
			return nil
		})
		if err == nil {
			b.Status = to
			b.UpdatedAt = now
			var actorID *types.ID
			switch actorType {
			case "passenger":
				actorID = &b.PassengerID
			case "driver":
				actorID = &b.DriverID
			}
			s.appendEvent(ctx, b.ID, from, to, actorType, actorID)
			return b, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		// Someone else moved the booking; re-read and re-evaluate.
	}
	return nil, ErrTransient
}

func (s *Service) appendEvent(ctx context.Context, bookingID types.ID, from, to Status, actorType string, actorID *types.ID) {
	_ = s.repo.AppendEvent(ctx, &Event{
		BookingID:  bookingID,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    actorID,
		CreatedAt:  s.clock.Now(),
	})
}

func (s *Service) publish(ctx context.Context, key string, payload any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, key, payload); err != nil {
		log.Printf("publish %s: %v", key, err)
	}
}
