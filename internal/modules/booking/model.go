// README: Booking aggregate and status definitions.
package booking

import (
	"time"

	"ridepool/internal/types"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusEnroute   Status = "enroute"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Booking is a passenger's claim on seats within a trip. Seats are fixed at
// creation; only the status changes afterwards.
type Booking struct {
	ID          types.ID
	TripID      types.ID
	PassengerID types.ID
	DriverID    types.ID
	Seats       int
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Event struct {
	ID         int64
	BookingID  types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the booking state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusEnroute, StatusCompleted, StatusCancelled},
	StatusEnroute:   {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a booking status admits no further transitions.
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ConsumesSeats reports whether a booking in this status holds trip capacity.
// Completed bookings keep their seats consumed; only cancellation frees them.
func ConsumesSeats(s Status) bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusEnroute || s == StatusCompleted
}
