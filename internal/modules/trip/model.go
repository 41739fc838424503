// README: Trip aggregate; seat counts are owned by the ledger in this package.
package trip

import (
	"time"

	"ridepool/internal/types"
)

type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusFullyBooked Status = "fully_booked"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

type Trip struct {
	ID             types.ID
	DriverID       types.ID
	Origin         string
	Destination    string
	TotalSeats     int
	AvailableSeats int
	Status         Status
	TravelEstimate string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsTerminal reports whether the status is one the trip never leaves.
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled
}

// DeriveStatus computes the displayed trip status from the seat count. A
// terminal driver action always wins; otherwise the status is a pure function
// of the available-seat count.
func DeriveStatus(available, total int, terminal Status) Status {
	if IsTerminal(terminal) {
		return terminal
	}
	if available == 0 && total > 0 {
		return StatusFullyBooked
	}
	return StatusScheduled
}
