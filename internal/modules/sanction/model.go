// README: Cancellation-event log entries and the per-user suspension flag.
package sanction

import (
	"time"

	"ridepool/internal/types"
)

type Role string

const (
	RoleDriver    Role = "driver"
	RolePassenger Role = "passenger"
)

// Attribution distinguishes cancellations a user asked for from those the
// expiration sweep produced. Whether the latter count toward suspension is a
// policy switch, not an accident.
type Attribution string

const (
	AttributionUser    Attribution = "user-initiated"
	AttributionExpired Attribution = "system-expired"
)

// CancellationEvent is an immutable log entry. Events are retained well past
// the evaluation window so late queries still resolve.
type CancellationEvent struct {
	ID          int64
	UserID      types.ID
	Role        Role
	BookingID   types.ID
	Attribution Attribution
	CreatedAt   time.Time
}

// SuspensionState is set by this tracker and cleared only by an explicit
// administrative action.
type SuspensionState struct {
	UserID      types.ID
	IsSuspended bool
	Reason      string
	SuspendedAt *time.Time
}
