// README: Booking store backed by PostgreSQL; status changes are conditional
// updates keyed on the expected current status.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridepool/internal/storage/pg"
	"ridepool/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return pg.WithTx(ctx, s.db, fn)
}

func (s *Store) Create(ctx context.Context, b *Booking) error {
	_, err := pg.Exec(ctx, s.db, `
        INSERT INTO bookings (
            id, trip_id, passenger_id, driver_id, seats, status, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(b.ID),
		string(b.TripID),
		string(b.PassengerID),
		string(b.DriverID),
		b.Seats,
		string(b.Status),
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Booking, error) {
	row := pg.QueryRow(ctx, s.db, `
        SELECT id, trip_id, passenger_id, driver_id, seats, status, created_at, updated_at
        FROM bookings
        WHERE id = $1`, string(id),
	)

	var b Booking
	err := row.Scan(&b.ID, &b.TripID, &b.PassengerID, &b.DriverID, &b.Seats, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &b, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, at time.Time) (bool, error) {
	tag, err := pg.Exec(ctx, s.db, `
        UPDATE bookings
        SET status = $1, updated_at = $2
        WHERE id = $3 AND status = $4`,
		string(to), at, string(id), string(from),
	)
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListActiveByTrip(ctx context.Context, tripID types.ID) ([]Booking, error) {
	rows, err := pg.Query(ctx, s.db, `
        SELECT id, trip_id, passenger_id, driver_id, seats, status, created_at, updated_at
        FROM bookings
        WHERE trip_id = $1 AND status IN ('pending', 'confirmed', 'enroute')
        ORDER BY created_at`, string(tripID),
	)
	if err != nil {
		return nil, fmt.Errorf("list active bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (s *Store) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]Booking, error) {
	rows, err := pg.Query(ctx, s.db, `
        SELECT id, trip_id, passenger_id, driver_id, seats, status, created_at, updated_at
        FROM bookings
        WHERE status = 'pending' AND created_at < $1
        ORDER BY created_at
        LIMIT $2`, olderThan, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list stale pending bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	var actorID *string
	if e.ActorID != nil {
		v := string(*e.ActorID)
		actorID = &v
	}
	_, err := pg.Exec(ctx, s.db, `
        INSERT INTO booking_state_events (
            booking_id, from_status, to_status, actor_type, actor_id, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.BookingID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		actorID,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append booking event: %w", err)
	}
	return nil
}

func scanBookings(rows pgx.Rows) ([]Booking, error) {
	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.TripID, &b.PassengerID, &b.DriverID, &b.Seats, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
