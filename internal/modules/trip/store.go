// README: Trip store backed by PostgreSQL; seat arithmetic is done in single
// conditional UPDATE statements.
package trip

import (
	"context"
	"errors"
	"fmt"

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

func (s *Store) Create(ctx context.Context, t *Trip) error {
	_, err := pg.Exec(ctx, s.db, `
        INSERT INTO trips (
            id, driver_id, origin, destination,
            total_seats, available_seats, status, travel_estimate, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		string(t.ID),
		string(t.DriverID),
		t.Origin,
		t.Destination,
		t.TotalSeats,
		t.AvailableSeats,
		string(t.Status),
		t.TravelEstimate,
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create trip: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Trip, error) {
	row := pg.QueryRow(ctx, s.db, `
        SELECT id, driver_id, origin, destination,
               total_seats, available_seats, status, travel_estimate, created_at, updated_at
        FROM trips
        WHERE id = $1`, string(id),
	)

	var t Trip
	err := row.Scan(
		&t.ID, &t.DriverID, &t.Origin, &t.Destination,
		&t.TotalSeats, &t.AvailableSeats, &t.Status, &t.TravelEstimate, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trip: %w", err)
	}
	return &t, nil
}

func (s *Store) ReserveSeats(ctx context.Context, id types.ID, seats int) (bool, error) {
	tag, err := pg.Exec(ctx, s.db, `
        UPDATE trips
        SET available_seats = available_seats - $2,
            status = CASE WHEN available_seats - $2 = 0 THEN 'fully_booked' ELSE 'scheduled' END,
            updated_at = NOW()
        WHERE id = $1
          AND status IN ('scheduled', 'fully_booked')
          AND available_seats >= $2`,
		string(id), seats,
	)
	if err != nil {
		return false, fmt.Errorf("reserve seats: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ReleaseSeats(ctx context.Context, id types.ID, seats int) (bool, error) {
	tag, err := pg.Exec(ctx, s.db, `
        UPDATE trips
        SET available_seats = LEAST(available_seats + $2, total_seats),
            status = CASE
                WHEN status IN ('completed', 'cancelled') THEN status
                WHEN LEAST(available_seats + $2, total_seats) = 0 THEN 'fully_booked'
                ELSE 'scheduled'
            END,
            updated_at = NOW()
        WHERE id = $1`,
		string(id), seats,
	)
	if err != nil {
		return false, fmt.Errorf("release seats: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) SetTerminal(ctx context.Context, id types.ID, status Status) (bool, error) {
	tag, err := pg.Exec(ctx, s.db, `
        UPDATE trips
        SET status = $2, updated_at = NOW()
        WHERE id = $1 AND status NOT IN ('completed', 'cancelled')`,
		string(id), string(status),
	)
	if err != nil {
		return false, fmt.Errorf("set terminal status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) RecalculateSeats(ctx context.Context, id types.ID) (int, error) {
	var available int
	err := pg.QueryRow(ctx, s.db, `
        WITH booked AS (
            SELECT COALESCE(SUM(seats), 0) AS n
            FROM bookings
            WHERE trip_id = $1 AND status IN ('pending', 'confirmed', 'enroute', 'completed')
        )
        UPDATE trips t
        SET available_seats = GREATEST(t.total_seats - booked.n, 0),
            status = CASE
                WHEN t.status IN ('completed', 'cancelled') THEN t.status
                WHEN GREATEST(t.total_seats - booked.n, 0) = 0 THEN 'fully_booked'
                ELSE 'scheduled'
            END,
            updated_at = NOW()
        FROM booked
        WHERE t.id = $1
        RETURNING t.available_seats`,
		string(id),
	).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("recalculate seats: %w", err)
	}
	return available, nil
}
