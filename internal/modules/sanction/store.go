// README: Cancellation-event and suspension store backed by PostgreSQL.
package sanction

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

func (s *Store) AppendEvent(ctx context.Context, e *CancellationEvent) error {
	_, err := pg.Exec(ctx, s.db, `
        INSERT INTO cancellation_events (user_id, role, booking_id, attribution, created_at)
        VALUES ($1, $2, $3, $4, $5)`,
		string(e.UserID),
		string(e.Role),
		string(e.BookingID),
		string(e.Attribution),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append cancellation event: %w", err)
	}
	return nil
}

func (s *Store) CountEvents(ctx context.Context, userID types.ID, role Role, since time.Time, includeExpired bool) (int, error) {
	query := `
        SELECT COUNT(*)
        FROM cancellation_events
        WHERE user_id = $1 AND role = $2 AND created_at >= $3`
	args := []any{string(userID), string(role), since}
	if !includeExpired {
		query += ` AND attribution = $4`
		args = append(args, string(AttributionUser))
	}

	var count int
	if err := pg.QueryRow(ctx, s.db, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count cancellation events: %w", err)
	}
	return count, nil
}

func (s *Store) GetSuspension(ctx context.Context, userID types.ID) (*SuspensionState, error) {
	var st SuspensionState
	err := pg.QueryRow(ctx, s.db, `
        SELECT user_id, is_suspended, reason, suspended_at
        FROM suspensions
        WHERE user_id = $1`, string(userID),
	).Scan(&st.UserID, &st.IsSuspended, &st.Reason, &st.SuspendedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get suspension: %w", err)
	}
	return &st, nil
}

func (s *Store) Suspend(ctx context.Context, userID types.ID, reason string, at time.Time) error {
	// Once suspended, the row is frozen until an administrator clears it.
	_, err := pg.Exec(ctx, s.db, `
        INSERT INTO suspensions (user_id, is_suspended, reason, suspended_at)
        VALUES ($1, TRUE, $2, $3)
        ON CONFLICT (user_id) DO UPDATE
        SET is_suspended = TRUE,
            reason = EXCLUDED.reason,
            suspended_at = COALESCE(suspensions.suspended_at, EXCLUDED.suspended_at)`,
		string(userID), reason, at,
	)
	if err != nil {
		return fmt.Errorf("suspend user: %w", err)
	}
	return nil
}
