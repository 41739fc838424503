// README: End-to-end engine test against a real Postgres; skipped unless
// RIDEPOOL_TEST_DSN is set.
package integration

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ridepool/internal/clock"
	"ridepool/internal/modules/booking"
	"ridepool/internal/modules/sanction"
	"ridepool/internal/modules/sweeper"
	"ridepool/internal/modules/trip"
	"ridepool/migrations"
)

type engine struct {
	trip     *trip.Service
	booking  *booking.Service
	sanction *sanction.Service
	sweeper  *sweeper.Service
	db       *pgxpool.Pool
}

func setupEngine(t *testing.T) *engine {
	t.Helper()

	dsn := os.Getenv("RIDEPOOL_TEST_DSN")
	if dsn == "" {
		t.Skip("RIDEPOOL_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := db.Exec(ctx, `TRUNCATE TABLE booking_state_events, bookings, cancellation_events, suspensions, trips`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	clk := clock.NewSystem()
	tripSvc := trip.NewService(trip.NewStore(db), nil)
	sanctionSvc := sanction.NewService(sanction.NewStore(db), clk, sanction.DefaultPolicy(), nil, 0, nil)
	bookingStore := booking.NewStore(db)
	bookingSvc := booking.NewService(bookingStore, tripSvc, sanctionSvc, sanctionSvc, nil, clk)
	sweepSvc := sweeper.NewService(bookingStore, bookingSvc, nil, clk, sweeper.Config{
		StaleAfter: 24 * time.Hour,
		BatchSize:  100,
	})

	return &engine{trip: tripSvc, booking: bookingSvc, sanction: sanctionSvc, sweeper: sweepSvc, db: db}
}

func (e *engine) mustTrip(t *testing.T, seats int) trip.Trip {
	t.Helper()
	ctx := context.Background()
	id, err := e.trip.Create(ctx, trip.CreateCommand{
		DriverID:    "drv1",
		Origin:      "Central Station",
		Destination: "Airport",
		TotalSeats:  seats,
	})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	tr, err := e.trip.Get(ctx, id)
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	return *tr
}

func TestBookingLifecycleEndToEnd(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()
	tr := e.mustTrip(t, 4)

	b, err := e.booking.Create(ctx, booking.CreateCommand{
		TripID:      tr.ID,
		PassengerID: "p1",
		Seats:       2,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}

	got, err := e.trip.Get(ctx, tr.ID)
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	if got.AvailableSeats != 2 {
		t.Fatalf("available = %d, want 2", got.AvailableSeats)
	}

	if _, err := e.booking.Confirm(ctx, booking.ConfirmCommand{BookingID: b.ID}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := e.booking.Start(ctx, booking.StartCommand{BookingID: b.ID}); err != nil {
		t.Fatalf("start: %v", err)
	}

	final, err := e.booking.CompleteTrip(ctx, booking.CompleteTripCommand{TripID: tr.ID})
	if err != nil {
		t.Fatalf("complete trip: %v", err)
	}
	if final.Status != trip.StatusCompleted {
		t.Fatalf("trip status = %s, want completed", final.Status)
	}
	res, err := e.booking.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	if res.Status != booking.StatusCompleted {
		t.Fatalf("booking status = %s, want completed", res.Status)
	}

	// Seats stay consumed after completion.
	got, _ = e.trip.Get(ctx, tr.ID)
	if got.AvailableSeats != 2 {
		t.Fatalf("available = %d after completion, want 2", got.AvailableSeats)
	}
}

func TestSweepReclaimsStalePending(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()
	tr := e.mustTrip(t, 2)

	b, err := e.booking.Create(ctx, booking.CreateCommand{
		TripID:      tr.ID,
		PassengerID: "p_stale",
		Seats:       2,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	// Backdate the booking past the 24h staleness window.
	if _, err := e.db.Exec(ctx, `UPDATE bookings SET created_at = NOW() - INTERVAL '25 hours' WHERE id = $1`, string(b.ID)); err != nil {
		t.Fatalf("backdate booking: %v", err)
	}

	res, err := e.sweeper.RunSweep(ctx)
	if err != nil {
		t.Fatalf("run sweep: %v", err)
	}
	if res.CancelledCount != 1 || len(res.Errors) != 0 {
		t.Fatalf("sweep result = %+v, want one reclaim", res)
	}

	got, _ := e.trip.Get(ctx, tr.ID)
	if got.AvailableSeats != 2 || got.Status != trip.StatusScheduled {
		t.Fatalf("trip after sweep: seats=%d status=%s", got.AvailableSeats, got.Status)
	}
	swept, _ := e.booking.Get(ctx, b.ID)
	if swept.Status != booking.StatusCancelled {
		t.Fatalf("booking status = %s, want cancelled", swept.Status)
	}

	// Sweep cancellations never move the passenger toward suspension.
	count, err := e.sanction.CountCancellations(ctx, "p_stale", sanction.RolePassenger)
	if err != nil {
		t.Fatalf("count cancellations: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0 for system-expired", count)
	}
}

func TestSuspensionAfterRepeatedCancellations(t *testing.T) {
	e := setupEngine(t)
	ctx := context.Background()
	tr := e.mustTrip(t, 4)

	for i := 0; i < 3; i++ {
		b, err := e.booking.Create(ctx, booking.CreateCommand{
			TripID:      tr.ID,
			PassengerID: "p_flaky",
			Seats:       1,
		})
		if err != nil {
			t.Fatalf("create booking %d: %v", i, err)
		}
		if _, err := e.booking.Cancel(ctx, booking.CancelCommand{
			BookingID: b.ID,
			ActorType: "passenger",
		}); err != nil {
			t.Fatalf("cancel booking %d: %v", i, err)
		}
	}

	suspended, err := e.sanction.IsSuspended(ctx, "p_flaky")
	if err != nil {
		t.Fatalf("is suspended: %v", err)
	}
	if !suspended {
		t.Fatal("three user cancellations inside the window must suspend")
	}

	// Suspended passenger is rejected on the next attempt.
	_, err = e.booking.Create(ctx, booking.CreateCommand{
		TripID:      tr.ID,
		PassengerID: "p_flaky",
		Seats:       1,
	})
	if !errors.Is(err, booking.ErrSuspended) {
		t.Fatalf("err = %v, want ErrSuspended", err)
	}
}
