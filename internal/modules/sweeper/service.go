// README: Expiration sweeper; cancels stale pending bookings through the
// booking state machine so seat reclamation follows the shared rules.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"ridepool/internal/clock"
	"ridepool/internal/modules/booking"
	"ridepool/internal/modules/sanction"
	"ridepool/internal/types"
)

// Canceler is the booking-service slice the sweeper drives. It never bypasses
// the state machine, so concurrent user cancellations are harmless.
type Canceler interface {
	Cancel(ctx context.Context, cmd booking.CancelCommand) (*booking.Booking, error)
}

// Source lists candidate bookings for expiry.
type Source interface {
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]booking.Booking, error)
}

// Notifier publishes a sweep summary for operators.
type Notifier interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type Config struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

type SweepError struct {
	BookingID types.ID
	Err       error
}

func (e SweepError) Error() string {
	return fmt.Sprintf("booking %s: %v", e.BookingID, e.Err)
}

type Result struct {
	CancelledCount int
	Errors         []SweepError
}

type Service struct {
	source   Source
	canceler Canceler
	notifier Notifier
	clock    clock.Clock
	cfg      Config
}

func NewService(source Source, canceler Canceler, notifier Notifier, clk clock.Clock, cfg Config) *Service {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	return &Service{source: source, canceler: canceler, notifier: notifier, clock: clk, cfg: cfg}
}

// RunSweep cancels every pending booking older than the staleness window.
// Each booking is processed independently: one failure is recorded and the
// batch continues.
func (s *Service) RunSweep(ctx context.Context) (Result, error) {
	cutoff := s.clock.Now().Add(-s.cfg.StaleAfter)
	stale, err := s.source.ListStalePending(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		return Result{}, fmt.Errorf("list stale bookings: %w", err)
	}

	var res Result
	for _, b := range stale {
		_, err := s.canceler.Cancel(ctx, booking.CancelCommand{
			BookingID:   b.ID,
			ActorType:   "system",
			Reason:      "expired",
			Attribution: sanction.AttributionExpired,
		})
		if err != nil {
			// A booking that raced into a terminal state under us reports
			// ErrInvalidState; the seats are already settled, skip it.
			if errors.Is(err, booking.ErrInvalidState) {
				continue
			}
			res.Errors = append(res.Errors, SweepError{BookingID: b.ID, Err: err})
			continue
		}
		res.CancelledCount++
	}

	if s.notifier != nil && (res.CancelledCount > 0 || len(res.Errors) > 0) {
		payload := map[string]any{
			"cancelled": res.CancelledCount,
			"errors":    len(res.Errors),
			"cutoff":    cutoff,
		}
		if err := s.notifier.Publish(ctx, "sweep.completed", payload); err != nil {
			log.Printf("publish sweep.completed: %v", err)
		}
	}
	return res, nil
}

// RunTicker runs sweeps on the configured interval until the context ends.
func (s *Service) RunTicker(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := s.RunSweep(ctx)
			if err != nil {
				log.Printf("sweep failed: %v", err)
				continue
			}
			if res.CancelledCount > 0 || len(res.Errors) > 0 {
				log.Printf("sweep cancelled %d stale bookings (%d errors)", res.CancelledCount, len(res.Errors))
			}
		}
	}
}
