// README: Cancellation tracker; counts events over a trailing window and
// raises the suspension flag when the threshold is crossed.
package sanction

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"ridepool/internal/clock"
	"ridepool/internal/types"
)

var ErrBadRequest = errors.New("bad request")

const suspensionReason = "exceeded cancellation threshold"

// Repository is the persistence contract for cancellation events and
// suspension state.
type Repository interface {
	AppendEvent(ctx context.Context, e *CancellationEvent) error
	CountEvents(ctx context.Context, userID types.ID, role Role, since time.Time, includeExpired bool) (int, error)
	GetSuspension(ctx context.Context, userID types.ID) (*SuspensionState, error)
	Suspend(ctx context.Context, userID types.ID, reason string, at time.Time) error
}

// Notifier publishes warning and suspension events for downstream dispatch.
type Notifier interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Policy controls the suspension rule. CountSystemExpired decides whether
// sweep-expired cancellations count toward the threshold; the default keeps
// them out of the count.
type Policy struct {
	WindowDays         int
	Threshold          int
	CountSystemExpired bool
}

func DefaultPolicy() Policy {
	return Policy{WindowDays: 15, Threshold: 3}
}

type Service struct {
	repo     Repository
	clock    clock.Clock
	policy   Policy
	cache    *redis.Client
	cacheTTL time.Duration
	notifier Notifier
}

// NewService builds the tracker. cache may be nil; the Postgres row stays
// authoritative either way.
func NewService(repo Repository, clk clock.Clock, policy Policy, cache *redis.Client, cacheTTL time.Duration, notifier Notifier) *Service {
	if policy.WindowDays <= 0 {
		policy.WindowDays = DefaultPolicy().WindowDays
	}
	if policy.Threshold <= 0 {
		policy.Threshold = DefaultPolicy().Threshold
	}
	return &Service{repo: repo, clock: clk, policy: policy, cache: cache, cacheTTL: cacheTTL, notifier: notifier}
}

// RecordCancellation appends an event and re-evaluates the user's suspension
// state. Runs inside the caller's transaction when one is in the context.
func (s *Service) RecordCancellation(ctx context.Context, userID types.ID, role Role, bookingID types.ID, attribution Attribution) error {
	if userID == "" || bookingID == "" {
		return ErrBadRequest
	}
	e := &CancellationEvent{
		UserID:      userID,
		Role:        role,
		BookingID:   bookingID,
		Attribution: attribution,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.AppendEvent(ctx, e); err != nil {
		return err
	}
	if attribution == AttributionExpired && !s.policy.CountSystemExpired {
		// Expired cancellations are logged but do not move the user toward
		// suspension under the default policy.
		return nil
	}
	return s.EvaluateSuspension(ctx, userID, role)
}

// CountCancellations returns the number of counting events for the user/role
// within the trailing policy window ending now.
func (s *Service) CountCancellations(ctx context.Context, userID types.ID, role Role) (int, error) {
	since := s.clock.Now().AddDate(0, 0, -s.policy.WindowDays)
	return s.repo.CountEvents(ctx, userID, role, since, s.policy.CountSystemExpired)
}

// EvaluateSuspension recomputes the windowed count and applies the threshold
// rule. An already-suspended user stays suspended; this engine never clears
// the flag.
func (s *Service) EvaluateSuspension(ctx context.Context, userID types.ID, role Role) error {
	count, err := s.CountCancellations(ctx, userID, role)
	if err != nil {
		return err
	}

	switch {
	case count >= s.policy.Threshold:
		now := s.clock.Now()
		if err := s.repo.Suspend(ctx, userID, suspensionReason, now); err != nil {
			return err
		}
		s.setCachedFlag(ctx, userID, true)
		s.publish(ctx, "user.suspended", map[string]any{
			"user_id": userID, "role": role, "reason": suspensionReason, "count": count,
		})
	case count == s.policy.Threshold-1:
		s.publish(ctx, "user.cancellation_warning", map[string]any{
			"user_id": userID, "role": role, "severity": "severe", "count": count,
		})
	case count > 0:
		s.publish(ctx, "user.cancellation_warning", map[string]any{
			"user_id": userID, "role": role, "severity": "info", "count": count,
		})
	}
	return nil
}

// IsSuspended checks the cached flag first and falls back to the store.
func (s *Service) IsSuspended(ctx context.Context, userID types.ID) (bool, error) {
	if userID == "" {
		return false, ErrBadRequest
	}
	if s.cache != nil {
		val, err := s.cache.Get(ctx, suspensionKey(userID)).Result()
		if err == nil {
			return val == "1", nil
		}
		if err != redis.Nil {
			log.Printf("suspension cache read for %s: %v", userID, err)
		}
	}

	st, err := s.repo.GetSuspension(ctx, userID)
	if err != nil {
		return false, err
	}
	suspended := st != nil && st.IsSuspended
	s.setCachedFlag(ctx, userID, suspended)
	return suspended, nil
}

// GetSuspension returns the authoritative suspension row, nil when the user
// has never been flagged.
func (s *Service) GetSuspension(ctx context.Context, userID types.ID) (*SuspensionState, error) {
	return s.repo.GetSuspension(ctx, userID)
}

func (s *Service) setCachedFlag(ctx context.Context, userID types.ID, suspended bool) {
	if s.cache == nil {
		return
	}
	val := "0"
	if suspended {
		val = "1"
	}
	if err := s.cache.Set(ctx, suspensionKey(userID), val, s.cacheTTL).Err(); err != nil {
		log.Printf("suspension cache write for %s: %v", userID, err)
	}
}

func (s *Service) publish(ctx context.Context, key string, payload any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, key, payload); err != nil {
		log.Printf("publish %s: %v", key, err)
	}
}

func suspensionKey(userID types.ID) string {
	return fmt.Sprintf("sanction:suspended:%s", string(userID))
}
