// README: State machine transition-table tests (pure, no database).
package booking

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		// happy-path forward transitions
		{StatusPending, StatusConfirmed, true},
		{StatusConfirmed, StatusEnroute, true},
		{StatusEnroute, StatusCompleted, true},
		// confirmed may complete directly when the trip closes before pickup scan
		{StatusConfirmed, StatusCompleted, true},
		// cancels from every non-terminal state
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusEnroute, StatusCancelled, true},
		// invalid: skipping confirmation
		{StatusPending, StatusEnroute, false},
		{StatusPending, StatusCompleted, false},
		// invalid: terminal states have no outgoing transitions
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusCompleted, false},
		// invalid: backwards
		{StatusConfirmed, StatusPending, false},
		{StatusEnroute, StatusConfirmed, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestConsumesSeats(t *testing.T) {
	consuming := []Status{StatusPending, StatusConfirmed, StatusEnroute, StatusCompleted}
	for _, s := range consuming {
		if !ConsumesSeats(s) {
			t.Errorf("ConsumesSeats(%s) = false, want true", s)
		}
	}
	if ConsumesSeats(StatusCancelled) {
		t.Error("ConsumesSeats(cancelled) = true, want false")
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusEnroute} {
		if IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = true, want false", s)
		}
	}
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		if !IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = false, want true", s)
		}
	}
}
