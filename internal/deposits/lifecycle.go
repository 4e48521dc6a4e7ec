/**
 * @description
 * Deposit reversal-window rules. A deposit is reversible for a fixed window
 * measured from its creation time; after the window elapses, or after an explicit
 * reversal, it is terminal. Everything in this file is pure wall-clock arithmetic:
 * expiry is computed locally against a caller-supplied clock, never fetched.
 *
 * The state machine per deposit:
 *
 *   Active -> Reversed   explicit reversal confirmed by the upstream API
 *   Active -> Expired    the window boundary passes
 *
 * Reversed and Expired are both terminal. The transition to Reversed only ever
 * happens through a server-confirmed refetch; a failed reversal call changes
 * nothing locally.
 */

package deposits

import (
	"math"
	"sort"
	"time"

	"github.com/quetzalbank/banking-gateway/internal/domain"
)

// DefaultReversalWindow is how long a deposit stays reversible after creation.
const DefaultReversalWindow = 60 * time.Second

// State is the lifecycle state of a deposit relative to its reversal window.
type State string

const (
	StateActive   State = "active"
	StateReversed State = "reversed"
	StateExpired  State = "expired"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateReversed || s == StateExpired
}

// SecondsRemaining returns the whole seconds left in the reversal window, floored
// at zero. Elapsed time is floored to whole seconds first, matching the countdown
// the dashboard renders.
func SecondsRemaining(createdAt time.Time, window time.Duration, now time.Time) int64 {
	if window <= 0 {
		window = DefaultReversalWindow
	}
	elapsed := int64(math.Floor(now.Sub(createdAt).Seconds()))
	remaining := int64(window/time.Second) - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ReversalEligible reports whether a reversal request still makes sense: not yet
// reversed and strictly inside the window. The upstream API is the final arbiter;
// this only gates the local countdown display and obvious no-ops.
func ReversalEligible(d domain.Deposit, window time.Duration, now time.Time) bool {
	return !d.Reversed && SecondsRemaining(d.CreatedAt, window, now) > 0
}

// StateOf classifies a deposit. Reversed wins over Expired regardless of elapsed
// time.
func StateOf(d domain.Deposit, window time.Duration, now time.Time) State {
	if d.Reversed {
		return StateReversed
	}
	if SecondsRemaining(d.CreatedAt, window, now) > 0 {
		return StateActive
	}
	return StateExpired
}

// SortNewestFirst returns a new slice ordered by creation time descending,
// independent of reversal state. Ties keep their original relative order and the
// input is never mutated.
func SortNewestFirst(deps []domain.Deposit) []domain.Deposit {
	out := append([]domain.Deposit(nil), deps...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Countdown is one deposit annotated with its live lifecycle state.
type Countdown struct {
	Deposit     domain.Deposit `json:"deposit"`
	State       State          `json:"state"`
	SecondsLeft int64          `json:"secondsLeft"`
}

// Countdowns classifies a collection of deposits at a point in time, newest first.
func Countdowns(deps []domain.Deposit, window time.Duration, now time.Time) []Countdown {
	sorted := SortNewestFirst(deps)
	out := make([]Countdown, 0, len(sorted))
	for _, d := range sorted {
		state := StateOf(d, window, now)
		var left int64
		if state == StateActive {
			left = SecondsRemaining(d.CreatedAt, window, now)
		}
		out = append(out, Countdown{Deposit: d, State: state, SecondsLeft: left})
	}
	return out
}
