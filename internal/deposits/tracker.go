/**
 * @description
 * The Tracker keeps the live countdown for the most recently fetched deposits.
 * A one-second cron sweep recomputes the countdown snapshot while any deposit is
 * still inside its window; once every tracked deposit is terminal the sweep
 * becomes a no-op until the next refetch replaces the set. Stop tears the timer
 * down so no recurring callback outlives the tracker.
 *
 * @dependencies
 * - github.com/robfig/cron/v3: Second-granularity recurring sweep with panic recovery.
 * - log/slog: Structured logging, bridged into the cron runner.
 */

package deposits

import (
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/quetzalbank/banking-gateway/internal/domain"
)

// Tracker maintains the reversal countdown state for a set of deposits.
type Tracker struct {
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
	cron   *cron.Cron

	mu       sync.RWMutex
	deposits []domain.Deposit
	snapshot []Countdown
	active   bool
}

// NewTracker creates a tracker sweeping against the real clock.
func NewTracker(window time.Duration, logger *slog.Logger) *Tracker {
	return NewTrackerWithClock(window, logger, time.Now)
}

// NewTrackerWithClock creates a tracker with an injectable clock. Tests use this
// to step through the window without sleeping.
func NewTrackerWithClock(window time.Duration, logger *slog.Logger, clock func() time.Time) *Tracker {
	if window <= 0 {
		window = DefaultReversalWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = time.Now
	}

	t := &Tracker{window: window, logger: logger, now: clock}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	t.cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cronLogger)))
	if _, err := t.cron.AddFunc("* * * * * *", t.Sweep); err != nil {
		logger.Error("failed to schedule deposit countdown sweep", "error", err)
	}
	return t
}

// Start begins the one-second sweep.
func (t *Tracker) Start() {
	t.cron.Start()
}

// Stop cancels the recurring sweep and waits for an in-flight run to finish.
func (t *Tracker) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
}

// Window returns the reversal window the tracker classifies against.
func (t *Tracker) Window() time.Duration {
	return t.window
}

// SetDeposits replaces the tracked set with a freshly fetched one and recomputes
// the snapshot immediately. The set is replaced wholesale; deposits are never
// mutated in place.
func (t *Tracker) SetDeposits(deps []domain.Deposit) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deposits = append([]domain.Deposit(nil), deps...)
	t.recomputeLocked()
}

// Snapshot returns the latest countdown state, newest deposit first.
func (t *Tracker) Snapshot() []Countdown {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Countdown(nil), t.snapshot...)
}

// Sweep recomputes the snapshot if any tracked deposit is still active. The cron
// runner calls this once per second; when everything is terminal it does nothing
// until SetDeposits introduces fresh work.
func (t *Tracker) Sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return
	}
	t.recomputeLocked()
}

func (t *Tracker) recomputeLocked() {
	now := t.now()
	t.snapshot = Countdowns(t.deposits, t.window, now)

	wasActive := t.active
	t.active = false
	for _, c := range t.snapshot {
		if c.State == StateActive {
			t.active = true
			break
		}
	}
	if wasActive && !t.active {
		t.logger.Debug("all tracked deposits terminal; countdown sweep idle", "deposits", len(t.snapshot))
	}
}
