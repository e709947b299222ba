package session

import (
	"context"
	"time"

	"github.com/entrhq/websearcher/pkg/logging"
)

// DefaultReapInterval is the sweep cadence used when none is configured.
// The cadence is a tunable, not a correctness parameter.
const DefaultReapInterval = 60 * time.Second

// Reaper periodically evicts sessions that have been idle past their
// timeout. A session that is mid-query is never evicted, no matter how old
// its last activity is.
type Reaper struct {
	manager  *Manager
	interval time.Duration
	logger   *logging.Logger
}

// NewReaper creates a reaper sweeping at the given interval. A
// non-positive interval falls back to DefaultReapInterval.
func NewReaper(manager *Manager, interval time.Duration, logger *logging.Logger) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	return &Reaper{
		manager:  manager,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps until ctx is cancelled. It is intended to run on its own
// goroutine for the lifetime of the service.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Infof("reaper started (interval %s)", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Infof("reaper stopped")
			return
		case now := <-ticker.C:
			if evicted := r.Sweep(now); evicted > 0 {
				r.logger.Infof("reaper evicted %d expired session(s)", evicted)
			}
		}
	}
}

// Sweep runs one eviction pass over a store snapshot and returns the
// number of sessions evicted. Candidates are filtered on the snapshot and
// re-validated atomically before removal, so sessions created, closed, or
// set processing during the sweep are handled correctly: a record that
// vanished in the meantime is simply skipped.
func (r *Reaper) Sweep(now time.Time) int {
	evicted := 0
	for _, rec := range r.manager.Store().Snapshot() {
		if rec.Status == StatusProcessing || !rec.Expired(now) {
			continue
		}
		if r.manager.evictIfExpired(rec.ID, now) {
			evicted++
		}
	}
	return evicted
}
