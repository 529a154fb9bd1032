// Package retention purges recycle-bin entries older than a maximum age on
// a cron schedule.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Purger drops recycle-bin entries deleted before cutoff and reports how
// many it removed.
type Purger interface {
	PurgeDeletedBefore(cutoff time.Time) int
}

// Job runs the purge on a schedule.
type Job struct {
	purger Purger
	maxAge time.Duration
	logger *slog.Logger
	now    func() time.Time
	cron   *cron.Cron
}

// New parses a standard five-field cron schedule and builds the job.
func New(purger Purger, schedule string, maxAge time.Duration, logger *slog.Logger) (*Job, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("retention: max age must be positive, got %s", maxAge)
	}
	j := &Job{purger: purger, maxAge: maxAge, logger: logger, now: time.Now}
	j.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := j.cron.AddFunc(schedule, func() { j.RunOnce() }); err != nil {
		return nil, fmt.Errorf("retention: schedule %q: %w", schedule, err)
	}
	return j, nil
}

// RunOnce purges everything past the max age now.
func (j *Job) RunOnce() int {
	cutoff := j.now().Add(-j.maxAge)
	n := j.purger.PurgeDeletedBefore(cutoff)
	if n > 0 {
		j.logger.Info("retention: purged recycle bin",
			slog.Int("count", n),
			slog.Time("cutoff", cutoff))
	}
	return n
}

// Run starts the scheduler and blocks until ctx is done, then waits for a
// running purge to finish.
func (j *Job) Run(ctx context.Context) error {
	j.cron.Start()
	j.logger.Info("retention: started", slog.Duration("max_age", j.maxAge))
	<-ctx.Done()
	<-j.cron.Stop().Done()
	j.logger.Info("retention: stopped")
	return nil
}
