package job

import (
	"context"
	"time"

	"github.com/hashicorp/cronexpr"
)

// defaultRetentionSchedule mirrors repo/maintenance's full-maintenance
// cadence: a sweep every two hours is frequent enough that retention
// never visibly lags behind config.JobRetention, without scanning the
// job table on every request.
const defaultRetentionSchedule = "0 */2 * * *"

// RetentionSweeper periodically prunes terminal jobs older than Retain,
// grounded on repo/maintenance's schedule/safety split (maintenance_schedule_test.go):
// a cron-driven trigger decoupled from the prune logic itself so the two
// can be tested independently.
type RetentionSweeper struct {
	mgr      *Manager
	retain   time.Duration
	schedule *cronexpr.Expression
}

// NewRetentionSweeper builds a sweeper that deletes terminal jobs older
// than retain, waking on schedule (a cronexpr expression: five fields
// from minute to day-of-week, or seven with a leading seconds field and
// a trailing year field; an empty string uses defaultRetentionSchedule).
func NewRetentionSweeper(mgr *Manager, retain time.Duration, schedule string) (*RetentionSweeper, error) {
	if schedule == "" {
		schedule = defaultRetentionSchedule
	}

	expr, err := cronexpr.Parse(schedule)
	if err != nil {
		return nil, err
	}

	return &RetentionSweeper{mgr: mgr, retain: retain, schedule: expr}, nil
}

// Run blocks, sweeping on every schedule tick until ctx is cancelled.
func (s *RetentionSweeper) Run(ctx context.Context) {
	for {
		next := s.schedule.Next(time.Now())
		wait := time.Until(next)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			if n, err := s.mgr.jobs.DeleteOlderThan(ctx, s.retain); err != nil {
				log(ctx).Warnw("retention sweep failed", "error", err)
			} else if n > 0 {
				log(ctx).Infow("retention sweep pruned jobs", "count", n)
			}
		}
	}
}
