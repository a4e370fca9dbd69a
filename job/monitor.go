package job

import (
	"context"
	"time"

	"github.com/imagevault/core/store"
)

// monitorPollInterval and monitorStallLimit implement spec §4.7's
// Composite-job monitor: poll the metadata store every 5s, and stop
// after 12 consecutive polls with no progress (1 minute) so a stalled
// job stops burning a goroutine while leaving its stages as-is for
// operator inspection.
const monitorStallLimit = 12

// monitorPollInterval is a var, not a const, so tests can shrink it
// instead of waiting out the real cadence.
var monitorPollInterval = 5 * time.Second

// SetPollIntervalForTests overrides the monitor's poll cadence. Only
// meant to be called from tests.
func SetPollIntervalForTests(d time.Duration) {
	monitorPollInterval = d
}

// Target reports how many items a monitored stage should eventually
// reach, and how many currently exist, as measured against the
// metadata store rather than against messages in flight.
type Target struct {
	Stage     string
	Completed int
	Total     int
}

// TargetFunc computes the current Target set for a composite job's
// collection, typically by counting materialized thumbnail/cache
// records against the collection's image count.
type TargetFunc func(ctx context.Context, collectionID store.ID) ([]Target, error)

// Monitor polls targetsFor and reconciles job id's stage state against
// it until every stage reaches Completed or the stall limit trips.
func (m *Manager) Monitor(ctx context.Context, id store.ID, collectionID store.ID, targetsFor TargetFunc) {
	stall := 0
	lastTotal := -1

	ticker := time.NewTicker(monitorPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		j, ok, err := m.jobs.Get(ctx, id)
		if err != nil || !ok || j.Cancelled {
			return
		}

		targets, err := targetsFor(ctx, collectionID)
		if err != nil {
			log(ctx).Warnw("monitor poll failed", "job_id", id, "error", err)
			continue
		}

		progressed := 0
		allComplete := true

		for _, t := range targets {
			status := store.StageInProgress
			if t.Total > 0 && t.Completed >= t.Total {
				status = store.StageCompleted
			} else {
				allComplete = false
			}

			if err := m.jobs.UpdateStage(ctx, id, t.Stage, status, t.Completed, t.Total, ""); err != nil {
				log(ctx).Warnw("monitor stage update failed", "job_id", id, "stage", t.Stage, "error", err)
				continue
			}

			progressed += t.Completed
		}

		if progressed == lastTotal {
			stall++
		} else {
			stall = 0
			lastTotal = progressed
		}

		if allComplete {
			_ = m.jobs.UpdateStatus(ctx, id, store.JobCompleted)
			return
		}

		if stall >= monitorStallLimit {
			log(ctx).Warnw("monitor stalled, leaving job in place for inspection", "job_id", id, "polls", stall)
			return
		}
	}
}
