package job

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/imagevault/core/logging"
	"github.com/imagevault/core/store"
)

var log = logging.Module("imagevault/job")

var (
	jobsActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "imagevault",
		Subsystem: "job",
		Name:      "active",
		Help:      "Number of jobs currently InProgress, by kind.",
	}, []string{"kind"})

	stageCompletedItems = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "imagevault",
		Subsystem: "job",
		Name:      "stage_completed_items",
		Help:      "completed_items for the most recently updated stage, by job id and stage name.",
	}, []string{"job_id", "stage"})
)

func init() {
	prometheus.MustRegister(jobsActive, stageCompletedItems)
}

// Manager drives job lifecycle transitions against the metadata store's
// Jobs() facade (C9), mirroring internal/uitask's "a manager wrapping a
// store of tasks, driven by explicit Start/Advance/Finish calls" shape.
type Manager struct {
	jobs store.JobStore
}

// New builds a Manager backed by jobs.
func New(jobs store.JobStore) *Manager {
	return &Manager{jobs: jobs}
}

// Submit creates j and returns its id. The job starts Pending; Start
// transitions it to InProgress on first stage activity.
func (m *Manager) Submit(ctx context.Context, j store.Job) (store.ID, error) {
	now := time.Now()
	j.CreatedAt = now
	j.UpdatedAt = now

	id, err := m.jobs.Create(ctx, j)
	if err != nil {
		return "", errors.Wrap(err, "submitting job")
	}

	jobsActive.WithLabelValues(string(j.Kind)).Inc()

	return id, nil
}

// Start transitions a Pending job to InProgress. It is idempotent: a job
// already InProgress or terminal is left unchanged.
func (m *Manager) Start(ctx context.Context, id store.ID) error {
	j, ok, err := m.jobs.Get(ctx, id)
	if err != nil {
		return errors.Wrap(err, "loading job")
	}

	if !ok {
		return errors.Errorf("job %q not found", id)
	}

	if j.Status != store.JobPending {
		return nil
	}

	return m.jobs.UpdateStatus(ctx, id, store.JobInProgress)
}

// AdvanceStage records progress on one stage of job id, short-circuiting
// if the job has been cancelled (spec §4.7 "Cancellation").
func (m *Manager) AdvanceStage(ctx context.Context, id store.ID, stage string, status store.StageStatus, completed, total int, message string) error {
	j, ok, err := m.jobs.Get(ctx, id)
	if err != nil {
		return errors.Wrap(err, "loading job")
	}

	if !ok {
		return errors.Errorf("job %q not found", id)
	}

	if j.Cancelled {
		log(ctx).Debugw("job cancelled, skipping stage update", "job_id", id, "stage", stage)
		return nil
	}

	if err := m.jobs.UpdateStage(ctx, id, stage, status, completed, total, message); err != nil {
		return errors.Wrap(err, "advancing stage")
	}

	stageCompletedItems.WithLabelValues(string(id), stage).Set(float64(completed))

	return m.maybeComplete(ctx, id)
}

// RecordError appends an item-level failure to job id's error log (spec
// §7: "{item, message}, no stack traces").
func (m *Manager) RecordError(ctx context.Context, id store.ID, item string, cause error) error {
	return m.jobs.AppendError(ctx, id, store.JobError{Item: item, Message: cause.Error()})
}

// maybeComplete promotes a job to Completed once every stage reports
// Completed with completed_items >= total_items (spec §3's Job
// invariant).
func (m *Manager) maybeComplete(ctx context.Context, id store.ID) error {
	j, ok, err := m.jobs.Get(ctx, id)
	if err != nil || !ok {
		return err
	}

	if len(j.Stages) == 0 {
		return nil
	}

	for _, s := range j.Stages {
		if s.Status != store.StageCompleted || s.CompletedItems < s.TotalItems {
			return nil
		}
	}

	jobsActive.WithLabelValues(string(j.Kind)).Dec()

	return m.jobs.UpdateStatus(ctx, id, store.JobCompleted)
}

// Fail marks job id Failed, recording cause as its final error log entry.
func (m *Manager) Fail(ctx context.Context, id store.ID, cause error) error {
	if err := m.jobs.AppendError(ctx, id, store.JobError{Item: "job", Message: cause.Error()}); err != nil {
		return err
	}

	j, ok, err := m.jobs.Get(ctx, id)
	if err == nil && ok {
		jobsActive.WithLabelValues(string(j.Kind)).Dec()
	}

	return m.jobs.UpdateStatus(ctx, id, store.JobFailed)
}

// Cancel sets the cancellation flag. Cancellation is cooperative and
// idempotent: already-running work units run to completion; the next one
// observes the flag and exits without mutating the target mid-write
// (spec §5 "Cancellation semantics").
func (m *Manager) Cancel(ctx context.Context, id store.ID) error {
	if err := m.jobs.SetCancelled(ctx, id, true); err != nil {
		return err
	}

	return m.jobs.UpdateStatus(ctx, id, store.JobCancelled)
}
