// Package job implements the Job Manager (spec C7): the job state
// machine, staged progress tracking, cancellation, retention, DLQ
// recovery wiring, and the composite-job monitor loop.
//
// Grounded on the API internal/uitask's tests reveal
// (Manager.Run(ctx, kind, desc, func(ctx, ctrl) error), a per-task
// captured log ring buffer, counters, retention by MaxFinishedTasks) for
// the task/controller shape, and on repo/maintenance's test-suite naming
// (maintenance_schedule_test.go, maintenance_safety_test.go) for the
// sweeper/schedule split. No source file for either package survived
// retrieval — only their tests — so the implementation below is written
// fresh against the API the tests reveal, in the teacher's documented
// style.
package job

import "github.com/imagevault/core/store"

// StageSequence returns the ordered, linear stage names for kind, per
// spec §4.7's table. Composite is the one non-linear kind: its stages
// fan out per collection and are driven by the monitor loop rather than
// a fixed sequence, so it returns nil here.
func StageSequence(kind store.JobKind) []string {
	switch kind {
	case store.JobDiscovery:
		return []string{"discover"}
	case store.JobBulkAdd:
		return []string{"discover", "scan", "thumbnail", "cache"}
	case store.JobCollectionScan:
		return []string{"scan", "thumbnail", "cache"}
	case store.JobThumbnailGeneration:
		return []string{"thumbnail"}
	case store.JobCacheGeneration:
		return []string{"cache"}
	case store.JobComposite:
		return nil
	default:
		return nil
	}
}

// NewJob builds a Pending job of kind with every stage in StageSequence
// pre-populated as Pending, so progress reporting has a stable shape from
// creation.
func NewJob(kind store.JobKind, collectionID *store.ID) store.Job {
	stages := map[string]store.StageState{}

	for _, name := range StageSequence(kind) {
		stages[name] = store.StageState{Name: name, Status: store.StagePending}
	}

	return store.Job{
		Kind:         kind,
		Status:       store.JobPending,
		Stages:       stages,
		CollectionID: collectionID,
	}
}
