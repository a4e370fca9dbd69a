package boltstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/imagevault/core/store"
)

type jobStore struct{ db *bolt.DB }

func (s jobStore) Create(_ context.Context, j store.Job) (store.ID, error) {
	if j.ID == "" {
		j.ID = store.ID(uuid.NewString())
	}

	if j.Stages == nil {
		j.Stages = map[string]store.StageState{}
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(bucketJobs), string(j.ID), j)
	})

	return j.ID, errors.Wrap(err, "creating job")
}

func (s jobStore) Get(_ context.Context, id store.ID) (store.Job, bool, error) {
	var out store.Job

	err := s.db.View(func(tx *bolt.Tx) error {
		ok, err := get(tx.Bucket(bucketJobs), string(id), &out)
		if err != nil || !ok {
			out = store.Job{}
		}

		return err
	})

	return out, out.ID != "", err
}

func (s jobStore) UpdateStatus(_ context.Context, id store.ID, status store.JobStatus) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)

		var j store.Job
		if ok, err := get(b, string(id), &j); err != nil {
			return err
		} else if !ok {
			return errors.Errorf("job %q not found", id)
		}

		j.Status = status
		if status.IsTerminal() {
			now := currentTime()
			j.CompletedAt = &now
		}

		return put(b, string(id), j)
	})
}

// UpdateStage is a compare-and-set: completed_items never decreases, even
// under out-of-order delivery from the work queue (spec §5).
func (s jobStore) UpdateStage(_ context.Context, id store.ID, name string, status store.StageStatus, completed, total int, message string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)

		var j store.Job
		if ok, err := get(b, string(id), &j); err != nil {
			return err
		} else if !ok {
			return errors.Errorf("job %q not found", id)
		}

		if j.Stages == nil {
			j.Stages = map[string]store.StageState{}
		}

		prev := j.Stages[name]
		if completed < prev.CompletedItems {
			completed = prev.CompletedItems
		}

		j.Stages[name] = store.StageState{
			Name:           name,
			Status:         status,
			CompletedItems: completed,
			TotalItems:     total,
			Message:        message,
		}

		return put(b, string(id), j)
	})
}

func (s jobStore) AppendError(_ context.Context, id store.ID, e store.JobError) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)

		var j store.Job
		if ok, err := get(b, string(id), &j); err != nil {
			return err
		} else if !ok {
			return errors.Errorf("job %q not found", id)
		}

		j.ErrorLog = append(j.ErrorLog, e)

		return put(b, string(id), j)
	})
}

func (s jobStore) SetCancelled(_ context.Context, id store.ID, cancelled bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)

		var j store.Job
		if ok, err := get(b, string(id), &j); err != nil {
			return err
		} else if !ok {
			return errors.Errorf("job %q not found", id)
		}

		j.Cancelled = cancelled

		return put(b, string(id), j)
	})
}

func (s jobStore) List(_ context.Context, filter store.JobFilter) ([]store.Job, error) {
	var all []store.Job

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobs).ForEach(func(_, v []byte) error {
			var j store.Job
			if err := json.Unmarshal(v, &j); err != nil {
				return err
			}

			if filter.Status != nil && j.Status != *filter.Status {
				return nil
			}

			if filter.Since != nil && j.CreatedAt.Before(*filter.Since) {
				return nil
			}

			all = append(all, j)

			return nil
		})
	})

	return all, err
}

func (s jobStore) DeleteOlderThan(_ context.Context, age time.Duration) (int, error) {
	cutoff := currentTime().Add(-age)
	n := 0

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)

		var toDelete [][]byte

		err := b.ForEach(func(k, v []byte) error {
			var j store.Job
			if err := json.Unmarshal(v, &j); err != nil {
				return err
			}

			if !j.Status.IsTerminal() || j.CompletedAt == nil {
				return nil
			}

			if j.CompletedAt.Before(cutoff) {
				toDelete = append(toDelete, append([]byte(nil), k...))
			}

			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}

			n++
		}

		return nil
	})

	return n, err
}

func currentTime() time.Time {
	return time.Now()
}
