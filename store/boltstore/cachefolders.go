package boltstore

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/imagevault/core/store"
)

type cacheFolderStore struct{ db *bolt.DB }

func (s cacheFolderStore) Create(_ context.Context, f store.CacheFolder) (store.ID, error) {
	if f.ID == "" {
		f.ID = store.ID(uuid.NewString())
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(bucketCacheFolders), string(f.ID), f)
	})

	return f.ID, errors.Wrap(err, "creating cache folder")
}

func (s cacheFolderStore) Update(_ context.Context, f store.CacheFolder) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCacheFolders)

		var existing store.CacheFolder
		if ok, err := get(b, string(f.ID), &existing); err != nil {
			return err
		} else if !ok {
			return errors.Errorf("cache folder %q not found", f.ID)
		}

		return put(b, string(f.ID), f)
	})
}

func (s cacheFolderStore) Delete(_ context.Context, id store.ID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bound := tx.Bucket(bucketBindings)

		var blocked bool

		err := bound.ForEach(func(_, v []byte) error {
			if store.ID(v) == id {
				blocked = true
			}

			return nil
		})
		if err != nil {
			return err
		}

		if blocked {
			return errors.Errorf("cache folder %q still bound to a collection", id)
		}

		return tx.Bucket(bucketCacheFolders).Delete([]byte(id))
	})
}

func (s cacheFolderStore) GetByID(_ context.Context, id store.ID) (store.CacheFolder, bool, error) {
	var out store.CacheFolder

	err := s.db.View(func(tx *bolt.Tx) error {
		ok, err := get(tx.Bucket(bucketCacheFolders), string(id), &out)
		if err != nil || !ok {
			out = store.CacheFolder{}
		}

		return err
	})

	return out, out.ID != "", err
}

func (s cacheFolderStore) List(_ context.Context) ([]store.CacheFolder, error) {
	var all []store.CacheFolder

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCacheFolders).ForEach(func(_, v []byte) error {
			var f store.CacheFolder
			if err := json.Unmarshal(v, &f); err != nil {
				return err
			}

			all = append(all, f)

			return nil
		})
	})

	return all, err
}

// AdjustUsage relies on bbolt's single-writer-transaction model: every
// Update call across the whole database is already serialized, so the
// per-folder-id serialization spec §5 requires falls out for free, unlike
// memstore which needs its own mutex.
func (s cacheFolderStore) AdjustUsage(_ context.Context, id store.ID, deltaBytes, deltaCount int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCacheFolders)

		var f store.CacheFolder
		if ok, err := get(b, string(id), &f); err != nil {
			return err
		} else if !ok {
			return errors.Errorf("cache folder %q not found", id)
		}

		f.CurrentSizeBytes += deltaBytes
		f.CurrentFileCount += deltaCount

		return put(b, string(id), f)
	})
}

// PickForCollection implements the spec §5 selection algorithm: highest
// priority first, ties broken by lowest current usage, then by folder id
// for determinism.
func (s cacheFolderStore) PickForCollection(_ context.Context, _ store.ID) (store.ID, bool, error) {
	var candidates []store.CacheFolder

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCacheFolders).ForEach(func(_, v []byte) error {
			var f store.CacheFolder
			if err := json.Unmarshal(v, &f); err != nil {
				return err
			}

			if f.Active {
				candidates = append(candidates, f)
			}

			return nil
		})
	})
	if err != nil {
		return "", false, err
	}

	if len(candidates) == 0 {
		return "", false, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}

		if candidates[i].CurrentSizeBytes != candidates[j].CurrentSizeBytes {
			return candidates[i].CurrentSizeBytes < candidates[j].CurrentSizeBytes
		}

		return candidates[i].ID < candidates[j].ID
	})

	return candidates[0].ID, true, nil
}

func (s cacheFolderStore) Bind(_ context.Context, collectionID, folderID store.ID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBindings).Put([]byte(collectionID), []byte(folderID))
	})
}

func (s cacheFolderStore) GetBinding(_ context.Context, collectionID store.ID) (store.ID, bool, error) {
	var out store.ID

	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketBindings).Get([]byte(collectionID))
		if raw != nil {
			out = store.ID(raw)
		}

		return nil
	})

	return out, out != "", err
}
