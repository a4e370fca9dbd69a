package boltstore

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/imagevault/core/store"
)

type collectionStore struct{ db *bolt.DB }

func (c collectionStore) Create(_ context.Context, col store.Collection) (store.ID, error) {
	if col.ID == "" {
		col.ID = store.ID(uuid.NewString())
	}

	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCollections)
		if err := put(b, string(col.ID), col); err != nil {
			return err
		}

		seqB := tx.Bucket(bucketCollectionsSeq)
		seq, err := seqB.NextSequence()
		if err != nil {
			return err
		}

		return seqB.Put(seqKey(seq), []byte(col.ID))
	})

	return col.ID, errors.Wrap(err, "creating collection")
}

func (c collectionStore) Update(_ context.Context, col store.Collection) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCollections)

		var existing store.Collection
		if ok, err := get(b, string(col.ID), &existing); err != nil {
			return err
		} else if !ok {
			return errors.Errorf("collection %q not found", col.ID)
		}

		return put(b, string(col.ID), col)
	})
}

func (c collectionStore) Delete(_ context.Context, id store.ID) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCollections).Delete([]byte(id))
	})
}

func (c collectionStore) GetByID(_ context.Context, id store.ID) (store.Collection, bool, error) {
	var out store.Collection

	err := c.db.View(func(tx *bolt.Tx) error {
		ok, err := get(tx.Bucket(bucketCollections), string(id), &out)
		if err != nil {
			return err
		}

		if !ok {
			out = store.Collection{}
		}

		return nil
	})

	return out, out.ID != "", err
}

func (c collectionStore) GetByPath(_ context.Context, sourcePath string, kind store.SourceKind) (store.Collection, bool, error) {
	var found store.Collection

	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCollections).ForEach(func(_, v []byte) error {
			var col store.Collection
			if err := unmarshal(v, &col); err != nil {
				return err
			}

			if col.SourcePath == sourcePath && col.SourceKind == kind {
				found = col
			}

			return nil
		})
	})

	return found, found.ID != "", err
}

func (c collectionStore) List(_ context.Context, page store.Page) ([]store.Collection, error) {
	var all []store.Collection

	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCollections).ForEach(func(_, v []byte) error {
			var col store.Collection
			if err := unmarshal(v, &col); err != nil {
				return err
			}

			all = append(all, col)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return paginateSlice(all, page), nil
}

func (c collectionStore) Count(_ context.Context) (int, error) {
	n := 0

	err := c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketCollections).Stats().KeyN
		return nil
	})

	return n, err
}

// RandomByIndex finds the i-th collection in creation order with a single
// cursor Seek on the (seq -> id) index bucket, an O(log n) B+tree lookup
// that does not load the collection set into memory, unlike the source's
// skip=random(count). Sequence numbers start at 1 and are never reused,
// so index i is sequence i+1.
func (c collectionStore) RandomByIndex(_ context.Context, i int) (store.ID, error) {
	if i < 0 {
		return "", errors.Errorf("negative index %d", i)
	}

	var out store.ID

	err := c.db.View(func(tx *bolt.Tx) error {
		want := seqKey(uint64(i) + 1)

		k, v := tx.Bucket(bucketCollectionsSeq).Cursor().Seek(want)
		if k == nil || string(k) != string(want) {
			return errors.Errorf("index %d out of range", i)
		}

		out = store.ID(v)

		return nil
	})

	return out, err
}

func unmarshal(raw []byte, v interface{}) error {
	return json.Unmarshal(raw, v)
}

func paginateSlice[T any](all []T, page store.Page) []T {
	if page.PageSize <= 0 {
		return all
	}

	start := (page.Number - 1) * page.PageSize
	if start < 0 {
		start = 0
	}

	if start >= len(all) {
		return nil
	}

	end := start + page.PageSize
	if end > len(all) {
		end = len(all)
	}

	return all[start:end]
}
