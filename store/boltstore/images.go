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

type imageStore struct{ db *bolt.DB }

func (s imageStore) Create(_ context.Context, img store.Image) (store.ID, error) {
	if img.ID == "" {
		img.ID = store.ID(uuid.NewString())
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(bucketImages), string(img.ID), img)
	})

	return img.ID, errors.Wrap(err, "creating image")
}

func (s imageStore) Update(_ context.Context, img store.Image) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketImages)

		var existing store.Image
		if ok, err := get(b, string(img.ID), &existing); err != nil {
			return err
		} else if !ok {
			return errors.Errorf("image %q not found", img.ID)
		}

		return put(b, string(img.ID), img)
	})
}

func (s imageStore) Delete(_ context.Context, id store.ID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketImages).Delete([]byte(id))
	})
}

func (s imageStore) ListByCollection(_ context.Context, collectionID store.ID, page store.Page, sortSpec store.SortSpec) ([]store.Image, error) {
	var all []store.Image

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketImages).ForEach(func(_, v []byte) error {
			var img store.Image
			if err := json.Unmarshal(v, &img); err != nil {
				return err
			}

			if img.CollectionID == collectionID {
				all = append(all, img)
			}

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool {
		var less bool

		switch sortSpec.Field {
		case "filename":
			less = all[i].Filename < all[j].Filename
		default:
			less = all[i].RelativePath < all[j].RelativePath
		}

		if !sortSpec.Ascending {
			return !less
		}

		return less
	})

	return paginateSlice(all, page), nil
}

func (s imageStore) CountByCollection(_ context.Context, collectionID store.ID) (int, error) {
	n := 0

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketImages).ForEach(func(_, v []byte) error {
			var img store.Image
			if err := json.Unmarshal(v, &img); err != nil {
				return err
			}

			if img.CollectionID == collectionID {
				n++
			}

			return nil
		})
	})

	return n, err
}

func (s imageStore) GetEmbedded(_ context.Context, collectionID, imageID store.ID) (store.Image, bool, error) {
	var out store.Image

	err := s.db.View(func(tx *bolt.Tx) error {
		ok, err := get(tx.Bucket(bucketImages), string(imageID), &out)
		if err != nil || !ok {
			out = store.Image{}
			return err
		}

		if out.CollectionID != collectionID {
			out = store.Image{}
		}

		return nil
	})

	return out, out.ID != "", err
}
