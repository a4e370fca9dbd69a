package boltstore

import (
	"context"
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/imagevault/core/store"
)

type statsView struct{ db *bolt.DB }

func (s statsView) CacheDistribution(_ context.Context) ([]store.FolderUsage, error) {
	var out []store.FolderUsage

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCacheFolders).ForEach(func(_, v []byte) error {
			var f store.CacheFolder
			if err := json.Unmarshal(v, &f); err != nil {
				return err
			}

			out = append(out, store.FolderUsage{
				FolderID:  f.ID,
				SizeBytes: f.CurrentSizeBytes,
				FileCount: f.CurrentFileCount,
			})

			return nil
		})
	})

	return out, err
}

func (s statsView) CollectionActivity(_ context.Context, since time.Time) (map[store.ID]int, error) {
	out := map[store.ID]int{}

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobs).ForEach(func(_, v []byte) error {
			var j store.Job
			if err := json.Unmarshal(v, &j); err != nil {
				return err
			}

			if j.CollectionID == nil || j.CreatedAt.Before(since) {
				return nil
			}

			out[*j.CollectionID]++

			return nil
		})
	})

	return out, err
}
