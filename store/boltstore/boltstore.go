// Package boltstore is the embedded, persistent implementation of the
// store.Store facade (C9) that cmd/imagevaultd runs with by default.
// Grounded on go.etcd.io/bbolt's use in Kush-Singh-26/kosh as a
// single-file embedded KV store for a content-serving daemon, the same
// shape this service needs: one small file, no external database
// dependency, safe for concurrent access via bbolt's own internal
// locking (so the mutex discipline memstore needs is unnecessary here).
package boltstore

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/imagevault/core/store"
)

var (
	bucketCollections    = []byte("collections")
	bucketCollectionsSeq = []byte("collections_by_seq") // seq(uint64 BE) -> id, for RandomByIndex
	bucketImages         = []byte("images")
	bucketCacheFolders   = []byte("cache_folders")
	bucketBindings       = []byte("bindings") // collectionID -> folderID
	bucketJobs           = []byte("jobs")
)

// Store is the bbolt-backed store.Store implementation.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the bbolt database at path and
// ensures every bucket this facade needs exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening bolt db %q", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketCollections, bucketCollectionsSeq, bucketImages, bucketCacheFolders, bucketBindings, bucketJobs} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing buckets")
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Collections() store.CollectionStore   { return collectionStore{s.db} }
func (s *Store) Images() store.ImageStore             { return imageStore{s.db} }
func (s *Store) CacheFolders() store.CacheFolderStore { return cacheFolderStore{s.db} }
func (s *Store) Jobs() store.JobStore                 { return jobStore{s.db} }
func (s *Store) Stats() store.Stats                   { return statsView{s.db} }

func get(b *bolt.Bucket, key string, v interface{}) (bool, error) {
	raw := b.Get([]byte(key))
	if raw == nil {
		return false, nil
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return false, errors.Wrapf(err, "decoding %q", key)
	}

	return true, nil
}

func put(b *bolt.Bucket, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encoding %q", key)
	}

	return b.Put([]byte(key), raw)
}

func seqKey(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)

	return buf
}
