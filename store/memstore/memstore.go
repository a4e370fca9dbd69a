// Package memstore is an in-memory, mutex-guarded implementation of the
// store.Store facade (C9), used by tests and by the derivative/job
// packages' own test suites. Grounded on
// block/committed_block_index_mem_cache.go's shape: one mutex per
// sub-store, a single backing map, lock/defer-unlock on every method.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/imagevault/core/store"
)

// Store is the in-memory store.Store implementation.
type Store struct {
	collections *collectionStore
	images      *imageStore
	folders     *cacheFolderStore
	jobs        *jobStore
}

// New returns an empty in-memory Store.
func New() *Store {
	return &Store{
		collections: &collectionStore{byID: map[store.ID]store.Collection{}},
		images:      &imageStore{byID: map[store.ID]store.Image{}},
		folders: &cacheFolderStore{
			byID:     map[store.ID]store.CacheFolder{},
			bindings: map[store.ID]store.ID{},
		},
		jobs: &jobStore{byID: map[store.ID]store.Job{}},
	}
}

func (s *Store) Collections() store.CollectionStore   { return s.collections }
func (s *Store) Images() store.ImageStore             { return s.images }
func (s *Store) CacheFolders() store.CacheFolderStore { return s.folders }
func (s *Store) Jobs() store.JobStore                 { return s.jobs }
func (s *Store) Stats() store.Stats                   { return statsView{s} }

func newID() store.ID { return store.ID(uuid.NewString()) }

// --- collections ---

type collectionStore struct {
	mu   sync.Mutex
	byID map[store.ID]store.Collection
	// order preserves insertion order for deterministic RandomByIndex.
	order []store.ID
}

func (c *collectionStore) Create(_ context.Context, col store.Collection) (store.ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if col.ID == "" {
		col.ID = newID()
	}

	c.byID[col.ID] = col
	c.order = append(c.order, col.ID)

	return col.ID, nil
}

func (c *collectionStore) Update(_ context.Context, col store.Collection) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.byID[col.ID]; !ok {
		return errors.Errorf("collection %q not found", col.ID)
	}

	c.byID[col.ID] = col

	return nil
}

func (c *collectionStore) Delete(_ context.Context, id store.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.byID, id)

	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}

	return nil
}

func (c *collectionStore) GetByID(_ context.Context, id store.ID) (store.Collection, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	col, ok := c.byID[id]

	return col, ok, nil
}

func (c *collectionStore) GetByPath(_ context.Context, sourcePath string, kind store.SourceKind) (store.Collection, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, col := range c.byID {
		if col.SourcePath == sourcePath && col.SourceKind == kind {
			return col, true, nil
		}
	}

	return store.Collection{}, false, nil
}

func (c *collectionStore) List(_ context.Context, page store.Page) ([]store.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	all := make([]store.Collection, 0, len(c.order))
	for _, id := range c.order {
		all = append(all, c.byID[id])
	}

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	return paginate(all, page), nil
}

func paginate[T any](all []T, page store.Page) []T {
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

func (c *collectionStore) Count(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.byID), nil
}

// RandomByIndex implements the O(1) contract via the insertion-order
// slice (spec §9's Open Question: any O(log n)-or-better strategy is
// acceptable; a slice index is O(1)).
func (c *collectionStore) RandomByIndex(_ context.Context, i int) (store.ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i < 0 || i >= len(c.order) {
		return "", errors.Errorf("index %d out of range [0,%d)", i, len(c.order))
	}

	return c.order[i], nil
}

// --- images ---

type imageStore struct {
	mu   sync.Mutex
	byID map[store.ID]store.Image
}

func (m *imageStore) Create(_ context.Context, img store.Image) (store.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if img.ID == "" {
		img.ID = newID()
	}

	m.byID[img.ID] = img

	return img.ID, nil
}

func (m *imageStore) Update(_ context.Context, img store.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[img.ID]; !ok {
		return errors.Errorf("image %q not found", img.ID)
	}

	m.byID[img.ID] = img

	return nil
}

func (m *imageStore) Delete(_ context.Context, id store.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.byID, id)

	return nil
}

func (m *imageStore) ListByCollection(_ context.Context, collectionID store.ID, page store.Page, sort_ store.SortSpec) ([]store.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []store.Image

	for _, img := range m.byID {
		if img.CollectionID == collectionID {
			matched = append(matched, img)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		less := matched[i].RelativePath < matched[j].RelativePath
		if sort_.Field == "filename" {
			less = matched[i].Filename < matched[j].Filename
		}

		if !sort_.Ascending {
			return !less
		}

		return less
	})

	return paginate(matched, page), nil
}

func (m *imageStore) CountByCollection(_ context.Context, collectionID store.ID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0

	for _, img := range m.byID {
		if img.CollectionID == collectionID {
			n++
		}
	}

	return n, nil
}

func (m *imageStore) GetEmbedded(_ context.Context, collectionID, imageID store.ID) (store.Image, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	img, ok := m.byID[imageID]
	if !ok || img.CollectionID != collectionID {
		return store.Image{}, false, nil
	}

	return img, true, nil
}

// --- cache folders ---

type cacheFolderStore struct {
	mu       sync.Mutex
	byID     map[store.ID]store.CacheFolder
	bindings map[store.ID]store.ID // collectionID -> folderID
}

func (f *cacheFolderStore) Create(_ context.Context, cf store.CacheFolder) (store.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cf.ID == "" {
		cf.ID = newID()
	}

	f.byID[cf.ID] = cf

	return cf.ID, nil
}

func (f *cacheFolderStore) Update(_ context.Context, cf store.CacheFolder) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.byID[cf.ID]; !ok {
		return errors.Errorf("cache folder %q not found", cf.ID)
	}

	f.byID[cf.ID] = cf

	return nil
}

func (f *cacheFolderStore) Delete(_ context.Context, id store.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for cid, fid := range f.bindings {
		if fid == id {
			return errors.Errorf("cache folder %q still bound to collection %q", id, cid)
		}
	}

	delete(f.byID, id)

	return nil
}

func (f *cacheFolderStore) GetByID(_ context.Context, id store.ID) (store.CacheFolder, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cf, ok := f.byID[id]

	return cf, ok, nil
}

func (f *cacheFolderStore) List(_ context.Context) ([]store.CacheFolder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]store.CacheFolder, 0, len(f.byID))
	for _, cf := range f.byID {
		out = append(out, cf)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (f *cacheFolderStore) AdjustUsage(_ context.Context, id store.ID, deltaBytes, deltaCount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cf, ok := f.byID[id]
	if !ok {
		return errors.Errorf("cache folder %q not found", id)
	}

	cf.CurrentSizeBytes += deltaBytes
	cf.CurrentFileCount += deltaCount
	f.byID[id] = cf

	return nil
}

func (f *cacheFolderStore) PickForCollection(_ context.Context, collectionID store.ID) (store.ID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.bindings[collectionID]

	return id, ok, nil
}

func (f *cacheFolderStore) Bind(_ context.Context, collectionID, folderID store.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.bindings[collectionID] = folderID

	return nil
}

func (f *cacheFolderStore) GetBinding(_ context.Context, collectionID store.ID) (store.ID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.bindings[collectionID]

	return id, ok, nil
}

// --- jobs ---

type jobStore struct {
	mu   sync.Mutex
	byID map[store.ID]store.Job
}

func (j *jobStore) Create(_ context.Context, job store.Job) (store.ID, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if job.ID == "" {
		job.ID = newID()
	}

	if job.Stages == nil {
		job.Stages = map[string]store.StageState{}
	}

	j.byID[job.ID] = job

	return job.ID, nil
}

func (j *jobStore) Get(_ context.Context, id store.ID) (store.Job, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	job, ok := j.byID[id]

	return cloneJob(job), ok, nil
}

func cloneJob(j store.Job) store.Job {
	stages := make(map[string]store.StageState, len(j.Stages))
	for k, v := range j.Stages {
		stages[k] = v
	}

	j.Stages = stages
	errs := make([]store.JobError, len(j.ErrorLog))
	copy(errs, j.ErrorLog)
	j.ErrorLog = errs

	return j
}

func (j *jobStore) UpdateStatus(_ context.Context, id store.ID, status store.JobStatus) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	job, ok := j.byID[id]
	if !ok {
		return errors.Errorf("job %q not found", id)
	}

	job.Status = status
	job.UpdatedAt = time.Now()

	if status.IsTerminal() {
		now := time.Now()
		job.CompletedAt = &now
	}

	j.byID[id] = job

	return nil
}

// UpdateStage is a compare-and-set: completed_items is monotone
// non-decreasing (spec §5).
func (j *jobStore) UpdateStage(_ context.Context, id store.ID, name string, status store.StageStatus, completed, total int, message string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	job, ok := j.byID[id]
	if !ok {
		return errors.Errorf("job %q not found", id)
	}

	if job.Stages == nil {
		job.Stages = map[string]store.StageState{}
	}

	prev := job.Stages[name]
	if completed < prev.CompletedItems {
		completed = prev.CompletedItems
	}

	job.Stages[name] = store.StageState{
		Name:           name,
		Status:         status,
		CompletedItems: completed,
		TotalItems:     total,
		Message:        message,
	}
	job.UpdatedAt = time.Now()

	j.byID[id] = job

	return nil
}

func (j *jobStore) AppendError(_ context.Context, id store.ID, e store.JobError) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	job, ok := j.byID[id]
	if !ok {
		return errors.Errorf("job %q not found", id)
	}

	job.ErrorLog = append(job.ErrorLog, e)
	j.byID[id] = job

	return nil
}

func (j *jobStore) SetCancelled(_ context.Context, id store.ID, cancelled bool) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	job, ok := j.byID[id]
	if !ok {
		return errors.Errorf("job %q not found", id)
	}

	job.Cancelled = cancelled
	j.byID[id] = job

	return nil
}

func (j *jobStore) List(_ context.Context, filter store.JobFilter) ([]store.Job, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []store.Job

	for _, job := range j.byID {
		if filter.Status != nil && job.Status != *filter.Status {
			continue
		}

		if filter.Since != nil && job.CreatedAt.Before(*filter.Since) {
			continue
		}

		out = append(out, cloneJob(job))
	}

	sort.Slice(out, func(i, j2 int) bool { return out[i].CreatedAt.Before(out[j2].CreatedAt) })

	return out, nil
}

func (j *jobStore) DeleteOlderThan(_ context.Context, age time.Duration) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := time.Now().Add(-age)
	removed := 0

	for id, job := range j.byID {
		if job.Status.IsTerminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(j.byID, id)
			removed++
		}
	}

	return removed, nil
}

// --- stats ---

type statsView struct{ s *Store }

func (v statsView) CacheDistribution(ctx context.Context) ([]store.FolderUsage, error) {
	folders, err := v.s.folders.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]store.FolderUsage, 0, len(folders))
	for _, f := range folders {
		out = append(out, store.FolderUsage{FolderID: f.ID, SizeBytes: f.CurrentSizeBytes, FileCount: f.CurrentFileCount})
	}

	return out, nil
}

func (v statsView) CollectionActivity(_ context.Context, since time.Time) (map[store.ID]int, error) {
	v.s.jobs.mu.Lock()
	defer v.s.jobs.mu.Unlock()

	out := map[store.ID]int{}

	for _, j := range v.s.jobs.byID {
		if j.CollectionID == nil || j.CreatedAt.Before(since) {
			continue
		}

		out[*j.CollectionID]++
	}

	return out, nil
}
