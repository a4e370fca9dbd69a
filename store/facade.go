package store

import (
	"context"
	"time"
)

// CollectionStore is the Collections slice of the C9 facade.
type CollectionStore interface {
	Create(ctx context.Context, c Collection) (ID, error)
	Update(ctx context.Context, c Collection) error
	Delete(ctx context.Context, id ID) error
	GetByID(ctx context.Context, id ID) (Collection, bool, error)
	GetByPath(ctx context.Context, sourcePath string, kind SourceKind) (Collection, bool, error)
	List(ctx context.Context, page Page) ([]Collection, error)
	Count(ctx context.Context) (int, error)
	RandomByIndex(ctx context.Context, i int) (ID, error)
}

// ImageStore is the Images slice of the C9 facade.
type ImageStore interface {
	Create(ctx context.Context, img Image) (ID, error)
	Update(ctx context.Context, img Image) error
	Delete(ctx context.Context, id ID) error
	ListByCollection(ctx context.Context, collectionID ID, page Page, sort SortSpec) ([]Image, error)
	CountByCollection(ctx context.Context, collectionID ID) (int, error)
	GetEmbedded(ctx context.Context, collectionID, imageID ID) (Image, bool, error)
}

// CacheFolderStore is the Cache folders slice of the C9 facade.
type CacheFolderStore interface {
	Create(ctx context.Context, f CacheFolder) (ID, error)
	Update(ctx context.Context, f CacheFolder) error
	Delete(ctx context.Context, id ID) error
	GetByID(ctx context.Context, id ID) (CacheFolder, bool, error)
	List(ctx context.Context) ([]CacheFolder, error)
	// AdjustUsage atomically applies Δbytes/Δcount to folder id's running
	// totals. Implementations MUST serialize this per folder id (spec §5).
	AdjustUsage(ctx context.Context, id ID, deltaBytes int64, deltaCount int64) error
	PickForCollection(ctx context.Context, collectionID ID) (ID, bool, error)
	Bind(ctx context.Context, collectionID, folderID ID) error
	GetBinding(ctx context.Context, collectionID ID) (ID, bool, error)
}

// JobStore is the Jobs slice of the C9 facade.
type JobStore interface {
	Create(ctx context.Context, j Job) (ID, error)
	Get(ctx context.Context, id ID) (Job, bool, error)
	UpdateStatus(ctx context.Context, id ID, status JobStatus) error
	// UpdateStage is a compare-and-set on {completed_items, status}: it
	// MUST NOT decrease completed_items (spec §5).
	UpdateStage(ctx context.Context, id ID, name string, status StageStatus, completed, total int, message string) error
	AppendError(ctx context.Context, id ID, e JobError) error
	SetCancelled(ctx context.Context, id ID, cancelled bool) error
	List(ctx context.Context, filter JobFilter) ([]Job, error)
	DeleteOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// JobFilter narrows JobStore.List.
type JobFilter struct {
	Status *JobStatus
	Since  *time.Time
}

// FolderUsage is one row of the per-folder usage rollup (§6 "cache
// statistics").
type FolderUsage struct {
	FolderID   ID
	SizeBytes  int64
	FileCount  int64
}

// Stats is the statistics slice of the C9 facade.
type Stats interface {
	CacheDistribution(ctx context.Context) ([]FolderUsage, error)
	CollectionActivity(ctx context.Context, since time.Time) (map[ID]int, error)
}

// Store bundles the full C9 facade. Implementations MUST be thread-safe
// for every operation the job manager invokes concurrently (spec §4.9).
type Store interface {
	Collections() CollectionStore
	Images() ImageStore
	CacheFolders() CacheFolderStore
	Jobs() JobStore
	Stats() Stats
}
