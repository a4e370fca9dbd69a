// Package store declares the abstract metadata store facade of spec C9 —
// "not a schema; an interface" — plus the data model types of spec §3.
// Two implementations are provided: store/memstore (in-memory, for tests)
// and store/boltstore (go.etcd.io/bbolt-backed, for cmd/imagevaultd).
package store

import "time"

// ID is an opaque entity identifier. Per DESIGN.md's Open Question
// resolution, every entity id in this system is a plain string — never an
// integer, never ambiguous between the two.
type ID string

// SourceKind mirrors archivevfs.SourceKind plus the non-archive Folder
// kind, duplicated here (rather than imported) so store stays free of a
// dependency on the archive backend package.
type SourceKind string

// Recognized source kinds.
const (
	SourceFolder SourceKind = "Folder"
	SourceZip    SourceKind = "Zip"
	SourceSevenZ SourceKind = "SevenZ"
	SourceRar    SourceKind = "Rar"
	SourceTar    SourceKind = "Tar"
)

// CollectionSettings is the embedded settings blob spec §3 describes.
type CollectionSettings struct {
	TotalImages  int
	LastScanned  *time.Time
}

// Collection is the spec §3 Collection record.
type Collection struct {
	ID         ID
	Name       string
	SourcePath string
	SourceKind SourceKind
	LibraryID  *ID
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Settings   CollectionSettings
}

// Image is the spec §3 Image Record.
type Image struct {
	ID             ID
	CollectionID   ID
	Filename       string
	RelativePath   string
	ByteSize       int64
	Width          int
	Height         int
	SourceFormat   string
	ThumbnailPath  string
	CachePath      string
	CacheFilename  string
	CacheQuality   int
	CacheFormat    string
	CacheSize      int64
	CachedAt       *time.Time
	CacheWidth     int
	CacheHeight    int
}

// CacheFolder is the spec §3 Cache Folder record.
type CacheFolder struct {
	ID                ID
	Name              string
	RootPath          string
	Priority          int
	MaxSizeBytes      *int64
	CurrentSizeBytes  int64
	CurrentFileCount  int64
	Active            bool
}

// JobKind enumerates spec §3's job kinds.
type JobKind string

// Recognized job kinds.
const (
	JobDiscovery            JobKind = "Discovery"
	JobCollectionScan       JobKind = "CollectionScan"
	JobThumbnailGeneration  JobKind = "ThumbnailGeneration"
	JobCacheGeneration      JobKind = "CacheGeneration"
	JobComposite            JobKind = "Composite"
	JobBulkAdd              JobKind = "BulkAdd"
)

// JobStatus enumerates spec §3's job status state machine.
type JobStatus string

// Recognized job statuses.
const (
	JobPending    JobStatus = "Pending"
	JobInProgress JobStatus = "InProgress"
	JobCompleted  JobStatus = "Completed"
	JobFailed     JobStatus = "Failed"
	JobCancelled  JobStatus = "Cancelled"
)

// StageStatus enumerates a stage's own state machine (spec §4.7).
type StageStatus string

// Recognized stage statuses.
const (
	StagePending    StageStatus = "Pending"
	StageInProgress StageStatus = "InProgress"
	StageCompleted  StageStatus = "Completed"
)

// StageState is one named phase of a job (spec §3).
type StageState struct {
	Name           string
	Status         StageStatus
	CompletedItems int
	TotalItems     int
	Message        string
}

// JobError is one per-item failure accumulated in a job's error log
// (spec §7: "{item, message} with no stack traces").
type JobError struct {
	Item    string
	Message string
}

// Job is the spec §3 Job record.
type Job struct {
	ID           ID
	Kind         JobKind
	Status       JobStatus
	Stages       map[string]StageState
	CollectionID *ID
	ErrorLog     []JobError
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
	Cancelled    bool
}

// Progress reports completed/total/percent across a job's stages,
// weighted equally per stage by default (spec §4.7).
func (j Job) Progress() (completed, total int, percent float64) {
	if len(j.Stages) == 0 {
		return 0, 0, 0
	}

	var pctSum float64

	for _, s := range j.Stages {
		completed += s.CompletedItems
		total += s.TotalItems

		switch {
		case s.Status == StageCompleted:
			pctSum += 100
		case s.TotalItems > 0:
			pctSum += 100 * float64(s.CompletedItems) / float64(s.TotalItems)
		}
	}

	percent = pctSum / float64(len(j.Stages))

	return completed, total, percent
}

// IsTerminal reports whether status is one of the three terminal states.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Page is the paging request the facade's List operations take. Both
// memstore and boltstore apply it by loading the full result and slicing
// it in memory; neither pages inside the storage layer.
type Page struct {
	Number   int // 1-based
	PageSize int
}

// SortSpec names a field and direction for Images.ListByCollection.
type SortSpec struct {
	Field     string
	Ascending bool
}
