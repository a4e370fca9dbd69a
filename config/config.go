// Package config defines the recognized configuration options of spec §6
// and loads them from YAML, the format used throughout the retrieval pack
// for service configuration (mutagen-io/mutagen, Kush-Singh-26/kosh).
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the full set of recognized options from spec §6.
type Config struct {
	MaxConcurrentProcesses        int      `yaml:"max_concurrent_processes"`
	EnableParallelCacheProcessing bool     `yaml:"enable_parallel_cache_processing"`
	DangerousPathPrefixes         []string `yaml:"dangerous_path_prefixes"`
	SupportedImageFormats         []string `yaml:"supported_image_formats"`
	SupportedArchiveFormats       []string `yaml:"supported_archive_formats"`
	JobRetentionHours             int      `yaml:"job_retention_hours"`

	ThumbnailWidth   int `yaml:"thumbnail_w"`
	ThumbnailHeight  int `yaml:"thumbnail_h"`
	ThumbnailQuality int `yaml:"thumbnail_quality"`

	CoverWidth   int `yaml:"cover_w"`
	CoverHeight  int `yaml:"cover_h"`
	CoverQuality int `yaml:"cover_quality"`

	CacheQualityDefault int    `yaml:"cache_quality_default"`
	CacheFormatDefault  string `yaml:"cache_format_default"`

	ProbeTimeoutMS  int   `yaml:"probe_timeout_ms"`
	MaxInputPixels  int64 `yaml:"max_input_pixels"`

	RetryMaxAttempts int   `yaml:"retry_max_attempts"`
	RetryBackoffMS   []int `yaml:"retry_backoff_ms"`

	NetworkDriveErrorThreshold int `yaml:"network_drive_error_threshold"`
}

// Default returns the configuration defaults named throughout spec §4 and
// §6: 300x300 q80 thumbnails, 800x450 q85 covers,
// 85/jpeg cache default, 10s probe timeout, ~268M pixel cap, 5-attempt
// 1/2/4s-capped backoff.
func Default() Config {
	return Config{
		MaxConcurrentProcesses:         1,
		EnableParallelCacheProcessing:  false,
		DangerousPathPrefixes:          DefaultDangerousPrefixes(),
		SupportedImageFormats:          []string{"jpg", "jpeg", "png", "gif", "bmp", "webp", "tiff", "svg"},
		SupportedArchiveFormats:        []string{"zip", "cbz", "cbr", "7z", "rar", "tar", "tar.gz", "tar.bz2"},
		JobRetentionHours:              2,
		ThumbnailWidth:                 300,
		ThumbnailHeight:                300,
		ThumbnailQuality:               80,
		CoverWidth:                     800,
		CoverHeight:                    450,
		CoverQuality:                   85,
		CacheQualityDefault:            85,
		CacheFormatDefault:             "jpeg",
		ProbeTimeoutMS:                 10000,
		MaxInputPixels:                 268_435_456,
		RetryMaxAttempts:               5,
		RetryBackoffMS:                 []int{1000, 2000, 4000},
		NetworkDriveErrorThreshold:     5,
	}
}

// DefaultDangerousPrefixes is the deny-list of Windows system roots plus
// the Unix pseudo-filesystems /proc, /sys and /dev; matching is
// case-insensitive against these prefixes.
func DefaultDangerousPrefixes() []string {
	return []string{
		`C:\Windows`,
		`C:\Program Files`,
		`C:\Program Files (x86)`,
		`C:\System Volume Information`,
		`C:\$Recycle.Bin`,
		`/proc`,
		`/sys`,
		`/dev`,
	}
}

// ProbeTimeout returns ProbeTimeoutMS as a time.Duration.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutMS) * time.Millisecond
}

// JobRetention returns JobRetentionHours as a time.Duration.
func (c Config) JobRetention() time.Duration {
	return time.Duration(c.JobRetentionHours) * time.Hour
}

// RetryBackoff returns the configured backoff schedule as time.Duration,
// capping reads past the configured list at the last entry (spec §4.6:
// "backoff 1s, 2s, 4s (capped)").
func (c Config) RetryBackoff(attempt int) time.Duration {
	if len(c.RetryBackoffMS) == 0 {
		return 0
	}

	idx := attempt
	if idx >= len(c.RetryBackoffMS) {
		idx = len(c.RetryBackoffMS) - 1
	}

	return time.Duration(c.RetryBackoffMS[idx]) * time.Millisecond
}

// RetrySchedule expands RetryMaxAttempts/RetryBackoffMS into the per-attempt
// wait list derivative.Generator retries writes against: no wait on the
// first attempt, then RetryBackoff(0), RetryBackoff(1), ... capped at the
// last configured entry, per spec §4.6's "Retry" policy.
func (c Config) RetrySchedule() []time.Duration {
	attempts := c.RetryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	schedule := make([]time.Duration, attempts)
	for i := range schedule {
		if i == 0 {
			continue
		}

		schedule[i] = c.RetryBackoff(i - 1)
	}

	return schedule
}

// Load reads and merges a YAML config file onto the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "opening config %q", path)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, errors.Wrapf(err, "decoding config %q", path)
	}

	return cfg, nil
}
