package model

import (
	"fmt"
	"time"
)

// Quality is the bitrate-derived quality bucket of a video variant.
type Quality string

const (
	Quality320p  Quality = "320p"
	Quality480p  Quality = "480p"
	Quality720p  Quality = "720p"
	Quality1080p Quality = "1080p"
)

// KnownQualities lists every quality bucket, lowest first.
var KnownQualities = []Quality{Quality320p, Quality480p, Quality720p, Quality1080p}

// ParseQuality validates a quality string
func ParseQuality(s string) (Quality, error) {
	for _, q := range KnownQualities {
		if string(q) == s {
			return q, nil
		}
	}
	return "", fmt.Errorf("unknown quality %q", s)
}

// VideoVariant is one encoded rendition of a logical video found in a
// captured payload. Immutable once produced by extraction.
type VideoVariant struct {
	LogicalVideoID int     `json:"logical_video_id"`
	OwnerID        string  `json:"owner_id"`
	Quality        Quality `json:"quality"`
	Bitrate        int64   `json:"bitrate"`
	SourceURL      string  `json:"source_url"`
	ContentType    string  `json:"content_type"`
}

// DownloadTarget is the variant chosen as the canonical representative of
// its logical video for one run. At most one exists per LogicalVideoID.
type DownloadTarget struct {
	VideoVariant
}

// MirrorReason classifies what happened on the mirror side of a download.
type MirrorReason string

const (
	MirrorDisabled       MirrorReason = "disabled"
	MirrorAlreadyPresent MirrorReason = "already-present"
	MirrorUploaded       MirrorReason = "uploaded"
	MirrorError          MirrorReason = "error"
)

// MirrorOutcome records the mirror side of one download. Mirror failures
// never affect the download result.
type MirrorOutcome struct {
	Attempted  bool         `json:"attempted"`
	Success    bool         `json:"success"`
	RemotePath string       `json:"remote_path,omitempty"`
	Reason     MirrorReason `json:"reason"`
	Detail     string       `json:"detail,omitempty"`
}

// DownloadOutcome records one attempted download. Created once per target,
// never mutated after.
type DownloadOutcome struct {
	Target       DownloadTarget `json:"target"`
	Success      bool           `json:"success"`
	BytesWritten int64          `json:"bytes_written"`
	Duration     time.Duration  `json:"duration"`
	Error        string         `json:"error,omitempty"`
	Mirror       MirrorOutcome  `json:"mirror"`
}

// DownloadStats aggregates download outcomes for one owner or one run.
type DownloadStats struct {
	Succeeded      int   `json:"succeeded"`
	Failed         int   `json:"failed"`
	Skipped        int   `json:"skipped"`
	TotalBytes     int64 `json:"total_bytes"`
	MirrorUploaded int   `json:"mirror_uploaded"`
	MirrorFailed   int   `json:"mirror_failed"`
}

// Record folds one outcome into the stats. Skipped is not touched here;
// it is carried over from selection, never re-derived from outcomes.
func (s *DownloadStats) Record(o DownloadOutcome) {
	if o.Success {
		s.Succeeded++
		s.TotalBytes += o.BytesWritten
	} else {
		s.Failed++
	}
	switch o.Mirror.Reason {
	case MirrorUploaded:
		s.MirrorUploaded++
	case MirrorError:
		s.MirrorFailed++
	}
}

// Merge adds another stats value into this one
func (s *DownloadStats) Merge(other DownloadStats) {
	s.Succeeded += other.Succeeded
	s.Failed += other.Failed
	s.Skipped += other.Skipped
	s.TotalBytes += other.TotalBytes
	s.MirrorUploaded += other.MirrorUploaded
	s.MirrorFailed += other.MirrorFailed
}

// TotalMB returns the written volume in megabytes. Rendering with two
// decimals is the console's concern.
func (s DownloadStats) TotalMB() float64 {
	return float64(s.TotalBytes) / (1024 * 1024)
}

// OwnerSummary is the per-owner result of a run.
type OwnerSummary struct {
	OwnerID       string            `json:"owner_id"`
	Errored       bool              `json:"errored"`
	Error         string            `json:"error,omitempty"`
	VideosFound   int               `json:"videos_found"`
	VariantsFound int               `json:"variants_found"`
	Stats         DownloadStats     `json:"stats"`
	Outcomes      []DownloadOutcome `json:"outcomes,omitempty"`
}

// RunSummary is the complete result of one archive run.
type RunSummary struct {
	RunID         string         `json:"run_id"`
	StartedAt     time.Time      `json:"started_at"`
	Duration      time.Duration  `json:"duration"`
	Owners        []OwnerSummary `json:"owners"`
	Totals        DownloadStats  `json:"totals"`
	OwnersErrored int            `json:"owners_errored"`
}

// Failed reports whether any owner errored during the run
func (r *RunSummary) Failed() bool {
	return r.OwnersErrored > 0
}

// ArchivedVideo describes one file already present in the local archive.
type ArchivedVideo struct {
	Filename       string    `json:"filename"`
	LogicalVideoID int       `json:"logical_video_id"`
	Quality        Quality   `json:"quality"`
	Size           int64     `json:"size"`
	ModTime        time.Time `json:"modified_at"`
}

// OwnerInfo describes one owner directory for the archive server.
type OwnerInfo struct {
	OwnerID    string `json:"owner_id"`
	VideoCount int    `json:"video_count"`
	TotalBytes int64  `json:"total_bytes"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
