package service

import (
	"videoarchive/internal/model"
	"videoarchive/pkg/logger"

	"go.uber.org/zap"
)

// Index is the on-disk existence oracle for one owner, queried once per
// run. The selection engine never touches the filesystem itself.
type Index interface {
	// HasVideo reports whether any file for the logical video exists,
	// regardless of quality.
	HasVideo(logicalVideoID int) bool
	// HasFile reports whether the exact (video, quality) file exists.
	HasFile(logicalVideoID int, quality model.Quality) bool
}

// SelectionService reduces extracted variants to at most one download
// target per logical video, skipping videos already archived.
type SelectionService struct{}

// NewSelectionService creates a new selection service
func NewSelectionService() *SelectionService {
	return &SelectionService{}
}

// Select applies the skip rules and picks the best remaining variant per
// logical video. Returns the targets in discovery order plus the skipped
// count (variants considered minus targets chosen).
//
// Skip rules, in order: a variant whose exact (id, quality) file exists is
// dropped; a variant whose video already has any file on disk is dropped
// too, so an archived video is never re-fetched at a different quality.
func (s *SelectionService) Select(variants []model.VideoVariant, index Index) ([]model.DownloadTarget, int) {
	best := make(map[int]model.VideoVariant)
	var order []int

	for _, v := range variants {
		if index.HasFile(v.LogicalVideoID, v.Quality) {
			continue
		}
		if index.HasVideo(v.LogicalVideoID) {
			continue
		}

		cur, seen := best[v.LogicalVideoID]
		if !seen {
			best[v.LogicalVideoID] = v
			order = append(order, v.LogicalVideoID)
			continue
		}
		// Strictly greater keeps the first-encountered variant on ties
		if v.Bitrate > cur.Bitrate {
			best[v.LogicalVideoID] = v
		}
	}

	targets := make([]model.DownloadTarget, 0, len(order))
	for _, id := range order {
		targets = append(targets, model.DownloadTarget{VideoVariant: best[id]})
	}

	skipped := len(variants) - len(targets)
	logger.Logger.Debug("Selection complete",
		zap.Int("considered", len(variants)),
		zap.Int("selected", len(targets)),
		zap.Int("skipped", skipped))

	return targets, skipped
}
