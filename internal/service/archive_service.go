package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"videoarchive/internal/model"
	"videoarchive/internal/source"
	"videoarchive/internal/storage"
	"videoarchive/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ArchiveService drives one full run: fetch each owner's captured payload,
// extract variants, select targets against the local archive, download.
// Owners are processed strictly one at a time.
type ArchiveService struct {
	registry   *source.Registry
	extractor  *ExtractService
	selector   *SelectionService
	downloader *DownloadService
	store      *storage.Manager
	ownerDelay time.Duration
	out        io.Writer
}

// NewArchiveService creates a new archive service
func NewArchiveService(registry *source.Registry, extractor *ExtractService, selector *SelectionService, downloader *DownloadService, store *storage.Manager, ownerDelaySeconds int, out io.Writer) *ArchiveService {
	if out == nil {
		out = os.Stdout
	}
	return &ArchiveService{
		registry:   registry,
		extractor:  extractor,
		selector:   selector,
		downloader: downloader,
		store:      store,
		ownerDelay: time.Duration(ownerDelaySeconds) * time.Second,
		out:        out,
	}
}

// Run archives every registered owner and returns the run summary. The
// only fatal condition is an empty registry; any per-owner failure is
// recorded on the summary and the run moves on to the next owner.
func (s *ArchiveService) Run(ctx context.Context) (*model.RunSummary, error) {
	owners := s.registry.Owners()
	if len(owners) == 0 {
		return nil, fmt.Errorf("no owners registered")
	}

	summary := &model.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	logger.Logger.Info("Archive run started",
		zap.String("run_id", summary.RunID),
		zap.Int("owners", len(owners)))

	for i, ownerID := range owners {
		if i > 0 && s.ownerDelay > 0 {
			time.Sleep(s.ownerDelay)
		}
		summary.Owners = append(summary.Owners, s.runOwner(ctx, ownerID))
	}

	for i := range summary.Owners {
		o := &summary.Owners[i]
		if o.Errored {
			summary.OwnersErrored++
			continue
		}
		summary.Totals.Merge(o.Stats)
	}
	summary.Duration = time.Since(summary.StartedAt)

	logger.Logger.Info("Archive run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("downloaded", summary.Totals.Succeeded),
		zap.Int("failed", summary.Totals.Failed),
		zap.Int("skipped", summary.Totals.Skipped),
		zap.Int("owners_errored", summary.OwnersErrored))

	return summary, nil
}

func (s *ArchiveService) runOwner(ctx context.Context, ownerID string) model.OwnerSummary {
	result := model.OwnerSummary{OwnerID: ownerID}

	fetcher, ok := s.registry.Lookup(ownerID)
	if !ok {
		result.Errored = true
		result.Error = "owner not registered"
		return result
	}

	payload, err := fetcher.Fetch(ctx, ownerID)
	if err != nil {
		logger.Logger.Error("Source fetch failed",
			zap.String("owner", ownerID),
			zap.Error(err))
		fmt.Fprintf(s.out, "\n%s: source error: %s\n", ownerID, err)
		result.Errored = true
		result.Error = err.Error()
		return result
	}

	variants, videosFound := s.extractor.Extract(payload, ownerID)
	result.VideosFound = videosFound
	result.VariantsFound = len(variants)

	index, err := s.store.ScanOwner(ownerID)
	if err != nil {
		logger.Logger.Error("Archive scan failed",
			zap.String("owner", ownerID),
			zap.Error(err))
		fmt.Fprintf(s.out, "\n%s: archive error: %s\n", ownerID, err)
		result.Errored = true
		result.Error = err.Error()
		return result
	}

	targets, skipped := s.selector.Select(variants, index)

	logger.Logger.Info("Owner processed",
		zap.String("owner", ownerID),
		zap.Int("videos", videosFound),
		zap.Int("variants", len(variants)),
		zap.Int("targets", len(targets)),
		zap.Int("skipped", skipped))

	fmt.Fprintf(s.out, "\n%s: %d video(s), %d to download, %d skipped\n",
		ownerID, videosFound, len(targets), skipped)

	outcomes, stats := s.downloader.DownloadAll(ctx, ownerID, targets)
	stats.Skipped = skipped

	result.Stats = stats
	result.Outcomes = outcomes
	return result
}
