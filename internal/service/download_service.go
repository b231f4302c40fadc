package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"videoarchive/internal/mirror"
	"videoarchive/internal/model"
	"videoarchive/internal/storage"
	"videoarchive/pkg/console"
	"videoarchive/pkg/logger"

	"github.com/h2non/filetype"
	"go.uber.org/zap"
)

const (
	// readChunkSize is the streaming read size; progress ticks between
	// chunks rather than after the whole body.
	readChunkSize = 32 * 1024

	// sniffLen is the most filetype needs to identify a container format.
	sniffLen = 261
)

// DownloadService fetches selected targets in fixed-size batches. A batch
// is dispatched concurrently and the next one starts only after every
// download in it has settled. Failures are isolated per target and never
// retried.
type DownloadService struct {
	cfg        model.DownloadConfig
	httpClient *http.Client
	store      *storage.Manager
	mirror     mirror.Mirror
	out        io.Writer
}

// NewDownloadService creates a new download service. mir may be nil when
// mirroring is disabled for the run.
func NewDownloadService(cfg model.DownloadConfig, store *storage.Manager, mir mirror.Mirror, out io.Writer) *DownloadService {
	if out == nil {
		out = os.Stdout
	}
	return &DownloadService{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		store:  store,
		mirror: mir,
		out:    &syncWriter{w: out},
	}
}

// DownloadAll downloads every target for one owner and returns one outcome
// per target, in target order, plus the aggregated stats. Skipped counts
// are the selection stage's concern and stay zero here.
func (s *DownloadService) DownloadAll(ctx context.Context, ownerID string, targets []model.DownloadTarget) ([]model.DownloadOutcome, model.DownloadStats) {
	outcomes := make([]model.DownloadOutcome, len(targets))

	batchSize := s.cfg.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	for start := 0; start < len(targets); start += batchSize {
		end := start + batchSize
		if end > len(targets) {
			end = len(targets)
		}

		logger.Logger.Debug("Dispatching batch",
			zap.String("owner", ownerID),
			zap.Int("from", start),
			zap.Int("count", end-start))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outcomes[i] = s.downloadOne(ctx, ownerID, targets[i])
			}(i)
		}
		wg.Wait()

		for i := start; i < end; i++ {
			s.printStatus(outcomes[i])
		}

		if end < len(targets) && s.cfg.BatchDelaySeconds > 0 {
			time.Sleep(time.Duration(s.cfg.BatchDelaySeconds) * time.Second)
		}
	}

	var stats model.DownloadStats
	for _, o := range outcomes {
		stats.Record(o)
	}
	return outcomes, stats
}

// downloadOne fetches a single target into its owner directory and hands
// the finished file to the mirror. The mirror result is recorded on the
// outcome and never changes the download result.
func (s *DownloadService) downloadOne(ctx context.Context, ownerID string, target model.DownloadTarget) model.DownloadOutcome {
	outcome := model.DownloadOutcome{
		Target: target,
		Mirror: model.MirrorOutcome{Reason: model.MirrorDisabled},
	}
	start := time.Now()

	filename := storage.VideoFilename(target.LogicalVideoID, target.Quality)

	if _, err := s.store.EnsureOwnerDir(ownerID); err != nil {
		outcome.Error = err.Error()
		outcome.Duration = time.Since(start)
		return outcome
	}
	finalPath := s.store.VideoPath(ownerID, target.LogicalVideoID, target.Quality)

	written, err := s.fetch(ctx, target.SourceURL, filename, finalPath)
	outcome.Duration = time.Since(start)
	if err != nil {
		logger.Logger.Warn("Download failed",
			zap.String("owner", ownerID),
			zap.String("file", filename),
			zap.Error(err))
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Success = true
	outcome.BytesWritten = written
	logger.Logger.Info("Video downloaded",
		zap.String("owner", ownerID),
		zap.String("file", filename),
		zap.Int64("bytes", written))

	if s.mirror != nil {
		outcome.Mirror = s.mirror.Upload(ctx, ownerID, filename, finalPath)
		if outcome.Mirror.Reason == model.MirrorError {
			logger.Logger.Warn("Mirror upload failed",
				zap.String("owner", ownerID),
				zap.String("file", filename),
				zap.String("detail", outcome.Mirror.Detail))
		}
	}
	return outcome
}

// fetch streams one URL into a temp file and moves it to finalPath only
// after the full body arrived. A failed fetch leaves no file behind.
func (s *DownloadService) fetch(ctx context.Context, url, filename, finalPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "video/mp4,video/*;q=0.9,*/*;q=0.8")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tmp, err := s.store.CreateTemp(finalPath)
	if err != nil {
		return 0, err
	}

	meter := console.NewMeter(s.out, filename, resp.ContentLength, console.DefaultInterval)
	written, head, err := copyBody(resp.Body, io.MultiWriter(tmp, meter))
	meter.Finish()

	if err == nil && resp.ContentLength > 0 && written != resp.ContentLength {
		err = fmt.Errorf("short body: %d of %d bytes", written, resp.ContentLength)
	}
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close temp file: %w", closeErr)
	}
	if err != nil {
		s.store.DiscardTemp(finalPath)
		return 0, err
	}

	// The sniff only warns. The transfer is judged by HTTP status and
	// stream completion, not by what the bytes look like.
	if !filetype.IsVideo(head) {
		logger.Logger.Warn("Downloaded payload does not look like video",
			zap.String("file", filename),
			zap.Int("sniffed_bytes", len(head)))
	}

	if err := s.store.Finalize(finalPath); err != nil {
		s.store.DiscardTemp(finalPath)
		return 0, err
	}
	return written, nil
}

// copyBody streams src into dst in fixed-size reads, retaining the first
// bytes for content sniffing.
func copyBody(src io.Reader, dst io.Writer) (int64, []byte, error) {
	var written int64
	head := make([]byte, 0, sniffLen)
	buf := make([]byte, readChunkSize)

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if len(head) < sniffLen {
				take := sniffLen - len(head)
				if take > n {
					take = n
				}
				head = append(head, buf[:take]...)
			}
			wn, writeErr := dst.Write(buf[:n])
			written += int64(wn)
			if writeErr != nil {
				return written, head, fmt.Errorf("write temp file: %w", writeErr)
			}
		}
		if readErr == io.EOF {
			return written, head, nil
		}
		if readErr != nil {
			return written, head, fmt.Errorf("read body: %w", readErr)
		}
	}
}

func (s *DownloadService) printStatus(o model.DownloadOutcome) {
	name := storage.VideoFilename(o.Target.LogicalVideoID, o.Target.Quality)
	if o.Success {
		detail := fmt.Sprintf("%s in %s", console.HumanBytes(o.BytesWritten), o.Duration.Round(100*time.Millisecond))
		if o.Mirror.Reason == model.MirrorUploaded {
			detail += ", mirrored"
		}
		console.StatusLine(s.out, true, name, detail)
		return
	}
	console.StatusLine(s.out, false, name, o.Error)
}

// syncWriter serializes concurrent progress writes onto one stream
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (sw *syncWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.w.Write(p)
}
