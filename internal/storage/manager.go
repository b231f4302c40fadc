package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"videoarchive/internal/model"
	"videoarchive/pkg/logger"

	"go.uber.org/zap"
)

const tempSuffix = ".tmp"

// Manager handles the local archive: one directory per owner, one file per
// downloaded video. File presence is the only persisted record of what has
// been downloaded; nothing here ever ages archived files out.
type Manager struct {
	cfg model.StorageConfig
}

// NewManager creates a new storage manager
func NewManager(cfg model.StorageConfig) *Manager {
	return &Manager{cfg: cfg}
}

// BaseDir returns the archive root
func (m *Manager) BaseDir() string {
	return m.cfg.BaseDir
}

// EnsureBaseDir creates the archive root if missing
func (m *Manager) EnsureBaseDir() error {
	if err := os.MkdirAll(m.cfg.BaseDir, 0755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}
	return nil
}

// EnsureOwnerDir creates the owner's directory if missing and returns it
func (m *Manager) EnsureOwnerDir(ownerID string) (string, error) {
	dir := filepath.Join(m.cfg.BaseDir, ownerID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create owner directory: %w", err)
	}
	return dir, nil
}

// VideoFilename returns the deterministic archive filename for a video
func VideoFilename(logicalVideoID int, quality model.Quality) string {
	return fmt.Sprintf("video_%d_%s.mp4", logicalVideoID, quality)
}

// VideoPath returns the final path for a video of one owner
func (m *Manager) VideoPath(ownerID string, logicalVideoID int, quality model.Quality) string {
	return filepath.Join(m.cfg.BaseDir, ownerID, VideoFilename(logicalVideoID, quality))
}

// ParseVideoFilename is the inverse of VideoFilename. ok is false for any
// name that is not a deterministic archive name.
func ParseVideoFilename(name string) (int, model.Quality, bool) {
	if !strings.HasPrefix(name, "video_") || !strings.HasSuffix(name, ".mp4") {
		return 0, "", false
	}
	core := strings.TrimSuffix(strings.TrimPrefix(name, "video_"), ".mp4")
	idx := strings.LastIndex(core, "_")
	if idx <= 0 {
		return 0, "", false
	}
	id, err := strconv.Atoi(core[:idx])
	if err != nil || id < 0 {
		return 0, "", false
	}
	quality, err := model.ParseQuality(core[idx+1:])
	if err != nil {
		return 0, "", false
	}
	return id, quality, true
}

// OwnerIndex is the existence oracle for one owner, built from a single
// directory read at the start of a run.
type OwnerIndex struct {
	videos map[int]struct{}
	files  map[string]struct{}
}

// HasVideo reports whether any file for the logical video exists
func (ix *OwnerIndex) HasVideo(logicalVideoID int) bool {
	_, ok := ix.videos[logicalVideoID]
	return ok
}

// HasFile reports whether the exact (video, quality) file exists
func (ix *OwnerIndex) HasFile(logicalVideoID int, quality model.Quality) bool {
	_, ok := ix.files[VideoFilename(logicalVideoID, quality)]
	return ok
}

// ScanOwner reads the owner directory once and returns the existence
// oracle for it. A missing directory yields an empty index.
func (m *Manager) ScanOwner(ownerID string) (*OwnerIndex, error) {
	ix := &OwnerIndex{
		videos: make(map[int]struct{}),
		files:  make(map[string]struct{}),
	}

	dir := filepath.Join(m.cfg.BaseDir, ownerID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return ix, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan owner directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, _, ok := ParseVideoFilename(entry.Name())
		if !ok {
			continue
		}
		ix.videos[id] = struct{}{}
		ix.files[entry.Name()] = struct{}{}
	}

	logger.Logger.Debug("Owner archive scanned",
		zap.String("owner", ownerID),
		zap.Int("videos", len(ix.videos)),
		zap.Int("files", len(ix.files)))

	return ix, nil
}

// CreateTemp opens the temp file a download streams into. The temp name is
// derived from the final path so concurrent targets never collide (each
// logical video has exactly one representative per run).
func (m *Manager) CreateTemp(finalPath string) (*os.File, error) {
	f, err := os.Create(finalPath + tempSuffix)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return f, nil
}

// Finalize atomically moves a completed temp file to its final path
func (m *Manager) Finalize(finalPath string) error {
	if err := os.Rename(finalPath+tempSuffix, finalPath); err != nil {
		return fmt.Errorf("finalize download: %w", err)
	}
	return nil
}

// DiscardTemp removes the temp file of a failed download. The final path
// is never created for a failed target.
func (m *Manager) DiscardTemp(finalPath string) {
	if err := os.Remove(finalPath + tempSuffix); err != nil && !os.IsNotExist(err) {
		logger.Logger.Warn("Could not remove temp file",
			zap.String("path", finalPath+tempSuffix),
			zap.Error(err))
	}
}

// CleanupStale removes temp files left behind by a crashed run. Called
// once at startup, before any download.
func (m *Manager) CleanupStale() int {
	removed := 0

	owners, err := m.ListOwners()
	if err != nil {
		return 0
	}
	for _, owner := range owners {
		dir := filepath.Join(m.cfg.BaseDir, owner)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), tempSuffix) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		logger.Logger.Info("Stale temp files removed", zap.Int("count", removed))
	}
	return removed
}

// OwnerExists reports whether the owner has a directory in the archive
func (m *Manager) OwnerExists(ownerID string) bool {
	info, err := os.Stat(filepath.Join(m.cfg.BaseDir, ownerID))
	return err == nil && info.IsDir()
}

// ListOwners returns the owner directories present in the archive, sorted
func (m *Manager) ListOwners() ([]string, error) {
	entries, err := os.ReadDir(m.cfg.BaseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}

	var owners []string
	for _, entry := range entries {
		if entry.IsDir() {
			owners = append(owners, entry.Name())
		}
	}
	sort.Strings(owners)
	return owners, nil
}

// ListVideos returns the archived videos of one owner, sorted by logical
// video id. Files that do not match the deterministic naming are ignored.
func (m *Manager) ListVideos(ownerID string) ([]model.ArchivedVideo, error) {
	dir := filepath.Join(m.cfg.BaseDir, ownerID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list owner videos: %w", err)
	}

	var videos []model.ArchivedVideo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, quality, ok := ParseVideoFilename(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		videos = append(videos, model.ArchivedVideo{
			Filename:       entry.Name(),
			LogicalVideoID: id,
			Quality:        quality,
			Size:           info.Size(),
			ModTime:        info.ModTime(),
		})
	}

	sort.Slice(videos, func(i, j int) bool {
		if videos[i].LogicalVideoID != videos[j].LogicalVideoID {
			return videos[i].LogicalVideoID < videos[j].LogicalVideoID
		}
		return videos[i].Filename < videos[j].Filename
	})
	return videos, nil
}
