package service

import (
	"sort"
	"strings"

	"videoarchive/internal/model"
	"videoarchive/pkg/logger"

	"go.uber.org/zap"
)

// Bitrate thresholds for quality buckets, inclusive lower bounds.
const (
	bitrate1080p = 5000000
	bitrate720p  = 2000000
	bitrate480p  = 900000
)

const defaultMaxScanDepth = 64

// ExtractService walks captured payloads and produces video variants.
// Payloads are arbitrarily nested JSON of unknown shape; any object
// carrying a video_info field with a variants list is one logical video.
type ExtractService struct {
	maxDepth int
}

// NewExtractService creates a new extract service
func NewExtractService(maxDepth int) *ExtractService {
	if maxDepth < 1 {
		maxDepth = defaultMaxScanDepth
	}
	return &ExtractService{maxDepth: maxDepth}
}

// Extract walks the payload depth-first and returns every playable variant
// plus the number of logical videos discovered. The discovery counter
// increments for each video_info+variants shape found, before any variant
// filtering, so a video with no playable variants still consumes an id.
// Pure function of its input; no I/O.
func (s *ExtractService) Extract(payload any, ownerID string) ([]model.VideoVariant, int) {
	variants := make([]model.VideoVariant, 0, 8)
	videoCount := 0

	s.walk(payload, ownerID, 0, &videoCount, &variants)

	logger.Logger.Debug("Payload extracted",
		zap.String("owner", ownerID),
		zap.Int("videos", videoCount),
		zap.Int("variants", len(variants)))

	return variants, videoCount
}

func (s *ExtractService) walk(v any, ownerID string, depth int, videoCount *int, out *[]model.VideoVariant) {
	if depth > s.maxDepth {
		return
	}

	switch t := v.(type) {
	case map[string]any:
		if vi, ok := t["video_info"].(map[string]any); ok {
			if vs, ok := vi["variants"].([]any); ok {
				*videoCount++
				*out = append(*out, collectVariants(vs, *videoCount, ownerID)...)
				// The carrying object is consumed whole; a variant list
				// never nests another logical video.
				return
			}
		}
		// Map iteration order is random in Go; visit keys sorted so
		// discovery order, and with it every logical video id, is stable
		// across runs of the same payload.
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			s.walk(t[k], ownerID, depth+1, videoCount, out)
		}
	case []any:
		for _, child := range t {
			s.walk(child, ownerID, depth+1, videoCount, out)
		}
	}
}

// collectVariants filters one variants list down to playable entries and
// sorts them by descending bitrate. The sort is stable: equal bitrates
// keep their encounter order.
func collectVariants(vs []any, logicalVideoID int, ownerID string) []model.VideoVariant {
	var collected []model.VideoVariant

	for _, it := range vs {
		mv, ok := it.(map[string]any)
		if !ok {
			continue
		}
		ct, _ := mv["content_type"].(string)
		if !strings.Contains(strings.ToLower(ct), "video/mp4") {
			continue
		}
		u, _ := mv["url"].(string)
		if u == "" {
			continue
		}
		var br int64
		if f, ok := mv["bitrate"].(float64); ok && f > 0 {
			br = int64(f)
		}
		collected = append(collected, model.VideoVariant{
			LogicalVideoID: logicalVideoID,
			OwnerID:        ownerID,
			Quality:        classifyQuality(br),
			Bitrate:        br,
			SourceURL:      u,
			ContentType:    ct,
		})
	}

	sort.SliceStable(collected, func(i, j int) bool {
		return collected[i].Bitrate > collected[j].Bitrate
	})
	return collected
}

// classifyQuality buckets a bitrate into a quality label. The highest
// matching bucket wins.
func classifyQuality(bitrate int64) model.Quality {
	switch {
	case bitrate >= bitrate1080p:
		return model.Quality1080p
	case bitrate >= bitrate720p:
		return model.Quality720p
	case bitrate >= bitrate480p:
		return model.Quality480p
	default:
		return model.Quality320p
	}
}
