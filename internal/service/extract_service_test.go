package service

import (
	"encoding/json"
	"testing"

	"videoarchive/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestExtractTwoVariantScenario(t *testing.T) {
	payload := mustDecode(t, `{
		"video_info": {
			"variants": [
				{"content_type": "video/mp4", "bitrate": 900000, "url": "a"},
				{"content_type": "video/mp4", "bitrate": 2500000, "url": "b"}
			]
		}
	}`)

	s := NewExtractService(0)
	variants, videos := s.Extract(payload, "alice")

	assert.Equal(t, 1, videos)
	require.Len(t, variants, 2)

	// Sorted by descending bitrate
	assert.Equal(t, "b", variants[0].SourceURL)
	assert.Equal(t, model.Quality720p, variants[0].Quality)
	assert.Equal(t, int64(2500000), variants[0].Bitrate)
	assert.Equal(t, "a", variants[1].SourceURL)
	assert.Equal(t, model.Quality480p, variants[1].Quality)
	assert.Equal(t, int64(900000), variants[1].Bitrate)

	for _, v := range variants {
		assert.Equal(t, 1, v.LogicalVideoID)
		assert.Equal(t, "alice", v.OwnerID)
	}
}

func TestClassifyQualityThresholds(t *testing.T) {
	tests := []struct {
		name    string
		bitrate int64
		want    model.Quality
	}{
		{name: "zero", bitrate: 0, want: model.Quality320p},
		{name: "just below 480p", bitrate: 899999, want: model.Quality320p},
		{name: "exactly 480p bound", bitrate: 900000, want: model.Quality480p},
		{name: "one million", bitrate: 1000000, want: model.Quality480p},
		{name: "just below 720p", bitrate: 1999999, want: model.Quality480p},
		{name: "exactly 720p bound", bitrate: 2000000, want: model.Quality720p},
		{name: "three million", bitrate: 3000000, want: model.Quality720p},
		{name: "just below 1080p", bitrate: 4999999, want: model.Quality720p},
		{name: "exactly 1080p bound", bitrate: 5000000, want: model.Quality1080p},
		{name: "six million", bitrate: 6000000, want: model.Quality1080p},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyQuality(tt.bitrate))
		})
	}
}

func TestExtractFiltersNonPlayableVariants(t *testing.T) {
	payload := mustDecode(t, `{
		"video_info": {
			"variants": [
				{"content_type": "application/x-mpegURL", "url": "playlist.m3u8"},
				{"content_type": "video/mp4; codecs=\"avc1\"", "bitrate": 1200000, "url": "coded"},
				{"content_type": "video/webm", "bitrate": 9000000, "url": "webm"},
				{"bitrate": 500000, "url": "untyped"},
				{"content_type": "video/mp4", "bitrate": 700000}
			]
		}
	}`)

	s := NewExtractService(0)
	variants, videos := s.Extract(payload, "alice")

	assert.Equal(t, 1, videos)
	require.Len(t, variants, 1, "only the codec-suffixed mp4 variant qualifies")
	assert.Equal(t, "coded", variants[0].SourceURL)
}

func TestExtractCountsVideosWithNoPlayableVariants(t *testing.T) {
	// The discovery counter increments before variant filtering, so the
	// first video consumes id 1 even though every variant is a manifest.
	payload := mustDecode(t, `[
		{"video_info": {"variants": [
			{"content_type": "application/x-mpegURL", "url": "one.m3u8"}
		]}},
		{"video_info": {"variants": [
			{"content_type": "video/mp4", "bitrate": 1000000, "url": "two.mp4"}
		]}}
	]`)

	s := NewExtractService(0)
	variants, videos := s.Extract(payload, "alice")

	assert.Equal(t, 2, videos)
	require.Len(t, variants, 1)
	assert.Equal(t, 2, variants[0].LogicalVideoID)
}

func TestExtractMissingBitrateSortsLast(t *testing.T) {
	payload := mustDecode(t, `{
		"video_info": {
			"variants": [
				{"content_type": "video/mp4", "url": "no-bitrate"},
				{"content_type": "video/mp4", "bitrate": 950000, "url": "with-bitrate"}
			]
		}
	}`)

	s := NewExtractService(0)
	variants, _ := s.Extract(payload, "alice")

	require.Len(t, variants, 2)
	assert.Equal(t, "with-bitrate", variants[0].SourceURL)
	assert.Equal(t, "no-bitrate", variants[1].SourceURL)
	assert.Equal(t, int64(0), variants[1].Bitrate)
	assert.Equal(t, model.Quality320p, variants[1].Quality)
}

func TestExtractStableOrderOnEqualBitrates(t *testing.T) {
	payload := mustDecode(t, `{
		"video_info": {
			"variants": [
				{"content_type": "video/mp4", "bitrate": 1000000, "url": "first"},
				{"content_type": "video/mp4", "bitrate": 1000000, "url": "second"},
				{"content_type": "video/mp4", "bitrate": 1000000, "url": "third"}
			]
		}
	}`)

	s := NewExtractService(0)
	variants, _ := s.Extract(payload, "alice")

	require.Len(t, variants, 3)
	assert.Equal(t, "first", variants[0].SourceURL)
	assert.Equal(t, "second", variants[1].SourceURL)
	assert.Equal(t, "third", variants[2].SourceURL)
}

func TestExtractFindsDeeplyNestedVideos(t *testing.T) {
	payload := mustDecode(t, `{
		"data": {
			"timeline": [
				{"entries": [
					{"content": {"media": {
						"video_info": {"variants": [
							{"content_type": "video/mp4", "bitrate": 2500000, "url": "deep"}
						]}
					}}}
				]}
			]
		}
	}`)

	s := NewExtractService(0)
	variants, videos := s.Extract(payload, "alice")

	assert.Equal(t, 1, videos)
	require.Len(t, variants, 1)
	assert.Equal(t, "deep", variants[0].SourceURL)
}

func TestExtractAssignsIDsInDiscoveryOrder(t *testing.T) {
	payload := mustDecode(t, `[
		{"video_info": {"variants": [{"content_type": "video/mp4", "bitrate": 1, "url": "v1"}]}},
		{"filler": true},
		{"video_info": {"variants": [{"content_type": "video/mp4", "bitrate": 2, "url": "v2"}]}},
		{"video_info": {"variants": [{"content_type": "video/mp4", "bitrate": 3, "url": "v3"}]}}
	]`)

	s := NewExtractService(0)
	variants, videos := s.Extract(payload, "alice")

	assert.Equal(t, 3, videos)
	require.Len(t, variants, 3)
	assert.Equal(t, 1, variants[0].LogicalVideoID)
	assert.Equal(t, "v1", variants[0].SourceURL)
	assert.Equal(t, 2, variants[1].LogicalVideoID)
	assert.Equal(t, 3, variants[2].LogicalVideoID)
}

func TestExtractMapKeysVisitedInSortedOrder(t *testing.T) {
	// Object keys have no reliable order once decoded; ids must not
	// depend on it, so sibling keys are visited sorted. "a" wins id 1
	// even though "b" appears first in the document.
	payload := mustDecode(t, `{
		"b": {"video_info": {"variants": [{"content_type": "video/mp4", "bitrate": 1, "url": "under-b"}]}},
		"a": {"video_info": {"variants": [{"content_type": "video/mp4", "bitrate": 1, "url": "under-a"}]}}
	}`)

	s := NewExtractService(0)

	variants, videos := s.Extract(payload, "alice")
	assert.Equal(t, 2, videos)
	require.Len(t, variants, 2)
	assert.Equal(t, "under-a", variants[0].SourceURL)
	assert.Equal(t, 1, variants[0].LogicalVideoID)
	assert.Equal(t, "under-b", variants[1].SourceURL)
	assert.Equal(t, 2, variants[1].LogicalVideoID)

	// Same payload, same result
	again, againVideos := s.Extract(payload, "alice")
	assert.Equal(t, videos, againVideos)
	assert.Equal(t, variants, again)
}

func TestExtractDoesNotScanInsideDetectedVideo(t *testing.T) {
	// Once an object is detected as a logical video it is consumed whole;
	// anything nested beneath it is not scanned again.
	payload := mustDecode(t, `{
		"video_info": {"variants": [{"content_type": "video/mp4", "bitrate": 1, "url": "outer"}]},
		"extras": {"video_info": {"variants": [{"content_type": "video/mp4", "bitrate": 2, "url": "inner"}]}}
	}`)

	s := NewExtractService(0)
	variants, videos := s.Extract(payload, "alice")

	assert.Equal(t, 1, videos)
	require.Len(t, variants, 1)
	assert.Equal(t, "outer", variants[0].SourceURL)
}

func TestExtractMalformedShapes(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantVideos int
	}{
		{name: "scalar payload", raw: `"just a string"`},
		{name: "number payload", raw: `42`},
		{name: "null payload", raw: `null`},
		{name: "video_info not an object", raw: `{"video_info": [1, 2, 3]}`},
		{name: "variants not a list", raw: `{"video_info": {"variants": {"content_type": "video/mp4", "url": "x"}}}`},
		// Shape detected, every entry filtered
		{name: "variant entries not objects", raw: `{"video_info": {"variants": ["video/mp4", 7]}}`, wantVideos: 1},
	}

	s := NewExtractService(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			variants, videos := s.Extract(mustDecode(t, tt.raw), "alice")
			assert.Empty(t, variants)
			assert.Equal(t, tt.wantVideos, videos)
		})
	}
}

func TestExtractDepthGuard(t *testing.T) {
	deep := mustDecode(t, `{"l1": {"l2": {"l3": {"l4": {
		"video_info": {"variants": [{"content_type": "video/mp4", "bitrate": 1, "url": "buried"}]}
	}}}}`)

	shallow := NewExtractService(3)
	variants, videos := shallow.Extract(deep, "alice")
	assert.Zero(t, videos)
	assert.Empty(t, variants, "traversal stops at the depth guard")

	roomy := NewExtractService(10)
	variants, videos = roomy.Extract(deep, "alice")
	assert.Equal(t, 1, videos)
	assert.Len(t, variants, 1)
}
