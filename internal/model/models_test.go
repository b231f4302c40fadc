package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseQuality(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Quality
		wantErr bool
	}{
		{name: "lowest bucket", input: "320p", want: Quality320p},
		{name: "highest bucket", input: "1080p", want: Quality1080p},
		{name: "unknown value", input: "4k", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "case sensitive", input: "720P", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuality(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDownloadStatsRecord(t *testing.T) {
	var s DownloadStats

	s.Record(DownloadOutcome{Success: true, BytesWritten: 1024, Mirror: MirrorOutcome{Reason: MirrorUploaded, Success: true, Attempted: true}})
	s.Record(DownloadOutcome{Success: true, BytesWritten: 2048, Mirror: MirrorOutcome{Reason: MirrorAlreadyPresent, Success: true, Attempted: true}})
	s.Record(DownloadOutcome{Success: false, Mirror: MirrorOutcome{Reason: MirrorDisabled}})
	s.Record(DownloadOutcome{Success: true, BytesWritten: 512, Mirror: MirrorOutcome{Reason: MirrorError, Attempted: true}})

	assert.Equal(t, 3, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, int64(3584), s.TotalBytes)
	assert.Equal(t, 1, s.MirrorUploaded)
	assert.Equal(t, 1, s.MirrorFailed)
	assert.Equal(t, 0, s.Skipped, "skipped must come from selection, not outcomes")
}

func TestDownloadStatsMerge(t *testing.T) {
	a := DownloadStats{Succeeded: 2, Failed: 1, Skipped: 3, TotalBytes: 100, MirrorUploaded: 2}
	b := DownloadStats{Succeeded: 1, Failed: 2, Skipped: 1, TotalBytes: 50, MirrorFailed: 1}

	a.Merge(b)

	assert.Equal(t, DownloadStats{Succeeded: 3, Failed: 3, Skipped: 4, TotalBytes: 150, MirrorUploaded: 2, MirrorFailed: 1}, a)
}

func TestDownloadStatsTotalMB(t *testing.T) {
	s := DownloadStats{TotalBytes: 5 * 1024 * 1024}
	assert.InDelta(t, 5.0, s.TotalMB(), 0.0001)
}

func TestRunSummaryFailed(t *testing.T) {
	ok := RunSummary{OwnersErrored: 0}
	assert.False(t, ok.Failed())

	bad := RunSummary{OwnersErrored: 1}
	assert.True(t, bad.Failed())
}
