package console

import (
	"fmt"
	"io"
	"time"

	"videoarchive/internal/model"

	"github.com/mattn/go-runewidth"
)

const ownerColWidth = 20

// StatusLine writes one per-file result line
func StatusLine(w io.Writer, ok bool, filename string, detail string) {
	mark := "✓"
	if !ok {
		mark = "✗"
	}
	name := runewidth.FillRight(filename, labelWidth)
	if detail != "" {
		fmt.Fprintf(w, "%s %s %s\n", mark, name, detail)
		return
	}
	fmt.Fprintf(w, "%s %s\n", mark, name)
}

// RenderSummary writes the end-of-run table. Every number comes straight
// from the summary; nothing is recomputed here.
func RenderSummary(w io.Writer, s *model.RunSummary) {
	fmt.Fprintf(w, "\nRun %s finished in %s\n\n", s.RunID, s.Duration.Round(10*time.Millisecond))

	fmt.Fprintf(w, "%s %8s %8s %8s %8s %10s %9s\n",
		runewidth.FillRight("OWNER", ownerColWidth),
		"VIDEOS", "NEW", "FAILED", "SKIPPED", "MB", "MIRRORED")

	for _, o := range s.Owners {
		owner := runewidth.FillRight(runewidth.Truncate(o.OwnerID, ownerColWidth, "…"), ownerColWidth)
		if o.Errored {
			fmt.Fprintf(w, "%s source error: %s\n", owner, o.Error)
			continue
		}
		fmt.Fprintf(w, "%s %8d %8d %8d %8d %10.2f %9d\n",
			owner,
			o.VideosFound,
			o.Stats.Succeeded,
			o.Stats.Failed,
			o.Stats.Skipped,
			o.Stats.TotalMB(),
			o.Stats.MirrorUploaded)
	}

	fmt.Fprintf(w, "\nTotal: %d downloaded, %d failed, %d skipped, %.2f MB",
		s.Totals.Succeeded, s.Totals.Failed, s.Totals.Skipped, s.Totals.TotalMB())
	if s.Totals.MirrorUploaded > 0 || s.Totals.MirrorFailed > 0 {
		fmt.Fprintf(w, ", mirror %d uploaded / %d failed", s.Totals.MirrorUploaded, s.Totals.MirrorFailed)
	}
	fmt.Fprintln(w)

	if s.OwnersErrored > 0 {
		fmt.Fprintf(w, "%d owner(s) errored\n", s.OwnersErrored)
	}
}
