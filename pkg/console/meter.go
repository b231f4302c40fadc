package console

import (
	"fmt"
	"io"
	"time"

	"github.com/mattn/go-runewidth"
)

// DefaultInterval is the minimum time between progress renders.
const DefaultInterval = time.Second

const labelWidth = 28

// Meter is an io.Writer that renders a single-line progress indicator for
// one transfer. Feed it through io.MultiWriter alongside the destination
// file. Renders are throttled to at most one per interval; Finish always
// renders the final state.
type Meter struct {
	w        io.Writer
	label    string
	total    int64 // -1 when unknown
	written  int64
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

// NewMeter creates a progress meter. total may be -1 (or any negative)
// when the content length is not declared; progress is then reported as
// bytes received.
func NewMeter(w io.Writer, label string, total int64, interval time.Duration) *Meter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Meter{
		w:        w,
		label:    runewidth.FillRight(runewidth.Truncate(label, labelWidth, "…"), labelWidth),
		total:    total,
		interval: interval,
		now:      time.Now,
	}
}

// Write accumulates transferred bytes and renders when the throttle allows
func (m *Meter) Write(p []byte) (int, error) {
	m.written += int64(len(p))

	now := m.now()
	if now.Sub(m.last) >= m.interval {
		m.last = now
		m.render(false)
	}
	return len(p), nil
}

// Finish renders the final state and terminates the line
func (m *Meter) Finish() {
	m.render(true)
	fmt.Fprintln(m.w)
}

func (m *Meter) render(final bool) {
	if m.total > 0 {
		pct := float64(m.written) / float64(m.total) * 100
		if pct > 100 {
			pct = 100
		}
		fmt.Fprintf(m.w, "\r%s %6.1f%% of %s", m.label, pct, HumanBytes(m.total))
		return
	}
	// Indeterminate: content length was not declared
	marker := ""
	if !final {
		marker = "..."
	}
	fmt.Fprintf(m.w, "\r%s %s%s", m.label, HumanBytes(m.written), marker)
}

// HumanBytes formats a byte count with a binary unit suffix
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for n >= unit*div && exp < 4 {
		div *= unit
		exp++
	}
	value := float64(n) / float64(div)
	suffix := []string{"KB", "MB", "GB", "TB"}
	return fmt.Sprintf("%.1f%s", value, suffix[exp])
}
