// Package render formats usage snapshots as fixed-width text bars.
package render

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/leiske/codex-usage/pkg/usage"
)

// PreferredWidth is the bar width used on wide terminals and non-terminals.
const PreferredWidth = 24

const (
	minWidth    = 10
	wideColumns = 80
	// columns reserved for the label, percentage and reset text
	lineOverhead = 40
)

// Options control Bars.
type Options struct {
	// Width of each bar. Zero means PreferredWidth.
	Width int
	// Verbose appends the local reset time to each line.
	Verbose bool
	// Now anchors reset timestamps. Zero means time.Now.
	Now time.Time
}

// ClampPercent limits p to [0, 100]. Non-finite values become 0.
func ClampPercent(p float64) float64 {
	switch {
	case math.IsNaN(p) || math.IsInf(p, 0):
		return 0
	case p <= 0:
		return 0
	case p >= 100:
		return 100
	}
	return p
}

// Bar draws "[###---]" with width cells, filled in proportion to percent.
func Bar(percent float64, width int) string {
	if width < 0 {
		width = 0
	}
	filled := int(math.Round(ClampPercent(percent) / 100 * float64(width)))
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

// Line renders one labelled window.
func Line(label string, w usage.Window, opts Options) string {
	width := opts.Width
	if width <= 0 {
		width = PreferredWidth
	}
	p := ClampPercent(w.UsedPercent)
	line := fmt.Sprintf("%-6s %s %d%% (resets in %s)",
		label, Bar(p, width), int(math.Round(p)), FormatDuration(w.ResetAfterSeconds))

	if opts.Verbose {
		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}
		resetAt := now.Add(time.Duration(math.Max(0, w.ResetAfterSeconds) * float64(time.Second)))
		line += " at " + FormatLocalTimestamp(resetAt)
	}
	return line
}

// Bars renders the 5-hour and weekly windows on two lines.
func Bars(snap *usage.Snapshot, opts Options) string {
	return Line("5-hour", snap.Primary, opts) + "\n" + Line("Weekly", snap.Secondary, opts)
}

// ComputeBarWidth narrows the bar on terminals under 80 columns. columns <= 0
// means the width is unknown.
func ComputeBarWidth(columns, preferred int) int {
	if columns <= 0 || columns >= wideColumns {
		return preferred
	}
	w := columns - lineOverhead
	if w > preferred {
		w = preferred
	}
	if w < minWidth {
		w = minWidth
	}
	return w
}
