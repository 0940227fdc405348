package render

import (
	"fmt"
	"math"
	"os"
	"time"

	"golang.org/x/term"
)

// FormatDuration renders seconds using the two most significant units,
// e.g. "3d 4h", "2h", "5m 10s". Non-positive and non-finite input is "0s".
func FormatDuration(totalSeconds float64) string {
	if math.IsNaN(totalSeconds) || math.IsInf(totalSeconds, 0) || totalSeconds <= 0 {
		return "0s"
	}

	s := int64(math.Floor(totalSeconds))
	days := s / 86400
	hours := (s % 86400) / 3600
	minutes := (s % 3600) / 60
	seconds := s % 60

	switch {
	case days > 0:
		if hours > 0 {
			return fmt.Sprintf("%dd %dh", days, hours)
		}
		return fmt.Sprintf("%dd", days)
	case hours > 0:
		if minutes > 0 {
			return fmt.Sprintf("%dh %dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	case minutes > 0:
		if seconds > 0 {
			return fmt.Sprintf("%dm %ds", minutes, seconds)
		}
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%ds", seconds)
}

// FormatLocalTimestamp renders t in the local zone as "YYYY-MM-DD HH:MM".
func FormatLocalTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

// StdoutColumns returns the terminal width of stdout, or 0 when stdout is
// not a terminal.
func StdoutColumns() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return 0
	}
	return w
}
