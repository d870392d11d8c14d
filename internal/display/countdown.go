package display

import (
	"context"
	"fmt"
	"io"
	"time"
)

// FormatCountdown renders a remaining duration as m:ss, clamped at 0:00.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// Countdown redraws "Time remaining: m:ss" once a second on a single line
// until the deadline passes or ctx ends.
func Countdown(ctx context.Context, w io.Writer, deadline time.Time) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		remaining := time.Until(deadline)
		fmt.Fprintf(w, "\rTime remaining: %s ", FormatCountdown(remaining))
		if remaining <= 0 {
			fmt.Fprintln(w)
			return
		}

		select {
		case <-ctx.Done():
			fmt.Fprintln(w)
			return
		case <-ticker.C:
		}
	}
}
