package printer

import (
	"fmt"
	"time"

	"github.com/slok/imagegen/internal/model"
)

// TimestampLayout is the layout of the absolute times printed on tables.
const TimestampLayout = "2006-01-02 15:04:05 UTC"

// FormatTimestamp formats an optional session time, "-" when unset.
func FormatTimestamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format(TimestampLayout)
}

// FormatAge returns how long ago t happened using its largest unit, e.g. "5m ago".
func FormatAge(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(d.Hours()/24))
}

// SessionElapsed returns how long a session has been running, until it finished or
// until now. It's false for sessions that never started.
func SessionElapsed(s model.Session, now time.Time) (time.Duration, bool) {
	if s.StartedAt == nil {
		return 0, false
	}

	end := now
	if s.CompletedAt != nil {
		end = *s.CompletedAt
	}
	if end.Before(*s.StartedAt) {
		return 0, false
	}

	return end.Sub(*s.StartedAt), true
}

// EstimateRemaining estimates the time to generate the pending items from the mean
// generation time of the processed ones.
func EstimateRemaining(s model.Session) (time.Duration, bool) {
	pending := len(s.Items) - s.Cursor
	if pending <= 0 || len(s.Results) == 0 || s.Status.Terminal() {
		return 0, false
	}

	var total time.Duration
	for _, r := range s.Results {
		total += r.Duration
	}

	return total / time.Duration(len(s.Results)) * time.Duration(pending), true
}
