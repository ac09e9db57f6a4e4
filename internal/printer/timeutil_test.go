package printer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/imagegen/internal/model"
	"github.com/slok/imagegen/internal/printer"
)

func TestFormatAge(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	tests := map[string]struct {
		time time.Time
		exp  string
	}{
		"Less than a second should be now.": {
			time: now.Add(-300 * time.Millisecond),
			exp:  "just now",
		},
		"A future time should be now.": {
			time: now.Add(5 * time.Minute),
			exp:  "just now",
		},
		"Seconds.": {
			time: now.Add(-30 * time.Second),
			exp:  "30s ago",
		},
		"Minutes should be truncated.": {
			time: now.Add(-45*time.Minute - 50*time.Second),
			exp:  "45m ago",
		},
		"Hours.": {
			time: now.Add(-5 * time.Hour),
			exp:  "5h ago",
		},
		"Days.": {
			time: now.Add(-7 * 24 * time.Hour),
			exp:  "7d ago",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, printer.FormatAge(test.time, now))
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	est := time.Date(2026, 1, 30, 10, 15, 30, 0, time.FixedZone("EST", -5*3600))

	assert.Equal(t, "-", printer.FormatTimestamp(nil))
	assert.Equal(t, "-", printer.FormatTimestamp(&time.Time{}))
	assert.Equal(t, "2026-01-30 15:15:30 UTC", printer.FormatTimestamp(&est))
}

func TestSessionElapsed(t *testing.T) {
	startedAt := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	completedAt := startedAt.Add(90 * time.Second)
	now := startedAt.Add(time.Hour)

	tests := map[string]struct {
		session model.Session
		expOK   bool
		exp     time.Duration
	}{
		"A session that never started should not have elapsed time.": {
			session: model.Session{Status: model.SessionStatusPending},
		},
		"A running session should count until now.": {
			session: model.Session{Status: model.SessionStatusRunning, StartedAt: &startedAt},
			expOK:   true,
			exp:     time.Hour,
		},
		"A finished session should count until it finished.": {
			session: model.Session{Status: model.SessionStatusCompleted, StartedAt: &startedAt, CompletedAt: &completedAt},
			expOK:   true,
			exp:     90 * time.Second,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := printer.SessionElapsed(test.session, now)
			assert.Equal(t, test.expOK, ok)
			assert.Equal(t, test.exp, got)
		})
	}
}

func TestEstimateRemaining(t *testing.T) {
	tests := map[string]struct {
		session func() model.Session
		expOK   bool
		exp     time.Duration
	}{
		"The mean generation time should be used for the pending items.": {
			session: sessionFixture,
			expOK:   true,
			exp:     15 * time.Second,
		},
		"A session without results can't be estimated.": {
			session: func() model.Session {
				s := sessionFixture()
				s.Cursor, s.CompletedCount, s.FailedCount, s.Results = 0, 0, 0, nil
				return s
			},
		},
		"A finished session has nothing remaining.": {
			session: func() model.Session {
				s := sessionFixture()
				s.Status = model.SessionStatusFailed
				return s
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := printer.EstimateRemaining(test.session())
			assert.Equal(t, test.expOK, ok)
			assert.Equal(t, test.exp, got)
		})
	}
}
