package printer_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/imagegen/internal/model"
	"github.com/slok/imagegen/internal/printer"
)

func sessionFixture() model.Session {
	startedAt := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	return model.Session{
		ID:        "s1",
		Status:    model.SessionStatusRunning,
		OutputDir: "/data/output/s1",
		StartedAt: &startedAt,
		Items: []model.WorkItem{
			{Position: "header", Prompt: "a"},
			{Position: "section-1", Prompt: "b"},
			{Position: "section-2", Prompt: "c"},
			{Position: "footer", Prompt: "d"},
		},
		Cursor:         2,
		CompletedCount: 1,
		FailedCount:    1,
		Results: []model.ItemResult{
			{Index: 0, Position: "header", Status: model.ItemStatusSuccess, OutputPath: "/data/output/s1/header.png", Duration: 12 * time.Second, Timestamp: startedAt},
			{Index: 1, Position: "section-1", Status: model.ItemStatusFailed, Error: "out of memory", Duration: 3 * time.Second, Timestamp: startedAt},
		},
	}
}

func TestTablePrinterPrintStatus(t *testing.T) {
	s := sessionFixture()

	tests := map[string]struct {
		status printer.Status
		exp    []string
	}{
		"a running session should print progress and supervisor": {
			status: printer.Status{
				Session: &s,
				Lock:    &model.LockRecord{PID: 4242, AcquiredAt: time.Now().Add(-5 * time.Minute)},
				Alive:   true,
			},
			exp: []string{
				"Session:    s1",
				"Status:     running",
				"Progress:   2/4 (50.0%)",
				"Failed:     1",
				"Started:    2026-03-10 09:30:00 UTC",
				"Remaining:  ~15s",
				"Supervisor: running (PID: 4242, since 5m ago)",
			},
		},
		"a stale lock should be reported": {
			status: printer.Status{
				Session: &s,
				Lock:    &model.LockRecord{PID: 4242},
			},
			exp: []string{"Supervisor: stale lock (PID: 4242 not alive)"},
		},
		"no session should be reported": {
			status: printer.Status{},
			exp:    []string{"Session:    none", "Supervisor: not running"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			p := printer.NewTablePrinter(&buf)

			err := p.PrintStatus(test.status)
			require.NoError(t, err)

			for _, exp := range test.exp {
				assert.Contains(t, buf.String(), exp)
			}
		})
	}
}

func TestTablePrinterPrintResults(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintResults(sessionFixture())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"#", "POSITION", "STATUS", "TIME", "OUTPUT"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"1", "header", "success", "12s", "/data/output/s1/header.png"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"2", "section-1", "failed", "3s", "out", "of", "memory"}, strings.Fields(lines[2]))
}

func TestTablePrinterPrintOutcome(t *testing.T) {
	tests := map[string]struct {
		outcome model.RunOutcome
		exp     string
	}{
		"an interrupted run should tell how to continue": {
			outcome: model.RunOutcome{Session: sessionFixture(), Interrupted: true, Processed: 2},
			exp:     "Session s1 interrupted at 2/4, resume to continue",
		},
		"a finished run should print the final status": {
			outcome: func() model.RunOutcome {
				s := sessionFixture()
				s.Status = model.SessionStatusCompletedWithErrors
				return model.RunOutcome{Session: s, Processed: 4}
			}(),
			exp: "Session s1 completed_with_errors",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			p := printer.NewTablePrinter(&buf)

			err := p.PrintOutcome(test.outcome)
			require.NoError(t, err)
			assert.Contains(t, buf.String(), test.exp)
		})
	}
}

func TestJSONPrinterPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)
	s := sessionFixture()

	err := p.PrintStatus(printer.Status{Session: &s})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"session_id": "s1"`)
	assert.Contains(t, out, `"progress": 50`)
	assert.Contains(t, out, `"started_at": "2026-03-10T09:30:00Z"`)
	assert.Contains(t, out, `"completed_at": null`)
	assert.Contains(t, out, `"supervisor": null`)
}

func TestJSONPrinterPrintResults(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintResults(sessionFixture())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"generation_time_seconds": 12`)
	assert.Contains(t, out, `"error": "out of memory"`)
}

func TestJSONPrinterPrintLogs(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	err := p.PrintLogs(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestTablePrinterPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintMessage("ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", strings.TrimSpace(buf.String()))
}
