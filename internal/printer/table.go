package printer

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/slok/imagegen/internal/model"
)

// TablePrinter prints session information in a table format.
type TablePrinter struct {
	writer io.Writer
	now    func() time.Time
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w, now: time.Now}
}

// PrintStatus prints the session and supervisor status.
func (t *TablePrinter) PrintStatus(st Status) error {
	if st.Session == nil {
		fmt.Fprintf(t.writer, "Session:    none\n")
	} else {
		s := st.Session
		fmt.Fprintf(t.writer, "Session:    %s\n", s.ID)
		fmt.Fprintf(t.writer, "Status:     %s\n", s.Status)
		fmt.Fprintf(t.writer, "Progress:   %d/%d (%.1f%%)\n", s.Cursor, len(s.Items), Progress(*s))
		fmt.Fprintf(t.writer, "Completed:  %d\n", s.CompletedCount)
		fmt.Fprintf(t.writer, "Failed:     %d\n", s.FailedCount)
		fmt.Fprintf(t.writer, "Output:     %s\n", s.OutputDir)

		if s.StartedAt != nil {
			fmt.Fprintf(t.writer, "Started:    %s\n", FormatTimestamp(s.StartedAt))
		}

		if s.CompletedAt != nil {
			fmt.Fprintf(t.writer, "Finished:   %s\n", FormatTimestamp(s.CompletedAt))
		}

		if d, ok := SessionElapsed(*s, t.now()); ok {
			fmt.Fprintf(t.writer, "Elapsed:    %s\n", d.Round(time.Second))
		}

		if d, ok := EstimateRemaining(*s); ok {
			fmt.Fprintf(t.writer, "Remaining:  ~%s\n", d.Round(time.Second))
		}

		if s.Error != "" {
			fmt.Fprintf(t.writer, "Error:      %s\n", s.Error)
		}
	}

	switch {
	case st.Lock == nil:
		fmt.Fprintf(t.writer, "Supervisor: not running\n")
	case st.Alive:
		fmt.Fprintf(t.writer, "Supervisor: running (PID: %d, since %s)\n", st.Lock.PID, FormatAge(st.Lock.AcquiredAt, t.now()))
	default:
		fmt.Fprintf(t.writer, "Supervisor: stale lock (PID: %d not alive)\n", st.Lock.PID)
	}

	return nil
}

// PrintResults prints the processed items of a session.
func (t *TablePrinter) PrintResults(s model.Session) error {
	if len(s.Results) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header.
	fmt.Fprintln(tw, "#\tPOSITION\tSTATUS\tTIME\tOUTPUT")

	// Print rows.
	for _, r := range s.Results {
		output := r.OutputPath
		if r.Status == model.ItemStatusFailed {
			output = r.Error
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			r.Index+1,
			r.Position,
			r.Status,
			r.Duration.Round(100*time.Millisecond),
			output,
		)
	}

	return nil
}

// PrintOutcome prints the summary of a run.
func (t *TablePrinter) PrintOutcome(o model.RunOutcome) error {
	s := o.Session
	if o.Interrupted {
		fmt.Fprintf(t.writer, "Session %s interrupted at %d/%d, resume to continue\n", s.ID, s.Cursor, len(s.Items))
	} else {
		fmt.Fprintf(t.writer, "Session %s %s\n", s.ID, s.Status)
	}
	fmt.Fprintf(t.writer, "Processed:  %d\n", o.Processed)
	fmt.Fprintf(t.writer, "Completed:  %d\n", s.CompletedCount)
	fmt.Fprintf(t.writer, "Failed:     %d\n", s.FailedCount)
	fmt.Fprintf(t.writer, "Output:     %s\n", s.OutputDir)

	return nil
}

// PrintHistory prints archived sessions in a table format.
func (t *TablePrinter) PrintHistory(archived []model.ArchivedSession) error {
	if len(archived) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header.
	fmt.Fprintln(tw, "ID\tSESSION\tSTATUS\tITEMS\tFAILED\tARCHIVED")

	// Print rows.
	for _, a := range archived {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			a.ID,
			a.Session.ID,
			a.Session.Status,
			len(a.Session.Items),
			a.Session.FailedCount,
			FormatAge(a.ArchivedAt, t.now()),
		)
	}

	return nil
}

// PrintLogs prints log lines as they are.
func (t *TablePrinter) PrintLogs(lines []string) error {
	for _, l := range lines {
		fmt.Fprintln(t.writer, l)
	}
	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}
