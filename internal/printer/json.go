package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/imagegen/internal/model"
)

// JSONPrinter prints session information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// sessionOutput represents the session summary output.
type sessionOutput struct {
	ID             string     `json:"session_id"`
	Status         string     `json:"status"`
	Items          int        `json:"items"`
	Cursor         int        `json:"cursor"`
	Progress       float64    `json:"progress"`
	CompletedCount int        `json:"completed_count"`
	FailedCount    int        `json:"failed_count"`
	OutputDir      string     `json:"output_dir"`
	StartedAt      *time.Time `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	Error          string     `json:"error,omitempty"`
}

// supervisorOutput represents the lock holder output.
type supervisorOutput struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
	Alive      bool      `json:"alive"`
}

// statusOutput represents the full status output.
type statusOutput struct {
	Session    *sessionOutput    `json:"session"`
	Supervisor *supervisorOutput `json:"supervisor"`
}

// resultOutput represents a processed item output.
type resultOutput struct {
	Index          int       `json:"index"`
	Position       string    `json:"position"`
	Status         string    `json:"status"`
	OutputPath     string    `json:"output_path,omitempty"`
	Error          string    `json:"error,omitempty"`
	GenerationTime float64   `json:"generation_time_seconds"`
	Timestamp      time.Time `json:"timestamp"`
}

// outcomeOutput represents a run outcome output.
type outcomeOutput struct {
	Session     sessionOutput `json:"session"`
	Interrupted bool          `json:"interrupted"`
	Processed   int           `json:"processed"`
}

// archivedOutput represents an archived session output.
type archivedOutput struct {
	ID         string        `json:"id"`
	ArchivedAt time.Time     `json:"archived_at"`
	Session    sessionOutput `json:"session"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

func toSessionOutput(s model.Session) sessionOutput {
	return sessionOutput{
		ID:             s.ID,
		Status:         string(s.Status),
		Items:          len(s.Items),
		Cursor:         s.Cursor,
		Progress:       Progress(s),
		CompletedCount: s.CompletedCount,
		FailedCount:    s.FailedCount,
		OutputDir:      s.OutputDir,
		StartedAt:      utc(s.StartedAt),
		CompletedAt:    utc(s.CompletedAt),
		Error:          s.Error,
	}
}

// PrintStatus prints the session and supervisor status in JSON format.
func (j *JSONPrinter) PrintStatus(st Status) error {
	output := statusOutput{}

	if st.Session != nil {
		s := toSessionOutput(*st.Session)
		output.Session = &s
	}

	if st.Lock != nil {
		output.Supervisor = &supervisorOutput{
			PID:        st.Lock.PID,
			AcquiredAt: st.Lock.AcquiredAt.UTC(),
			Alive:      st.Alive,
		}
	}

	return j.encode(output)
}

// PrintResults prints the processed items of a session in JSON format.
func (j *JSONPrinter) PrintResults(s model.Session) error {
	items := make([]resultOutput, len(s.Results))
	for i, r := range s.Results {
		items[i] = resultOutput{
			Index:          r.Index,
			Position:       r.Position,
			Status:         string(r.Status),
			OutputPath:     r.OutputPath,
			Error:          r.Error,
			GenerationTime: r.Duration.Seconds(),
			Timestamp:      r.Timestamp.UTC(),
		}
	}

	return j.encode(items)
}

// PrintOutcome prints the summary of a run in JSON format.
func (j *JSONPrinter) PrintOutcome(o model.RunOutcome) error {
	return j.encode(outcomeOutput{
		Session:     toSessionOutput(o.Session),
		Interrupted: o.Interrupted,
		Processed:   o.Processed,
	})
}

// PrintHistory prints archived sessions in JSON format.
func (j *JSONPrinter) PrintHistory(archived []model.ArchivedSession) error {
	items := make([]archivedOutput, len(archived))
	for i, a := range archived {
		items[i] = archivedOutput{
			ID:         a.ID,
			ArchivedAt: a.ArchivedAt.UTC(),
			Session:    toSessionOutput(a.Session),
		}
	}

	return j.encode(items)
}

// PrintLogs prints log lines in JSON format.
func (j *JSONPrinter) PrintLogs(lines []string) error {
	if lines == nil {
		lines = []string{}
	}
	return j.encode(lines)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
