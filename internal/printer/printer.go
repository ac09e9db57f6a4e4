package printer

import "github.com/slok/imagegen/internal/model"

// Status is the information printed by the status command.
type Status struct {
	// Session is nil when nothing has been checkpointed.
	Session *model.Session
	// Lock is nil when no supervisor holds the instance lock.
	Lock  *model.LockRecord
	Alive bool
}

// Printer knows how to print session information in different formats.
type Printer interface {
	PrintStatus(st Status) error
	PrintResults(s model.Session) error
	PrintOutcome(o model.RunOutcome) error
	PrintHistory(archived []model.ArchivedSession) error
	PrintLogs(lines []string) error
	PrintMessage(msg string) error
}

// Progress returns the processed percentage of a session.
func Progress(s model.Session) float64 {
	if len(s.Items) == 0 {
		return 0
	}
	return float64(s.Cursor) * 100 / float64(len(s.Items))
}
