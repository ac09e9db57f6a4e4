package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/imagegen/internal/conventions"
	"github.com/slok/imagegen/internal/lock"
	"github.com/slok/imagegen/internal/log"
	"github.com/slok/imagegen/internal/model"
	"github.com/slok/imagegen/internal/printer"
	"github.com/slok/imagegen/internal/shutdown"
	"github.com/slok/imagegen/internal/storage/file"
	"github.com/slok/imagegen/internal/storage/sqlite"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"

	formatTable = "table"
	formatJSON  = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string
	DataDir    string
	Engine     EngineFlags

	// Global instances.
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	Logger   log.Logger
	Shutdown *shutdown.Coordinator
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	defaultDataDir := filepath.Join(homedir.HomeDir(), conventions.DefaultDataDir)
	app.Flag("data-dir", "Directory with the checkpoint, the lock, the logs and the generated images.").Default(defaultDataDir).StringVar(&c.DataDir)

	c.Engine.register(app)

	return c
}

func (r RootCommand) newLock() (*lock.PIDFileLock, error) {
	if err := os.MkdirAll(r.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create data directory: %w", err)
	}

	return lock.NewPIDFileLock(lock.PIDFileLockConfig{
		Path:   conventions.LockPath(r.DataDir),
		Logger: r.Logger,
	})
}

func (r RootCommand) newCheckpointRepository() (*file.Repository, error) {
	return file.NewRepository(file.RepositoryConfig{
		Path:   conventions.CheckpointPath(r.DataDir),
		Logger: r.Logger,
	})
}

func (r RootCommand) newHistoryRepository(ctx context.Context) (*sqlite.Repository, error) {
	if err := os.MkdirAll(r.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create data directory: %w", err)
	}

	return sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: conventions.HistoryDBPath(r.DataDir),
		Logger: r.Logger,
	})
}

func (r RootCommand) printer(format string) printer.Printer {
	if format == formatJSON {
		return printer.NewJSONPrinter(r.Stdout)
	}
	return printer.NewTablePrinter(r.Stdout)
}

// Exit codes of the application.
const (
	ExitCodeOK          = 0
	ExitCodeItemsFailed = 1
	ExitCodeInterrupted = 2
	ExitCodeFatal       = 3
)

var (
	// ErrItemsFailed is returned when a run finished with failed items.
	ErrItemsFailed = errors.New("run finished with failed items")
	// ErrInterrupted is returned when a run was interrupted before finishing.
	ErrInterrupted = errors.New("run interrupted")
)

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeOK
	case errors.Is(err, ErrItemsFailed):
		return ExitCodeItemsFailed
	case errors.Is(err, ErrInterrupted):
		return ExitCodeInterrupted
	default:
		return ExitCodeFatal
	}
}

// outcomeError returns the error that represents a run outcome.
func outcomeError(o model.RunOutcome) error {
	switch {
	case o.Interrupted:
		return fmt.Errorf("session %q stopped at item %d/%d, resume to continue: %w", o.Session.ID, o.Session.Cursor, len(o.Session.Items), ErrInterrupted)
	case o.Session.Status == model.SessionStatusCompletedWithErrors:
		return fmt.Errorf("session %q has %d failed items: %w", o.Session.ID, o.Session.FailedCount, ErrItemsFailed)
	case o.Session.Status == model.SessionStatusFailed:
		return fmt.Errorf("session %q failed: %s", o.Session.ID, o.Session.Error)
	}
	return nil
}
