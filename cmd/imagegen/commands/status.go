package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/imagegen/internal/app/status"
	"github.com/slok/imagegen/internal/conventions"
	"github.com/slok/imagegen/internal/lock"
	"github.com/slok/imagegen/internal/printer"
)

type StatusCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
	items  bool
}

// NewStatusCommand returns the status command.
func NewStatusCommand(rootCmd *RootCommand, app *kingpin.Application) *StatusCommand {
	c := &StatusCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("status", "Get the checkpointed session and supervisor status.")
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)
	c.Cmd.Flag("items", "Print the processed items instead of the summary.").BoolVar(&c.items)

	return c
}

func (c StatusCommand) Name() string { return c.Cmd.FullCommand() }

func (c StatusCommand) Run(ctx context.Context) error {
	svc, err := newStatusService(*c.rootCmd)
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	res, err := svc.Run(ctx, status.Request{})
	if err != nil {
		return fmt.Errorf("could not get status: %w", err)
	}

	p := c.rootCmd.printer(c.format)

	if c.items {
		if res.Session == nil {
			return fmt.Errorf("there is no checkpointed session")
		}
		if err := p.PrintResults(*res.Session); err != nil {
			return fmt.Errorf("could not print results: %w", err)
		}
		return nil
	}

	st := printer.Status{Session: res.Session}
	if res.Supervisor != nil {
		st.Lock = &res.Supervisor.Lock
		st.Alive = res.Supervisor.Alive
	}

	if err := p.PrintStatus(st); err != nil {
		return fmt.Errorf("could not print status: %w", err)
	}

	return nil
}

// newStatusService creates a status service, it never writes the checkpoint nor the lock.
func newStatusService(rootCmd RootCommand) (*status.Service, error) {
	locker, err := lock.NewPIDFileLock(lock.PIDFileLockConfig{
		Path:   conventions.LockPath(rootCmd.DataDir),
		Logger: rootCmd.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create lock: %w", err)
	}

	repo, err := rootCmd.newCheckpointRepository()
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	return status.NewService(status.ServiceConfig{
		Lock:       locker,
		Repository: repo,
		Logger:     rootCmd.Logger,
	})
}
