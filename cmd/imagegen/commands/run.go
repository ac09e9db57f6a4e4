package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	flags  startFlags
	format string
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Start a session from a manifest and generate all its items.")
	c.flags.register(c.Cmd)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	locker, err := c.rootCmd.newLock()
	if err != nil {
		return fmt.Errorf("could not create lock: %w", err)
	}

	// The lock acquired by start is reentrant for the resume of the same process.
	session, err := startSession(ctx, *c.rootCmd, locker, c.flags)
	if err != nil {
		return err
	}

	outcome, err := resumeSession(ctx, *c.rootCmd, locker, session.ID)
	if err != nil {
		return err
	}

	if err := c.rootCmd.printer(c.format).PrintOutcome(*outcome); err != nil {
		return fmt.Errorf("could not print outcome: %w", err)
	}

	return outcomeError(*outcome)
}
