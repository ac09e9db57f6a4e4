package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/imagegen/internal/app/logs"
	"github.com/slok/imagegen/internal/conventions"
)

type LogsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	lines int
}

// NewLogsCommand returns the logs command.
func NewLogsCommand(rootCmd *RootCommand, app *kingpin.Application) *LogsCommand {
	c := &LogsCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("logs", "Show the last lines of the background supervisor log.")
	c.Cmd.Flag("lines", "Number of lines.").Short('n').Default(fmt.Sprint(logs.DefaultLines)).IntVar(&c.lines)

	return c
}

func (c LogsCommand) Name() string { return c.Cmd.FullCommand() }

func (c LogsCommand) Run(ctx context.Context) error {
	svc, err := logs.NewService(logs.ServiceConfig{
		LogPath: conventions.LogPath(c.rootCmd.DataDir),
		Logger:  c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	lines, err := svc.Run(ctx, logs.Request{Lines: c.lines})
	if err != nil {
		return fmt.Errorf("could not read logs: %w", err)
	}

	if err := c.rootCmd.printer(formatTable).PrintLogs(lines); err != nil {
		return fmt.Errorf("could not print logs: %w", err)
	}

	return nil
}
