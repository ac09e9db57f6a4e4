package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/imagegen/internal/app/history"
)

type HistoryCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	id     string
	format string
	items  bool
}

// NewHistoryCommand returns the history command.
func NewHistoryCommand(rootCmd *RootCommand, app *kingpin.Application) *HistoryCommand {
	c := &HistoryCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("history", "List the archived sessions.")
	c.Cmd.Arg("id", "Archived session ID, all of them if missing.").StringVar(&c.id)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)
	c.Cmd.Flag("items", "Print the processed items of the archived session, requires an ID.").BoolVar(&c.items)

	return c
}

func (c HistoryCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryCommand) Run(ctx context.Context) error {
	if c.items && c.id == "" {
		return fmt.Errorf("--items requires an archived session ID")
	}

	repo, err := c.rootCmd.newHistoryRepository(ctx)
	if err != nil {
		return fmt.Errorf("could not create history repository: %w", err)
	}
	defer repo.Close()

	svc, err := history.NewService(history.ServiceConfig{
		History: repo,
		Logger:  c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	archived, err := svc.Run(ctx, history.Request{ID: c.id})
	if err != nil {
		return fmt.Errorf("could not get history: %w", err)
	}

	p := c.rootCmd.printer(c.format)

	if c.items {
		if err := p.PrintResults(archived[0].Session); err != nil {
			return fmt.Errorf("could not print results: %w", err)
		}
		return nil
	}

	if err := p.PrintHistory(archived); err != nil {
		return fmt.Errorf("could not print history: %w", err)
	}

	return nil
}
