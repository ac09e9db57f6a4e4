package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/imagegen/internal/app/archive"
)

type ArchiveCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewArchiveCommand returns the archive command.
func NewArchiveCommand(rootCmd *RootCommand, app *kingpin.Application) *ArchiveCommand {
	c := &ArchiveCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("archive", "Store the finished checkpointed session in the history.")

	return c
}

func (c ArchiveCommand) Name() string { return c.Cmd.FullCommand() }

func (c ArchiveCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	repo, err := c.rootCmd.newCheckpointRepository()
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}

	history, err := c.rootCmd.newHistoryRepository(ctx)
	if err != nil {
		return fmt.Errorf("could not create history repository: %w", err)
	}
	defer history.Close()

	svc, err := archive.NewService(archive.ServiceConfig{
		Repository: repo,
		History:    history,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	archived, err := svc.Run(ctx, archive.Request{})
	if err != nil {
		return fmt.Errorf("could not archive session: %w", err)
	}

	msg := fmt.Sprintf("Archived session %s as %s", archived.Session.ID, archived.ID)
	if err := c.rootCmd.printer(formatTable).PrintMessage(msg); err != nil {
		return fmt.Errorf("could not print message: %w", err)
	}

	return nil
}
