package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/imagegen/internal/app/stop"
)

type StopCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	sessionID string
	wait      time.Duration
	force     bool
}

// NewStopCommand returns the stop command.
func NewStopCommand(rootCmd *RootCommand, app *kingpin.Application) *StopCommand {
	c := &StopCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("stop", "Stop the running supervisor after its in-flight item.")
	c.Cmd.Flag("session-id", "Only stop if the checkpointed session has this ID.").StringVar(&c.sessionID)
	c.Cmd.Flag("wait", "How long to wait for the supervisor to exit, 0 doesn't wait.").Default("30s").DurationVar(&c.wait)
	c.Cmd.Flag("force", "Clear the lock even if the supervisor exit could not be confirmed.").BoolVar(&c.force)

	return c
}

func (c StopCommand) Name() string { return c.Cmd.FullCommand() }

func (c StopCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	locker, err := c.rootCmd.newLock()
	if err != nil {
		return fmt.Errorf("could not create lock: %w", err)
	}

	repo, err := c.rootCmd.newCheckpointRepository()
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}

	svc, err := stop.NewService(stop.ServiceConfig{
		Lock:       locker,
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	res, err := svc.Run(ctx, stop.Request{
		SessionID: c.sessionID,
		Wait:      c.wait,
		Force:     c.force,
	})
	if err != nil {
		return fmt.Errorf("could not stop supervisor: %w", err)
	}

	msg := fmt.Sprintf("Stop requested to supervisor with PID %d", res.PID)
	if res.Confirmed {
		msg = fmt.Sprintf("Stopped supervisor with PID %d", res.PID)
	}

	if err := c.rootCmd.printer(formatTable).PrintMessage(msg); err != nil {
		return fmt.Errorf("could not print message: %w", err)
	}

	return nil
}
