package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/imagegen/internal/app/resume"
	"github.com/slok/imagegen/internal/conventions"
	"github.com/slok/imagegen/internal/lock"
	"github.com/slok/imagegen/internal/model"
	"github.com/slok/imagegen/internal/shutdown"
)

type ResumeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	sessionID string
	detach    bool
	format    string
}

// NewResumeCommand returns the resume command.
func NewResumeCommand(rootCmd *RootCommand, app *kingpin.Application) *ResumeCommand {
	c := &ResumeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("resume", "Generate the pending items of the checkpointed session.")
	c.Cmd.Flag("session-id", "Only resume if the checkpointed session has this ID.").StringVar(&c.sessionID)
	c.Cmd.Flag("detach", "Run in background, the output goes to the generation log.").BoolVar(&c.detach)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c ResumeCommand) Name() string { return c.Cmd.FullCommand() }

func (c ResumeCommand) Run(ctx context.Context) error {
	if c.detach {
		return c.runDetached(ctx)
	}

	locker, err := c.rootCmd.newLock()
	if err != nil {
		return fmt.Errorf("could not create lock: %w", err)
	}

	outcome, err := resumeSession(ctx, *c.rootCmd, locker, c.sessionID)
	if err != nil {
		return err
	}

	if err := c.rootCmd.printer(c.format).PrintOutcome(*outcome); err != nil {
		return fmt.Errorf("could not print outcome: %w", err)
	}

	return outcomeError(*outcome)
}

// runDetached executes the same command again on a new session, without the detach
// flag and with the output on the generation log. It returns once the background
// supervisor holds the lock, or with an error if it exits before.
func (c ResumeCommand) runDetached(ctx context.Context) error {
	locker, err := c.rootCmd.newLock()
	if err != nil {
		return fmt.Errorf("could not create lock: %w", err)
	}

	if err := c.checkResumable(ctx, locker); err != nil {
		return err
	}

	logPath := conventions.LogPath(c.rootCmd.DataDir)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("could not open log file: %w", err)
	}
	defer logFile.Close()

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("could not get executable: %w", err)
	}

	args := make([]string, 0, len(os.Args))
	for _, arg := range os.Args[1:] {
		if arg == "--detach" || arg == "--detach=true" {
			continue
		}
		args = append(args, arg)
	}

	cmd := exec.Command(exe, args...)
	cmd.Args[0] = os.Args[0]
	cmd.Env = append(os.Environ(), "IMAGEGEN_DETACH=false")
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("could not start background supervisor: %w", err)
	}
	pid := cmd.Process.Pid

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	started, err := waitSupervisor(ctx, locker, pid, exited)
	if err != nil {
		return fmt.Errorf("background supervisor (PID %d) failed, see %s: %w", pid, logPath, err)
	}

	msg := fmt.Sprintf("Supervisor running in background with PID %d, logs on %s", pid, logPath)
	if !started {
		msg = fmt.Sprintf("Background supervisor (PID %d) already finished, logs on %s", pid, logPath)
	}
	if err := c.rootCmd.printer(formatTable).PrintMessage(msg); err != nil {
		return fmt.Errorf("could not print message: %w", err)
	}

	return nil
}

// checkResumable fails early with the errors the background supervisor would fail with.
func (c ResumeCommand) checkResumable(ctx context.Context, locker lock.Locker) error {
	repo, err := c.rootCmd.newCheckpointRepository()
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}

	session, err := repo.GetSession(ctx)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("no checkpointed session: %w", model.ErrNoActiveSession)
		}
		return fmt.Errorf("could not load checkpoint: %w", err)
	}

	if c.sessionID != "" && c.sessionID != session.ID {
		return fmt.Errorf("checkpointed session is %q, not %q: %w", session.ID, c.sessionID, model.ErrNoActiveSession)
	}
	if !session.Status.Resumable() {
		return fmt.Errorf("session %s is %s: %w", session.ID, session.Status, model.ErrNoActiveSession)
	}

	held, err := locker.IsHeld()
	if err != nil {
		return fmt.Errorf("could not check instance lock: %w", err)
	}
	if held {
		holder, err := locker.Holder()
		if err != nil {
			return fmt.Errorf("could not get lock holder: %w", err)
		}
		return &model.LockHeldError{PID: holder.PID}
	}

	return nil
}

const (
	detachStartTimeout  = 10 * time.Second
	detachCheckInterval = 50 * time.Millisecond
)

// waitSupervisor waits until the process holds the lock. It returns false if the
// process finished its run before being observed holding it.
func waitSupervisor(ctx context.Context, locker lock.Locker, pid int, exited <-chan error) (bool, error) {
	timeout := time.NewTimer(detachStartTimeout)
	defer timeout.Stop()
	ticker := time.NewTicker(detachCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timeout.C:
			return false, fmt.Errorf("lock not taken after %s", detachStartTimeout)
		case err := <-exited:
			var exitErr *exec.ExitError
			switch {
			case err == nil:
				return false, nil
			// The run happened, the failed items are on the checkpoint.
			case errors.As(err, &exitErr) && exitErr.ExitCode() == ExitCodeItemsFailed:
				return false, nil
			default:
				return false, err
			}
		case <-ticker.C:
			holder, err := locker.Holder()
			if err == nil && holder.PID == pid {
				return true, nil
			}
		}
	}
}

// resumeSession processes the checkpointed session, the lock is released when it returns.
func resumeSession(ctx context.Context, rootCmd RootCommand, locker lock.Locker, sessionID string) (*model.RunOutcome, error) {
	logger := rootCmd.Logger

	repo, err := rootCmd.newCheckpointRepository()
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	eng, err := newEngine(rootCmd.Engine, logger)
	if err != nil {
		return nil, fmt.Errorf("could not create engine: %w", err)
	}

	var sig shutdown.Signal = shutdown.Never
	if rootCmd.Shutdown != nil {
		sig = rootCmd.Shutdown
	}

	svc, err := resume.NewService(resume.ServiceConfig{
		Engine:     eng,
		Lock:       locker,
		Repository: repo,
		Shutdown:   sig,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	outcome, err := svc.Run(ctx, resume.Request{SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("could not resume session: %w", err)
	}

	return outcome, nil
}
