package lib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/slok/imagegen/internal/app/resume"
	"github.com/slok/imagegen/internal/app/start"
	"github.com/slok/imagegen/internal/app/status"
	"github.com/slok/imagegen/internal/app/stop"
	"github.com/slok/imagegen/internal/conventions"
	"github.com/slok/imagegen/internal/generator"
	"github.com/slok/imagegen/internal/generator/command"
	"github.com/slok/imagegen/internal/generator/docker"
	"github.com/slok/imagegen/internal/generator/fake"
	"github.com/slok/imagegen/internal/lock"
	"github.com/slok/imagegen/internal/log"
	"github.com/slok/imagegen/internal/shutdown"
	"github.com/slok/imagegen/internal/storage/file"
)

// Config configures the SDK client.
//
// An empty Config{} uses ~/.imagegen as data directory and the command engine, that
// requires Command.
type Config struct {
	// DataDir is the directory with the checkpoint, the lock and the generated images.
	// Default: ~/.imagegen.
	DataDir string

	// Engine is the generation engine type.
	// Default: [EngineCommand].
	Engine EngineType

	// Command is the generator program and arguments for [EngineCommand], or the
	// container command for [EngineDocker]. Arguments can use the {{prompt}},
	// {{negative_prompt}}, {{width}}, {{height}}, {{steps}}, {{guidance_scale}} and
	// {{output}} placeholders.
	Command []string

	// Env is the generator environment.
	Env map[string]string

	// DockerImage is the generator image for [EngineDocker].
	DockerImage string

	// FakeFailPrompts makes the [EngineFake] fail the items whose prompt contains any of them.
	FakeFailPrompts []string

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.DataDir = filepath.Join(home, conventions.DefaultDataDir)
	}

	if c.Engine == "" {
		c.Engine = EngineCommand
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point.
//
// Create a Client with [New].
type Client struct {
	cfg    Config
	lock   *lock.PIDFileLock
	repo   *file.Repository
	logger log.Logger
}

// New creates a new SDK client for a data directory.
func New(cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create data directory: %w", err)
	}

	l, err := lock.NewPIDFileLock(lock.PIDFileLockConfig{
		Path:   conventions.LockPath(cfg.DataDir),
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create lock: %w", err)
	}

	repo, err := file.NewRepository(file.RepositoryConfig{
		Path:   conventions.CheckpointPath(cfg.DataDir),
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	return &Client{
		cfg:    cfg,
		lock:   l,
		repo:   repo,
		logger: cfg.Logger,
	}, nil
}

// StartSessionOpts are the options to start a session.
type StartSessionOpts struct {
	// ID is the session identifier.
	ID string
	// Items are processed in order, positions must be unique.
	Items []WorkItem
	// OutputDir is where images are written.
	// Default: <DataDir>/output/<ID>.
	OutputDir string
	// Defaults are applied to the unset item parameters, unset defaults use
	// 1600x896, 25 steps and 7.5 guidance scale.
	Defaults Parameters
}

// StartSession checkpoints a new pending session replacing the previous one. It
// doesn't generate anything, use [Client.Resume] for that.
//
// Returns [ErrAlreadyRunning] if another process is processing a session.
func (c *Client) StartSession(ctx context.Context, opts StartSessionOpts) (*Session, error) {
	svc, err := start.NewService(start.ServiceConfig{
		Lock:          c.lock,
		Repository:    c.repo,
		OutputBaseDir: filepath.Join(c.cfg.DataDir, conventions.OutputDir),
		Logger:        c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	s, err := svc.Run(ctx, start.Request{
		SessionID: opts.ID,
		Items:     toInternalWorkItems(opts.Items),
		OutputDir: opts.OutputDir,
		Defaults:  toInternalParameters(opts.Defaults),
	})
	if err != nil {
		return nil, mapError(err)
	}

	// The lock is taken again by the resume.
	if err := c.lock.Release(); err != nil {
		return nil, fmt.Errorf("could not release lock: %w", err)
	}

	session := fromInternalSession(*s)
	return &session, nil
}

// ResumeOpts are the options to resume a session.
type ResumeOpts struct {
	// SessionID makes the resume fail if the checkpointed session is another one.
	SessionID string
	// Stop is checked before every item, when it returns true the run stops and
	// the session is left resumable.
	Stop func() bool
}

// Resume processes the checkpointed session from its first unprocessed item until
// it finishes, Stop returns true or the context is cancelled.
//
// Failed items don't return an error, they are on the session results. Returns
// [ErrNoActiveSession] if there is no pending or running session.
func (c *Client) Resume(ctx context.Context, opts *ResumeOpts) (*RunOutcome, error) {
	if opts == nil {
		opts = &ResumeOpts{}
	}

	eng, err := c.newEngine()
	if err != nil {
		return nil, fmt.Errorf("could not create engine: %w", err)
	}

	var sig shutdown.Signal = shutdown.Never
	if opts.Stop != nil {
		sig = shutdown.Func(opts.Stop)
	}

	svc, err := resume.NewService(resume.ServiceConfig{
		Engine:     eng,
		Lock:       c.lock,
		Repository: c.repo,
		Shutdown:   sig,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	o, err := svc.Run(ctx, resume.Request{SessionID: opts.SessionID})
	if err != nil {
		return nil, mapError(err)
	}

	outcome := fromInternalOutcome(*o)
	return &outcome, nil
}

// Status returns the checkpointed session and the lock holder. It's safe to call
// while another process is processing the session.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	svc, err := status.NewService(status.ServiceConfig{
		Lock:       c.lock,
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	res, err := svc.Run(ctx, status.Request{})
	if err != nil {
		return nil, mapError(err)
	}

	st := &Status{}
	if res.Session != nil {
		s := fromInternalSession(*res.Session)
		st.Session = &s
	}
	if res.Supervisor != nil {
		st.Supervisor = &Supervisor{
			PID:        res.Supervisor.Lock.PID,
			AcquiredAt: res.Supervisor.Lock.AcquiredAt,
			Alive:      res.Supervisor.Alive,
		}
	}

	return st, nil
}

// StopOpts are the options to stop a supervisor.
type StopOpts struct {
	// SessionID makes the stop fail if the checkpointed session is another one.
	SessionID string
	// Wait is how long to wait for the supervisor to exit, zero doesn't wait.
	Wait time.Duration
	// Force clears the lock even if the exit could not be confirmed.
	Force bool
}

// StopResult is the result of a stop.
type StopResult struct {
	PID       int
	Confirmed bool
}

// Stop requests the process processing the session to stop after its in-flight item.
//
// Returns [ErrNotRunning] if no live process holds the lock and [ErrStopNotConfirmed]
// if the process didn't exit in time.
func (c *Client) Stop(ctx context.Context, opts *StopOpts) (*StopResult, error) {
	if opts == nil {
		opts = &StopOpts{}
	}

	svc, err := stop.NewService(stop.ServiceConfig{
		Lock:       c.lock,
		Repository: c.repo,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	res, err := svc.Run(ctx, stop.Request{
		SessionID: opts.SessionID,
		Wait:      opts.Wait,
		Force:     opts.Force,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return &StopResult{PID: res.PID, Confirmed: res.Confirmed}, nil
}

// newEngine creates the engine for a resume.
func (c *Client) newEngine() (generator.Engine, error) {
	switch c.cfg.Engine {
	case EngineCommand:
		return command.NewEngine(command.EngineConfig{
			Command: c.cfg.Command,
			Env:     c.cfg.Env,
			Logger:  c.logger,
		})
	case EngineDocker:
		return docker.NewEngine(docker.EngineConfig{
			Image:   c.cfg.DockerImage,
			Command: c.cfg.Command,
			Env:     c.cfg.Env,
			Logger:  c.logger,
		})
	case EngineFake:
		return fake.NewEngine(fake.EngineConfig{
			FailPrompts: c.cfg.FakeFailPrompts,
			Logger:      c.logger,
		})
	default:
		return nil, fmt.Errorf("unsupported engine type: %s: %w", c.cfg.Engine, ErrNotValid)
	}
}
