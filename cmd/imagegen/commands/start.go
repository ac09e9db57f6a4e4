package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/imagegen/internal/app/start"
	"github.com/slok/imagegen/internal/conventions"
	"github.com/slok/imagegen/internal/lock"
	"github.com/slok/imagegen/internal/model"
	"github.com/slok/imagegen/internal/storage"
	"github.com/slok/imagegen/internal/storage/io"
)

// startFlags are the flags shared by the commands that start a session.
type startFlags struct {
	manifest        string
	sessionID       string
	outputDir       string
	archivePrevious bool
}

func (f *startFlags) register(cmd *kingpin.CmdClause) {
	cmd.Arg("manifest", "Path to the work items manifest (YAML or JSON).").Required().StringVar(&f.manifest)
	cmd.Flag("session-id", "Session ID, by default the manifest one.").StringVar(&f.sessionID)
	cmd.Flag("output-dir", "Generated images directory, by default the manifest one or a session directory on the data dir.").StringVar(&f.outputDir)
	cmd.Flag("archive-previous", "Archive the previous session in the history before replacing it.").BoolVar(&f.archivePrevious)
}

type StartCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	flags startFlags
}

// NewStartCommand returns the start command.
func NewStartCommand(rootCmd *RootCommand, app *kingpin.Application) *StartCommand {
	c := &StartCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("start", "Initialize a generation session from a manifest, it doesn't generate anything.")
	c.flags.register(c.Cmd)

	return c
}

func (c StartCommand) Name() string { return c.Cmd.FullCommand() }

func (c StartCommand) Run(ctx context.Context) error {
	locker, err := c.rootCmd.newLock()
	if err != nil {
		return fmt.Errorf("could not create lock: %w", err)
	}

	session, err := startSession(ctx, *c.rootCmd, locker, c.flags)
	if err != nil {
		return err
	}

	// The session is processed by another process, don't leave our PID as the holder.
	if err := locker.Release(); err != nil {
		return fmt.Errorf("could not release lock: %w", err)
	}

	p := c.rootCmd.printer(formatTable)
	if err := p.PrintMessage(fmt.Sprintf("Started session %s with %d items, output on %s", session.ID, len(session.Items), session.OutputDir)); err != nil {
		return fmt.Errorf("could not print message: %w", err)
	}

	return nil
}

// startSession loads the manifest and starts a session, the lock is kept on success.
func startSession(ctx context.Context, rootCmd RootCommand, locker lock.Locker, flags startFlags) (*model.Session, error) {
	logger := rootCmd.Logger

	manifestPath, err := filepath.Abs(flags.manifest)
	if err != nil {
		return nil, fmt.Errorf("could not resolve manifest path: %w", err)
	}

	manifestRepo := io.NewManifestYAMLRepository(os.DirFS("/"))
	manifest, err := manifestRepo.GetManifest(ctx, manifestPath[1:])
	if err != nil {
		return nil, fmt.Errorf("could not load manifest: %w", err)
	}

	sessionID := manifest.SessionID
	if flags.sessionID != "" {
		sessionID = flags.sessionID
	}

	outputDir := manifest.OutputDir
	if outputDir != "" && !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(filepath.Dir(manifestPath), outputDir)
	}
	if flags.outputDir != "" {
		if outputDir, err = filepath.Abs(flags.outputDir); err != nil {
			return nil, fmt.Errorf("could not resolve output dir: %w", err)
		}
	}

	repo, err := rootCmd.newCheckpointRepository()
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	// History is only opened when needed so start doesn't create the database.
	var history storage.HistoryRepository
	if flags.archivePrevious {
		h, err := rootCmd.newHistoryRepository(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not create history repository: %w", err)
		}
		defer h.Close()
		history = h
	}

	svc, err := start.NewService(start.ServiceConfig{
		Lock:          locker,
		Repository:    repo,
		History:       history,
		OutputBaseDir: filepath.Join(rootCmd.DataDir, conventions.OutputDir),
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	session, err := svc.Run(ctx, start.Request{
		SessionID:       sessionID,
		Items:           manifest.Items,
		OutputDir:       outputDir,
		Defaults:        manifest.Defaults,
		ArchivePrevious: flags.archivePrevious,
	})
	if err != nil {
		return nil, fmt.Errorf("could not start session: %w", err)
	}

	return session, nil
}
