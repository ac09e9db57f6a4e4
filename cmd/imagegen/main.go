package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/slok/imagegen/cmd/imagegen/commands"
	"github.com/slok/imagegen/internal/log"
	loglogrus "github.com/slok/imagegen/internal/log/logrus"
	"github.com/slok/imagegen/internal/shutdown"
)

const (
	// Version is the application version (set via ldflags).
	Version = "dev"
)

// Run runs the main application.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	app := kingpin.New("imagegen", "Resumable background image generation supervisor.")
	app.DefaultEnvars()
	rootCmd := commands.NewRootCommand(app)

	// Setup commands (registers flags).
	startCmd := commands.NewStartCommand(rootCmd, app)
	resumeCmd := commands.NewResumeCommand(rootCmd, app)
	runCmd := commands.NewRunCommand(rootCmd, app)
	stopCmd := commands.NewStopCommand(rootCmd, app)
	statusCmd := commands.NewStatusCommand(rootCmd, app)
	logsCmd := commands.NewLogsCommand(rootCmd, app)
	serveCmd := commands.NewServeCommand(rootCmd, app)
	archiveCmd := commands.NewArchiveCommand(rootCmd, app)
	historyCmd := commands.NewHistoryCommand(rootCmd, app)

	cmds := map[string]commands.Command{
		startCmd.Name():   startCmd,
		resumeCmd.Name():  resumeCmd,
		runCmd.Name():     runCmd,
		stopCmd.Name():    stopCmd,
		statusCmd.Name():  statusCmd,
		logsCmd.Name():    logsCmd,
		serveCmd.Name():   serveCmd,
		archiveCmd.Name(): archiveCmd,
		historyCmd.Name(): historyCmd,
	}

	// Parse command.
	cmdName, err := app.Parse(args[1:])
	if err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	// Set standard input/output.
	rootCmd.Stdin = stdin
	rootCmd.Stdout = stdout
	rootCmd.Stderr = stderr

	// Auto-suppress logging for commands that produce structured output (table/JSON)
	// to prevent log noise from mixing with printer output in the terminal.
	// Users can still enable logging with --debug.
	printerCommands := map[string]bool{
		"status":  true,
		"logs":    true,
		"history": true,
	}
	if printerCommands[cmdName] && !rootCmd.Debug {
		rootCmd.NoLog = true
	}

	// Set logger.
	rootCmd.Logger = getLogger(ctx, *rootCmd)
	rootCmd.Shutdown = shutdown.NewCoordinator(rootCmd.Logger)

	// Generation commands stop after the in-flight item on the first signal, the rest
	// of the commands are cancelled right away.
	gracefulCommands := map[string]bool{
		"resume": true,
		"run":    true,
	}

	var g run.Group

	// OS signals.
	{
		sigC := make(chan os.Signal, 2)
		signal.Notify(sigC, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigC)
		done := make(chan struct{})

		g.Add(
			func() error {
				for {
					select {
					case <-done:
						return nil
					case sig := <-sigC:
						rootCmd.Logger.WithValues(log.Kv{"signal": sig.String()}).Debugf("Termination signal received")
						forced := rootCmd.Shutdown.Request()
						if forced || !gracefulCommands[cmdName] {
							return nil
						}
					}
				}
			},
			func(_ error) {
				close(done)
			},
		)
	}

	// Execute command.
	var cmdErr error
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				cmdErr = cmds[cmdName].Run(ctx)
				if cmdErr != nil {
					cmdErr = fmt.Errorf("%q command failed: %w", cmdName, cmdErr)
				}
				return cmdErr
			},
			func(_ error) {
				cancel()
			},
		)
	}

	// The command result wins over the signal actor, an interrupted run must keep its error.
	if err := g.Run(); cmdErr == nil && err != nil {
		return err
	}

	return cmdErr
}

// getLogger returns the application logger.
func getLogger(ctx context.Context, config commands.RootCommand) log.Logger {
	if config.NoLog {
		return log.Noop
	}

	// If logger not disabled use logrus logger.
	logrusLog := logrus.New()
	logrusLog.Out = config.Stderr // By default logger goes to stderr (so it can split stdout prints).
	logrusLogEntry := logrus.NewEntry(logrusLog)

	if config.Debug {
		logrusLogEntry.Logger.SetLevel(logrus.DebugLevel)
	}

	// Log format.
	switch config.LoggerType {
	case commands.LoggerTypeDefault:
		colors := !config.NoColor && isTerminal(config.Stderr)
		logrusLogEntry.Logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   colors,
			DisableColors: !colors,
			FullTimestamp: !colors,
		})
	case commands.LoggerTypeJSON:
		logrusLogEntry.Logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logger := loglogrus.NewLogrus(logrusLogEntry).WithValues(log.Kv{
		"version": Version,
	})

	logger.Debugf("Debug level is enabled") // Will log only when debug enabled.

	return logger
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func runMain() int {
	ctx := context.Background()
	err := Run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	return commands.ExitCode(err)
}

func main() {
	os.Exit(runMain())
}
