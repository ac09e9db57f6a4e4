package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/imagegen/internal/api"
	"github.com/slok/imagegen/internal/app/history"
	"github.com/slok/imagegen/internal/app/logs"
	"github.com/slok/imagegen/internal/app/stop"
	"github.com/slok/imagegen/internal/conventions"
	"github.com/slok/imagegen/internal/log"
)

const serveShutdownTimeout = 5 * time.Second

type ServeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	listenAddr string
}

// NewServeCommand returns the serve command.
func NewServeCommand(rootCmd *RootCommand, app *kingpin.Application) *ServeCommand {
	c := &ServeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("serve", "Serve the supervisor status, logs and stop over HTTP.")
	c.Cmd.Flag("listen", "HTTP listen address.").Default("127.0.0.1:8080").StringVar(&c.listenAddr)

	return c
}

func (c ServeCommand) Name() string { return c.Cmd.FullCommand() }

func (c ServeCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	statusSvc, err := newStatusService(*c.rootCmd)
	if err != nil {
		return fmt.Errorf("could not create status service: %w", err)
	}

	logsSvc, err := logs.NewService(logs.ServiceConfig{
		LogPath: conventions.LogPath(c.rootCmd.DataDir),
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create logs service: %w", err)
	}

	locker, err := c.rootCmd.newLock()
	if err != nil {
		return fmt.Errorf("could not create lock: %w", err)
	}

	repo, err := c.rootCmd.newCheckpointRepository()
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}

	stopSvc, err := stop.NewService(stop.ServiceConfig{
		Lock:       locker,
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create stop service: %w", err)
	}

	historyRepo, err := c.rootCmd.newHistoryRepository(ctx)
	if err != nil {
		return fmt.Errorf("could not create history repository: %w", err)
	}
	defer historyRepo.Close()

	historySvc, err := history.NewService(history.ServiceConfig{
		History: historyRepo,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create history service: %w", err)
	}

	handler, err := api.NewHandler(api.HandlerConfig{
		Status:  statusSvc,
		Logs:    logsSvc,
		Stop:    stopSvc,
		History: historySvc,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create API handler: %w", err)
	}

	ln, err := net.Listen("tcp", c.listenAddr)
	if err != nil {
		return fmt.Errorf("could not listen on %q: %w", c.listenAddr, err)
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		logger.WithValues(log.Kv{"addr": ln.Addr().String()}).Infof("HTTP API listening")
		errC <- server.Serve(ln)
	}()

	select {
	case err := <-errC:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Infof("Stopping HTTP API")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serveShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("could not stop HTTP server: %w", err)
	}

	return nil
}
