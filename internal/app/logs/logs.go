package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/slok/imagegen/internal/log"
	"github.com/slok/imagegen/internal/model"
)

// DefaultLines is the number of lines returned when the request doesn't set them.
const DefaultLines = 50

// ServiceConfig is the configuration for the logs service.
type ServiceConfig struct {
	// LogPath is the background supervisor log file.
	LogPath string
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.LogPath == "" {
		return fmt.Errorf("log path is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Logs"})

	return nil
}

// Service reads the background supervisor logs.
type Service struct {
	path   string
	logger log.Logger
}

// NewService creates a new logs service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		path:   cfg.LogPath,
		logger: cfg.Logger,
	}, nil
}

// Request represents the logs request parameters.
type Request struct {
	// Lines is the number of trailing lines, DefaultLines if not set.
	Lines int
}

// Run returns the last lines of the log.
func (s *Service) Run(ctx context.Context, req Request) ([]string, error) {
	if req.Lines < 0 {
		return nil, fmt.Errorf("lines can't be negative: %w", model.ErrNotValid)
	}
	if req.Lines == 0 {
		req.Lines = DefaultLines
	}

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("log file %s: %w", s.path, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not open log file: %w", err)
	}
	defer f.Close()

	lines, err := tail(f, req.Lines)
	if err != nil {
		return nil, fmt.Errorf("could not read log file: %w", err)
	}

	return lines, nil
}

func tail(r io.Reader, n int) ([]string, error) {
	ring := make([]string, 0, n)
	start := 0

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(ring) < n {
			ring = append(ring, sc.Text())
			continue
		}
		ring[start] = sc.Text()
		start = (start + 1) % n
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	return append(ring[start:], ring[:start]...), nil
}
