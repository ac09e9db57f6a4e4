// Package command implements a generation engine that runs an external generator
// program (e.g. a diffusion script) once per item.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/slok/imagegen/internal/generator"
	"github.com/slok/imagegen/internal/log"
	"github.com/slok/imagegen/internal/model"
)

const maxStderrTail = 2048

// EngineConfig is the configuration for the command engine.
type EngineConfig struct {
	// Command is the program and its arguments, arguments can use the
	// generator.Arg* placeholders. The program must write the image to {{output}}.
	Command []string
	// Env is set on top of the current process environment.
	Env     map[string]string
	WorkDir string
	// TempDir is where the per item output is created, by default the OS temp dir.
	TempDir string
	Logger  log.Logger
}

func (c *EngineConfig) defaults() error {
	if len(c.Command) == 0 || c.Command[0] == "" {
		return fmt.Errorf("command is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "generator.Command"})
	return nil
}

// Engine is a generator.Engine that runs an external program.
type Engine struct {
	command []string
	env     []string
	workDir string
	tempDir string
	logger  log.Logger
}

// NewEngine creates a new command engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+cfg.Env[k])
	}

	return &Engine{
		command: cfg.Command,
		env:     env,
		workDir: cfg.WorkDir,
		tempDir: cfg.TempDir,
		logger:  cfg.Logger,
	}, nil
}

// Load checks the generator program is available.
func (e *Engine) Load(ctx context.Context) error {
	path, err := exec.LookPath(e.command[0])
	if err != nil {
		return fmt.Errorf("generator program %q not found: %w", e.command[0], err)
	}

	e.logger.Debugf("Using generator program: %s", path)
	return nil
}

// Generate runs the generator program and returns the image it wrote.
func (e *Engine) Generate(ctx context.Context, req generator.Request) ([]byte, error) {
	dir, err := os.MkdirTemp(e.tempDir, "imagegen-*")
	if err != nil {
		return nil, fmt.Errorf("could not create temporary output dir: %w", err)
	}
	defer os.RemoveAll(dir)

	outputPath := filepath.Join(dir, "output.png")
	args := generator.ExpandArgs(e.command, req, outputPath)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = e.workDir
	cmd.Env = append(os.Environ(), e.env...)
	cmd.Stderr = &stderr

	e.logger.Debugf("Running generator program: %s", args[0])
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("generator program failed: %w: %s: %w", err, tail(stderr.String()), model.ErrItemGeneration)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("generator program didn't write the output image: %w", model.ErrItemGeneration)
		}
		return nil, fmt.Errorf("could not read output image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("generator program wrote an empty image: %w", model.ErrItemGeneration)
	}

	return data, nil
}

// Close is a no-op, the program is executed per item.
func (e *Engine) Close() error { return nil }

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderrTail {
		s = "..." + s[len(s)-maxStderrTail:]
	}
	return s
}
