package fake

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/slok/imagegen/internal/generator"
	"github.com/slok/imagegen/internal/log"
	"github.com/slok/imagegen/internal/model"
)

// EngineConfig is the configuration for the fake engine.
type EngineConfig struct {
	// Latency simulates the generation time of each item.
	Latency time.Duration
	// FailPrompts makes the generation fail for prompts containing any of these.
	FailPrompts []string
	// FailLoad makes Load fail.
	FailLoad bool
	// MaxSide bounds the rendered image size so fake images stay small.
	MaxSide int
	Logger  log.Logger
}

func (c *EngineConfig) defaults() error {
	if c.Latency < 0 {
		return fmt.Errorf("latency can't be negative")
	}
	if c.MaxSide <= 0 {
		c.MaxSide = 64
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "generator.Fake"})
	return nil
}

// Engine is a fake generator.Engine. It renders a flat color PNG derived from the prompt.
type Engine struct {
	latency     time.Duration
	failPrompts []string
	failLoad    bool
	maxSide     int
	logger      log.Logger

	mu        sync.Mutex
	loaded    bool
	generated int
}

// NewEngine creates a new fake engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		latency:     cfg.Latency,
		failPrompts: cfg.FailPrompts,
		failLoad:    cfg.FailLoad,
		maxSide:     cfg.MaxSide,
		logger:      cfg.Logger,
	}, nil
}

// Load simulates loading a model.
func (e *Engine) Load(ctx context.Context) error {
	if e.failLoad {
		return fmt.Errorf("fake model could not be loaded")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = true
	e.logger.Debugf("Fake model loaded")
	return nil
}

// Generate renders a fake image.
func (e *Engine) Generate(ctx context.Context, req generator.Request) ([]byte, error) {
	e.mu.Lock()
	loaded := e.loaded
	e.mu.Unlock()
	if !loaded {
		return nil, fmt.Errorf("engine not loaded")
	}

	if e.latency > 0 {
		select {
		case <-time.After(e.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	for _, f := range e.failPrompts {
		if f != "" && strings.Contains(req.Prompt, f) {
			return nil, fmt.Errorf("fake failure for prompt matching %q: %w", f, model.ErrItemGeneration)
		}
	}

	w, h := scale(req.Parameters.Width, req.Parameters.Height, e.maxSide)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	c := promptColor(req.Prompt)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("could not encode image: %w", err)
	}

	e.mu.Lock()
	e.generated++
	e.mu.Unlock()

	return buf.Bytes(), nil
}

// Close simulates unloading the model.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = false
	return nil
}

// Generated returns the number of images generated.
func (e *Engine) Generated() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generated
}

func scale(w, h, maxSide int) (int, int) {
	if w <= 0 || h <= 0 {
		return maxSide, maxSide
	}
	if w <= maxSide && h <= maxSide {
		return w, h
	}
	if w >= h {
		return maxSide, max(1, h*maxSide/w)
	}
	return max(1, w*maxSide/h), maxSide
}

func promptColor(prompt string) color.RGBA {
	hs := fnv.New32a()
	_, _ = hs.Write([]byte(prompt))
	v := hs.Sum32()
	return color.RGBA{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16), A: 255}
}
