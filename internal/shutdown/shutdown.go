// Package shutdown coordinates the graceful stop of a generation run.
//
// The first termination request only flips a flag that the processing loop checks
// between items. A second request escalates: the forced channel is closed so the
// process boundary can cancel the in-flight item.
package shutdown

import (
	"sync"
	"sync/atomic"

	"github.com/slok/imagegen/internal/log"
)

// Signal is the read side used by the processing loop.
type Signal interface {
	// Requested returns true once a shutdown has been requested.
	Requested() bool
}

// Coordinator tracks termination requests.
type Coordinator struct {
	requests atomic.Int32
	forced   chan struct{}
	once     sync.Once
	logger   log.Logger
}

// NewCoordinator returns a new coordinator.
func NewCoordinator(logger log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Noop
	}

	return &Coordinator{
		forced: make(chan struct{}),
		logger: logger.WithValues(log.Kv{"svc": "shutdown.Coordinator"}),
	}
}

// Request registers a termination request and returns true when it escalated to a
// forced shutdown.
func (c *Coordinator) Request() (forced bool) {
	n := c.requests.Add(1)
	if n == 1 {
		c.logger.Warningf("Shutdown requested, stopping after the in-flight item (repeat to force)")
		return false
	}

	c.once.Do(func() {
		c.logger.Warningf("Forced shutdown requested, abandoning the in-flight item")
		close(c.forced)
	})
	return true
}

// Requested returns true once a shutdown has been requested.
func (c *Coordinator) Requested() bool {
	return c.requests.Load() > 0
}

// Forced is closed when the shutdown escalates.
func (c *Coordinator) Forced() <-chan struct{} {
	return c.forced
}

// Never is a Signal that is never requested.
var Never Signal = never{}

type never struct{}

func (never) Requested() bool { return false }

// Func adapts a function into a Signal.
type Func func() bool

func (f Func) Requested() bool { return f() }
