package shutdown_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/imagegen/internal/log"
	"github.com/slok/imagegen/internal/shutdown"
)

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestCoordinatorEscalation(t *testing.T) {
	c := shutdown.NewCoordinator(log.Noop)
	assert.False(t, c.Requested())
	assert.False(t, isClosed(c.Forced()))

	assert.False(t, c.Request())
	assert.True(t, c.Requested())
	assert.False(t, isClosed(c.Forced()))

	assert.True(t, c.Request())
	assert.True(t, isClosed(c.Forced()))

	// More requests must not panic closing the channel again.
	assert.True(t, c.Request())
}

func TestCoordinatorConcurrentRequests(t *testing.T) {
	c := shutdown.NewCoordinator(nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Request()
		}()
	}
	wg.Wait()

	assert.True(t, c.Requested())
	assert.True(t, isClosed(c.Forced()))
}

func TestSignalHelpers(t *testing.T) {
	assert.False(t, shutdown.Never.Requested())

	requested := false
	s := shutdown.Func(func() bool { return requested })
	assert.False(t, s.Requested())
	requested = true
	assert.True(t, s.Requested())
}
