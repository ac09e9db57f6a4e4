package lock_test

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/imagegen/internal/lock"
	"github.com/slok/imagegen/internal/model"
)

type fakeProcs struct {
	mu         sync.Mutex
	alive      map[int]bool
	terminated []int
}

func newFakeProcs(alive ...int) *fakeProcs {
	p := &fakeProcs{alive: map[int]bool{}}
	for _, pid := range alive {
		p.alive[pid] = true
	}
	return p
}

func (f *fakeProcs) Alive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid]
}

func (f *fakeProcs) Terminate(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, pid)
	return nil
}

func newLock(t *testing.T, path string, pid int, procs lock.ProcessManager) *lock.PIDFileLock {
	t.Helper()
	l, err := lock.NewPIDFileLock(lock.PIDFileLockConfig{
		Path:           path,
		PID:            pid,
		ProcessManager: procs,
	})
	require.NoError(t, err)
	return l
}

func readLockPID(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestPIDFileLockAcquire(t *testing.T) {
	tests := map[string]struct {
		lockContent *string
		alive       []int
		expErr      error
		expHolder   int
		expContent  string
	}{
		"Acquiring a free lock should write our PID.": {
			expContent: "100\n",
		},
		"Acquiring a lock held by a live process should fail.": {
			lockContent: ptr("200\n"),
			alive:       []int{200},
			expErr:      model.ErrAlreadyRunning,
			expHolder:   200,
			expContent:  "200\n",
		},
		"Acquiring a stale lock should reclaim it.": {
			lockContent: ptr("200\n"),
			expContent:  "100\n",
		},
		"Acquiring a lock with garbage should reclaim it.": {
			lockContent: ptr("not-a-pid"),
			expContent:  "100\n",
		},
		"Acquiring a lock we already own should succeed.": {
			lockContent: ptr("100"),
			alive:       []int{100},
			expContent:  "100",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "supervisor.pid")
			if test.lockContent != nil {
				require.NoError(t, os.WriteFile(path, []byte(*test.lockContent), 0644))
			}

			l := newLock(t, path, 100, newFakeProcs(test.alive...))
			err := l.Acquire()

			if test.expErr != nil {
				require.ErrorIs(t, err, test.expErr)
				var heldErr *model.LockHeldError
				require.True(t, errors.As(err, &heldErr))
				assert.Equal(t, test.expHolder, heldErr.PID)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, test.expContent, readLockPID(t, path))
		})
	}
}

func TestPIDFileLockRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supervisor.pid")
	l := newLock(t, path, 100, newFakeProcs())

	require.NoError(t, l.Acquire())
	held, err := l.IsHeld()
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, l.Release())
	held, err = l.IsHeld()
	require.NoError(t, err)
	assert.False(t, held)

	// Idempotent.
	require.NoError(t, l.Release())

	_, err = l.Holder()
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPIDFileLockHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supervisor.pid")
	require.NoError(t, os.WriteFile(path, []byte("4242\n"), 0644))

	l := newLock(t, path, 100, newFakeProcs(4242))
	rec, err := l.Holder()
	require.NoError(t, err)
	assert.Equal(t, 4242, rec.PID)
	assert.False(t, rec.AcquiredAt.IsZero())

	held, err := l.IsHeld()
	require.NoError(t, err)
	assert.True(t, held)
}

func TestPIDFileLockStaleIsNotHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supervisor.pid")
	require.NoError(t, os.WriteFile(path, []byte("4242\n"), 0644))

	l := newLock(t, path, 100, newFakeProcs())
	held, err := l.IsHeld()
	require.NoError(t, err)
	assert.False(t, held)
}

func TestPIDFileLockExclusivity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supervisor.pid")
	// All the contenders are alive.
	procs := newFakeProcs(1, 2, 3, 4, 5, 6, 7, 8)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		acquired  []int
		rejected  int
		otherErrs []error
	)
	locks := map[int]*lock.PIDFileLock{}
	for pid := 1; pid <= 8; pid++ {
		locks[pid] = newLock(t, path, pid, procs)
	}

	for pid, l := range locks {
		wg.Add(1)
		go func(pid int, l *lock.PIDFileLock) {
			defer wg.Done()
			err := l.Acquire()

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				acquired = append(acquired, pid)
			case errors.Is(err, model.ErrAlreadyRunning):
				rejected++
			default:
				otherErrs = append(otherErrs, err)
			}
		}(pid, l)
	}
	wg.Wait()

	require.Empty(t, otherErrs)
	require.Len(t, acquired, 1)
	assert.Equal(t, 7, rejected)
	assert.Equal(t, strconv.Itoa(acquired[0])+"\n", readLockPID(t, path))
}

func TestUnixProcessManagerAlive(t *testing.T) {
	pm := lock.UnixProcessManager{}

	assert.True(t, pm.Alive(os.Getpid()))
	assert.False(t, pm.Alive(0))
	assert.False(t, pm.Alive(-1))
}

func ptr(s string) *string { return &s }
