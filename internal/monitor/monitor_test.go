package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/internal/events"
	"github.com/wardenhq/warden/internal/locks"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/types"
)

// newClassifierUnderTest builds a monitor with a loaded policy snapshot but
// no live watcher, so handleEvent can be driven synchronously.
func newClassifierUnderTest(t *testing.T, pol types.Policy, reg locks.Registry, bus *events.Bus) *Monitor {
	t.Helper()
	dir := t.TempDir()
	m := New(Config{
		Dir:       dir,
		SessionID: "sess-self",
		TaskID:    "task-1",
		Policy:    &policy.Static{Policy: pol},
		Locks:     reg,
		Bus:       bus,
	})
	m.pol = pol
	return m
}

func event(m *Monitor, rel string) fsnotify.Event {
	return fsnotify.Event{Name: filepath.Join(m.cfg.Dir, rel), Op: fsnotify.Write}
}

func TestProtectedFileShortCircuitsAreaLock(t *testing.T) {
	// The path matches a never-edit pattern AND falls inside an area locked
	// by another session; exactly one protected_file violation must result.
	reg := locks.NewMemoryRegistry()
	reg.Set(types.AreaLock{Area: ".", SessionID: "sess-other", TaskID: "task-9"})
	pol := types.Policy{
		AreaLockingEnabled: true,
		NeverEditPatterns:  []string{"**/.env", ".env"},
	}
	m := newClassifierUnderTest(t, pol, reg, nil)

	m.handleEvent(event(m, ".env"))

	require.Len(t, m.violations, 1)
	assert.Equal(t, types.ViolationProtectedFile, m.violations[0].Type)
	assert.Equal(t, ".env", m.violations[0].File)
}

func TestAreaLockViolationForForeignSession(t *testing.T) {
	reg := locks.NewMemoryRegistry()
	reg.Set(types.AreaLock{Area: "src/api", SessionID: "sess-other", TaskID: "task-9"})
	pol := types.Policy{AreaLockingEnabled: true}
	m := newClassifierUnderTest(t, pol, reg, nil)

	m.handleEvent(event(m, "src/api/handler.go"))

	require.Len(t, m.violations, 1)
	v := m.violations[0]
	assert.Equal(t, types.ViolationAreaLock, v.Type)
	assert.Equal(t, "sess-other", v.Detail["locked_by"])
	assert.Equal(t, "task-9", v.Detail["locked_by_task"])
}

func TestOwnAreaLockIsNotAViolation(t *testing.T) {
	reg := locks.NewMemoryRegistry()
	reg.Set(types.AreaLock{Area: "src", SessionID: "sess-self", TaskID: "task-1"})
	m := newClassifierUnderTest(t, types.Policy{AreaLockingEnabled: true}, reg, nil)

	m.handleEvent(event(m, "src/main.go"))

	assert.Empty(t, m.violations)
}

func TestAreaLockingDisabledSkipsLookup(t *testing.T) {
	reg := locks.NewMemoryRegistry()
	reg.Set(types.AreaLock{Area: "src", SessionID: "sess-other", TaskID: "t"})
	m := newClassifierUnderTest(t, types.Policy{AreaLockingEnabled: false}, reg, nil)

	m.handleEvent(event(m, "src/main.go"))

	assert.Empty(t, m.violations)
}

func TestIgnoredPathsProduceNoMetrics(t *testing.T) {
	m := newClassifierUnderTest(t, types.Policy{}, locks.NoopRegistry{}, nil)

	for _, rel := range []string{
		".git/objects/ab/cdef",
		"node_modules/pkg/index.js",
		".warden/violations.jsonl",
		".worktrees/scratch/x.go",
		"main.go.swp",
		"notes.tmp",
		"draft~",
	} {
		m.handleEvent(event(m, rel))
	}

	assert.Zero(t, m.total)
	assert.Empty(t, m.files)
	assert.Empty(t, m.violations)
}

func TestDuplicateEventsCountOneDistinctFile(t *testing.T) {
	m := newClassifierUnderTest(t, types.Policy{}, locks.NoopRegistry{}, nil)

	m.handleEvent(event(m, "src/a.go"))
	m.handleEvent(event(m, "src/a.go"))
	m.handleEvent(event(m, "src/b.go"))

	assert.Equal(t, 3, m.total)
	assert.Len(t, m.files, 2)
}

func TestViolationsPublishToBus(t *testing.T) {
	bus := events.NewBus(8)
	defer bus.Close()
	ch, cancel := bus.Subscribe()
	defer cancel()

	pol := types.Policy{NeverEditPatterns: []string{"**/*.pem"}}
	m := newClassifierUnderTest(t, pol, locks.NoopRegistry{}, bus)

	m.handleEvent(event(m, "certs/server.pem"))

	select {
	case ev := <-ch:
		assert.Equal(t, events.KindViolation, ev.Kind)
		assert.Equal(t, types.SeverityCritical, ev.Severity)
		require.NotNil(t, ev.Violation)
		assert.Equal(t, "certs/server.pem", ev.Violation.File)
	case <-time.After(time.Second):
		t.Fatal("no violation event published")
	}
}

func TestStartFailsOnUnwatchablePath(t *testing.T) {
	m := New(Config{
		Dir:    filepath.Join(t.TempDir(), "does-not-exist"),
		Policy: &policy.Static{},
	})
	assert.False(t, m.Start())
}

func TestStartWatchStopIntegration(t *testing.T) {
	dir := t.TempDir()
	m := New(Config{
		Dir:       dir,
		SessionID: "sess-self",
		TaskID:    "task-1",
		Policy:    &policy.Static{Policy: types.Policy{NeverEditPatterns: []string{".env"}}},
	})
	require.True(t, m.Start())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SECRET=1\n"), 0644))

	// Give the watcher time to deliver.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		n := len(m.violations)
		m.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	metrics := m.Stop()
	assert.GreaterOrEqual(t, metrics.FilesChanged, 1)
	assert.GreaterOrEqual(t, metrics.ViolationCount, 1)
	assert.Greater(t, metrics.Elapsed, time.Duration(0))

	// .env violation also lands in the shared log.
	recorded, err := ReadViolations(dir)
	require.NoError(t, err)
	require.NotEmpty(t, recorded)
	assert.Equal(t, types.ViolationProtectedFile, recorded[0].Type)
}

func TestStopWithoutStart(t *testing.T) {
	m := New(Config{Dir: t.TempDir(), Policy: &policy.Static{}})
	assert.Equal(t, Metrics{}, m.Stop())
}
