// Package monitor watches a running worker's filesystem activity and
// classifies every change against policy and area locks in real time.
//
// The OS watch layer produces raw events into a bounded queue; a single
// classifier goroutine drains it. Classification is quick (a pattern match
// plus an optional log append) and never blocks the watched process.
package monitor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/events"
	"github.com/wardenhq/warden/internal/locks"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/types"
)

// ignoredPrefixes are path prefixes (relative to the watch root) whose events
// never count: version-control internals, dependency caches, warden's own
// state tree, and worktree scratch space.
var ignoredPrefixes = []string{
	".git/",
	"node_modules/",
	".warden/",
	".worktrees/",
}

// ignoredExtensions are editor swap/backup suffixes.
var ignoredExtensions = []string{".swp", ".swo", ".swx", ".tmp", "~"}

// Metrics aggregates a watch session's results, returned by Stop.
type Metrics struct {
	FilesChanged   int
	TotalEvents    int
	ViolationCount int
	Violations     []types.Violation
	Elapsed        time.Duration
}

// Config holds the dependencies and identity of one watch session.
type Config struct {
	// Dir is the directory to watch recursively.
	Dir string
	// ProjectRoot anchors the shared violation log. Defaults to Dir.
	ProjectRoot string
	// SessionID and TaskID identify the worker being watched.
	SessionID string
	TaskID    string
	// Policy supplies the enforcement snapshot. Defaults to a file store
	// under ProjectRoot.
	Policy policy.Provider
	// Locks resolves area ownership. Defaults to the no-op registry.
	Locks locks.Registry
	// Bus receives violation events as they are recorded. Optional.
	Bus *events.Bus
	// Logger is required for advisory failure reporting. Defaults to a nop
	// logger.
	Logger *zap.Logger
	// QueueSize bounds the raw event queue between the OS watcher and the
	// classifier. Defaults to 1024.
	QueueSize int
}

// Monitor is a single watch session over one worker directory.
type Monitor struct {
	cfg     Config
	pol     types.Policy
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	raw  chan fsnotify.Event
	done chan struct{}
	wg   sync.WaitGroup

	mu         sync.Mutex
	files      map[string]struct{}
	total      int
	violations []types.Violation
	started    time.Time
	running    bool
}

// New creates a monitor for the given configuration.
func New(cfg Config) *Monitor {
	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = cfg.Dir
	}
	if cfg.Policy == nil {
		cfg.Policy = policy.NewFileStore(cfg.ProjectRoot)
	}
	if cfg.Locks == nil {
		cfg.Locks = locks.NoopRegistry{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	return &Monitor{
		cfg:    cfg,
		logger: cfg.Logger,
		files:  make(map[string]struct{}),
	}
}

// Start begins watching. It returns false when the directory cannot be
// watched; it never panics on an unwatchable path.
func (m *Monitor) Start() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return false
	}

	pol, err := m.cfg.Policy.Load(context.Background())
	if err != nil {
		m.logger.Warn("policy load failed, using defaults", zap.Error(err))
		pol = policy.DefaultPolicy()
	}
	m.pol = pol

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.logger.Warn("watch setup failed", zap.Error(err))
		return false
	}
	if err := addRecursive(watcher, m.cfg.Dir); err != nil {
		m.logger.Warn("watch setup failed", zap.String("dir", m.cfg.Dir), zap.Error(err))
		_ = watcher.Close()
		return false
	}

	m.watcher = watcher
	m.raw = make(chan fsnotify.Event, m.cfg.QueueSize)
	m.done = make(chan struct{})
	m.started = time.Now()
	m.running = true

	m.wg.Add(2)
	go m.produce()
	go m.classify()
	return true
}

// Stop halts watching and returns the session metrics. Safe to call once per
// Start; a monitor that never started returns zero metrics.
func (m *Monitor) Stop() Metrics {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return Metrics{}
	}
	m.running = false
	watcher := m.watcher
	m.mu.Unlock()

	_ = watcher.Close()
	close(m.done)
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	violations := make([]types.Violation, len(m.violations))
	copy(violations, m.violations)
	metrics := Metrics{
		FilesChanged:   len(m.files),
		TotalEvents:    m.total,
		ViolationCount: len(violations),
		Violations:     violations,
		Elapsed:        time.Since(m.started),
	}
	if m.cfg.Bus != nil {
		m.cfg.Bus.Publish(events.New(events.KindWatchStopped, types.SeverityInfo,
			fmt.Sprintf("watch session ended: %d files, %d violations",
				metrics.FilesChanged, metrics.ViolationCount),
			map[string]any{
				"files_changed": metrics.FilesChanged,
				"violations":    metrics.ViolationCount,
			}))
	}
	return metrics
}

// produce forwards OS events into the bounded queue. A full queue drops the
// event rather than blocking the watch callback.
func (m *Monitor) produce() {
	defer m.wg.Done()
	defer close(m.raw)
	for {
		select {
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create != 0 {
				m.maybeWatchNewDir(ev.Name)
			}
			select {
			case m.raw <- ev:
			default:
				m.logger.Debug("event queue full, dropping", zap.String("path", ev.Name))
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				m.recordViolation(types.Violation{
					Type:      types.ViolationWatcherError,
					SessionID: m.cfg.SessionID,
					TaskID:    m.cfg.TaskID,
					Timestamp: time.Now(),
					Detail:    map[string]any{"error": err.Error()},
				}, types.SeverityWarning, "filesystem watcher error")
			}
		case <-m.done:
			return
		}
	}
}

// classify drains the raw queue, one event at a time.
func (m *Monitor) classify() {
	defer m.wg.Done()
	for ev := range m.raw {
		m.handleEvent(ev)
	}
}

// maybeWatchNewDir extends the recursive watch to directories created while
// the session runs.
func (m *Monitor) maybeWatchNewDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if m.isIgnored(m.relPath(path)) {
		return
	}
	if err := addRecursive(m.watcher, path); err != nil {
		m.logger.Debug("failed to watch new directory", zap.String("dir", path), zap.Error(err))
	}
}

// addRecursive registers path and every subdirectory with the watcher.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (name == ".git" || name == "node_modules" || name == ".warden" || name == ".worktrees") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func (m *Monitor) relPath(path string) string {
	rel, err := filepath.Rel(m.cfg.Dir, path)
	if err != nil {
		return policy.Normalize(path)
	}
	return policy.Normalize(rel)
}

func (m *Monitor) isIgnored(rel string) bool {
	for _, prefix := range ignoredPrefixes {
		if strings.HasPrefix(rel, prefix) || rel == strings.TrimSuffix(prefix, "/") {
			return true
		}
	}
	for _, ext := range ignoredExtensions {
		if strings.HasSuffix(rel, ext) {
			return true
		}
	}
	return false
}
