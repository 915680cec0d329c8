// Package supervisor keeps the coordinating daemon alive. A single periodic
// loop probes daemon liveness, restarts it with bounded backoff, watches
// host memory pressure, and persists a heartbeat every tick.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wardenhq/warden/internal/events"
	"github.com/wardenhq/warden/internal/notify"
	"github.com/wardenhq/warden/internal/types"
)

// TickOutcome names what a supervisory tick decided.
type TickOutcome string

const (
	// OutcomeHealthy means the daemon was alive.
	OutcomeHealthy TickOutcome = "healthy"
	// OutcomeRestarted means a restart attempt was made.
	OutcomeRestarted TickOutcome = "restarted"
	// OutcomeCooldownSkip means the daemon was dead but the cooldown window
	// since the last attempt had not elapsed.
	OutcomeCooldownSkip TickOutcome = "cooldown_skip"
	// OutcomeGaveUp means the restart budget is exhausted.
	OutcomeGaveUp TickOutcome = "gave_up"
)

// Notifier is the slice of the notification router the supervisor uses.
type Notifier interface {
	Route(ctx context.Context, ev notify.Event) notify.RouteResult
}

// Config holds supervisor tuning and collaborators.
type Config struct {
	// ProjectRoot anchors the PID record, progress stamp, heartbeat, and
	// scale-down artifact.
	ProjectRoot string
	// Interval between ticks. Defaults to 30s.
	Interval time.Duration
	// MaxRestarts caps consecutive restart attempts. Defaults to 5.
	MaxRestarts int
	// Cooldown is the minimum gap between restart attempts. Defaults to 60s.
	Cooldown time.Duration
	// ProgressWindow is how fresh the daemon's progress stamp must be to
	// count as recovery confirmation. Defaults to 5m.
	ProgressWindow time.Duration
	// MemoryWarnPercent and MemoryCriticalPercent are the pressure
	// thresholds. Defaults: 85 and 95.
	MemoryWarnPercent     float64
	MemoryCriticalPercent float64
	// DaemonScript is the fixed script path spawned on restart.
	DaemonScript string

	// Prober, Spawner, and Memory default to the gopsutil/os implementations.
	Prober  ProcessProber
	Spawner Spawner
	Memory  MemoryChecker

	// Notifier receives alerts. Optional.
	Notifier Notifier
	// Bus receives supervision events. Optional.
	Bus *events.Bus
	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// Supervisor runs the liveness loop. All ticks run on one goroutine, so
// ticks never overlap.
type Supervisor struct {
	cfg    Config
	logger *zap.Logger

	// warnLimiter keeps a sustained memory condition from spamming the
	// router on every tick.
	warnLimiter *rate.Limiter

	mu                  sync.Mutex
	consecutiveRestarts int
	lastRestartAt       time.Time
	lastHeartbeat       types.HeartbeatRecord

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a supervisor, filling in defaults for anything unset.
func New(cfg Config) *Supervisor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	if cfg.ProgressWindow <= 0 {
		cfg.ProgressWindow = 5 * time.Minute
	}
	if cfg.MemoryWarnPercent <= 0 {
		cfg.MemoryWarnPercent = 85
	}
	if cfg.MemoryCriticalPercent <= 0 {
		cfg.MemoryCriticalPercent = 95
	}
	if cfg.Prober == nil {
		cfg.Prober = GopsutilProber{}
	}
	if cfg.Spawner == nil {
		cfg.Spawner = DetachedSpawner{}
	}
	if cfg.Memory == nil {
		cfg.Memory = GopsutilMemory{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Supervisor{
		cfg:         cfg,
		logger:      cfg.Logger,
		warnLimiter: rate.NewLimiter(rate.Every(15*time.Minute), 1),
		stopCh:      make(chan struct{}),
	}
}

// Run drives the tick loop until ctx is canceled or Stop is called.
// Shutdown cancels the timer and exits without restart side effects.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("health supervisor started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("max_restarts", s.cfg.MaxRestarts))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("health supervisor stopping")
			return ctx.Err()
		case <-s.stopCh:
			s.logger.Info("health supervisor stopped")
			return nil
		case <-ticker.C:
			s.TickNow(ctx)
		}
	}
}

// Stop halts the loop deterministically. Safe to call more than once.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Snapshot returns the heartbeat written by the most recent tick.
func (s *Supervisor) Snapshot() types.HeartbeatRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeartbeat
}

// TickNow performs one supervisory tick: probe, restart decision, resource
// check, heartbeat. Exposed for tests and the CLI.
func (s *Supervisor) TickNow(ctx context.Context) TickOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	alive := s.probeDaemon()
	outcome := OutcomeHealthy
	if alive {
		s.confirmRecovery()
	} else {
		outcome = s.attemptRestart(ctx)
	}

	memPercent := s.checkMemory(ctx)
	s.writeHeartbeat(alive, memPercent)
	return outcome
}

// probeDaemon reads the PID record and probes the process. A missing record
// or a dead process both mean "not alive"; probing never raises.
func (s *Supervisor) probeDaemon() bool {
	pid, ok := ReadPIDRecord(s.cfg.ProjectRoot)
	if !ok {
		return false
	}
	return s.cfg.Prober.Alive(pid)
}

// confirmRecovery resets the restart counter once the daemon shows fresh
// progress after a restart.
func (s *Supervisor) confirmRecovery() {
	if s.consecutiveRestarts == 0 {
		return
	}
	progressAt, ok := ReadProgressStamp(s.cfg.ProjectRoot)
	if !ok {
		return
	}
	if time.Since(progressAt) <= s.cfg.ProgressWindow {
		s.logger.Info("daemon recovery confirmed, resetting restart counter",
			zap.Int("previous_restarts", s.consecutiveRestarts))
		s.consecutiveRestarts = 0
	}
}

// attemptRestart applies the cooldown and max-restart gates, then spawns a
// fresh daemon.
func (s *Supervisor) attemptRestart(ctx context.Context) TickOutcome {
	if !s.lastRestartAt.IsZero() && time.Since(s.lastRestartAt) < s.cfg.Cooldown {
		return OutcomeCooldownSkip
	}
	if s.consecutiveRestarts >= s.cfg.MaxRestarts {
		s.logger.Error("daemon restart budget exhausted, giving up",
			zap.Int("attempts", s.consecutiveRestarts))
		s.emit(ctx, notify.Event{
			Title:    "Daemon restarts exhausted",
			Body:     fmt.Sprintf("gave up after %d restart attempts; manual intervention required", s.consecutiveRestarts),
			Severity: types.SeverityCritical,
			Tag:      "supervisor",
		}, events.KindRestartsExhausted)
		return OutcomeGaveUp
	}

	RemovePIDRecord(s.cfg.ProjectRoot)

	pid, err := s.cfg.Spawner.Spawn(s.cfg.DaemonScript, []string{"WARDEN_SUPERVISED=1"})
	if err != nil {
		s.logger.Error("daemon spawn failed", zap.Error(err))
	} else {
		s.logger.Warn("daemon restarted",
			zap.Int("pid", pid),
			zap.Int("attempt", s.consecutiveRestarts+1))
	}
	s.consecutiveRestarts++
	s.lastRestartAt = time.Now()

	s.emit(ctx, notify.Event{
		Title:    "Daemon restarted",
		Body:     fmt.Sprintf("restart attempt %d of %d", s.consecutiveRestarts, s.cfg.MaxRestarts),
		Severity: types.SeverityWarning,
		Tag:      "supervisor",
	}, events.KindDaemonRestarted)
	return OutcomeRestarted
}

// checkMemory runs the resource check, independent of daemon health.
func (s *Supervisor) checkMemory(ctx context.Context) float64 {
	percent, err := s.cfg.Memory.UsedPercent()
	if err != nil {
		s.logger.Debug("memory check failed", zap.Error(err))
		return 0
	}

	switch {
	case percent >= s.cfg.MemoryCriticalPercent:
		if err := WriteScaleDownAlert(s.cfg.ProjectRoot, percent); err != nil {
			s.logger.Warn("scale-down alert persist failed", zap.Error(err))
		}
		s.emit(ctx, notify.Event{
			Title:    "Host memory critical",
			Body:     fmt.Sprintf("memory at %.1f%% (critical threshold %.0f%%), scale down workers", percent, s.cfg.MemoryCriticalPercent),
			Severity: types.SeverityCritical,
			Tag:      "resources",
		}, events.KindMemoryPressure)
	case percent >= s.cfg.MemoryWarnPercent:
		if s.warnLimiter.Allow() {
			s.emit(ctx, notify.Event{
				Title:    "Host memory high",
				Body:     fmt.Sprintf("memory at %.1f%% (warn threshold %.0f%%)", percent, s.cfg.MemoryWarnPercent),
				Severity: types.SeverityWarning,
				Tag:      "resources",
			}, events.KindMemoryPressure)
		}
	}
	return percent
}

// writeHeartbeat persists the merged tick state. Write failure is advisory.
func (s *Supervisor) writeHeartbeat(alive bool, memPercent float64) {
	record := types.HeartbeatRecord{
		Timestamp:           time.Now().UTC(),
		SupervisorPID:       os.Getpid(),
		DaemonAlive:         alive,
		ConsecutiveRestarts: s.consecutiveRestarts,
		MemoryPercent:       memPercent,
	}
	s.lastHeartbeat = record
	if err := WriteHeartbeat(s.cfg.ProjectRoot, record); err != nil {
		s.logger.Warn("heartbeat write failed", zap.Error(err))
	}
}

// emit sends an alert through the router and mirrors it on the event bus.
func (s *Supervisor) emit(ctx context.Context, ev notify.Event, kind events.Kind) {
	if s.cfg.Notifier != nil {
		s.cfg.Notifier.Route(ctx, ev)
	}
	if s.cfg.Bus != nil {
		s.cfg.Bus.Publish(events.New(kind, ev.Severity, ev.Title, ev.Data))
	}
}
