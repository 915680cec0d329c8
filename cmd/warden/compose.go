package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/events"
	"github.com/wardenhq/warden/internal/locks"
	"github.com/wardenhq/warden/internal/logging"
	"github.com/wardenhq/warden/internal/notify"
)

// loadConfig reads the project configuration and builds the logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(projectRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel})
	return cfg, logger, nil
}

// buildRouter creates the notification router for the project.
func buildRouter(cfg *config.Config, logger *zap.Logger) *notify.Router {
	rc := cfg.RouterConfig(projectRoot)
	rc.Logger = logger
	return notify.NewRouter(rc)
}

// buildLockRegistry opens the daemon's lock database when configured, or
// falls back to the no-op registry.
func buildLockRegistry(cfg *config.Config, logger *zap.Logger) locks.Registry {
	if cfg.LockDBPath == "" {
		return locks.NoopRegistry{}
	}
	reg, err := locks.OpenSQLiteRegistry(cfg.LockDBPath)
	if err != nil {
		logger.Warn("lock registry unavailable, area checks disabled",
			zap.String("path", cfg.LockDBPath), zap.Error(err))
		return locks.NoopRegistry{}
	}
	return reg
}

// forwardEvents subscribes to the bus and routes every event until ctx ends.
// This is the seam between detection and delivery: detectors publish, this
// loop delivers.
func forwardEvents(ctx context.Context, bus *events.Bus, router *notify.Router) {
	ch, cancel := bus.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			router.Route(ctx, eventToNotification(ev))
		}
	}
}

// eventToNotification converts a bus event into a routable notification.
func eventToNotification(ev events.Event) notify.Event {
	title := ev.Message
	var body strings.Builder
	if ev.Violation != nil {
		if ev.Violation.File != "" {
			fmt.Fprintf(&body, "file: %s\n", ev.Violation.File)
		}
		fmt.Fprintf(&body, "type: %s\nsession: %s\ntask: %s\n",
			ev.Violation.Type, ev.Violation.SessionID, ev.Violation.TaskID)
	}
	tag := ""
	switch ev.Kind {
	case events.KindViolation:
		tag = "violations"
	case events.KindMemoryPressure:
		tag = "resources"
	case events.KindDaemonRestarted, events.KindRestartsExhausted:
		tag = "supervisor"
	}
	return notify.Event{
		Title:    title,
		Body:     body.String(),
		Severity: ev.Severity,
		Tag:      tag,
		Data:     ev.Data,
	}
}
