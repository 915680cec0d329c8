package monitor

import (
	"context"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/events"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/types"
)

// handleEvent classifies one raw filesystem event. Duplicate events for the
// same path are expected; recording the same violation type twice for one
// path is acceptable and not deduplicated.
func (m *Monitor) handleEvent(ev fsnotify.Event) {
	rel := m.relPath(ev.Name)
	if rel == "" || rel == "." {
		return
	}
	if m.isIgnored(rel) {
		return
	}
	// Directory creation is watch bookkeeping, not a file change.
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			return
		}
	}

	m.mu.Lock()
	m.total++
	m.files[rel] = struct{}{}
	m.mu.Unlock()

	// Protected-file hits short-circuit every other check for this event.
	if pattern := policy.MatchesAny(m.pol.NeverEditPatterns, rel); pattern != "" {
		m.recordViolation(types.Violation{
			Type:      types.ViolationProtectedFile,
			File:      rel,
			SessionID: m.cfg.SessionID,
			TaskID:    m.cfg.TaskID,
			Timestamp: time.Now(),
			Detail:    map[string]any{"pattern": pattern, "op": ev.Op.String()},
		}, types.SeverityCritical, "protected file modified")
		return
	}

	if !m.pol.AreaLockingEnabled {
		return
	}
	lock, err := m.cfg.Locks.LockForPath(context.Background(), rel)
	if err != nil {
		m.logger.Debug("area lock lookup failed", zap.String("path", rel), zap.Error(err))
		return
	}
	if lock == nil || lock.SessionID == m.cfg.SessionID {
		return
	}
	m.recordViolation(types.Violation{
		Type:      types.ViolationAreaLock,
		File:      rel,
		SessionID: m.cfg.SessionID,
		TaskID:    m.cfg.TaskID,
		Timestamp: time.Now(),
		Detail: map[string]any{
			"area":           lock.Area,
			"locked_by":      lock.SessionID,
			"locked_by_task": lock.TaskID,
		},
	}, types.SeverityWarning, "edit inside area locked by another session")
}

// recordViolation appends the violation to the session tally, the shared
// violation log, and the event bus. Log write failures are swallowed; bus
// delivery never blocks.
func (m *Monitor) recordViolation(v types.Violation, severity types.Severity, message string) {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}

	m.mu.Lock()
	m.violations = append(m.violations, v)
	m.mu.Unlock()

	if err := AppendViolation(m.cfg.ProjectRoot, v); err != nil {
		m.logger.Warn("violation log append failed", zap.Error(err))
	}
	if m.cfg.Bus != nil {
		m.cfg.Bus.Publish(events.NewViolationEvent(v, severity, message))
	}
}
