// Package types defines the shared data model for the warden supervision
// core: policies, violations, validation reports, and heartbeat records.
package types

import (
	"fmt"
	"time"
)

// Policy is the enforcement configuration governing area locking and
// protected-path rules. It is an immutable snapshot: components load it once
// per invocation and never write back.
type Policy struct {
	AreaLockingEnabled bool     `json:"area_locking" yaml:"area_locking"`
	NeverEditPatterns  []string `json:"never_edit" yaml:"never_edit"`
	RequireActiveTask  bool     `json:"require_active_task" yaml:"require_active_task"`
}

// AreaLock is an exclusive claim by one session over a named region of the
// codebase. The lock registry owns these records; the core only reads them.
type AreaLock struct {
	Area      string `json:"area"`
	SessionID string `json:"session_id"`
	TaskID    string `json:"task_id"`
}

// ViolationType classifies a policy finding.
type ViolationType string

const (
	ViolationProtectedFile      ViolationType = "protected_file"
	ViolationAreaLock           ViolationType = "area_lock"
	ViolationWatcherError       ViolationType = "watcher_error"
	ViolationOutOfScope         ViolationType = "out_of_scope"
	ViolationBudgetExceeded     ViolationType = "budget_exceeded"
	ViolationUncommittedChanges ViolationType = "uncommitted_changes"
	ViolationUntrackedFiles     ViolationType = "untracked_files"
)

// IsValid checks whether the violation type is one of the known values.
func (v ViolationType) IsValid() bool {
	switch v {
	case ViolationProtectedFile, ViolationAreaLock, ViolationWatcherError,
		ViolationOutOfScope, ViolationBudgetExceeded,
		ViolationUncommittedChanges, ViolationUntrackedFiles:
		return true
	}
	return false
}

// Violation records a single policy finding. Violations are append-only and
// never mutated once recorded.
type Violation struct {
	ID        string         `json:"id"`
	Type      ViolationType  `json:"type"`
	File      string         `json:"file,omitempty"`
	SessionID string         `json:"session_id"`
	TaskID    string         `json:"task_id"`
	Timestamp time.Time      `json:"timestamp"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Validate checks that the violation has the fields every consumer relies on.
func (v *Violation) Validate() error {
	if !v.Type.IsValid() {
		return fmt.Errorf("invalid violation type: %s", v.Type)
	}
	if v.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}

// ReportSummary carries the aggregate counters for a validation run.
type ReportSummary struct {
	FilesChanged   int       `json:"files_changed"`
	ViolationCount int       `json:"violation_count"`
	WarningCount   int       `json:"warning_count"`
	SessionID      string    `json:"session_id"`
	TaskID         string    `json:"task_id"`
	ValidatedAt    time.Time `json:"validated_at"`
}

// ValidationReport is the outcome of a completion-gate run. Passed is true
// iff Violations is empty; Warnings never affect Passed. One report exists
// per task at a time — writing a new report overwrites the prior one.
type ValidationReport struct {
	Passed     bool          `json:"passed"`
	Violations []Violation   `json:"violations"`
	Warnings   []Violation   `json:"warnings"`
	Summary    ReportSummary `json:"summary"`
}

// HeartbeatRecord is the latest-state liveness record written by the health
// supervisor on each tick. It has no history; only the last value persists.
type HeartbeatRecord struct {
	Timestamp           time.Time `json:"timestamp"`
	SupervisorPID       int       `json:"supervisor_pid"`
	DaemonAlive         bool      `json:"daemon_alive"`
	ConsecutiveRestarts int       `json:"consecutive_restarts"`
	MemoryPercent       float64   `json:"memory_percent"`
}

// Severity ranks a notification event for routing purposes.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// IsValid checks whether the severity is one of the known values.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}
