package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wardenhq/warden/internal/types"
)

// pidRecord mirrors the JSON the daemon writes when it starts.
type pidRecord struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

// PIDRecordPath returns the daemon PID record location.
func PIDRecordPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".warden", "daemon.pid")
}

// ProgressStampPath returns the daemon's progress stamp location. The daemon
// touches this file whenever it makes task progress.
func ProgressStampPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".warden", "daemon.progress")
}

// HeartbeatPath returns the supervisor heartbeat location.
func HeartbeatPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".warden", "heartbeat.json")
}

// ScaleDownAlertPath returns the scale-down artifact location.
func ScaleDownAlertPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".warden", "scale-down-alert.json")
}

// ReadPIDRecord loads the daemon PID. Missing or malformed records return
// ok=false; neither is an error condition.
func ReadPIDRecord(projectRoot string) (int, bool) {
	data, err := os.ReadFile(PIDRecordPath(projectRoot))
	if err != nil {
		return 0, false
	}
	var rec pidRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.PID <= 0 {
		return 0, false
	}
	return rec.PID, true
}

// WritePIDRecord persists the daemon PID. Used by the daemon itself and by
// tests.
func WritePIDRecord(projectRoot string, pid int) error {
	path := PIDRecordPath(projectRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	data, err := json.Marshal(pidRecord{PID: pid, StartedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal pid record: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write pid record: %w", err)
	}
	return nil
}

// RemovePIDRecord deletes the stale PID record before a restart. Missing
// files are fine.
func RemovePIDRecord(projectRoot string) {
	_ = os.Remove(PIDRecordPath(projectRoot))
}

// ReadProgressStamp returns the daemon's last progress time, taken from the
// stamp file's mtime.
func ReadProgressStamp(projectRoot string) (time.Time, bool) {
	info, err := os.Stat(ProgressStampPath(projectRoot))
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// TouchProgressStamp updates the stamp's mtime. The daemon calls this; it is
// exported for tests and tooling.
func TouchProgressStamp(projectRoot string) error {
	path := ProgressStampPath(projectRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("touch progress stamp: %w", err)
		}
		if err := os.WriteFile(path, nil, 0644); err != nil {
			return fmt.Errorf("create progress stamp: %w", err)
		}
	}
	return nil
}

// WriteHeartbeat overwrites the heartbeat file with the latest record.
func WriteHeartbeat(projectRoot string, record types.HeartbeatRecord) error {
	path := HeartbeatPath(projectRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal heartbeat: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write heartbeat: %w", err)
	}
	return nil
}

// ReadHeartbeat loads the latest heartbeat, or nil when none exists.
func ReadHeartbeat(projectRoot string) (*types.HeartbeatRecord, error) {
	data, err := os.ReadFile(HeartbeatPath(projectRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read heartbeat: %w", err)
	}
	var record types.HeartbeatRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("parse heartbeat: %w", err)
	}
	return &record, nil
}

// WriteScaleDownAlert persists the critical-memory artifact.
func WriteScaleDownAlert(projectRoot string, memPercent float64) error {
	path := ScaleDownAlertPath(projectRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	payload := map[string]any{
		"timestamp":      time.Now().UTC(),
		"memory_percent": memPercent,
		"action":         "scale_down_workers",
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal scale-down alert: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write scale-down alert: %w", err)
	}
	return nil
}
