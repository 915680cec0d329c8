package gate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wardenhq/warden/internal/types"
)

// ReportPath returns the validation report location for a task.
func ReportPath(projectRoot, taskID string) string {
	return filepath.Join(projectRoot, ".warden", "validation", taskID+".json")
}

// WriteReport persists the report for a task, overwriting any prior run.
// Last write wins.
func WriteReport(projectRoot, taskID string, report *types.ValidationReport) error {
	if taskID == "" {
		return fmt.Errorf("task id is required")
	}
	path := ReportPath(projectRoot, taskID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create validation directory: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal validation report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write validation report: %w", err)
	}
	return nil
}

// ReadReport loads the persisted report for a task, or nil when none exists.
func ReadReport(projectRoot, taskID string) (*types.ValidationReport, error) {
	data, err := os.ReadFile(ReportPath(projectRoot, taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read validation report: %w", err)
	}
	var report types.ValidationReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse validation report: %w", err)
	}
	return &report, nil
}
