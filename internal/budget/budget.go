// Package budget exposes the external cost estimator's verdict to the
// completion gate. Budget accounting itself happens upstream; this package
// only reads the per-task usage records it persists.
package budget

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Result is the estimator's verdict for one task.
type Result struct {
	Exceeded bool    `json:"exceeded"`
	UsedUSD  float64 `json:"used_usd"`
	LimitUSD float64 `json:"limit_usd"`
}

// Checker answers whether a task has blown its budget.
type Checker interface {
	// Check returns the budget verdict for a task. A nil result means the
	// estimator has no record for the task, which is not a finding.
	Check(ctx context.Context, taskID string) (*Result, error)
}

// usageRecord mirrors the JSON the estimator writes per task.
type usageRecord struct {
	UsedUSD  float64 `json:"used_usd"`
	LimitUSD float64 `json:"limit_usd"`
}

// FileChecker reads the estimator's persisted usage files from
// <projectRoot>/.warden/budget/<task-id>.json.
type FileChecker struct {
	dir string
}

// NewFileChecker creates a checker rooted at the project's state directory.
func NewFileChecker(projectRoot string) *FileChecker {
	return &FileChecker{dir: filepath.Join(projectRoot, ".warden", "budget")}
}

// Check loads the task's usage record. A missing record yields (nil, nil).
// A limit of zero means unlimited.
func (c *FileChecker) Check(ctx context.Context, taskID string) (*Result, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, taskID+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read budget record for %s: %w", taskID, err)
	}

	var rec usageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse budget record for %s: %w", taskID, err)
	}

	return &Result{
		Exceeded: rec.LimitUSD > 0 && rec.UsedUSD > rec.LimitUSD,
		UsedUSD:  rec.UsedUSD,
		LimitUSD: rec.LimitUSD,
	}, nil
}

// StaticChecker returns a fixed verdict for every task. Used in tests.
type StaticChecker struct {
	Result *Result
	Err    error
}

// Check returns the configured verdict.
func (s *StaticChecker) Check(ctx context.Context, taskID string) (*Result, error) {
	return s.Result, s.Err
}
