package gate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/types"
)

// planRecord mirrors the approved-plan JSON the coordinating daemon writes
// under .warden/plans/<task-id>.json.
type planRecord struct {
	Files []string `json:"files"`
}

// loadPlanFiles returns the approved plan's file list for a task, or nil when
// no plan (or no file list) exists. Absence of a plan is not a finding.
func loadPlanFiles(projectRoot, taskID string) []string {
	if taskID == "" {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(projectRoot, ".warden", "plans", taskID+".json"))
	if err != nil {
		return nil
	}
	var rec planRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil
	}
	return rec.Files
}

// pathsOverlap reports containment in either direction. The heuristic is
// deliberately loose, which is why plan-scope drift is only ever a warning.
func pathsOverlap(a, b string) bool {
	a = policy.Normalize(a)
	b = policy.Normalize(b)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// checkPlanScope warns about changed files outside the approved plan's file
// set. Skipped entirely when the plan has no explicit file list.
func (g *Gate) checkPlanScope(req Request, changed []string) []types.Violation {
	planned := loadPlanFiles(req.ProjectRoot, req.TaskID)
	if len(planned) == 0 {
		return nil
	}

	var out []types.Violation
	for _, file := range changed {
		inScope := false
		for _, p := range planned {
			if pathsOverlap(file, p) {
				inScope = true
				break
			}
		}
		if !inScope {
			g.logger.Debug("changed file outside plan scope", zap.String("file", file))
			out = append(out, g.newViolation(req, types.ViolationOutOfScope, file, map[string]any{
				"planned_files": planned,
			}))
		}
	}
	return out
}
