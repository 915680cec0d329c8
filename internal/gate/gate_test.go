package gate

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/internal/budget"
	"github.com/wardenhq/warden/internal/locks"
	"github.com/wardenhq/warden/internal/types"
)

func baseRequest(t *testing.T) Request {
	t.Helper()
	root := t.TempDir()
	return Request{
		WorkDir:     root,
		ProjectRoot: root,
		SessionID:   "sess-self",
		TaskID:      "task-1",
	}
}

func TestValidateCleanRunPasses(t *testing.T) {
	// Scenario: one changed file, no locks, no never-edit match, budget fine,
	// no version control (treated as clean).
	req := baseRequest(t)
	req.ChangedFiles = []string{"src/a.go"}
	req.Policy = &types.Policy{AreaLockingEnabled: true}

	report := New(Config{}).Validate(context.Background(), req)

	assert.True(t, report.Passed)
	assert.Empty(t, report.Violations)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, 1, report.Summary.FilesChanged)
	assert.Equal(t, "task-1", report.Summary.TaskID)
	assert.False(t, report.Summary.ValidatedAt.IsZero())
}

func TestValidateProtectedFileViolation(t *testing.T) {
	req := baseRequest(t)
	req.ChangedFiles = []string{".env", "src/ok.go"}
	req.Policy = &types.Policy{NeverEditPatterns: []string{"**/.env", ".env"}}

	report := New(Config{}).Validate(context.Background(), req)

	assert.False(t, report.Passed)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, types.ViolationProtectedFile, report.Violations[0].Type)
	assert.Equal(t, ".env", report.Violations[0].File)
}

func TestValidateAreaLockViolation(t *testing.T) {
	reg := locks.NewMemoryRegistry()
	reg.Set(types.AreaLock{Area: "src/api", SessionID: "sess-other", TaskID: "task-9"})

	req := baseRequest(t)
	req.ChangedFiles = []string{"src/api/routes.go", "docs/notes.md"}
	req.Policy = &types.Policy{AreaLockingEnabled: true}

	report := New(Config{Locks: reg}).Validate(context.Background(), req)

	assert.False(t, report.Passed)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, types.ViolationAreaLock, report.Violations[0].Type)
	assert.Equal(t, "src/api/routes.go", report.Violations[0].File)
}

func TestGateChecksAreIndependent(t *testing.T) {
	// Unlike the live monitor, the gate does not short-circuit: a file that
	// is both protected and inside a foreign lock yields both findings.
	reg := locks.NewMemoryRegistry()
	reg.Set(types.AreaLock{Area: "secrets", SessionID: "sess-other", TaskID: "task-9"})

	req := baseRequest(t)
	req.ChangedFiles = []string{"secrets/.env"}
	req.Policy = &types.Policy{
		AreaLockingEnabled: true,
		NeverEditPatterns:  []string{"**/.env"},
	}

	report := New(Config{Locks: reg}).Validate(context.Background(), req)

	assert.False(t, report.Passed)
	assert.Len(t, report.Violations, 2)
}

func TestValidateAreaLocksSkippedWithoutSession(t *testing.T) {
	reg := locks.NewMemoryRegistry()
	reg.Set(types.AreaLock{Area: "src", SessionID: "sess-other", TaskID: "t"})

	req := baseRequest(t)
	req.SessionID = ""
	req.ChangedFiles = []string{"src/a.go"}
	req.Policy = &types.Policy{AreaLockingEnabled: true}

	report := New(Config{Locks: reg}).Validate(context.Background(), req)
	assert.True(t, report.Passed)
}

func TestValidateBudgetExceeded(t *testing.T) {
	req := baseRequest(t)
	req.ChangedFiles = []string{}
	req.Policy = &types.Policy{}

	checker := &budget.StaticChecker{Result: &budget.Result{
		Exceeded: true, UsedUSD: 14.5, LimitUSD: 10,
	}}
	report := New(Config{Budget: checker}).Validate(context.Background(), req)

	assert.False(t, report.Passed)
	require.Len(t, report.Violations, 1)
	v := report.Violations[0]
	assert.Equal(t, types.ViolationBudgetExceeded, v.Type)
	assert.Equal(t, 14.5, v.Detail["used_usd"])
	assert.Equal(t, 10.0, v.Detail["limit_usd"])
}

func TestValidateNilBudgetCheckerIsNoFinding(t *testing.T) {
	req := baseRequest(t)
	req.ChangedFiles = []string{"src/a.go"}
	req.Policy = &types.Policy{}

	report := New(Config{Budget: nil}).Validate(context.Background(), req)
	assert.True(t, report.Passed)
}

func TestValidatePlanScopeWarnings(t *testing.T) {
	req := baseRequest(t)
	req.ChangedFiles = []string{"src/api/handler.go", "docs/extra.md"}
	req.Policy = &types.Policy{}

	plansDir := filepath.Join(req.ProjectRoot, ".warden", "plans")
	require.NoError(t, os.MkdirAll(plansDir, 0755))
	plan, _ := json.Marshal(map[string]any{"files": []string{"src/api"}})
	require.NoError(t, os.WriteFile(filepath.Join(plansDir, "task-1.json"), plan, 0644))

	report := New(Config{}).Validate(context.Background(), req)

	// Scope drift is soft: warnings only, the gate still passes.
	assert.True(t, report.Passed)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, types.ViolationOutOfScope, report.Warnings[0].Type)
	assert.Equal(t, "docs/extra.md", report.Warnings[0].File)
}

func TestValidateNoPlanSkipsScopeCheck(t *testing.T) {
	req := baseRequest(t)
	req.ChangedFiles = []string{"anything/at/all.go"}
	req.Policy = &types.Policy{}

	report := New(Config{}).Validate(context.Background(), req)
	assert.Empty(t, report.Warnings)
}

func TestPassedIgnoresWarnings(t *testing.T) {
	// An all-warnings report still passes.
	req := baseRequest(t)
	req.ChangedFiles = []string{"rogue.go"}
	req.Policy = &types.Policy{}

	plansDir := filepath.Join(req.ProjectRoot, ".warden", "plans")
	require.NoError(t, os.MkdirAll(plansDir, 0755))
	plan, _ := json.Marshal(map[string]any{"files": []string{"src/planned.go"}})
	require.NoError(t, os.WriteFile(filepath.Join(plansDir, "task-1.json"), plan, 0644))

	report := New(Config{}).Validate(context.Background(), req)

	assert.True(t, report.Passed)
	assert.NotEmpty(t, report.Warnings)
	assert.Empty(t, report.Violations)
	assert.Equal(t, 1, report.Summary.WarningCount)
}

func TestPathsOverlap(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"src/api/handler.go", "src/api", true},
		{"src/api", "src/api/handler.go", true},
		{"src/api/handler.go", "src/api/handler.go", true},
		{"docs/extra.md", "src/api", false},
		{"", "src", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pathsOverlap(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestReportPersistedAndOverwritten(t *testing.T) {
	req := baseRequest(t)
	req.ChangedFiles = []string{".env"}
	req.Policy = &types.Policy{NeverEditPatterns: []string{".env"}}

	g := New(Config{})
	first := g.Validate(context.Background(), req)
	assert.False(t, first.Passed)

	stored, err := ReadReport(req.ProjectRoot, req.TaskID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.Passed)

	// Second run with a clean change list overwrites the failing report.
	req.ChangedFiles = []string{"src/fine.go"}
	second := g.Validate(context.Background(), req)
	assert.True(t, second.Passed)

	stored, err = ReadReport(req.ProjectRoot, req.TaskID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Passed)
}

func TestReadReportMissing(t *testing.T) {
	report, err := ReadReport(t.TempDir(), "task-x")
	require.NoError(t, err)
	assert.Nil(t, report)
}
