// Package gate runs the post-hoc validation pass over a finished worker:
// area locks, protected files, plan scope, budget, and working-tree
// cleanliness. The gate is one-shot and synchronous; it classifies findings
// but never fails hard itself.
package gate

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/budget"
	"github.com/wardenhq/warden/internal/events"
	"github.com/wardenhq/warden/internal/gitops"
	"github.com/wardenhq/warden/internal/locks"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/types"
)

// Request describes one validation run.
type Request struct {
	// WorkDir is the worker's working directory (the repository checkout).
	WorkDir string
	// ProjectRoot anchors warden state. Defaults to WorkDir.
	ProjectRoot string
	// SessionID and TaskID identify the worker whose output is gated.
	SessionID string
	TaskID    string
	// BaseRef is the diff base for deriving changed files.
	BaseRef string
	// ChangedFiles, when non-nil, is used instead of querying version
	// control. Lets tests run without live state.
	ChangedFiles []string
	// Policy, when non-nil, overrides the configured provider.
	Policy *types.Policy
}

// Config holds the gate's collaborators.
type Config struct {
	// Policy supplies enforcement snapshots. Defaults to a file store under
	// the request's project root.
	Policy policy.Provider
	// Locks resolves area ownership. Defaults to the no-op registry.
	Locks locks.Registry
	// Budget is the external budget checker. Nil means budget produces no
	// findings.
	Budget budget.Checker
	// Git runs version-control queries. Nil means "no version control".
	Git *gitops.Client
	// Bus receives hard violations as they are found. Optional.
	Bus *events.Bus
	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// Gate validates a worker's output after it exits.
type Gate struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a gate. A zero Config is usable: every collaborator has a
// stand-in.
func New(cfg Config) *Gate {
	if cfg.Locks == nil {
		cfg.Locks = locks.NoopRegistry{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Gate{cfg: cfg, logger: cfg.Logger}
}

// Validate runs all five checks and returns the aggregated report. The
// report is also persisted per task (overwriting any prior run); persistence
// failure does not affect the returned report.
func (g *Gate) Validate(ctx context.Context, req Request) *types.ValidationReport {
	if req.ProjectRoot == "" {
		req.ProjectRoot = req.WorkDir
	}

	pol := g.loadPolicy(ctx, req)
	changed := g.changedFiles(ctx, req)

	var violations, warnings []types.Violation

	// Checks run unconditionally and independently; later checks never
	// suppress earlier findings.
	violations = append(violations, g.checkAreaLocks(ctx, req, pol, changed)...)
	violations = append(violations, g.checkProtectedFiles(req, pol, changed)...)
	warnings = append(warnings, g.checkPlanScope(req, changed)...)
	violations = append(violations, g.checkBudget(ctx, req)...)
	warnings = append(warnings, g.checkCleanTree(ctx, req)...)

	report := &types.ValidationReport{
		Passed:     len(violations) == 0,
		Violations: violations,
		Warnings:   warnings,
		Summary: types.ReportSummary{
			FilesChanged:   len(changed),
			ViolationCount: len(violations),
			WarningCount:   len(warnings),
			SessionID:      req.SessionID,
			TaskID:         req.TaskID,
			ValidatedAt:    time.Now().UTC(),
		},
	}

	if err := WriteReport(req.ProjectRoot, req.TaskID, report); err != nil {
		g.logger.Warn("validation report persist failed",
			zap.String("task_id", req.TaskID), zap.Error(err))
	}

	if g.cfg.Bus != nil {
		for _, v := range violations {
			severity := types.SeverityWarning
			if v.Type == types.ViolationProtectedFile || v.Type == types.ViolationBudgetExceeded {
				severity = types.SeverityCritical
			}
			g.cfg.Bus.Publish(events.NewViolationEvent(v, severity, "completion gate violation"))
		}
	}
	return report
}

func (g *Gate) loadPolicy(ctx context.Context, req Request) types.Policy {
	if req.Policy != nil {
		return *req.Policy
	}
	provider := g.cfg.Policy
	if provider == nil {
		provider = policy.NewFileStore(req.ProjectRoot)
	}
	pol, err := provider.Load(ctx)
	if err != nil {
		g.logger.Warn("policy load failed, using defaults", zap.Error(err))
		return policy.DefaultPolicy()
	}
	return pol
}

// changedFiles resolves the file list: pre-supplied, or derived from version
// control. No repository, a query error, or a timeout all mean "no data".
func (g *Gate) changedFiles(ctx context.Context, req Request) []string {
	if req.ChangedFiles != nil {
		out := make([]string, len(req.ChangedFiles))
		for i, f := range req.ChangedFiles {
			out[i] = policy.Normalize(f)
		}
		return out
	}
	if g.cfg.Git == nil || !g.cfg.Git.IsRepo(ctx, req.WorkDir) {
		return nil
	}
	files, err := g.cfg.Git.ChangedFiles(ctx, req.WorkDir, req.BaseRef)
	if err != nil {
		g.logger.Warn("changed file query failed", zap.Error(err))
		return nil
	}
	for i, f := range files {
		files[i] = policy.Normalize(f)
	}
	return files
}

func (g *Gate) newViolation(req Request, vt types.ViolationType, file string, detail map[string]any) types.Violation {
	return types.Violation{
		ID:        uuid.New().String(),
		Type:      vt,
		File:      file,
		SessionID: req.SessionID,
		TaskID:    req.TaskID,
		Timestamp: time.Now().UTC(),
		Detail:    detail,
	}
}

// checkAreaLocks flags changed files inside areas locked by other sessions.
// Skipped when area locking is disabled or no session id was given.
func (g *Gate) checkAreaLocks(ctx context.Context, req Request, pol types.Policy, changed []string) []types.Violation {
	if !pol.AreaLockingEnabled || req.SessionID == "" {
		return nil
	}
	var out []types.Violation
	for _, file := range changed {
		lock, err := g.cfg.Locks.LockForPath(ctx, file)
		if err != nil {
			g.logger.Debug("area lock lookup failed", zap.String("path", file), zap.Error(err))
			continue
		}
		if lock == nil || lock.SessionID == req.SessionID {
			continue
		}
		out = append(out, g.newViolation(req, types.ViolationAreaLock, file, map[string]any{
			"area":           lock.Area,
			"locked_by":      lock.SessionID,
			"locked_by_task": lock.TaskID,
		}))
	}
	return out
}

// checkProtectedFiles flags changed files matching never-edit patterns.
func (g *Gate) checkProtectedFiles(req Request, pol types.Policy, changed []string) []types.Violation {
	var out []types.Violation
	for _, file := range changed {
		if pattern := policy.MatchesAny(pol.NeverEditPatterns, file); pattern != "" {
			out = append(out, g.newViolation(req, types.ViolationProtectedFile, file, map[string]any{
				"pattern": pattern,
			}))
		}
	}
	return out
}

// checkBudget delegates to the external checker. No checker or no record
// means no finding.
func (g *Gate) checkBudget(ctx context.Context, req Request) []types.Violation {
	if g.cfg.Budget == nil || req.TaskID == "" {
		return nil
	}
	res, err := g.cfg.Budget.Check(ctx, req.TaskID)
	if err != nil {
		g.logger.Warn("budget check failed", zap.String("task_id", req.TaskID), zap.Error(err))
		return nil
	}
	if res == nil || !res.Exceeded {
		return nil
	}
	return []types.Violation{g.newViolation(req, types.ViolationBudgetExceeded, "", map[string]any{
		"used_usd":  res.UsedUSD,
		"limit_usd": res.LimitUSD,
	})}
}

// checkCleanTree warns about uncommitted modifications and untracked files.
// Absence of version control is treated as clean.
func (g *Gate) checkCleanTree(ctx context.Context, req Request) []types.Violation {
	if g.cfg.Git == nil || !g.cfg.Git.IsRepo(ctx, req.WorkDir) {
		return nil
	}
	status, err := g.cfg.Git.GetStatus(ctx, req.WorkDir)
	if err != nil {
		g.logger.Warn("git status failed", zap.Error(err))
		return nil
	}
	var out []types.Violation
	if len(status.Modified) > 0 {
		out = append(out, g.newViolation(req, types.ViolationUncommittedChanges, "", map[string]any{
			"files": status.Modified,
		}))
	}
	if len(status.Untracked) > 0 {
		out = append(out, g.newViolation(req, types.ViolationUntrackedFiles, "", map[string]any{
			"files": status.Untracked,
		}))
	}
	return out
}
