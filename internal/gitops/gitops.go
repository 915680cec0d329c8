// Package gitops runs the handful of git queries the completion gate needs.
// Every query is time-bounded; a timeout or a missing repository is reported
// as "no data", never as a hang or a hard failure of the gate.
package gitops

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds every git subprocess call.
const DefaultTimeout = 10 * time.Second

// Status summarizes the working tree.
type Status struct {
	// Modified holds tracked files with staged or unstaged changes,
	// including deletes and renames.
	Modified []string
	// Untracked holds files git does not know about.
	Untracked []string
}

// HasChanges reports whether anything in the tree is dirty.
func (s *Status) HasChanges() bool {
	return len(s.Modified) > 0 || len(s.Untracked) > 0
}

// Client wraps the git CLI.
type Client struct {
	gitPath string
	timeout time.Duration
}

// NewClient locates git on PATH. Callers treat a construction error as
// "no version control", not as a failure.
func NewClient() (*Client, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}
	return &Client{gitPath: gitPath, timeout: DefaultTimeout}, nil
}

func (c *Client) run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	full := append([]string{"-C", repoPath}, args...)
	cmd := exec.CommandContext(ctx, c.gitPath, full...)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// IsRepo reports whether repoPath sits inside a git work tree.
func (c *Client) IsRepo(ctx context.Context, repoPath string) bool {
	out, err := c.run(ctx, repoPath, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

// GetStatus parses `git status --porcelain` into modified and untracked sets.
func (c *Client) GetStatus(ctx context.Context, repoPath string) (*Status, error) {
	out, err := c.run(ctx, repoPath, "status", "--porcelain")
	if err != nil {
		return nil, err
	}

	status := &Status{}
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 4 {
			continue
		}
		code := line[0:2]
		path := line[3:]
		// Renames are reported as "old -> new"; keep the new path.
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		if code == "??" {
			status.Untracked = append(status.Untracked, path)
		} else {
			status.Modified = append(status.Modified, path)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse git status: %w", err)
	}
	return status, nil
}

// ChangedFiles lists files changed since baseRef, combining committed diffs
// with the current working-tree changes.
func (c *Client) ChangedFiles(ctx context.Context, repoPath, baseRef string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(path string) {
		path = strings.TrimSpace(path)
		if path == "" {
			return
		}
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	if baseRef != "" {
		out, err := c.run(ctx, repoPath, "diff", "--name-only", baseRef+"...HEAD")
		if err != nil {
			return nil, err
		}
		for _, line := range strings.Split(string(out), "\n") {
			add(line)
		}
	}

	status, err := c.GetStatus(ctx, repoPath)
	if err != nil {
		return nil, err
	}
	for _, path := range status.Modified {
		add(path)
	}
	for _, path := range status.Untracked {
		add(path)
	}
	return files, nil
}
