package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wardenhq/warden/internal/types"
)

// ViolationLogPath returns the shared violation log location for a project.
func ViolationLogPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".warden", "violations.jsonl")
}

// AppendViolation writes one violation as a JSON line to the shared,
// append-only log. Multiple processes append to the same file; O_APPEND
// keeps individual lines intact.
func AppendViolation(projectRoot string, v types.Violation) error {
	path := ViolationLogPath(projectRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal violation: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open violation log: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append violation: %w", err)
	}
	return nil
}

// ReadViolations loads every violation recorded in the project's log.
// Malformed lines are skipped.
func ReadViolations(projectRoot string) ([]types.Violation, error) {
	data, err := os.ReadFile(ViolationLogPath(projectRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read violation log: %w", err)
	}

	var out []types.Violation
	for _, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var v types.Violation
		if err := json.Unmarshal(line, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
