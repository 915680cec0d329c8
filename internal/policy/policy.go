// Package policy supplies enforcement configuration to the supervision core.
// The policy store itself is owned by the coordinating daemon; this package
// only reads snapshots of it.
package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/wardenhq/warden/internal/types"
)

// Provider loads a policy snapshot. Each component invocation loads the
// policy once and treats the result as immutable for its lifetime.
type Provider interface {
	Load(ctx context.Context) (types.Policy, error)
}

// Static is a fixed in-memory provider. It stands in when no policy store is
// reachable and is the default for tests.
type Static struct {
	Policy types.Policy
}

// Load returns the fixed policy snapshot.
func (s *Static) Load(ctx context.Context) (types.Policy, error) {
	return s.Policy, nil
}

// FileStore reads policy from a YAML file under the project's state
// directory. A missing file is not an error: enforcement defaults apply.
type FileStore struct {
	path string
}

// NewFileStore creates a provider reading <projectRoot>/.warden/policy.yaml.
func NewFileStore(projectRoot string) *FileStore {
	return &FileStore{path: filepath.Join(projectRoot, ".warden", "policy.yaml")}
}

// DefaultPolicy is the snapshot used when no policy file exists: area locking
// on, no never-edit patterns, active task not required.
func DefaultPolicy() types.Policy {
	return types.Policy{AreaLockingEnabled: true}
}

// Load reads the policy file. Missing files yield the default policy; a file
// that exists but cannot be parsed is a real error.
func (f *FileStore) Load(ctx context.Context) (types.Policy, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultPolicy(), nil
		}
		return types.Policy{}, fmt.Errorf("read policy file %s: %w", f.path, err)
	}

	pol := DefaultPolicy()
	if err := yaml.Unmarshal(data, &pol); err != nil {
		return types.Policy{}, fmt.Errorf("parse policy file %s: %w", f.path, err)
	}
	return pol, nil
}
