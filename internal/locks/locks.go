// Package locks provides read-only access to the area-lock registry owned by
// the coordinating daemon. An area lock is an exclusive claim by one session
// over a named region of the codebase; the core only looks locks up, it
// never creates or releases them.
package locks

import (
	"context"
	"strings"

	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/types"
)

// Registry resolves paths to their owning area lock.
type Registry interface {
	// LockForPath returns the lock covering the given path, or nil when the
	// path falls under no locked area.
	LockForPath(ctx context.Context, path string) (*types.AreaLock, error)
}

// NoopRegistry is the stand-in used when no lock registry is reachable. It
// reports every path as unlocked.
type NoopRegistry struct{}

// LockForPath always returns nil.
func (NoopRegistry) LockForPath(ctx context.Context, path string) (*types.AreaLock, error) {
	return nil, nil
}

// areaCovers reports whether an area name covers a path. Areas are directory
// prefixes; "src/api" covers "src/api/handler.go" but not "src/apiv2/x.go".
func areaCovers(area, path string) bool {
	area = strings.TrimSuffix(policy.Normalize(area), "/")
	path = policy.Normalize(path)
	if area == "" {
		return false
	}
	return path == area || strings.HasPrefix(path, area+"/")
}

// bestMatch picks the most specific (longest) area covering path.
func bestMatch(all []types.AreaLock, path string) *types.AreaLock {
	var best *types.AreaLock
	for i := range all {
		if !areaCovers(all[i].Area, path) {
			continue
		}
		if best == nil || len(all[i].Area) > len(best.Area) {
			best = &all[i]
		}
	}
	return best
}
