package locks

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wardenhq/warden/internal/types"
)

// SQLiteRegistry reads area locks from the coordinating daemon's SQLite
// database. The table is owned and written by the daemon; this adapter only
// issues SELECTs.
type SQLiteRegistry struct {
	db *sql.DB
}

// OpenSQLiteRegistry opens the daemon's database read-only.
func OpenSQLiteRegistry(path string) (*SQLiteRegistry, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=busy_timeout(2000)")
	if err != nil {
		return nil, fmt.Errorf("open lock registry %s: %w", path, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping lock registry %s: %w", path, err)
	}
	return &SQLiteRegistry{db: db}, nil
}

// Close releases the database handle.
func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}

// LockForPath loads the current lock table and returns the most specific
// lock covering path, or nil when the path is unclaimed.
func (r *SQLiteRegistry) LockForPath(ctx context.Context, path string) (*types.AreaLock, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT area, session_id, task_id FROM area_locks`)
	if err != nil {
		return nil, fmt.Errorf("query area locks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var all []types.AreaLock
	for rows.Next() {
		var lock types.AreaLock
		if err := rows.Scan(&lock.Area, &lock.SessionID, &lock.TaskID); err != nil {
			return nil, fmt.Errorf("scan area lock: %w", err)
		}
		all = append(all, lock)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate area locks: %w", err)
	}

	match := bestMatch(all, path)
	if match == nil {
		return nil, nil
	}
	copied := *match
	return &copied, nil
}
