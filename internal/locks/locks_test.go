package locks

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/internal/types"
)

func TestAreaCovers(t *testing.T) {
	tests := []struct {
		area string
		path string
		want bool
	}{
		{"src/api", "src/api/handler.go", true},
		{"src/api", "src/api", true},
		{"src/api", "src/apiv2/handler.go", false},
		{"src/api/", "src/api/handler.go", true},
		{"", "src/api/handler.go", false},
		{"src", "docs/readme.md", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, areaCovers(tt.area, tt.path),
			"area=%q path=%q", tt.area, tt.path)
	}
}

func TestMemoryRegistryLockForPath(t *testing.T) {
	reg := NewMemoryRegistry()
	reg.Set(types.AreaLock{Area: "src", SessionID: "s1", TaskID: "t1"})
	reg.Set(types.AreaLock{Area: "src/api", SessionID: "s2", TaskID: "t2"})

	lock, err := reg.LockForPath(context.Background(), "src/api/handler.go")
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, "s2", lock.SessionID, "most specific area wins")

	lock, err = reg.LockForPath(context.Background(), "src/worker/pool.go")
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, "s1", lock.SessionID)

	lock, err = reg.LockForPath(context.Background(), "docs/readme.md")
	require.NoError(t, err)
	assert.Nil(t, lock)
}

func TestMemoryRegistrySetReplacesAndRelease(t *testing.T) {
	reg := NewMemoryRegistry()
	reg.Set(types.AreaLock{Area: "src", SessionID: "s1", TaskID: "t1"})
	reg.Set(types.AreaLock{Area: "src", SessionID: "s9", TaskID: "t9"})

	lock, err := reg.LockForPath(context.Background(), "src/x.go")
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, "s9", lock.SessionID)

	reg.Release("src")
	lock, err = reg.LockForPath(context.Background(), "src/x.go")
	require.NoError(t, err)
	assert.Nil(t, lock)
}

func TestNoopRegistry(t *testing.T) {
	lock, err := NoopRegistry{}.LockForPath(context.Background(), "anything")
	require.NoError(t, err)
	assert.Nil(t, lock)
}

func TestSQLiteRegistryLockForPath(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "daemon.db")

	// Seed a registry database the way the coordinating daemon would.
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE area_locks (
		area TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		task_id TEXT NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO area_locks (area, session_id, task_id) VALUES
		('src/api', 'sess-a', 'task-1'),
		('src', 'sess-b', 'task-2')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reg, err := OpenSQLiteRegistry(dbPath)
	require.NoError(t, err)
	defer func() { _ = reg.Close() }()

	lock, err := reg.LockForPath(context.Background(), "src/api/routes.go")
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, "sess-a", lock.SessionID)
	assert.Equal(t, "task-1", lock.TaskID)

	lock, err = reg.LockForPath(context.Background(), "vendor/lib.go")
	require.NoError(t, err)
	assert.Nil(t, lock)
}

func TestOpenSQLiteRegistryMissingFile(t *testing.T) {
	_, err := OpenSQLiteRegistry(filepath.Join(t.TempDir(), "absent.db"))
	assert.Error(t, err)
}
