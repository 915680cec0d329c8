package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/wardenhq/warden/internal/types"
)

// QueueEntry is a queued info event plus its enqueue time.
type QueueEntry struct {
	Event    Event     `json:"event"`
	QueuedAt time.Time `json:"queued_at"`
}

// DigestQueue is the persisted store-and-forward queue for info events. The
// backing file is a JSON array shared across processes; every read-modify-
// write cycle runs under a sidecar file lock, so two processes cannot race
// an enqueue against a flush.
type DigestQueue struct {
	path string
	lock *flock.Flock
}

// NewDigestQueue creates the queue for a project root.
func NewDigestQueue(projectRoot string) *DigestQueue {
	path := filepath.Join(projectRoot, ".warden", "digest-queue.json")
	return &DigestQueue{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

func (q *DigestQueue) withLock(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(q.path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := q.lock.Lock(); err != nil {
		return fmt.Errorf("acquire digest lock: %w", err)
	}
	defer func() { _ = q.lock.Unlock() }()
	return fn()
}

// load reads the queue file. Missing or corrupt files yield an empty queue;
// a corrupt queue is an advisory condition, not a crash.
func (q *DigestQueue) load() []QueueEntry {
	data, err := os.ReadFile(q.path)
	if err != nil {
		return nil
	}
	var entries []QueueEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	return entries
}

func (q *DigestQueue) store(entries []QueueEntry) error {
	if entries == nil {
		entries = []QueueEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal digest queue: %w", err)
	}
	if err := os.WriteFile(q.path, data, 0644); err != nil {
		return fmt.Errorf("write digest queue: %w", err)
	}
	return nil
}

// Enqueue appends one event to the persisted queue.
func (q *DigestQueue) Enqueue(ev Event) error {
	return q.withLock(func() error {
		entries := q.load()
		entries = append(entries, QueueEntry{Event: ev, QueuedAt: time.Now().UTC()})
		return q.store(entries)
	})
}

// Drain atomically takes every queued entry, leaving the queue empty.
func (q *DigestQueue) Drain() ([]QueueEntry, error) {
	var drained []QueueEntry
	err := q.withLock(func() error {
		drained = q.load()
		return q.store(nil)
	})
	if err != nil {
		return nil, err
	}
	return drained, nil
}

// Entries returns a snapshot of the queue without modifying it.
func (q *DigestQueue) Entries() []QueueEntry {
	var entries []QueueEntry
	_ = q.withLock(func() error {
		entries = q.load()
		return nil
	})
	return entries
}

// OldestAge returns how long the oldest entry has been queued, and false for
// an empty queue.
func (q *DigestQueue) OldestAge(now time.Time) (time.Duration, bool) {
	entries := q.Entries()
	if len(entries) == 0 {
		return 0, false
	}
	oldest := entries[0].QueuedAt
	for _, e := range entries[1:] {
		if e.QueuedAt.Before(oldest) {
			oldest = e.QueuedAt
		}
	}
	return now.Sub(oldest), true
}

// ShouldFlushDigest reports whether the oldest queued item has aged past the
// digest interval. An empty queue never signals a flush.
func (r *Router) ShouldFlushDigest() bool {
	age, ok := r.queue.OldestAge(time.Now())
	return ok && age > r.interval
}

// FlushDigest drains the queue and delivers one aggregate event through the
// non-queuing routing path. The queue is emptied regardless of per-adapter
// outcomes; delivery failures are isolated and already recorded. Returns the
// number of items flushed.
func (r *Router) FlushDigest(ctx context.Context) (int, error) {
	entries, err := r.queue.Drain()
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	var body strings.Builder
	for _, entry := range entries {
		fmt.Fprintf(&body, "- %s\n", entry.Event.Title)
	}
	aggregate := Event{
		Title:    fmt.Sprintf("Digest: %d notifications", len(entries)),
		Body:     body.String(),
		Severity: types.SeverityInfo,
		Tag:      "digest",
	}

	// Non-queuing path: digest goes to the primary channel unless an
	// override claims the digest tag.
	if channels, ok := r.overrides[aggregate.Tag]; ok {
		r.dispatch(ctx, aggregate, channels)
	} else {
		r.dispatch(ctx, aggregate, []string{r.primary})
	}
	return len(entries), nil
}

// QueueSize returns the number of queued entries.
func (r *Router) QueueSize() int {
	return len(r.queue.Entries())
}
