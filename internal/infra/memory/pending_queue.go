package memory

import (
	"context"
	"sort"
	"sync"

	"readquest-service/internal/domain"
)

// PendingQueue is the in-process implementation of app.PendingQueue. Entries
// are deduplicated by (user, athlete) key; replacing a snapshot keeps the
// original creation time so flush order stays first-failed-first-retried.
type PendingQueue struct {
	mu      sync.Mutex
	entries map[string]domain.PendingSyncEntry
}

func NewPendingQueue() *PendingQueue {
	return &PendingQueue{entries: make(map[string]domain.PendingSyncEntry)}
}

func (q *PendingQueue) Put(_ context.Context, entry domain.PendingSyncEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if existing, ok := q.entries[entry.SyncKey()]; ok {
		entry.CreatedAt = existing.CreatedAt
	}
	q.entries[entry.SyncKey()] = entry
	return nil
}

func (q *PendingQueue) Get(_ context.Context, key string) (domain.PendingSyncEntry, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.entries[key]
	return entry, ok, nil
}

func (q *PendingQueue) Delete(_ context.Context, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, key)
	return nil
}

func (q *PendingQueue) List(_ context.Context) ([]domain.PendingSyncEntry, error) {
	q.mu.Lock()
	out := make([]domain.PendingSyncEntry, 0, len(q.entries))
	for _, entry := range q.entries {
		out = append(out, entry)
	}
	q.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].SyncKey() < out[j].SyncKey()
	})
	return out, nil
}

func (q *PendingQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries), nil
}
