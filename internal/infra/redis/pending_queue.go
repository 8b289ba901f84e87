package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"readquest-service/internal/domain"
)

const pendingKey = "sync:pending"

// PendingQueue stores unconfirmed progress snapshots in a Redis hash keyed by
// (user, athlete), so queued writes survive process restarts and can be
// flushed by the `sync` CLI subcommand. The hash field gives dedupe for free;
// flush ordering comes from each entry's creation timestamp.
type PendingQueue struct {
	client *redis.Client
}

func NewPendingQueue(client *redis.Client) *PendingQueue {
	return &PendingQueue{client: client}
}

func (q *PendingQueue) Put(ctx context.Context, entry domain.PendingSyncEntry) error {
	// Keep the original creation time when replacing a queued snapshot.
	if raw, err := q.client.HGet(ctx, pendingKey, entry.SyncKey()).Bytes(); err == nil {
		var existing domain.PendingSyncEntry
		if err := json.Unmarshal(raw, &existing); err == nil {
			entry.CreatedAt = existing.CreatedAt
		}
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal pending entry: %w", err)
	}
	if err := q.client.HSet(ctx, pendingKey, entry.SyncKey(), raw).Err(); err != nil {
		return fmt.Errorf("queue pending entry: %w", err)
	}
	return nil
}

func (q *PendingQueue) Delete(ctx context.Context, key string) error {
	if err := q.client.HDel(ctx, pendingKey, key).Err(); err != nil {
		return fmt.Errorf("delete pending entry: %w", err)
	}
	return nil
}

func (q *PendingQueue) Get(ctx context.Context, key string) (domain.PendingSyncEntry, bool, error) {
	raw, err := q.client.HGet(ctx, pendingKey, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.PendingSyncEntry{}, false, nil
	}
	if err != nil {
		return domain.PendingSyncEntry{}, false, fmt.Errorf("read pending entry: %w", err)
	}
	var entry domain.PendingSyncEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return domain.PendingSyncEntry{}, false, fmt.Errorf("unmarshal pending entry: %w", err)
	}
	return entry, true, nil
}

func (q *PendingQueue) List(ctx context.Context) ([]domain.PendingSyncEntry, error) {
	fields, err := q.client.HGetAll(ctx, pendingKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list pending entries: %w", err)
	}

	out := make([]domain.PendingSyncEntry, 0, len(fields))
	for _, raw := range fields {
		var entry domain.PendingSyncEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].SyncKey() < out[j].SyncKey()
	})
	return out, nil
}

func (q *PendingQueue) Len(ctx context.Context) (int, error) {
	n, err := q.client.HLen(ctx, pendingKey).Result()
	if err != nil {
		return 0, fmt.Errorf("pending queue length: %w", err)
	}
	return int(n), nil
}
