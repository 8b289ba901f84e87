package memory

import (
	"context"
	"sync"

	"readquest-service/internal/domain"
)

// ProgressAPI is an in-memory stand-in for the remote persistence collaborator
// (useful for local development and tests). Upserts are idempotent by
// (user, athlete) key, matching the contract real backends must honor.
type ProgressAPI struct {
	mu      sync.RWMutex
	records map[string]domain.ProgressRecord
}

func NewProgressAPI() *ProgressAPI {
	return &ProgressAPI{records: make(map[string]domain.ProgressRecord)}
}

func (a *ProgressAPI) Create(_ context.Context, record domain.ProgressRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[domain.SyncKey(record.UserID, record.AthleteID)] = record
	return nil
}

func (a *ProgressAPI) List(_ context.Context, userID string) ([]domain.ProgressRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]domain.ProgressRecord, 0)
	for _, rec := range a.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (a *ProgressAPI) Update(_ context.Context, record domain.ProgressRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := domain.SyncKey(record.UserID, record.AthleteID)
	if _, ok := a.records[key]; !ok {
		return domain.ErrProgressNotFound
	}
	a.records[key] = record
	return nil
}
