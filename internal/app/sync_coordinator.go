package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"readquest-service/internal/domain"
	"readquest-service/internal/observability"
)

// ProgressAPI is the narrow contract over the remote persistence collaborator.
// All three operations must be safe to replay with the same payload; the
// coordinator delivers at-least-once and dedupes only on its own side.
type ProgressAPI interface {
	Create(ctx context.Context, record domain.ProgressRecord) error
	List(ctx context.Context, userID string) ([]domain.ProgressRecord, error)
	Update(ctx context.Context, record domain.ProgressRecord) error
}

// PendingQueue stores snapshots of records whose remote write has not been
// confirmed. Entries are deduplicated by (user, athlete) key: Put replaces the
// snapshot but keeps the original creation time so flush order stays FIFO.
type PendingQueue interface {
	Put(ctx context.Context, entry domain.PendingSyncEntry) error
	Get(ctx context.Context, key string) (domain.PendingSyncEntry, bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]domain.PendingSyncEntry, error)
	Len(ctx context.Context) (int, error)
}

// SyncCoordinator reconciles local progress mutations with the remote API.
// Pushes are fire-and-forget: the user-facing mutation never waits on remote
// I/O, and a failed write parks the latest snapshot in the pending queue for
// the next flush trigger. Failures never propagate as errors to the caller;
// they surface only as best-effort SyncStatus notifications.
type SyncCoordinator struct {
	api            ProgressAPI
	queue          PendingQueue
	attemptTimeout time.Duration
	now            func() time.Time

	wg sync.WaitGroup

	// Per-key locks serialize queue settlement: pushes are concurrent
	// goroutines, so an older attempt may finish after a newer one for the
	// same key, and its outcome must not clobber the newer queued snapshot.
	keyMu    sync.Mutex
	keyLocks map[string]*sync.Mutex

	mu          sync.Mutex
	subscribers map[string]map[chan domain.SyncStatus]struct{}
	trigger     chan struct{}
}

func NewSyncCoordinator(api ProgressAPI, queue PendingQueue) *SyncCoordinator {
	return NewSyncCoordinatorWithClock(api, queue, time.Now)
}

// NewSyncCoordinatorWithClock is test-only for deterministic entry timestamps.
func NewSyncCoordinatorWithClock(api ProgressAPI, queue PendingQueue, now func() time.Time) *SyncCoordinator {
	return &SyncCoordinator{
		api:            api,
		queue:          queue,
		attemptTimeout: 10 * time.Second,
		now:            now,
		keyLocks:       make(map[string]*sync.Mutex),
		subscribers:    make(map[string]map[chan domain.SyncStatus]struct{}),
		trigger:        make(chan struct{}, 1),
	}
}

// Push attempts a remote upsert of the record without blocking the caller.
// The attempt runs on its own context so it may outlive the triggering user
// action; there is no cancellation primitive by design.
func (c *SyncCoordinator) Push(record domain.ProgressRecord) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.attemptTimeout)
		defer cancel()
		c.attempt(ctx, record)
	}()
}

// Wait blocks until all in-flight push attempts have settled. Used on
// shutdown and by tests; new pushes may still be issued afterwards.
func (c *SyncCoordinator) Wait() {
	c.wg.Wait()
}

func (c *SyncCoordinator) attempt(ctx context.Context, record domain.ProgressRecord) {
	key := domain.SyncKey(record.UserID, record.AthleteID)
	err := c.upsert(ctx, record)
	observability.RecordSyncAttempt(err)
	if err == nil {
		// The snapshot is durable; drop a queued entry for the key unless it
		// holds a newer mutation that still awaits confirmation.
		mu := c.lockKey(key)
		mu.Lock()
		c.settleNotNewer(ctx, key, record)
		mu.Unlock()
		c.updateDepth(ctx)
		c.notify(domain.SyncStatus{UserID: record.UserID, AthleteID: record.AthleteID, Synced: true})
		return
	}

	log.Printf("sync: remote write failed for %s, queuing for retry: %v", key, err)
	mu := c.lockKey(key)
	mu.Lock()
	// An older failed attempt must not replace a newer queued snapshot.
	if entry, ok := c.pending(ctx, key); !ok || !entry.Record.CompletionDate.After(record.CompletionDate) {
		if qErr := c.queue.Put(ctx, domain.PendingSyncEntry{
			ID:        uuid.NewString(),
			Record:    record,
			CreatedAt: c.now(),
		}); qErr != nil {
			log.Printf("sync: queue put failed for %s: %v", key, qErr)
		}
	}
	mu.Unlock()
	c.updateDepth(ctx)
	c.notify(domain.SyncStatus{
		UserID:    record.UserID,
		AthleteID: record.AthleteID,
		Synced:    false,
		Message:   "progress may not be saved right now",
	})
}

func (c *SyncCoordinator) lockKey(key string) *sync.Mutex {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	mu, ok := c.keyLocks[key]
	if !ok {
		mu = &sync.Mutex{}
		c.keyLocks[key] = mu
	}
	return mu
}

// pending reads the queued entry for a key; queue errors read as absence.
func (c *SyncCoordinator) pending(ctx context.Context, key string) (domain.PendingSyncEntry, bool) {
	entry, ok, err := c.queue.Get(ctx, key)
	if err != nil {
		log.Printf("sync: queue read failed for %s: %v", key, err)
		return domain.PendingSyncEntry{}, false
	}
	return entry, ok
}

// settleNotNewer removes the queued entry for a key after `record` became
// durable, unless the entry snapshots a newer mutation. Reports whether the
// key is fully settled (nothing newer remains queued). Callers hold the key lock.
func (c *SyncCoordinator) settleNotNewer(ctx context.Context, key string, record domain.ProgressRecord) bool {
	entry, ok := c.pending(ctx, key)
	if !ok {
		return true
	}
	if entry.Record.CompletionDate.After(record.CompletionDate) {
		return false
	}
	if err := c.queue.Delete(ctx, key); err != nil {
		log.Printf("sync: queue delete failed for %s: %v", key, err)
	}
	return true
}

// upsert reads the remote state for the key and then creates or updates,
// mirroring the read-then-write pattern of a generic content-object API.
func (c *SyncCoordinator) upsert(ctx context.Context, record domain.ProgressRecord) error {
	existing, err := c.api.List(ctx, record.UserID)
	if err != nil {
		return err
	}
	for _, rec := range existing {
		if rec.AthleteID == record.AthleteID {
			err := c.api.Update(ctx, record)
			if errors.Is(err, domain.ErrProgressNotFound) {
				// Deleted between list and update; fall through to create.
				break
			}
			return err
		}
	}
	return c.api.Create(ctx, record)
}

// Flush re-attempts all queued entries in creation order. Each success removes
// its entry; each failure leaves it queued for the next trigger. Returns the
// number of entries that became durable.
func (c *SyncCoordinator) Flush(ctx context.Context) (int, error) {
	entries, err := c.queue.List(ctx)
	if err != nil {
		return 0, err
	}

	flushed := 0
	for _, entry := range entries {
		err := c.upsert(ctx, entry.Record)
		observability.RecordSyncAttempt(err)
		if err != nil {
			log.Printf("sync: flush attempt failed for %s: %v", entry.SyncKey(), err)
			c.notify(domain.SyncStatus{
				UserID:    entry.Record.UserID,
				AthleteID: entry.Record.AthleteID,
				Synced:    false,
				Message:   "progress may not be saved right now",
			})
			continue
		}
		mu := c.lockKey(entry.SyncKey())
		mu.Lock()
		settled := c.settleNotNewer(ctx, entry.SyncKey(), entry.Record)
		mu.Unlock()
		if !settled {
			// A newer snapshot was queued mid-flight; it stays for the next pass.
			continue
		}
		flushed++
		c.notify(domain.SyncStatus{UserID: entry.Record.UserID, AthleteID: entry.Record.AthleteID, Synced: true})
	}
	c.updateDepth(ctx)
	return flushed, nil
}

// TriggerFlush requests an immediate flush pass from the Run loop, e.g. on a
// network-regained signal. Coalesces with an already-pending trigger.
func (c *SyncCoordinator) TriggerFlush() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Run drives periodic flush passes until the context is canceled.
func (c *SyncCoordinator) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-c.trigger:
		}
		if n, err := c.Flush(ctx); err != nil {
			log.Printf("sync: flush pass failed: %v", err)
		} else if n > 0 {
			log.Printf("sync: flushed %d pending record(s)", n)
		}
	}
}

// ListRemote exposes the remote read used to hydrate local progress.
func (c *SyncCoordinator) ListRemote(ctx context.Context, userID string) ([]domain.ProgressRecord, error) {
	return c.api.List(ctx, userID)
}

// Subscribe returns a channel receiving sync notifications for one user.
// The caller must invoke the returned cancel function to avoid leaks.
func (c *SyncCoordinator) Subscribe(userID string) (<-chan domain.SyncStatus, func()) {
	ch := make(chan domain.SyncStatus, 8)

	c.mu.Lock()
	subs, ok := c.subscribers[userID]
	if !ok {
		subs = make(map[chan domain.SyncStatus]struct{})
		c.subscribers[userID] = subs
	}
	subs[ch] = struct{}{}
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if subs, ok := c.subscribers[userID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(c.subscribers, userID)
			}
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

func (c *SyncCoordinator) notify(status domain.SyncStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.subscribers[status.UserID] {
		select {
		case ch <- status:
		default:
			// Drop the oldest pending notification so slow clients never block sync.
			select {
			case <-ch:
			default:
			}
			ch <- status
		}
	}
}

func (c *SyncCoordinator) updateDepth(ctx context.Context) {
	if n, err := c.queue.Len(ctx); err == nil {
		observability.SetPendingDepth(n)
	}
}
