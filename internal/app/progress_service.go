package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"readquest-service/internal/domain"
	"readquest-service/internal/observability"
)

// ProgressSyncer makes accepted progress mutations durable in the background.
// Push must never block the caller on remote I/O; ListRemote hydrates local
// state from records written by other devices.
type ProgressSyncer interface {
	Push(record domain.ProgressRecord)
	ListRemote(ctx context.Context, userID string) ([]domain.ProgressRecord, error)
}

type progressKey struct {
	userID    string
	athleteID int
}

// ProgressService holds the authoritative in-memory view of user progress and
// is the single point of mutation. Every accepted mutation is written through
// the syncer asynchronously; the remote store is a durability sink, not a gate
// on user progress. With an empty user ID (no identity) all mutations are
// silent no-ops so reading and quizzing keep working without persistence.
type ProgressService struct {
	mu        sync.RWMutex
	records   map[progressKey]*domain.ProgressRecord
	syncer    ProgressSyncer
	threshold float64
	now       func() time.Time
}

// NewProgressService builds a progress store. The syncer may be nil for a
// purely local (guest/offline) setup. threshold is the fraction of correct
// answers counted as a perfect quiz; values outside (0,1] mean "all correct".
func NewProgressService(syncer ProgressSyncer, threshold float64) *ProgressService {
	return NewProgressServiceWithClock(syncer, threshold, time.Now)
}

// NewProgressServiceWithClock is test-only for deterministic timestamps.
func NewProgressServiceWithClock(syncer ProgressSyncer, threshold float64, now func() time.Time) *ProgressService {
	if threshold <= 0 || threshold > 1 {
		threshold = 1
	}
	return &ProgressService{
		records:   make(map[progressKey]*domain.ProgressRecord),
		syncer:    syncer,
		threshold: threshold,
		now:       now,
	}
}

// CompletionThreshold returns the configured perfect-quiz threshold.
func (s *ProgressService) CompletionThreshold() float64 {
	return s.threshold
}

// RecordStoryRead is an idempotent upsert marking the story as read. Quiz
// fields on an existing record are left untouched.
func (s *ProgressService) RecordStoryRead(ctx context.Context, userID string, athleteID int, athleteName string, timeSpentSeconds int) domain.ProgressRecord {
	if userID == "" {
		return domain.ProgressRecord{}
	}

	s.mu.Lock()
	rec := s.upsertLocked(userID, athleteID, athleteName)
	rec.StoryRead = true
	if timeSpentSeconds > 0 {
		rec.TimeSpentReadingSeconds = timeSpentSeconds
	}
	rec.CompletionDate = s.now()
	snapshot := *rec
	s.mu.Unlock()

	observability.RecordStoryRead()
	if s.syncer != nil {
		s.syncer.Push(snapshot)
	}
	return snapshot
}

// RecordQuizScore is an idempotent upsert marking the quiz as completed with
// the given score. The story-read flag is an independent signal and is left
// untouched; first-time records are created with StoryRead=false.
func (s *ProgressService) RecordQuizScore(ctx context.Context, userID string, athleteID int, athleteName string, score, totalQuestions int) domain.ProgressRecord {
	if userID == "" {
		return domain.ProgressRecord{}
	}

	s.mu.Lock()
	rec := s.upsertLocked(userID, athleteID, athleteName)
	rec.QuizCompleted = true
	rec.QuizScore = score
	rec.TotalQuestions = totalQuestions
	rec.CompletionDate = s.now()
	snapshot := *rec
	s.mu.Unlock()

	observability.RecordQuizCompleted(snapshot.Perfect(s.threshold))
	if s.syncer != nil {
		s.syncer.Push(snapshot)
	}
	return snapshot
}

func (s *ProgressService) upsertLocked(userID string, athleteID int, athleteName string) *domain.ProgressRecord {
	key := progressKey{userID: userID, athleteID: athleteID}
	rec, ok := s.records[key]
	if !ok {
		rec = &domain.ProgressRecord{UserID: userID, AthleteID: athleteID}
		s.records[key] = rec
	}
	if athleteName != "" {
		rec.AthleteName = athleteName
	}
	return rec
}

// GetProgress returns the record for one athlete, with explicit absence for
// unknown keys.
func (s *ProgressService) GetProgress(userID string, athleteID int) (domain.ProgressRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[progressKey{userID: userID, athleteID: athleteID}]
	if !ok {
		return domain.ProgressRecord{}, false
	}
	return *rec, true
}

// ListProgress returns all of the user's records ordered by athlete ID.
func (s *ProgressService) ListProgress(userID string) []domain.ProgressRecord {
	s.mu.RLock()
	out := make([]domain.ProgressRecord, 0)
	for key, rec := range s.records {
		if key.userID == userID {
			out = append(out, *rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].AthleteID < out[j].AthleteID })
	return out
}

// Hydrate fills the local store from remote records written by other devices.
// Keys already present locally win: the active session is the source of truth.
// Failures are soft; the caller decides whether to log or warn.
func (s *ProgressService) Hydrate(ctx context.Context, userID string) error {
	if userID == "" || s.syncer == nil {
		return nil
	}
	remote, err := s.syncer.ListRemote(ctx, userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range remote {
		key := progressKey{userID: rec.UserID, athleteID: rec.AthleteID}
		if _, exists := s.records[key]; exists {
			continue
		}
		copied := rec
		s.records[key] = &copied
	}
	return nil
}
