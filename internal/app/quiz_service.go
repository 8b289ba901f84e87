package app

import (
	"context"

	"readquest-service/internal/domain"
)

// CatalogRepository loads immutable athlete content (from cache/backing store).
type CatalogRepository interface {
	GetAthlete(ctx context.Context, athleteID int) (domain.Athlete, error)
	ListAthletes(ctx context.Context) ([]domain.AthleteSummary, error)
}

// SessionRepository abstracts how quiz sessions are stored. Sessions are
// ephemeral and never persisted; implementations only need process-local maps.
type SessionRepository interface {
	Put(key string, session *QuizSession)
	Get(key string) (*QuizSession, bool)
	Delete(key string)
}

// QuizService contains the reading/quizzing use cases: it owns the quiz
// session lifecycle and forwards terminal scores into the progress store.
type QuizService struct {
	catalog  CatalogRepository
	sessions SessionRepository
	progress *ProgressService
}

func NewQuizService(catalog CatalogRepository, sessions SessionRepository, progress *ProgressService) *QuizService {
	return &QuizService{catalog: catalog, sessions: sessions, progress: progress}
}

// StartQuiz creates a fresh session for the athlete, discarding any previous
// one for the same user. Unknown athletes cannot be quizzed.
func (s *QuizService) StartQuiz(ctx context.Context, userID string, athleteID int) (domain.QuestionView, error) {
	athlete, err := s.catalog.GetAthlete(ctx, athleteID)
	if err != nil {
		return domain.QuestionView{}, err
	}

	session := NewQuizSession(athlete)
	s.sessions.Put(sessionKey(userID, athleteID), session)
	return session.View(), nil
}

// SelectOption records a tentative answer. Rejected selections (locked
// question, unknown option) leave the view unchanged.
func (s *QuizService) SelectOption(ctx context.Context, userID string, athleteID int, option string) (domain.QuestionView, error) {
	session, ok := s.sessions.Get(sessionKey(userID, athleteID))
	if !ok {
		return domain.QuestionView{}, domain.ErrSessionNotFound
	}
	session.SelectOption(option)
	return session.View(), nil
}

// SubmitAnswer locks in the current selection. The bool reports whether a
// submission actually happened; submitting without a selection is a no-op.
func (s *QuizService) SubmitAnswer(ctx context.Context, userID string, athleteID int) (domain.AnswerResult, bool, error) {
	session, ok := s.sessions.Get(sessionKey(userID, athleteID))
	if !ok {
		return domain.AnswerResult{}, false, domain.ErrSessionNotFound
	}
	result, submitted := session.SubmitAnswer()
	return result, submitted, nil
}

// Advance moves to the next question, or finishes the quiz. On completion the
// final score flows into the progress store and the session is discarded; the
// returned result is non-nil only in that case.
func (s *QuizService) Advance(ctx context.Context, userID string, athleteID int) (domain.QuestionView, *domain.QuizResult, error) {
	key := sessionKey(userID, athleteID)
	session, ok := s.sessions.Get(key)
	if !ok {
		return domain.QuestionView{}, nil, domain.ErrSessionNotFound
	}

	result, _ := session.Advance()
	if result == nil {
		// Advance before submit is a defensive no-op; hand back the unchanged view.
		return session.View(), nil, nil
	}

	athlete, err := s.catalog.GetAthlete(ctx, athleteID)
	if err != nil {
		// Catalog is immutable for the session lifetime; fall back to the IDs we have.
		athlete = domain.Athlete{ID: athleteID}
	}
	rec := s.progress.RecordQuizScore(ctx, userID, athleteID, athlete.Name, result.Score, result.TotalQuestions)
	result.Perfect = rec.Perfect(s.progress.CompletionThreshold())

	s.sessions.Delete(key)
	return domain.QuestionView{}, result, nil
}

// CurrentQuestion returns the session's view without mutating anything.
func (s *QuizService) CurrentQuestion(userID string, athleteID int) (domain.QuestionView, error) {
	session, ok := s.sessions.Get(sessionKey(userID, athleteID))
	if !ok {
		return domain.QuestionView{}, domain.ErrSessionNotFound
	}
	return session.View(), nil
}

// Restart discards the session and starts a new one for the same athlete.
func (s *QuizService) Restart(ctx context.Context, userID string, athleteID int) (domain.QuestionView, error) {
	s.sessions.Delete(sessionKey(userID, athleteID))
	return s.StartQuiz(ctx, userID, athleteID)
}

// GetAthlete exposes a single catalog record (story plus questions).
func (s *QuizService) GetAthlete(ctx context.Context, athleteID int) (domain.Athlete, error) {
	return s.catalog.GetAthlete(ctx, athleteID)
}

// ListAthletes exposes the catalog index.
func (s *QuizService) ListAthletes(ctx context.Context) ([]domain.AthleteSummary, error) {
	return s.catalog.ListAthletes(ctx)
}

// MarkStoryRead records that the user finished reading an athlete's story.
func (s *QuizService) MarkStoryRead(ctx context.Context, userID string, athleteID int, timeSpentSeconds int) (domain.ProgressRecord, error) {
	athlete, err := s.catalog.GetAthlete(ctx, athleteID)
	if err != nil {
		return domain.ProgressRecord{}, err
	}
	return s.progress.RecordStoryRead(ctx, userID, athleteID, athlete.Name, timeSpentSeconds), nil
}

// Progress returns the user's progress for one athlete, with explicit absence.
func (s *QuizService) Progress(userID string, athleteID int) (domain.ProgressRecord, bool) {
	return s.progress.GetProgress(userID, athleteID)
}

// ProgressList returns all progress records for the user.
func (s *QuizService) ProgressList(userID string) []domain.ProgressRecord {
	return s.progress.ListProgress(userID)
}

// HydrateProgress pulls remote records into the local store, typically once
// per connection. Failures are soft; local state stays usable.
func (s *QuizService) HydrateProgress(ctx context.Context, userID string) error {
	return s.progress.Hydrate(ctx, userID)
}

func sessionKey(userID string, athleteID int) string {
	return domain.SyncKey(userID, athleteID)
}
