package domain

import (
	"fmt"
	"time"
)

// Athlete is one entry in the read-only story catalog: a short biography
// plus the ordered quiz that goes with it. Records are supplied by the
// content source and never mutated at runtime.
type Athlete struct {
	ID         int        `json:"id"`
	Name       string     `json:"name"`
	Sport      string     `json:"sport"`
	ImageGlyph string     `json:"imageGlyph"`
	Story      string     `json:"story"`
	Questions  []Question `json:"questions"`
}

// Validate checks catalog invariants: at least two unique options per
// question and a correct option that is actually one of them.
func (a Athlete) Validate() error {
	if len(a.Questions) == 0 {
		return fmt.Errorf("athlete %d: %w: no questions", a.ID, ErrInvalidAthlete)
	}
	for _, q := range a.Questions {
		if len(q.Options) < 2 {
			return fmt.Errorf("athlete %d question %s: %w: fewer than two options", a.ID, q.ID, ErrInvalidAthlete)
		}
		seen := make(map[string]struct{}, len(q.Options))
		correctFound := false
		for _, opt := range q.Options {
			if _, dup := seen[opt]; dup {
				return fmt.Errorf("athlete %d question %s: %w: duplicate option %q", a.ID, q.ID, ErrInvalidAthlete, opt)
			}
			seen[opt] = struct{}{}
			if opt == q.CorrectOption {
				correctFound = true
			}
		}
		if !correctFound {
			return fmt.Errorf("athlete %d question %s: %w: correct option not among options", a.ID, q.ID, ErrInvalidAthlete)
		}
	}
	return nil
}

// AthleteSummary is the list view of the catalog without story or question payloads.
type AthleteSummary struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Sport         string `json:"sport"`
	ImageGlyph    string `json:"imageGlyph"`
	QuestionCount int    `json:"questionCount"`
}

// Summary projects the list view of an athlete.
func (a Athlete) Summary() AthleteSummary {
	return AthleteSummary{
		ID:            a.ID,
		Name:          a.Name,
		Sport:         a.Sport,
		ImageGlyph:    a.ImageGlyph,
		QuestionCount: len(a.Questions),
	}
}

// Question models an MCQ question. CorrectOption is always a member of Options.
type Question struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"correctOption"`
	Explanation   string   `json:"explanation"`
}

// QuestionView is what a quiz client is allowed to see about the current
// question: the prompt and options, but never the correct answer before submit.
type QuestionView struct {
	AthleteID      int      `json:"athleteId"`
	Index          int      `json:"index"`
	TotalQuestions int      `json:"totalQuestions"`
	Prompt         string   `json:"prompt"`
	Options        []string `json:"options"`
	SelectedOption string   `json:"selectedOption,omitempty"`
	Answered       bool     `json:"answered"`
	Score          int      `json:"score"`
}

// AnswerResult reveals the outcome of a submitted answer for one question.
type AnswerResult struct {
	AthleteID      int    `json:"athleteId"`
	QuestionID     string `json:"questionId"`
	SelectedOption string `json:"selectedOption"`
	Correct        bool   `json:"correct"`
	CorrectOption  string `json:"correctOption"`
	Explanation    string `json:"explanation"`
	Score          int    `json:"score"`
}

// QuizResult is the terminal tally emitted when a session runs out of questions.
type QuizResult struct {
	AthleteID      int  `json:"athleteId"`
	Score          int  `json:"score"`
	TotalQuestions int  `json:"totalQuestions"`
	Perfect        bool `json:"perfect"`
}

// ProgressRecord is the durable per-user, per-athlete progress state.
// Exactly one record exists per (UserID, AthleteID) pair; the story-read
// flag and the quiz-completion flag are independent signals.
type ProgressRecord struct {
	UserID                  string    `json:"userId"`
	AthleteID               int       `json:"athleteId"`
	AthleteName             string    `json:"athleteName"`
	StoryRead               bool      `json:"storyRead"`
	QuizCompleted           bool      `json:"quizCompleted"`
	QuizScore               int       `json:"quizScore"`
	TotalQuestions          int       `json:"totalQuestions"`
	CompletionDate          time.Time `json:"completionDate"`
	TimeSpentReadingSeconds int       `json:"timeSpentReadingSeconds,omitempty"`
}

// Perfect reports whether the quiz was completed at or above the given score
// threshold (fraction of total questions, 1.0 meaning every answer correct).
// It is a derived view, never stored.
func (r ProgressRecord) Perfect(threshold float64) bool {
	if !r.QuizCompleted || r.TotalQuestions == 0 {
		return false
	}
	if threshold <= 0 || threshold > 1 {
		threshold = 1
	}
	return float64(r.QuizScore) >= threshold*float64(r.TotalQuestions)
}

// PendingSyncEntry is a queued remote write: the latest local snapshot of a
// progress record whose remote upsert has not yet been confirmed. At most one
// entry exists per (UserID, AthleteID); a newer snapshot replaces an older one.
type PendingSyncEntry struct {
	ID        string         `json:"id"`
	Record    ProgressRecord `json:"record"`
	CreatedAt time.Time      `json:"createdAt"`
}

// SyncKey is the dedupe key for a pending entry.
func (e PendingSyncEntry) SyncKey() string {
	return SyncKey(e.Record.UserID, e.Record.AthleteID)
}

// SyncKey builds the canonical (user, athlete) queue key.
func SyncKey(userID string, athleteID int) string {
	return fmt.Sprintf("%s:%d", userID, athleteID)
}

// SyncStatus is the best-effort notification emitted after a remote write
// attempt: either the record became durable or it was queued for retry.
type SyncStatus struct {
	UserID    string `json:"userId"`
	AthleteID int    `json:"athleteId"`
	Synced    bool   `json:"synced"`
	Message   string `json:"message,omitempty"`
}
