package app

import (
	"sync"

	"readquest-service/internal/domain"
)

type sessionState int

const (
	stateUnanswered sessionState = iota
	stateAnswered
	stateComplete
)

// QuizSession walks one user through one athlete's question sequence.
// It runs exactly one question at a time with single-answer-then-lock
// semantics. All operations are pure in-memory transitions; invalid
// transitions are rejected as no-ops rather than errors, since the caller
// is a constrained UI that may issue out-of-order actions.
type QuizSession struct {
	mu       sync.Mutex
	athlete  domain.Athlete
	index    int
	selected string
	state    sessionState
	score    int
}

func NewQuizSession(athlete domain.Athlete) *QuizSession {
	return &QuizSession{athlete: athlete}
}

// SelectOption records a tentative answer for the current question. The
// selection may be changed freely until submit; it is rejected once the
// question is answered, after the quiz completes, or when the option is not
// one of the question's choices. Returns whether the selection was accepted.
func (s *QuizSession) SelectOption(option string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateUnanswered {
		return false
	}
	q := s.athlete.Questions[s.index]
	for _, opt := range q.Options {
		if opt == option {
			s.selected = option
			return true
		}
	}
	return false
}

// SubmitAnswer locks in the current selection and scores it. Without a
// selection, or outside the Unanswered state, it is a no-op and the second
// return value is false.
func (s *QuizSession) SubmitAnswer() (domain.AnswerResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateUnanswered || s.selected == "" {
		return domain.AnswerResult{}, false
	}

	q := s.athlete.Questions[s.index]
	correct := s.selected == q.CorrectOption
	if correct {
		s.score++
	}
	s.state = stateAnswered

	return domain.AnswerResult{
		AthleteID:      s.athlete.ID,
		QuestionID:     q.ID,
		SelectedOption: s.selected,
		Correct:        correct,
		CorrectOption:  q.CorrectOption,
		Explanation:    q.Explanation,
		Score:          s.score,
	}, true
}

// Advance moves past an answered question. Before submit, or after
// completion, it is a no-op. When the last question has been answered it
// transitions to Complete and returns the final tally.
func (s *QuizSession) Advance() (*domain.QuizResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateAnswered {
		return nil, false
	}

	if s.index+1 < len(s.athlete.Questions) {
		s.index++
		s.selected = ""
		s.state = stateUnanswered
		return nil, true
	}

	s.state = stateComplete
	return &domain.QuizResult{
		AthleteID:      s.athlete.ID,
		Score:          s.score,
		TotalQuestions: len(s.athlete.Questions),
	}, true
}

// Complete reports whether the session has reached its terminal state.
func (s *QuizSession) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateComplete
}

// View snapshots the current question for the client. After completion it
// keeps reporting the last question in its answered state.
func (s *QuizSession) View() domain.QuestionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.athlete.Questions[s.index]
	options := make([]string, len(q.Options))
	copy(options, q.Options)

	return domain.QuestionView{
		AthleteID:      s.athlete.ID,
		Index:          s.index,
		TotalQuestions: len(s.athlete.Questions),
		Prompt:         q.Prompt,
		Options:        options,
		SelectedOption: s.selected,
		Answered:       s.state != stateUnanswered,
		Score:          s.score,
	}
}
