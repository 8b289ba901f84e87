package app_test

import (
	"testing"

	"readquest-service/internal/app"
	"readquest-service/internal/domain"
)

func TestSelectThenSubmitScoresCorrectAnswer(t *testing.T) {
	session := app.NewQuizSession(threeQuestionAthlete())

	if ok := session.SelectOption("Quarterback"); !ok {
		t.Fatalf("expected selection accepted")
	}
	result, submitted := session.SubmitAnswer()
	if !submitted {
		t.Fatalf("expected submission accepted")
	}
	if !result.Correct || result.Score != 1 {
		t.Fatalf("expected correct answer with score 1, got %+v", result)
	}
	if result.Explanation == "" || result.CorrectOption != "Quarterback" {
		t.Fatalf("expected explanation and correct option revealed, got %+v", result)
	}
}

func TestSubmitWithoutSelectionIsNoOp(t *testing.T) {
	session := app.NewQuizSession(threeQuestionAthlete())

	if _, submitted := session.SubmitAnswer(); submitted {
		t.Fatalf("expected submit without selection to be rejected")
	}
	view := session.View()
	if view.Index != 0 || view.Answered || view.Score != 0 {
		t.Fatalf("expected state unchanged, got %+v", view)
	}
}

func TestAdvanceBeforeSubmitIsNoOp(t *testing.T) {
	session := app.NewQuizSession(threeQuestionAthlete())
	session.SelectOption("Quarterback")

	if result, moved := session.Advance(); moved || result != nil {
		t.Fatalf("expected advance before submit to be a no-op")
	}
	if view := session.View(); view.Index != 0 {
		t.Fatalf("expected currentIndex unchanged, got %d", view.Index)
	}
}

func TestSelectionLockedAfterSubmit(t *testing.T) {
	session := app.NewQuizSession(threeQuestionAthlete())
	session.SelectOption("Goalkeeper")
	if _, submitted := session.SubmitAnswer(); !submitted {
		t.Fatalf("expected submit")
	}

	if ok := session.SelectOption("Quarterback"); ok {
		t.Fatalf("expected options locked after submit")
	}
	if view := session.View(); view.SelectedOption != "Goalkeeper" {
		t.Fatalf("expected original selection kept, got %q", view.SelectedOption)
	}
}

func TestSelectionChangeableBeforeSubmit(t *testing.T) {
	session := app.NewQuizSession(threeQuestionAthlete())
	session.SelectOption("Goalkeeper")
	session.SelectOption("Quarterback")

	result, _ := session.SubmitAnswer()
	if !result.Correct {
		t.Fatalf("expected latest selection to be scored, got %+v", result)
	}
}

func TestUnknownOptionRejected(t *testing.T) {
	session := app.NewQuizSession(threeQuestionAthlete())
	if ok := session.SelectOption("Astronaut"); ok {
		t.Fatalf("expected unknown option rejected")
	}
}

func TestPerfectRunYieldsFullScore(t *testing.T) {
	session := app.NewQuizSession(threeQuestionAthlete())
	answers := []string{"Quarterback", "Super Bowl", "Gives money to schools"}

	var final *domain.QuizResult
	for i, answer := range answers {
		if ok := session.SelectOption(answer); !ok {
			t.Fatalf("question %d: selection rejected", i)
		}
		if _, submitted := session.SubmitAnswer(); !submitted {
			t.Fatalf("question %d: submit rejected", i)
		}
		result, moved := session.Advance()
		if !moved {
			t.Fatalf("question %d: advance rejected", i)
		}
		final = result
	}

	if final == nil {
		t.Fatalf("expected terminal result after last question")
	}
	if final.Score != 3 || final.TotalQuestions != 3 {
		t.Fatalf("expected 3/3, got %d/%d", final.Score, final.TotalQuestions)
	}
	if !session.Complete() {
		t.Fatalf("expected session complete")
	}
}

func TestScoreCountsOnlyCorrectSubmissions(t *testing.T) {
	session := app.NewQuizSession(threeQuestionAthlete())

	// Wrong, right, wrong.
	answers := []string{"Goalkeeper", "Super Bowl", "Paints murals"}
	var final *domain.QuizResult
	for _, answer := range answers {
		session.SelectOption(answer)
		session.SubmitAnswer()
		final, _ = session.Advance()
	}

	if final == nil || final.Score != 1 {
		t.Fatalf("expected final score 1, got %+v", final)
	}
}

func TestCompleteSessionRejectsFurtherMutation(t *testing.T) {
	session := app.NewQuizSession(threeQuestionAthlete())
	for _, answer := range []string{"Quarterback", "Super Bowl", "Gives money to schools"} {
		session.SelectOption(answer)
		session.SubmitAnswer()
		session.Advance()
	}

	if ok := session.SelectOption("Quarterback"); ok {
		t.Fatalf("expected select rejected after completion")
	}
	if _, submitted := session.SubmitAnswer(); submitted {
		t.Fatalf("expected submit rejected after completion")
	}
	if result, moved := session.Advance(); moved || result != nil {
		t.Fatalf("expected advance rejected after completion")
	}
}

func threeQuestionAthlete() domain.Athlete {
	return domain.Athlete{
		ID:         1,
		Name:       "Patrick Mahomes",
		Sport:      "Football",
		ImageGlyph: "🏈",
		Story:      "Patrick throws the ball in amazing ways.",
		Questions: []domain.Question{
			{
				ID:            "q1",
				Prompt:        "What position does Patrick play?",
				Options:       []string{"Quarterback", "Goalkeeper", "Pitcher"},
				CorrectOption: "Quarterback",
				Explanation:   "Patrick is a quarterback.",
			},
			{
				ID:            "q2",
				Prompt:        "Which big game has Patrick won?",
				Options:       []string{"Super Bowl", "World Series", "Stanley Cup"},
				CorrectOption: "Super Bowl",
				Explanation:   "The Super Bowl is football's championship game.",
			},
			{
				ID:            "q3",
				Prompt:        "How does Patrick help his community?",
				Options:       []string{"Gives money to schools", "Coaches a chess club", "Paints murals"},
				CorrectOption: "Gives money to schools",
				Explanation:   "His foundation donates to schools.",
			},
		},
	}
}
