package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"readquest-service/internal/domain"
)

// ProgressStore implements app.ProgressAPI against a Postgres table with a
// unique (user_id, athlete_id) key. Create uses an upsert so replayed
// at-least-once deliveries from the sync coordinator stay idempotent.
type ProgressStore struct {
	pool *pgxpool.Pool
}

func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

func (s *ProgressStore) Create(ctx context.Context, record domain.ProgressRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO progress (user_id, athlete_id, athlete_name, story_read, quiz_completed,
		                      quiz_score, total_questions, completion_date, time_spent_reading)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (user_id, athlete_id) DO UPDATE SET
			athlete_name=EXCLUDED.athlete_name,
			story_read=EXCLUDED.story_read,
			quiz_completed=EXCLUDED.quiz_completed,
			quiz_score=EXCLUDED.quiz_score,
			total_questions=EXCLUDED.total_questions,
			completion_date=EXCLUDED.completion_date,
			time_spent_reading=EXCLUDED.time_spent_reading`,
		record.UserID, record.AthleteID, record.AthleteName, record.StoryRead, record.QuizCompleted,
		record.QuizScore, record.TotalQuestions, record.CompletionDate, record.TimeSpentReadingSeconds)
	if err != nil {
		return fmt.Errorf("create progress: %w", err)
	}
	return nil
}

func (s *ProgressStore) List(ctx context.Context, userID string) ([]domain.ProgressRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, athlete_id, athlete_name, story_read, quiz_completed,
		       quiz_score, total_questions, completion_date, time_spent_reading
		FROM progress WHERE user_id=$1 ORDER BY athlete_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	var out []domain.ProgressRecord
	for rows.Next() {
		var rec domain.ProgressRecord
		if err := rows.Scan(&rec.UserID, &rec.AthleteID, &rec.AthleteName, &rec.StoryRead, &rec.QuizCompleted,
			&rec.QuizScore, &rec.TotalQuestions, &rec.CompletionDate, &rec.TimeSpentReadingSeconds); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *ProgressStore) Update(ctx context.Context, record domain.ProgressRecord) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE progress SET
			athlete_name=$3,
			story_read=$4,
			quiz_completed=$5,
			quiz_score=$6,
			total_questions=$7,
			completion_date=$8,
			time_spent_reading=$9
		WHERE user_id=$1 AND athlete_id=$2`,
		record.UserID, record.AthleteID, record.AthleteName, record.StoryRead, record.QuizCompleted,
		record.QuizScore, record.TotalQuestions, record.CompletionDate, record.TimeSpentReadingSeconds)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProgressNotFound
	}
	return nil
}
