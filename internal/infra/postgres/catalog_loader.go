package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"readquest-service/internal/domain"
)

// CatalogLoader loads athlete JSONB from Postgres.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) LoadAthlete(ctx context.Context, athleteID int) (domain.Athlete, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM athletes WHERE id=$1`, athleteID).Scan(&raw)
	if err != nil {
		return domain.Athlete{}, fmt.Errorf("load athlete: %w", domain.ErrAthleteNotFound)
	}
	var athlete domain.Athlete
	if err := json.Unmarshal(raw, &athlete); err != nil {
		return domain.Athlete{}, fmt.Errorf("unmarshal athlete: %w", err)
	}
	if err := athlete.Validate(); err != nil {
		return domain.Athlete{}, err
	}
	return athlete, nil
}

func (l *CatalogLoader) LoadAll(ctx context.Context) ([]domain.Athlete, error) {
	rows, err := l.pool.Query(ctx, `SELECT data FROM athletes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load athletes: %w", err)
	}
	defer rows.Close()

	var out []domain.Athlete
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan athlete: %w", err)
		}
		var athlete domain.Athlete
		if err := json.Unmarshal(raw, &athlete); err != nil {
			return nil, fmt.Errorf("unmarshal athlete: %w", err)
		}
		out = append(out, athlete)
	}
	return out, rows.Err()
}
