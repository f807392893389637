package repository

import (
	"context"
	"database/sql"
	"fmt"
	"invictus/internal/domain"

	"github.com/rs/zerolog"
)

type PredictionRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPredictionRepository(sqlDB *sql.DB, logger zerolog.Logger) *PredictionRepository {
	return &PredictionRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *PredictionRepository) GetScorePrediction(ctx context.Context, playerID int64) (*domain.ScorePrediction, error) {
	var sp domain.ScorePrediction
	err := r.db.QueryRowContext(ctx,
		`SELECT player_id, generated_at, prediction FROM score_predictions WHERE player_id = ?`, playerID,
	).Scan(&sp.PlayerID, &sp.GeneratedAt, &sp.Prediction)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("prediction for player row %d", playerID))
	}
	return &sp, nil
}

// SaveScorePrediction replaces the player's cached prediction.
func (r *PredictionRepository) SaveScorePrediction(ctx context.Context, sp *domain.ScorePrediction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO score_predictions (player_id, generated_at, prediction)
		VALUES (?, ?, ?)
		ON CONFLICT (player_id) DO UPDATE SET
			generated_at = excluded.generated_at,
			prediction = excluded.prediction
	`, sp.PlayerID, sp.GeneratedAt.UTC(), sp.Prediction)
	if err != nil {
		return fmt.Errorf("failed to save prediction for player row %d: %w", sp.PlayerID, err)
	}
	return nil
}
