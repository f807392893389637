package repository

import (
	"context"
	"database/sql"
	"fmt"
	"invictus/internal/domain"
	"time"

	"github.com/rs/zerolog"
)

type ScoreRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewScoreRepository(sqlDB *sql.DB, logger zerolog.Logger) *ScoreRepository {
	return &ScoreRepository{
		db:     sqlDB,
		logger: logger,
	}
}

const scoreColumns = `id, player_id, timestamp, datetime, total, economy, research, military, military_built, military_destroyed, military_lost, honor`

// CreateScoreIfAbsent inserts s unless a row already exists for the same
// player and timestamp. Existing rows are never touched.
func (r *ScoreRepository) CreateScoreIfAbsent(ctx context.Context, s *domain.Score) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO scores (player_id, timestamp, datetime, total, economy, research, military, military_built, military_destroyed, military_lost, honor)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (player_id, timestamp) DO NOTHING
	`, s.PlayerID, s.Timestamp, s.Datetime.UTC(),
		s.Total, s.Economy, s.Research, s.Military, s.MilitaryBuilt, s.MilitaryDestroyed, s.MilitaryLost, s.Honor)
	if err != nil {
		return false, fmt.Errorf("failed to insert score for player row %d: %w", s.PlayerID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	if n == 0 {
		r.logger.Debug().Int64("player", s.PlayerID).Int64("timestamp", s.Timestamp).Msg("score already recorded")
		return false, nil
	}

	if id, err := res.LastInsertId(); err == nil {
		s.ID = id
	}
	return true, nil
}

// ListScores returns the player's history in capture order, optionally bounded by datetime.
func (r *ScoreRepository) ListScores(ctx context.Context, playerID int64, from, to *time.Time) ([]domain.Score, error) {
	query := `SELECT ` + scoreColumns + ` FROM scores WHERE player_id = ?`
	args := []any{playerID}
	if from != nil {
		query += " AND timestamp >= ?"
		args = append(args, from.Unix())
	}
	if to != nil {
		query += " AND timestamp <= ?"
		args = append(args, to.Unix())
	}
	query += " ORDER BY timestamp"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	scores := []domain.Score{}
	for rows.Next() {
		var s domain.Score
		if err := rows.Scan(&s.ID, &s.PlayerID, &s.Timestamp, &s.Datetime,
			&s.Total, &s.Economy, &s.Research, &s.Military,
			&s.MilitaryBuilt, &s.MilitaryDestroyed, &s.MilitaryLost, &s.Honor); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

func (r *ScoreRepository) CountScores(ctx context.Context, playerID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scores WHERE player_id = ?`, playerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count scores: %w", err)
	}
	return n, nil
}
