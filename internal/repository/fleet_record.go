package repository

import (
	"context"
	"database/sql"
	"fmt"
	"invictus/internal/domain"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type FleetRecordRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewFleetRecordRepository(sqlDB *sql.DB, logger zerolog.Logger) *FleetRecordRepository {
	return &FleetRecordRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *FleetRecordRepository) CreateFleetRecord(ctx context.Context, fr *domain.FleetRecord) error {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate fleet record id: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO fleet_records (id, player_id, fleet, recorded_by, coords, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, fr.PlayerID, fr.Fleet, fr.RecordedBy, fr.Coords, now)
	if err != nil {
		r.logger.Error().Err(err).Int64("player", fr.PlayerID).Msg("failed to create fleet record")
		return fmt.Errorf("failed to create fleet record: %w", err)
	}

	fr.ID = id
	fr.CreatedAt = now
	return nil
}

func (r *FleetRecordRepository) ListFleetRecordsForPlayer(ctx context.Context, playerID int64) ([]domain.FleetRecord, error) {
	return r.queryRecords(ctx, `
		SELECT id, player_id, fleet, recorded_by, coords, created_at
		FROM fleet_records WHERE player_id = ? ORDER BY created_at
	`, playerID)
}

func (r *FleetRecordRepository) ListFleetRecords(ctx context.Context) ([]domain.FleetRecord, error) {
	return r.queryRecords(ctx, `
		SELECT id, player_id, fleet, recorded_by, coords, created_at
		FROM fleet_records ORDER BY created_at
	`)
}

func (r *FleetRecordRepository) queryRecords(ctx context.Context, query string, args ...any) ([]domain.FleetRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fleet records: %w", err)
	}
	defer rows.Close()

	records := []domain.FleetRecord{}
	for rows.Next() {
		var fr domain.FleetRecord
		if err := rows.Scan(&fr.ID, &fr.PlayerID, &fr.Fleet, &fr.RecordedBy, &fr.Coords, &fr.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fleet record: %w", err)
		}
		records = append(records, fr)
	}
	return records, rows.Err()
}
