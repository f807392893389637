package repository

import (
	"context"
	"database/sql"
	"fmt"
	"invictus/internal/constants"
	"invictus/internal/domain"
	"time"

	"github.com/rs/zerolog"
)

type AllianceRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewAllianceRepository(sqlDB *sql.DB, logger zerolog.Logger) *AllianceRepository {
	return &AllianceRepository{
		db:     sqlDB,
		logger: logger,
	}
}

const allianceColumns = `id, ally_id, name, tag, founder_id, found_date, logo, homepage, application_open,
	planets_distribution_coords, planets_distribution_by_galaxy, created_at, updated_at`

func scanAlliance(row rowScanner) (*domain.Alliance, error) {
	var (
		a         domain.Alliance
		founderID sql.NullInt64
		foundDate sql.NullTime
		open      sql.NullBool
	)
	err := row.Scan(&a.ID, &a.AllyID, &a.Name, &a.Tag, &founderID, &foundDate, &a.Logo, &a.Homepage, &open,
		&a.PlanetsDistributionCoords, &a.PlanetsDistributionGalaxy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if founderID.Valid {
		a.FounderID = &founderID.Int64
	}
	if foundDate.Valid {
		a.FoundDate = &foundDate.Time
	}
	if open.Valid {
		a.ApplicationOpen = &open.Bool
	}
	return &a, nil
}

// UpsertAlliance creates or overwrites the alliance keyed by ally_id. The
// distribution blobs are left alone; RefreshAlliance owns them.
func (r *AllianceRepository) UpsertAlliance(ctx context.Context, a *domain.Alliance) error {
	now := time.Now().UTC()
	var foundDate any
	if a.FoundDate != nil {
		foundDate = a.FoundDate.UTC()
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO alliances (ally_id, name, tag, founder_id, found_date, logo, homepage, application_open, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ally_id) DO UPDATE SET
			name = excluded.name,
			tag = excluded.tag,
			founder_id = excluded.founder_id,
			found_date = excluded.found_date,
			logo = excluded.logo,
			homepage = excluded.homepage,
			application_open = excluded.application_open,
			updated_at = excluded.updated_at
		RETURNING id
	`, a.AllyID, a.Name, a.Tag, a.FounderID, foundDate, a.Logo, a.Homepage, a.ApplicationOpen, now, now)

	if err := row.Scan(&a.ID); err != nil {
		r.logger.Error().Err(err).Int64("ally_id", a.AllyID).Msg("failed to upsert alliance")
		return fmt.Errorf("failed to upsert alliance %d: %w", a.AllyID, err)
	}
	a.UpdatedAt = now
	return nil
}

func (r *AllianceRepository) GetAllianceByAllyID(ctx context.Context, allyID int64) (*domain.Alliance, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+allianceColumns+` FROM alliances WHERE ally_id = ?`, allyID)
	a, err := scanAlliance(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("alliance %d", allyID))
	}
	return a, nil
}

func (r *AllianceRepository) GetAlliance(ctx context.Context, id int64) (*domain.Alliance, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+allianceColumns+` FROM alliances WHERE id = ?`, id)
	a, err := scanAlliance(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("alliance row %d", id))
	}
	return a, nil
}

func (r *AllianceRepository) ListAlliances(ctx context.Context, nameContains string) ([]domain.Alliance, error) {
	query := `SELECT ` + allianceColumns + ` FROM alliances`
	var args []any
	if nameContains != "" {
		query += ` WHERE name LIKE ?`
		args = append(args, "%"+nameContains+"%")
	}
	query += ` ORDER BY id`
	return r.queryAlliances(ctx, query, args...)
}

func (r *AllianceRepository) ListAlliancesFoundedBy(ctx context.Context, playerID int64) ([]domain.Alliance, error) {
	return r.queryAlliances(ctx, `SELECT `+allianceColumns+` FROM alliances WHERE founder_id = ? ORDER BY id`, playerID)
}

func (r *AllianceRepository) queryAlliances(ctx context.Context, query string, args ...any) ([]domain.Alliance, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alliances: %w", err)
	}
	defer rows.Close()

	alliances := []domain.Alliance{}
	for rows.Next() {
		a, err := scanAlliance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alliance: %w", err)
		}
		alliances = append(alliances, *a)
	}
	return alliances, rows.Err()
}

// RefreshAlliance replaces the member set with the players matching
// memberIDs (in-game ids; unknown ids are dropped) and overwrites both
// distribution blobs. It returns the number of members linked.
func (r *AllianceRepository) RefreshAlliance(ctx context.Context, id int64, serverID string, memberIDs []int64, coords, byGalaxy []byte) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM alliance_members WHERE alliance_id = ?`, id); err != nil {
		return 0, fmt.Errorf("failed to clear members of alliance row %d: %w", id, err)
	}

	linked := 0
	for i := 0; i < len(memberIDs); i += constants.DBBatchSize {
		end := min(i+constants.DBBatchSize, len(memberIDs))
		batch := memberIDs[i:end]

		args := []any{id, serverID}
		for _, m := range batch {
			args = append(args, m)
		}
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO alliance_members (alliance_id, player_id)
			SELECT ?, id FROM players WHERE server_id = ? AND player_id IN (`+placeholders(len(batch))+`)
		`, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to link members of alliance row %d: %w", id, err)
		}
		n, _ := res.RowsAffected()
		linked += int(n)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE alliances
		SET planets_distribution_coords = ?, planets_distribution_by_galaxy = ?, updated_at = ?
		WHERE id = ?
	`, coords, byGalaxy, time.Now().UTC(), id); err != nil {
		return 0, fmt.Errorf("failed to update distribution of alliance row %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit alliance refresh: %w", err)
	}
	return linked, nil
}

func (r *AllianceRepository) ListAllianceMembers(ctx context.Context, id int64) ([]domain.Player, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.player_id, p.server_id, p.name, p.status, p.rank, p.planets, p.alliance_id, p.created_at, p.updated_at
		FROM players p
		JOIN alliance_members m ON m.player_id = p.id
		WHERE m.alliance_id = ?
		ORDER BY p.id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query alliance members: %w", err)
	}
	defer rows.Close()

	members := []domain.Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, *p)
	}
	return members, rows.Err()
}
