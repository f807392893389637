package repository

import (
	"context"
	"database/sql"
	"fmt"
	"invictus/internal/domain"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type CombatReportRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewCombatReportRepository(sqlDB *sql.DB, logger zerolog.Logger) *CombatReportRepository {
	return &CombatReportRepository{
		db:     sqlDB,
		logger: logger,
	}
}

const (
	sideAttacker = "attacker"
	sideDefender = "defender"
)

// CreateCombatReportIfAbsent stores the report and its resolved participants
// unless (title, url) is already known. It reports whether a row was created.
func (r *CombatReportRepository) CreateCombatReportIfAbsent(ctx context.Context, cr *domain.CombatReport) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var date any
	if cr.Date != nil {
		date = cr.Date.UTC()
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO combat_reports (title, url, date, winner, attackers, defenders, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (title, url) DO NOTHING
	`, cr.Title, cr.URL, date, cr.Winner, cr.Attackers, cr.Defenders, now)
	if err != nil {
		return false, fmt.Errorf("failed to insert combat report %q: %w", cr.Title, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to read combat report id: %w", err)
	}

	link := func(side string, ids []int64) error {
		for _, pid := range ids {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO combat_report_players (report_id, player_id, side) VALUES (?, ?, ?)`,
				id, pid, side); err != nil {
				return fmt.Errorf("failed to link %s %d: %w", side, pid, err)
			}
		}
		return nil
	}
	if err := link(sideAttacker, cr.AttackerIDs); err != nil {
		return false, err
	}
	if err := link(sideDefender, cr.DefenderIDs); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit combat report: %w", err)
	}
	cr.ID = id
	cr.CreatedAt = now
	return true, nil
}

// ListCombatReportsForPlayer returns every report naming the player on either side.
func (r *CombatReportRepository) ListCombatReportsForPlayer(ctx context.Context, playerID int64) ([]domain.CombatReport, error) {
	return r.queryReports(ctx, `
		SELECT id, title, url, date, winner, attackers, defenders, created_at
		FROM combat_reports
		WHERE id IN (SELECT report_id FROM combat_report_players WHERE player_id = ?)
		ORDER BY id
	`, playerID)
}

func (r *CombatReportRepository) ListCombatReports(ctx context.Context) ([]domain.CombatReport, error) {
	return r.queryReports(ctx, `
		SELECT id, title, url, date, winner, attackers, defenders, created_at
		FROM combat_reports
		ORDER BY id
	`)
}

func (r *CombatReportRepository) queryReports(ctx context.Context, query string, args ...any) ([]domain.CombatReport, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query combat reports: %w", err)
	}
	defer rows.Close()

	reports := []domain.CombatReport{}
	byID := map[int64]int{}
	for rows.Next() {
		var (
			cr   domain.CombatReport
			date sql.NullTime
		)
		if err := rows.Scan(&cr.ID, &cr.Title, &cr.URL, &date, &cr.Winner, &cr.Attackers, &cr.Defenders, &cr.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan combat report: %w", err)
		}
		if date.Valid {
			cr.Date = &date.Time
		}
		byID[cr.ID] = len(reports)
		reports = append(reports, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return reports, nil
	}

	if err := r.attachParticipants(ctx, reports, byID); err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *CombatReportRepository) attachParticipants(ctx context.Context, reports []domain.CombatReport, byID map[int64]int) error {
	ids := make([]any, 0, len(reports))
	for _, cr := range reports {
		ids = append(ids, cr.ID)
	}

	for i := 0; i < len(ids); i += 500 {
		batch := ids[i:min(i+500, len(ids))]
		rows, err := r.db.QueryContext(ctx, `
			SELECT report_id, player_id, side FROM combat_report_players
			WHERE report_id IN (`+placeholders(len(batch))+`)
			ORDER BY report_id, player_id
		`, batch...)
		if err != nil {
			return fmt.Errorf("failed to query combat report participants: %w", err)
		}

		for rows.Next() {
			var (
				reportID, playerID int64
				side               string
			)
			if err := rows.Scan(&reportID, &playerID, &side); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan participant: %w", err)
			}
			cr := &reports[byID[reportID]]
			switch strings.ToLower(side) {
			case sideAttacker:
				cr.AttackerIDs = append(cr.AttackerIDs, playerID)
			case sideDefender:
				cr.DefenderIDs = append(cr.DefenderIDs, playerID)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
