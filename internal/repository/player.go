package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"invictus/internal/domain"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type PlayerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPlayerRepository(sqlDB *sql.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		db:     sqlDB,
		logger: logger,
	}
}

const playerColumns = `id, player_id, server_id, name, status, rank, planets, alliance_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*domain.Player, error) {
	var (
		p          domain.Player
		rank       sql.NullInt64
		allianceID sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.PlayerID, &p.ServerID, &p.Name, &p.Status, &rank, &p.Planets, &allianceID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if rank.Valid {
		p.Rank = &rank.Int64
	}
	if allianceID.Valid {
		p.AllianceID = &allianceID.Int64
	}
	return &p, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return err
}

// UpsertPlayer creates the player on first sighting and otherwise overwrites
// name, status, rank and planets. p.ID is filled in.
func (r *PlayerRepository) UpsertPlayer(ctx context.Context, p *domain.Player) error {
	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO players (player_id, server_id, name, status, rank, planets, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (player_id, server_id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			rank = excluded.rank,
			planets = excluded.planets,
			updated_at = excluded.updated_at
		RETURNING id
	`, p.PlayerID, p.ServerID, p.Name, p.Status, p.Rank, p.Planets, now, now)

	if err := row.Scan(&p.ID); err != nil {
		r.logger.Error().Err(err).Int64("player_id", p.PlayerID).Msg("failed to upsert player")
		return fmt.Errorf("failed to upsert player %d: %w", p.PlayerID, err)
	}
	p.UpdatedAt = now
	return nil
}

func (r *PlayerRepository) GetPlayer(ctx context.Context, id int64) (*domain.Player, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id = ?`, id)
	p, err := scanPlayer(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("player row %d", id))
	}
	return p, nil
}

func (r *PlayerRepository) GetPlayerByExternalID(ctx context.Context, serverID string, playerID int64) (*domain.Player, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE server_id = ? AND player_id = ?`, serverID, playerID)
	p, err := scanPlayer(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("player %d", playerID))
	}
	return p, nil
}

type PlayerFilter struct {
	ServerID     string
	Status       *string
	NameContains string
	Names        []string
	RankGTE      *int64
	RankLTE      *int64
	Limit        int
}

func (r *PlayerRepository) ListPlayers(ctx context.Context, f PlayerFilter) ([]domain.Player, error) {
	var (
		where []string
		args  []any
	)
	if f.ServerID != "" {
		where = append(where, "server_id = ?")
		args = append(args, f.ServerID)
	}
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *f.Status)
	}
	if f.NameContains != "" {
		where = append(where, "name LIKE ?")
		args = append(args, "%"+f.NameContains+"%")
	}
	if len(f.Names) > 0 {
		where = append(where, "name IN ("+placeholders(len(f.Names))+")")
		for _, n := range f.Names {
			args = append(args, n)
		}
	}
	if f.RankGTE != nil {
		where = append(where, "rank >= ?")
		args = append(args, *f.RankGTE)
	}
	if f.RankLTE != nil {
		where = append(where, "rank <= ?")
		args = append(args, *f.RankLTE)
	}

	query := `SELECT ` + playerColumns + ` FROM players`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	return r.queryPlayers(ctx, query, args...)
}

// ListPlayersForDeletionProbe returns every player of the server not already deleted.
func (r *PlayerRepository) ListPlayersForDeletionProbe(ctx context.Context, serverID string) ([]domain.Player, error) {
	return r.queryPlayers(ctx,
		`SELECT `+playerColumns+` FROM players WHERE server_id = ? AND status != ? ORDER BY id`,
		serverID, domain.StatusDeleted)
}

func (r *PlayerRepository) queryPlayers(ctx context.Context, query string, args ...any) ([]domain.Player, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query players: %w", err)
	}
	defer rows.Close()

	players := []domain.Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, *p)
	}
	return players, rows.Err()
}

func (r *PlayerRepository) SetPlayerStatus(ctx context.Context, id int64, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE players SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set status of player row %d: %w", id, err)
	}
	return nil
}

// SetPlayerAlliance links the player to an alliance row, or clears the link when allianceID is nil.
func (r *PlayerRepository) SetPlayerAlliance(ctx context.Context, id int64, allianceID *int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE players SET alliance_id = ?, updated_at = ? WHERE id = ?`,
		allianceID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set alliance of player row %d: %w", id, err)
	}
	return nil
}

// FindPlayerIDsByNames maps each known name to its player row id. Unknown names are absent.
func (r *PlayerRepository) FindPlayerIDsByNames(ctx context.Context, serverID string, names []string) (map[string]int64, error) {
	found := make(map[string]int64, len(names))
	if len(names) == 0 {
		return found, nil
	}

	players, err := r.ListPlayers(ctx, PlayerFilter{ServerID: serverID, Names: names})
	if err != nil {
		return nil, err
	}
	for _, p := range players {
		if _, dup := found[p.Name]; !dup {
			found[p.Name] = p.ID
		}
	}
	return found, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
