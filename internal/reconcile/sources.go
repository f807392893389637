package reconcile

import (
	"context"
	"invictus/internal/domain"
	"invictus/internal/repository"
)

// UniverseSource is the upstream game data API. Clean absences are reported
// as domain.ErrNotFound; anything else is treated as transient.
type UniverseSource interface {
	ServerID() string
	Roster(ctx context.Context) ([]domain.RosterEntry, error)
	RankingTable(ctx context.Context, category domain.Category) ([]domain.RankingRow, error)
	PlayerDetail(ctx context.Context, name string) (*domain.PlayerDetail, error)
	Alliances(ctx context.Context) ([]domain.AllianceListing, error)
	AllianceMembers(ctx context.Context, tag string) ([]int64, error)
	AlliancePlanetDistribution(ctx context.Context, tag string) (*domain.PlanetDistribution, error)
}

type CombatReportSource interface {
	CombatReports(ctx context.Context) ([]domain.ClassifiedReport, error)
}

// Store is the subset of the entity store a pass writes through.
type Store interface {
	UpsertPlayer(ctx context.Context, p *domain.Player) error
	GetPlayerByExternalID(ctx context.Context, serverID string, playerID int64) (*domain.Player, error)
	ListPlayersForDeletionProbe(ctx context.Context, serverID string) ([]domain.Player, error)
	SetPlayerStatus(ctx context.Context, id int64, status string) error
	SetPlayerAlliance(ctx context.Context, id int64, allianceID *int64) error
	FindPlayerIDsByNames(ctx context.Context, serverID string, names []string) (map[string]int64, error)

	CreateScoreIfAbsent(ctx context.Context, s *domain.Score) (bool, error)

	UpsertAlliance(ctx context.Context, a *domain.Alliance) error
	ListAlliances(ctx context.Context, nameContains string) ([]domain.Alliance, error)
	RefreshAlliance(ctx context.Context, id int64, serverID string, memberIDs []int64, coords, byGalaxy []byte) (int, error)

	CreateCombatReportIfAbsent(ctx context.Context, cr *domain.CombatReport) (bool, error)
}

var _ Store = (*repository.Store)(nil)
