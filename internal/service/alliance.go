package service

import (
	"context"
	"fmt"
	"invictus/internal/codec"
	"invictus/internal/config"
	"invictus/internal/constants"
	"invictus/internal/domain"
	"invictus/internal/repository"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type AllianceService struct {
	store    *repository.Store
	serverID string
	loc      *time.Location
	logger   zerolog.Logger
}

func NewAllianceService(store *repository.Store, cfg *config.Config, logger zerolog.Logger) *AllianceService {
	return &AllianceService{store: store, serverID: cfg.ServerID, loc: cfg.Location(), logger: logger}
}

type AllianceView struct {
	AllyID                      int64            `json:"ally_id"`
	Name                        string           `json:"name"`
	Tag                         string           `json:"tag"`
	FounderID                   *int64           `json:"founder_id"`
	FoundDate                   *time.Time       `json:"found_date"`
	Logo                        string           `json:"logo"`
	Homepage                    string           `json:"homepage"`
	ApplicationOpen             *bool            `json:"application_open"`
	MemberIDs                   []int64          `json:"member_ids,omitempty"`
	PlanetsDistributionCoords   []Coordinate     `json:"planets_distribution_coords,omitempty"`
	PlanetsDistributionByGalaxy map[string]int64 `json:"planets_distribution_by_galaxy,omitempty"`
}

type Coordinate struct {
	Galaxy   string `json:"galaxy"`
	System   string `json:"system"`
	Position string `json:"position"`
}

func (s *AllianceService) ListAlliances(ctx context.Context, nameContains string) ([]AllianceView, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	alliances, err := s.store.ListAlliances(ctx, nameContains)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list alliances")
		return nil, err
	}
	return s.summaries(ctx, alliances)
}

// AlliancesFounded lists the alliances whose founder is the given player.
func (s *AllianceService) AlliancesFounded(ctx context.Context, playerID int64) ([]AllianceView, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	player, err := s.store.GetPlayerByExternalID(ctx, s.serverID, playerID)
	if err != nil {
		return nil, err
	}
	alliances, err := s.store.ListAlliancesFoundedBy(ctx, player.ID)
	if err != nil {
		return nil, err
	}
	return s.summaries(ctx, alliances)
}

func (s *AllianceService) summaries(ctx context.Context, alliances []domain.Alliance) ([]AllianceView, error) {
	views := make([]AllianceView, 0, len(alliances))
	for i := range alliances {
		v, err := s.summary(ctx, &alliances[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

func (s *AllianceService) summary(ctx context.Context, a *domain.Alliance) (*AllianceView, error) {
	v := &AllianceView{
		AllyID:          a.AllyID,
		Name:            a.Name,
		Tag:             a.Tag,
		Logo:            a.Logo,
		Homepage:        a.Homepage,
		ApplicationOpen: a.ApplicationOpen,
	}
	if a.FoundDate != nil {
		local := a.FoundDate.In(s.loc)
		v.FoundDate = &local
	}
	if a.FounderID != nil {
		founder, err := s.store.GetPlayer(ctx, *a.FounderID)
		if err != nil {
			return nil, err
		}
		v.FounderID = &founder.PlayerID
	}
	return v, nil
}

// GetAlliance returns the alliance with its members and planet distribution.
func (s *AllianceService) GetAlliance(ctx context.Context, allyID int64) (*AllianceView, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	a, err := s.store.GetAllianceByAllyID(ctx, allyID)
	if err != nil {
		return nil, err
	}
	v, err := s.summary(ctx, a)
	if err != nil {
		return nil, err
	}

	members, err := s.store.ListAllianceMembers(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	v.MemberIDs = make([]int64, 0, len(members))
	for _, m := range members {
		v.MemberIDs = append(v.MemberIDs, m.PlayerID)
	}

	if len(a.PlanetsDistributionCoords) > 0 {
		var coords []string
		if err := codec.DecodeInto(a.PlanetsDistributionCoords, &coords); err != nil {
			return nil, fmt.Errorf("failed to decode coords of alliance %d: %w", allyID, err)
		}
		v.PlanetsDistributionCoords = splitCoords(coords)
	}
	if len(a.PlanetsDistributionGalaxy) > 0 {
		if err := codec.DecodeInto(a.PlanetsDistributionGalaxy, &v.PlanetsDistributionByGalaxy); err != nil {
			return nil, fmt.Errorf("failed to decode galaxy distribution of alliance %d: %w", allyID, err)
		}
	}
	return v, nil
}

func splitCoords(coords []string) []Coordinate {
	out := make([]Coordinate, 0, len(coords))
	for _, c := range coords {
		parts := strings.SplitN(c, ":", 3)
		if len(parts) != 3 {
			continue
		}
		out = append(out, Coordinate{Galaxy: parts[0], System: parts[1], Position: parts[2]})
	}
	return out
}
