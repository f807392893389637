package service

import (
	"context"
	"fmt"
	"invictus/internal/analytics"
	"invictus/internal/codec"
	"invictus/internal/config"
	"invictus/internal/constants"
	"invictus/internal/domain"
	"invictus/internal/repository"
	"invictus/internal/ships"
	"time"

	"github.com/rs/zerolog"
)

type FleetService struct {
	store    *repository.Store
	serverID string
	logger   zerolog.Logger
}

func NewFleetService(store *repository.Store, cfg *config.Config, logger zerolog.Logger) *FleetService {
	return &FleetService{store: store, serverID: cfg.ServerID, logger: logger}
}

type FleetRecordRequest struct {
	PlayerID   int64            `json:"player_id"`
	Fleet      map[string]int64 `json:"fleet"`
	RecordedBy string           `json:"recorded_by"`
	Coords     string           `json:"coords"`
}

type FleetRecordView struct {
	ID         string           `json:"id"`
	PlayerID   int64            `json:"player_id"`
	Fleet      map[string]int64 `json:"fleet"`
	RecordedBy string           `json:"recorded_by"`
	Coords     string           `json:"coords,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// PlayerFleet estimates the player's fleet from the reports they took part
// in and their manual fleet records.
func (s *FleetService) PlayerFleet(ctx context.Context, playerID int64) ([]analytics.ShipFrequency, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	player, err := s.store.GetPlayerByExternalID(ctx, s.serverID, playerID)
	if err != nil {
		return nil, err
	}

	reports, err := s.store.ListCombatReportsForPlayer(ctx, player.ID)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListFleetRecordsForPlayer(ctx, player.ID)
	if err != nil {
		return nil, err
	}

	freq, err := analytics.PlayerFleet(player.Name, reports, records)
	if err != nil {
		s.logger.Error().Err(err).Int64("player_id", playerID).Msg("failed to compute player fleet")
		return nil, err
	}
	return freq, nil
}

func (s *FleetService) UniverseFleet(ctx context.Context) ([]analytics.ShipFrequency, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	reports, err := s.store.ListCombatReports(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListFleetRecords(ctx)
	if err != nil {
		return nil, err
	}

	freq, err := analytics.UniverseFleet(reports, records)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to compute universe fleet")
		return nil, err
	}
	return freq, nil
}

// RecordFleet stores a manually observed fleet. Ship names must resolve in
// the canonical table and are stored under their canonical spelling.
func (s *FleetService) RecordFleet(ctx context.Context, req FleetRecordRequest) (*FleetRecordView, error) {
	if len(req.Fleet) == 0 {
		return nil, fmt.Errorf("%w: empty fleet", ErrInvalidArgument)
	}
	fleet := make(map[string]int64, len(req.Fleet))
	for name, n := range req.Fleet {
		if n < 0 {
			return nil, fmt.Errorf("%w: negative count for %q", ErrInvalidArgument, name)
		}
		id, ok := ships.Resolve(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown ship %q", ErrInvalidArgument, name)
		}
		canonical, _ := ships.Name(id)
		fleet[canonical] += n
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	player, err := s.store.GetPlayerByExternalID(ctx, s.serverID, req.PlayerID)
	if err != nil {
		return nil, err
	}

	blob, err := codec.Encode(fleet)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fleet: %w", err)
	}
	fr := &domain.FleetRecord{
		PlayerID:   player.ID,
		Fleet:      blob,
		RecordedBy: req.RecordedBy,
		Coords:     req.Coords,
	}
	if err := s.store.CreateFleetRecord(ctx, fr); err != nil {
		return nil, err
	}

	s.logger.Info().Str("id", fr.ID).Int64("player_id", req.PlayerID).Msg("fleet recorded")
	return &FleetRecordView{
		ID:         fr.ID,
		PlayerID:   req.PlayerID,
		Fleet:      fleet,
		RecordedBy: fr.RecordedBy,
		Coords:     fr.Coords,
		CreatedAt:  fr.CreatedAt,
	}, nil
}
