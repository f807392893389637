package service

import (
	"context"
	"fmt"
	"invictus/internal/analytics"
	"invictus/internal/codec"
	"invictus/internal/config"
	"invictus/internal/constants"
	"invictus/internal/domain"
	"invictus/internal/forecast"
	"invictus/internal/repository"
	"time"

	"github.com/rs/zerolog"
)

type PlayerService struct {
	store    *repository.Store
	forecast *forecast.Service
	serverID string
	loc      *time.Location
	logger   zerolog.Logger
}

func NewPlayerService(store *repository.Store, forecastSvc *forecast.Service, cfg *config.Config, logger zerolog.Logger) *PlayerService {
	return &PlayerService{
		store:    store,
		forecast: forecastSvc,
		serverID: cfg.ServerID,
		loc:      cfg.Location(),
		logger:   logger,
	}
}

type PlayerView struct {
	PlayerID   int64     `json:"player_id"`
	ServerID   string    `json:"server_id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Rank       *int64    `json:"rank"`
	AllianceID *int64    `json:"ally_id"`
	Planets    any       `json:"planets"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ScoreView struct {
	Timestamp         int64              `json:"timestamp"`
	Datetime          time.Time          `json:"datetime"`
	Total             *domain.ScoreEntry `json:"total"`
	Economy           *domain.ScoreEntry `json:"economy"`
	Research          *domain.ScoreEntry `json:"research"`
	Military          *domain.ScoreEntry `json:"military"`
	MilitaryBuilt     *domain.ScoreEntry `json:"military_built"`
	MilitaryDestroyed *domain.ScoreEntry `json:"military_destroyed"`
	MilitaryLost      *domain.ScoreEntry `json:"military_lost"`
	Honor             *domain.ScoreEntry `json:"honor"`
}

type PlayerQuery struct {
	Status       *string
	NameContains string
	Names        []string
	RankGTE      *int64
	RankLTE      *int64
}

// Resolve finds the player row for an in-game id.
func (s *PlayerService) Resolve(ctx context.Context, playerID int64) (*domain.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	player, err := s.store.GetPlayerByExternalID(ctx, s.serverID, playerID)
	if err != nil {
		s.logger.Debug().Err(err).Int64("player_id", playerID).Msg("player lookup failed")
		return nil, err
	}
	return player, nil
}

func (s *PlayerService) GetPlayer(ctx context.Context, playerID int64) (*PlayerView, error) {
	player, err := s.Resolve(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, player)
}

func (s *PlayerService) ListPlayers(ctx context.Context, q PlayerQuery) ([]PlayerView, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	players, err := s.store.ListPlayers(ctx, repository.PlayerFilter{
		ServerID:     s.serverID,
		Status:       q.Status,
		NameContains: q.NameContains,
		Names:        q.Names,
		RankGTE:      q.RankGTE,
		RankLTE:      q.RankLTE,
		Limit:        constants.PlayerListLimit,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list players")
		return nil, err
	}

	views := make([]PlayerView, 0, len(players))
	for i := range players {
		v, err := s.view(ctx, &players[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

func (s *PlayerService) view(ctx context.Context, p *domain.Player) (*PlayerView, error) {
	v := &PlayerView{
		PlayerID:  p.PlayerID,
		ServerID:  p.ServerID,
		Name:      p.Name,
		Status:    p.Status,
		Rank:      p.Rank,
		Planets:   []any{},
		UpdatedAt: p.UpdatedAt,
	}
	if len(p.Planets) > 0 {
		planets, err := codec.Decode(p.Planets)
		if err != nil {
			return nil, fmt.Errorf("failed to decode planets of player %d: %w", p.PlayerID, err)
		}
		if planets != nil {
			v.Planets = planets
		}
	}
	if p.AllianceID != nil {
		alliance, err := s.store.GetAlliance(ctx, *p.AllianceID)
		if err != nil {
			return nil, err
		}
		v.AllianceID = &alliance.AllyID
	}
	return v, nil
}

func (s *PlayerService) history(ctx context.Context, playerID int64, from, to *time.Time) ([]domain.Score, error) {
	player, err := s.Resolve(ctx, playerID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if from == nil {
		since := time.Now().AddDate(0, 0, -constants.ScoreHistoryDays)
		from = &since
	}
	return s.store.ListScores(ctx, player.ID, from, to)
}

func (s *PlayerService) Scores(ctx context.Context, playerID int64, from, to *time.Time) ([]ScoreView, error) {
	scores, err := s.history(ctx, playerID, from, to)
	if err != nil {
		return nil, err
	}

	views := make([]ScoreView, 0, len(scores))
	for _, sc := range scores {
		v := ScoreView{Timestamp: sc.Timestamp, Datetime: sc.Datetime}
		entries := map[domain.Category]**domain.ScoreEntry{
			domain.CategoryTotal:             &v.Total,
			domain.CategoryEconomy:           &v.Economy,
			domain.CategoryResearch:          &v.Research,
			domain.CategoryMilitary:          &v.Military,
			domain.CategoryMilitaryBuilt:     &v.MilitaryBuilt,
			domain.CategoryMilitaryDestroyed: &v.MilitaryDestroyed,
			domain.CategoryMilitaryLost:      &v.MilitaryLost,
			domain.CategoryHonor:             &v.Honor,
		}
		for c, dst := range entries {
			var entry domain.ScoreEntry
			if err := codec.DecodeInto(sc.Blob(c), &entry); err != nil {
				return nil, fmt.Errorf("failed to decode %s of score %d: %w", c, sc.ID, err)
			}
			*dst = &entry
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *PlayerService) ScoreDiff(ctx context.Context, playerID int64, from, to *time.Time) ([]analytics.ScoreDiff, error) {
	scores, err := s.history(ctx, playerID, from, to)
	if err != nil {
		return nil, err
	}
	return analytics.ScoreDiffs(scores)
}

func (s *PlayerService) WeekdayActivity(ctx context.Context, playerID int64, category domain.Category, from, to *time.Time) ([]analytics.Bucket, error) {
	scores, err := s.history(ctx, playerID, from, to)
	if err != nil {
		return nil, err
	}
	return analytics.WeekdayRelativeFrequency(scores, category, s.loc)
}

func (s *PlayerService) PeriodActivity(ctx context.Context, playerID int64, category domain.Category, period time.Duration, from, to *time.Time) ([]analytics.Bucket, error) {
	scores, err := s.history(ctx, playerID, from, to)
	if err != nil {
		return nil, err
	}
	return analytics.PeriodRelativeFrequency(scores, category, period, s.loc)
}

// MeanActivity averages growth per weekday, hour or half hour.
func (s *PlayerService) MeanActivity(ctx context.Context, playerID int64, bucket string, from, to *time.Time) ([]analytics.MeanActivity, error) {
	scores, err := s.history(ctx, playerID, from, to)
	if err != nil {
		return nil, err
	}

	switch bucket {
	case "weekday":
		return analytics.WeekdayMeanActivity(scores, s.loc)
	case "hour":
		return analytics.PeriodMeanActivity(scores, time.Hour, s.loc)
	case "halfhour":
		return analytics.PeriodMeanActivity(scores, 30*time.Minute, s.loc)
	}
	return nil, fmt.Errorf("%w: unknown bucket %q", ErrInvalidArgument, bucket)
}

func (s *PlayerService) Forecast(ctx context.Context, playerID int64) (*forecast.Result, error) {
	player, err := s.Resolve(ctx, playerID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, constants.ForecastTimeout)
	defer cancel()

	res, err := s.forecast.Predict(ctx, player)
	if err != nil {
		s.logger.Error().Err(err).Int64("player_id", playerID).Msg("failed to forecast")
		return nil, err
	}
	return res, nil
}
