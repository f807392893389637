// Package forecast produces short-horizon score predictions for a player and
// caches them per player until they go stale.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"invictus/internal/analytics"
	"invictus/internal/codec"
	"invictus/internal/config"
	"invictus/internal/domain"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Forecaster predicts horizon future values of an evenly bucketed series.
type Forecaster interface {
	Forecast(ctx context.Context, history []float64, horizon int) ([]float64, error)
}

type Store interface {
	ListScores(ctx context.Context, playerID int64, from, to *time.Time) ([]domain.Score, error)
	GetScorePrediction(ctx context.Context, playerID int64) (*domain.ScorePrediction, error)
	SaveScorePrediction(ctx context.Context, sp *domain.ScorePrediction) error
}

type Point struct {
	At    time.Time `json:"at"`
	Value float64   `json:"value"`
}

type Result struct {
	Available   bool      `json:"available"`
	Samples     []Point   `json:"samples"`
	Predictions []Point   `json:"predictions"`
	GeneratedAt time.Time `json:"generated_at,omitzero"`
	Cached      bool      `json:"cached"`
}

// cachedPrediction is the stored shape of a prediction.
type cachedPrediction struct {
	Dates       []string  `cbor:"dates"`
	Predictions []float64 `cbor:"predictions"`
}

type Service struct {
	store      Store
	forecaster Forecaster
	logger     zerolog.Logger

	window    time.Duration
	period    time.Duration
	horizon   int
	staleness time.Duration
	now       func() time.Time
}

func NewService(cfg *config.Config, store Store, forecaster Forecaster, logger zerolog.Logger) *Service {
	return &Service{
		store:      store,
		forecaster: forecaster,
		logger:     logger,
		window:     cfg.ForecastWindow,
		period:     cfg.ForecastPeriod,
		horizon:    cfg.ForecastHorizon,
		staleness:  cfg.ForecastStaleness,
		now:        time.Now,
	}
}

// Predict resamples the player's recent total score and returns it with a
// forecast. A cached forecast younger than the staleness threshold is
// returned unchanged. No recent history yields an unavailable result.
func (s *Service) Predict(ctx context.Context, player *domain.Player) (*Result, error) {
	now := s.now().UTC()
	from := now.Add(-s.window)

	scores, err := s.store.ListScores(ctx, player.ID, &from, nil)
	if err != nil {
		return nil, err
	}
	series, err := analytics.Series(scores, domain.CategoryTotal)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return &Result{Available: false, Samples: []Point{}, Predictions: []Point{}}, nil
	}

	result := &Result{Available: true, Samples: Resample(series, s.period)}

	cached, err := s.store.GetScorePrediction(ctx, player.ID)
	switch {
	case err == nil && now.Sub(cached.GeneratedAt) <= s.staleness:
		points, err := decodePrediction(cached.Prediction)
		if err != nil {
			return nil, err
		}
		result.Predictions = points
		result.GeneratedAt = cached.GeneratedAt
		result.Cached = true
		return result, nil
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	points, err := s.predict(ctx, result.Samples, now)
	if err != nil {
		return nil, err
	}

	blob, err := encodePrediction(points)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveScorePrediction(ctx, &domain.ScorePrediction{
		PlayerID:    player.ID,
		GeneratedAt: now,
		Prediction:  blob,
	}); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("player_id", player.PlayerID).Int("samples", len(result.Samples)).Msg("forecast generated")

	result.Predictions = points
	result.GeneratedAt = now
	return result, nil
}

func (s *Service) predict(ctx context.Context, samples []Point, now time.Time) ([]Point, error) {
	history := make([]float64, len(samples))
	for i, p := range samples {
		history[i] = p.Value
	}

	values, err := s.forecaster.Forecast(ctx, history, s.horizon)
	if err != nil {
		return nil, fmt.Errorf("failed to forecast: %w", err)
	}
	if len(values) != s.horizon {
		return nil, fmt.Errorf("forecaster returned %d values, want %d", len(values), s.horizon)
	}

	points := make([]Point, s.horizon)
	for i := range points {
		points[i] = Point{At: now.Add(time.Duration(i) * s.period), Value: values[i]}
	}
	return points, nil
}

var unixEpoch = time.Unix(0, 0).UTC()

// Resample averages samples into period-wide buckets, keyed by the nearest
// period boundary counted from the Unix epoch, in time order. Empty buckets
// are not filled.
func Resample(samples []analytics.Sample, period time.Duration) []Point {
	type acc struct {
		sum float64
		n   int
	}
	buckets := map[time.Time]*acc{}
	for _, s := range samples {
		key := unixEpoch.Add(s.At.Sub(unixEpoch).Round(period))
		a, ok := buckets[key]
		if !ok {
			a = &acc{}
			buckets[key] = a
		}
		a.sum += s.Value
		a.n++
	}

	points := make([]Point, 0, len(buckets))
	for at, a := range buckets {
		points = append(points, Point{At: at, Value: a.sum / float64(a.n)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].At.Before(points[j].At) })
	return points
}

func encodePrediction(points []Point) ([]byte, error) {
	cp := cachedPrediction{
		Dates:       make([]string, len(points)),
		Predictions: make([]float64, len(points)),
	}
	for i, p := range points {
		cp.Dates[i] = p.At.UTC().Format(time.RFC3339)
		cp.Predictions[i] = p.Value
	}
	return codec.Encode(cp)
}

func decodePrediction(blob []byte) ([]Point, error) {
	var cp cachedPrediction
	if err := codec.DecodeInto(blob, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode cached prediction: %w", err)
	}
	if len(cp.Dates) != len(cp.Predictions) {
		return nil, fmt.Errorf("cached prediction has %d dates and %d values", len(cp.Dates), len(cp.Predictions))
	}

	points := make([]Point, len(cp.Dates))
	for i, raw := range cp.Dates {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse cached prediction date %q: %w", raw, err)
		}
		points[i] = Point{At: at, Value: cp.Predictions[i]}
	}
	return points, nil
}
