package forecast

import (
	"context"
	"errors"
)

// Holt is double exponential smoothing: a level and a linear trend, each
// updated with its own smoothing factor.
type Holt struct {
	Alpha float64
	Beta  float64
}

func DefaultHolt() Holt {
	return Holt{Alpha: 0.5, Beta: 0.3}
}

func (h Holt) Forecast(ctx context.Context, history []float64, horizon int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, errors.New("empty history")
	}
	if horizon <= 0 {
		return []float64{}, nil
	}

	level, trend := history[0], 0.0
	if len(history) > 1 {
		trend = history[1] - history[0]
	}
	for _, y := range history[1:] {
		prev := level
		level = h.Alpha*y + (1-h.Alpha)*(level+trend)
		trend = h.Beta*(level-prev) + (1-h.Beta)*trend
	}

	out := make([]float64, horizon)
	for i := range out {
		out[i] = level + float64(i+1)*trend
	}
	return out, nil
}
