// Package analytics derives activity and fleet distributions from stored
// score history and combat data.
package analytics

import (
	"fmt"
	"invictus/internal/codec"
	"invictus/internal/domain"
	"time"
)

// Sample is one decoded point of a score series.
type Sample struct {
	At    time.Time
	Value float64
}

// Deltas returns the consecutive differences of values with negatives
// clipped to zero. The result has one element less than values; element i
// belongs to values[i+1].
func Deltas(values []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = max(values[i]-values[i-1], 0)
	}
	return out
}

func values(samples []Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Value
	}
	return out
}

// Series decodes one category of every score into a time-ordered sample list.
func Series(scores []domain.Score, category domain.Category) ([]Sample, error) {
	samples := make([]Sample, 0, len(scores))
	for _, s := range scores {
		entry, err := decodeEntry(&s, category)
		if err != nil {
			return nil, err
		}
		samples = append(samples, Sample{At: s.Datetime, Value: entry.Score})
	}
	return samples, nil
}

func decodeEntry(s *domain.Score, category domain.Category) (*domain.ScoreEntry, error) {
	var entry domain.ScoreEntry
	if err := codec.DecodeInto(s.Blob(category), &entry); err != nil {
		return nil, fmt.Errorf("failed to decode %s of score %d: %w", category, s.ID, err)
	}
	return &entry, nil
}

// ScoreDiff is the clipped growth of every category between two consecutive snapshots.
type ScoreDiff struct {
	Datetime          time.Time `json:"datetime"`
	Total             float64   `json:"total"`
	Economy           float64   `json:"economy"`
	Research          float64   `json:"research"`
	Military          float64   `json:"military"`
	Ships             float64   `json:"ships"`
	MilitaryBuilt     float64   `json:"military_built"`
	MilitaryDestroyed float64   `json:"military_destroyed"`
	MilitaryLost      float64   `json:"military_lost"`
	Honor             float64   `json:"honor"`
}

// ScoreDiffs returns one row per snapshot after the first.
func ScoreDiffs(scores []domain.Score) ([]ScoreDiff, error) {
	type row struct {
		values map[domain.Category]float64
		ships  float64
	}

	rows := make([]row, 0, len(scores))
	for i := range scores {
		r := row{values: make(map[domain.Category]float64, len(domain.Categories))}
		for _, c := range domain.Categories {
			entry, err := decodeEntry(&scores[i], c)
			if err != nil {
				return nil, err
			}
			r.values[c] = entry.Score
			if c == domain.CategoryMilitary && entry.Ships != nil {
				r.ships = float64(*entry.Ships)
			}
		}
		rows = append(rows, r)
	}

	diffs := []ScoreDiff{}
	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		d := func(c domain.Category) float64 { return max(cur.values[c]-prev.values[c], 0) }
		diffs = append(diffs, ScoreDiff{
			Datetime:          scores[i].Datetime,
			Total:             d(domain.CategoryTotal),
			Economy:           d(domain.CategoryEconomy),
			Research:          d(domain.CategoryResearch),
			Military:          d(domain.CategoryMilitary),
			Ships:             max(cur.ships-prev.ships, 0),
			MilitaryBuilt:     d(domain.CategoryMilitaryBuilt),
			MilitaryDestroyed: d(domain.CategoryMilitaryDestroyed),
			MilitaryLost:      d(domain.CategoryMilitaryLost),
			Honor:             d(domain.CategoryHonor),
		})
	}
	return diffs, nil
}
