package analytics

import (
	"invictus/internal/domain"
	"math"
	"sort"
	"time"
)

// Bucket is one entry of a relative frequency distribution, in percent.
type Bucket struct {
	Label             string  `json:"label"`
	RelativeFrequency float64 `json:"relative_frequency"`
	PosStd            float64 `json:"pos_std"`
	NegStd            float64 `json:"neg_std"`
}

// WeekdayRelativeFrequency distributes the category's growth over weekdays
// in loc. All seven days are returned, Monday first.
func WeekdayRelativeFrequency(scores []domain.Score, category domain.Category, loc *time.Location) ([]Bucket, error) {
	samples, err := Series(scores, category)
	if err != nil {
		return nil, err
	}
	return RelativeFrequency(samples, WeekdayBucket(loc), weekdayLabels()), nil
}

// PeriodRelativeFrequency distributes the category's growth over time-of-day
// buckets of the given width. Only observed buckets are returned, in label order.
func PeriodRelativeFrequency(scores []domain.Score, category domain.Category, period time.Duration, loc *time.Location) ([]Bucket, error) {
	samples, err := Series(scores, category)
	if err != nil {
		return nil, err
	}
	return RelativeFrequency(samples, PeriodBucket(period, loc), nil), nil
}

// RelativeFrequency sums clipped growth per bucket and normalizes it by the
// total growth. Each bucket carries an envelope from the sample variance of
// its relative frequency and its occurrence frequency. When order is nil the
// observed labels are returned sorted; otherwise exactly order is returned,
// with unobserved labels zeroed.
func RelativeFrequency(samples []Sample, bucket Bucketer, order []string) []Bucket {
	var (
		sums   = map[string]float64{}
		counts = map[string]int{}
		total  float64
	)
	deltas := Deltas(values(samples))
	for i, s := range samples {
		label := bucket(s.At)
		counts[label]++
		if i == 0 {
			continue
		}
		sums[label] += deltas[i-1]
		total += deltas[i-1]
	}

	if order == nil {
		order = make([]string, 0, len(counts))
		for label := range counts {
			order = append(order, label)
		}
		sort.Strings(order)
	}

	out := make([]Bucket, 0, len(order))
	for _, label := range order {
		n, observed := counts[label]
		if !observed {
			out = append(out, Bucket{Label: label})
			continue
		}

		var rel float64
		if total > 0 {
			rel = sums[label] / total
		}
		f := float64(n) / float64(len(samples))

		variance, std := pairSpread(rel, f)
		out = append(out, Bucket{
			Label:             label,
			RelativeFrequency: percent(max(rel, 0)),
			PosStd:            percent(max(variance+(rel+std), 0)),
			NegStd:            percent(max(variance+(rel-std), 0)),
		})
	}
	return out
}

// pairSpread is the sample variance and standard deviation of {a, b}.
func pairSpread(a, b float64) (float64, float64) {
	d := a - b
	return d * d / 2, math.Abs(d) / math.Sqrt2
}

func percent(v float64) float64 {
	return round2(v * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
