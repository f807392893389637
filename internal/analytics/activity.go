package analytics

import (
	"invictus/internal/domain"
	"sort"
	"time"
)

// MeanActivity is the average clipped growth observed in a bucket.
type MeanActivity struct {
	Label string  `json:"label"`
	Mean  float64 `json:"mean"`
}

// WeekdayMeanActivity averages total score growth per weekday. Weekdays
// without growth samples are omitted.
func WeekdayMeanActivity(scores []domain.Score, loc *time.Location) ([]MeanActivity, error) {
	samples, err := Series(scores, domain.CategoryTotal)
	if err != nil {
		return nil, err
	}
	return meanActivity(samples, WeekdayBucket(loc), weekdayLabels()), nil
}

// PeriodMeanActivity averages total score growth per time-of-day bucket.
func PeriodMeanActivity(scores []domain.Score, period time.Duration, loc *time.Location) ([]MeanActivity, error) {
	samples, err := Series(scores, domain.CategoryTotal)
	if err != nil {
		return nil, err
	}
	return meanActivity(samples, PeriodBucket(period, loc), nil), nil
}

func meanActivity(samples []Sample, bucket Bucketer, order []string) []MeanActivity {
	sums := map[string]float64{}
	counts := map[string]int{}
	for i, d := range Deltas(values(samples)) {
		label := bucket(samples[i+1].At)
		sums[label] += d
		counts[label]++
	}

	if order == nil {
		order = make([]string, 0, len(counts))
		for label := range counts {
			order = append(order, label)
		}
		sort.Strings(order)
	}

	out := []MeanActivity{}
	for _, label := range order {
		n := counts[label]
		if n == 0 {
			continue
		}
		out = append(out, MeanActivity{Label: label, Mean: round2(sums[label] / float64(n))})
	}
	return out
}
