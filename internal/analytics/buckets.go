package analytics

import (
	"fmt"
	"time"
)

// Weekdays in output order.
var Weekdays = []time.Weekday{
	time.Monday,
	time.Tuesday,
	time.Wednesday,
	time.Thursday,
	time.Friday,
	time.Saturday,
	time.Sunday,
}

// Bucketer assigns an instant to a labeled bucket.
type Bucketer func(t time.Time) string

func WeekdayBucket(loc *time.Location) Bucketer {
	return func(t time.Time) string {
		return t.In(loc).Weekday().String()
	}
}

// PeriodBucket rounds the local wall clock to the nearest multiple of period
// and labels it HH:MM.
func PeriodBucket(period time.Duration, loc *time.Location) Bucketer {
	return func(t time.Time) string {
		local := t.In(loc)
		wall := time.Date(local.Year(), local.Month(), local.Day(),
			local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), time.UTC)
		return wall.Round(period).Format("15:04")
	}
}

// ParsePeriod accepts a Go duration that divides a day evenly.
func ParsePeriod(raw string) (time.Duration, error) {
	period, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid period %q: %w", raw, err)
	}
	if period < time.Minute || (24*time.Hour)%period != 0 {
		return 0, fmt.Errorf("period %s must be at least a minute and divide a day", period)
	}
	return period, nil
}

func weekdayLabels() []string {
	labels := make([]string, len(Weekdays))
	for i, d := range Weekdays {
		labels[i] = d.String()
	}
	return labels
}
