package analytics

import (
	"errors"
	"invictus/internal/codec"
	"invictus/internal/domain"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var saoPaulo = mustLocation("America/Sao_Paulo")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

type point struct {
	at    time.Time
	total float64
}

func history(points ...point) []domain.Score {
	scores := make([]domain.Score, 0, len(points))
	for i, p := range points {
		s := domain.Score{ID: int64(i + 1), Timestamp: p.at.Unix(), Datetime: p.at}
		for _, c := range domain.Categories {
			entry := domain.ScoreEntry{Score: p.total, Rank: 1}
			if c == domain.CategoryMilitary {
				ships := int64(p.total / 10)
				entry.Ships = &ships
			}
			s.SetBlob(c, codec.MustEncode(entry))
		}
		scores = append(scores, s)
	}
	return scores
}

func at(local string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", local, saoPaulo)
	if err != nil {
		panic(err)
	}
	return t
}

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestDeltas(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"empty", nil, []float64{}},
		{"single", []float64{10}, []float64{}},
		{"negative clipped", []float64{500, 450, 700}, []float64{0, 250}},
		{"flat", []float64{3, 3, 3}, []float64{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Deltas(tt.in)); diff != "" {
				t.Errorf("Deltas() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWeekdayRelativeFrequency(t *testing.T) {
	// 2024-05-07 is a Tuesday, 2024-05-13 a Monday.
	scores := history(
		point{at("2024-05-07 09:00"), 500},
		point{at("2024-05-07 15:00"), 450},
		point{at("2024-05-13 12:00"), 700},
	)

	got, err := WeekdayRelativeFrequency(scores, domain.CategoryTotal, saoPaulo)
	if err != nil {
		t.Fatalf("WeekdayRelativeFrequency() error = %v", err)
	}

	want := []Bucket{
		{Label: "Monday", RelativeFrequency: 100, PosStd: 169.36, NegStd: 75.08},
		{Label: "Tuesday", RelativeFrequency: 0, PosStd: 69.36, NegStd: 0},
		{Label: "Wednesday"},
		{Label: "Thursday"},
		{Label: "Friday"},
		{Label: "Saturday"},
		{Label: "Sunday"},
	}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("WeekdayRelativeFrequency() mismatch (-want +got):\n%s", diff)
	}
}

func TestWeekdayBucketsUseReferenceZone(t *testing.T) {
	// 01:00 UTC on a Tuesday is still Monday in Sao Paulo.
	utc := time.Date(2024, 5, 14, 1, 0, 0, 0, time.UTC)
	if got := WeekdayBucket(saoPaulo)(utc); got != "Monday" {
		t.Errorf("WeekdayBucket() = %s, want Monday", got)
	}
}

func TestRelativeFrequencyZeroGrowth(t *testing.T) {
	scores := history(
		point{at("2024-05-07 09:00"), 100},
		point{at("2024-05-08 09:00"), 100},
	)

	got, err := WeekdayRelativeFrequency(scores, domain.CategoryTotal, saoPaulo)
	if err != nil {
		t.Fatalf("WeekdayRelativeFrequency() error = %v", err)
	}
	if len(got) != 7 {
		t.Fatalf("got %d buckets, want 7", len(got))
	}
	for _, b := range got {
		if b.RelativeFrequency != 0 {
			t.Errorf("%s relative frequency = %v, want 0", b.Label, b.RelativeFrequency)
		}
		if b.NegStd < 0 || b.PosStd < 0 {
			t.Errorf("%s envelope below zero: %+v", b.Label, b)
		}
	}
}

func TestPeriodRelativeFrequency(t *testing.T) {
	scores := history(
		point{at("2024-05-07 10:10"), 0},
		point{at("2024-05-07 10:50"), 300},
		point{at("2024-05-08 10:05"), 400},
		point{at("2024-05-08 11:20"), 400},
	)

	got, err := PeriodRelativeFrequency(scores, domain.CategoryTotal, time.Hour, saoPaulo)
	if err != nil {
		t.Fatalf("PeriodRelativeFrequency() error = %v", err)
	}

	want := []Bucket{
		{Label: "10:00", RelativeFrequency: 25, PosStd: 45.8, NegStd: 10.45},
		{Label: "11:00", RelativeFrequency: 75, PosStd: 95.8, NegStd: 60.45},
	}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("PeriodRelativeFrequency() mismatch (-want +got):\n%s", diff)
	}
}

func TestPeriodBucketHalfHour(t *testing.T) {
	b := PeriodBucket(30*time.Minute, saoPaulo)
	tests := map[string]string{
		"2024-05-07 10:14": "10:00",
		"2024-05-07 10:16": "10:30",
		"2024-05-07 23:50": "00:00",
	}
	for in, want := range tests {
		if got := b(at(in)); got != want {
			t.Errorf("PeriodBucket(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestParsePeriod(t *testing.T) {
	if p, err := ParsePeriod("30m"); err != nil || p != 30*time.Minute {
		t.Errorf("ParsePeriod(30m) = %v, %v", p, err)
	}
	for _, bad := range []string{"7m", "nope", "0s", "25h"} {
		if _, err := ParsePeriod(bad); err == nil {
			t.Errorf("ParsePeriod(%q) accepted", bad)
		}
	}
}

func TestDecodeErrorsPropagate(t *testing.T) {
	scores := history(point{at("2024-05-07 09:00"), 1}, point{at("2024-05-07 10:00"), 2})
	scores[1].Total = []byte("garbage")

	_, err := WeekdayRelativeFrequency(scores, domain.CategoryTotal, saoPaulo)
	var decodeErr *codec.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("error = %v, want *codec.DecodeError", err)
	}

	if _, err := ScoreDiffs(scores); !errors.As(err, &decodeErr) {
		t.Fatalf("ScoreDiffs() error = %v, want *codec.DecodeError", err)
	}
}

func TestScoreDiffs(t *testing.T) {
	scores := history(
		point{at("2024-05-07 09:00"), 500},
		point{at("2024-05-07 11:00"), 450},
		point{at("2024-05-07 13:00"), 700},
	)

	got, err := ScoreDiffs(scores)
	if err != nil {
		t.Fatalf("ScoreDiffs() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].Total != 0 || got[0].Ships != 0 {
		t.Errorf("first row not clipped: %+v", got[0])
	}
	if got[1].Total != 250 || got[1].Honor != 250 || got[1].Ships != 25 {
		t.Errorf("second row = %+v", got[1])
	}
	if !got[1].Datetime.Equal(scores[2].Datetime) {
		t.Errorf("datetime = %v", got[1].Datetime)
	}
}

func TestMeanActivity(t *testing.T) {
	scores := history(
		point{at("2024-05-07 09:00"), 0},
		point{at("2024-05-07 10:00"), 100},
		point{at("2024-05-07 11:00"), 400},
		point{at("2024-05-08 10:00"), 300},
	)

	weekday, err := WeekdayMeanActivity(scores, saoPaulo)
	if err != nil {
		t.Fatalf("WeekdayMeanActivity() error = %v", err)
	}
	want := []MeanActivity{
		{Label: "Tuesday", Mean: 200},
		{Label: "Wednesday", Mean: 0},
	}
	if diff := cmp.Diff(want, weekday); diff != "" {
		t.Errorf("WeekdayMeanActivity() mismatch (-want +got):\n%s", diff)
	}

	hourly, err := PeriodMeanActivity(scores, time.Hour, saoPaulo)
	if err != nil {
		t.Fatalf("PeriodMeanActivity() error = %v", err)
	}
	wantHourly := []MeanActivity{
		{Label: "10:00", Mean: 50},
		{Label: "11:00", Mean: 300},
	}
	if diff := cmp.Diff(wantHourly, hourly); diff != "" {
		t.Errorf("PeriodMeanActivity() mismatch (-want +got):\n%s", diff)
	}
}
