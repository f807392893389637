package repository

import (
	"context"
	"errors"
	"invictus/internal/codec"
	"invictus/internal/database"
	"invictus/internal/domain"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db, zerolog.Nop())
}

func mustPlayer(t *testing.T, s *Store, playerID int64, name string) *domain.Player {
	t.Helper()
	p := &domain.Player{PlayerID: playerID, ServerID: "144", Name: name}
	if err := s.UpsertPlayer(context.Background(), p); err != nil {
		t.Fatalf("upsert player: %v", err)
	}
	return p
}

func scoreAt(playerID, ts int64) *domain.Score {
	s := &domain.Score{PlayerID: playerID, Timestamp: ts, Datetime: time.Unix(ts, 0).UTC()}
	for _, c := range domain.Categories {
		s.SetBlob(c, codec.MustEncode(map[string]any{"score": float64(ts), "rank": int64(1)}))
	}
	return s
}

func TestUpsertPlayerOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := mustPlayer(t, s, 100, "alpha")
	rank := int64(7)
	again := &domain.Player{PlayerID: 100, ServerID: "144", Name: "alpha2", Status: "v", Rank: &rank}
	if err := s.UpsertPlayer(ctx, again); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if again.ID != p.ID {
		t.Fatalf("row id changed: %d != %d", again.ID, p.ID)
	}

	got, err := s.GetPlayer(ctx, p.ID)
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if got.Name != "alpha2" || got.Status != "v" || got.Rank == nil || *got.Rank != 7 {
		t.Fatalf("unexpected player %+v", got)
	}
}

func TestGetPlayerNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetPlayerByExternalID(context.Background(), "144", 999)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateScoreIfAbsentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := mustPlayer(t, s, 1, "alpha")

	created, err := s.CreateScoreIfAbsent(ctx, scoreAt(p.ID, 1000))
	if err != nil || !created {
		t.Fatalf("first insert: created=%v err=%v", created, err)
	}
	created, err = s.CreateScoreIfAbsent(ctx, scoreAt(p.ID, 1000))
	if err != nil || created {
		t.Fatalf("duplicate insert: created=%v err=%v", created, err)
	}
	if _, err := s.CreateScoreIfAbsent(ctx, scoreAt(p.ID, 2000)); err != nil {
		t.Fatalf("distinct insert: %v", err)
	}

	n, err := s.CountScores(ctx, p.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}

	from := time.Unix(1500, 0)
	scores, err := s.ListScores(ctx, p.ID, &from, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(scores) != 1 || scores[0].Timestamp != 2000 {
		t.Fatalf("unexpected window %+v", scores)
	}
}

func TestDeletionProbeExcludesDeleted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := mustPlayer(t, s, 1, "alpha")
	b := mustPlayer(t, s, 2, "beta")

	if err := s.SetPlayerStatus(ctx, b.ID, domain.StatusDeleted); err != nil {
		t.Fatalf("set status: %v", err)
	}

	probe, err := s.ListPlayersForDeletionProbe(ctx, "144")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []int64
	for _, p := range probe {
		ids = append(ids, p.ID)
	}
	if diff := cmp.Diff([]int64{a.ID}, ids); diff != "" {
		t.Fatalf("probe set mismatch (-want +got):\n%s", diff)
	}
}

func TestRefreshAllianceReplacesMembers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := mustPlayer(t, s, 1, "alpha")
	mustPlayer(t, s, 2, "beta")
	c := mustPlayer(t, s, 3, "gamma")

	ally := &domain.Alliance{AllyID: 500, Name: "Invictus", Tag: "INV", FounderID: &a.ID}
	if err := s.UpsertAlliance(ctx, ally); err != nil {
		t.Fatalf("upsert alliance: %v", err)
	}

	if _, err := s.RefreshAlliance(ctx, ally.ID, "144", []int64{1, 2}, nil, nil); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	linked, err := s.RefreshAlliance(ctx, ally.ID, "144", []int64{3, 42}, codec.MustEncode([]any{"1:2:3"}), nil)
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if linked != 1 {
		t.Fatalf("expected 1 linked member, got %d", linked)
	}

	members, err := s.ListAllianceMembers(ctx, ally.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 || members[0].ID != c.ID {
		t.Fatalf("members not replaced: %+v", members)
	}

	got, err := s.GetAllianceByAllyID(ctx, 500)
	if err != nil {
		t.Fatalf("get alliance: %v", err)
	}
	if got.FounderID == nil || *got.FounderID != a.ID {
		t.Fatalf("founder not stored: %+v", got.FounderID)
	}
	if got.ApplicationOpen != nil {
		t.Fatalf("expected null application flag, got %v", *got.ApplicationOpen)
	}
	coords, err := codec.Decode(got.PlanetsDistributionCoords)
	if err != nil {
		t.Fatalf("decode coords: %v", err)
	}
	if diff := cmp.Diff([]any{"1:2:3"}, coords); diff != "" {
		t.Fatalf("coords mismatch (-want +got):\n%s", diff)
	}

	founded, err := s.ListAlliancesFoundedBy(ctx, a.ID)
	if err != nil || len(founded) != 1 {
		t.Fatalf("founded: %v %+v", err, founded)
	}
}

func TestCombatReportCreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := mustPlayer(t, s, 1, "alpha")
	b := mustPlayer(t, s, 2, "beta")

	cr := &domain.CombatReport{
		Title:       "alpha vs beta",
		URL:         "https://board.example/t/1",
		Winner:      domain.WinnerAttackers,
		Attackers:   codec.MustEncode(map[string]any{"alpha": map[string]any{"ships": map[string]any{"Cruiser": int64(3)}}}),
		Defenders:   codec.MustEncode(map[string]any{}),
		AttackerIDs: []int64{a.ID},
		DefenderIDs: []int64{b.ID},
	}
	created, err := s.CreateCombatReportIfAbsent(ctx, cr)
	if err != nil || !created {
		t.Fatalf("create: created=%v err=%v", created, err)
	}
	dup := *cr
	created, err = s.CreateCombatReportIfAbsent(ctx, &dup)
	if err != nil || created {
		t.Fatalf("duplicate: created=%v err=%v", created, err)
	}

	forB, err := s.ListCombatReportsForPlayer(ctx, b.ID)
	if err != nil {
		t.Fatalf("list for player: %v", err)
	}
	if len(forB) != 1 {
		t.Fatalf("expected 1 report, got %d", len(forB))
	}
	if diff := cmp.Diff([]int64{a.ID}, forB[0].AttackerIDs); diff != "" {
		t.Fatalf("attackers mismatch (-want +got):\n%s", diff)
	}

	other := mustPlayer(t, s, 3, "gamma")
	none, err := s.ListCombatReportsForPlayer(ctx, other.ID)
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty list, got %v %+v", err, none)
	}
}

func TestScorePredictionUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := mustPlayer(t, s, 1, "alpha")

	if _, err := s.GetScorePrediction(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	first := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := s.SaveScorePrediction(ctx, &domain.ScorePrediction{PlayerID: p.ID, GeneratedAt: first, Prediction: []byte{1}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	second := first.Add(24 * time.Hour)
	if err := s.SaveScorePrediction(ctx, &domain.ScorePrediction{PlayerID: p.ID, GeneratedAt: second, Prediction: []byte{2}}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := s.GetScorePrediction(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.GeneratedAt.Equal(second) || !cmp.Equal([]byte{2}, got.Prediction) {
		t.Fatalf("unexpected prediction %+v", got)
	}
}

func TestFleetRecords(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := mustPlayer(t, s, 1, "alpha")

	fr := &domain.FleetRecord{PlayerID: p.ID, Fleet: codec.MustEncode(map[string]any{"Cruiser": int64(10)}), RecordedBy: "scout"}
	if err := s.CreateFleetRecord(ctx, fr); err != nil {
		t.Fatalf("create: %v", err)
	}
	if fr.ID == "" {
		t.Fatal("expected generated id")
	}

	records, err := s.ListFleetRecordsForPlayer(ctx, p.ID)
	if err != nil || len(records) != 1 || records[0].ID != fr.ID {
		t.Fatalf("unexpected records %v %+v", err, records)
	}
}
