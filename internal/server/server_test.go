package server

import (
	"bytes"
	"context"
	"encoding/json"
	"invictus/internal/analytics"
	"invictus/internal/codec"
	"invictus/internal/config"
	"invictus/internal/database"
	"invictus/internal/domain"
	"invictus/internal/forecast"
	"invictus/internal/metrics"
	"invictus/internal/repository"
	"invictus/internal/service"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

type testEnv struct {
	srv   *httptest.Server
	store *repository.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.Defaults()
	logger := zerolog.Nop()
	store := repository.NewStore(db, logger)
	forecastSvc := forecast.NewService(cfg, store, forecast.DefaultHolt(), logger)

	qs := NewQueryServer(
		service.NewPlayerService(store, forecastSvc, cfg, logger),
		service.NewAllianceService(store, cfg, logger),
		service.NewFleetService(store, cfg, logger),
		metrics.New(),
		logger,
	)
	mux := http.NewServeMux()
	qs.Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: store}
}

func (e *testEnv) seedPlayer(t *testing.T, playerID int64, name string) *domain.Player {
	t.Helper()
	p := &domain.Player{
		PlayerID: playerID,
		ServerID: "144",
		Name:     name,
		Planets:  codec.MustEncode([]any{map[string]any{"id": int64(1), "name": "Homeworld", "coords": "1:2:3"}}),
	}
	if err := e.store.UpsertPlayer(context.Background(), p); err != nil {
		t.Fatalf("upsert player: %v", err)
	}
	return p
}

func (e *testEnv) seedScores(t *testing.T, p *domain.Player, totals ...float64) {
	t.Helper()
	start := time.Now().UTC().Add(-time.Duration(len(totals)) * time.Hour).Truncate(time.Second)
	for i, total := range totals {
		at := start.Add(time.Duration(i) * time.Hour)
		s := &domain.Score{PlayerID: p.ID, Timestamp: at.Unix(), Datetime: at}
		for _, c := range domain.Categories {
			s.SetBlob(c, codec.MustEncode(map[string]any{"score": total, "rank": int64(1)}))
		}
		if _, err := e.store.CreateScoreIfAbsent(context.Background(), s); err != nil {
			t.Fatalf("create score: %v", err)
		}
	}
}

func (e *testEnv) get(t *testing.T, path string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body
}

func TestUnknownPlayerIsNotFound(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{
		"/api/players/999",
		"/api/players/999/scores",
		"/api/players/999/activity/weekday",
		"/api/players/999/forecast",
		"/api/players/999/fleet",
	} {
		code, body := env.get(t, path)
		if code != http.StatusNotFound {
			t.Fatalf("%s: status %d, want 404", path, code)
		}
		var resp errorResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			t.Fatalf("%s: decode body: %v", path, err)
		}
		if resp.Error != "player not found" {
			t.Fatalf("%s: error %q", path, resp.Error)
		}
	}
}

func TestGetPlayer(t *testing.T) {
	env := newTestEnv(t)
	env.seedPlayer(t, 100, "Alpha")

	code, body := env.get(t, "/api/players/100")
	if code != http.StatusOK {
		t.Fatalf("status %d: %s", code, body)
	}
	var got service.PlayerView
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "Alpha" || got.PlayerID != 100 {
		t.Fatalf("unexpected player %+v", got)
	}
	planets, ok := got.Planets.([]any)
	if !ok || len(planets) != 1 {
		t.Fatalf("planets = %#v", got.Planets)
	}
}

func TestBadInput(t *testing.T) {
	env := newTestEnv(t)
	env.seedPlayer(t, 100, "Alpha")

	for _, path := range []string{
		"/api/players/abc",
		"/api/players?rank_gte=x",
		"/api/players/100/scores?from=yesterday",
		"/api/players/100/activity/weekday?category=luck",
		"/api/players/100/activity/period?period=7m",
		"/api/players/100/activity/mean?bucket=minute",
	} {
		if code, body := env.get(t, path); code != http.StatusBadRequest {
			t.Fatalf("%s: status %d, want 400: %s", path, code, body)
		}
	}
}

func TestWeekdayActivityCoversWeek(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedPlayer(t, 100, "Alpha")
	env.seedScores(t, p, 100, 150, 175)

	code, body := env.get(t, "/api/players/100/activity/weekday")
	if code != http.StatusOK {
		t.Fatalf("status %d: %s", code, body)
	}
	var buckets []analytics.Bucket
	if err := json.Unmarshal(body, &buckets); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(buckets) != 7 || buckets[0].Label != "Monday" || buckets[6].Label != "Sunday" {
		t.Fatalf("unexpected buckets %+v", buckets)
	}
}

func TestCorruptScoreIsServerError(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedPlayer(t, 100, "Alpha")
	at := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	s := &domain.Score{PlayerID: p.ID, Timestamp: at.Unix(), Datetime: at}
	for _, c := range domain.Categories {
		s.SetBlob(c, []byte("not a snapshot"))
	}
	if _, err := env.store.CreateScoreIfAbsent(context.Background(), s); err != nil {
		t.Fatalf("create score: %v", err)
	}

	if code, body := env.get(t, "/api/players/100/scores"); code != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500: %s", code, body)
	}
}

func TestFleetRecordFeedsPlayerFleet(t *testing.T) {
	env := newTestEnv(t)
	env.seedPlayer(t, 100, "Alpha")

	post := func(payload string) int {
		resp, err := http.Post(env.srv.URL+"/api/fleet-records", "application/json", bytes.NewBufferString(payload))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := post(`{"player_id":100,"fleet":{"Warp Drive":1}}`); code != http.StatusBadRequest {
		t.Fatalf("unknown ship: status %d, want 400", code)
	}
	if code := post(`{"player_id":999,"fleet":{"Cruiser":1}}`); code != http.StatusNotFound {
		t.Fatalf("unknown player: status %d, want 404", code)
	}
	if code := post(`{"player_id":100,"fleet":{"Cruzador":3,"Light Fighter":1},"recorded_by":"scout"}`); code != http.StatusCreated {
		t.Fatalf("status %d, want 201", code)
	}

	code, body := env.get(t, "/api/players/100/fleet")
	if code != http.StatusOK {
		t.Fatalf("status %d: %s", code, body)
	}
	var freq []analytics.ShipFrequency
	if err := json.Unmarshal(body, &freq); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := map[string]float64{}
	for _, f := range freq {
		if f.Count > 0 {
			got[f.Ship] = f.Frequency
		}
	}
	want := map[string]float64{"Cruiser": 75, "Light Fighter": 25}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("fleet mismatch (-want +got):\n%s", diff)
	}
	if len(freq) != 17 {
		t.Fatalf("expected every canonical ship, got %d", len(freq))
	}
}

func TestUnknownAllianceIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	code, body := env.get(t, "/api/alliances/42")
	if code != http.StatusNotFound || !strings.Contains(string(body), "alliance not found") {
		t.Fatalf("status %d: %s", code, body)
	}
}

func TestListsAreEmptyArrays(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/players", "/api/alliances"} {
		code, body := env.get(t, path)
		if code != http.StatusOK {
			t.Fatalf("%s: status %d", path, code)
		}
		if strings.TrimSpace(string(body)) != "[]" {
			t.Fatalf("%s: body %s, want []", path, body)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	if code, _ := env.get(t, "/healthz"); code != http.StatusOK {
		t.Fatalf("healthz status %d", code)
	}
	env.get(t, "/api/players/1")

	code, body := env.get(t, "/metrics")
	if code != http.StatusOK {
		t.Fatalf("metrics status %d", code)
	}
	if !strings.Contains(string(body), `code="404"`) {
		t.Fatalf("metrics missing request counter:\n%s", body)
	}
}
