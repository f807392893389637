package metrics

import (
	"errors"
	"fmt"
	"invictus/internal/domain"
	"invictus/internal/reconcile"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObservePass(t *testing.T) {
	r := New()

	r.ObservePass(&reconcile.PassReport{
		StartedAt:      time.Unix(1700000000, 0),
		Duration:       3 * time.Second,
		PlayersUpdated: 5,
		ScoresCreated:  4,
		PlayersDeleted: 1,
	}, nil)
	r.ObservePass(&reconcile.PassReport{}, fmt.Errorf("%w: roster", domain.ErrPassAborted))

	if got := testutil.ToFloat64(r.passes.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok passes = %v", got)
	}
	if got := testutil.ToFloat64(r.passes.WithLabelValues("aborted")); got != 1 {
		t.Errorf("aborted passes = %v", got)
	}
	if got := testutil.ToFloat64(r.scoresCreated); got != 4 {
		t.Errorf("scores created = %v", got)
	}
	if got := testutil.ToFloat64(r.playersDeleted); got != 1 {
		t.Errorf("players deleted = %v", got)
	}
}

func TestObserveFetch(t *testing.T) {
	r := New()
	r.ObserveFetch("players.xml", nil, time.Millisecond)
	r.ObserveFetch("playerData.xml", domain.ErrNotFound, time.Millisecond)
	r.ObserveFetch("playerData.xml", errors.New("boom"), time.Millisecond)

	if got := testutil.ToFloat64(r.fetches.WithLabelValues("playerData.xml", "not_found")); got != 1 {
		t.Errorf("not found fetches = %v", got)
	}
	if got := testutil.ToFloat64(r.fetches.WithLabelValues("playerData.xml", "error")); got != 1 {
		t.Errorf("failed fetches = %v", got)
	}
}

func TestHandlerExposesOnlyOwnMetrics(t *testing.T) {
	r := New()
	r.ObserveRequest(http.MethodGet, "/healthz", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "invictus_http_requests_total") {
		t.Errorf("missing request counter in:\n%s", body)
	}
	if strings.Contains(body, "go_goroutines") {
		t.Error("default collectors leaked into the registry")
	}
}

func TestServerExposesCrawlerMetrics(t *testing.T) {
	r := New()
	r.ObservePass(&reconcile.PassReport{StartedAt: time.Unix(1700000000, 0), ScoresCreated: 2}, nil)
	r.ObserveFetch("players.xml", nil, time.Millisecond)

	srv := httptest.NewServer(r.Server(":0").Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	var body strings.Builder
	if _, err := io.Copy(&body, resp.Body); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		`invictus_crawler_passes_total{result="ok"} 1`,
		`invictus_upstream_fetches_total{document="players.xml",result="ok"} 1`,
	} {
		if !strings.Contains(body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}

	health, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("healthz status %d", health.StatusCode)
	}
}
