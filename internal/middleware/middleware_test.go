package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type requestLog struct {
	method, route string
	code          int
}

type recordingObserver struct {
	seen []requestLog
}

func (o *recordingObserver) ObserveRequest(method, route string, code int, _ time.Duration) {
	o.seen = append(o.seen, requestLog{method, route, code})
}

func TestRequestIDPropagatesHeader(t *testing.T) {
	var got string
	h := RequestID(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/players", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got != "abc" {
		t.Fatalf("request id in context = %q, want abc", got)
	}
	if rec.Header().Get("X-Request-ID") != "abc" {
		t.Fatalf("response header = %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestRequestIDGenerated(t *testing.T) {
	var got string
	h := RequestID(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetRequestID(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got == "" {
		t.Fatal("expected a generated request id")
	}
}

func TestMetricsRecordsStatus(t *testing.T) {
	obs := &recordingObserver{}
	h := Metrics(obs, "GET /api/players/{playerID}")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/players/7", nil))

	if len(obs.seen) != 1 {
		t.Fatalf("observed %d requests, want 1", len(obs.seen))
	}
	want := requestLog{http.MethodGet, "GET /api/players/{playerID}", http.StatusNotFound}
	if obs.seen[0] != want {
		t.Fatalf("observed %+v, want %+v", obs.seen[0], want)
	}
}
