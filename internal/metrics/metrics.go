// Package metrics exposes crawler and API metrics for Prometheus.
package metrics

import (
	"errors"
	"invictus/internal/constants"
	"invictus/internal/domain"
	"invictus/internal/reconcile"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

const namespace = "invictus"

// Recorder owns a private registry so the exported set is exactly ours.
type Recorder struct {
	registry *prometheus.Registry

	passes             *prometheus.CounterVec
	passDuration       prometheus.Histogram
	lastPassUnix       prometheus.Gauge
	playersUpdated     prometheus.Counter
	playersSkipped     prometheus.Counter
	scoresCreated      prometheus.Counter
	playersDeleted     prometheus.Counter
	alliancesRefreshed prometheus.Counter
	reportsStored      prometheus.Counter

	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

func New() *Recorder {
	registry := prometheus.NewRegistry()
	auto := promauto.With(registry)

	return &Recorder{
		registry: registry,

		passes: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawler",
			Name:      "passes_total",
			Help:      "Reconciliation passes by result",
		}, []string{"result"}),
		passDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "crawler",
			Name:      "pass_duration_seconds",
			Help:      "Wall time of a reconciliation pass",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
		lastPassUnix: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "crawler",
			Name:      "last_pass_timestamp_seconds",
			Help:      "Start time of the last finished pass",
		}),
		playersUpdated: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawler",
			Name:      "players_updated_total",
			Help:      "Players upserted by passes",
		}),
		playersSkipped: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawler",
			Name:      "players_skipped_total",
			Help:      "Players skipped after a failed detail fetch",
		}),
		scoresCreated: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawler",
			Name:      "scores_created_total",
			Help:      "Score snapshots created",
		}),
		playersDeleted: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawler",
			Name:      "players_deleted_total",
			Help:      "Players marked deleted by the deletion probe",
		}),
		alliancesRefreshed: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawler",
			Name:      "alliances_refreshed_total",
			Help:      "Alliances whose members and planet distribution were replaced",
		}),
		reportsStored: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawler",
			Name:      "combat_reports_stored_total",
			Help:      "Combat reports stored",
		}),

		fetches: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "fetches_total",
			Help:      "Upstream document fetches by document and result",
		}, []string{"document", "result"}),
		fetchDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "fetch_duration_seconds",
			Help:      "Upstream fetch latency including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"document"}),

		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "code"}),
		httpRequestDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (r *Recorder) ObservePass(report *reconcile.PassReport, err error) {
	result := "ok"
	switch {
	case errors.Is(err, domain.ErrPassAborted):
		result = "aborted"
	case err != nil:
		result = "error"
	}
	r.passes.WithLabelValues(result).Inc()

	if report == nil {
		return
	}
	r.passDuration.Observe(report.Duration.Seconds())
	r.lastPassUnix.Set(float64(report.StartedAt.Unix()))
	r.playersUpdated.Add(float64(report.PlayersUpdated))
	r.playersSkipped.Add(float64(report.PlayersSkipped))
	r.scoresCreated.Add(float64(report.ScoresCreated))
	r.playersDeleted.Add(float64(report.PlayersDeleted))
	r.alliancesRefreshed.Add(float64(report.AlliancesRefreshed))
	r.reportsStored.Add(float64(report.ReportsStored))
}

func (r *Recorder) ObserveFetch(document string, err error, elapsed time.Duration) {
	result := "ok"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	r.fetches.WithLabelValues(document, result).Inc()
	r.fetchDuration.WithLabelValues(document).Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	r.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Server serves the recorder on its own listener, for processes that do not
// run the query API.
func (r *Recorder) Server(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", r.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: constants.RequestTimeout,
	}
}

var Module = fx.Provide(New)
