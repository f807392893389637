package server

import (
	"encoding/json"
	"errors"
	"invictus/internal/codec"
	"invictus/internal/domain"
	"invictus/internal/metrics"
	"invictus/internal/middleware"
	"invictus/internal/service"
	"net/http"

	"github.com/rs/zerolog"
)

type QueryServer struct {
	playerSvc   *service.PlayerService
	allianceSvc *service.AllianceService
	fleetSvc    *service.FleetService
	metrics     *metrics.Recorder
	logger      zerolog.Logger
}

func NewQueryServer(
	playerSvc *service.PlayerService,
	allianceSvc *service.AllianceService,
	fleetSvc *service.FleetService,
	recorder *metrics.Recorder,
	logger zerolog.Logger,
) *QueryServer {
	return &QueryServer{
		playerSvc:   playerSvc,
		allianceSvc: allianceSvc,
		fleetSvc:    fleetSvc,
		metrics:     recorder,
		logger:      logger,
	}
}

// Register mounts every query route on mux.
func (s *QueryServer) Register(mux *http.ServeMux) {
	s.handle(mux, "GET /api/players", s.listPlayers)
	s.handle(mux, "GET /api/players/{playerID}", s.getPlayer)
	s.handle(mux, "GET /api/players/{playerID}/scores", s.getScores)
	s.handle(mux, "GET /api/players/{playerID}/diff", s.getScoreDiff)
	s.handle(mux, "GET /api/players/{playerID}/activity/weekday", s.getWeekdayActivity)
	s.handle(mux, "GET /api/players/{playerID}/activity/period", s.getPeriodActivity)
	s.handle(mux, "GET /api/players/{playerID}/activity/mean", s.getMeanActivity)
	s.handle(mux, "GET /api/players/{playerID}/fleet", s.getPlayerFleet)
	s.handle(mux, "GET /api/players/{playerID}/forecast", s.getForecast)
	s.handle(mux, "GET /api/players/{playerID}/alliances-founded", s.getAlliancesFounded)
	s.handle(mux, "POST /api/fleet-records", s.createFleetRecord)
	s.handle(mux, "GET /api/fleet", s.getUniverseFleet)
	s.handle(mux, "GET /api/alliances", s.listAlliances)
	s.handle(mux, "GET /api/alliances/{allyID}", s.getAlliance)

	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (s *QueryServer) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, middleware.Metrics(s.metrics, pattern)(h))
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto status codes. notFound is the message
// sent for a missing resource.
func (s *QueryServer) writeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	logger := zerolog.Ctx(r.Context())
	if logger.GetLevel() == zerolog.Disabled {
		logger = &s.logger
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: notFound})
	case errors.Is(err, service.ErrInvalidArgument), errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case codec.IsDecodeError(err):
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("stored snapshot is corrupt")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "stored data could not be decoded"})
	default:
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
