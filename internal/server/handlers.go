package server

import (
	"encoding/json"
	"fmt"
	"invictus/internal/service"
	"net/http"
)

const (
	msgPlayerNotFound   = "player not found"
	msgAllianceNotFound = "alliance not found"
)

func (s *QueryServer) listPlayers(w http.ResponseWriter, r *http.Request) {
	q := service.PlayerQuery{
		NameContains: r.URL.Query().Get("name"),
		Names:        queryList(r, "names"),
	}
	if r.URL.Query().Has("status") {
		status := r.URL.Query().Get("status")
		q.Status = &status
	}
	var err error
	if q.RankGTE, err = queryInt(r, "rank_gte"); err != nil {
		s.writeError(w, r, err, "")
		return
	}
	if q.RankLTE, err = queryInt(r, "rank_lte"); err != nil {
		s.writeError(w, r, err, "")
		return
	}

	players, err := s.playerSvc.ListPlayers(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (s *QueryServer) getPlayer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "playerID")
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	player, err := s.playerSvc.GetPlayer(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, msgPlayerNotFound)
		return
	}
	writeJSON(w, http.StatusOK, player)
}

func (s *QueryServer) getScores(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "playerID")
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	from, to, err := timeRange(r)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	scores, err := s.playerSvc.Scores(r.Context(), id, from, to)
	if err != nil {
		s.writeError(w, r, err, msgPlayerNotFound)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

func (s *QueryServer) getScoreDiff(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "playerID")
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	from, to, err := timeRange(r)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	diffs, err := s.playerSvc.ScoreDiff(r.Context(), id, from, to)
	if err != nil {
		s.writeError(w, r, err, msgPlayerNotFound)
		return
	}
	writeJSON(w, http.StatusOK, diffs)
}

func (s *QueryServer) getWeekdayActivity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "playerID")
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	category, err := queryCategory(r)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	from, to, err := timeRange(r)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	buckets, err := s.playerSvc.WeekdayActivity(r.Context(), id, category, from, to)
	if err != nil {
		s.writeError(w, r, err, msgPlayerNotFound)
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

func (s *QueryServer) getPeriodActivity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "playerID")
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	category, err := queryCategory(r)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	period, err := queryPeriod(r)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	from, to, err := timeRange(r)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	buckets, err := s.playerSvc.PeriodActivity(r.Context(), id, category, period, from, to)
	if err != nil {
		s.writeError(w, r, err, msgPlayerNotFound)
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

func (s *QueryServer) getMeanActivity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "playerID")
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	bucket := r.URL.Query().Get("bucket")
	if bucket == "" {
		bucket = "weekday"
	}
	from, to, err := timeRange(r)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	means, err := s.playerSvc.MeanActivity(r.Context(), id, bucket, from, to)
	if err != nil {
		s.writeError(w, r, err, msgPlayerNotFound)
		return
	}
	writeJSON(w, http.StatusOK, means)
}

func (s *QueryServer) getForecast(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "playerID")
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	res, err := s.playerSvc.Forecast(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, msgPlayerNotFound)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *QueryServer) getPlayerFleet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "playerID")
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	freq, err := s.fleetSvc.PlayerFleet(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, msgPlayerNotFound)
		return
	}
	writeJSON(w, http.StatusOK, freq)
}

func (s *QueryServer) getUniverseFleet(w http.ResponseWriter, r *http.Request) {
	freq, err := s.fleetSvc.UniverseFleet(r.Context())
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, freq)
}

func (s *QueryServer) createFleetRecord(w http.ResponseWriter, r *http.Request) {
	var req service.FleetRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err), "")
		return
	}
	record, err := s.fleetSvc.RecordFleet(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err, msgPlayerNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *QueryServer) getAlliancesFounded(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "playerID")
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	alliances, err := s.allianceSvc.AlliancesFounded(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, msgPlayerNotFound)
		return
	}
	writeJSON(w, http.StatusOK, alliances)
}

func (s *QueryServer) listAlliances(w http.ResponseWriter, r *http.Request) {
	alliances, err := s.allianceSvc.ListAlliances(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, alliances)
}

func (s *QueryServer) getAlliance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "allyID")
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	alliance, err := s.allianceSvc.GetAlliance(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, msgAllianceNotFound)
		return
	}
	writeJSON(w, http.StatusOK, alliance)
}
