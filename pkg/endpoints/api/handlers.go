package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aarondl/opt/omit"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/rally-manager-go/log"
	"github.com/mpapenbr/rally-manager-go/pkg/model"
	"github.com/mpapenbr/rally-manager-go/pkg/service/registry"
)

type (
	teamRequest struct {
		Name   string          `json:"name"`
		Budget decimal.Decimal `json:"budget"`
	}
	vehicleRequest struct {
		TeamID     int     `json:"teamId"`
		Model      string  `json:"model"`
		Speed      float64 `json:"speed"`
		Horsepower float64 `json:"horsepower"`
		Handling   float64 `json:"handling"`
		Durability float64 `json:"durability"`
	}
	raceRequest struct {
		Name          string          `json:"name"`
		TrackLengthKm float64         `json:"trackLengthKm"`
		Surface       string          `json:"surface"`
		EntryFee      decimal.Decimal `json:"entryFee"`
		PrizePool     decimal.Decimal `json:"prizePool"`
		ScheduledAt   *time.Time      `json:"scheduledAt"`
	}
	entryRequest struct {
		VehicleID int `json:"vehicleId"`
	}
	healthResponse struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			log.GetFromContext(r.Context()).Warn("health check failed", log.ErrorField(err))
			writeJSON(w, r, http.StatusServiceUnavailable,
				healthResponse{Status: "unavailable", Error: err.Error()})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) registerTeam(w http.ResponseWriter, r *http.Request) {
	var req teamRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ret, err := s.registry.RegisterTeam(r.Context(),
		&model.Team{Name: req.Name, Budget: req.Budget})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, ret)
}

func (s *Server) listTeams(w http.ResponseWriter, r *http.Request) {
	ret, err := s.registry.Teams(r.Context())
	respond(w, r, ret, err)
}

func (s *Server) showTeam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ret, err := s.registry.Team(r.Context(), id)
	respond(w, r, ret, err)
}

func (s *Server) registerVehicle(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ret, err := s.registry.RegisterVehicle(r.Context(), &model.Vehicle{
		TeamID:     req.TeamID,
		Model:      req.Model,
		Speed:      req.Speed,
		Horsepower: req.Horsepower,
		Handling:   req.Handling,
		Durability: req.Durability,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, ret)
}

func (s *Server) listVehicles(w http.ResponseWriter, r *http.Request) {
	var teamID omit.Val[int]
	if v := r.URL.Query().Get("team"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: team: %q", registry.ErrInvalidInput, v))
			return
		}
		teamID = omit.From(id)
	}
	ret, err := s.registry.Vehicles(r.Context(), teamID)
	respond(w, r, ret, err)
}

func (s *Server) scheduleRace(w http.ResponseWriter, r *http.Request) {
	var req raceRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	surface, err := parseSurface(req.Surface)
	if err != nil {
		writeError(w, r, err)
		return
	}
	item := &model.Race{
		Name:          req.Name,
		TrackLengthKm: req.TrackLengthKm,
		Surface:       surface,
		EntryFee:      req.EntryFee,
		PrizePool:     req.PrizePool,
	}
	if req.ScheduledAt != nil {
		item.ScheduledAt = *req.ScheduledAt
	}
	ret, err := s.registry.ScheduleRace(r.Context(), item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, ret)
}

func (s *Server) listRaces(w http.ResponseWriter, r *http.Request) {
	q := registry.RaceQuery{}
	params := r.URL.Query()
	if v := params.Get("upcoming"); v != "" {
		upcoming, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: upcoming: %q", registry.ErrInvalidInput, v))
			return
		}
		q.UpcomingOnly = upcoming
	}
	if v := params.Get("surface"); v != "" {
		surface, err := parseSurface(v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		q.Surface = omit.From(surface)
	}
	ret, err := s.registry.Races(r.Context(), q)
	respond(w, r, ret, err)
}

func (s *Server) showRace(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ret, err := s.registry.Race(r.Context(), id)
	respond(w, r, ret, err)
}

func (s *Server) enterVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req entryRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.registry.EnterVehicle(r.Context(), id, req.VehicleID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) runRace(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ret, err := s.runner.Run(r.Context(), id)
	respond(w, r, ret, err)
}

func (s *Server) raceResults(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ret, err := s.registry.Results(r.Context(), id)
	respond(w, r, ret, err)
}

func pathID(r *http.Request) (int, error) {
	v := r.PathValue("id")
	id, err := strconv.Atoi(v)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id: %q", registry.ErrInvalidInput, v)
	}
	return id, nil
}

func parseSurface(v string) (model.Surface, error) {
	ret, err := model.ParseSurface(v)
	if err != nil {
		return "", fmt.Errorf("%w: %w", registry.ErrInvalidInput, err)
	}
	return ret, nil
}
