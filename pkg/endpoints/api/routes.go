package api

import "net/http"

type route struct {
	pattern string
	handler http.HandlerFunc
}

func (s *Server) routes() []route {
	return []route{
		{"GET /healthz", s.health},
		{"POST /api/teams", s.registerTeam},
		{"GET /api/teams", s.listTeams},
		{"GET /api/teams/{id}", s.showTeam},
		{"POST /api/vehicles", s.registerVehicle},
		{"GET /api/vehicles", s.listVehicles},
		{"POST /api/races", s.scheduleRace},
		{"GET /api/races", s.listRaces},
		{"GET /api/races/{id}", s.showRace},
		{"POST /api/races/{id}/entries", s.enterVehicle},
		{"POST /api/races/{id}/run", s.runRace},
		{"GET /api/races/{id}/results", s.raceResults},
		{"GET /api/events", s.raceEvents},
	}
}
