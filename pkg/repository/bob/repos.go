package bob

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stephenafamo/bob"

	"github.com/mpapenbr/rally-manager-go/pkg/repository/api"
	"github.com/mpapenbr/rally-manager-go/pkg/repository/bob/race"
	"github.com/mpapenbr/rally-manager-go/pkg/repository/bob/result"
	"github.com/mpapenbr/rally-manager-go/pkg/repository/bob/roster"
	"github.com/mpapenbr/rally-manager-go/pkg/repository/bob/team"
	"github.com/mpapenbr/rally-manager-go/pkg/repository/bob/vehicle"
)

type bobRepositories struct {
	teamRepository    api.TeamRepository
	vehicleRepository api.VehicleRepository
	raceRepository    api.RaceRepository
	rosterRepository  api.RosterRepository
	resultRepository  api.ResultRepository
}

var _ api.Repositories = (*bobRepositories)(nil)

func NewRepositoriesFromPool(pool *pgxpool.Pool) api.Repositories {
	return NewRepositories(NewDB(pool))
}

func NewRepositories(db bob.DB) api.Repositories {
	return &bobRepositories{
		teamRepository:    team.NewTeamRepository(db),
		vehicleRepository: vehicle.NewVehicleRepository(db),
		raceRepository:    race.NewRaceRepository(db),
		rosterRepository:  roster.NewRosterRepository(db),
		resultRepository:  result.NewResultRepository(db),
	}
}

// NewDB wraps the pool for usage with bob. The pool stays owned by the caller.
func NewDB(pool *pgxpool.Pool) bob.DB {
	return bob.NewDB(stdlib.OpenDBFromPool(pool))
}

func (r *bobRepositories) Team() api.TeamRepository {
	return r.teamRepository
}

func (r *bobRepositories) Vehicle() api.VehicleRepository {
	return r.vehicleRepository
}

func (r *bobRepositories) Race() api.RaceRepository {
	return r.raceRepository
}

func (r *bobRepositories) Roster() api.RosterRepository {
	return r.rosterRepository
}

func (r *bobRepositories) Result() api.ResultRepository {
	return r.resultRepository
}
