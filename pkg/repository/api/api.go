package api

import (
	"context"
	"errors"
	"time"

	"github.com/aarondl/opt/omit"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/rally-manager-go/pkg/model"
)

var ErrNoRows = errors.New("no rows in result set")

type Repositories interface {
	Team() TeamRepository
	Vehicle() VehicleRepository
	Race() RaceRepository
	Roster() RosterRepository
	Result() ResultRepository
}

type TeamRepository interface {
	Create(ctx context.Context, team *model.Team) (*model.Team, error)
	LoadByID(ctx context.Context, id int) (*model.Team, error)
	LoadAll(ctx context.Context) ([]*model.Team, error)
	// returns the number of updated rows
	UpdateBudget(ctx context.Context, id int, budget decimal.Decimal) (int, error)
}

type VehicleFilter struct {
	TeamID omit.Val[int]
}

type VehicleRepository interface {
	Create(ctx context.Context, vehicle *model.Vehicle) (*model.Vehicle, error)
	LoadByID(ctx context.Context, id int) (*model.Vehicle, error)
	LoadAll(ctx context.Context, filter VehicleFilter) ([]*model.Vehicle, error)
}

type RaceFilter struct {
	ScheduledFrom omit.Val[time.Time]
	Surface       omit.Val[model.Surface]
}

type RaceRepository interface {
	Create(ctx context.Context, race *model.Race) (*model.Race, error)
	LoadByID(ctx context.Context, id int) (*model.Race, error)
	LoadAll(ctx context.Context, filter RaceFilter) ([]*model.Race, error)
	AddEntry(ctx context.Context, raceID, vehicleID int) error
}

// RosterRepository provides the candidates of a race.
type RosterRepository interface {
	// LoadCandidates returns the explicitly entered vehicles of the race or all
	// vehicles if there are no entries, ordered by vehicle id.
	// When running inside a transaction the team rows stay locked until the
	// transaction ends.
	LoadCandidates(ctx context.Context, raceID int) ([]model.RaceEntry, error)
}

type ResultRepository interface {
	CreateAll(ctx context.Context, records []model.ResultRecord) error
	// latest run first, positions ascending within a run
	LoadByRaceID(ctx context.Context, raceID int) ([]*model.ResultRecord, error)
}

// TransactionManager runs fn in a transaction which is rolled back if fn
// returns an error. Nested calls join the surrounding transaction.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
