package basedata

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stephenafamo/bob"

	"github.com/mpapenbr/rally-manager-go/pkg/model"
	"github.com/mpapenbr/rally-manager-go/pkg/repository/bob/race"
	"github.com/mpapenbr/rally-manager-go/pkg/repository/bob/team"
	"github.com/mpapenbr/rally-manager-go/pkg/repository/bob/vehicle"
)

func TestTime() time.Time {
	t, _ := time.Parse(time.RFC3339, "2024-04-28T11:10:12Z")
	return t
}

func SampleTeam() *model.Team {
	return &model.Team{
		Name:   "Alpha",
		Budget: decimal.NewFromInt(3000),
	}
}

func SampleVehicle(teamID int) *model.Vehicle {
	return &model.Vehicle{
		TeamID:     teamID,
		Model:      "Alpha One",
		Speed:      500,
		Horsepower: 450,
		Handling:   300,
		Durability: 200,
	}
}

func SampleRace() *model.Race {
	return &model.Race{
		Name:          "Rally Paved",
		TrackLengthKm: 100,
		Surface:       model.SurfacePaved,
		EntryFee:      decimal.NewFromInt(1000),
		PrizePool:     decimal.NewFromInt(5000),
		ScheduledAt:   TestTime(),
	}
}

func CreateSampleTeam(db bob.DB) *model.Team {
	return CreateTeam(db, SampleTeam())
}

func CreateTeam(db bob.DB, t *model.Team) *model.Team {
	ret, err := team.NewTeamRepository(db).Create(context.Background(), t)
	if err != nil {
		log.Fatalf("CreateTeam: %v", err)
	}
	return ret
}

func CreateSampleVehicle(db bob.DB, teamID int) *model.Vehicle {
	return CreateVehicle(db, SampleVehicle(teamID))
}

func CreateVehicle(db bob.DB, v *model.Vehicle) *model.Vehicle {
	ret, err := vehicle.NewVehicleRepository(db).Create(context.Background(), v)
	if err != nil {
		log.Fatalf("CreateVehicle: %v", err)
	}
	return ret
}

func CreateSampleRace(db bob.DB) *model.Race {
	return CreateRace(db, SampleRace())
}

func CreateRace(db bob.DB, r *model.Race) *model.Race {
	ret, err := race.NewRaceRepository(db).Create(context.Background(), r)
	if err != nil {
		log.Fatalf("CreateRace: %v", err)
	}
	return ret
}
