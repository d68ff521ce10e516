package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aarondl/opt/omit"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/rally-manager-go/log"
	"github.com/mpapenbr/rally-manager-go/pkg/model"
	"github.com/mpapenbr/rally-manager-go/pkg/repository/api"
	"github.com/mpapenbr/rally-manager-go/pkg/simulation"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is an alias to keep a single invalid input category
	ErrInvalidInput = simulation.ErrInputInvalid
)

const maxNameLength = 100

type (
	Service struct {
		repos api.Repositories
		txMgr api.TransactionManager
		log   *log.Logger
		now   func() time.Time
	}
	Option func(*Service)

	// RaceQuery selects races for listing
	RaceQuery struct {
		UpcomingOnly bool
		Surface      omit.Val[model.Surface]
	}
)

func NewService(repos api.Repositories, txMgr api.TransactionManager, opts ...Option) *Service {
	ret := &Service{
		repos: repos,
		txMgr: txMgr,
		log:   log.Default().Named("registry"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func (s *Service) RegisterTeam(ctx context.Context, team *model.Team) (*model.Team, error) {
	if err := validateName("team name", team.Name); err != nil {
		return nil, err
	}
	if err := validateMoney("budget", team.Budget); err != nil {
		return nil, err
	}
	item := *team
	item.Name = strings.TrimSpace(item.Name)
	ret, err := s.repos.Team().Create(ctx, &item)
	if err != nil {
		return nil, err
	}
	s.log.Info("team registered", log.Int("teamID", ret.ID), log.String("name", ret.Name))
	return ret, nil
}

func (s *Service) Teams(ctx context.Context) ([]*model.Team, error) {
	return s.repos.Team().LoadAll(ctx)
}

func (s *Service) Team(ctx context.Context, id int) (*model.Team, error) {
	ret, err := s.repos.Team().LoadByID(ctx, id)
	return ret, notFound(err, "team", id)
}

// RegisterVehicle adds a vehicle to an existing team
//
//nolint:whitespace // can't make both editor and linter happy
func (s *Service) RegisterVehicle(ctx context.Context, v *model.Vehicle) (
	*model.Vehicle, error,
) {
	if err := validateName("model", v.Model); err != nil {
		return nil, err
	}
	for _, attr := range []struct {
		name  string
		value float64
	}{
		{"speed", v.Speed},
		{"horsepower", v.Horsepower},
		{"handling", v.Handling},
		{"durability", v.Durability},
	} {
		if err := simulation.ValidateAttribute(attr.name, attr.value); err != nil {
			return nil, err
		}
	}
	var ret *model.Vehicle
	err := s.txMgr.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.Team(ctx, v.TeamID); err != nil {
			return err
		}
		item := *v
		item.Model = strings.TrimSpace(item.Model)
		var err error
		ret, err = s.repos.Vehicle().Create(ctx, &item)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("vehicle registered",
		log.Int("vehicleID", ret.ID), log.Int("teamID", ret.TeamID))
	return ret, nil
}

func (s *Service) Vehicles(ctx context.Context, teamID omit.Val[int]) ([]*model.Vehicle, error) {
	return s.repos.Vehicle().LoadAll(ctx, api.VehicleFilter{TeamID: teamID})
}

func (s *Service) ScheduleRace(ctx context.Context, race *model.Race) (*model.Race, error) {
	if err := validateName("race name", race.Name); err != nil {
		return nil, err
	}
	if err := simulation.ValidateRace(race); err != nil {
		return nil, err
	}
	if err := validateMoney("entry fee", race.EntryFee); err != nil {
		return nil, err
	}
	if err := validateMoney("prize pool", race.PrizePool); err != nil {
		return nil, err
	}
	item := *race
	item.Name = strings.TrimSpace(item.Name)
	if item.ScheduledAt.IsZero() {
		item.ScheduledAt = s.now()
	}
	ret, err := s.repos.Race().Create(ctx, &item)
	if err != nil {
		return nil, err
	}
	s.log.Info("race scheduled", log.Int("raceID", ret.ID), log.String("name", ret.Name))
	return ret, nil
}

func (s *Service) Races(ctx context.Context, q RaceQuery) ([]*model.Race, error) {
	filter := api.RaceFilter{Surface: q.Surface}
	if q.UpcomingOnly {
		filter.ScheduledFrom = omit.From(s.now())
	}
	return s.repos.Race().LoadAll(ctx, filter)
}

func (s *Service) UpcomingRaces(ctx context.Context) ([]*model.Race, error) {
	return s.Races(ctx, RaceQuery{UpcomingOnly: true})
}

func (s *Service) Race(ctx context.Context, id int) (*model.Race, error) {
	ret, err := s.repos.Race().LoadByID(ctx, id)
	return ret, notFound(err, "race", id)
}

// EnterVehicle registers a vehicle for a race. Once a race has entries only
// the entered vehicles are candidates of the race.
func (s *Service) EnterVehicle(ctx context.Context, raceID, vehicleID int) error {
	return s.txMgr.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.Race(ctx, raceID); err != nil {
			return err
		}
		if _, err := s.repos.Vehicle().LoadByID(ctx, vehicleID); err != nil {
			return notFound(err, "vehicle", vehicleID)
		}
		return s.repos.Race().AddEntry(ctx, raceID, vehicleID)
	})
}

// Results returns the stored results of a race, latest run first
func (s *Service) Results(ctx context.Context, raceID int) ([]*model.ResultRecord, error) {
	if _, err := s.Race(ctx, raceID); err != nil {
		return nil, err
	}
	return s.repos.Result().LoadByRaceID(ctx, raceID)
}

// ParseMoney parses a non-negative amount with at most two decimals
func ParseMoney(field, s string) (decimal.Decimal, error) {
	ret, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %w", ErrInvalidInput, field, err)
	}
	if err := validateMoney(field, ret); err != nil {
		return decimal.Zero, err
	}
	return ret, nil
}

func validateMoney(field string, d decimal.Decimal) error {
	switch {
	case d.IsNegative():
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidInput, field)
	case !d.Equal(d.Truncate(2)):
		return fmt.Errorf("%w: %s has more than two decimals", ErrInvalidInput, field)
	}
	return nil
}

func validateName(field, value string) error {
	v := strings.TrimSpace(value)
	switch {
	case v == "":
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidInput, field)
	case len(v) > maxNameLength:
		return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidInput, field, maxNameLength)
	}
	return nil
}

func notFound(err error, kind string, id int) error {
	if errors.Is(err, api.ErrNoRows) {
		return fmt.Errorf("%w: %s %d", ErrNotFound, kind, id)
	}
	return err
}
