package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/rally-manager-go/log"
	"github.com/mpapenbr/rally-manager-go/pkg/cmd/util"
	"github.com/mpapenbr/rally-manager-go/pkg/model"
	bobRepos "github.com/mpapenbr/rally-manager-go/pkg/repository/bob"
	"github.com/mpapenbr/rally-manager-go/pkg/service/registry"
)

type (
	// Roster is the content of a seed file.
	// Amounts are strings to keep them exact.
	Roster struct {
		Teams []TeamSpec `yaml:"teams"`
		Races []RaceSpec `yaml:"races"`
	}
	TeamSpec struct {
		Name     string        `yaml:"name"`
		Budget   string        `yaml:"budget"`
		Vehicles []VehicleSpec `yaml:"vehicles"`
	}
	VehicleSpec struct {
		Model      string  `yaml:"model"`
		Speed      float64 `yaml:"speed"`
		Horsepower float64 `yaml:"horsepower"`
		Handling   float64 `yaml:"handling"`
		Durability float64 `yaml:"durability"`
	}
	RaceSpec struct {
		Name          string    `yaml:"name"`
		TrackLengthKm float64   `yaml:"trackLengthKm"`
		Surface       string    `yaml:"surface"`
		EntryFee      string    `yaml:"entryFee"`
		PrizePool     string    `yaml:"prizePool"`
		ScheduledAt   time.Time `yaml:"scheduledAt"`
		// models of vehicles to enter, empty means open to all vehicles
		Entries []string `yaml:"entries"`
	}
)

func NewSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "registers teams, vehicles and races from a yaml file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := util.SetupLogger(); err != nil {
				return err
			}
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			roster, err := ReadRoster(f)
			if err != nil {
				return err
			}
			pool, err := util.OpenPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			repos := bobRepos.NewRepositoriesFromPool(pool)
			txMgr := bobRepos.NewTransactionManagerFromPool(pool)
			return txMgr.RunInTx(cmd.Context(), func(ctx context.Context) error {
				return Apply(ctx, registry.NewService(repos, txMgr), roster)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "roster.yml", "seed file")
	return cmd
}

func ReadRoster(r io.Reader) (*Roster, error) {
	ret := &Roster{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(ret); err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return ret, nil
}

// Apply registers the content of the roster.
//
//nolint:funlen // by design
func Apply(ctx context.Context, reg *registry.Service, roster *Roster) error {
	vehicleIDs := map[string]int{}
	for _, ts := range roster.Teams {
		budget, err := registry.ParseMoney("budget", ts.Budget)
		if err != nil {
			return fmt.Errorf("team %q: %w", ts.Name, err)
		}
		team, err := reg.RegisterTeam(ctx, &model.Team{Name: ts.Name, Budget: budget})
		if err != nil {
			return fmt.Errorf("team %q: %w", ts.Name, err)
		}
		for _, vs := range ts.Vehicles {
			v, err := reg.RegisterVehicle(ctx, &model.Vehicle{
				TeamID:     team.ID,
				Model:      vs.Model,
				Speed:      vs.Speed,
				Horsepower: vs.Horsepower,
				Handling:   vs.Handling,
				Durability: vs.Durability,
			})
			if err != nil {
				return fmt.Errorf("vehicle %q: %w", vs.Model, err)
			}
			vehicleIDs[vs.Model] = v.ID
		}
	}
	for _, rs := range roster.Races {
		race, err := toRace(&rs)
		if err != nil {
			return fmt.Errorf("race %q: %w", rs.Name, err)
		}
		if race, err = reg.ScheduleRace(ctx, race); err != nil {
			return fmt.Errorf("race %q: %w", rs.Name, err)
		}
		for _, m := range rs.Entries {
			id, ok := vehicleIDs[m]
			if !ok {
				return fmt.Errorf("race %q: %w: vehicle %q", rs.Name, registry.ErrNotFound, m)
			}
			if err := reg.EnterVehicle(ctx, race.ID, id); err != nil {
				return fmt.Errorf("race %q: %w", rs.Name, err)
			}
		}
	}
	log.Info("roster applied",
		log.Int("teams", len(roster.Teams)),
		log.Int("vehicles", len(vehicleIDs)),
		log.Int("races", len(roster.Races)))
	return nil
}

func toRace(rs *RaceSpec) (*model.Race, error) {
	surface, err := model.ParseSurface(rs.Surface)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", registry.ErrInvalidInput, err)
	}
	fee, err := parseOptionalMoney("entry fee", rs.EntryFee)
	if err != nil {
		return nil, err
	}
	pool, err := parseOptionalMoney("prize pool", rs.PrizePool)
	if err != nil {
		return nil, err
	}
	return &model.Race{
		Name:          rs.Name,
		TrackLengthKm: rs.TrackLengthKm,
		Surface:       surface,
		EntryFee:      fee,
		PrizePool:     pool,
		ScheduledAt:   rs.ScheduledAt,
	}, nil
}

func parseOptionalMoney(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return registry.ParseMoney(field, s)
}
