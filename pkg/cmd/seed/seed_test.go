package seed

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/rally-manager-go/pkg/model"
	"github.com/mpapenbr/rally-manager-go/pkg/service/registry"
	"github.com/mpapenbr/rally-manager-go/testsupport/memrepo"
)

func TestReadRoster(t *testing.T) {
	f, err := os.Open("testdata/roster.yml")
	require.NoError(t, err)
	defer f.Close()

	got, err := ReadRoster(f)
	require.NoError(t, err)
	require.Len(t, got.Teams, 2)
	assert.Equal(t, "12000.00", got.Teams[0].Budget)
	assert.Len(t, got.Teams[0].Vehicles, 2)
	require.Len(t, got.Races, 2)
	assert.Equal(t, []string{"Dune Hopper", "Fjord GT"}, got.Races[1].Entries)
	assert.Equal(t, 2030, got.Races[0].ScheduledAt.Year())
}

func TestReadRosterUnknownField(t *testing.T) {
	_, err := ReadRoster(strings.NewReader("teams:\n  - name: x\n    colour: red\n"))
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	f, err := os.Open("testdata/roster.yml")
	require.NoError(t, err)
	defer f.Close()
	roster, err := ReadRoster(f)
	require.NoError(t, err)

	store := memrepo.New()
	ctx := context.Background()
	reg := registry.NewService(store, store)
	err = store.RunInTx(ctx, func(ctx context.Context) error {
		return Apply(ctx, reg, roster)
	})
	require.NoError(t, err)

	teams, err := reg.Teams(ctx)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.True(t, decimal.NewFromInt(12000).Equal(teams[0].Budget))

	races, err := reg.Races(ctx, registry.RaceQuery{})
	require.NoError(t, err)
	require.Len(t, races, 2)
	assert.Equal(t, model.SurfaceSnow, races[0].Surface)

	candidates, err := store.Roster().LoadCandidates(ctx, races[1].ID)
	require.NoError(t, err)
	models := []string{}
	for _, c := range candidates {
		models = append(models, c.Model)
	}
	assert.ElementsMatch(t, []string{"Dune Hopper", "Fjord GT"}, models)
}

func TestApplyRollsBackOnError(t *testing.T) {
	roster := &Roster{
		Teams: []TeamSpec{{Name: "Alpha", Budget: "100"}},
		Races: []RaceSpec{{Name: "bad", TrackLengthKm: 1, Surface: "ice"}},
	}
	store := memrepo.New()
	reg := registry.NewService(store, store)
	err := store.RunInTx(context.Background(), func(ctx context.Context) error {
		return Apply(ctx, reg, roster)
	})
	assert.ErrorIs(t, err, registry.ErrInvalidInput)
	teams, err := reg.Teams(context.Background())
	require.NoError(t, err)
	assert.Empty(t, teams)
}

func TestApplyUnknownEntry(t *testing.T) {
	roster := &Roster{
		Races: []RaceSpec{{
			Name: "r", TrackLengthKm: 1, Surface: "paved", Entries: []string{"ghost"},
		}},
	}
	store := memrepo.New()
	err := Apply(context.Background(), registry.NewService(store, store), roster)
	assert.ErrorIs(t, err, registry.ErrNotFound)
}
