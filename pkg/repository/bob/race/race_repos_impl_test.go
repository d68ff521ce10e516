//nolint:whitespace // readability
package race_test

import (
	"context"
	"testing"
	"time"

	"github.com/aarondl/opt/omit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/rally-manager-go/pkg/model"
	"github.com/mpapenbr/rally-manager-go/pkg/repository/api"
	bobRepos "github.com/mpapenbr/rally-manager-go/pkg/repository/bob"
	"github.com/mpapenbr/rally-manager-go/pkg/repository/bob/race"
	base "github.com/mpapenbr/rally-manager-go/testsupport/basedata"
	"github.com/mpapenbr/rally-manager-go/testsupport/testdb"
)

func TestCreateAndLoad(t *testing.T) {
	pool := testdb.InitTestDB()
	db := bobRepos.NewDB(pool)
	r := race.NewRaceRepository(db)

	created, err := r.Create(context.Background(), base.SampleRace())
	require.NoError(t, err)
	got, err := r.LoadByID(context.Background(), created.ID)
	require.NoError(t, err)

	want := base.SampleRace()
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Surface, got.Surface)
	assert.InDelta(t, want.TrackLengthKm, got.TrackLengthKm, 1e-9)
	assert.True(t, want.EntryFee.Equal(got.EntryFee))
	assert.True(t, want.PrizePool.Equal(got.PrizePool))
	assert.True(t, want.ScheduledAt.Equal(got.ScheduledAt))

	_, err = r.LoadByID(context.Background(), created.ID+1000)
	assert.ErrorIs(t, err, api.ErrNoRows)
}

func TestCreateUnknownSurface(t *testing.T) {
	pool := testdb.InitTestDB()
	r := race.NewRaceRepository(bobRepos.NewDB(pool))
	sample := base.SampleRace()
	sample.Surface = model.Surface("ice")
	_, err := r.Create(context.Background(), sample)
	assert.Error(t, err)
}

func TestLoadAll(t *testing.T) {
	pool := testdb.InitTestDB()
	db := bobRepos.NewDB(pool)
	early := base.SampleRace()
	early.Name = "early"
	early.ScheduledAt = base.TestTime()
	late := base.SampleRace()
	late.Name = "late"
	late.Surface = model.SurfaceSnow
	late.ScheduledAt = base.TestTime().Add(24 * time.Hour)
	// created in reverse order to check the ordering by schedule
	lateRace := base.CreateRace(db, late)
	earlyRace := base.CreateRace(db, early)
	r := race.NewRaceRepository(db)

	tests := []struct {
		name   string
		filter api.RaceFilter
		want   []int
	}{
		{name: "all", want: []int{earlyRace.ID, lateRace.ID}},
		{
			name:   "upcoming",
			filter: api.RaceFilter{ScheduledFrom: omit.From(base.TestTime().Add(time.Hour))},
			want:   []int{lateRace.ID},
		},
		{
			name:   "surface",
			filter: api.RaceFilter{Surface: omit.From(model.SurfacePaved)},
			want:   []int{earlyRace.ID},
		},
		{
			name: "no match",
			filter: api.RaceFilter{
				Surface:       omit.From(model.SurfacePaved),
				ScheduledFrom: omit.From(base.TestTime().Add(time.Hour)),
			},
			want: []int{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.LoadAll(context.Background(), tt.filter)
			require.NoError(t, err)
			ids := make([]int, 0, len(got))
			for i := range got {
				ids = append(ids, got[i].ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestAddEntry(t *testing.T) {
	pool := testdb.InitTestDB()
	db := bobRepos.NewDB(pool)
	tm := base.CreateSampleTeam(db)
	v := base.CreateSampleVehicle(db, tm.ID)
	rc := base.CreateSampleRace(db)
	r := race.NewRaceRepository(db)

	require.NoError(t, r.AddEntry(context.Background(), rc.ID, v.ID))
	// adding twice is fine
	require.NoError(t, r.AddEntry(context.Background(), rc.ID, v.ID))
	assert.Error(t, r.AddEntry(context.Background(), rc.ID, v.ID+1000))
}
