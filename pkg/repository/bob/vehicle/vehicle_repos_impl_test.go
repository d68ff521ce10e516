//nolint:whitespace // readability
package vehicle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aarondl/opt/omit"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/rally-manager-go/pkg/model"
	"github.com/mpapenbr/rally-manager-go/pkg/repository/api"
	bobRepos "github.com/mpapenbr/rally-manager-go/pkg/repository/bob"
	"github.com/mpapenbr/rally-manager-go/pkg/repository/bob/vehicle"
	base "github.com/mpapenbr/rally-manager-go/testsupport/basedata"
	"github.com/mpapenbr/rally-manager-go/testsupport/testdb"
)

func TestCreateAndLoad(t *testing.T) {
	pool := testdb.InitTestDB()
	db := bobRepos.NewDB(pool)
	tm := base.CreateSampleTeam(db)
	r := vehicle.NewVehicleRepository(db)

	created, err := r.Create(context.Background(), base.SampleVehicle(tm.ID))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	got, err := r.LoadByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("LoadByID() error = %v", err)
	}
	want := base.SampleVehicle(tm.ID)
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(model.Vehicle{}, "ID")); diff != "" {
		t.Errorf("LoadByID() mismatch (-want +got):\n%s", diff)
	}

	_, err = r.LoadByID(context.Background(), created.ID+1000)
	if !errors.Is(err, api.ErrNoRows) {
		t.Errorf("LoadByID() error = %v, want %v", err, api.ErrNoRows)
	}
}

func TestCreateUnknownTeam(t *testing.T) {
	pool := testdb.InitTestDB()
	r := vehicle.NewVehicleRepository(bobRepos.NewDB(pool))
	if _, err := r.Create(context.Background(), base.SampleVehicle(4711)); err == nil {
		t.Errorf("Create() expected foreign key error")
	}
}

func TestLoadAll(t *testing.T) {
	pool := testdb.InitTestDB()
	db := bobRepos.NewDB(pool)
	alpha := base.CreateSampleTeam(db)
	beta := base.CreateTeam(db, &model.Team{Name: "Beta", Budget: decimal.Zero})
	v1 := base.CreateSampleVehicle(db, alpha.ID)
	v2 := base.CreateSampleVehicle(db, beta.ID)
	v3 := base.CreateSampleVehicle(db, alpha.ID)
	r := vehicle.NewVehicleRepository(db)

	tests := []struct {
		name   string
		filter api.VehicleFilter
		want   []int
	}{
		{name: "all", filter: api.VehicleFilter{}, want: []int{v1.ID, v2.ID, v3.ID}},
		{
			name:   "team alpha",
			filter: api.VehicleFilter{TeamID: omit.From(alpha.ID)},
			want:   []int{v1.ID, v3.ID},
		},
		{
			name:   "unknown team",
			filter: api.VehicleFilter{TeamID: omit.From(alpha.ID + beta.ID + 1000)},
			want:   []int{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.LoadAll(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("LoadAll() error = %v", err)
			}
			ids := make([]int, len(got))
			for i := range got {
				ids[i] = got[i].ID
			}
			if diff := cmp.Diff(tt.want, ids); diff != "" {
				t.Errorf("LoadAll() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
