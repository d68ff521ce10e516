//nolint:whitespace // can't make both editor and linter happy
package vehicle

import (
	"context"

	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/scan"

	"github.com/mpapenbr/rally-manager-go/pkg/model"
	"github.com/mpapenbr/rally-manager-go/pkg/repository/api"
	bobCtx "github.com/mpapenbr/rally-manager-go/pkg/repository/bob/context"
	"github.com/mpapenbr/rally-manager-go/pkg/repository/bob/errs"
)

const tableName = "vehicle"

var columns = []any{
	"id", "team_id", "model", "speed", "horsepower", "handling", "durability",
}

type (
	repo struct {
		conn bob.Executor
	}
	vehicleRow struct {
		ID         int32   `db:"id"`
		TeamID     int32   `db:"team_id"`
		Model      string  `db:"model"`
		Speed      float64 `db:"speed"`
		Horsepower float64 `db:"horsepower"`
		Handling   float64 `db:"handling"`
		Durability float64 `db:"durability"`
	}
)

var _ api.VehicleRepository = (*repo)(nil)

func NewVehicleRepository(conn bob.Executor) api.VehicleRepository {
	return &repo{
		conn: conn,
	}
}

func (r *repo) Create(ctx context.Context, v *model.Vehicle) (*model.Vehicle, error) {
	q := psql.Insert(
		im.Into(tableName,
			"team_id", "model", "speed", "horsepower", "handling", "durability"),
		im.Values(psql.Arg(
			v.TeamID, v.Model, v.Speed, v.Horsepower, v.Handling, v.Durability)),
		im.Returning(columns...),
	)
	row, err := bob.One(ctx, r.getExecutor(ctx), q, scan.StructMapper[vehicleRow]())
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

func (r *repo) LoadByID(ctx context.Context, id int) (*model.Vehicle, error) {
	q := psql.Select(
		sm.Columns(columns...),
		sm.From(tableName),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)
	row, err := bob.One(ctx, r.getExecutor(ctx), q, scan.StructMapper[vehicleRow]())
	if err != nil {
		return nil, errs.Translate(err)
	}
	return row.toModel(), nil
}

func (r *repo) LoadAll(ctx context.Context, filter api.VehicleFilter) (
	[]*model.Vehicle, error,
) {
	sqlMods := make([]bob.Mod[*dialect.SelectQuery], 0)
	sqlMods = append(sqlMods,
		sm.Columns(columns...),
		sm.From(tableName),
		sm.OrderBy("id").Asc(),
	)
	if teamID, ok := filter.TeamID.Get(); ok {
		sqlMods = append(sqlMods, sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))))
	}
	rows, err := bob.All(ctx, r.getExecutor(ctx), psql.Select(sqlMods...),
		scan.StructMapper[vehicleRow]())
	if err != nil {
		return nil, err
	}
	ret := make([]*model.Vehicle, len(rows))
	for i := range rows {
		ret[i] = rows[i].toModel()
	}
	return ret, nil
}

func (v *vehicleRow) toModel() *model.Vehicle {
	return &model.Vehicle{
		ID:         int(v.ID),
		TeamID:     int(v.TeamID),
		Model:      v.Model,
		Speed:      v.Speed,
		Horsepower: v.Horsepower,
		Handling:   v.Handling,
		Durability: v.Durability,
	}
}

func (r *repo) getExecutor(ctx context.Context) bob.Executor {
	if executor := bobCtx.FromContext(ctx); executor != nil {
		return executor
	}
	return r.conn
}
