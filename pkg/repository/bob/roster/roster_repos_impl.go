package roster

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/scan"

	"github.com/mpapenbr/rally-manager-go/pkg/model"
	"github.com/mpapenbr/rally-manager-go/pkg/repository/api"
	bobCtx "github.com/mpapenbr/rally-manager-go/pkg/repository/bob/context"
)

// explicit entries win, a race without entries is open to every vehicle
const candidateQuery = `
select v.id as vehicle_id, v.model, v.speed, v.horsepower, v.handling, v.durability,
       t.id as team_id, t.name as team_name, t.budget
from vehicle v
join team t on t.id = v.team_id
where not exists (select 1 from race_entry e where e.race_id = ?)
   or v.id in (select e.vehicle_id from race_entry e where e.race_id = ?)
order by v.id
for update of t`

type (
	repo struct {
		conn bob.Executor
	}
	candidateRow struct {
		VehicleID  int32           `db:"vehicle_id"`
		Model      string          `db:"model"`
		Speed      float64         `db:"speed"`
		Horsepower float64         `db:"horsepower"`
		Handling   float64         `db:"handling"`
		Durability float64         `db:"durability"`
		TeamID     int32           `db:"team_id"`
		TeamName   string          `db:"team_name"`
		Budget     decimal.Decimal `db:"budget"`
	}
)

var _ api.RosterRepository = (*repo)(nil)

func NewRosterRepository(conn bob.Executor) api.RosterRepository {
	return &repo{
		conn: conn,
	}
}

//nolint:whitespace // can't make both editor and linter happy
func (r *repo) LoadCandidates(ctx context.Context, raceID int) (
	[]model.RaceEntry, error,
) {
	q := psql.RawQuery(candidateQuery, raceID, raceID)
	rows, err := bob.All(ctx, r.getExecutor(ctx), q, scan.StructMapper[candidateRow]())
	if err != nil {
		return nil, err
	}
	ret := make([]model.RaceEntry, len(rows))
	for i := range rows {
		ret[i] = model.RaceEntry{
			VehicleID:  int(rows[i].VehicleID),
			Model:      rows[i].Model,
			Speed:      rows[i].Speed,
			Horsepower: rows[i].Horsepower,
			Handling:   rows[i].Handling,
			Durability: rows[i].Durability,
			TeamID:     int(rows[i].TeamID),
			TeamName:   rows[i].TeamName,
			Budget:     rows[i].Budget,
		}
	}
	return ret, nil
}

func (r *repo) getExecutor(ctx context.Context) bob.Executor {
	if executor := bobCtx.FromContext(ctx); executor != nil {
		return executor
	}
	return r.conn
}
