//nolint:whitespace // can't make both editor and linter happy
package race

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
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

const tableName = "race"

var columns = []any{
	"id", "name", "track_length_km", "surface", "entry_fee", "prize_pool",
	"scheduled_at",
}

type (
	repo struct {
		conn bob.Executor
	}
	raceRow struct {
		ID            int32           `db:"id"`
		Name          string          `db:"name"`
		TrackLengthKm float64         `db:"track_length_km"`
		Surface       string          `db:"surface"`
		EntryFee      decimal.Decimal `db:"entry_fee"`
		PrizePool     decimal.Decimal `db:"prize_pool"`
		ScheduledAt   time.Time       `db:"scheduled_at"`
	}
)

var _ api.RaceRepository = (*repo)(nil)

func NewRaceRepository(conn bob.Executor) api.RaceRepository {
	return &repo{
		conn: conn,
	}
}

func (r *repo) Create(ctx context.Context, race *model.Race) (*model.Race, error) {
	q := psql.Insert(
		im.Into(tableName,
			"name", "track_length_km", "surface", "entry_fee", "prize_pool",
			"scheduled_at"),
		im.Values(psql.Arg(
			race.Name, race.TrackLengthKm, string(race.Surface), race.EntryFee,
			race.PrizePool, race.ScheduledAt)),
		im.Returning(columns...),
	)
	row, err := bob.One(ctx, r.getExecutor(ctx), q, scan.StructMapper[raceRow]())
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

func (r *repo) LoadByID(ctx context.Context, id int) (*model.Race, error) {
	q := psql.Select(
		sm.Columns(columns...),
		sm.From(tableName),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)
	row, err := bob.One(ctx, r.getExecutor(ctx), q, scan.StructMapper[raceRow]())
	if err != nil {
		return nil, errs.Translate(err)
	}
	return row.toModel(), nil
}

func (r *repo) LoadAll(ctx context.Context, filter api.RaceFilter) (
	[]*model.Race, error,
) {
	sqlMods := make([]bob.Mod[*dialect.SelectQuery], 0)
	sqlMods = append(sqlMods,
		sm.Columns(columns...),
		sm.From(tableName),
		sm.OrderBy("scheduled_at").Asc(),
		sm.OrderBy("id").Asc(),
	)
	if from, ok := filter.ScheduledFrom.Get(); ok {
		sqlMods = append(sqlMods,
			sm.Where(psql.Quote("scheduled_at").GTE(psql.Arg(from))))
	}
	if surface, ok := filter.Surface.Get(); ok {
		sqlMods = append(sqlMods,
			sm.Where(psql.Quote("surface").EQ(psql.Arg(string(surface)))))
	}
	rows, err := bob.All(ctx, r.getExecutor(ctx), psql.Select(sqlMods...),
		scan.StructMapper[raceRow]())
	if err != nil {
		return nil, err
	}
	ret := make([]*model.Race, len(rows))
	for i := range rows {
		ret[i] = rows[i].toModel()
	}
	return ret, nil
}

// AddEntry registers a vehicle for a race. Adding the same vehicle twice is
// a no-op.
func (r *repo) AddEntry(ctx context.Context, raceID, vehicleID int) error {
	q := psql.Insert(
		im.Into("race_entry", "race_id", "vehicle_id"),
		im.Values(psql.Arg(raceID, vehicleID)),
		im.OnConflict("race_id", "vehicle_id").DoNothing(),
	)
	_, err := bob.Exec(ctx, r.getExecutor(ctx), q)
	return err
}

func (rr *raceRow) toModel() *model.Race {
	return &model.Race{
		ID:            int(rr.ID),
		Name:          rr.Name,
		TrackLengthKm: rr.TrackLengthKm,
		Surface:       model.Surface(rr.Surface),
		EntryFee:      rr.EntryFee,
		PrizePool:     rr.PrizePool,
		ScheduledAt:   rr.ScheduledAt,
	}
}

func (r *repo) getExecutor(ctx context.Context) bob.Executor {
	if executor := bobCtx.FromContext(ctx); executor != nil {
		return executor
	}
	return r.conn
}
