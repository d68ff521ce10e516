//nolint:whitespace // can't make both editor and linter happy
package result

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
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
)

const tableName = "race_result"

var columns = []any{
	"id", "run_id", "race_id", "vehicle_id", "team_id", "finish_time", "position",
	"prize", "recorded_at",
}

type (
	repo struct {
		conn bob.Executor
	}
	resultRow struct {
		ID         int32           `db:"id"`
		RunID      uuid.UUID       `db:"run_id"`
		RaceID     int32           `db:"race_id"`
		VehicleID  int32           `db:"vehicle_id"`
		TeamID     int32           `db:"team_id"`
		FinishTime float64         `db:"finish_time"`
		Position   int32           `db:"position"`
		Prize      decimal.Decimal `db:"prize"`
		RecordedAt time.Time       `db:"recorded_at"`
	}
)

var _ api.ResultRepository = (*repo)(nil)

func NewResultRepository(conn bob.Executor) api.ResultRepository {
	return &repo{
		conn: conn,
	}
}

// CreateAll inserts all records with a single statement
func (r *repo) CreateAll(ctx context.Context, records []model.ResultRecord) error {
	if len(records) == 0 {
		return nil
	}
	sqlMods := make([]bob.Mod[*dialect.InsertQuery], 0, len(records)+1)
	sqlMods = append(sqlMods, im.Into(tableName,
		"run_id", "race_id", "vehicle_id", "team_id", "finish_time", "position",
		"prize"))
	for i := range records {
		rec := &records[i]
		sqlMods = append(sqlMods, im.Values(psql.Arg(
			rec.RunID, rec.RaceID, rec.VehicleID, rec.TeamID, rec.FinishTime,
			rec.Position, rec.Prize)))
	}
	_, err := bob.Exec(ctx, r.getExecutor(ctx), psql.Insert(sqlMods...))
	return err
}

func (r *repo) LoadByRaceID(ctx context.Context, raceID int) (
	[]*model.ResultRecord, error,
) {
	q := psql.Select(
		sm.Columns(columns...),
		sm.From(tableName),
		sm.Where(psql.Quote("race_id").EQ(psql.Arg(raceID))),
		sm.OrderBy("recorded_at").Desc(),
		sm.OrderBy("run_id").Asc(),
		sm.OrderBy("position").Asc(),
	)
	rows, err := bob.All(ctx, r.getExecutor(ctx), q, scan.StructMapper[resultRow]())
	if err != nil {
		return nil, err
	}
	ret := make([]*model.ResultRecord, len(rows))
	for i := range rows {
		ret[i] = rows[i].toModel()
	}
	return ret, nil
}

func (rr *resultRow) toModel() *model.ResultRecord {
	return &model.ResultRecord{
		ID:         int(rr.ID),
		RunID:      rr.RunID,
		RaceID:     int(rr.RaceID),
		VehicleID:  int(rr.VehicleID),
		TeamID:     int(rr.TeamID),
		FinishTime: rr.FinishTime,
		Position:   int(rr.Position),
		Prize:      rr.Prize,
		RecordedAt: rr.RecordedAt,
	}
}

func (r *repo) getExecutor(ctx context.Context) bob.Executor {
	if executor := bobCtx.FromContext(ctx); executor != nil {
		return executor
	}
	return r.conn
}
