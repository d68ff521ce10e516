//nolint:whitespace // can't make both editor and linter happy
package team

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/stephenafamo/scan"

	"github.com/mpapenbr/rally-manager-go/pkg/model"
	"github.com/mpapenbr/rally-manager-go/pkg/repository/api"
	bobCtx "github.com/mpapenbr/rally-manager-go/pkg/repository/bob/context"
	"github.com/mpapenbr/rally-manager-go/pkg/repository/bob/errs"
)

const tableName = "team"

var columns = []any{"id", "name", "budget"}

type (
	repo struct {
		conn bob.Executor
	}
	teamRow struct {
		ID     int32           `db:"id"`
		Name   string          `db:"name"`
		Budget decimal.Decimal `db:"budget"`
	}
)

var _ api.TeamRepository = (*repo)(nil)

func NewTeamRepository(conn bob.Executor) api.TeamRepository {
	return &repo{
		conn: conn,
	}
}

func (r *repo) Create(ctx context.Context, team *model.Team) (*model.Team, error) {
	q := psql.Insert(
		im.Into(tableName, "name", "budget"),
		im.Values(psql.Arg(team.Name, team.Budget)),
		im.Returning(columns...),
	)
	row, err := bob.One(ctx, r.getExecutor(ctx), q, scan.StructMapper[teamRow]())
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

func (r *repo) LoadByID(ctx context.Context, id int) (*model.Team, error) {
	q := psql.Select(
		sm.Columns(columns...),
		sm.From(tableName),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)
	row, err := bob.One(ctx, r.getExecutor(ctx), q, scan.StructMapper[teamRow]())
	if err != nil {
		return nil, errs.Translate(err)
	}
	return row.toModel(), nil
}

func (r *repo) LoadAll(ctx context.Context) ([]*model.Team, error) {
	q := psql.Select(
		sm.Columns(columns...),
		sm.From(tableName),
		sm.OrderBy("id").Asc(),
	)
	rows, err := bob.All(ctx, r.getExecutor(ctx), q, scan.StructMapper[teamRow]())
	if err != nil {
		return nil, err
	}
	ret := make([]*model.Team, len(rows))
	for i := range rows {
		ret[i] = rows[i].toModel()
	}
	return ret, nil
}

func (r *repo) UpdateBudget(
	ctx context.Context,
	id int,
	budget decimal.Decimal,
) (int, error) {
	q := psql.Update(
		um.Table(tableName),
		um.SetCol("budget").To(psql.Arg(budget)),
		um.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)
	res, err := bob.Exec(ctx, r.getExecutor(ctx), q)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (t *teamRow) toModel() *model.Team {
	return &model.Team{
		ID:     int(t.ID),
		Name:   t.Name,
		Budget: t.Budget,
	}
}

func (r *repo) getExecutor(ctx context.Context) bob.Executor {
	if executor := bobCtx.FromContext(ctx); executor != nil {
		return executor
	}
	return r.conn
}
