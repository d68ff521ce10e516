package bob

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stephenafamo/bob"

	"github.com/mpapenbr/rally-manager-go/pkg/repository/api"
	bobCtx "github.com/mpapenbr/rally-manager-go/pkg/repository/bob/context"
)

type bobTransaction struct {
	db *bob.DB
}

var _ api.TransactionManager = (*bobTransaction)(nil)

func NewTransactionManager(db bob.DB) api.TransactionManager {
	return &bobTransaction{
		db: &db,
	}
}

func NewTransactionManagerFromPool(pool *pgxpool.Pool) api.TransactionManager {
	return NewTransactionManager(NewDB(pool))
}

// the contract with the repositories is:
// we put the current executor into the context, the repository should first look
// in the context for an executor and then use it to execute queries.
// The transaction is rolled back if fn returns an error.
// A call inside a running transaction joins that transaction.
//
//nolint:whitespace //editor/linter issue
func (b *bobTransaction) RunInTx(
	ctx context.Context,
	fn func(ctx context.Context) error,
) error {
	if bobCtx.FromContext(ctx) != nil {
		return fn(ctx)
	}
	return b.db.RunInTx(ctx, nil, func(ctx context.Context, e bob.Executor) error {
		if ctx == nil {
			ctx = context.Background()
		}
		return fn(bobCtx.NewContext(ctx, e))
	})
}
