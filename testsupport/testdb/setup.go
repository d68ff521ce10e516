package testdb

import (
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	tcpg "github.com/mpapenbr/rally-manager-go/testsupport/tcpostgres"
)

// InitTestDB returns a pool to an empty, migrated test database
func InitTestDB() *pgxpool.Pool {
	var pool *pgxpool.Pool

	if os.Getenv("TESTDB_URL") != "" {
		pool = tcpg.SetupExternalTestDB()
	} else {
		pool = tcpg.SetupTestDB()
	}
	tcpg.ClearAllTables(pool)
	return pool
}
