//nolint:errcheck // testsetup
package tcpostgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mpapenbr/rally-manager-go/pkg/db/migrate"
	database "github.com/mpapenbr/rally-manager-go/pkg/db/postgres"
)

// SetupTestDB creates a pg connection pool for the rally test database
// running in a container
func SetupTestDB() *pgxpool.Pool {
	ctx := context.Background()
	port, err := nat.NewPort("tcp", "5432")
	if err != nil {
		log.Fatal(err)
	}
	container, err := SetupPostgres(ctx,
		WithPort(port.Port()),
		WithInitialDatabase("postgres", "password", "postgres"),
		WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
		WithName("rally-manager-test"),
	)
	if err != nil {
		log.Fatal(err)
	}
	containerPort, _ := container.MappedPort(ctx, port)
	host, _ := container.Host(ctx)
	dbURL := fmt.Sprintf("postgresql://postgres:password@%s:%s/postgres",
		host, containerPort.Port())
	return setupPool(ctx, dbURL)
}

// SetupExternalTestDB uses the database referenced by TESTDB_URL
func SetupExternalTestDB() *pgxpool.Pool {
	return setupPool(context.Background(), os.Getenv("TESTDB_URL"))
}

func setupPool(ctx context.Context, dbURL string) *pgxpool.Pool {
	if err := migrate.MigrateDB(dbURL); err != nil {
		log.Fatal(err)
	}
	pool, err := database.InitWithURL(ctx, dbURL)
	if err != nil {
		log.Fatal(err)
	}
	return pool
}

func ClearResultTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from race_result")
}

func ClearRaceEntryTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from race_entry")
}

func ClearRaceTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from race")
}

func ClearVehicleTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from vehicle")
}

func ClearTeamTable(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from team")
}

func ClearAllTables(pool *pgxpool.Pool) {
	ClearResultTable(pool)
	ClearRaceEntryTable(pool)
	ClearRaceTable(pool)
	ClearVehicleTable(pool)
	ClearTeamTable(pool)
}
