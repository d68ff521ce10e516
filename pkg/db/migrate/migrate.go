package migrate

import (
	"embed"
	"errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrations embed.FS

// MigrateDB applies the embedded migrations to the database at dbURI
func MigrateDB(dbURI string) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, toDriverURL(dbURI))
	if err != nil {
		return err
	}
	defer m.Close()
	return up(m)
}

// MigrateDBFromSource applies the migrations found at sourceURL
// (for example file:///migrations)
func MigrateDBFromSource(sourceURL, dbURI string) error {
	m, err := migrate.New(sourceURL, toDriverURL(dbURI))
	if err != nil {
		return err
	}
	defer m.Close()
	return up(m)
}

func up(m *migrate.Migrate) error {
	err := m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// the pgx/v5 driver registers itself for the pgx5 scheme
func toDriverURL(dbURI string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dbURI, prefix) {
			return "pgx5://" + strings.TrimPrefix(dbURI, prefix)
		}
	}
	return dbURI
}
