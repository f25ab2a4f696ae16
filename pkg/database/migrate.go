package database

import (
	"database/sql"
	"embed"
	stderr "errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// Migrate brings the schema of the database described by opts up to date.
// The memory driver has no schema so this is a no-op for it.
func Migrate(opts *Options) error {
	opts.SetDefaults()

	var (
		db     *sql.DB
		driver migratedb.Driver
		dir    string
		err    error
	)

	switch opts.Driver() {
	case DriverMemory:
		return nil
	case DriverPostgres:
		dir = "migrations/postgres"
		db, err = sql.Open("postgres", opts.resolvedURL())
		if err != nil {
			return err
		}
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	case DriverSQLite:
		dir = "migrations/sqlite"
		db, err = sql.Open("sqlite3", sqliteDSN(opts.sqlitePath()))
		if err != nil {
			return err
		}
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	default:
		return errUnknownDriver(opts.URL)
	}
	if err != nil {
		db.Close()
		return err
	}
	defer driver.Close()

	sub, err := fs.Sub(migrations, dir)
	if err != nil {
		return err
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, opts.Driver(), driver)
	if err != nil {
		return err
	}

	err = m.Up()
	if stderr.Is(err, migrate.ErrNoChange) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to migrate %s database: %w", opts.Driver(), err)
	}
	return nil
}
