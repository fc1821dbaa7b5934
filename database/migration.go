package database

import (
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed migrations
var dbMigrations embed.FS

func migrateDB(db *sqlx.DB, driver string) error {
	src, err := iofs.New(dbMigrations, "migrations/"+driver)
	if err != nil {
		return err
	}

	var dst database.Driver
	switch driver {
	case "postgres":
		dst, err = postgres.WithInstance(db.DB, &postgres.Config{})
	default:
		dst, err = sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	}
	if err != nil {
		return err
	}

	migrator, err := migrate.NewWithInstance("iofs", src, driver, dst)
	if err != nil {
		return err
	}

	err = migrator.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		// db already up to date
		break
	case err != nil:
		return err
	}
	return nil
}
