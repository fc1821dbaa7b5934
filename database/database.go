package database

import (
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mbolis/survey-builder/config"
)

// Open connects to the configured database and brings its schema up to date.
func Open(cfg config.Config) (db *sqlx.DB, err error) {
	dsn := cfg.DBUrl
	if cfg.DBDriver == "sqlite3" {
		dsn = sqliteDSN(dsn)
	}

	db, err = sqlx.Open(cfg.DBDriver, dsn)
	if err != nil {
		return
	}

	// db tuning options
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	err = migrateDB(db, cfg.DBDriver)
	if err != nil {
		db.Close()
		return
	}

	return
}

// sqliteDSN adds the per-connection pragmas to a SQLite file path.
func sqliteDSN(dsn string) string {
	params := []string{"_foreign_keys=on", "_busy_timeout=5000", "_txlock=immediate"}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range params {
		key := p[:strings.IndexByte(p, '=')]
		if strings.Contains(dsn, key+"=") {
			continue
		}
		dsn += sep + p
		sep = "&"
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	return dsn
}
