// Package dbtest opens throwaway databases for tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/mbolis/survey-builder/config"
	"github.com/mbolis/survey-builder/database"
	"github.com/stretchr/testify/require"
)

var seq atomic.Int64

// Open returns a migrated in-memory SQLite database private to t.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	url := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	db, err := database.Open(config.Config{DBDriver: "sqlite3", DBUrl: url})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// Account inserts a staff account and returns its id.
func Account(t testing.TB, db *sqlx.DB, username, role string) int64 {
	t.Helper()

	var id int64
	err := db.QueryRowx(db.Rebind(`
		INSERT INTO account (username, password_hash, role, created_at)
		VALUES (?, '', ?, CURRENT_TIMESTAMP)
		RETURNING id`),
		username, role,
	).Scan(&id)
	require.NoError(t, err)
	return id
}
