package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/mbolis/survey-builder/fault"
)

// Translate maps driver errors onto fault sentinels so that callers never
// need to know which database is behind the store.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fault.ErrNotFound
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return errors.Join(fault.ErrUniqueViolation, err)
		case sqlite3.ErrConstraintForeignKey:
			return errors.Join(fault.ErrNotFound, err)
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return errors.Join(fault.ErrUniqueViolation, err)
		case "23503":
			return errors.Join(fault.ErrNotFound, err)
		}
	}
	return err
}

// IsUniqueViolation reports whether err was raised by a unique constraint.
func IsUniqueViolation(err error) bool {
	return errors.Is(Translate(err), fault.ErrUniqueViolation)
}
