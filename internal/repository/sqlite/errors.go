package sqlite

import (
	"database/sql"
	"errors"

	modernc "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// errorCode returns the extended result code of err, or 0 when err does not
// come from the SQLite engine.
func errorCode(err error) int {
	var sqliteErr *modernc.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()
	}
	return 0
}

// isUniqueViolation reports primary key and unique index conflicts alike.
func isUniqueViolation(err error) bool {
	switch errorCode(err) {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	return errorCode(err) == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
