package sqlstore

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/sakif/eduqa/internal/repository"
)

const pgUniqueViolation = "23505"

// uniqueIndexErrors maps unique index names to the repository error they mean.
var uniqueIndexErrors = map[string]error{
	"ux_users_email":     repository.ErrDuplicateEmail,
	"ux_users_username":  repository.ErrDuplicateUsername,
	"ux_categories_name": repository.ErrDuplicateCategory,
}

// uniqueViolation reports whether err is a unique-constraint failure and
// returns text that names the violated index. Postgres reports the index
// name directly; SQLite puts it in the message ("index 'ux_users_email'").
func uniqueViolation(err error) (string, bool) {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return sqliteErr.Error(), true
		}
		return "", false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// translateUnique returns the repository duplicate error for err, or err
// unchanged if it is not a known uniqueness violation.
func translateUnique(err error) error {
	detail, ok := uniqueViolation(err)
	if !ok {
		return err
	}
	for index, dup := range uniqueIndexErrors {
		if strings.Contains(detail, index) {
			return dup
		}
	}
	return err
}
