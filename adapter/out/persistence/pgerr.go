package persistence

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/apperr"
)

// isUniqueViolation reports whether err is a Postgres unique_violation
// (SQLSTATE 23505), the signal every repository's idempotent-insert path
// uses to detect a concurrent or redelivered duplicate.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// wrapIntegrityOrDB maps a write error to IntegrityViolation when it's a
// unique-constraint hit (spec.md §7), otherwise to a generic DatabaseError.
func wrapIntegrityOrDB(operation, constraint string, err error) error {
	if isUniqueViolation(err) {
		return apperr.IntegrityViolation(constraint, err)
	}
	return apperr.DatabaseError(operation, err)
}
