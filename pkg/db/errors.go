package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the services react to.
const (
	stateUniqueViolation      = "23505"
	stateSerializationFailure = "40001"
	stateDeadlockDetected     = "40P01"
)

func asPg(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if err == nil || !errors.As(err, &pgErr) {
		return nil, false
	}
	return pgErr, true
}

// IsTxConflict reports a transaction Postgres aborted so another could win.
func IsTxConflict(err error) bool {
	pgErr, ok := asPg(err)
	return ok && (pgErr.Code == stateSerializationFailure || pgErr.Code == stateDeadlockDetected)
}

// IsUniqueViolation reports a unique constraint violation, restricted to
// constraint when it is non-empty. SQLite names the indexed columns rather
// than the constraint, so there any UNIQUE failure matches.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	if pgErr, ok := asPg(err); ok {
		return pgErr.Code == stateUniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return true
	case constraint != "":
		return strings.Contains(msg, constraint)
	}
	return strings.Contains(msg, "duplicate key value")
}
