package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLSTATE values the order pipeline reacts to.
const (
	sqlStateUniqueViolation      = "23505"
	sqlStateCheckViolation       = "23514"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateQueryCanceled        = "57014"
)

// stockCheckConstraint guards product_variants.stock >= 0.
const stockCheckConstraint = "chk_product_variants_stock_nonnegative"

// pgFields is the subset of a Postgres error shared by pgx and lib/pq.
type pgFields struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

func postgresFields(err error) (pgFields, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgFields{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pgFields{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}, true
	}
	return pgFields{}, false
}

// FromStorage wraps a database error with the code the API should surface.
// Typed errors pass through unchanged. A violated stock CHECK becomes
// INSUFFICIENT_STOCK, unique violations become CONFLICT and transient
// failures (serialization, deadlock, cancellation) become DEPENDENCY_ERROR.
func FromStorage(err error, message string) *Error {
	if err == nil {
		return nil
	}
	if typed := As(err); typed != nil {
		return typed
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Wrap(CodeDependency, err, message)
	}

	fields, ok := postgresFields(err)
	if !ok {
		if strings.Contains(err.Error(), "CHECK constraint failed: "+stockCheckConstraint) {
			return Wrap(CodeInsufficientStock, err, "insufficient stock")
		}
		return Wrap(CodeInternal, err, message)
	}
	switch fields.Code {
	case sqlStateCheckViolation:
		if fields.Constraint == stockCheckConstraint {
			return Wrap(CodeInsufficientStock, err, "insufficient stock")
		}
	case sqlStateUniqueViolation:
		return Wrap(CodeConflict, err, message)
	case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateQueryCanceled:
		return Wrap(CodeDependency, err, message)
	}
	return Wrap(CodeInternal, err, message)
}

// ErrorDump is the internal-only view of an error written to logs.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

// Dump unrolls err for logging, including Postgres diagnostics when present.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	if fields, ok := postgresFields(err); ok {
		d.PGCode = fields.Code
		d.PGConstraint = fields.Constraint
		d.PGTable = fields.Table
		d.PGColumn = fields.Column
		d.PGDetail = fields.Detail
		d.PGMessage = fields.Message
	}
	return d
}
