package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Postgres SQLSTATE values the settlement paths care about.
const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateCheckViolation      = "23514"
	sqlStateSerialization       = "40001"
	sqlStateDeadlock            = "40P01"
)

// StorageDiagnosis is the driver detail pulled out of a database error.
type StorageDiagnosis struct {
	Message    string   `json:"message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`
	SQLState   string   `json:"sql_state,omitempty"`
	Constraint string   `json:"constraint,omitempty"`
	Table      string   `json:"table,omitempty"`
	Column     string   `json:"column,omitempty"`
	Detail     string   `json:"detail,omitempty"`
}

// Diagnose walks err and collects what the pgx or lib/pq driver reported.
func Diagnose(err error) StorageDiagnosis {
	if err == nil {
		return StorageDiagnosis{}
	}
	d := StorageDiagnosis{Message: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		d.SQLState = pgxErr.Code
		d.Constraint = pgxErr.ConstraintName
		d.Table = pgxErr.TableName
		d.Column = pgxErr.ColumnName
		d.Detail = pgxErr.Detail
		return d
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		d.SQLState = string(pqErr.Code)
		d.Constraint = pqErr.Constraint
		d.Table = pqErr.Table
		d.Column = pqErr.Column
		d.Detail = pqErr.Detail
	}
	return d
}

// Classify turns an untyped error into a typed one. Balance and stock CHECK
// constraints become their settlement codes so a lost race surfaces as the
// same error the conditional update path returns. Typed errors pass through.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if typed := As(err); typed != nil {
		return typed
	}

	d := Diagnose(err)
	state, constraint := d.SQLState, d.Constraint
	if state == "" {
		state, constraint = sqliteState(d.Message)
	}

	switch state {
	case sqlStateCheckViolation:
		switch {
		case strings.HasPrefix(constraint, "chk_wallet_accounts"):
			return Wrap(CodeInsufficientBalance, err, "wallet balance cannot go negative")
		case strings.HasSuffix(constraint, "_stock"):
			return Wrap(CodeStockViolation, err, "stock cannot go negative")
		}
		return Wrap(CodeValidation, err, "value rejected by storage")
	case sqlStateUniqueViolation:
		return Wrap(CodeConflict, err, "record already exists")
	case sqlStateForeignKeyViolation:
		return Wrap(CodeValidation, err, "referenced record does not exist")
	case sqlStateSerialization, sqlStateDeadlock:
		return Wrap(CodeDependency, err, "storage contention, retry")
	}
	return Wrap(CodeInternal, err, "unexpected error")
}

// sqliteState maps the sqlite driver's text errors onto SQLSTATE values so
// tests exercise the same branches. sqlite names CHECK constraints when they
// are declared with CONSTRAINT and otherwise reports the expression.
func sqliteState(msg string) (string, string) {
	switch {
	case strings.Contains(msg, "CHECK constraint failed"):
		_, rest, _ := strings.Cut(msg, "CHECK constraint failed: ")
		return sqlStateCheckViolation, strings.TrimSpace(rest)
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return sqlStateUniqueViolation, ""
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return sqlStateForeignKeyViolation, ""
	}
	return "", ""
}
