package db

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// SchemaMutationError carries the engine's native message for a rejected DDL
// statement. The statement is kept for logging; it never reaches API clients.
type SchemaMutationError struct {
	Statement string
	Err       error
}

func (e *SchemaMutationError) Error() string {
	return "schema mutation rejected: " + e.Err.Error()
}

func (e *SchemaMutationError) Unwrap() error { return e.Err }

func mutationErr(stmt string, err error) error {
	if err == nil {
		return nil
	}
	return &SchemaMutationError{Statement: stmt, Err: err}
}

// IsDuplicate reports whether err means the object already exists
// (duplicate column 42701/1060, duplicate object 42710, duplicate key name 1061).
func IsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42701" || pgErr.Code == "42710" || pgErr.Code == "42P07"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1060 || myErr.Number == 1061 || myErr.Number == 1050
	}
	// fallback by phrase, other objects report it differently
	e := strings.ToLower(err.Error())
	return strings.Contains(e, "already exists") || strings.Contains(e, "duplicate")
}

// IsCallerError reports whether a rejected statement is correctable by the
// caller: duplicate or missing objects, syntax/access-rule violations (pg
// class 42), bad casts and out-of-range data (pg class 22, mysql 1264/1292/
// 1366). Connection loss and resource exhaustion are not the caller's fault.
func IsCallerError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "42") || strings.HasPrefix(pgErr.Code, "22")
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1050, 1054, 1060, 1061, 1091, 1146, 1264, 1292, 1366:
			return true
		}
		return false
	}
	return IsDuplicate(err) || IsUndefined(err)
}

// IsUndefined reports whether err means the column or table is missing
// (undefined column 42703, undefined table 42P01, mysql 1054/1091/1146).
func IsUndefined(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42703" || pgErr.Code == "42P01"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1054 || myErr.Number == 1091 || myErr.Number == 1146
	}
	e := strings.ToLower(err.Error())
	return strings.Contains(e, "does not exist") || strings.Contains(e, "unknown column")
}
