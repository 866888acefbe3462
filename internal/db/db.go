package db

import (
	"context"
	"fmt"
)

// Logical field types accepted over the API. Everything else is rejected
// before any DDL is attempted.
const (
	TypeString     = "string"
	TypeText       = "text"
	TypeInteger    = "integer"
	TypeBigInteger = "bigInteger"
	TypeFloat      = "float"
	TypeDecimal    = "decimal"
	TypeBoolean    = "boolean"
	TypeDate       = "date"
	TypeTime       = "time"
	TypeDateTime   = "datetime"
	TypeTimestamp  = "timestamp"
	TypeJSON       = "json"
	TypeUUID       = "uuid"
	TypeCSV        = "csv"
	TypeFile       = "file"
	TypeM2O        = "m2o"
	TypeO2M        = "o2m"
	TypeAlias      = "alias"
)

var logicalTypes = map[string]struct{}{
	TypeString: {}, TypeText: {}, TypeInteger: {}, TypeBigInteger: {},
	TypeFloat: {}, TypeDecimal: {}, TypeBoolean: {}, TypeDate: {},
	TypeTime: {}, TypeDateTime: {}, TypeTimestamp: {}, TypeJSON: {},
	TypeUUID: {}, TypeCSV: {}, TypeFile: {}, TypeM2O: {}, TypeO2M: {},
	TypeAlias: {},
}

// KnownType reports whether t is part of the closed logical type set.
func KnownType(t string) bool {
	_, ok := logicalTypes[t]
	return ok
}

// HasPhysicalColumn reports whether a field of logical type t is backed by a
// real column. o2m and alias fields live only in the metadata store.
func HasPhysicalColumn(t string) bool {
	return t != TypeO2M && t != TypeAlias && t != ""
}

// Column is the inspector's view of one physical column.
type Column struct {
	Table      string
	Name       string
	Type       string // logical type mapped back from NativeType
	NativeType string
	IsNullable bool
	Default    *string
	MaxLength  *int
	Comment    string
}

// ColumnSpec describes the column a field wants to exist as.
type ColumnSpec struct {
	Name       string
	Type       string // logical type
	IsNullable bool
	Default    any
	MaxLength  *int
	Comment    string
}

// Inspector is read-only reflection over the live database.
type Inspector interface {
	HasTable(ctx context.Context, table string) (bool, error)
	ListTables(ctx context.Context) ([]string, error)
	HasColumn(ctx context.Context, table, column string) (bool, error)
	ColumnInfo(ctx context.Context, table, column string) (*Column, error)
	ListColumns(ctx context.Context, table string) ([]Column, error)
}

// Executor turns column specs into engine-native DDL and runs it.
// Implementations isolate every dialect difference; callers never branch on
// the engine.
type Executor interface {
	CreateTable(ctx context.Context, table string, cols []ColumnSpec) error
	AddColumn(ctx context.Context, table string, spec ColumnSpec) error
	AlterColumn(ctx context.Context, table string, spec ColumnSpec) error
	DropColumn(ctx context.Context, table, column string) error
	CreateIndex(ctx context.Context, table string, unique bool, columns ...string) error
	DropIndex(ctx context.Context, table string, columns ...string) error
}

// New returns the inspector/executor pair for the given engine.
func New(engine string, conn *Conn) (Inspector, Executor, error) {
	switch engine {
	case EnginePostgres:
		return &pgInspector{db: conn.DB}, &pgExecutor{db: conn.DB}, nil
	case EngineMySQL:
		return &myInspector{db: conn.DB, schema: conn.Database}, &myExecutor{db: conn.DB}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported engine: %s", engine)
	}
}
