package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type myExecutor struct {
	db *sql.DB
}

func myType(spec ColumnSpec) (string, error) {
	switch spec.Type {
	case TypeString:
		if spec.MaxLength != nil && *spec.MaxLength > 0 {
			return fmt.Sprintf("varchar(%d)", *spec.MaxLength), nil
		}
		return "varchar(255)", nil
	case TypeText, TypeCSV:
		return "text", nil
	case TypeInteger:
		return "int", nil
	case TypeBigInteger:
		return "bigint", nil
	case TypeFloat:
		return "double", nil
	case TypeDecimal:
		return "decimal(18,4)", nil
	case TypeBoolean:
		return "tinyint(1)", nil
	case TypeDate:
		return "date", nil
	case TypeTime:
		return "time", nil
	case TypeDateTime:
		return "datetime", nil
	case TypeTimestamp:
		return "timestamp", nil
	case TypeJSON:
		return "json", nil
	case TypeUUID:
		return "char(36)", nil
	case TypeFile, TypeM2O:
		return "varchar(26)", nil
	default:
		return "", fmt.Errorf("type %q has no column representation", spec.Type)
	}
}

func myColumnDef(spec ColumnSpec) (string, error) {
	typ, err := myType(spec)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(myIdent(spec.Name) + " " + typ)
	if !spec.IsNullable {
		sb.WriteString(" not null")
	}
	// mysql rejects defaults on text/json columns
	if spec.Default != nil && typ != "text" && typ != "json" {
		sb.WriteString(" default " + quoteDefault(spec.Default))
	}
	if spec.Comment != "" {
		sb.WriteString(" comment " + quoteDefault(spec.Comment))
	}
	return sb.String(), nil
}

func (e *myExecutor) exec(ctx context.Context, stmt string) error {
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return mutationErr(stmt, err)
	}
	return nil
}

func (e *myExecutor) CreateTable(ctx context.Context, table string, cols []ColumnSpec) error {
	defs := make([]string, 0, len(cols))
	for i, c := range cols {
		def, err := myColumnDef(c)
		if err != nil {
			return err
		}
		if i == 0 {
			def += " primary key"
		}
		defs = append(defs, def)
	}
	stmt := fmt.Sprintf("create table %s (\n  %s\n)", myIdent(table), strings.Join(defs, ",\n  "))
	return e.exec(ctx, stmt)
}

func (e *myExecutor) AddColumn(ctx context.Context, table string, spec ColumnSpec) error {
	def, err := myColumnDef(spec)
	if err != nil {
		return err
	}
	return e.exec(ctx, fmt.Sprintf("alter table %s add column %s", myIdent(table), def))
}

// AlterColumn re-states the full definition; MODIFY COLUMN is how mysql
// changes type, nullability and default in one shot. No transaction: mysql
// DDL commits implicitly.
func (e *myExecutor) AlterColumn(ctx context.Context, table string, spec ColumnSpec) error {
	def, err := myColumnDef(spec)
	if err != nil {
		return err
	}
	return e.exec(ctx, fmt.Sprintf("alter table %s modify column %s", myIdent(table), def))
}

func (e *myExecutor) DropColumn(ctx context.Context, table, column string) error {
	err := e.exec(ctx, fmt.Sprintf("alter table %s drop column %s", myIdent(table), myIdent(column)))
	if err != nil && IsUndefined(err) {
		// no DROP COLUMN IF EXISTS before 8.0 syntax extensions; absent is fine
		return nil
	}
	return err
}

func (e *myExecutor) CreateIndex(ctx context.Context, table string, unique bool, columns ...string) error {
	kind := "index"
	if unique {
		kind = "unique index"
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = myIdent(c)
	}
	return e.exec(ctx, fmt.Sprintf("create %s %s on %s(%s)",
		kind, myIdent(indexName(table, columns...)), myIdent(table), strings.Join(quoted, ", ")))
}

func (e *myExecutor) DropIndex(ctx context.Context, table string, columns ...string) error {
	err := e.exec(ctx, fmt.Sprintf("drop index %s on %s", myIdent(indexName(table, columns...)), myIdent(table)))
	if err != nil && IsUndefined(err) {
		return nil
	}
	return err
}
