package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type myInspector struct {
	db     *sql.DB
	schema string // the connected database name
}

func myLogicalType(native string) string {
	switch strings.ToLower(native) {
	case "varchar", "char":
		return TypeString
	case "text", "mediumtext", "longtext":
		return TypeText
	case "int", "smallint", "mediumint":
		return TypeInteger
	case "bigint":
		return TypeBigInteger
	case "double", "float":
		return TypeFloat
	case "decimal":
		return TypeDecimal
	case "tinyint":
		return TypeBoolean
	case "date":
		return TypeDate
	case "time":
		return TypeTime
	case "datetime":
		return TypeDateTime
	case "timestamp":
		return TypeTimestamp
	case "json":
		return TypeJSON
	default:
		return native
	}
}

func (i *myInspector) HasTable(ctx context.Context, table string) (bool, error) {
	var n int
	err := i.db.QueryRowContext(ctx, `
		SELECT count(*) FROM information_schema.tables
		WHERE table_schema = ? AND table_name = ?`,
		i.schema, strings.ToLower(table)).Scan(&n)
	return n > 0, err
}

func (i *myInspector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`, i.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (i *myInspector) HasColumn(ctx context.Context, table, column string) (bool, error) {
	var n int
	err := i.db.QueryRowContext(ctx, `
		SELECT count(*) FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ? AND column_name = ?`,
		i.schema, strings.ToLower(table), strings.ToLower(column)).Scan(&n)
	return n > 0, err
}

const myColumnQuery = `
	SELECT table_name, column_name, data_type, is_nullable,
	       column_default, character_maximum_length, column_comment
	FROM information_schema.columns
	WHERE table_schema = ? AND table_name = ?`

func (i *myInspector) ColumnInfo(ctx context.Context, table, column string) (*Column, error) {
	row := i.db.QueryRowContext(ctx, myColumnQuery+` AND column_name = ?`,
		i.schema, strings.ToLower(table), strings.ToLower(column))
	col, err := scanMyColumn(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("column info %s.%s: %w", table, column, err)
	}
	return col, nil
}

func (i *myInspector) ListColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := i.db.QueryContext(ctx, myColumnQuery+` ORDER BY ordinal_position`,
		i.schema, strings.ToLower(table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Column
	for rows.Next() {
		col, err := scanMyColumn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *col)
	}
	return out, rows.Err()
}

func scanMyColumn(r rowScanner) (*Column, error) {
	var (
		col      Column
		nullable string
		def      sql.NullString
		maxLen   sql.NullInt64
	)
	if err := r.Scan(&col.Table, &col.Name, &col.NativeType, &nullable, &def, &maxLen, &col.Comment); err != nil {
		return nil, err
	}
	col.Type = myLogicalType(col.NativeType)
	col.IsNullable = strings.EqualFold(nullable, "YES")
	if def.Valid {
		v := def.String
		col.Default = &v
	}
	if maxLen.Valid {
		n := int(maxLen.Int64)
		col.MaxLength = &n
	}
	return &col, nil
}
