package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type pgInspector struct {
	db *sql.DB
}

func pgLogicalType(native string) string {
	switch strings.ToLower(native) {
	case "character varying", "character":
		return TypeString
	case "text":
		return TypeText
	case "integer", "smallint":
		return TypeInteger
	case "bigint":
		return TypeBigInteger
	case "double precision", "real":
		return TypeFloat
	case "numeric":
		return TypeDecimal
	case "boolean":
		return TypeBoolean
	case "date":
		return TypeDate
	case "time without time zone", "time with time zone":
		return TypeTime
	case "timestamp without time zone":
		return TypeDateTime
	case "timestamp with time zone":
		return TypeTimestamp
	case "json", "jsonb":
		return TypeJSON
	case "uuid":
		return TypeUUID
	default:
		// unmapped engine types surface as-is so ghost columns stay visible
		return native
	}
}

func (i *pgInspector) HasTable(ctx context.Context, table string) (bool, error) {
	var n int
	err := i.db.QueryRowContext(ctx, `
		SELECT count(*) FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1`,
		strings.ToLower(table)).Scan(&n)
	return n > 0, err
}

func (i *pgInspector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
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

func (i *pgInspector) HasColumn(ctx context.Context, table, column string) (bool, error) {
	var n int
	err := i.db.QueryRowContext(ctx, `
		SELECT count(*) FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2`,
		strings.ToLower(table), strings.ToLower(column)).Scan(&n)
	return n > 0, err
}

const pgColumnQuery = `
	SELECT c.table_name, c.column_name, c.data_type, c.is_nullable,
	       c.column_default, c.character_maximum_length,
	       coalesce(pgd.description, '')
	FROM information_schema.columns c
	LEFT JOIN pg_catalog.pg_statio_all_tables st
	       ON st.schemaname = c.table_schema AND st.relname = c.table_name
	LEFT JOIN pg_catalog.pg_description pgd
	       ON pgd.objoid = st.relid AND pgd.objsubid = c.ordinal_position
	WHERE c.table_schema = 'public' AND c.table_name = $1`

func (i *pgInspector) ColumnInfo(ctx context.Context, table, column string) (*Column, error) {
	row := i.db.QueryRowContext(ctx, pgColumnQuery+` AND c.column_name = $2`,
		strings.ToLower(table), strings.ToLower(column))
	col, err := scanPgColumn(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("column info %s.%s: %w", table, column, err)
	}
	return col, nil
}

func (i *pgInspector) ListColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := i.db.QueryContext(ctx, pgColumnQuery+` ORDER BY c.ordinal_position`,
		strings.ToLower(table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Column
	for rows.Next() {
		col, err := scanPgColumn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *col)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPgColumn(r rowScanner) (*Column, error) {
	var (
		col      Column
		nullable string
		def      sql.NullString
		maxLen   sql.NullInt64
	)
	if err := r.Scan(&col.Table, &col.Name, &col.NativeType, &nullable, &def, &maxLen, &col.Comment); err != nil {
		return nil, err
	}
	col.Type = pgLogicalType(col.NativeType)
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
