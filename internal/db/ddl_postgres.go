package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type pgExecutor struct {
	db *sql.DB
}

func pgType(spec ColumnSpec) (string, error) {
	switch spec.Type {
	case TypeString:
		if spec.MaxLength != nil && *spec.MaxLength > 0 {
			return fmt.Sprintf("varchar(%d)", *spec.MaxLength), nil
		}
		return "varchar(255)", nil
	case TypeText, TypeCSV:
		return "text", nil
	case TypeInteger:
		return "integer", nil
	case TypeBigInteger:
		return "bigint", nil
	case TypeFloat:
		return "double precision", nil
	case TypeDecimal:
		return "numeric(18,4)", nil
	case TypeBoolean:
		return "boolean", nil
	case TypeDate:
		return "date", nil
	case TypeTime:
		return "time", nil
	case TypeDateTime:
		return "timestamp", nil
	case TypeTimestamp:
		return "timestamp with time zone", nil
	case TypeJSON:
		return "jsonb", nil
	case TypeUUID:
		return "uuid", nil
	case TypeFile, TypeM2O:
		// relational values are record ids (ulid strings)
		return "varchar(26)", nil
	default:
		return "", fmt.Errorf("type %q has no column representation", spec.Type)
	}
}

func pgColumnDef(spec ColumnSpec) (string, error) {
	typ, err := pgType(spec)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(pgIdent(spec.Name) + " " + typ)
	if !spec.IsNullable {
		sb.WriteString(" not null")
	}
	if spec.Default != nil {
		sb.WriteString(" default " + quoteDefault(spec.Default))
	}
	return sb.String(), nil
}

func (e *pgExecutor) exec(ctx context.Context, stmt string) error {
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return mutationErr(stmt, err)
	}
	return nil
}

func (e *pgExecutor) CreateTable(ctx context.Context, table string, cols []ColumnSpec) error {
	defs := make([]string, 0, len(cols))
	for i, c := range cols {
		def, err := pgColumnDef(c)
		if err != nil {
			return err
		}
		if i == 0 {
			// first column is the primary key by convention
			def += " primary key"
		}
		defs = append(defs, def)
	}
	stmt := fmt.Sprintf("create table %s (\n  %s\n)", pgIdent(table), strings.Join(defs, ",\n  "))
	return e.exec(ctx, stmt)
}

func (e *pgExecutor) AddColumn(ctx context.Context, table string, spec ColumnSpec) error {
	def, err := pgColumnDef(spec)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("alter table %s add column %s", pgIdent(table), def)
	if err := e.exec(ctx, stmt); err != nil {
		return err
	}
	if spec.Comment != "" {
		return e.exec(ctx, fmt.Sprintf("comment on column %s.%s is %s",
			pgIdent(table), pgIdent(spec.Name), quoteDefault(spec.Comment)))
	}
	return nil
}

// AlterColumn issues the type/null/default changes as separate statements in
// one transaction; postgres DDL is transactional.
func (e *pgExecutor) AlterColumn(ctx context.Context, table string, spec ColumnSpec) error {
	typ, err := pgType(spec)
	if err != nil {
		return err
	}
	tbl, col := pgIdent(table), pgIdent(spec.Name)

	stmts := []string{
		fmt.Sprintf("alter table %s alter column %s type %s using %s::%s", tbl, col, typ, col, typ),
	}
	if spec.IsNullable {
		stmts = append(stmts, fmt.Sprintf("alter table %s alter column %s drop not null", tbl, col))
	} else {
		stmts = append(stmts, fmt.Sprintf("alter table %s alter column %s set not null", tbl, col))
	}
	if spec.Default != nil {
		stmts = append(stmts, fmt.Sprintf("alter table %s alter column %s set default %s",
			tbl, col, quoteDefault(spec.Default)))
	} else {
		stmts = append(stmts, fmt.Sprintf("alter table %s alter column %s drop default", tbl, col))
	}
	if spec.Comment != "" {
		stmts = append(stmts, fmt.Sprintf("comment on column %s.%s is %s",
			tbl, col, quoteDefault(spec.Comment)))
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return mutationErr(stmt, err)
		}
	}
	return tx.Commit()
}

func (e *pgExecutor) DropColumn(ctx context.Context, table, column string) error {
	return e.exec(ctx, fmt.Sprintf("alter table %s drop column if exists %s",
		pgIdent(table), pgIdent(column)))
}

func (e *pgExecutor) CreateIndex(ctx context.Context, table string, unique bool, columns ...string) error {
	kind := "index"
	if unique {
		kind = "unique index"
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pgIdent(c)
	}
	return e.exec(ctx, fmt.Sprintf("create %s if not exists %s on %s(%s)",
		kind, pgIdent(indexName(table, columns...)), pgIdent(table), strings.Join(quoted, ", ")))
}

func (e *pgExecutor) DropIndex(ctx context.Context, table string, columns ...string) error {
	return e.exec(ctx, fmt.Sprintf("drop index if exists %s", pgIdent(indexName(table, columns...))))
}

func indexName(table string, columns ...string) string {
	return strings.ToLower(table + "_" + strings.Join(columns, "_") + "_idx")
}
