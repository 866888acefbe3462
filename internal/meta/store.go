// Package meta is the metadata store: reserved system tables holding the
// per-field and per-collection attributes that native DDL cannot express.
package meta

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"tabula/internal/db"

	"github.com/oklog/ulid/v2"
)

const (
	TableCollections = "tabula_collections"
	TableFields      = "tabula_fields"
	TableFiles       = "tabula_files"
)

// StoreError wraps metadata-table failures (constraint violations and the
// like). The physical schema mutation that may have preceded the failed write
// is never rolled back here.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "metadata store: " + e.Op + ": " + e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

type Store struct {
	db     *sql.DB
	engine string

	mu      sync.Mutex
	entropy io.Reader
}

func NewStore(conn *db.Conn) *Store {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Store{
		db:      conn.DB,
		engine:  conn.Engine,
		entropy: ulid.Monotonic(src, 0),
	}
}

func (s *Store) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(q string) string {
	if s.engine != db.EnginePostgres {
		return q
	}
	var sb strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// EnsureTables creates the system tables on first start. Creation goes
// through the regular DDL executor so the definitions stay engine-neutral.
func (s *Store) EnsureTables(ctx context.Context, insp db.Inspector, exec db.Executor) error {
	intp := func(n int) *int { return &n }

	tables := map[string][]db.ColumnSpec{
		TableCollections: {
			{Name: "collection", Type: db.TypeString, MaxLength: intp(64)},
			{Name: "icon", Type: db.TypeString, IsNullable: true, MaxLength: intp(64)},
			{Name: "note", Type: db.TypeText, IsNullable: true},
			{Name: "display_template", Type: db.TypeString, IsNullable: true},
			{Name: "sort_field", Type: db.TypeString, IsNullable: true, MaxLength: intp(64)},
		},
		TableFields: {
			{Name: "id", Type: db.TypeString, MaxLength: intp(26)},
			{Name: "collection", Type: db.TypeString, MaxLength: intp(64)},
			{Name: "field", Type: db.TypeString, MaxLength: intp(64)},
			{Name: "type", Type: db.TypeString, IsNullable: true, MaxLength: intp(32)},
			{Name: "meta", Type: db.TypeText, IsNullable: true},
		},
		TableFiles: {
			{Name: "id", Type: db.TypeString, MaxLength: intp(26)},
			{Name: "storage", Type: db.TypeString, MaxLength: intp(64)},
			{Name: "storage_key", Type: db.TypeString},
			{Name: "filename", Type: db.TypeString},
			{Name: "mime", Type: db.TypeString, IsNullable: true},
			{Name: "size", Type: db.TypeBigInteger},
			{Name: "hash", Type: db.TypeString, IsNullable: true, MaxLength: intp(64)},
			{Name: "uploaded_at", Type: db.TypeTimestamp},
		},
	}

	for table, cols := range tables {
		ok, err := insp.HasTable(ctx, table)
		if err != nil {
			return storeErr("ensure "+table, err)
		}
		if ok {
			continue
		}
		if err := exec.CreateTable(ctx, table, cols); err != nil {
			return storeErr("ensure "+table, err)
		}
	}

	// the engine enforces (collection, field) uniqueness so a cross-process
	// double create fails on the second insert instead of forking duplicates
	if err := exec.CreateIndex(ctx, TableFields, true, "collection", "field"); err != nil && !db.IsDuplicate(err) {
		return storeErr("ensure field index", err)
	}
	return nil
}

// FieldRow is one metadata record keyed by (collection, field). Type is kept
// here as well so metadata-only fields (alias, o2m) have one.
type FieldRow struct {
	ID         string
	Collection string
	Field      string
	Type       string
	Meta       map[string]any
}

func encodeMeta(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func decodeMeta(raw sql.NullString) map[string]any {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw.String), &m); err != nil {
		return map[string]any{}
	}
	return m
}

// GetField returns nil (not an error) when no row exists.
func (s *Store) GetField(ctx context.Context, collection, field string) (*FieldRow, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, collection, field, type, meta FROM `+TableFields+
			` WHERE collection = ? AND field = ?`), collection, field)

	var (
		fr   FieldRow
		typ  sql.NullString
		meta sql.NullString
	)
	err := row.Scan(&fr.ID, &fr.Collection, &fr.Field, &typ, &meta)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get field", err)
	}
	fr.Type = typ.String
	fr.Meta = decodeMeta(meta)
	return &fr, nil
}

// ListFields returns all rows, restricted to one collection when given.
func (s *Store) ListFields(ctx context.Context, collection string) ([]FieldRow, error) {
	q := `SELECT id, collection, field, type, meta FROM ` + TableFields
	args := []any{}
	if collection != "" {
		q += ` WHERE collection = ?`
		args = append(args, collection)
	}
	q += ` ORDER BY collection, field`

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, storeErr("list fields", err)
	}
	defer rows.Close()

	var out []FieldRow
	for rows.Next() {
		var (
			fr   FieldRow
			typ  sql.NullString
			meta sql.NullString
		)
		if err := rows.Scan(&fr.ID, &fr.Collection, &fr.Field, &typ, &meta); err != nil {
			return nil, storeErr("list fields", err)
		}
		fr.Type = typ.String
		fr.Meta = decodeMeta(meta)
		out = append(out, fr)
	}
	return out, storeErr("list fields", rows.Err())
}

// UpsertField creates the row if absent, otherwise patches type/meta.
func (s *Store) UpsertField(ctx context.Context, row FieldRow) error {
	existing, err := s.GetField(ctx, row.Collection, row.Field)
	if err != nil {
		return err
	}

	if existing == nil {
		metaJSON, err := encodeMeta(row.Meta)
		if err != nil {
			return storeErr("upsert field", err)
		}
		_, err = s.db.ExecContext(ctx, s.rebind(
			`INSERT INTO `+TableFields+` (id, collection, field, type, meta) VALUES (?, ?, ?, ?, ?)`),
			s.NewID(), row.Collection, row.Field, nullable(row.Type), metaJSON)
		return storeErr("upsert field", err)
	}

	// patch semantics: merge meta keys, keep existing type unless given
	merged := existing.Meta
	for k, v := range row.Meta {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	typ := existing.Type
	if row.Type != "" {
		typ = row.Type
	}
	metaJSON, err := encodeMeta(merged)
	if err != nil {
		return storeErr("upsert field", err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(
		`UPDATE `+TableFields+` SET type = ?, meta = ? WHERE collection = ? AND field = ?`),
		nullable(typ), metaJSON, row.Collection, row.Field)
	return storeErr("upsert field", err)
}

// DeleteField removes the row; deleting an absent row is not an error.
func (s *Store) DeleteField(ctx context.Context, collection, field string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM `+TableFields+` WHERE collection = ? AND field = ?`), collection, field)
	return storeErr("delete field", err)
}

// DeleteCollectionFields removes every metadata row of a collection.
func (s *Store) DeleteCollectionFields(ctx context.Context, collection string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM `+TableFields+` WHERE collection = ?`), collection)
	return storeErr("delete collection fields", err)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
