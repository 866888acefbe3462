package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"tabula/internal/access"
	"tabula/internal/collections"
	"tabula/internal/db"
	"tabula/internal/fields"
	"tabula/internal/meta"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBackend fakes the inspector, executor and metadata store behind the
// services so handler tests run without a database.
type memBackend struct {
	tables map[string]map[string]db.Column
	order  map[string][]string
	fields map[string]*meta.FieldRow
	colls  map[string]meta.CollectionRow
}

func newMemBackend(tables ...string) *memBackend {
	b := &memBackend{
		tables: map[string]map[string]db.Column{},
		order:  map[string][]string{},
		fields: map[string]*meta.FieldRow{},
		colls:  map[string]meta.CollectionRow{},
	}
	for _, t := range tables {
		b.tables[t] = map[string]db.Column{}
	}
	return b
}

func (b *memBackend) set(table string, col db.Column) {
	if b.tables[table] == nil {
		b.tables[table] = map[string]db.Column{}
	}
	if _, ok := b.tables[table][col.Name]; !ok {
		b.order[table] = append(b.order[table], col.Name)
	}
	col.Table = table
	b.tables[table][col.Name] = col
}

func (b *memBackend) HasTable(_ context.Context, table string) (bool, error) {
	_, ok := b.tables[table]
	return ok, nil
}

func (b *memBackend) ListTables(context.Context) ([]string, error) {
	var out []string
	for t := range b.tables {
		out = append(out, t)
	}
	return out, nil
}

func (b *memBackend) HasColumn(_ context.Context, table, column string) (bool, error) {
	_, ok := b.tables[table][column]
	return ok, nil
}

func (b *memBackend) ColumnInfo(_ context.Context, table, column string) (*db.Column, error) {
	col, ok := b.tables[table][column]
	if !ok {
		return nil, nil
	}
	return &col, nil
}

func (b *memBackend) ListColumns(_ context.Context, table string) ([]db.Column, error) {
	var out []db.Column
	for _, name := range b.order[table] {
		out = append(out, b.tables[table][name])
	}
	return out, nil
}

func (b *memBackend) CreateTable(_ context.Context, table string, cols []db.ColumnSpec) error {
	b.tables[table] = map[string]db.Column{}
	for _, c := range cols {
		b.set(table, db.Column{Name: c.Name, Type: c.Type, NativeType: c.Type, IsNullable: c.IsNullable})
	}
	return nil
}

func (b *memBackend) AddColumn(_ context.Context, table string, spec db.ColumnSpec) error {
	b.set(table, db.Column{
		Name: spec.Name, Type: spec.Type, NativeType: spec.Type,
		IsNullable: spec.IsNullable, MaxLength: spec.MaxLength, Comment: spec.Comment,
	})
	return nil
}

func (b *memBackend) AlterColumn(ctx context.Context, table string, spec db.ColumnSpec) error {
	return b.AddColumn(ctx, table, spec)
}

func (b *memBackend) DropColumn(_ context.Context, table, column string) error {
	delete(b.tables[table], column)
	kept := b.order[table][:0]
	for _, name := range b.order[table] {
		if name != column {
			kept = append(kept, name)
		}
	}
	b.order[table] = kept
	return nil
}

func (b *memBackend) CreateIndex(context.Context, string, bool, ...string) error { return nil }
func (b *memBackend) DropIndex(context.Context, string, ...string) error         { return nil }

func (b *memBackend) GetField(_ context.Context, collection, field string) (*meta.FieldRow, error) {
	row, ok := b.fields[collection+"."+field]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (b *memBackend) ListFields(_ context.Context, collection string) ([]meta.FieldRow, error) {
	var out []meta.FieldRow
	for _, row := range b.fields {
		if collection == "" || row.Collection == collection {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (b *memBackend) UpsertField(_ context.Context, row meta.FieldRow) error {
	k := row.Collection + "." + row.Field
	existing, ok := b.fields[k]
	if !ok {
		if row.Meta == nil {
			row.Meta = map[string]any{}
		}
		b.fields[k] = &row
		return nil
	}
	for key, v := range row.Meta {
		if v == nil {
			delete(existing.Meta, key)
			continue
		}
		existing.Meta[key] = v
	}
	if row.Type != "" {
		existing.Type = row.Type
	}
	return nil
}

func (b *memBackend) DeleteField(_ context.Context, collection, field string) error {
	delete(b.fields, collection+"."+field)
	return nil
}

func (b *memBackend) GetCollection(_ context.Context, collection string) (*meta.CollectionRow, error) {
	row, ok := b.colls[collection]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (b *memBackend) ListCollections(context.Context) ([]meta.CollectionRow, error) {
	var out []meta.CollectionRow
	for _, r := range b.colls {
		out = append(out, r)
	}
	return out, nil
}

func (b *memBackend) UpsertCollection(_ context.Context, row meta.CollectionRow) error {
	b.colls[row.Collection] = row
	return nil
}

func newTestRouter(t *testing.T, tables ...string) (*gin.Engine, *memBackend) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := newMemBackend(tables...)
	a := &API{
		Fields:      fields.NewService(b, b, b, access.AllowAll{}, nil),
		Collections: collections.NewService(b, b, b, nil),
	}
	return BuildRouter(a), b
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestFieldLifecycleOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t, "articles")

	// create returns the merged read-after-write view
	w := do(r, http.MethodPost, "/fields/articles", map[string]any{
		"field":  "title",
		"type":   "string",
		"schema": map[string]any{"is_nullable": false, "max_length": 120},
		"meta":   map[string]any{"interface": "input"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "title", data["field"])
	assert.Equal(t, "string", data["type"])
	assert.Equal(t, "input", data["meta"].(map[string]any)["interface"])
	schema := data["schema"].(map[string]any)
	assert.Equal(t, false, schema["is_nullable"])

	// listed
	w = do(r, http.MethodGet, "/fields/articles", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)["data"].([]any)
	require.Len(t, list, 1)

	// meta-only patch
	w = do(r, http.MethodPatch, "/fields/articles/title", map[string]any{
		"meta": map[string]any{"note": "headline"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data = decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "headline", data["meta"].(map[string]any)["note"])

	// delete, then the field is indistinguishable from never existing
	w = do(r, http.MethodDelete, "/fields/articles/title", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodGet, "/fields/articles/title", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	errs := decode(t, w)["errors"].([]any)
	assert.Equal(t, ErrForbidden, errs[0].(map[string]any)["code"])
}

func TestMissingCollectionIs404(t *testing.T) {
	r, _ := newTestRouter(t, "articles")

	w := do(r, http.MethodGet, "/fields/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	errs := decode(t, w)["errors"].([]any)
	assert.Equal(t, ErrNotFound, errs[0].(map[string]any)["code"])

	// system tables are hidden behind the same guard
	w = do(r, http.MethodGet, "/fields/tabula_fields", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateFieldValidationOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t, "articles")

	w := do(r, http.MethodPost, "/fields/articles", map[string]any{
		"field":  "title",
		"type":   "blob",
		"schema": map[string]any{},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	errs := decode(t, w)["errors"].([]any)
	e := errs[0].(map[string]any)
	assert.Equal(t, ErrInvalidPayload, e["code"])
	assert.Equal(t, "title", e["field"])
}

func TestBulkPatchOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t, "articles")

	for _, name := range []string{"title", "status"} {
		w := do(r, http.MethodPost, "/fields/articles", map[string]any{
			"field": name, "type": "string",
			"schema": map[string]any{}, "meta": map[string]any{},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := do(r, http.MethodPatch, "/fields/articles", []map[string]any{
		{"field": "title", "meta": map[string]any{"sort": 1}},
		{"field": "status", "meta": map[string]any{"sort": 2}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w)["data"].([]any)
	require.Len(t, data, 2)

	// a non-array body is rejected up front
	w = do(r, http.MethodPatch, "/fields/articles", map[string]any{"field": "title"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRespondErrorClassifiesSchemaFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// caller-correctable rejection: duplicate column
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, &db.SchemaMutationError{
		Statement: "alter table articles add column title varchar(255)",
		Err:       &pgconn.PgError{Code: "42701", Message: "column already exists"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	errs := decode(t, w)["errors"].([]any)
	assert.Equal(t, ErrSchemaMutation, errs[0].(map[string]any)["code"])

	// engine failure mid-statement is not the caller's fault
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	respondError(c, &db.SchemaMutationError{
		Statement: "alter table articles add column title varchar(255)",
		Err:       errors.New("write: broken pipe"),
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	errs = decode(t, w)["errors"].([]any)
	assert.Equal(t, ErrSchemaMutation, errs[0].(map[string]any)["code"])
}

func TestCollectionsOverHTTP(t *testing.T) {
	r, b := newTestRouter(t)

	w := do(r, http.MethodPost, "/collections", map[string]any{
		"collection": "articles", "icon": "article",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	_, ok := b.tables["articles"]
	assert.True(t, ok)

	w = do(r, http.MethodGet, "/collections", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)["data"].([]any)
	require.Len(t, list, 1)
	c := list[0].(map[string]any)
	assert.Equal(t, "articles", c["collection"])
	assert.Equal(t, "article", c["icon"])

	// missing name is a 400
	w = do(r, http.MethodPost, "/collections", map[string]any{"icon": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}
