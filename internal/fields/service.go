// Package fields is the schema-management core: it decides which part of a
// field definition becomes a real database column, applies the DDL, and keeps
// the metadata store in step with the physical schema.
package fields

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"tabula/internal/access"
	"tabula/internal/db"
	"tabula/internal/meta"

	"go.uber.org/zap"
)

// systemFields is the bookkeeping column set every collection is created
// with. They are invisible to the field API: never listed, never written.
var systemFields = map[string]struct{}{
	"id": {}, "version": {}, "created_at": {}, "updated_at": {},
}

// IsSystemField reports whether name belongs to the reserved set.
func IsSystemField(name string) bool {
	_, ok := systemFields[strings.ToLower(name)]
	return ok
}

var identRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// normalizeName lower-cases a field name before anything touches it. The
// dialects lower-case identifiers when quoting, so the metadata layer must
// store the same spelling or the two layers disagree on the field's identity.
func normalizeName(field string) string {
	return strings.ToLower(strings.TrimSpace(field))
}

// MetaStore is the slice of the metadata store the field service consumes.
type MetaStore interface {
	GetField(ctx context.Context, collection, field string) (*meta.FieldRow, error)
	ListFields(ctx context.Context, collection string) ([]meta.FieldRow, error)
	UpsertField(ctx context.Context, row meta.FieldRow) error
	DeleteField(ctx context.Context, collection, field string) error
}

type Service struct {
	insp  db.Inspector
	exec  db.Executor
	store MetaStore
	perms access.Permissions
	log   *zap.SugaredLogger

	// one mutex per collection serializes the two-phase write inside this
	// process; cross-process callers still rely on engine DDL locking
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(insp db.Inspector, exec db.Executor, store MetaStore, perms access.Permissions, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{
		insp:  insp,
		exec:  exec,
		store: store,
		perms: perms,
		log:   log,
		locks: map[string]*sync.Mutex{},
	}
}

func (s *Service) lock(collection string) func() {
	s.mu.Lock()
	m, ok := s.locks[collection]
	if !ok {
		m = &sync.Mutex{}
		s.locks[collection] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// ReadAll returns the merged field list. With an empty collection it
// enumerates every user table the caller may read. Reserved fields and the
// tabula_* system tables are always filtered out. No fields is an empty
// slice, not an error.
func (s *Service) ReadAll(ctx context.Context, acc *access.Accountability, collection string) ([]Field, error) {
	var tables []string
	if collection != "" {
		tables = []string{collection}
	} else {
		all, err := s.insp.ListTables(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range all {
			if strings.HasPrefix(t, "tabula_") {
				continue
			}
			tables = append(tables, t)
		}
	}

	rows, err := s.store.ListFields(ctx, collection)
	if err != nil {
		return nil, err
	}
	rowFor := map[string]*meta.FieldRow{}
	for i := range rows {
		r := &rows[i]
		rowFor[r.Collection+"."+r.Field] = r
	}

	out := make([]Field, 0, len(rows))
	for _, table := range tables {
		cols, err := s.insp.ListColumns(ctx, table)
		if err != nil {
			return nil, err
		}
		seen := map[string]struct{}{}
		for i := range cols {
			col := &cols[i]
			if IsSystemField(col.Name) {
				continue
			}
			if !s.perms.CanRead(acc, table, col.Name) {
				continue
			}
			seen[col.Name] = struct{}{}
			out = append(out, merge(table, col.Name, col, rowFor[table+"."+col.Name]))
		}
		// metadata-only fields of this collection (alias, o2m, ghosts)
		for i := range rows {
			r := &rows[i]
			if r.Collection != table {
				continue
			}
			if _, ok := seen[r.Field]; ok {
				continue
			}
			if IsSystemField(r.Field) || !s.perms.CanRead(acc, table, r.Field) {
				continue
			}
			out = append(out, merge(table, r.Field, nil, r))
		}
	}
	return out, nil
}

// ReadOne fails with ErrForbidden when the field is absent in both layers OR
// the caller may not read it; the two cases are deliberately identical.
func (s *Service) ReadOne(ctx context.Context, acc *access.Accountability, collection, field string) (*Field, error) {
	field = normalizeName(field)
	if IsSystemField(field) || !s.perms.CanRead(acc, collection, field) {
		return nil, ErrForbidden
	}

	col, err := s.insp.ColumnInfo(ctx, collection, field)
	if err != nil {
		return nil, err
	}
	row, err := s.store.GetField(ctx, collection, field)
	if err != nil {
		return nil, err
	}
	if col == nil && row == nil {
		return nil, ErrForbidden
	}

	f := merge(collection, field, col, row)
	return &f, nil
}

func (s *Service) validateSpec(f Field, isCreate bool) error {
	if f.Field == "" {
		return invalid(f.Field, "field name is required")
	}
	if !identRe.MatchString(f.Field) {
		return invalid(f.Field, "not a valid identifier")
	}
	if db.IsReservedWord(f.Field) {
		return invalid(f.Field, "name collides with a SQL keyword")
	}
	if IsSystemField(f.Field) {
		return invalid(f.Field, "name is reserved")
	}
	if f.Type != "" && !db.KnownType(f.Type) {
		return invalid(f.Field, "unknown type "+f.Type)
	}
	if f.Schema != nil && !db.HasPhysicalColumn(f.Type) {
		return invalid(f.Field, "schema given but type implies no column")
	}
	if isCreate {
		if f.Schema == nil && f.Meta == nil {
			return invalid(f.Field, "schema or meta is required")
		}
		if f.Schema != nil && f.Type == "" {
			return invalid(f.Field, "type is required when schema is given")
		}
	}
	return nil
}

func (s *Service) columnSpec(f Field, current *db.Column) db.ColumnSpec {
	spec := db.ColumnSpec{Name: f.Field, Type: f.Type}
	if current != nil {
		if spec.Type == "" {
			spec.Type = current.Type
		}
		spec.IsNullable = current.IsNullable
		spec.MaxLength = current.MaxLength
		spec.Comment = current.Comment
		if current.Default != nil {
			// keep the engine's current default expression verbatim
			spec.Default = db.Expr(*current.Default)
		}
	} else {
		spec.IsNullable = true
	}
	if f.Schema != nil {
		if f.Schema.IsNullable != nil {
			spec.IsNullable = *f.Schema.IsNullable
		}
		if f.Schema.MaxLength != nil {
			spec.MaxLength = f.Schema.MaxLength
		}
		if f.Schema.DefaultValue != nil {
			spec.Default = f.Schema.DefaultValue
		}
		if f.Schema.Comment != "" {
			spec.Comment = f.Schema.Comment
		}
	}
	return spec
}

// CreateField runs the two-phase write: physical column first (when the spec
// asks for one), metadata upsert second. A failure in either phase surfaces
// unmodified; nothing is rolled back, a corrective retry converges the state.
func (s *Service) CreateField(ctx context.Context, acc *access.Accountability, collection string, f Field) error {
	f.Field = normalizeName(f.Field)
	if err := s.validateSpec(f, true); err != nil {
		return err
	}
	if !s.perms.CanWrite(acc, collection, f.Field) {
		return ErrForbidden
	}

	unlock := s.lock(collection)
	defer unlock()

	hasCol, err := s.insp.HasColumn(ctx, collection, f.Field)
	if err != nil {
		return err
	}
	row, err := s.store.GetField(ctx, collection, f.Field)
	if err != nil {
		return err
	}
	// a name is taken when both layers have it; a single orphaned layer is a
	// ghost state that the matching create converges instead of rejecting
	switch {
	case hasCol && row != nil:
		return invalid(f.Field, "already exists in "+collection)
	case row != nil && f.Schema == nil:
		return invalid(f.Field, "already exists in "+collection)
	case hasCol && f.Schema == nil:
		return invalid(f.Field, "a column with this name already exists in "+collection)
	}

	if f.Schema != nil && db.HasPhysicalColumn(f.Type) && !hasCol {
		if err := s.exec.AddColumn(ctx, collection, s.columnSpec(f, nil)); err != nil {
			return err
		}
	}

	if err := s.store.UpsertField(ctx, meta.FieldRow{
		Collection: collection,
		Field:      f.Field,
		Type:       f.Type,
		Meta:       f.Meta,
	}); err != nil {
		return err
	}

	s.log.Infow("field created", "collection", collection, "field", f.Field, "type", f.Type)
	return nil
}

// UpdateField applies patch semantics: an absent schema leaves the column
// untouched, absent meta leaves the metadata row untouched. Ordering matches
// create: physical alter before metadata upsert.
func (s *Service) UpdateField(ctx context.Context, acc *access.Accountability, collection string, patch Field) error {
	patch.Field = normalizeName(patch.Field)
	if err := s.validateSpec(patch, false); err != nil {
		return err
	}
	if !s.perms.CanWrite(acc, collection, patch.Field) {
		return ErrForbidden
	}

	unlock := s.lock(collection)
	defer unlock()

	col, err := s.insp.ColumnInfo(ctx, collection, patch.Field)
	if err != nil {
		return err
	}
	row, err := s.store.GetField(ctx, collection, patch.Field)
	if err != nil {
		return err
	}
	if col == nil && row == nil {
		return ErrForbidden
	}

	if patch.Schema != nil {
		typ := patch.Type
		if typ == "" && row != nil {
			typ = row.Type
		}
		spec := s.columnSpec(Field{Field: patch.Field, Type: typ, Schema: patch.Schema}, col)
		if col == nil {
			// ghost metadata without a column: the patch converges it
			err = s.exec.AddColumn(ctx, collection, spec)
		} else {
			err = s.exec.AlterColumn(ctx, collection, spec)
		}
		if err != nil {
			return err
		}
	}

	if patch.Meta != nil || patch.Type != "" {
		if err := s.store.UpsertField(ctx, meta.FieldRow{
			Collection: collection,
			Field:      patch.Field,
			Type:       patch.Type,
			Meta:       patch.Meta,
		}); err != nil {
			return err
		}
	}

	s.log.Infow("field updated", "collection", collection, "field", patch.Field)
	return nil
}

// DeleteField drops the column first, then the metadata row. Deleting a
// field that is already gone is not an error.
func (s *Service) DeleteField(ctx context.Context, acc *access.Accountability, collection, field string) error {
	field = normalizeName(field)
	if IsSystemField(field) {
		return invalid(field, "name is reserved")
	}
	if !s.perms.CanWrite(acc, collection, field) {
		return ErrForbidden
	}

	unlock := s.lock(collection)
	defer unlock()

	exists, err := s.insp.HasColumn(ctx, collection, field)
	if err != nil {
		return err
	}
	if exists {
		if err := s.exec.DropColumn(ctx, collection, field); err != nil {
			return err
		}
	}
	if err := s.store.DeleteField(ctx, collection, field); err != nil {
		return err
	}

	s.log.Infow("field deleted", "collection", collection, "field", field)
	return nil
}

// CreateIndex adds a plain or unique single-column index.
func (s *Service) CreateIndex(ctx context.Context, acc *access.Accountability, collection, field string, unique bool) error {
	field = normalizeName(field)
	if IsSystemField(field) {
		return invalid(field, "name is reserved")
	}
	if !s.perms.CanWrite(acc, collection, field) {
		return ErrForbidden
	}
	exists, err := s.insp.HasColumn(ctx, collection, field)
	if err != nil {
		return err
	}
	if !exists {
		return ErrForbidden
	}
	return s.exec.CreateIndex(ctx, collection, unique, field)
}

// DropIndex removes the field's single-column index if present.
func (s *Service) DropIndex(ctx context.Context, acc *access.Accountability, collection, field string) error {
	field = normalizeName(field)
	if IsSystemField(field) {
		return invalid(field, "name is reserved")
	}
	if !s.perms.CanWrite(acc, collection, field) {
		return ErrForbidden
	}
	return s.exec.DropIndex(ctx, collection, field)
}
