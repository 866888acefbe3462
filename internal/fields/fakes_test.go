package fields

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tabula/internal/db"
	"tabula/internal/meta"
)

// opLog records the order of physical vs metadata mutations.
type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, op)
}

func (l *opLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ops...)
}

// memSchema is the shared state behind the fake inspector/executor pair.
type memSchema struct {
	mu      sync.Mutex
	tables  map[string]map[string]db.Column
	order   map[string][]string // column order per table
	log     *opLog
	failAdd error
}

func newMemSchema(log *opLog, tables ...string) *memSchema {
	s := &memSchema{
		tables: map[string]map[string]db.Column{},
		order:  map[string][]string{},
		log:    log,
	}
	for _, t := range tables {
		s.tables[t] = map[string]db.Column{}
	}
	return s
}

func (s *memSchema) setColumn(table string, col db.Column) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[table] == nil {
		s.tables[table] = map[string]db.Column{}
		s.order[table] = nil
	}
	if _, ok := s.tables[table][col.Name]; !ok {
		s.order[table] = append(s.order[table], col.Name)
	}
	col.Table = table
	s.tables[table][col.Name] = col
}

type memInspector struct{ s *memSchema }

func (i *memInspector) HasTable(_ context.Context, table string) (bool, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	_, ok := i.s.tables[table]
	return ok, nil
}

func (i *memInspector) ListTables(context.Context) ([]string, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	var out []string
	for t := range i.s.tables {
		out = append(out, t)
	}
	return out, nil
}

func (i *memInspector) HasColumn(_ context.Context, table, column string) (bool, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	_, ok := i.s.tables[table][column]
	return ok, nil
}

func (i *memInspector) ColumnInfo(_ context.Context, table, column string) (*db.Column, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	col, ok := i.s.tables[table][column]
	if !ok {
		return nil, nil
	}
	return &col, nil
}

func (i *memInspector) ListColumns(_ context.Context, table string) ([]db.Column, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	var out []db.Column
	for _, name := range i.s.order[table] {
		out = append(out, i.s.tables[table][name])
	}
	return out, nil
}

type memExecutor struct{ s *memSchema }

func specToColumn(table string, spec db.ColumnSpec) db.Column {
	col := db.Column{
		Table:      table,
		Name:       spec.Name,
		Type:       spec.Type,
		NativeType: spec.Type,
		IsNullable: spec.IsNullable,
		MaxLength:  spec.MaxLength,
		Comment:    spec.Comment,
	}
	if spec.Default != nil {
		v := fmt.Sprintf("%v", spec.Default)
		col.Default = &v
	}
	return col
}

func (e *memExecutor) CreateTable(_ context.Context, table string, cols []db.ColumnSpec) error {
	e.s.log.add("ddl:create_table:" + table)
	for _, c := range cols {
		e.s.setColumn(table, specToColumn(table, c))
	}
	return nil
}

func (e *memExecutor) AddColumn(_ context.Context, table string, spec db.ColumnSpec) error {
	if e.s.failAdd != nil {
		return e.s.failAdd
	}
	e.s.mu.Lock()
	_, dup := e.s.tables[table][spec.Name]
	e.s.mu.Unlock()
	if dup {
		return &db.SchemaMutationError{Err: fmt.Errorf("column %q of relation %q already exists", spec.Name, table)}
	}
	e.s.log.add("ddl:add:" + table + "." + spec.Name)
	e.s.setColumn(table, specToColumn(table, spec))
	return nil
}

func (e *memExecutor) AlterColumn(_ context.Context, table string, spec db.ColumnSpec) error {
	e.s.log.add("ddl:alter:" + table + "." + spec.Name)
	e.s.setColumn(table, specToColumn(table, spec))
	return nil
}

func (e *memExecutor) DropColumn(_ context.Context, table, column string) error {
	e.s.log.add("ddl:drop:" + table + "." + column)
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	delete(e.s.tables[table], column)
	cols := e.s.order[table][:0]
	for _, name := range e.s.order[table] {
		if name != column {
			cols = append(cols, name)
		}
	}
	e.s.order[table] = cols
	return nil
}

func (e *memExecutor) CreateIndex(_ context.Context, table string, unique bool, columns ...string) error {
	e.s.log.add(fmt.Sprintf("ddl:index:%s.%s:%v", table, strings.Join(columns, ","), unique))
	return nil
}

func (e *memExecutor) DropIndex(_ context.Context, table string, columns ...string) error {
	e.s.log.add("ddl:drop_index:" + table + "." + strings.Join(columns, ","))
	return nil
}

// memMeta implements MetaStore with the real upsert patch semantics.
type memMeta struct {
	mu         sync.Mutex
	rows       map[string]*meta.FieldRow
	log        *opLog
	failUpsert error
	nextID     int
}

func newMemMeta(log *opLog) *memMeta {
	return &memMeta{rows: map[string]*meta.FieldRow{}, log: log}
}

func key(collection, field string) string { return collection + "." + field }

func (m *memMeta) GetField(_ context.Context, collection, field string) (*meta.FieldRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[key(collection, field)]
	if !ok {
		return nil, nil
	}
	cp := *row
	cp.Meta = map[string]any{}
	for k, v := range row.Meta {
		cp.Meta[k] = v
	}
	return &cp, nil
}

func (m *memMeta) ListFields(_ context.Context, collection string) ([]meta.FieldRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []meta.FieldRow
	for _, row := range m.rows {
		if collection != "" && row.Collection != collection {
			continue
		}
		out = append(out, *row)
	}
	return out, nil
}

func (m *memMeta) UpsertField(_ context.Context, row meta.FieldRow) error {
	if m.failUpsert != nil {
		return m.failUpsert
	}
	m.log.add("meta:upsert:" + key(row.Collection, row.Field))
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.rows[key(row.Collection, row.Field)]
	if !ok {
		m.nextID++
		if row.Meta == nil {
			row.Meta = map[string]any{}
		}
		row.ID = fmt.Sprintf("row-%d", m.nextID)
		m.rows[key(row.Collection, row.Field)] = &row
		return nil
	}
	for k, v := range row.Meta {
		if v == nil {
			delete(existing.Meta, k)
			continue
		}
		existing.Meta[k] = v
	}
	if row.Type != "" {
		existing.Type = row.Type
	}
	return nil
}

func (m *memMeta) DeleteField(_ context.Context, collection, field string) error {
	m.log.add("meta:delete:" + key(collection, field))
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, key(collection, field))
	return nil
}
