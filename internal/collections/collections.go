// Package collections owns collection existence and provisioning. The field
// service only ever consumes the existence guard.
package collections

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"tabula/internal/db"
	"tabula/internal/meta"

	"go.uber.org/zap"
)

// ErrNotFound signals a missing collection before any field operation runs.
var ErrNotFound = errors.New("collection not found")

var nameRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// Collection is a logical table plus its metadata record.
type Collection struct {
	Collection      string `json:"collection"`
	Icon            string `json:"icon,omitempty"`
	Note            string `json:"note,omitempty"`
	DisplayTemplate string `json:"display_template,omitempty"`
	SortField       string `json:"sort_field,omitempty"`
}

// MetaStore is the slice of the metadata store this service consumes.
type MetaStore interface {
	GetCollection(ctx context.Context, collection string) (*meta.CollectionRow, error)
	ListCollections(ctx context.Context) ([]meta.CollectionRow, error)
	UpsertCollection(ctx context.Context, row meta.CollectionRow) error
}

type Service struct {
	insp  db.Inspector
	exec  db.Executor
	store MetaStore
	log   *zap.SugaredLogger
}

func NewService(insp db.Inspector, exec db.Executor, store MetaStore, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{insp: insp, exec: exec, store: store, log: log}
}

// EnsureExists is the guard every field call passes through first.
func (s *Service) EnsureExists(ctx context.Context, collection string) error {
	if strings.HasPrefix(collection, "tabula_") {
		return ErrNotFound
	}
	ok, err := s.insp.HasTable(ctx, collection)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// List merges physical tables with collection metadata rows.
func (s *Service) List(ctx context.Context) ([]Collection, error) {
	tables, err := s.insp.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	rowFor := map[string]*meta.CollectionRow{}
	for i := range rows {
		rowFor[rows[i].Collection] = &rows[i]
	}

	out := make([]Collection, 0, len(tables))
	for _, t := range tables {
		if strings.HasPrefix(t, "tabula_") {
			continue
		}
		c := Collection{Collection: t}
		if r := rowFor[t]; r != nil {
			c.Icon = r.Icon
			c.Note = r.Note
			c.DisplayTemplate = r.DisplayTemplate
			c.SortField = r.SortField
		}
		out = append(out, c)
	}
	return out, nil
}

// Create provisions the physical table with the system bookkeeping columns
// and writes the collection metadata row. Same two-phase shape as field
// creation: table first, metadata second, no rollback.
func (s *Service) Create(ctx context.Context, c Collection) error {
	name := strings.ToLower(strings.TrimSpace(c.Collection))
	if !nameRe.MatchString(name) || strings.HasPrefix(name, "tabula_") {
		return errors.New("invalid collection name: " + c.Collection)
	}
	if db.IsReservedWord(name) {
		return errors.New("collection name collides with a SQL keyword: " + name)
	}
	ok, err := s.insp.HasTable(ctx, name)
	if err != nil {
		return err
	}
	if ok {
		return errors.New("collection already exists: " + name)
	}

	intp := func(n int) *int { return &n }
	cols := []db.ColumnSpec{
		{Name: "id", Type: db.TypeString, MaxLength: intp(26)},
		{Name: "version", Type: db.TypeBigInteger},
		{Name: "created_at", Type: db.TypeTimestamp},
		{Name: "updated_at", Type: db.TypeTimestamp},
	}
	if err := s.exec.CreateTable(ctx, name, cols); err != nil {
		return err
	}

	if err := s.store.UpsertCollection(ctx, meta.CollectionRow{
		Collection:      name,
		Icon:            c.Icon,
		Note:            c.Note,
		DisplayTemplate: c.DisplayTemplate,
		SortField:       c.SortField,
	}); err != nil {
		return err
	}

	s.log.Infow("collection created", "collection", name)
	return nil
}
