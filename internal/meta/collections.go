package meta

import (
	"context"
	"database/sql"
)

// CollectionRow carries the collection attributes that are not expressible as
// DDL: UI icon, note, display template, default sort field.
type CollectionRow struct {
	Collection      string
	Icon            string
	Note            string
	DisplayTemplate string
	SortField       string
}

func (s *Store) GetCollection(ctx context.Context, collection string) (*CollectionRow, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT collection, icon, note, display_template, sort_field FROM `+TableCollections+
			` WHERE collection = ?`), collection)

	cr, err := scanCollection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get collection", err)
	}
	return cr, nil
}

func (s *Store) ListCollections(ctx context.Context) ([]CollectionRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT collection, icon, note, display_template, sort_field FROM `+TableCollections+
			` ORDER BY collection`)
	if err != nil {
		return nil, storeErr("list collections", err)
	}
	defer rows.Close()

	var out []CollectionRow
	for rows.Next() {
		cr, err := scanCollection(rows)
		if err != nil {
			return nil, storeErr("list collections", err)
		}
		out = append(out, *cr)
	}
	return out, storeErr("list collections", rows.Err())
}

func (s *Store) UpsertCollection(ctx context.Context, row CollectionRow) error {
	existing, err := s.GetCollection(ctx, row.Collection)
	if err != nil {
		return err
	}
	if existing == nil {
		_, err = s.db.ExecContext(ctx, s.rebind(
			`INSERT INTO `+TableCollections+
				` (collection, icon, note, display_template, sort_field) VALUES (?, ?, ?, ?, ?)`),
			row.Collection, nullable(row.Icon), nullable(row.Note),
			nullable(row.DisplayTemplate), nullable(row.SortField))
		return storeErr("upsert collection", err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(
		`UPDATE `+TableCollections+
			` SET icon = ?, note = ?, display_template = ?, sort_field = ? WHERE collection = ?`),
		nullable(row.Icon), nullable(row.Note),
		nullable(row.DisplayTemplate), nullable(row.SortField), row.Collection)
	return storeErr("upsert collection", err)
}

func (s *Store) DeleteCollection(ctx context.Context, collection string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM `+TableCollections+` WHERE collection = ?`), collection)
	return storeErr("delete collection", err)
}

func scanCollection(r interface{ Scan(...any) error }) (*CollectionRow, error) {
	var (
		cr                       CollectionRow
		icon, note, tmpl, sortBy sql.NullString
	)
	if err := r.Scan(&cr.Collection, &icon, &note, &tmpl, &sortBy); err != nil {
		return nil, err
	}
	cr.Icon = icon.String
	cr.Note = note.String
	cr.DisplayTemplate = tmpl.String
	cr.SortField = sortBy.String
	return &cr, nil
}
