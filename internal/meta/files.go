package meta

import (
	"context"
	"database/sql"
	"time"
)

// FileRow records an uploaded file: which disk holds it and under what key.
type FileRow struct {
	ID         string
	Storage    string // disk name from the storage registry
	Key        string
	Filename   string
	Mime       string
	Size       int64
	Hash       string
	UploadedAt time.Time
}

func (s *Store) InsertFile(ctx context.Context, row FileRow) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO `+TableFiles+
			` (id, storage, storage_key, filename, mime, size, hash, uploaded_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		row.ID, row.Storage, row.Key, row.Filename, nullable(row.Mime),
		row.Size, nullable(row.Hash), row.UploadedAt)
	return storeErr("insert file", err)
}

func (s *Store) GetFile(ctx context.Context, id string) (*FileRow, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, storage, storage_key, filename, mime, size, hash, uploaded_at
		 FROM `+TableFiles+` WHERE id = ?`), id)

	var (
		fr         FileRow
		mime, hash sql.NullString
	)
	err := row.Scan(&fr.ID, &fr.Storage, &fr.Key, &fr.Filename, &mime, &fr.Size, &hash, &fr.UploadedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get file", err)
	}
	fr.Mime = mime.String
	fr.Hash = hash.String
	return &fr, nil
}

func (s *Store) DeleteFile(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM `+TableFiles+` WHERE id = ?`), id)
	return storeErr("delete file", err)
}
