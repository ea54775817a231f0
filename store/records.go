package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"mediaserver/types"
)

// Update selects which columns UpdateFields writes. Unset fields are left
// alone; null fields clear the column.
type Update struct {
	Title     types.Field[string]
	MediaType types.Field[types.MediaType]
}

// Empty reports whether the update touches no column
func (u Update) Empty() bool {
	return !u.Title.Set && !u.MediaType.Set
}

// Insert appends an in-flight record and returns its id.
func (s *Store) Insert(ctx context.Context, url string, mediaType types.MediaType, startTime string) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`INSERT INTO downloads (url, media_type, start_time) VALUES (?, ?, ?)`,
		url, nullString(string(mediaType)), startTime,
	)
	if err != nil {
		return 0, fmt.Errorf("insert download: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert download id: %w", err)
	}
	return id, nil
}

// Finalize sets title and end time once. A missing or already finalized id
// is not an error and leaves the row untouched.
func (s *Store) Finalize(ctx context.Context, id int64, title *string, endTime string) error {
	if _, err := s.execWithRetry(ctx,
		`UPDATE downloads SET title = ?, end_time = ? WHERE id = ? AND end_time IS NULL`,
		title, endTime, id,
	); err != nil {
		return fmt.Errorf("finalize download %d: %w", id, err)
	}
	return nil
}

// UpdateFields writes the columns selected by u. It returns ErrNotFound when
// no row has the id.
func (s *Store) UpdateFields(ctx context.Context, id int64, u Update) error {
	if u.Empty() {
		return fmt.Errorf("update download %d: no fields", id)
	}

	var (
		sets []string
		args []any
	)
	if u.Title.Set {
		sets = append(sets, "title = ?")
		args = append(args, u.Title.Ptr())
	}
	if u.MediaType.Set {
		sets = append(sets, "media_type = ?")
		if u.MediaType.Null {
			args = append(args, nil)
		} else {
			args = append(args, string(u.MediaType.Value))
		}
	}
	args = append(args, id)

	res, err := s.execWithRetry(ctx,
		`UPDATE downloads SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update download %d: %w", id, err)
	}
	return requireRow(res, id)
}

// Delete removes one record. It returns ErrNotFound when no row has the id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM downloads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete download %d: %w", id, err)
	}
	return requireRow(res, id)
}

// Get loads a single record
func (s *Store) Get(ctx context.Context, id int64) (*types.DownloadRecord, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT id, url, title, media_type, start_time, end_time FROM downloads WHERE id = ?`, id)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get download %d: %w", id, err)
	}
	return record, nil
}

// ListAll returns every record, newest id first
func (s *Store) ListAll(ctx context.Context) ([]types.DownloadRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, title, media_type, start_time, end_time FROM downloads ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	defer rows.Close()

	records := []types.DownloadRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	return records, nil
}

// Seed inserts complete records in one transaction
func (s *Store) Seed(ctx context.Context, records []types.DownloadRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO downloads (url, title, media_type, start_time, end_time) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		defer stmt.Close()

		for _, r := range records {
			if _, err := stmt.ExecContext(ctx, r.URL, r.Title, nullString(string(r.MediaType)), r.StartTime, r.EndTime); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("seed %s: %w", r.URL, err)
			}
		}
		return tx.Commit()
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*types.DownloadRecord, error) {
	var (
		record    types.DownloadRecord
		title     sql.NullString
		mediaType sql.NullString
		startTime sql.NullString
		endTime   sql.NullString
	)
	if err := row.Scan(&record.ID, &record.URL, &title, &mediaType, &startTime, &endTime); err != nil {
		return nil, err
	}
	if title.Valid {
		record.Title = &title.String
	}
	if endTime.Valid {
		record.EndTime = &endTime.String
	}
	record.MediaType = types.MediaType(mediaType.String)
	record.StartTime = startTime.String
	return &record, nil
}

func requireRow(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
