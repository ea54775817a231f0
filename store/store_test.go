package store

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaserver/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "downloads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "downloads.db")

	first, err := Open(path)
	require.NoError(t, err)
	_, err = first.Insert(context.Background(), "http://a.test", types.MediaTypeImage, "2025-01-01 10:00:00")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	records, err := second.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, path, second.Path())
}

func TestInsertAndFinalize(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, "http://a.test", types.MediaTypeVideo, "2025-01-01 10:00:00")
	require.NoError(t, err)

	record, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, record.Complete())
	assert.Nil(t, record.Title)
	assert.Equal(t, types.MediaTypeVideo, record.MediaType)
	assert.Equal(t, "2025-01-01 10:00:00", record.StartTime)

	require.NoError(t, s.Finalize(ctx, id, types.StringPtr("A title"), "2025-01-01 10:00:05"))

	record, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, record.Complete())
	assert.Equal(t, "A title", *record.Title)
	assert.Equal(t, "2025-01-01 10:00:05", *record.EndTime)
}

func TestFinalizeMissingIDIsNoop(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.Finalize(context.Background(), 404, nil, "2025-01-01 10:00:05"))
}

func TestFinalizeOnlyOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, "http://a.test", types.MediaTypeImage, "2025-01-01 10:00:00")
	require.NoError(t, err)
	require.NoError(t, s.Finalize(ctx, id, types.StringPtr("First"), "2025-01-01 10:00:05"))
	require.NoError(t, s.Finalize(ctx, id, nil, "2025-01-01 11:00:00"))

	record, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "First", *record.Title)
	assert.Equal(t, "2025-01-01 10:00:05", *record.EndTime)
}

func TestListAllNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, url := range []string{"http://1.test", "http://2.test", "http://3.test"} {
		_, err := s.Insert(ctx, url, types.MediaTypeImage, "2025-01-01 10:00:00")
		require.NoError(t, err)
	}

	records, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "http://3.test", records[0].URL)
	assert.Equal(t, "http://1.test", records[2].URL)
	assert.Greater(t, records[0].ID, records[1].ID)
}

func TestListAllEmptyIsNotNil(t *testing.T) {
	s := openTestStore(t)
	records, err := s.ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestUpdateFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, "http://a.test", types.MediaTypeImage, "2025-01-01 10:00:00")
	require.NoError(t, err)

	err = s.UpdateFields(ctx, id, Update{
		Title:     types.Field[string]{Set: true, Value: "Renamed"},
		MediaType: types.Field[types.MediaType]{Set: true, Value: types.MediaTypeGallery},
	})
	require.NoError(t, err)

	record, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", *record.Title)
	assert.Equal(t, types.MediaTypeGallery, record.MediaType)

	// null clears, unset leaves alone
	err = s.UpdateFields(ctx, id, Update{MediaType: types.Field[types.MediaType]{Set: true, Null: true}})
	require.NoError(t, err)

	record, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", *record.Title)
	assert.Equal(t, types.MediaType(""), record.MediaType)
}

func TestUpdateFieldsNotFound(t *testing.T) {
	s := openTestStore(t)
	err := s.UpdateFields(context.Background(), 99, Update{Title: types.Field[string]{Set: true, Value: "x"}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateFieldsRejectsEmptyUpdate(t *testing.T) {
	s := openTestStore(t)
	err := s.UpdateFields(context.Background(), 1, Update{})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, "http://a.test", types.MediaTypeImage, "2025-01-01 10:00:00")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, id))
	assert.ErrorIs(t, s.Delete(ctx, id), ErrNotFound)

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSeedDemoRecords(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)

	demo := DemoRecords(now, 30)
	require.Len(t, demo, 30)
	require.NoError(t, s.Seed(ctx, demo))

	records, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 30)

	for _, r := range demo {
		if r.EndTime != nil {
			assert.LessOrEqual(t, r.StartTime, *r.EndTime, r.URL)
		}
	}
	assert.Equal(t, demo, DemoRecords(now, 30), "demo data is deterministic")
}

func TestSeedEmptyIsNoop(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.Seed(context.Background(), nil))
}

func TestConcurrentInserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func() {
			_, err := s.Insert(ctx, "http://a.test", types.MediaTypeImage, "2025-01-01 10:00:00")
			errs <- err
		}()
	}
	for i := 0; i < 20; i++ {
		assert.NoError(t, <-errs)
	}

	records, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 20)
}

func TestInsertSurfacesSQLError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO downloads")).
		WillReturnError(errors.New("disk I/O error"))

	_, err = NewWithDB(db).Insert(context.Background(), "http://a.test", types.MediaTypeImage, "2025-01-01 10:00:00")
	assert.ErrorContains(t, err, "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBusyIsRetried(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM downloads")).
		WithArgs(int64(7)).
		WillReturnError(errors.New("database is locked"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM downloads")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, NewWithDB(db).Delete(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBusyGivesUpAfterRetries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < busyRetryAttempts; i++ {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE downloads SET title = ?, end_time = ?")).
			WillReturnError(errors.New("database is locked"))
	}

	err = NewWithDB(db).Finalize(context.Background(), 1, nil, "2025-01-01 10:00:05")
	assert.ErrorContains(t, err, "database is locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsSQLiteBusy(t *testing.T) {
	assert.False(t, isSQLiteBusy(nil))
	assert.True(t, isSQLiteBusy(errors.New("SQLITE_BUSY: locked")))
	assert.False(t, isSQLiteBusy(errors.New("constraint failed")))
}
