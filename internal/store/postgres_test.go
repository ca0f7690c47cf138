package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"regexp"
	"testing"

	"dynamic-forms/internal/common/errors"
	"dynamic-forms/internal/common/logger"
	"dynamic-forms/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// ==========================
// Forms
// ==========================

func TestPostgresFormStore_CreateAndGet(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresFormStore(db)
	ctx := context.Background()
	form := sampleForm("f1", base)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO forms")).
		WithArgs("f1", "Form f1", "", "Survey", sqlmock.AnyArg(), base, base).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, s.Create(ctx, form))

	rows := sqlmock.NewRows([]string{"id", "name", "description", "category", "fields", "created_at", "updated_at"}).
		AddRow("f1", "Form f1", "", "Survey", []byte(`[{"id":"q1","type":"select","label":"Rating","required":false,"options":["1","2"]}]`), base, base)
	mock.ExpectQuery(regexp.QuoteMeta("FROM forms WHERE id = $1")).WithArgs("f1").WillReturnRows(rows)

	got, err := s.Get(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "Form f1", got.Name)
	require.Len(t, got.Fields, 1)
	assert.Equal(t, models.KindSelect, got.Fields[0].Type)
	assert.Equal(t, []string{"1", "2"}, got.Fields[0].Options)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFormStore_NotFound(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresFormStore(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM forms WHERE id = $1")).WithArgs("nope").WillReturnError(sql.ErrNoRows)
	_, err := s.Get(ctx, "nope")
	assert.True(t, stderrors.Is(err, errors.ErrFormNotFound))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE forms SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.True(t, stderrors.Is(s.Replace(ctx, sampleForm("nope", base)), errors.ErrFormNotFound))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM forms")).WithArgs("nope").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.True(t, stderrors.Is(s.Delete(ctx, "nope"), errors.ErrFormNotFound))

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT 1")).WillReturnError(sql.ErrNoRows)
	_, err = s.Latest(ctx)
	assert.True(t, stderrors.Is(err, errors.ErrFormNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFormStore_ListQueryFailure(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresFormStore(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM forms ORDER BY created_at DESC")).WillReturnError(sql.ErrConnDone)
	_, err := s.List(context.Background())
	assert.True(t, stderrors.Is(err, errors.ErrDatabaseQueryFailed))
}

// ==========================
// Submissions
// ==========================

func TestPostgresSubmissionStore_SaveAndGet(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresSubmissionStore(db, false, logger.NewNoOpLogger())
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submissions")).
		WithArgs("s1", "f1", "Form f1", sqlmock.AnyArg(), base, "pending").
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, s.Save(ctx, sampleSubmission("s1", "f1", base)))

	entries := `[{"fieldId":"q1","label":"Rating","value":"2"},{"fieldId":"n","label":"Age","value":41},` +
		`{"fieldId":"c","label":"Tags","value":["a","b"]},{"fieldId":"f","label":"Scan","value":{"originalName":"a.pdf","storedName":"1-x-a.pdf","url":"/uploads/1-x-a.pdf","mimeType":"application/pdf","sizeBytes":3}}]`
	rows := sqlmock.NewRows([]string{"id", "form_id", "form_name", "entries", "submitted_at", "status"}).
		AddRow("s1", "f1", "Form f1", []byte(entries), base, "approved")
	mock.ExpectQuery(regexp.QuoteMeta("FROM submissions WHERE id = $1")).WithArgs("s1").WillReturnRows(rows)

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	require.Len(t, got.Entries, 4)
	assert.Equal(t, models.StringValue("2"), got.Entries[0].Value)
	assert.Equal(t, models.NumberValue(41), got.Entries[1].Value)
	assert.Equal(t, []string{"a", "b"}, got.Entries[2].Value.Strings)
	require.NotNil(t, got.Entries[3].Value.File)
	assert.Equal(t, "1-x-a.pdf", got.Entries[3].Value.File.StoredName)

	mock.ExpectQuery(regexp.QuoteMeta("FROM submissions WHERE id = $1")).WithArgs("s9").WillReturnError(sql.ErrNoRows)
	_, err = s.Get(ctx, "s9")
	assert.True(t, stderrors.Is(err, errors.ErrSubmissionNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSubmissionStore_SaveFailure(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresSubmissionStore(db, false, logger.NewNoOpLogger())

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submissions")).WillReturnError(sql.ErrConnDone)
	err := s.Save(context.Background(), sampleSubmission("s1", "f1", base))
	assert.True(t, stderrors.Is(err, errors.ErrStorageWriteFailed))
}

func TestPostgresSubmissionStore_ListBuildsFilter(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresSubmissionStore(db, false, logger.NewNoOpLogger())

	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM submissions WHERE form_id = $1 AND status = $2 ORDER BY submitted_at DESC, id DESC LIMIT $3")).
		WithArgs("f1", "pending", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "form_id", "form_name", "entries", "submitted_at", "status"}).
			AddRow("s2", "f1", "Form f1", []byte(`[]`), base, "pending"))

	subs, err := s.List(context.Background(), models.SubmissionFilter{FormID: "f1", Status: models.StatusPending, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, ids(subs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSubmissionStore_CompareAndSetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("wins and audits", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresSubmissionStore(db, true, logger.NewNoOpLogger())

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET status = $1 WHERE id = $2 AND status = $3")).
			WithArgs("approved", "s1", "pending").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submission_audit")).
			WithArgs("s1", "pending", "approved").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		ok, err := s.CompareAndSetStatus(ctx, "s1", models.StatusPending, models.StatusApproved)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("loses when already decided", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresSubmissionStore(db, false, logger.NewNoOpLogger())

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET status")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM submissions WHERE id = $1")).
			WithArgs("s1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("rejected"))
		mock.ExpectRollback()

		ok, err := s.CompareAndSetStatus(ctx, "s1", models.StatusPending, models.StatusApproved)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown id", func(t *testing.T) {
		db, mock := newMock(t)
		s := NewPostgresSubmissionStore(db, false, logger.NewNoOpLogger())

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET status")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM submissions")).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := s.CompareAndSetStatus(ctx, "ghost", models.StatusPending, models.StatusApproved)
		assert.True(t, stderrors.Is(err, errors.ErrSubmissionNotFound))
	})
}

func TestPostgresSubmissionStore_DeleteByFormAndStats(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresSubmissionStore(db, false, logger.NewNoOpLogger())
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM submissions WHERE form_id = $1")).
		WithArgs("f1").
		WillReturnResult(sqlmock.NewResult(0, 4))
	n, err := s.DeleteByForm(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("pending", 3).AddRow("approved", 1))
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY form_id")).
		WillReturnRows(sqlmock.NewRows([]string{"form_id", "form_name", "count"}).AddRow("f2", "Form f2", 4))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 3, stats.ByStatus[models.StatusPending])
	assert.Equal(t, 0, stats.ByStatus[models.StatusRejected])
	assert.Equal(t, []models.FormCount{{FormID: "f2", FormName: "Form f2", Count: 4}}, stats.ByForm)
	assert.NoError(t, mock.ExpectationsWereMet())
}
