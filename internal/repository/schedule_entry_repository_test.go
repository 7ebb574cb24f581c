package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadforge/timetable-api/internal/models"
)

func newScheduleRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

func scheduleEntryRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "subject_id", "faculty_id", "classroom_id", "slots", "semester", "academic_year", "status", "version", "created_by", "created_at", "updated_at"}).
		AddRow("e1", "sub-1", "f1", "room-1", types.JSONText(`[{"day":"MONDAY","start":"08:00","end":"10:00"}]`), "1ST", "2026-2027", "DRAFT", 1, nil, time.Now(), time.Now())
}

func TestScheduleEntryRepositoryListByTerm(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+scheduleEntryColumns+" FROM schedule_entries WHERE semester = $1 AND academic_year = $2 ORDER BY id ASC")).
		WithArgs("1ST", "2026-2027").
		WillReturnRows(scheduleEntryRows())

	entries, err := repo.ListByTerm(context.Background(), "1ST", "2026-2027")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.EntryStatusDraft, entries[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectExec("INSERT INTO schedule_entries").
		WithArgs(sqlmock.AnyArg(), "sub-1", "f1", "room-1", sqlmock.AnyArg(), "1ST", "2026-2027", "DRAFT", 1, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.ScheduleEntry{
		SubjectID:    "sub-1",
		FacultyID:    "f1",
		ClassroomID:  "room-1",
		Slots:        types.JSONText(`[]`),
		Semester:     "1ST",
		AcademicYear: "2026-2027",
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, models.EntryStatusDraft, entry.Status)
	assert.Equal(t, 1, entry.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryPublishBatchIsTransactional(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE schedule_entries SET status = \\$1, version = version \\+ 1").
		WithArgs(models.EntryStatusPublished, sqlmock.AnyArg(), "e1", "e2").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	tx, err := repo.BeginTx(context.Background())
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatusBatchWithTx(context.Background(), tx, []string{"e1", "e2"}, models.EntryStatusPublished))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryReleaseKeepsArchivedHistory(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedule_entries WHERE semester = $1 AND academic_year = $2 AND status <> $3 AND subject_id IN ($4, $5)")).
		WithArgs("1ST", "2026-2027", models.EntryStatusArchived, "cs101", "cs102").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	tx, err := repo.BeginTx(context.Background())
	require.NoError(t, err)
	require.NoError(t, repo.DeleteBySubjectsWithTx(context.Background(), tx, "1ST", "2026-2027", []string{"cs101", "cs102"}))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryArchiveTerm(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE schedule_entries SET status = \\$1").
		WithArgs(models.EntryStatusArchived, sqlmock.AnyArg(), "1ST", "2026-2027").
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectCommit()

	tx, err := repo.BeginTx(context.Background())
	require.NoError(t, err)
	affected, err := repo.ArchiveTermWithTx(context.Background(), tx, "1ST", "2026-2027")
	require.NoError(t, err)
	assert.Equal(t, int64(5), affected)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleEntryRepositoryTermFingerprint(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleEntryRepository(db)

	mock.ExpectQuery("SELECT COALESCE\\(MD5\\(STRING_AGG").
		WithArgs("1ST", "2026-2027", models.EntryStatusArchived).
		WillReturnRows(sqlmock.NewRows([]string{"md5"}).AddRow("abc123"))

	fp, err := repo.TermFingerprint(context.Background(), "1ST", "2026-2027")
	require.NoError(t, err)
	assert.Equal(t, "abc123", fp)
	assert.NoError(t, mock.ExpectationsWereMet())
}
