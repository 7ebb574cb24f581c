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

func newFacultyRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

func facultyRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "employee_no", "email", "full_name", "department_id", "employment_type", "min_load", "max_load", "max_preparations", "availability", "status", "created_at", "updated_at"}).
		AddRow("f1", nil, "prof@example.edu", "Prof A", "dept-1", "FULL_TIME", 18.0, 24.0, 4, types.JSONText(`[]`), "ACTIVE", time.Now(), time.Now())
}

func TestFacultyRepositoryList(t *testing.T) {
	db, mock, cleanup := newFacultyRepoMock(t)
	defer cleanup()
	repo := NewFacultyRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + facultyColumns + " FROM faculty WHERE 1=1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(facultyRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM faculty WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.FacultyFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacultyRepositoryListFiltersByDepartmentAndStatus(t *testing.T) {
	db, mock, cleanup := newFacultyRepoMock(t)
	defer cleanup()
	repo := NewFacultyRepository(db)

	mock.ExpectQuery("SELECT .+ FROM faculty WHERE 1=1 AND department_id = \\$1 AND status = \\$2").
		WithArgs("dept-1", models.FacultyStatusActive).
		WillReturnRows(facultyRows())
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM faculty WHERE 1=1 AND department_id = \\$1 AND status = \\$2").
		WithArgs("dept-1", models.FacultyStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.FacultyFilter{DepartmentID: "dept-1", Status: models.FacultyStatusActive})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacultyRepositoryCreateAndSetStatus(t *testing.T) {
	db, mock, cleanup := newFacultyRepoMock(t)
	defer cleanup()
	repo := NewFacultyRepository(db)

	mock.ExpectExec("INSERT INTO faculty").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "prof@example.edu", "Prof A", "dept-1", "FULL_TIME", 18.0, 24.0, 4, sqlmock.AnyArg(), "ACTIVE", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	fac := &models.Faculty{
		Email:           "prof@example.edu",
		FullName:        "Prof A",
		DepartmentID:    "dept-1",
		EmploymentType:  models.EmploymentFullTime,
		MinLoad:         18,
		MaxLoad:         24,
		MaxPreparations: 4,
		Availability:    types.JSONText(`[]`),
		Status:          models.FacultyStatusActive,
	}
	require.NoError(t, repo.Create(context.Background(), fac))
	assert.NotEmpty(t, fac.ID)

	mock.ExpectExec("UPDATE faculty SET status = \\$2").
		WithArgs("f1", models.FacultyStatusInactive, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.SetStatus(context.Background(), "f1", models.FacultyStatusInactive))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacultyRepositoryExistsByEmail(t *testing.T) {
	db, mock, cleanup := newFacultyRepoMock(t)
	defer cleanup()
	repo := NewFacultyRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM faculty WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("prof@example.edu").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := repo.ExistsByEmail(context.Background(), "prof@example.edu", "")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
