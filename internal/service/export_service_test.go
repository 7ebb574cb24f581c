package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acadforge/timetable-api/internal/dto"
	"github.com/acadforge/timetable-api/internal/models"
	"github.com/acadforge/timetable-api/internal/repository"
	appErrors "github.com/acadforge/timetable-api/pkg/errors"
	"github.com/acadforge/timetable-api/pkg/jobs"
	"github.com/acadforge/timetable-api/pkg/storage"
)

func TestExportServiceTermTimetableCSV(t *testing.T) {
	svc, store := newExportServiceFixture(t)

	job := &models.ExportJob{
		ID:   "job-1",
		Type: models.ExportTypeTermTimetable,
		Params: models.ExportJobParams{
			Semester:     "1ST",
			AcademicYear: "2026-2027",
			Format:       models.ExportFormatCSV,
		},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Contains(t, result.URL, "/exports/download/")
	assert.Equal(t, models.ExportFormatCSV, result.Format)

	records := parseCSV(t, store.files[result.RelativePath])
	require.GreaterOrEqual(t, len(records), 2)
	assert.Equal(t, []string{"Day", "Time", "Subject", "Faculty", "Room"}, records[0])
	// Draft entries never reach exports, only the two published ones do.
	assert.Len(t, records, 3)
	assert.Equal(t, "MONDAY", records[1][0])
	assert.Equal(t, "CS101", records[1][2])
	assert.Equal(t, "A. Reyes", records[1][3])
}

func TestExportServiceFacultyTimetableFilters(t *testing.T) {
	svc, store := newExportServiceFixture(t)

	facultyID := "fac-2"
	job := &models.ExportJob{
		ID:   "job-2",
		Type: models.ExportTypeFacultyTimetable,
		Params: models.ExportJobParams{
			Semester:     "1ST",
			AcademicYear: "2026-2027",
			FacultyID:    &facultyID,
			Format:       models.ExportFormatCSV,
		},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	records := parseCSV(t, store.files[result.RelativePath])
	require.Len(t, records, 2)
	assert.Equal(t, "B. Santos", records[1][3])
}

func TestExportServiceWorkloadSummary(t *testing.T) {
	svc, store := newExportServiceFixture(t)

	job := &models.ExportJob{
		ID:   "job-3",
		Type: models.ExportTypeWorkloadSummary,
		Params: models.ExportJobParams{
			Semester:     "1ST",
			AcademicYear: "2026-2027",
			Format:       models.ExportFormatCSV,
		},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	records := parseCSV(t, store.files[result.RelativePath])
	require.Len(t, records, 3)
	// fac-1 carries the published Monday block plus the Friday draft.
	assert.Equal(t, "A. Reyes", records[1][0])
	assert.Equal(t, "6.00", records[1][1])
	assert.Equal(t, "UNDER MIN", records[1][5])
}

func TestExportServicePDFRenders(t *testing.T) {
	svc, store := newExportServiceFixture(t)

	job := &models.ExportJob{
		ID:   "job-4",
		Type: models.ExportTypeTermTimetable,
		Params: models.ExportJobParams{
			Semester:     "1ST",
			AcademicYear: "2026-2027",
			Format:       models.ExportFormatPDF,
		},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	payload := store.files[result.RelativePath]
	require.NotEmpty(t, payload)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
}

func TestExportJobServiceFacultyScope(t *testing.T) {
	svc := NewExportJobService(&exportJobStoreStub{}, &queueStub{}, nil, zap.NewNop(), ExportJobConfig{})

	ownID := "fac-1"
	otherID := "fac-2"
	actor := &models.User{ID: "user-1", Role: models.RoleFaculty, FacultyID: &ownID}

	_, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		Type:         models.ExportTypeTermTimetable,
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		Format:       models.ExportFormatCSV,
	}, actor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateJob(context.Background(), dto.ExportRequest{
		Type:         models.ExportTypeFacultyTimetable,
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		FacultyID:    &otherID,
		Format:       models.ExportFormatCSV,
	}, actor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	resp, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		Type:         models.ExportTypeFacultyTimetable,
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		FacultyID:    &ownID,
		Format:       models.ExportFormatCSV,
	}, actor)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, resp.Status)
}

func TestExportWorkerMarksFinished(t *testing.T) {
	svc, _ := newExportServiceFixture(t)
	store := &exportJobStoreStub{jobs: map[string]*models.ExportJob{
		"job-1": {
			ID:   "job-1",
			Type: models.ExportTypeTermTimetable,
			Params: models.ExportJobParams{
				Semester:     "1ST",
				AcademicYear: "2026-2027",
				Format:       models.ExportFormatCSV,
			},
			Status: models.ExportStatusQueued,
		},
	}}
	worker := NewExportWorker(store, svc, 3, zap.NewNop())

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1"}))
	job := store.jobs["job-1"]
	assert.Equal(t, models.ExportStatusFinished, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultURL)
	assert.Contains(t, *job.ResultURL, "/exports/download/")
}

func newExportServiceFixture(t *testing.T) (*ExportService, *memoryStorageStub) {
	t.Helper()

	availability := weekdayAvailabilityJSON(t)
	faculty := &facultyCatalogStub{items: []models.Faculty{
		{ID: "fac-1", FullName: "A. Reyes", DepartmentID: "dept-cs", MinLoad: 12, MaxLoad: 24, MaxPreparations: 4, Availability: availability, Status: models.FacultyStatusActive},
		{ID: "fac-2", FullName: "B. Santos", DepartmentID: "dept-cs", MinLoad: 0, MaxLoad: 24, MaxPreparations: 4, Availability: availability, Status: models.FacultyStatusActive},
	}}
	classrooms := &classroomCatalogStub{items: []models.Classroom{
		{ID: "room-101", Code: "RM-101", Capacity: 50, Type: models.RoomTypeLecture, Status: models.RoomStatusAvailable},
		{ID: "room-102", Code: "RM-102", Capacity: 45, Type: models.RoomTypeLecture, Status: models.RoomStatusAvailable},
	}}
	subjects := &subjectCatalogStub{items: []models.Subject{
		{ID: "cs101", Code: "CS101", DepartmentID: "dept-cs", LectureUnits: 3, Semester: "1ST", AcademicYear: "2026-2027"},
		{ID: "cs102", Code: "CS102", DepartmentID: "dept-cs", LectureUnits: 3, Semester: "1ST", AcademicYear: "2026-2027"},
	}}
	draft := publishedEntry("entry-3", "cs101", "fac-1", "room-101", "FRIDAY", "08:00", "11:00")
	draft.Status = models.EntryStatusDraft
	entries := &generatorEntryStoreStub{items: []models.ScheduleEntry{
		publishedEntry("entry-1", "cs101", "fac-1", "room-101", "MONDAY", "08:00", "11:00"),
		publishedEntry("entry-2", "cs102", "fac-2", "room-102", "TUESDAY", "09:00", "12:00"),
		draft,
	}}

	store := &memoryStorageStub{files: map[string][]byte{}}
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewExportService(faculty, classrooms, subjects, entries, store, signer, ExportConfig{}, zap.NewNop(), nil, nil)
	return svc, store
}

func parseCSV(t *testing.T, payload []byte) [][]string {
	t.Helper()
	require.NotEmpty(t, payload)
	records, err := csv.NewReader(bytes.NewReader(payload)).ReadAll()
	require.NoError(t, err)
	return records
}

type memoryStorageStub struct {
	files map[string][]byte
}

func (s *memoryStorageStub) Save(filename string, data []byte) (string, error) {
	s.files[filename] = data
	return filename, nil
}

func (s *memoryStorageStub) Open(filename string) (*os.File, error) {
	return nil, os.ErrNotExist
}

func (s *memoryStorageStub) Delete(filename string) error {
	delete(s.files, filename)
	return nil
}

func (s *memoryStorageStub) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	return nil, nil
}

type exportJobStoreStub struct {
	jobs map[string]*models.ExportJob
	seq  int
}

func (s *exportJobStoreStub) Create(ctx context.Context, job *models.ExportJob) error {
	if s.jobs == nil {
		s.jobs = map[string]*models.ExportJob{}
	}
	s.seq++
	if job.ID == "" {
		job.ID = fmt.Sprintf("job-%d", s.seq)
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *exportJobStoreStub) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (s *exportJobStoreStub) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (s *exportJobStoreStub) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	return nil, nil
}

func (s *exportJobStoreStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	return nil, nil
}

type queueStub struct {
	enqueued []jobs.Job
}

func (s *queueStub) Enqueue(job jobs.Job) error {
	s.enqueued = append(s.enqueued, job)
	return nil
}
