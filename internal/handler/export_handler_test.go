package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acadforge/timetable-api/internal/middleware"
	"github.com/acadforge/timetable-api/internal/models"
	"github.com/acadforge/timetable-api/internal/repository"
	"github.com/acadforge/timetable-api/internal/service"
	"github.com/acadforge/timetable-api/pkg/jobs"
)

func TestExportHandlerCreateRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _, _ := newExportFixture(t)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = exportRequest(t, map[string]interface{}{
		"type":         "term_timetable",
		"semester":     "1ST",
		"academicYear": "2026-2027",
		"format":       "csv",
	})

	h.Create(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExportHandlerCreateEnqueues(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _, queue := newExportFixture(t)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = exportRequest(t, map[string]interface{}{
		"type":         "term_timetable",
		"semester":     "1ST",
		"academicYear": "2026-2027",
		"format":       "csv",
	})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin})

	h.Create(c)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, "job-1", queue.enqueued[0].ID)

	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "job-1", envelope.Data["id"])
	assert.Equal(t, string(models.ExportStatusQueued), envelope.Data["status"])
}

func TestExportHandlerCreateFacultyScope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _, queue := newExportFixture(t)

	facultyID := "fac-1"
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = exportRequest(t, map[string]interface{}{
		"type":         "faculty_timetable",
		"semester":     "1ST",
		"academicYear": "2026-2027",
		"facultyId":    "fac-2",
		"format":       "pdf",
	})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleFaculty, FacultyID: &facultyID})

	h.Create(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, queue.enqueued)
}

func TestExportHandlerStatusOwnership(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, store, _ := newExportFixture(t)
	store.jobs["job-9"] = &models.ExportJob{ID: "job-9", Status: models.ExportStatusFinished, Progress: 100, CreatedBy: "user-2"}

	facultyID := "fac-1"
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/exports/job-9", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-9"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleFaculty, FacultyID: &facultyID})

	h.Status(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/exports/job-9", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-9"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin})

	h.Status(c)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExportHandlerDownloadRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _, _ := newExportFixture(t)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/exports/download/", nil)

	h.Download(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func newExportFixture(t *testing.T) (*ExportHandler, *exportStoreStub, *dispatcherStub) {
	t.Helper()
	store := &exportStoreStub{jobs: map[string]*models.ExportJob{}}
	queue := &dispatcherStub{}
	svc := service.NewExportJobService(store, queue, nil, zap.NewNop(), service.ExportJobConfig{})
	return NewExportHandler(svc), store, queue
}

func exportRequest(t *testing.T, payload map[string]interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/exports", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type exportStoreStub struct {
	jobs map[string]*models.ExportJob
	seq  int
}

func (s *exportStoreStub) Create(_ context.Context, job *models.ExportJob) error {
	s.seq++
	job.ID = fmt.Sprintf("job-%d", s.seq)
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *exportStoreStub) GetByID(_ context.Context, id string) (*models.ExportJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (s *exportStoreStub) Update(_ context.Context, id string, params repository.UpdateExportJobParams) error {
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
	return nil
}

func (s *exportStoreStub) ListQueued(context.Context, int) ([]models.ExportJob, error) {
	return nil, nil
}

func (s *exportStoreStub) ListFinishedBefore(context.Context, time.Time, int) ([]models.ExportJob, error) {
	return nil, nil
}

type dispatcherStub struct {
	enqueued []jobs.Job
	err      error
}

func (d *dispatcherStub) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.enqueued = append(d.enqueued, job)
	return nil
}
