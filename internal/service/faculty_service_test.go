package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acadforge/timetable-api/internal/dto"
	"github.com/acadforge/timetable-api/internal/models"
	appErrors "github.com/acadforge/timetable-api/pkg/errors"
)

func TestFacultyServiceCreate(t *testing.T) {
	repo := &facultyRepoStub{}
	service := NewFacultyService(repo, &facultyEntriesStub{}, validator.New(), zap.NewNop())

	fac, err := service.Create(context.Background(), dto.CreateFacultyRequest{
		Email:           "reyes@univ.edu",
		FullName:        "A. Reyes",
		DepartmentID:    "dept-cs",
		EmploymentType:  "FULL_TIME",
		MinLoad:         12,
		MaxLoad:         24,
		MaxPreparations: 4,
		Availability:    []dto.SlotInput{{Day: "MONDAY", Start: "08:00", End: "17:00"}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.FacultyStatusActive, fac.Status)
	assert.Equal(t, models.EmploymentFullTime, fac.EmploymentType)
	assert.NotEmpty(t, fac.ID)
}

func TestFacultyServiceCreateDuplicateEmail(t *testing.T) {
	repo := &facultyRepoStub{items: []models.Faculty{
		{ID: "fac-1", Email: "reyes@univ.edu", Status: models.FacultyStatusActive},
	}}
	service := NewFacultyService(repo, &facultyEntriesStub{}, validator.New(), zap.NewNop())

	_, err := service.Create(context.Background(), dto.CreateFacultyRequest{
		Email:          "reyes@univ.edu",
		FullName:       "A. Reyes",
		DepartmentID:   "dept-cs",
		EmploymentType: "FULL_TIME",
		MaxLoad:        24,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestFacultyServiceCreateRejectsInvertedAvailability(t *testing.T) {
	service := NewFacultyService(&facultyRepoStub{}, &facultyEntriesStub{}, validator.New(), zap.NewNop())

	_, err := service.Create(context.Background(), dto.CreateFacultyRequest{
		Email:          "reyes@univ.edu",
		FullName:       "A. Reyes",
		DepartmentID:   "dept-cs",
		EmploymentType: "FULL_TIME",
		MaxLoad:        24,
		Availability:   []dto.SlotInput{{Day: "MONDAY", Start: "17:00", End: "08:00"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidRange.Code, appErrors.FromError(err).Code)
}

func TestFacultyServiceUpdateLoadBounds(t *testing.T) {
	repo := &facultyRepoStub{items: []models.Faculty{
		{ID: "fac-1", Email: "reyes@univ.edu", MinLoad: 12, MaxLoad: 24, Status: models.FacultyStatusActive},
	}}
	service := NewFacultyService(repo, &facultyEntriesStub{}, validator.New(), zap.NewNop())

	lowered := 6.0
	_, err := service.Update(context.Background(), "fac-1", dto.UpdateFacultyRequest{MaxLoad: &lowered})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	raised := 30.0
	fac, err := service.Update(context.Background(), "fac-1", dto.UpdateFacultyRequest{MaxLoad: &raised})
	require.NoError(t, err)
	assert.Equal(t, 30.0, fac.MaxLoad)
}

func TestFacultyServiceDeactivate(t *testing.T) {
	repo := &facultyRepoStub{items: []models.Faculty{
		{ID: "fac-1", Email: "reyes@univ.edu", Status: models.FacultyStatusActive},
	}}
	service := NewFacultyService(repo, &facultyEntriesStub{}, validator.New(), zap.NewNop())

	require.NoError(t, service.Deactivate(context.Background(), "fac-1"))
	assert.Equal(t, models.FacultyStatusInactive, repo.items[0].Status)

	err := service.Deactivate(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestFacultyServiceWorkloadRecomputed(t *testing.T) {
	repo := &facultyRepoStub{items: []models.Faculty{
		{ID: "fac-1", FullName: "A. Reyes", MinLoad: 12, MaxLoad: 24, MaxPreparations: 4, Status: models.FacultyStatusActive},
	}}
	entries := &facultyEntriesStub{items: []models.ScheduleEntry{
		// Two sections of the same subject plus one other preparation,
		// nine contact hours in total.
		publishedEntry("entry-1", "cs101", "fac-1", "room-101", "MONDAY", "08:00", "11:00"),
		publishedEntry("entry-2", "cs101", "fac-1", "room-101", "WEDNESDAY", "08:00", "11:00"),
		publishedEntry("entry-3", "cs102", "fac-1", "room-102", "FRIDAY", "08:00", "11:00"),
	}}
	service := NewFacultyService(repo, entries, validator.New(), zap.NewNop())

	workload, err := service.Workload(context.Background(), "fac-1", "1ST", "2026-2027")
	require.NoError(t, err)
	assert.InDelta(t, 9.0, workload.CurrentLoad, 0.001)
	assert.Equal(t, 2, workload.CurrentPreparations)
	assert.True(t, workload.UnderMinimum)
}

func TestFacultyServiceWorkloadRequiresTerm(t *testing.T) {
	service := NewFacultyService(&facultyRepoStub{}, &facultyEntriesStub{}, validator.New(), zap.NewNop())

	_, err := service.Workload(context.Background(), "fac-1", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

type facultyRepoStub struct {
	items []models.Faculty
	seq   int
}

func (s *facultyRepoStub) List(ctx context.Context, filter models.FacultyFilter) ([]models.Faculty, int, error) {
	return s.items, len(s.items), nil
}

func (s *facultyRepoStub) FindByID(ctx context.Context, id string) (*models.Faculty, error) {
	for _, item := range s.items {
		if item.ID == id {
			fac := item
			return &fac, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *facultyRepoStub) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	for _, item := range s.items {
		if strings.EqualFold(item.Email, email) && item.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *facultyRepoStub) Create(ctx context.Context, fac *models.Faculty) error {
	s.seq++
	fac.ID = fmt.Sprintf("fac-%d", s.seq)
	s.items = append(s.items, *fac)
	return nil
}

func (s *facultyRepoStub) Update(ctx context.Context, fac *models.Faculty) error {
	for idx := range s.items {
		if s.items[idx].ID == fac.ID {
			s.items[idx] = *fac
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *facultyRepoStub) SetStatus(ctx context.Context, id string, status models.FacultyStatus) error {
	for idx := range s.items {
		if s.items[idx].ID == id {
			s.items[idx].Status = status
			return nil
		}
	}
	return sql.ErrNoRows
}

type facultyEntriesStub struct {
	items []models.ScheduleEntry
}

func (s *facultyEntriesStub) ListByFacultyTerm(ctx context.Context, facultyID, semester, academicYear string) ([]models.ScheduleEntry, error) {
	var out []models.ScheduleEntry
	for _, item := range s.items {
		if item.FacultyID == facultyID {
			out = append(out, item)
		}
	}
	return out, nil
}
