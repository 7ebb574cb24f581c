package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/acadforge/timetable-api/internal/dto"
	"github.com/acadforge/timetable-api/internal/engine"
	"github.com/acadforge/timetable-api/internal/models"
	appErrors "github.com/acadforge/timetable-api/pkg/errors"
)

type facultyRepository interface {
	List(ctx context.Context, filter models.FacultyFilter) ([]models.Faculty, int, error)
	FindByID(ctx context.Context, id string) (*models.Faculty, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, fac *models.Faculty) error
	Update(ctx context.Context, fac *models.Faculty) error
	SetStatus(ctx context.Context, id string, status models.FacultyStatus) error
}

type facultyEntryReader interface {
	ListByFacultyTerm(ctx context.Context, facultyID, semester, academicYear string) ([]models.ScheduleEntry, error)
}

// FacultyService orchestrates faculty operations, including the derived
// workload figures that are recomputed from schedule entries on every read.
type FacultyService struct {
	repo      facultyRepository
	entries   facultyEntryReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFacultyService constructs a FacultyService.
func NewFacultyService(repo facultyRepository, entries facultyEntryReader, validate *validator.Validate, logger *zap.Logger) *FacultyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FacultyService{repo: repo, entries: entries, validator: validate, logger: logger}
}

// List returns faculty plus pagination data.
func (s *FacultyService) List(ctx context.Context, filter models.FacultyFilter) ([]models.Faculty, *models.Pagination, error) {
	faculty, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list faculty")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return faculty, pagination, nil
}

// Get returns a faculty member by id.
func (s *FacultyService) Get(ctx context.Context, id string) (*models.Faculty, error) {
	fac, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty member")
	}
	return fac, nil
}

// Create registers a new faculty member.
func (s *FacultyService) Create(ctx context.Context, req dto.CreateFacultyRequest) (*models.Faculty, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid faculty payload")
	}
	exists, err := s.repo.ExistsByEmail(ctx, req.Email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check faculty email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	}

	availability, err := availabilityJSON(req.Availability)
	if err != nil {
		return nil, err
	}

	fac := &models.Faculty{
		EmployeeNo:      normalizeOptional(req.EmployeeNo),
		Email:           strings.TrimSpace(req.Email),
		FullName:        strings.TrimSpace(req.FullName),
		DepartmentID:    req.DepartmentID,
		EmploymentType:  models.EmploymentType(req.EmploymentType),
		MinLoad:         req.MinLoad,
		MaxLoad:         req.MaxLoad,
		MaxPreparations: req.MaxPreparations,
		Availability:    availability,
		Status:          models.FacultyStatusActive,
	}
	if err := s.repo.Create(ctx, fac); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create faculty member")
	}
	return fac, nil
}

// Update modifies an existing faculty member.
func (s *FacultyService) Update(ctx context.Context, id string, req dto.UpdateFacultyRequest) (*models.Faculty, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid faculty payload")
	}
	fac, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		exists, checkErr := s.repo.ExistsByEmail(ctx, *req.Email, id)
		if checkErr != nil {
			return nil, appErrors.Wrap(checkErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check faculty email")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
		}
		fac.Email = strings.TrimSpace(*req.Email)
	}
	if req.EmployeeNo != nil {
		fac.EmployeeNo = normalizeOptional(req.EmployeeNo)
	}
	if req.FullName != nil {
		fac.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.DepartmentID != nil {
		fac.DepartmentID = *req.DepartmentID
	}
	if req.EmploymentType != nil {
		fac.EmploymentType = models.EmploymentType(*req.EmploymentType)
	}
	if req.MinLoad != nil {
		fac.MinLoad = *req.MinLoad
	}
	if req.MaxLoad != nil {
		fac.MaxLoad = *req.MaxLoad
	}
	if req.MaxPreparations != nil {
		fac.MaxPreparations = *req.MaxPreparations
	}
	if req.Availability != nil {
		availability, convErr := availabilityJSON(req.Availability)
		if convErr != nil {
			return nil, convErr
		}
		fac.Availability = availability
	}
	if req.Status != nil {
		fac.Status = models.FacultyStatus(*req.Status)
	}
	if fac.MaxLoad < fac.MinLoad {
		return nil, appErrors.Clone(appErrors.ErrValidation, "max load must not be below min load")
	}

	if err := s.repo.Update(ctx, fac); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update faculty member")
	}
	return fac, nil
}

// Deactivate removes a faculty member from the assignable pool without
// touching their existing entries.
func (s *FacultyService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SetStatus(ctx, id, models.FacultyStatusInactive); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate faculty member")
	}
	return nil
}

// Workload recomputes a faculty member's load and preparation figures for
// a term from their non-archived entries. Stored counters are never
// trusted.
func (s *FacultyService) Workload(ctx context.Context, id, semester, academicYear string) (*models.FacultyWorkload, error) {
	if semester == "" || academicYear == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester and academicYear are required")
	}
	fac, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	records, err := s.entries.ListByFacultyTerm(ctx, id, semester, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty entries")
	}
	entries := make([]engine.Entry, 0, len(records))
	for _, record := range records {
		entry, convErr := entryToEngine(record)
		if convErr != nil {
			return nil, appErrors.Wrap(convErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode entry slots")
		}
		entries = append(entries, entry)
	}

	load := engine.LoadFor(id, entries)
	preps := engine.PreparationsFor(id, entries)

	return &models.FacultyWorkload{
		FacultyID:           fac.ID,
		FullName:            fac.FullName,
		Semester:            semester,
		AcademicYear:        academicYear,
		CurrentLoad:         load,
		CurrentPreparations: preps,
		MinLoad:             fac.MinLoad,
		MaxLoad:             fac.MaxLoad,
		MaxPreparations:     fac.MaxPreparations,
		UnderMinimum:        load < fac.MinLoad,
	}, nil
}

// normalizeOptional trims optional string fields, collapsing blanks to nil.
func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// availabilityJSON validates request windows and encodes them for storage.
func availabilityJSON(windows []dto.SlotInput) (types.JSONText, error) {
	if _, err := slotInputsToEngine(windows); err != nil {
		if errors.Is(err, engine.ErrInvalidRange) {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidRange.Code, appErrors.ErrInvalidRange.Status, err.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	items := make([]models.AvailabilityWindow, 0, len(windows))
	for _, w := range windows {
		items = append(items, models.AvailabilityWindow{Day: w.Day, Start: w.Start, End: w.End})
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode availability")
	}
	return types.JSONText(raw), nil
}
