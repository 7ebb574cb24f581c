package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/acadforge/timetable-api/internal/dto"
	"github.com/acadforge/timetable-api/internal/engine"
	"github.com/acadforge/timetable-api/internal/models"
	appErrors "github.com/acadforge/timetable-api/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	Create(ctx context.Context, sub *models.Subject) error
	Update(ctx context.Context, sub *models.Subject) error
	Delete(ctx context.Context, id string) error
}

// SubjectService orchestrates subject offering operations.
type SubjectService struct {
	repo      subjectRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs a SubjectService.
func NewSubjectService(repo subjectRepository, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, validator: validate, logger: logger}
}

// List returns subjects plus pagination data.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
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
	return subjects, pagination, nil
}

// Get returns a subject by id.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return sub, nil
}

// Load returns the derived teaching hours for a subject.
func (s *SubjectService) Load(ctx context.Context, id string) (*models.SubjectLoad, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.SubjectLoad{
		SubjectID:    sub.ID,
		Code:         sub.Code,
		LectureHours: engine.LectureHours(sub.LectureUnits),
		LabHours:     engine.LabHours(sub.LabUnits),
		TotalHours:   engine.TotalTeachingHours(sub.LectureUnits, sub.LabUnits),
	}, nil
}

// Create registers a new subject offering.
func (s *SubjectService) Create(ctx context.Context, req dto.CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	if req.LectureUnits <= 0 && req.LabUnits <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject needs lecture or lab units")
	}
	sub := &models.Subject{
		Code:               strings.TrimSpace(req.Code),
		Name:               strings.TrimSpace(req.Name),
		DepartmentID:       req.DepartmentID,
		LectureUnits:       req.LectureUnits,
		LabUnits:           req.LabUnits,
		ExpectedEnrollment: req.ExpectedEnrollment,
		Semester:           req.Semester,
		AcademicYear:       req.AcademicYear,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	return sub, nil
}

// Update modifies an existing subject offering.
func (s *SubjectService) Update(ctx context.Context, id string, req dto.UpdateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		sub.Name = strings.TrimSpace(*req.Name)
	}
	if req.DepartmentID != nil {
		sub.DepartmentID = *req.DepartmentID
	}
	if req.LectureUnits != nil {
		sub.LectureUnits = *req.LectureUnits
	}
	if req.LabUnits != nil {
		sub.LabUnits = *req.LabUnits
	}
	if req.ExpectedEnrollment != nil {
		sub.ExpectedEnrollment = *req.ExpectedEnrollment
	}
	if sub.LectureUnits <= 0 && sub.LabUnits <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject needs lecture or lab units")
	}

	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	return sub, nil
}

// Delete removes a subject offering.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	return nil
}
