package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/acadforge/timetable-api/internal/dto"
	"github.com/acadforge/timetable-api/internal/engine"
	"github.com/acadforge/timetable-api/internal/models"
	appErrors "github.com/acadforge/timetable-api/pkg/errors"
)

type scheduleEntryRepository interface {
	snapshotEntryReader
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, int, error)
	FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.ScheduleEntry, error)
	Create(ctx context.Context, entry *models.ScheduleEntry) error
	Update(ctx context.Context, entry *models.ScheduleEntry) error
	Delete(ctx context.Context, id string) error
	BeginTx(ctx context.Context) (*sqlx.Tx, error)
	UpdateStatusBatchWithTx(ctx context.Context, tx *sqlx.Tx, ids []string, status models.EntryStatus) error
	ArchiveTermWithTx(ctx context.Context, tx *sqlx.Tx, semester, academicYear string) (int64, error)
}

// ScheduleService manages the schedule entry lifecycle: manual drafts,
// edits, the atomic draft-to-published promotion and term archival. Every
// write re-validates against the live conflict universe.
type ScheduleService struct {
	repo      scheduleEntryRepository
	snapshots *snapshotBuilder
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService instantiates ScheduleService. The cache service is
// optional, a nil cache disables the timetable read-through layer.
func NewScheduleService(
	repo scheduleEntryRepository,
	faculty snapshotFacultyReader,
	classrooms snapshotClassroomReader,
	subjects snapshotSubjectReader,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		repo:      repo,
		snapshots: newSnapshotBuilder(faculty, classrooms, subjects, repo),
		cache:     cache,
		validator: validate,
		logger:    logger,
	}
}

// List returns schedule entries with pagination metadata.
func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, *models.Pagination, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedule entries")
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
	return entries, pagination, nil
}

// Timetable returns the published entries of a term, read through the
// cache when one is configured. The second return value reports a cache
// hit.
func (s *ScheduleService) Timetable(ctx context.Context, query dto.TimetableQuery) ([]models.ScheduleEntry, bool, error) {
	if query.Semester == "" || query.AcademicYear == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "semester and academicYear are required")
	}

	key := timetableCacheKey(query)
	var cached []models.ScheduleEntry
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}

	all, err := s.repo.ListByTerm(ctx, query.Semester, query.AcademicYear)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	entries := make([]models.ScheduleEntry, 0, len(all))
	for _, entry := range all {
		if entry.Status != models.EntryStatusPublished {
			continue
		}
		if query.FacultyID != "" && entry.FacultyID != query.FacultyID {
			continue
		}
		if query.ClassroomID != "" && entry.ClassroomID != query.ClassroomID {
			continue
		}
		entries = append(entries, entry)
	}
	if err := s.cache.Set(ctx, key, entries, 0); err != nil {
		s.logger.Warn("timetable cache write failed", zap.Error(err))
	}
	return entries, false, nil
}

// Get loads one schedule entry.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule entry")
	}
	return entry, nil
}

// Create inserts a manual draft entry after conflict detection. With Force
// the entry is persisted even when conflicts exist.
func (s *ScheduleService) Create(ctx context.Context, req dto.CreateScheduleEntryRequest, createdBy string) (*models.ScheduleEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule entry payload")
	}
	slots, err := slotInputsToEngine(req.Slots)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidRange) {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidRange.Code, appErrors.ErrInvalidRange.Status, err.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	candidate := engine.Entry{
		SubjectID:    req.SubjectID,
		FacultyID:    req.FacultyID,
		ClassroomID:  req.ClassroomID,
		Slots:        slots,
		Semester:     req.Semester,
		AcademicYear: req.AcademicYear,
		Status:       engine.StatusDraft,
	}
	if err := s.checkConflicts(ctx, candidate, req.Force); err != nil {
		return nil, err
	}

	slotsJSON, err := engineSlotsToJSON(slots)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode entry slots")
	}
	entry := &models.ScheduleEntry{
		SubjectID:    req.SubjectID,
		FacultyID:    req.FacultyID,
		ClassroomID:  req.ClassroomID,
		Slots:        slotsJSON,
		Semester:     req.Semester,
		AcademicYear: req.AcademicYear,
		Status:       models.EntryStatusDraft,
	}
	if createdBy != "" {
		entry.CreatedBy = &createdBy
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule entry")
	}
	return entry, nil
}

// Update patches a draft entry and re-validates the result. Published and
// archived entries are immutable.
func (s *ScheduleService) Update(ctx context.Context, id string, req dto.UpdateScheduleEntryRequest) (*models.ScheduleEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule entry payload")
	}
	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.EntryStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("entry is %s, only drafts can be edited", entry.Status))
	}

	if req.FacultyID != nil {
		entry.FacultyID = *req.FacultyID
	}
	if req.ClassroomID != nil {
		entry.ClassroomID = *req.ClassroomID
	}
	if req.Slots != nil {
		slots, convErr := slotInputsToEngine(req.Slots)
		if convErr != nil {
			if errors.Is(convErr, engine.ErrInvalidRange) {
				return nil, appErrors.Wrap(convErr, appErrors.ErrInvalidRange.Code, appErrors.ErrInvalidRange.Status, convErr.Error())
			}
			return nil, appErrors.Wrap(convErr, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, convErr.Error())
		}
		slotsJSON, encErr := engineSlotsToJSON(slots)
		if encErr != nil {
			return nil, appErrors.Wrap(encErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode entry slots")
		}
		entry.Slots = slotsJSON
	}

	candidate, err := entryToEngine(*entry)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode entry slots")
	}
	if err := s.checkConflicts(ctx, candidate, req.Force); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update schedule entry")
	}
	return entry, nil
}

// Publish promotes a batch of draft entries to PUBLISHED. The batch is
// atomic: every entry must be a conflict-free draft or nothing changes.
func (s *ScheduleService) Publish(ctx context.Context, req dto.PublishScheduleRequest) ([]models.ScheduleEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid publish payload")
	}

	entries, err := s.repo.ListByIDs(ctx, req.EntryIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load entries")
	}
	if len(entries) != len(req.EntryIDs) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "one or more entries do not exist")
	}

	semester, academicYear := entries[0].Semester, entries[0].AcademicYear
	for _, entry := range entries {
		if entry.Status != models.EntryStatusDraft {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("entry %s is %s, only drafts can be published", entry.ID, entry.Status))
		}
		if entry.Semester != semester || entry.AcademicYear != academicYear {
			return nil, appErrors.Clone(appErrors.ErrValidation, "all entries in a publish batch must belong to the same term")
		}
	}

	snap, err := s.snapshots.Build(ctx, semester, academicYear)
	if err != nil {
		return nil, err
	}
	batch := make([]engine.Entry, 0, len(entries))
	batchIDs := make(map[string]bool, len(entries))
	for _, record := range entries {
		candidate, convErr := entryToEngine(record)
		if convErr != nil {
			return nil, appErrors.Wrap(convErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode entry slots")
		}
		batch = append(batch, candidate)
		batchIDs[record.ID] = true
	}
	// Validate against everything outside the batch plus the other batch
	// members.
	existing := make([]engine.Entry, 0, len(snap.Entries))
	for _, entry := range snap.Entries {
		if !batchIDs[entry.ID] {
			existing = append(existing, entry)
		}
	}
	if found := engine.NewDetector(snap).DetectBatch(batch, existing); len(found) > 0 {
		var all []models.ScheduleConflict
		for _, conflicts := range found {
			all = append(all, conflictsToModels(conflicts)...)
		}
		conflictErr := &models.ScheduleConflictError{Message: "publish rejected, batch contains conflicting entries", Conflicts: all}
		return nil, appErrors.Wrap(conflictErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflictErr.Message)
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin publish transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = s.repo.UpdateStatusBatchWithTx(ctx, tx, req.EntryIDs, models.EntryStatusPublished); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish entries")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit publish transaction")
		return nil, err
	}

	s.invalidateTimetable(ctx, semester, academicYear)
	s.logger.Info("entries published",
		zap.String("semester", semester),
		zap.String("academic_year", academicYear),
		zap.Int("count", len(req.EntryIDs)),
	)

	published, err := s.repo.ListByIDs(ctx, req.EntryIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload entries")
	}
	return published, nil
}

// ArchiveTerm archives every non-archived entry of a term.
func (s *ScheduleService) ArchiveTerm(ctx context.Context, req dto.ArchiveTermRequest) (int64, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid archive payload")
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin archive transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	affected, err := s.repo.ArchiveTermWithTx(ctx, tx, req.Semester, req.AcademicYear)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive term")
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit archive transaction")
		return 0, err
	}

	s.invalidateTimetable(ctx, req.Semester, req.AcademicYear)
	s.logger.Info("term archived",
		zap.String("semester", req.Semester),
		zap.String("academic_year", req.AcademicYear),
		zap.Int64("entries", affected),
	)
	return affected, nil
}

// Delete removes a draft entry. Published entries must be archived, not
// deleted.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if entry.Status == models.EntryStatusPublished {
		return appErrors.Clone(appErrors.ErrConflict, "published entries cannot be deleted, archive the term instead")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule entry")
	}
	return nil
}

func timetableCacheKey(q dto.TimetableQuery) string {
	return fmt.Sprintf("timetable:%s:%s:%s:%s", q.Semester, q.AcademicYear, q.FacultyID, q.ClassroomID)
}

// invalidateTimetable drops every cached view of the term. Cache failures
// never fail the write that triggered them.
func (s *ScheduleService) invalidateTimetable(ctx context.Context, semester, academicYear string) {
	pattern := fmt.Sprintf("timetable:%s:%s:*", semester, academicYear)
	if err := s.cache.Invalidate(ctx, pattern); err != nil {
		s.logger.Warn("timetable cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

// checkConflicts runs the detector for a candidate against the current
// term. Conflicts become a typed error unless force is set.
func (s *ScheduleService) checkConflicts(ctx context.Context, candidate engine.Entry, force bool) error {
	snap, err := s.snapshots.Build(ctx, candidate.Semester, candidate.AcademicYear)
	if err != nil {
		return err
	}
	if err := ensureCandidateRefs(snap, candidate); err != nil {
		return err
	}
	conflicts := engine.NewDetector(snap).Detect(candidate, snap.Entries)
	if len(conflicts) == 0 {
		return nil
	}
	if force {
		s.logger.Warn("conflicting entry persisted with force",
			zap.String("subject_id", candidate.SubjectID),
			zap.Int("conflicts", len(conflicts)),
		)
		return nil
	}
	conflictErr := &models.ScheduleConflictError{Message: "schedule entry conflicts with the committed timetable", Conflicts: conflictsToModels(conflicts)}
	return appErrors.Wrap(conflictErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflictErr.Message)
}
