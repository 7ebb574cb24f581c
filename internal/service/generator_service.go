package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/acadforge/timetable-api/internal/dto"
	"github.com/acadforge/timetable-api/internal/engine"
	"github.com/acadforge/timetable-api/internal/models"
	appErrors "github.com/acadforge/timetable-api/pkg/errors"
)

type generatorSubjectReader interface {
	snapshotSubjectReader
	ListByIDs(ctx context.Context, ids []string) ([]models.Subject, error)
}

type generatorEntryWriter interface {
	snapshotEntryReader
	TermFingerprint(ctx context.Context, semester, academicYear string) (string, error)
	BeginTx(ctx context.Context) (*sqlx.Tx, error)
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, entries []models.ScheduleEntry) error
	DeleteBySubjectsWithTx(ctx context.Context, tx *sqlx.Tx, semester, academicYear string, subjectIDs []string) error
}

// GeneratorConfig governs generation runs and proposal retention.
type GeneratorConfig struct {
	MaxTrials     int
	SearchTimeout time.Duration
	ProposalTTL   time.Duration
	SlotStepMins  int
}

// GeneratorService orchestrates assignment search runs: it snapshots the
// catalog, runs the engine, parks the result as a proposal and commits
// accepted proposals transactionally.
type GeneratorService struct {
	faculty    snapshotFacultyReader
	classrooms snapshotClassroomReader
	subjects   generatorSubjectReader
	entries    generatorEntryWriter
	snapshots  *snapshotBuilder
	validator  *validator.Validate
	logger     *zap.Logger
	metrics    *MetricsService
	cfg        GeneratorConfig
	store      *proposalStore

	mu        sync.Mutex
	termLocks map[string]*sync.Mutex
}

// NewGeneratorService wires generator dependencies.
func NewGeneratorService(
	faculty snapshotFacultyReader,
	classrooms snapshotClassroomReader,
	subjects generatorSubjectReader,
	entries generatorEntryWriter,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
	cfg GeneratorConfig,
) *GeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTrials <= 0 {
		cfg.MaxTrials = 20000
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = 30 * time.Second
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.SlotStepMins <= 0 {
		cfg.SlotStepMins = 30
	}
	return &GeneratorService{
		faculty:    faculty,
		classrooms: classrooms,
		subjects:   subjects,
		entries:    entries,
		snapshots:  newSnapshotBuilder(faculty, classrooms, subjects, entries),
		validator:  validate,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
		store:      newProposalStore(cfg.ProposalTTL),
		termLocks:  map[string]*sync.Mutex{},
	}
}

// termLock returns the mutex serializing generation and commits for one
// term, so concurrent runs cannot interleave their snapshots and writes.
func (s *GeneratorService) termLock(semester, academicYear string) *sync.Mutex {
	key := semester + "|" + academicYear
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.termLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.termLocks[key] = lock
	}
	return lock
}

// Generate runs the assignment search for the requested term and subject
// roster and parks the result as a proposal.
func (s *GeneratorService) Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule generation payload")
	}

	lock := s.termLock(req.Semester, req.AcademicYear)
	lock.Lock()
	defer lock.Unlock()

	if err := s.ensureSubjectsExist(ctx, req.SubjectIDs); err != nil {
		return nil, err
	}

	// The fingerprint is read before the snapshot. Any write that lands
	// between the two reads changes the fingerprint the commit re-checks,
	// so a search run over a torn view can never be persisted.
	fingerprint, err := s.entries.TermFingerprint(ctx, req.Semester, req.AcademicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fingerprint term entries")
	}
	snap, err := s.snapshots.Build(ctx, req.Semester, req.AcademicYear)
	if err != nil {
		return nil, err
	}

	maxTrials := s.cfg.MaxTrials
	timeout := s.cfg.SearchTimeout
	if req.Options != nil {
		if req.Options.MaxTrials > 0 && req.Options.MaxTrials < maxTrials {
			maxTrials = req.Options.MaxTrials
		}
		if req.Options.TimeoutSeconds > 0 {
			timeout = time.Duration(req.Options.TimeoutSeconds) * time.Second
		}
	}

	searchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	searcher := engine.NewSearcher(snap, s.logger,
		engine.WithMaxTrials(maxTrials),
		engine.WithSlotStep(engine.TimeOfDay(s.cfg.SlotStepMins)),
	)
	result, err := searcher.Run(searchCtx, engine.Request{
		Semester:         req.Semester,
		AcademicYear:     req.AcademicYear,
		SubjectIDs:       req.SubjectIDs,
		ReleasePublished: req.ReleasePublished,
	})
	if err != nil {
		var refErr *engine.ReferenceError
		if errors.As(err, &refErr) {
			return nil, appErrors.Wrap(err, appErrors.ErrReference.Code, appErrors.ErrReference.Status, refErr.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "assignment search failed")
	}
	s.metrics.RecordGeneratorRun(string(result.Status), result.Trials, time.Since(started))

	now := time.Now().UTC()
	proposal := scheduleProposal{
		ProposalID:       uuid.NewString(),
		Semester:         req.Semester,
		AcademicYear:     req.AcademicYear,
		SubjectIDs:       req.SubjectIDs,
		ReleasePublished: req.ReleasePublished,
		Fingerprint:      fingerprint,
		Result:           result,
		RequestedAt:      now,
	}
	s.store.Save(proposal)

	resp := &dto.GenerateScheduleResponse{
		ProposalID:   proposal.ProposalID,
		Status:       string(result.Status),
		Assigned:     make([]dto.EntryProposal, 0, len(result.Assigned)),
		Trials:       result.Trials,
		Backtracks:   result.Backtracks,
		LoadVariance: result.LoadVariance,
		ExpiresAt:    now.Add(s.cfg.ProposalTTL),
	}
	for _, entry := range result.Assigned {
		resp.Assigned = append(resp.Assigned, dto.EntryProposal{
			ID:          entry.ID,
			SubjectID:   entry.SubjectID,
			FacultyID:   entry.FacultyID,
			ClassroomID: entry.ClassroomID,
			Slots:       engineSlotsToInputs(entry.Slots),
		})
	}
	for _, unresolved := range result.Unresolved {
		resp.Unresolved = append(resp.Unresolved, dto.UnresolvedSubject{
			SubjectID: unresolved.SubjectID,
			Reason:    unresolved.Reason,
			Conflicts: conflictsToResponses(unresolved.Conflicts),
		})
	}
	return resp, nil
}

// Commit persists a held proposal as schedule entries. The term must not
// have changed since the proposal's snapshot; otherwise the commit is
// rejected as stale and the caller should regenerate.
func (s *GeneratorService) Commit(ctx context.Context, req dto.CommitProposalRequest) ([]models.ScheduleEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid commit payload")
	}
	proposal, ok := s.store.Get(req.ProposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if len(proposal.Result.Assigned) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInfeasible, "proposal has no assignments to commit")
	}

	lock := s.termLock(proposal.Semester, proposal.AcademicYear)
	lock.Lock()
	defer lock.Unlock()

	fingerprint, err := s.entries.TermFingerprint(ctx, proposal.Semester, proposal.AcademicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fingerprint term entries")
	}
	if fingerprint != proposal.Fingerprint {
		s.store.Delete(req.ProposalID)
		return nil, appErrors.Clone(appErrors.ErrStaleCommit, "schedule entries changed since the proposal was generated")
	}

	status := models.EntryStatusDraft
	if req.Publish {
		status = models.EntryStatusPublished
	}

	records := make([]models.ScheduleEntry, 0, len(proposal.Result.Assigned))
	for _, entry := range proposal.Result.Assigned {
		slots, encodeErr := engineSlotsToJSON(entry.Slots)
		if encodeErr != nil {
			return nil, appErrors.Wrap(encodeErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode entry slots")
		}
		records = append(records, models.ScheduleEntry{
			ID:           entry.ID,
			SubjectID:    entry.SubjectID,
			FacultyID:    entry.FacultyID,
			ClassroomID:  entry.ClassroomID,
			Slots:        slots,
			Semester:     proposal.Semester,
			AcademicYear: proposal.AcademicYear,
			Status:       status,
		})
	}

	tx, err := s.entries.BeginTx(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin commit transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if proposal.ReleasePublished {
		if err = s.entries.DeleteBySubjectsWithTx(ctx, tx, proposal.Semester, proposal.AcademicYear, proposal.SubjectIDs); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release existing entries")
			return nil, err
		}
	}
	if err = s.entries.BulkCreateWithTx(ctx, tx, records); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist schedule entries")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit schedule entries")
		return nil, err
	}

	s.store.Delete(req.ProposalID)
	s.metrics.RecordProposalCommit(len(records))
	s.logger.Info("proposal committed",
		zap.String("proposal_id", req.ProposalID),
		zap.String("semester", proposal.Semester),
		zap.String("academic_year", proposal.AcademicYear),
		zap.Int("entries", len(records)),
		zap.Bool("published", req.Publish),
	)
	return records, nil
}

// DetectConflicts validates a candidate assignment against the committed
// timetable without persisting anything.
func (s *GeneratorService) DetectConflicts(ctx context.Context, req dto.DetectConflictsRequest) (*dto.DetectConflictsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conflict detection payload")
	}

	slots, err := slotInputsToEngine(req.Slots)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidRange) {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidRange.Code, appErrors.ErrInvalidRange.Status, err.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	snap, err := s.snapshots.Build(ctx, req.Semester, req.AcademicYear)
	if err != nil {
		return nil, err
	}

	candidate := engine.Entry{
		ID:           req.EntryID,
		SubjectID:    req.SubjectID,
		FacultyID:    req.FacultyID,
		ClassroomID:  req.ClassroomID,
		Slots:        slots,
		Semester:     req.Semester,
		AcademicYear: req.AcademicYear,
		Status:       engine.StatusDraft,
	}
	if err := ensureCandidateRefs(snap, candidate); err != nil {
		return nil, err
	}
	conflicts := engine.NewDetector(snap).Detect(candidate, snap.Entries)

	return &dto.DetectConflictsResponse{
		Valid:     len(conflicts) == 0,
		Conflicts: conflictsToResponses(conflicts),
	}, nil
}

func (s *GeneratorService) ensureSubjectsExist(ctx context.Context, ids []string) error {
	found, err := s.subjects.ListByIDs(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	known := make(map[string]bool, len(found))
	for _, sub := range found {
		known[sub.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return appErrors.Clone(appErrors.ErrReference, "unknown subject "+id)
		}
	}
	return nil
}

// scheduleProposal is a generation result parked server-side until the
// caller commits or it expires.
type scheduleProposal struct {
	ProposalID       string
	Semester         string
	AcademicYear     string
	SubjectIDs       []string
	ReleasePublished bool
	Fingerprint      string
	Result           *engine.Result
	RequestedAt      time.Time
}

type proposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]scheduleProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		items: make(map[string]scheduleProposal),
	}
}

func (s *proposalStore) Save(proposal scheduleProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[proposal.ProposalID] = proposal
}

func (s *proposalStore) Get(id string) (scheduleProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return scheduleProposal{}, false
	}
	if time.Since(proposal.RequestedAt) > s.ttl {
		s.Delete(id)
		return scheduleProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}
