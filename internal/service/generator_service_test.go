package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acadforge/timetable-api/internal/dto"
	"github.com/acadforge/timetable-api/internal/models"
	appErrors "github.com/acadforge/timetable-api/pkg/errors"
)

func TestGeneratorServiceGenerateSatisfied(t *testing.T) {
	fixture := newGeneratorFixture(t, generatorFixtureConfig{})

	resp, err := fixture.service.Generate(context.Background(), dto.GenerateScheduleRequest{
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		SubjectIDs:   []string{"cs101", "cs102"},
	})
	require.NoError(t, err)
	assert.Equal(t, "SATISFIED", resp.Status)
	assert.NotEmpty(t, resp.ProposalID)
	assert.Len(t, resp.Assigned, 2)
	assert.Empty(t, resp.Unresolved)
	assert.True(t, resp.ExpiresAt.After(time.Now()))
	for _, entry := range resp.Assigned {
		assert.NotEmpty(t, entry.FacultyID)
		assert.NotEmpty(t, entry.ClassroomID)
		assert.NotEmpty(t, entry.Slots)
	}
}

func TestGeneratorServiceGenerateUnknownSubject(t *testing.T) {
	fixture := newGeneratorFixture(t, generatorFixtureConfig{})

	_, err := fixture.service.Generate(context.Background(), dto.GenerateScheduleRequest{
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		SubjectIDs:   []string{"cs101", "ghost"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrReference.Code, appErrors.FromError(err).Code)
}

func TestGeneratorServiceCommitPersistsEntries(t *testing.T) {
	db, mock := newCommitDBMock(t)
	fixture := newGeneratorFixture(t, generatorFixtureConfig{db: db})

	resp, err := fixture.service.Generate(context.Background(), dto.GenerateScheduleRequest{
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		SubjectIDs:   []string{"cs101", "cs102"},
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	entries, err := fixture.service.Commit(context.Background(), dto.CommitProposalRequest{
		ProposalID: resp.ProposalID,
		Publish:    true,
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, models.EntryStatusPublished, entry.Status)
		assert.Equal(t, "1ST", entry.Semester)
	}
	assert.Len(t, fixture.entries.created, 2)
	require.NoError(t, mock.ExpectationsWereMet())

	// One-shot: the proposal is consumed by the commit.
	_, err = fixture.service.Commit(context.Background(), dto.CommitProposalRequest{ProposalID: resp.ProposalID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGeneratorServiceCommitDefaultsToDraft(t *testing.T) {
	db, mock := newCommitDBMock(t)
	fixture := newGeneratorFixture(t, generatorFixtureConfig{db: db})

	resp, err := fixture.service.Generate(context.Background(), dto.GenerateScheduleRequest{
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		SubjectIDs:   []string{"cs101"},
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	entries, err := fixture.service.Commit(context.Background(), dto.CommitProposalRequest{ProposalID: resp.ProposalID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.EntryStatusDraft, entries[0].Status)
}

func TestGeneratorServiceCommitRejectsStaleProposal(t *testing.T) {
	db, _ := newCommitDBMock(t)
	fixture := newGeneratorFixture(t, generatorFixtureConfig{db: db})

	resp, err := fixture.service.Generate(context.Background(), dto.GenerateScheduleRequest{
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		SubjectIDs:   []string{"cs101"},
	})
	require.NoError(t, err)

	// Someone edits the term between generation and commit.
	fixture.entries.fingerprint = "changed"

	_, err = fixture.service.Commit(context.Background(), dto.CommitProposalRequest{ProposalID: resp.ProposalID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStaleCommit.Code, appErrors.FromError(err).Code)
	assert.Empty(t, fixture.entries.created)

	// A stale proposal is discarded, not retried.
	_, err = fixture.service.Commit(context.Background(), dto.CommitProposalRequest{ProposalID: resp.ProposalID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGeneratorServiceCommitUnknownProposal(t *testing.T) {
	fixture := newGeneratorFixture(t, generatorFixtureConfig{})

	_, err := fixture.service.Commit(context.Background(), dto.CommitProposalRequest{ProposalID: "nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGeneratorServiceCommitReleasesPublishedSubjects(t *testing.T) {
	db, mock := newCommitDBMock(t)
	fixture := newGeneratorFixture(t, generatorFixtureConfig{
		db: db,
		existing: []models.ScheduleEntry{
			publishedEntry("entry-old", "cs101", "fac-1", "room-101", "MONDAY", "08:00", "11:00"),
		},
	})

	resp, err := fixture.service.Generate(context.Background(), dto.GenerateScheduleRequest{
		Semester:         "1ST",
		AcademicYear:     "2026-2027",
		SubjectIDs:       []string{"cs101"},
		ReleasePublished: true,
	})
	require.NoError(t, err)
	require.Equal(t, "SATISFIED", resp.Status)

	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err = fixture.service.Commit(context.Background(), dto.CommitProposalRequest{ProposalID: resp.ProposalID})
	require.NoError(t, err)
	assert.Equal(t, []string{"cs101"}, fixture.entries.released)
}

func TestGeneratorServiceDetectConflictsFlagsDoubleBooking(t *testing.T) {
	fixture := newGeneratorFixture(t, generatorFixtureConfig{
		existing: []models.ScheduleEntry{
			publishedEntry("entry-1", "cs101", "fac-1", "room-101", "MONDAY", "08:00", "11:00"),
		},
	})

	resp, err := fixture.service.DetectConflicts(context.Background(), dto.DetectConflictsRequest{
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		SubjectID:    "cs102",
		FacultyID:    "fac-1",
		ClassroomID:  "room-102",
		Slots:        []dto.SlotInput{{Day: "MONDAY", Start: "09:00", End: "12:00"}},
	})
	require.NoError(t, err)
	assert.False(t, resp.Valid)

	kinds := make([]string, 0, len(resp.Conflicts))
	for _, c := range resp.Conflicts {
		kinds = append(kinds, c.Kind)
	}
	assert.Contains(t, kinds, "FACULTY_DOUBLE_BOOKED")
}

func TestGeneratorServiceDetectConflictsCleanCandidate(t *testing.T) {
	fixture := newGeneratorFixture(t, generatorFixtureConfig{
		existing: []models.ScheduleEntry{
			publishedEntry("entry-1", "cs101", "fac-1", "room-101", "MONDAY", "08:00", "11:00"),
		},
	})

	resp, err := fixture.service.DetectConflicts(context.Background(), dto.DetectConflictsRequest{
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		SubjectID:    "cs102",
		FacultyID:    "fac-2",
		ClassroomID:  "room-102",
		Slots:        []dto.SlotInput{{Day: "TUESDAY", Start: "09:00", End: "12:00"}},
	})
	require.NoError(t, err)
	assert.True(t, resp.Valid)
	assert.Empty(t, resp.Conflicts)
}

func TestGeneratorServiceCommitRejectsWriteDuringGenerate(t *testing.T) {
	db, _ := newCommitDBMock(t)
	fixture := newGeneratorFixture(t, generatorFixtureConfig{db: db})

	// An entry lands between the fingerprint read and the snapshot read.
	// The search never saw it, so the commit must come back stale.
	fixture.entries.onListByTerm = func() {
		fixture.entries.fingerprint = "changed"
		fixture.entries.onListByTerm = nil
	}

	resp, err := fixture.service.Generate(context.Background(), dto.GenerateScheduleRequest{
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		SubjectIDs:   []string{"cs101"},
	})
	require.NoError(t, err)

	_, err = fixture.service.Commit(context.Background(), dto.CommitProposalRequest{ProposalID: resp.ProposalID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStaleCommit.Code, appErrors.FromError(err).Code)
	assert.Empty(t, fixture.entries.created)
}

func TestGeneratorServiceDetectConflictsUnknownReference(t *testing.T) {
	fixture := newGeneratorFixture(t, generatorFixtureConfig{})

	requests := []dto.DetectConflictsRequest{
		{SubjectID: "ghost-subject", FacultyID: "fac-1", ClassroomID: "room-101"},
		{SubjectID: "cs101", FacultyID: "ghost-faculty", ClassroomID: "room-101"},
		{SubjectID: "cs101", FacultyID: "fac-1", ClassroomID: "ghost-room"},
	}
	for _, req := range requests {
		req.Semester = "1ST"
		req.AcademicYear = "2026-2027"
		req.Slots = []dto.SlotInput{{Day: "MONDAY", Start: "08:00", End: "10:00"}}

		_, err := fixture.service.DetectConflicts(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrReference.Code, appErrors.FromError(err).Code)
	}
}

func TestGeneratorServiceDetectConflictsRejectsInvertedRange(t *testing.T) {
	fixture := newGeneratorFixture(t, generatorFixtureConfig{})

	_, err := fixture.service.DetectConflicts(context.Background(), dto.DetectConflictsRequest{
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		SubjectID:    "cs101",
		FacultyID:    "fac-1",
		ClassroomID:  "room-101",
		Slots:        []dto.SlotInput{{Day: "MONDAY", Start: "12:00", End: "09:00"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidRange.Code, appErrors.FromError(err).Code)
}

type generatorFixtureConfig struct {
	db       *sqlx.DB
	existing []models.ScheduleEntry
}

type generatorFixture struct {
	service *GeneratorService
	entries *generatorEntryStoreStub
}

func newGeneratorFixture(t *testing.T, cfg generatorFixtureConfig) *generatorFixture {
	t.Helper()

	availability := weekdayAvailabilityJSON(t)
	faculty := &facultyCatalogStub{items: []models.Faculty{
		{ID: "fac-1", DepartmentID: "dept-cs", EmploymentType: models.EmploymentFullTime, MaxLoad: 24, MaxPreparations: 4, Availability: availability, Status: models.FacultyStatusActive},
		{ID: "fac-2", DepartmentID: "dept-cs", EmploymentType: models.EmploymentFullTime, MaxLoad: 24, MaxPreparations: 4, Availability: availability, Status: models.FacultyStatusActive},
	}}
	classrooms := &classroomCatalogStub{items: []models.Classroom{
		{ID: "room-101", Capacity: 50, Type: models.RoomTypeLecture, Status: models.RoomStatusAvailable},
		{ID: "room-102", Capacity: 45, Type: models.RoomTypeLecture, Status: models.RoomStatusAvailable},
	}}
	subjects := &subjectCatalogStub{items: []models.Subject{
		{ID: "cs101", DepartmentID: "dept-cs", LectureUnits: 3, ExpectedEnrollment: 40, Semester: "1ST", AcademicYear: "2026-2027"},
		{ID: "cs102", DepartmentID: "dept-cs", LectureUnits: 3, ExpectedEnrollment: 35, Semester: "1ST", AcademicYear: "2026-2027"},
	}}
	entries := &generatorEntryStoreStub{db: cfg.db, items: cfg.existing, fingerprint: "fp-1"}

	service := NewGeneratorService(
		faculty,
		classrooms,
		subjects,
		entries,
		validator.New(),
		zap.NewNop(),
		nil,
		GeneratorConfig{MaxTrials: 5000, SearchTimeout: 5 * time.Second, ProposalTTL: time.Hour},
	)
	return &generatorFixture{service: service, entries: entries}
}

func weekdayAvailabilityJSON(t *testing.T) types.JSONText {
	t.Helper()
	days := []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY"}
	windows := make([]models.AvailabilityWindow, 0, len(days))
	for _, day := range days {
		windows = append(windows, models.AvailabilityWindow{Day: day, Start: "07:00", End: "19:00"})
	}
	raw, err := json.Marshal(windows)
	require.NoError(t, err)
	return types.JSONText(raw)
}

func publishedEntry(id, subjectID, facultyID, classroomID, day, start, end string) models.ScheduleEntry {
	raw, _ := json.Marshal([]models.EntrySlot{{Day: day, Start: start, End: end}})
	return models.ScheduleEntry{
		ID:           id,
		SubjectID:    subjectID,
		FacultyID:    facultyID,
		ClassroomID:  classroomID,
		Slots:        types.JSONText(raw),
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		Status:       models.EntryStatusPublished,
		Version:      1,
	}
}

type facultyCatalogStub struct {
	items []models.Faculty
}

func (s *facultyCatalogStub) ListAll(ctx context.Context) ([]models.Faculty, error) {
	return s.items, nil
}

type classroomCatalogStub struct {
	items []models.Classroom
}

func (s *classroomCatalogStub) ListAll(ctx context.Context) ([]models.Classroom, error) {
	return s.items, nil
}

type subjectCatalogStub struct {
	items []models.Subject
}

func (s *subjectCatalogStub) ListByTerm(ctx context.Context, semester, academicYear string) ([]models.Subject, error) {
	out := make([]models.Subject, 0, len(s.items))
	for _, sub := range s.items {
		if sub.Semester == semester && sub.AcademicYear == academicYear {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *subjectCatalogStub) ListByIDs(ctx context.Context, ids []string) ([]models.Subject, error) {
	known := make(map[string]models.Subject, len(s.items))
	for _, sub := range s.items {
		known[sub.ID] = sub
	}
	var out []models.Subject
	for _, id := range ids {
		if sub, ok := known[id]; ok {
			out = append(out, sub)
		}
	}
	return out, nil
}

type generatorEntryStoreStub struct {
	db           *sqlx.DB
	items        []models.ScheduleEntry
	fingerprint  string
	created      []models.ScheduleEntry
	released     []string
	onListByTerm func()
}

func (s *generatorEntryStoreStub) ListByTerm(ctx context.Context, semester, academicYear string) ([]models.ScheduleEntry, error) {
	if s.onListByTerm != nil {
		s.onListByTerm()
	}
	return s.items, nil
}

func (s *generatorEntryStoreStub) TermFingerprint(ctx context.Context, semester, academicYear string) (string, error) {
	return s.fingerprint, nil
}

func (s *generatorEntryStoreStub) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	if s.db == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider unavailable")
	}
	return s.db.BeginTxx(ctx, nil)
}

func (s *generatorEntryStoreStub) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, entries []models.ScheduleEntry) error {
	s.created = append(s.created, entries...)
	return nil
}

func (s *generatorEntryStoreStub) DeleteBySubjectsWithTx(ctx context.Context, tx *sqlx.Tx, semester, academicYear string, subjectIDs []string) error {
	s.released = append(s.released, subjectIDs...)
	return nil
}

func newCommitDBMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}
