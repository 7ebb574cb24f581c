package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("entry-%d", n)
	}
}

func searchSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	return &Snapshot{
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		Faculty: map[string]Faculty{
			"fac-1": {
				ID:              "fac-1",
				DepartmentID:    "dept-cs",
				MinLoad:         18,
				MaxLoad:         24,
				MaxPreparations: 4,
				Availability:    weekdayWindows(t, Monday, Tuesday, Wednesday, Thursday, Friday),
				Status:          FacultyActive,
			},
			"fac-2": {
				ID:              "fac-2",
				DepartmentID:    "dept-cs",
				MinLoad:         18,
				MaxLoad:         24,
				MaxPreparations: 4,
				Availability:    weekdayWindows(t, Monday, Tuesday, Wednesday, Thursday, Friday),
				Status:          FacultyActive,
			},
		},
		Classrooms: map[string]Classroom{
			"room-101": {ID: "room-101", Capacity: 45, Type: RoomLecture, Status: RoomAvailable},
			"room-102": {ID: "room-102", Capacity: 45, Type: RoomLecture, Status: RoomAvailable},
			"room-lab": {ID: "room-lab", Capacity: 30, Type: RoomComputerLab, Status: RoomAvailable},
		},
		Subjects: map[string]Subject{
			"cs101":  {ID: "cs101", DepartmentID: "dept-cs", LectureUnits: 3, ExpectedEnrollment: 40},
			"cs102":  {ID: "cs102", DepartmentID: "dept-cs", LectureUnits: 3, ExpectedEnrollment: 35},
			"cs-lab": {ID: "cs-lab", DepartmentID: "dept-cs", LectureUnits: 2, LabUnits: 2.25, ExpectedEnrollment: 25},
		},
	}
}

func TestSearcherSatisfiesFullRoster(t *testing.T) {
	snap := searchSnapshot(t)
	searcher := NewSearcher(snap, zap.NewNop(), WithIDGenerator(sequentialIDs()))

	result, err := searcher.Run(context.Background(), Request{
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		SubjectIDs:   []string{"cs101", "cs102", "cs-lab"},
	})
	require.NoError(t, err)
	require.Equal(t, SearchSatisfied, result.Status)
	require.Len(t, result.Assigned, 3)
	assert.Empty(t, result.Unresolved)

	detector := NewDetector(snap)
	for _, entry := range result.Assigned {
		assert.Equal(t, StatusDraft, entry.Status)
		sub := snap.Subjects[entry.SubjectID]
		assert.InDelta(t, sub.TotalHours(), TotalHours(entry.Slots), 1e-9)
		assert.Empty(t, detector.Detect(entry, result.Assigned))
	}
	assert.InDelta(t, LoadVariance(snap, result.Assigned), result.LoadVariance, 1e-9)
}

func TestSearcherLabSubjectLandsInLabRoom(t *testing.T) {
	snap := searchSnapshot(t)
	searcher := NewSearcher(snap, zap.NewNop(), WithIDGenerator(sequentialIDs()))

	result, err := searcher.Run(context.Background(), Request{
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		SubjectIDs:   []string{"cs-lab"},
	})
	require.NoError(t, err)
	require.Equal(t, SearchSatisfied, result.Status)
	require.Len(t, result.Assigned, 1)
	assert.Equal(t, "room-lab", result.Assigned[0].ClassroomID)
}

func TestSearcherDeterministicOnIdenticalInput(t *testing.T) {
	first, err := NewSearcher(searchSnapshot(t), zap.NewNop(), WithIDGenerator(sequentialIDs())).
		Run(context.Background(), Request{Semester: "1ST", AcademicYear: "2026-2027", SubjectIDs: []string{"cs101", "cs102", "cs-lab"}})
	require.NoError(t, err)

	second, err := NewSearcher(searchSnapshot(t), zap.NewNop(), WithIDGenerator(sequentialIDs())).
		Run(context.Background(), Request{Semester: "1ST", AcademicYear: "2026-2027", SubjectIDs: []string{"cs101", "cs102", "cs-lab"}})
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Assigned, second.Assigned)
}

func TestSearcherSingleFacultyContention(t *testing.T) {
	snap := searchSnapshot(t)
	// Only fac-1 remains, available exactly Monday 08:00-10:00.
	delete(snap.Faculty, "fac-2")
	fac := snap.Faculty["fac-1"]
	fac.Availability = []TimeSlot{mustSlot(t, Monday, "08:00", "10:00")}
	snap.Faculty["fac-1"] = fac
	snap.Subjects = map[string]Subject{
		"cs201": {ID: "cs201", DepartmentID: "dept-cs", LectureUnits: 2},
		"cs202": {ID: "cs202", DepartmentID: "dept-cs", LectureUnits: 2},
	}

	searcher := NewSearcher(snap, zap.NewNop(), WithIDGenerator(sequentialIDs()))
	result, err := searcher.Run(context.Background(), Request{
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		SubjectIDs:   []string{"cs201", "cs202"},
	})
	require.NoError(t, err)
	require.Equal(t, SearchPartiallySatisfied, result.Status)
	require.Len(t, result.Assigned, 1)
	require.Len(t, result.Unresolved, 1)

	blocked := result.Unresolved[0]
	require.NotEmpty(t, blocked.Conflicts)
	found := kinds(blocked.Conflicts)
	assert.Contains(t, found, FacultyDoubleBooked)
}

func TestSearcherInfeasibleWhenNoFacultyQualifies(t *testing.T) {
	snap := searchSnapshot(t)
	for id, f := range snap.Faculty {
		f.Status = FacultyInactive
		snap.Faculty[id] = f
	}

	searcher := NewSearcher(snap, zap.NewNop())
	result, err := searcher.Run(context.Background(), Request{
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		SubjectIDs:   []string{"cs101"},
	})
	require.NoError(t, err)
	assert.Equal(t, SearchInfeasible, result.Status)
	require.Len(t, result.Unresolved, 1)
	assert.NotEmpty(t, result.Unresolved[0].Reason)
}

func TestSearcherHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	searcher := NewSearcher(searchSnapshot(t), zap.NewNop())
	result, err := searcher.Run(ctx, Request{
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		SubjectIDs:   []string{"cs101", "cs102"},
	})
	require.NoError(t, err)
	assert.Zero(t, result.Trials)
	assert.NotEqual(t, SearchSatisfied, result.Status)
	assert.Len(t, result.Unresolved, 2)
}

func TestSearcherTrialBudgetStopsSearch(t *testing.T) {
	searcher := NewSearcher(searchSnapshot(t), zap.NewNop(), WithMaxTrials(1), WithIDGenerator(sequentialIDs()))
	result, err := searcher.Run(context.Background(), Request{
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		SubjectIDs:   []string{"cs101", "cs102", "cs-lab"},
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, result.Trials, 1)
	assert.NotEqual(t, SearchSatisfied, result.Status)
}

func TestSearcherUnknownSubjectIsReferenceError(t *testing.T) {
	searcher := NewSearcher(searchSnapshot(t), zap.NewNop())
	_, err := searcher.Run(context.Background(), Request{
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		SubjectIDs:   []string{"ghost"},
	})
	require.Error(t, err)
	var refErr *ReferenceError
	assert.ErrorAs(t, err, &refErr)
}

func TestSearcherReleasePublished(t *testing.T) {
	snap := searchSnapshot(t)
	delete(snap.Faculty, "fac-2")
	fac := snap.Faculty["fac-1"]
	fac.Availability = []TimeSlot{mustSlot(t, Monday, "08:00", "10:00")}
	snap.Faculty["fac-1"] = fac
	snap.Subjects = map[string]Subject{
		"cs201": {ID: "cs201", DepartmentID: "dept-cs", LectureUnits: 2},
	}
	published := Entry{
		ID:           "pub-1",
		SubjectID:    "cs201",
		FacultyID:    "fac-1",
		ClassroomID:  "room-101",
		Slots:        []TimeSlot{mustSlot(t, Monday, "08:00", "10:00")},
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		Status:       StatusPublished,
	}
	snap.Entries = []Entry{published}

	// Published entries are immutable inputs by default.
	locked, err := NewSearcher(snap, zap.NewNop(), WithIDGenerator(sequentialIDs())).
		Run(context.Background(), Request{Semester: "1ST", AcademicYear: "2026-2027", SubjectIDs: []string{"cs201"}})
	require.NoError(t, err)
	assert.NotEqual(t, SearchSatisfied, locked.Status)

	// Releasing them lets the run reclaim the slot.
	released, err := NewSearcher(snap, zap.NewNop(), WithIDGenerator(sequentialIDs())).
		Run(context.Background(), Request{Semester: "1ST", AcademicYear: "2026-2027", SubjectIDs: []string{"cs201"}, ReleasePublished: true})
	require.NoError(t, err)
	assert.Equal(t, SearchSatisfied, released.Status)
}

func TestSearcherOrdersMostConstrainedFirst(t *testing.T) {
	snap := searchSnapshot(t)
	searcher := NewSearcher(snap, zap.NewNop())

	ordered := searcher.orderByDifficulty([]Subject{
		snap.Subjects["cs101"],
		snap.Subjects["cs-lab"],
	}, nil)
	// cs-lab has one compatible room against two for cs101.
	require.Len(t, ordered, 2)
	assert.Equal(t, "cs-lab", ordered[0].ID)
}
