package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weekdayWindows(t *testing.T, days ...Weekday) []TimeSlot {
	t.Helper()
	windows := make([]TimeSlot, 0, len(days))
	for _, day := range days {
		windows = append(windows, mustSlot(t, day, "08:00", "17:00"))
	}
	return windows
}

func detectorSnapshot(t *testing.T) *Snapshot {
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
				MaxLoad:         26,
				MaxPreparations: 4,
				Availability:    weekdayWindows(t, Monday, Wednesday, Friday),
				Status:          FacultyActive,
			},
		},
		Classrooms: map[string]Classroom{
			"room-101": {ID: "room-101", Capacity: 45, Type: RoomLecture, Status: RoomAvailable},
			"room-lab": {ID: "room-lab", Capacity: 30, Type: RoomLaboratory, Status: RoomAvailable},
		},
		Subjects: map[string]Subject{
			"cs101": {ID: "cs101", DepartmentID: "dept-cs", LectureUnits: 3, ExpectedEnrollment: 40},
			"cs102": {ID: "cs102", DepartmentID: "dept-cs", LectureUnits: 3},
			"cs-lab": {ID: "cs-lab", DepartmentID: "dept-cs", LectureUnits: 2, LabUnits: 2.25, ExpectedEnrollment: 25},
		},
	}
}

func draftEntry(t *testing.T, id, subject, faculty, room string, slots ...TimeSlot) Entry {
	t.Helper()
	return Entry{
		ID:           id,
		SubjectID:    subject,
		FacultyID:    faculty,
		ClassroomID:  room,
		Slots:        slots,
		Semester:     "1ST",
		AcademicYear: "2026-2027",
		Status:       StatusDraft,
	}
}

func kinds(conflicts []Conflict) []ConstraintKind {
	out := make([]ConstraintKind, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, c.Kind)
	}
	return out
}

func TestLoadVarianceMeasuresSpread(t *testing.T) {
	snap := detectorSnapshot(t)

	// fac-1 carries six hours, fac-2 none: mean 3, variance 9.
	uneven := []Entry{draftEntry(t, "e1", "cs101", "fac-1", "room-101",
		mustSlot(t, Monday, "08:00", "11:00"), mustSlot(t, Tuesday, "08:00", "11:00"))}
	assert.InDelta(t, 9.0, LoadVariance(snap, uneven), 1e-9)

	even := []Entry{
		draftEntry(t, "e1", "cs101", "fac-1", "room-101", mustSlot(t, Monday, "08:00", "11:00")),
		draftEntry(t, "e2", "cs102", "fac-2", "room-101", mustSlot(t, Wednesday, "08:00", "11:00")),
	}
	assert.InDelta(t, 0.0, LoadVariance(snap, even), 1e-9)
}

func TestDetectFacultyDoubleBookingIsSymmetric(t *testing.T) {
	snap := detectorSnapshot(t)
	detector := NewDetector(snap)

	x := draftEntry(t, "e-x", "cs101", "fac-1", "room-101", mustSlot(t, Monday, "08:00", "10:00"))
	y := draftEntry(t, "e-y", "cs102", "fac-1", "room-101", mustSlot(t, Monday, "09:00", "11:00"))

	forward := detector.Detect(x, []Entry{y})
	backward := detector.Detect(y, []Entry{x})

	assert.Contains(t, kinds(forward), FacultyDoubleBooked)
	assert.Contains(t, kinds(backward), FacultyDoubleBooked)
	assert.Contains(t, kinds(forward), RoomDoubleBooked)
	assert.Contains(t, kinds(backward), RoomDoubleBooked)
}

func TestDetectTouchingSlotsAreClean(t *testing.T) {
	snap := detectorSnapshot(t)
	detector := NewDetector(snap)

	x := draftEntry(t, "e-x", "cs101", "fac-1", "room-101", mustSlot(t, Monday, "08:00", "10:00"))
	y := draftEntry(t, "e-y", "cs102", "fac-1", "room-101", mustSlot(t, Monday, "10:00", "13:00"))

	assert.Empty(t, detector.Detect(y, []Entry{x}))
}

func TestDetectLoadCap(t *testing.T) {
	snap := detectorSnapshot(t)
	detector := NewDetector(snap)

	// fac-1 already carries 22 hours against a cap of 24.
	existing := []Entry{
		draftEntry(t, "e-1", "cs102", "fac-1", "room-101",
			mustSlot(t, Monday, "08:00", "17:00"),
			mustSlot(t, Tuesday, "08:00", "17:00"),
			mustSlot(t, Wednesday, "08:00", "12:00"),
		),
	}
	require.InDelta(t, 22.0, LoadFor("fac-1", existing), 1e-9)

	candidate := draftEntry(t, "e-2", "cs101", "fac-1", "room-101", mustSlot(t, Thursday, "08:00", "11:00"))
	conflicts := detector.Detect(candidate, existing)
	assert.Contains(t, kinds(conflicts), LoadCapExceeded)
}

func TestDetectAvailabilityContainment(t *testing.T) {
	snap := detectorSnapshot(t)
	detector := NewDetector(snap)

	// fac-2 has no Tuesday window.
	candidate := draftEntry(t, "e-1", "cs101", "fac-2", "room-101", mustSlot(t, Tuesday, "08:00", "10:00"))
	conflicts := detector.Detect(candidate, nil)
	assert.Contains(t, kinds(conflicts), FacultyUnavailable)

	// Partially outside a window is just as unavailable.
	late := draftEntry(t, "e-2", "cs101", "fac-2", "room-101", mustSlot(t, Monday, "16:00", "18:00"))
	conflicts = detector.Detect(late, nil)
	assert.Contains(t, kinds(conflicts), FacultyUnavailable)
}

func TestDetectRoomCapacityAndType(t *testing.T) {
	snap := detectorSnapshot(t)
	detector := NewDetector(snap)

	// 40 expected students in a 30-seat laboratory, for a lecture subject.
	candidate := draftEntry(t, "e-1", "cs101", "fac-1", "room-lab", mustSlot(t, Monday, "08:00", "11:00"))
	conflicts := detector.Detect(candidate, nil)
	assert.Contains(t, kinds(conflicts), RoomCapacityExceeded)
	assert.Contains(t, kinds(conflicts), RoomTypeMismatch)

	// Lab-bearing subject in a plain lecture room.
	lab := draftEntry(t, "e-2", "cs-lab", "fac-1", "room-101", mustSlot(t, Monday, "08:00", "13:00"))
	conflicts = detector.Detect(lab, nil)
	assert.Contains(t, kinds(conflicts), RoomTypeMismatch)
}

func TestDetectCapacitySkippedWhenEnrollmentUnknown(t *testing.T) {
	snap := detectorSnapshot(t)
	snap.Classrooms["room-tiny"] = Classroom{ID: "room-tiny", Capacity: 5, Type: RoomLecture, Status: RoomAvailable}
	detector := NewDetector(snap)

	candidate := draftEntry(t, "e-1", "cs102", "fac-1", "room-tiny", mustSlot(t, Monday, "08:00", "11:00"))
	assert.Empty(t, detector.Detect(candidate, nil))
}

func TestDetectInactiveFacultyAndClosedRoom(t *testing.T) {
	snap := detectorSnapshot(t)
	fac := snap.Faculty["fac-1"]
	fac.Status = FacultyInactive
	snap.Faculty["fac-1"] = fac
	room := snap.Classrooms["room-101"]
	room.Status = RoomMaintenance
	snap.Classrooms["room-101"] = room
	detector := NewDetector(snap)

	candidate := draftEntry(t, "e-1", "cs101", "fac-1", "room-101", mustSlot(t, Monday, "08:00", "11:00"))
	found := kinds(detector.Detect(candidate, nil))
	assert.Contains(t, found, FacultyNotActive)
	assert.Contains(t, found, RoomNotAvailable)
}

func TestDetectPreparationCap(t *testing.T) {
	snap := detectorSnapshot(t)
	fac := snap.Faculty["fac-1"]
	fac.MaxPreparations = 1
	snap.Faculty["fac-1"] = fac
	detector := NewDetector(snap)

	existing := []Entry{
		draftEntry(t, "e-1", "cs102", "fac-1", "room-101", mustSlot(t, Monday, "08:00", "11:00")),
	}

	// A second distinct subject breaches the cap.
	candidate := draftEntry(t, "e-2", "cs101", "fac-1", "room-101", mustSlot(t, Tuesday, "08:00", "11:00"))
	assert.Contains(t, kinds(detector.Detect(candidate, existing)), PreparationCapExceeded)

	// Another section of the same subject does not.
	sameSubject := draftEntry(t, "e-3", "cs102", "fac-1", "room-101", mustSlot(t, Tuesday, "08:00", "11:00"))
	assert.NotContains(t, kinds(detector.Detect(sameSubject, existing)), PreparationCapExceeded)
}

func TestDetectIgnoresArchivedAndSelf(t *testing.T) {
	snap := detectorSnapshot(t)
	detector := NewDetector(snap)

	archived := draftEntry(t, "e-old", "cs102", "fac-1", "room-101", mustSlot(t, Monday, "08:00", "10:00"))
	archived.Status = StatusArchived

	candidate := draftEntry(t, "e-new", "cs101", "fac-1", "room-101", mustSlot(t, Monday, "08:00", "10:00"))
	assert.Empty(t, detector.Detect(candidate, []Entry{archived, candidate}))
}

func TestDetectReportsEveryViolation(t *testing.T) {
	snap := detectorSnapshot(t)
	detector := NewDetector(snap)

	existing := []Entry{
		draftEntry(t, "e-1", "cs102", "fac-2", "room-101", mustSlot(t, Monday, "08:00", "10:00")),
	}
	// Overlapping self-slots, booked room, faculty without a Tuesday window.
	candidate := Entry{
		ID:          "e-2",
		SubjectID:   "cs101",
		FacultyID:   "fac-2",
		ClassroomID: "room-101",
		Slots: []TimeSlot{
			mustSlot(t, Monday, "09:00", "11:00"),
			mustSlot(t, Monday, "10:00", "12:00"),
			mustSlot(t, Tuesday, "08:00", "09:00"),
		},
		Status: StatusDraft,
	}
	found := kinds(detector.Detect(candidate, existing))
	assert.Contains(t, found, SlotSelfOverlap)
	assert.Contains(t, found, FacultyDoubleBooked)
	assert.Contains(t, found, RoomDoubleBooked)
	assert.Contains(t, found, FacultyUnavailable)
	assert.GreaterOrEqual(t, len(found), 4)
}

func TestDetectBatchCrossValidates(t *testing.T) {
	snap := detectorSnapshot(t)
	detector := NewDetector(snap)

	a := draftEntry(t, "batch-a", "cs101", "fac-1", "room-101", mustSlot(t, Monday, "08:00", "10:00"))
	b := draftEntry(t, "batch-b", "cs102", "fac-1", "room-101", mustSlot(t, Monday, "09:00", "11:00"))

	result := detector.DetectBatch([]Entry{a, b}, nil)
	require.Len(t, result, 2)
	assert.Contains(t, kinds(result["batch-a"]), FacultyDoubleBooked)
	assert.Contains(t, kinds(result["batch-b"]), FacultyDoubleBooked)
}
