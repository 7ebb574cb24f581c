package engine

// FacultyStatus gates membership in the assignable pool.
type FacultyStatus string

const (
	FacultyActive   FacultyStatus = "ACTIVE"
	FacultyInactive FacultyStatus = "INACTIVE"
)

// RoomStatus gates whether a classroom may receive placements.
type RoomStatus string

const (
	RoomAvailable   RoomStatus = "AVAILABLE"
	RoomMaintenance RoomStatus = "MAINTENANCE"
	RoomReserved    RoomStatus = "RESERVED"
)

// RoomType classifies classrooms for subject compatibility checks.
type RoomType string

const (
	RoomLecture     RoomType = "LECTURE"
	RoomLaboratory  RoomType = "LABORATORY"
	RoomComputerLab RoomType = "COMPUTER_LAB"
	RoomConference  RoomType = "CONFERENCE"
	RoomOther       RoomType = "OTHER"
)

// EntryStatus is the lifecycle state of a schedule entry.
type EntryStatus string

const (
	StatusDraft     EntryStatus = "DRAFT"
	StatusPublished EntryStatus = "PUBLISHED"
	StatusArchived  EntryStatus = "ARCHIVED"
)

// Faculty is the engine-facing view of an instructor.
type Faculty struct {
	ID              string
	DepartmentID    string
	EmploymentType  string
	MinLoad         float64
	MaxLoad         float64
	MaxPreparations int
	Availability    []TimeSlot
	Status          FacultyStatus
}

// CanAttend reports whether the slot lies fully inside at least one of the
// faculty member's availability windows.
func (f Faculty) CanAttend(slot TimeSlot) bool {
	for _, window := range f.Availability {
		if window.Contains(slot) {
			return true
		}
	}
	return false
}

// Classroom is the engine-facing view of a room. Rooms are global resources
// shared across subjects and faculty.
type Classroom struct {
	ID       string
	Capacity int
	Type     RoomType
	Status   RoomStatus
}

// SuitsSubject checks room-type compatibility. Lab-bearing subjects need a
// laboratory or computer lab; pure-lecture subjects may use anything except
// a laboratory, which stays free for lab sections.
func (c Classroom) SuitsSubject(sub Subject) bool {
	if sub.RequiresLab() {
		return c.Type == RoomLaboratory || c.Type == RoomComputerLab
	}
	return c.Type != RoomLaboratory
}

// Subject is the engine-facing view of a subject offering. Hours are always
// derived from units, never stored.
type Subject struct {
	ID                 string
	DepartmentID       string
	LectureUnits       float64
	LabUnits           float64
	ExpectedEnrollment int // 0 means unknown, capacity check skipped
}

// TotalHours returns the weekly teaching hours required by the subject.
func (s Subject) TotalHours() float64 {
	return TotalTeachingHours(s.LectureUnits, s.LabUnits)
}

// RequiresLab reports whether the subject carries laboratory hours.
func (s Subject) RequiresLab() bool {
	return s.LabUnits > 0
}

// Entry assigns one subject offering to one faculty member, one classroom
// and one or more weekly time slots within a term.
type Entry struct {
	ID           string
	SubjectID    string
	FacultyID    string
	ClassroomID  string
	Slots        []TimeSlot
	Semester     string
	AcademicYear string
	Status       EntryStatus
}

// InConflictUniverse reports whether the entry participates in live conflict
// checks. Archived entries are history only.
func (e Entry) InConflictUniverse() bool {
	return e.Status == StatusDraft || e.Status == StatusPublished
}
