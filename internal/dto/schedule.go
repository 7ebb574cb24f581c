package dto

// CreateScheduleEntryRequest creates a manual draft entry.
type CreateScheduleEntryRequest struct {
	SubjectID    string      `json:"subjectId" validate:"required"`
	FacultyID    string      `json:"facultyId" validate:"required"`
	ClassroomID  string      `json:"classroomId" validate:"required"`
	Slots        []SlotInput `json:"slots" validate:"required,min=1,dive"`
	Semester     string      `json:"semester" validate:"required"`
	AcademicYear string      `json:"academicYear" validate:"required"`
	// Force persists the entry even when conflicts are detected.
	Force bool `json:"force"`
}

// UpdateScheduleEntryRequest patches a draft entry. Nil fields are left
// untouched.
type UpdateScheduleEntryRequest struct {
	FacultyID   *string     `json:"facultyId"`
	ClassroomID *string     `json:"classroomId"`
	Slots       []SlotInput `json:"slots" validate:"omitempty,min=1,dive"`
	Force       bool        `json:"force"`
}

// PublishScheduleRequest promotes a batch of draft entries to PUBLISHED.
// The batch is atomic: one invalid entry rejects the whole request.
type PublishScheduleRequest struct {
	EntryIDs []string `json:"entryIds" validate:"required,min=1,dive,required"`
}

// ArchiveTermRequest archives every entry of a term.
type ArchiveTermRequest struct {
	Semester     string `json:"semester" validate:"required"`
	AcademicYear string `json:"academicYear" validate:"required"`
}

// TimetableQuery filters timetable views and exports.
type TimetableQuery struct {
	Semester     string `form:"semester" json:"semester"`
	AcademicYear string `form:"academicYear" json:"academicYear"`
	FacultyID    string `form:"facultyId" json:"facultyId"`
	ClassroomID  string `form:"classroomId" json:"classroomId"`
}
