package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// EntryStatus represents lifecycle phases for schedule entries.
type EntryStatus string

const (
	EntryStatusDraft     EntryStatus = "DRAFT"
	EntryStatusPublished EntryStatus = "PUBLISHED"
	EntryStatusArchived  EntryStatus = "ARCHIVED"
)

// EntrySlot is one weekly meeting of a schedule entry, stored inside the
// slots JSON column. Times are "HH:MM" wall-clock, end exclusive.
type EntrySlot struct {
	Day   string `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// ScheduleEntry assigns a subject to a faculty member, a classroom and a set
// of weekly slots within a term.
type ScheduleEntry struct {
	ID           string         `db:"id" json:"id"`
	SubjectID    string         `db:"subject_id" json:"subject_id"`
	FacultyID    string         `db:"faculty_id" json:"faculty_id"`
	ClassroomID  string         `db:"classroom_id" json:"classroom_id"`
	Slots        types.JSONText `db:"slots" json:"slots"`
	Semester     string         `db:"semester" json:"semester"`
	AcademicYear string         `db:"academic_year" json:"academic_year"`
	Status       EntryStatus    `db:"status" json:"status"`
	Version      int            `db:"version" json:"version"`
	CreatedBy    *string        `db:"created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// ScheduleFilter describes query params for listing schedule entries.
type ScheduleFilter struct {
	Semester     string
	AcademicYear string
	SubjectID    string
	FacultyID    string
	ClassroomID  string
	Status       EntryStatus
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// ScheduleConflict describes one hard-constraint violation found while
// validating an entry.
type ScheduleConflict struct {
	Kind        string     `json:"kind"`
	Message     string     `json:"message"`
	EntryID     string     `json:"entry_id,omitempty"`
	SubjectID   string     `json:"subject_id,omitempty"`
	FacultyID   string     `json:"faculty_id,omitempty"`
	ClassroomID string     `json:"classroom_id,omitempty"`
	Slot        *EntrySlot `json:"slot,omitempty"`
}

// ScheduleConflictError is returned when an entry collides with the
// committed timetable.
type ScheduleConflictError struct {
	Message   string             `json:"message"`
	Conflicts []ScheduleConflict `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
