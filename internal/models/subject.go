package models

import "time"

// Subject represents an academic subject offering with its unit structure.
// Lecture units convert to contact hours one to one; lab units convert at
// 0.75 units per contact hour.
type Subject struct {
	ID                 string    `db:"id" json:"id"`
	Code               string    `db:"code" json:"code"`
	Name               string    `db:"name" json:"name"`
	DepartmentID       string    `db:"department_id" json:"department_id"`
	LectureUnits       float64   `db:"lecture_units" json:"lecture_units"`
	LabUnits           float64   `db:"lab_units" json:"lab_units"`
	ExpectedEnrollment int       `db:"expected_enrollment" json:"expected_enrollment"`
	Semester           string    `db:"semester" json:"semester"`
	AcademicYear       string    `db:"academic_year" json:"academic_year"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	DepartmentID string
	Semester     string
	AcademicYear string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// SubjectLoad reports the computed teaching hours for a subject.
type SubjectLoad struct {
	SubjectID    string  `json:"subject_id"`
	Code         string  `json:"code"`
	LectureHours float64 `json:"lecture_hours"`
	LabHours     float64 `json:"lab_hours"`
	TotalHours   float64 `json:"total_hours"`
}
