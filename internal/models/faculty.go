package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// EmploymentType distinguishes load expectations for faculty members.
type EmploymentType string

const (
	EmploymentFullTime EmploymentType = "FULL_TIME"
	EmploymentPartTime EmploymentType = "PART_TIME"
	EmploymentAdjunct  EmploymentType = "ADJUNCT"
)

// FacultyStatus represents whether a faculty member can receive assignments.
type FacultyStatus string

const (
	FacultyStatusActive   FacultyStatus = "ACTIVE"
	FacultyStatusInactive FacultyStatus = "INACTIVE"
)

// AvailabilityWindow is one weekly window a faculty member can teach in,
// stored inside the availability JSON column.
type AvailabilityWindow struct {
	Day   string `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Faculty represents an instructor record with teaching capacity rules.
type Faculty struct {
	ID              string         `db:"id" json:"id"`
	EmployeeNo      *string        `db:"employee_no" json:"employee_no,omitempty"`
	Email           string         `db:"email" json:"email"`
	FullName        string         `db:"full_name" json:"full_name"`
	DepartmentID    string         `db:"department_id" json:"department_id"`
	EmploymentType  EmploymentType `db:"employment_type" json:"employment_type"`
	MinLoad         float64        `db:"min_load" json:"min_load"`
	MaxLoad         float64        `db:"max_load" json:"max_load"`
	MaxPreparations int            `db:"max_preparations" json:"max_preparations"`
	Availability    types.JSONText `db:"availability" json:"availability"`
	Status          FacultyStatus  `db:"status" json:"status"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// FacultyFilter captures filtering options for listing faculty.
type FacultyFilter struct {
	DepartmentID   string
	EmploymentType EmploymentType
	Status         FacultyStatus
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// FacultyWorkload reports derived load figures for one faculty member in a
// term. The counters are recomputed from schedule entries on every read.
type FacultyWorkload struct {
	FacultyID           string  `json:"faculty_id"`
	FullName            string  `json:"full_name"`
	Semester            string  `json:"semester"`
	AcademicYear        string  `json:"academic_year"`
	CurrentLoad         float64 `json:"current_load"`
	CurrentPreparations int     `json:"current_preparations"`
	MinLoad             float64 `json:"min_load"`
	MaxLoad             float64 `json:"max_load"`
	MaxPreparations     int     `json:"max_preparations"`
	UnderMinimum        bool    `json:"under_minimum"`
}
