package dto

// CreateFacultyRequest registers a faculty member.
type CreateFacultyRequest struct {
	EmployeeNo      *string     `json:"employeeNo"`
	Email           string      `json:"email" validate:"required,email"`
	FullName        string      `json:"fullName" validate:"required"`
	DepartmentID    string      `json:"departmentId" validate:"required"`
	EmploymentType  string      `json:"employmentType" validate:"required,oneof=FULL_TIME PART_TIME ADJUNCT"`
	MinLoad         float64     `json:"minLoad" validate:"min=0"`
	MaxLoad         float64     `json:"maxLoad" validate:"required,gtfield=MinLoad"`
	MaxPreparations int         `json:"maxPreparations" validate:"min=0"`
	Availability    []SlotInput `json:"availability" validate:"omitempty,dive"`
}

// UpdateFacultyRequest patches a faculty record. Nil fields are left
// untouched.
type UpdateFacultyRequest struct {
	EmployeeNo      *string     `json:"employeeNo"`
	Email           *string     `json:"email" validate:"omitempty,email"`
	FullName        *string     `json:"fullName"`
	DepartmentID    *string     `json:"departmentId"`
	EmploymentType  *string     `json:"employmentType" validate:"omitempty,oneof=FULL_TIME PART_TIME ADJUNCT"`
	MinLoad         *float64    `json:"minLoad" validate:"omitempty,min=0"`
	MaxLoad         *float64    `json:"maxLoad" validate:"omitempty,min=0"`
	MaxPreparations *int        `json:"maxPreparations" validate:"omitempty,min=0"`
	Availability    []SlotInput `json:"availability" validate:"omitempty,dive"`
	Status          *string     `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
}

// CreateClassroomRequest registers a classroom.
type CreateClassroomRequest struct {
	Code     string  `json:"code" validate:"required"`
	Name     string  `json:"name" validate:"required"`
	Building *string `json:"building"`
	Capacity int     `json:"capacity" validate:"required,min=1"`
	Type     string  `json:"type" validate:"required,oneof=LECTURE LABORATORY COMPUTER_LAB CONFERENCE OTHER"`
}

// UpdateClassroomRequest patches a classroom record.
type UpdateClassroomRequest struct {
	Name     *string `json:"name"`
	Building *string `json:"building"`
	Capacity *int    `json:"capacity" validate:"omitempty,min=1"`
	Type     *string `json:"type" validate:"omitempty,oneof=LECTURE LABORATORY COMPUTER_LAB CONFERENCE OTHER"`
	Status   *string `json:"status" validate:"omitempty,oneof=AVAILABLE MAINTENANCE RESERVED"`
}

// CreateSubjectRequest registers a subject offering.
type CreateSubjectRequest struct {
	Code               string  `json:"code" validate:"required"`
	Name               string  `json:"name" validate:"required"`
	DepartmentID       string  `json:"departmentId" validate:"required"`
	LectureUnits       float64 `json:"lectureUnits" validate:"min=0"`
	LabUnits           float64 `json:"labUnits" validate:"min=0"`
	ExpectedEnrollment int     `json:"expectedEnrollment" validate:"min=0"`
	Semester           string  `json:"semester" validate:"required"`
	AcademicYear       string  `json:"academicYear" validate:"required"`
}

// UpdateSubjectRequest patches a subject offering.
type UpdateSubjectRequest struct {
	Name               *string  `json:"name"`
	DepartmentID       *string  `json:"departmentId"`
	LectureUnits       *float64 `json:"lectureUnits" validate:"omitempty,min=0"`
	LabUnits           *float64 `json:"labUnits" validate:"omitempty,min=0"`
	ExpectedEnrollment *int     `json:"expectedEnrollment" validate:"omitempty,min=0"`
}
