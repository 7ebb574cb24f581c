package dto

import "time"

// SlotInput is one weekly meeting in request payloads. Times are "HH:MM",
// end exclusive.
type SlotInput struct {
	Day   string `json:"day" validate:"required"`
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

// GeneratorOptions tunes a single generation run.
type GeneratorOptions struct {
	MaxTrials      int `json:"maxTrials" validate:"omitempty,min=1"`
	TimeoutSeconds int `json:"timeoutSeconds" validate:"omitempty,min=1,max=300"`
}

// GenerateScheduleRequest instructs the generator to build a proposal for
// the given term and subject roster.
type GenerateScheduleRequest struct {
	Semester     string            `json:"semester" validate:"required"`
	AcademicYear string            `json:"academicYear" validate:"required"`
	SubjectIDs   []string          `json:"subjectIds" validate:"required,min=1,dive,required"`
	// ReleasePublished lets the run reassign published entries of the
	// requested subjects instead of treating them as immovable.
	ReleasePublished bool              `json:"releasePublished"`
	Options          *GeneratorOptions `json:"options"`
}

// EntryProposal is one generated assignment inside a proposal.
type EntryProposal struct {
	ID          string      `json:"id"`
	SubjectID   string      `json:"subjectId"`
	FacultyID   string      `json:"facultyId"`
	ClassroomID string      `json:"classroomId"`
	Slots       []SlotInput `json:"slots"`
}

// UnresolvedSubject names a subject the generator could not place.
type UnresolvedSubject struct {
	SubjectID string             `json:"subjectId"`
	Reason    string             `json:"reason"`
	Conflicts []ConflictResponse `json:"conflicts,omitempty"`
}

// GenerateScheduleResponse returns the built proposal. The proposal is held
// server-side until it expires or is committed.
type GenerateScheduleResponse struct {
	ProposalID string              `json:"proposalId"`
	Status     string              `json:"status"`
	Assigned   []EntryProposal     `json:"assigned"`
	Unresolved []UnresolvedSubject `json:"unresolved,omitempty"`
	Trials     int                 `json:"trials"`
	Backtracks int                 `json:"backtracks"`
	// LoadVariance reports how evenly the combined timetable spreads
	// teaching hours across the faculty pool. Lower is flatter.
	LoadVariance float64   `json:"loadVariance"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// CommitProposalRequest persists a held proposal as schedule entries.
type CommitProposalRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
	// Publish promotes the committed entries straight to PUBLISHED instead
	// of leaving them as drafts.
	Publish bool `json:"publish"`
}

// ConflictResponse is one hard-constraint violation in API responses.
type ConflictResponse struct {
	Kind        string     `json:"kind"`
	Message     string     `json:"message"`
	EntryID     string     `json:"entryId,omitempty"`
	SubjectID   string     `json:"subjectId,omitempty"`
	FacultyID   string     `json:"facultyId,omitempty"`
	ClassroomID string     `json:"classroomId,omitempty"`
	Slot        *SlotInput `json:"slot,omitempty"`
}

// DetectConflictsRequest validates a candidate assignment against the
// committed timetable without persisting anything.
type DetectConflictsRequest struct {
	Semester     string      `json:"semester" validate:"required"`
	AcademicYear string      `json:"academicYear" validate:"required"`
	EntryID      string      `json:"entryId"`
	SubjectID    string      `json:"subjectId" validate:"required"`
	FacultyID    string      `json:"facultyId" validate:"required"`
	ClassroomID  string      `json:"classroomId" validate:"required"`
	Slots        []SlotInput `json:"slots" validate:"required,min=1,dive"`
}

// DetectConflictsResponse lists every violation found for the candidate.
type DetectConflictsResponse struct {
	Valid     bool               `json:"valid"`
	Conflicts []ConflictResponse `json:"conflicts"`
}
