package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx/types"

	"github.com/acadforge/timetable-api/internal/dto"
	"github.com/acadforge/timetable-api/internal/engine"
	"github.com/acadforge/timetable-api/internal/models"
	appErrors "github.com/acadforge/timetable-api/pkg/errors"
)

type snapshotFacultyReader interface {
	ListAll(ctx context.Context) ([]models.Faculty, error)
}

type snapshotClassroomReader interface {
	ListAll(ctx context.Context) ([]models.Classroom, error)
}

type snapshotSubjectReader interface {
	ListByTerm(ctx context.Context, semester, academicYear string) ([]models.Subject, error)
}

type snapshotEntryReader interface {
	ListByTerm(ctx context.Context, semester, academicYear string) ([]models.ScheduleEntry, error)
}

// snapshotBuilder assembles immutable engine snapshots from catalog and
// schedule repositories.
type snapshotBuilder struct {
	faculty    snapshotFacultyReader
	classrooms snapshotClassroomReader
	subjects   snapshotSubjectReader
	entries    snapshotEntryReader
}

func newSnapshotBuilder(faculty snapshotFacultyReader, classrooms snapshotClassroomReader, subjects snapshotSubjectReader, entries snapshotEntryReader) *snapshotBuilder {
	return &snapshotBuilder{faculty: faculty, classrooms: classrooms, subjects: subjects, entries: entries}
}

// Build loads everything the engine needs for one term. The returned
// snapshot is a point-in-time copy; later writes do not affect it.
func (b *snapshotBuilder) Build(ctx context.Context, semester, academicYear string) (*engine.Snapshot, error) {
	snap := &engine.Snapshot{
		Semester:     semester,
		AcademicYear: academicYear,
		Faculty:      map[string]engine.Faculty{},
		Classrooms:   map[string]engine.Classroom{},
		Subjects:     map[string]engine.Subject{},
	}

	faculty, err := b.faculty.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty catalog")
	}
	for _, fac := range faculty {
		availability, err := availabilityToEngine(fac.Availability)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrReference.Code, appErrors.ErrReference.Status, fmt.Sprintf("faculty %s has malformed availability", fac.ID))
		}
		snap.Faculty[fac.ID] = engine.Faculty{
			ID:              fac.ID,
			DepartmentID:    fac.DepartmentID,
			EmploymentType:  string(fac.EmploymentType),
			MinLoad:         fac.MinLoad,
			MaxLoad:         fac.MaxLoad,
			MaxPreparations: fac.MaxPreparations,
			Availability:    availability,
			Status:          engine.FacultyStatus(fac.Status),
		}
	}

	rooms, err := b.classrooms.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom catalog")
	}
	for _, room := range rooms {
		snap.Classrooms[room.ID] = engine.Classroom{
			ID:       room.ID,
			Capacity: room.Capacity,
			Type:     engine.RoomType(room.Type),
			Status:   engine.RoomStatus(room.Status),
		}
	}

	subjects, err := b.subjects.ListByTerm(ctx, semester, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject catalog")
	}
	for _, sub := range subjects {
		snap.Subjects[sub.ID] = engine.Subject{
			ID:                 sub.ID,
			DepartmentID:       sub.DepartmentID,
			LectureUnits:       sub.LectureUnits,
			LabUnits:           sub.LabUnits,
			ExpectedEnrollment: sub.ExpectedEnrollment,
		}
	}

	records, err := b.entries.ListByTerm(ctx, semester, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule entries")
	}
	for _, record := range records {
		entry, err := entryToEngine(record)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrReference.Code, appErrors.ErrReference.Status, fmt.Sprintf("schedule entry %s has malformed slots", record.ID))
		}
		snap.Entries = append(snap.Entries, entry)
	}

	return snap, nil
}

// ensureCandidateRefs rejects a candidate naming catalog records the term
// snapshot does not contain. The detector skips every constraint tied to a
// missing record, so a ghost reference must fail loudly instead.
func ensureCandidateRefs(snap *engine.Snapshot, candidate engine.Entry) error {
	if _, ok := snap.Subjects[candidate.SubjectID]; !ok {
		return appErrors.Clone(appErrors.ErrReference, "unknown subject "+candidate.SubjectID)
	}
	if _, ok := snap.Faculty[candidate.FacultyID]; !ok {
		return appErrors.Clone(appErrors.ErrReference, "unknown faculty "+candidate.FacultyID)
	}
	if _, ok := snap.Classrooms[candidate.ClassroomID]; !ok {
		return appErrors.Clone(appErrors.ErrReference, "unknown classroom "+candidate.ClassroomID)
	}
	return nil
}

// availabilityToEngine decodes the availability JSON column into engine
// time slots.
func availabilityToEngine(raw types.JSONText) ([]engine.TimeSlot, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var windows []models.AvailabilityWindow
	if err := json.Unmarshal(raw, &windows); err != nil {
		return nil, fmt.Errorf("decode availability: %w", err)
	}
	slots := make([]engine.TimeSlot, 0, len(windows))
	for _, w := range windows {
		slot, err := slotFromStrings(w.Day, w.Start, w.End)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// entryToEngine converts a persisted schedule entry into its engine form.
func entryToEngine(record models.ScheduleEntry) (engine.Entry, error) {
	slots, err := slotsJSONToEngine(record.Slots)
	if err != nil {
		return engine.Entry{}, err
	}
	return engine.Entry{
		ID:           record.ID,
		SubjectID:    record.SubjectID,
		FacultyID:    record.FacultyID,
		ClassroomID:  record.ClassroomID,
		Slots:        slots,
		Semester:     record.Semester,
		AcademicYear: record.AcademicYear,
		Status:       engine.EntryStatus(record.Status),
	}, nil
}

func slotsJSONToEngine(raw types.JSONText) ([]engine.TimeSlot, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []models.EntrySlot
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode slots: %w", err)
	}
	slots := make([]engine.TimeSlot, 0, len(items))
	for _, item := range items {
		slot, err := slotFromStrings(item.Day, item.Start, item.End)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func slotFromStrings(day, start, end string) (engine.TimeSlot, error) {
	d, err := engine.ParseWeekday(day)
	if err != nil {
		return engine.TimeSlot{}, err
	}
	s, err := engine.ParseTimeOfDay(start)
	if err != nil {
		return engine.TimeSlot{}, err
	}
	e, err := engine.ParseTimeOfDay(end)
	if err != nil {
		return engine.TimeSlot{}, err
	}
	return engine.NewTimeSlot(d, s, e)
}

// slotInputsToEngine converts request slots, validating each range.
func slotInputsToEngine(inputs []dto.SlotInput) ([]engine.TimeSlot, error) {
	slots := make([]engine.TimeSlot, 0, len(inputs))
	for _, in := range inputs {
		slot, err := slotFromStrings(in.Day, in.Start, in.End)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func engineSlotsToInputs(slots []engine.TimeSlot) []dto.SlotInput {
	out := make([]dto.SlotInput, 0, len(slots))
	for _, s := range slots {
		out = append(out, dto.SlotInput{Day: s.Day.String(), Start: s.Start.String(), End: s.End.String()})
	}
	return out
}

func engineSlotsToJSON(slots []engine.TimeSlot) (types.JSONText, error) {
	items := make([]models.EntrySlot, 0, len(slots))
	for _, s := range slots {
		items = append(items, models.EntrySlot{Day: s.Day.String(), Start: s.Start.String(), End: s.End.String()})
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode slots: %w", err)
	}
	return types.JSONText(raw), nil
}

func conflictToResponse(c engine.Conflict) dto.ConflictResponse {
	resp := dto.ConflictResponse{
		Kind:        string(c.Kind),
		Message:     c.Message,
		EntryID:     c.EntryID,
		SubjectID:   c.SubjectID,
		FacultyID:   c.FacultyID,
		ClassroomID: c.ClassroomID,
	}
	if c.Slot != nil {
		resp.Slot = &dto.SlotInput{Day: c.Slot.Day.String(), Start: c.Slot.Start.String(), End: c.Slot.End.String()}
	}
	return resp
}

func conflictsToResponses(conflicts []engine.Conflict) []dto.ConflictResponse {
	out := make([]dto.ConflictResponse, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, conflictToResponse(c))
	}
	return out
}

func conflictToModel(c engine.Conflict) models.ScheduleConflict {
	conflict := models.ScheduleConflict{
		Kind:        string(c.Kind),
		Message:     c.Message,
		EntryID:     c.EntryID,
		SubjectID:   c.SubjectID,
		FacultyID:   c.FacultyID,
		ClassroomID: c.ClassroomID,
	}
	if c.Slot != nil {
		conflict.Slot = &models.EntrySlot{Day: c.Slot.Day.String(), Start: c.Slot.Start.String(), End: c.Slot.End.String()}
	}
	return conflict
}

func conflictsToModels(conflicts []engine.Conflict) []models.ScheduleConflict {
	out := make([]models.ScheduleConflict, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, conflictToModel(c))
	}
	return out
}
