package engine

import (
	"fmt"
)

// Detector evaluates candidate entries against the hard-constraint catalog.
// Detection is pure read-and-report: it never mutates state, and it never
// short-circuits, so one call surfaces every violation at once.
type Detector struct {
	snap *Snapshot
}

// NewDetector builds a detector over a term snapshot. The snapshot supplies
// reference data; the entries to check against are passed per call.
func NewDetector(snap *Snapshot) *Detector {
	return &Detector{snap: snap}
}

// Detect reports every hard-constraint violation of the candidate against
// the existing committed set. Archived entries and the candidate itself
// (matched by ID) are ignored.
func (d *Detector) Detect(candidate Entry, existing []Entry) []Conflict {
	var conflicts []Conflict

	sub, subOK := d.snap.Subjects[candidate.SubjectID]
	fac, facOK := d.snap.Faculty[candidate.FacultyID]
	room, roomOK := d.snap.Classrooms[candidate.ClassroomID]

	if HasOverlap(candidate.Slots) {
		conflicts = append(conflicts, Conflict{
			Kind:      SlotSelfOverlap,
			Message:   "entry's own time slots overlap each other",
			SubjectID: candidate.SubjectID,
		})
	}

	if facOK && fac.Status != FacultyActive {
		conflicts = append(conflicts, Conflict{
			Kind:      FacultyNotActive,
			Message:   fmt.Sprintf("faculty %s is not active", fac.ID),
			FacultyID: fac.ID,
			SubjectID: candidate.SubjectID,
		})
	}
	if roomOK && room.Status != RoomAvailable {
		conflicts = append(conflicts, Conflict{
			Kind:        RoomNotAvailable,
			Message:     fmt.Sprintf("classroom %s is %s", room.ID, room.Status),
			ClassroomID: room.ID,
			SubjectID:   candidate.SubjectID,
		})
	}

	if facOK {
		for _, slot := range candidate.Slots {
			if !fac.CanAttend(slot) {
				s := slot
				conflicts = append(conflicts, Conflict{
					Kind:      FacultyUnavailable,
					Message:   fmt.Sprintf("faculty %s has no availability window covering %s", fac.ID, slot),
					FacultyID: fac.ID,
					SubjectID: candidate.SubjectID,
					Slot:      &s,
				})
			}
		}
	}

	if subOK && roomOK {
		if sub.ExpectedEnrollment > 0 && room.Capacity < sub.ExpectedEnrollment {
			conflicts = append(conflicts, Conflict{
				Kind:        RoomCapacityExceeded,
				Message:     fmt.Sprintf("classroom %s seats %d but subject %s expects %d", room.ID, room.Capacity, sub.ID, sub.ExpectedEnrollment),
				ClassroomID: room.ID,
				SubjectID:   sub.ID,
			})
		}
		if !room.SuitsSubject(sub) {
			conflicts = append(conflicts, Conflict{
				Kind:        RoomTypeMismatch,
				Message:     fmt.Sprintf("classroom %s type %s does not suit subject %s", room.ID, room.Type, sub.ID),
				ClassroomID: room.ID,
				SubjectID:   sub.ID,
			})
		}
	}

	others := make([]Entry, 0, len(existing))
	for _, e := range existing {
		if e.ID == candidate.ID || !e.InConflictUniverse() {
			continue
		}
		others = append(others, e)
	}

	for _, e := range others {
		if e.FacultyID != candidate.FacultyID && e.ClassroomID != candidate.ClassroomID {
			continue
		}
		for _, slot := range candidate.Slots {
			for _, busy := range e.Slots {
				if !slot.Overlaps(busy) {
					continue
				}
				s := slot
				if e.FacultyID == candidate.FacultyID {
					conflicts = append(conflicts, Conflict{
						Kind:      FacultyDoubleBooked,
						Message:   fmt.Sprintf("faculty %s already teaches %s during %s", e.FacultyID, e.SubjectID, busy),
						EntryID:   e.ID,
						FacultyID: e.FacultyID,
						SubjectID: candidate.SubjectID,
						Slot:      &s,
					})
				}
				if e.ClassroomID == candidate.ClassroomID {
					conflicts = append(conflicts, Conflict{
						Kind:        RoomDoubleBooked,
						Message:     fmt.Sprintf("classroom %s already hosts %s during %s", e.ClassroomID, e.SubjectID, busy),
						EntryID:     e.ID,
						ClassroomID: e.ClassroomID,
						SubjectID:   candidate.SubjectID,
						Slot:        &s,
					})
				}
			}
		}
	}

	if subOK && facOK {
		load := LoadFor(fac.ID, others)
		if load+sub.TotalHours() > fac.MaxLoad {
			conflicts = append(conflicts, Conflict{
				Kind:      LoadCapExceeded,
				Message:   fmt.Sprintf("faculty %s load %.2f + %.2f exceeds cap %.2f", fac.ID, load, sub.TotalHours(), fac.MaxLoad),
				FacultyID: fac.ID,
				SubjectID: sub.ID,
			})
		}

		preps := PreparationsFor(fac.ID, others)
		teachesAlready := false
		for _, e := range others {
			if e.FacultyID == fac.ID && e.SubjectID == sub.ID {
				teachesAlready = true
				break
			}
		}
		if !teachesAlready && fac.MaxPreparations > 0 && preps+1 > fac.MaxPreparations {
			conflicts = append(conflicts, Conflict{
				Kind:      PreparationCapExceeded,
				Message:   fmt.Sprintf("faculty %s already carries %d preparations, cap is %d", fac.ID, preps, fac.MaxPreparations),
				FacultyID: fac.ID,
				SubjectID: sub.ID,
			})
		}
	}

	return conflicts
}

// DetectBatch validates a set of candidates together: each is checked
// against the existing set plus every other candidate, so members of the
// batch cannot conflict with each other. Keyed by candidate entry ID.
func (d *Detector) DetectBatch(candidates []Entry, existing []Entry) map[string][]Conflict {
	result := make(map[string][]Conflict, len(candidates))
	for i, candidate := range candidates {
		pool := make([]Entry, 0, len(existing)+len(candidates)-1)
		pool = append(pool, existing...)
		for j, other := range candidates {
			if j == i {
				continue
			}
			pool = append(pool, other)
		}
		if found := d.Detect(candidate, pool); len(found) > 0 {
			result[candidate.ID] = found
		}
	}
	return result
}
