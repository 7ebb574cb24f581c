package engine

import (
	"fmt"
	"math"
	"sort"
)

// ConstraintKind identifies a hard constraint. Violating any of them
// invalidates a candidate placement outright.
type ConstraintKind string

const (
	FacultyDoubleBooked    ConstraintKind = "FACULTY_DOUBLE_BOOKED"
	RoomDoubleBooked       ConstraintKind = "ROOM_DOUBLE_BOOKED"
	FacultyUnavailable     ConstraintKind = "FACULTY_UNAVAILABLE"
	RoomCapacityExceeded   ConstraintKind = "ROOM_CAPACITY_EXCEEDED"
	RoomTypeMismatch       ConstraintKind = "ROOM_TYPE_MISMATCH"
	LoadCapExceeded        ConstraintKind = "LOAD_CAP_EXCEEDED"
	PreparationCapExceeded ConstraintKind = "PREPARATION_CAP_EXCEEDED"
	FacultyNotActive       ConstraintKind = "FACULTY_NOT_ACTIVE"
	RoomNotAvailable       ConstraintKind = "ROOM_NOT_AVAILABLE"
	SlotSelfOverlap        ConstraintKind = "SLOT_SELF_OVERLAP"
)

// Conflict explains one hard-constraint violation with enough detail to act
// on it: who, what, and when.
type Conflict struct {
	Kind        ConstraintKind `json:"kind"`
	Message     string         `json:"message"`
	EntryID     string         `json:"entry_id,omitempty"`
	SubjectID   string         `json:"subject_id,omitempty"`
	FacultyID   string         `json:"faculty_id,omitempty"`
	ClassroomID string         `json:"classroom_id,omitempty"`
	Slot        *TimeSlot      `json:"slot,omitempty"`
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s: %s", c.Kind, c.Message)
}

// Soft-preference weights. These rank otherwise-valid candidates and never
// block feasibility.
const (
	fragmentPenalty     = 4.0
	capacityWasteWeight = 0.1
	loadBalanceWeight   = 0.5
	contiguityBonus     = 2.0
)

// softScore ranks a non-conflicting candidate placement. Higher is better.
// Preferences: fewest distinct blocks, closest capacity fit, lighter-loaded
// faculty, and adjacency with the faculty member's other slots that day.
func softScore(snap *Snapshot, placed []Entry, sub Subject, fac Faculty, room Classroom, slots []TimeSlot) float64 {
	score := 100.0

	score -= float64(len(slots)-1) * fragmentPenalty

	if sub.ExpectedEnrollment > 0 && room.Capacity > sub.ExpectedEnrollment {
		score -= float64(room.Capacity-sub.ExpectedEnrollment) * capacityWasteWeight
	}

	entries := append(append([]Entry{}, snap.ActiveEntries()...), placed...)
	score -= LoadFor(fac.ID, entries) * loadBalanceWeight

	for _, slot := range slots {
		for _, e := range entries {
			if e.FacultyID != fac.ID {
				continue
			}
			for _, other := range e.Slots {
				if other.Day == slot.Day && (other.End == slot.Start || slot.End == other.Start) {
					score += contiguityBonus
				}
			}
		}
	}
	return score
}

// LoadVariance measures how evenly teaching hours are spread across a
// faculty pool. Exposed for reporting; the searcher minimizes it indirectly
// through the load-balance preference.
func LoadVariance(snap *Snapshot, entries []Entry) float64 {
	ids := make([]string, 0, len(snap.Faculty))
	for id := range snap.Faculty {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		return 0
	}
	var sum float64
	loads := make([]float64, len(ids))
	for i, id := range ids {
		loads[i] = LoadFor(id, entries)
		sum += loads[i]
	}
	mean := sum / float64(len(ids))
	var variance float64
	for _, l := range loads {
		variance += math.Pow(l-mean, 2)
	}
	return variance / float64(len(ids))
}
