package engine

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// Snapshot is an immutable view of one term's catalog and committed
// entries, fetched up-front so a long search never re-reads external state.
type Snapshot struct {
	Semester     string
	AcademicYear string
	Faculty      map[string]Faculty
	Classrooms   map[string]Classroom
	Subjects     map[string]Subject
	Entries      []Entry
}

// ReferenceError reports catalog data pointing at a record that does not
// exist. It aborts the requesting operation, never the engine.
type ReferenceError struct {
	Kind string
	ID   string
	Ref  string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s %s references missing record %s", e.Kind, e.ID, e.Ref)
}

// Validate verifies referential integrity of the snapshot.
func (s *Snapshot) Validate() error {
	for id, sub := range s.Subjects {
		if sub.DepartmentID == "" {
			return &ReferenceError{Kind: "subject", ID: id, Ref: "department"}
		}
	}
	for _, entry := range s.Entries {
		if _, ok := s.Subjects[entry.SubjectID]; !ok {
			return &ReferenceError{Kind: "entry", ID: entry.ID, Ref: "subject " + entry.SubjectID}
		}
		if _, ok := s.Faculty[entry.FacultyID]; !ok {
			return &ReferenceError{Kind: "entry", ID: entry.ID, Ref: "faculty " + entry.FacultyID}
		}
		if _, ok := s.Classrooms[entry.ClassroomID]; !ok {
			return &ReferenceError{Kind: "entry", ID: entry.ID, Ref: "classroom " + entry.ClassroomID}
		}
	}
	return nil
}

// ActiveEntries returns draft and published entries, the live conflict
// universe for the term.
func (s *Snapshot) ActiveEntries() []Entry {
	return lo.Filter(s.Entries, func(e Entry, _ int) bool { return e.InConflictUniverse() })
}

// LoadFor recomputes a faculty member's weekly teaching hours from the
// given entry set. Derived, never trusted incrementally.
func LoadFor(facultyID string, entries []Entry) float64 {
	var total float64
	for _, e := range entries {
		if e.FacultyID == facultyID && e.InConflictUniverse() {
			total += TotalHours(e.Slots)
		}
	}
	return total
}

// PreparationsFor recomputes the distinct-subject count a faculty member
// carries across the given entry set.
func PreparationsFor(facultyID string, entries []Entry) int {
	seen := map[string]struct{}{}
	for _, e := range entries {
		if e.FacultyID == facultyID && e.InConflictUniverse() {
			seen[e.SubjectID] = struct{}{}
		}
	}
	return len(seen)
}

// sortedFaculty and sortedClassrooms give deterministic iteration order so
// repeated runs on identical input produce identical output.
func (s *Snapshot) sortedFaculty() []Faculty {
	keys := lo.Keys(s.Faculty)
	sort.Strings(keys)
	return lo.Map(keys, func(k string, _ int) Faculty { return s.Faculty[k] })
}

func (s *Snapshot) sortedClassrooms() []Classroom {
	keys := lo.Keys(s.Classrooms)
	sort.Strings(keys)
	return lo.Map(keys, func(k string, _ int) Classroom { return s.Classrooms[k] })
}
