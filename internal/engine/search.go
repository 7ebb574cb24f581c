package engine

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// SearchStatus tracks a generation run through its state machine.
type SearchStatus string

const (
	SearchPending            SearchStatus = "PENDING"
	SearchRunning            SearchStatus = "SEARCHING"
	SearchSatisfied          SearchStatus = "SATISFIED"
	SearchPartiallySatisfied SearchStatus = "PARTIALLY_SATISFIED"
	SearchInfeasible         SearchStatus = "INFEASIBLE"
)

// Request scopes one generation run to a term and a roster of subjects.
type Request struct {
	Semester     string
	AcademicYear string
	SubjectIDs   []string
	// ReleasePublished lets the search reassign published entries belonging
	// to the requested subjects. Off by default: published entries are
	// immutable inputs unless the caller explicitly releases them.
	ReleasePublished bool
}

// Unresolved names a subject the search could not place, with the specific
// constraint that blocked every attempt.
type Unresolved struct {
	SubjectID string     `json:"subject_id"`
	Reason    string     `json:"reason"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
}

// Result is the outcome of a search run. Assigned entries are drafts; the
// caller owns persistence.
type Result struct {
	Status     SearchStatus `json:"status"`
	Assigned   []Entry      `json:"assigned"`
	Unresolved []Unresolved `json:"unresolved,omitempty"`
	Trials     int          `json:"trials"`
	Backtracks int          `json:"backtracks"`
	// LoadVariance is measured over the kept entries plus the new
	// assignments, so callers can compare runs by load balance.
	LoadVariance float64 `json:"loadVariance"`
}

const (
	defaultMaxTrials    = 20000
	defaultSlotStep     = TimeOfDay(30)
	maxCandidateTriples = 256
)

// SearcherOption tunes a Searcher.
type SearcherOption func(*Searcher)

// WithMaxTrials bounds the number of candidate placements tried before the
// run stops and reports a partial result.
func WithMaxTrials(n int) SearcherOption {
	return func(s *Searcher) {
		if n > 0 {
			s.maxTrials = n
		}
	}
}

// WithSlotStep sets the start-time granularity for tiled slots in minutes.
func WithSlotStep(step TimeOfDay) SearcherOption {
	return func(s *Searcher) {
		if step > 0 {
			s.slotStep = step
		}
	}
}

// WithIDGenerator overrides draft entry ID generation, used by tests for
// stable output.
func WithIDGenerator(fn func() string) SearcherOption {
	return func(s *Searcher) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Searcher produces a conflict-free assignment for a term snapshot using
// constraint-ordered backtracking: hardest subjects first, candidates in a
// total order, conflicts pruning every trial placement.
type Searcher struct {
	snap      *Snapshot
	detector  *Detector
	logger    *zap.Logger
	maxTrials int
	slotStep  TimeOfDay
	newID     func() string
}

// NewSearcher builds a searcher over an immutable term snapshot.
func NewSearcher(snap *Snapshot, logger *zap.Logger, opts ...SearcherOption) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Searcher{
		snap:      snap,
		detector:  NewDetector(snap),
		logger:    logger,
		maxTrials: defaultMaxTrials,
		slotStep:  defaultSlotStep,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type candidate struct {
	faculty Faculty
	room    Classroom
	slots   []TimeSlot
	score   float64
}

// frame is one decision point on the explicit backtracking stack. Explicit
// frames instead of native recursion keep memory bounded and let the loop
// check cancellation between trials.
type frame struct {
	subject       Subject
	candidates    []candidate
	blockReason   string
	next          int
	lastConflicts []Conflict
}

// Run executes the search until all subjects are placed, the candidate
// space is exhausted, the trial budget runs out, or ctx is cancelled.
func (s *Searcher) Run(ctx context.Context, req Request) (*Result, error) {
	if err := s.snap.Validate(); err != nil {
		return nil, err
	}

	subjects := make([]Subject, 0, len(req.SubjectIDs))
	for _, id := range req.SubjectIDs {
		sub, ok := s.snap.Subjects[id]
		if !ok {
			return nil, &ReferenceError{Kind: "generation request", ID: id, Ref: "subject " + id}
		}
		subjects = append(subjects, sub)
	}

	base := s.baseEntries(req)
	ordered := s.orderByDifficulty(subjects, base)
	s.logger.Debug("assignment search started",
		zap.String("semester", req.Semester),
		zap.String("academic_year", req.AcademicYear),
		zap.Int("subjects", len(ordered)),
		zap.Int("existing_entries", len(base)),
	)

	var (
		stack      []*frame
		placed     []Entry
		best       []Entry
		trials     int
		backtracks int
		stopped    bool
		failures   = map[string]*frame{}
	)

	idx := 0
loop:
	for idx < len(ordered) {
		if ctx.Err() != nil || trials >= s.maxTrials {
			stopped = true
			break
		}
		if idx == len(stack) {
			cands, reason := s.candidatesFor(ordered[idx], base, placed)
			stack = append(stack, &frame{subject: ordered[idx], candidates: cands, blockReason: reason})
		}
		fr := stack[idx]
		for fr.next < len(fr.candidates) {
			if ctx.Err() != nil || trials >= s.maxTrials {
				stopped = true
				failures[fr.subject.ID] = fr
				break loop
			}
			cand := fr.candidates[fr.next]
			fr.next++
			trials++

			entry := Entry{
				ID:           s.newID(),
				SubjectID:    fr.subject.ID,
				FacultyID:    cand.faculty.ID,
				ClassroomID:  cand.room.ID,
				Slots:        cand.slots,
				Semester:     req.Semester,
				AcademicYear: req.AcademicYear,
				Status:       StatusDraft,
			}
			pool := append(append([]Entry{}, base...), placed...)
			if conflicts := s.detector.Detect(entry, pool); len(conflicts) > 0 {
				fr.lastConflicts = conflicts
				continue
			}
			placed = append(placed, entry)
			if len(placed) > len(best) {
				best = append([]Entry{}, placed...)
			}
			idx++
			continue loop
		}

		// Candidates exhausted for this subject: undo the most recent
		// placement and try that subject's next-best option.
		failures[fr.subject.ID] = fr
		if idx == 0 {
			break
		}
		stack = stack[:idx]
		idx--
		placed = placed[:len(placed)-1]
		backtracks++
	}

	// Backtracking may have unwound a longer partial assignment than the one
	// it ended on; report the best partial instead of the final stack state.
	result := &Result{
		Assigned:     best,
		Trials:       trials,
		Backtracks:   backtracks,
		LoadVariance: LoadVariance(s.snap, append(append([]Entry{}, base...), best...)),
	}
	covered := make(map[string]struct{}, len(best))
	for _, e := range best {
		covered[e.SubjectID] = struct{}{}
	}
	for _, sub := range ordered {
		if _, ok := covered[sub.ID]; ok {
			continue
		}
		result.Unresolved = append(result.Unresolved, s.explainUnplaced(sub, base, best, failures, stopped))
	}

	switch {
	case len(result.Unresolved) == 0:
		result.Status = SearchSatisfied
	case len(result.Assigned) == 0:
		result.Status = SearchInfeasible
	default:
		result.Status = SearchPartiallySatisfied
	}

	s.logger.Info("assignment search finished",
		zap.String("status", string(result.Status)),
		zap.Int("assigned", len(result.Assigned)),
		zap.Int("unresolved", len(result.Unresolved)),
		zap.Int("trials", trials),
		zap.Int("backtracks", backtracks),
	)
	return result, nil
}

// baseEntries returns the non-archived entries the search must respect.
// With ReleasePublished the requested subjects' existing entries leave the
// conflict universe so they can be reassigned.
func (s *Searcher) baseEntries(req Request) []Entry {
	released := map[string]struct{}{}
	if req.ReleasePublished {
		for _, id := range req.SubjectIDs {
			released[id] = struct{}{}
		}
	}
	return lo.Filter(s.snap.Entries, func(e Entry, _ int) bool {
		if !e.InConflictUniverse() {
			return false
		}
		_, out := released[e.SubjectID]
		return !out
	})
}

// orderByDifficulty applies the most-constrained-variable heuristic:
// subjects with the fewest compatible rooms and qualified faculty, and the
// highest hour demand, are placed first so the search fails fast.
func (s *Searcher) orderByDifficulty(subjects []Subject, base []Entry) []Subject {
	type ranked struct {
		sub     Subject
		options int
		hours   float64
	}
	items := lo.Map(subjects, func(sub Subject, _ int) ranked {
		facultyCount := 0
		for _, f := range s.snap.sortedFaculty() {
			if f.Status == FacultyActive && f.DepartmentID == sub.DepartmentID {
				facultyCount++
			}
		}
		roomCount := 0
		for _, r := range s.snap.sortedClassrooms() {
			if r.Status == RoomAvailable && r.SuitsSubject(sub) {
				if sub.ExpectedEnrollment > 0 && r.Capacity < sub.ExpectedEnrollment {
					continue
				}
				roomCount++
			}
		}
		return ranked{sub: sub, options: facultyCount * roomCount, hours: sub.TotalHours()}
	})
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].options != items[j].options {
			return items[i].options < items[j].options
		}
		if items[i].hours != items[j].hours {
			return items[i].hours > items[j].hours
		}
		return items[i].sub.ID < items[j].sub.ID
	})
	return lo.Map(items, func(r ranked, _ int) Subject { return r.sub })
}

// candidatesFor enumerates (faculty, classroom, slot set) triples for a
// subject in a deterministic total order. A non-empty reason explains an
// empty list.
func (s *Searcher) candidatesFor(sub Subject, base, placed []Entry) ([]candidate, string) {
	hours := sub.TotalHours()
	if hours <= 0 {
		return nil, "subject has no teaching hours"
	}
	pool := append(append([]Entry{}, base...), placed...)

	var eligible []Faculty
	for _, f := range s.snap.sortedFaculty() {
		if f.Status != FacultyActive || f.DepartmentID != sub.DepartmentID {
			continue
		}
		if LoadFor(f.ID, pool)+hours > f.MaxLoad {
			continue
		}
		if f.MaxPreparations > 0 && PreparationsFor(f.ID, pool) >= f.MaxPreparations && !teaches(f.ID, sub.ID, pool) {
			continue
		}
		eligible = append(eligible, f)
	}
	if len(eligible) == 0 {
		return nil, "no active faculty in the department has load and preparation headroom"
	}

	var rooms []Classroom
	for _, r := range s.snap.sortedClassrooms() {
		if r.Status != RoomAvailable || !r.SuitsSubject(sub) {
			continue
		}
		if sub.ExpectedEnrollment > 0 && r.Capacity < sub.ExpectedEnrollment {
			continue
		}
		rooms = append(rooms, r)
	}
	if len(rooms) == 0 {
		return nil, "no available classroom matches the subject's type and capacity needs"
	}

	var out []candidate
	for _, f := range eligible {
		slotSets := s.tileAvailability(f, hours)
		if len(slotSets) == 0 {
			continue
		}
		for _, r := range rooms {
			for _, slots := range slotSets {
				out = append(out, candidate{
					faculty: f,
					room:    r,
					slots:   slots,
					score:   softScore(s.snap, placed, sub, f, r, slots),
				})
			}
		}
	}
	if len(out) == 0 {
		return nil, "no faculty availability window can fit the required weekly hours"
	}

	// Total order: fewest blocks, then soft score, then ids and start time,
	// so identical input always yields identical output.
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if len(a.slots) != len(b.slots) {
			return len(a.slots) < len(b.slots)
		}
		if a.score != b.score {
			return a.score > b.score
		}
		if a.faculty.ID != b.faculty.ID {
			return a.faculty.ID < b.faculty.ID
		}
		if a.room.ID != b.room.ID {
			return a.room.ID < b.room.ID
		}
		if a.slots[0].Day != b.slots[0].Day {
			return a.slots[0].Day < b.slots[0].Day
		}
		return a.slots[0].Start < b.slots[0].Start
	})
	if len(out) > maxCandidateTriples {
		out = out[:maxCandidateTriples]
	}
	return out, ""
}

// tileAvailability builds slot sets covering the required hours from the
// faculty member's availability windows: every step-aligned single block
// first (one contiguous block beats fragments), then a greedy multi-block
// split across windows as the fallback.
func (s *Searcher) tileAvailability(f Faculty, hours float64) [][]TimeSlot {
	need := TimeOfDay(int(hours*60 + 0.5))
	if need <= 0 {
		return nil
	}

	windows := append([]TimeSlot{}, f.Availability...)
	sort.SliceStable(windows, func(i, j int) bool {
		if windows[i].Day != windows[j].Day {
			return windows[i].Day < windows[j].Day
		}
		return windows[i].Start < windows[j].Start
	})

	var sets [][]TimeSlot
	for _, w := range windows {
		for start := w.Start; start+need <= w.End; start += s.slotStep {
			sets = append(sets, []TimeSlot{{Day: w.Day, Start: start, End: start + need}})
		}
	}

	remaining := need
	var blocks []TimeSlot
	for _, w := range windows {
		if remaining <= 0 {
			break
		}
		span := w.End - w.Start
		if span <= 0 {
			continue
		}
		take := span
		if remaining < take {
			take = remaining
		}
		blocks = append(blocks, TimeSlot{Day: w.Day, Start: w.Start, End: w.Start + take})
		remaining -= take
	}
	if remaining <= 0 && len(blocks) > 1 {
		sets = append(sets, blocks)
	}
	return sets
}

// explainUnplaced derives an actionable reason for a subject the search
// left unresolved, preferring the conflicts seen on its last attempts.
func (s *Searcher) explainUnplaced(sub Subject, base, placed []Entry, failures map[string]*frame, stopped bool) Unresolved {
	if fr, ok := failures[sub.ID]; ok {
		if len(fr.lastConflicts) > 0 {
			return Unresolved{
				SubjectID: sub.ID,
				Reason:    dominantReason(fr.lastConflicts),
				Conflicts: fr.lastConflicts,
			}
		}
		if fr.blockReason != "" {
			return Unresolved{SubjectID: sub.ID, Reason: fr.blockReason}
		}
	}

	// Never attempted: probe once so the caller still gets a concrete cause.
	cands, reason := s.candidatesFor(sub, base, placed)
	if len(cands) == 0 {
		return Unresolved{SubjectID: sub.ID, Reason: reason}
	}
	probe := Entry{
		ID:          "probe-" + sub.ID,
		SubjectID:   sub.ID,
		FacultyID:   cands[0].faculty.ID,
		ClassroomID: cands[0].room.ID,
		Slots:       cands[0].slots,
		Status:      StatusDraft,
	}
	pool := append(append([]Entry{}, base...), placed...)
	if conflicts := s.detector.Detect(probe, pool); len(conflicts) > 0 {
		return Unresolved{SubjectID: sub.ID, Reason: dominantReason(conflicts), Conflicts: conflicts}
	}
	if stopped {
		return Unresolved{SubjectID: sub.ID, Reason: "search budget exhausted before the subject could be placed"}
	}
	return Unresolved{SubjectID: sub.ID, Reason: "earlier placements exhausted the candidate space"}
}

// dominantReason picks the message of the most frequent conflict kind,
// breaking ties by kind name for determinism.
func dominantReason(conflicts []Conflict) string {
	counts := map[ConstraintKind]int{}
	for _, c := range conflicts {
		counts[c.Kind]++
	}
	kinds := lo.Keys(counts)
	sort.Slice(kinds, func(i, j int) bool {
		if counts[kinds[i]] != counts[kinds[j]] {
			return counts[kinds[i]] > counts[kinds[j]]
		}
		return kinds[i] < kinds[j]
	})
	top := kinds[0]
	for _, c := range conflicts {
		if c.Kind == top {
			return c.Message
		}
	}
	return string(top)
}

func teaches(facultyID, subjectID string, entries []Entry) bool {
	for _, e := range entries {
		if e.FacultyID == facultyID && e.SubjectID == subjectID && e.InConflictUniverse() {
			return true
		}
	}
	return false
}
