package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acadforge/timetable-api/internal/models"
)

const scheduleEntryColumns = "id, subject_id, faculty_id, classroom_id, slots, semester, academic_year, status, version, created_by, created_at, updated_at"

// ScheduleEntryRepository provides persistence for schedule entries.
type ScheduleEntryRepository struct {
	db *sqlx.DB
}

// NewScheduleEntryRepository creates a new schedule entry repository.
func NewScheduleEntryRepository(db *sqlx.DB) *ScheduleEntryRepository {
	return &ScheduleEntryRepository{db: db}
}

func (r *ScheduleEntryRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// BeginTx opens a transaction for multi-statement lifecycle operations.
func (r *ScheduleEntryRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin schedule tx: %w", err)
	}
	return tx, nil
}

// List returns schedule entries with optional filtering and pagination.
func (r *ScheduleEntryRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleEntry, int, error) {
	base := "FROM schedule_entries WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.AcademicYear != "" {
		conditions = append(conditions, fmt.Sprintf("academic_year = $%d", len(args)+1))
		args = append(args, filter.AcademicYear)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.FacultyID != "" {
		conditions = append(conditions, fmt.Sprintf("faculty_id = $%d", len(args)+1))
		args = append(args, filter.FacultyID)
	}
	if filter.ClassroomID != "" {
		conditions = append(conditions, fmt.Sprintf("classroom_id = $%d", len(args)+1))
		args = append(args, filter.ClassroomID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	allowedSorts := map[string]bool{
		"created_at": true,
		"updated_at": true,
		"status":     true,
		"subject_id": true,
		"faculty_id": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", scheduleEntryColumns, base, sortBy, order, size, offset)
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedule entries: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedule entries: %w", err)
	}

	return entries, total, nil
}

// FindByID loads a schedule entry by id.
func (r *ScheduleEntryRepository) FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_entries WHERE id = $1", scheduleEntryColumns)
	var entry models.ScheduleEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByIDs fetches entries by exact ids, ordered by id.
func (r *ScheduleEntryRepository) ListByIDs(ctx context.Context, ids []string) ([]models.ScheduleEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM schedule_entries WHERE id IN (?) ORDER BY id ASC", scheduleEntryColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build schedule entry id query: %w", err)
	}
	query = r.db.Rebind(query)

	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list schedule entries by ids: %w", err)
	}
	return entries, nil
}

// ListByTerm returns every entry of a term ordered by id, for snapshot
// builds and conflict checks. Archived entries are included; callers
// filter by status.
func (r *ScheduleEntryRepository) ListByTerm(ctx context.Context, semester, academicYear string) ([]models.ScheduleEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_entries WHERE semester = $1 AND academic_year = $2 ORDER BY id ASC", scheduleEntryColumns)
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, semester, academicYear); err != nil {
		return nil, fmt.Errorf("list schedule entries by term: %w", err)
	}
	return entries, nil
}

// ListByFacultyTerm returns a faculty member's non-archived entries in a term.
func (r *ScheduleEntryRepository) ListByFacultyTerm(ctx context.Context, facultyID, semester, academicYear string) ([]models.ScheduleEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_entries WHERE faculty_id = $1 AND semester = $2 AND academic_year = $3 AND status <> $4 ORDER BY id ASC", scheduleEntryColumns)
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, facultyID, semester, academicYear, models.EntryStatusArchived); err != nil {
		return nil, fmt.Errorf("list schedule entries by faculty: %w", err)
	}
	return entries, nil
}

// TermFingerprint hashes the ids and versions of a term's non-archived
// entries. Two equal fingerprints mean the conflict universe has not
// changed between reads.
func (r *ScheduleEntryRepository) TermFingerprint(ctx context.Context, semester, academicYear string) (string, error) {
	const query = `SELECT COALESCE(MD5(STRING_AGG(id || ':' || version::text, ',' ORDER BY id)), '') FROM schedule_entries WHERE semester = $1 AND academic_year = $2 AND status <> $3`
	var fingerprint string
	if err := r.db.GetContext(ctx, &fingerprint, query, semester, academicYear, models.EntryStatusArchived); err != nil {
		return "", fmt.Errorf("fingerprint term entries: %w", err)
	}
	return fingerprint, nil
}

// Create stores a new schedule entry.
func (r *ScheduleEntryRepository) Create(ctx context.Context, entry *models.ScheduleEntry) error {
	return r.insert(ctx, r.db, entry)
}

// BulkCreateWithTx inserts entries using an existing transaction.
func (r *ScheduleEntryRepository) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, entries []models.ScheduleEntry) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	for i := range entries {
		if err := r.insert(ctx, tx, &entries[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *ScheduleEntryRepository) insert(ctx context.Context, exec sqlx.ExtContext, entry *models.ScheduleEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Status == "" {
		entry.Status = models.EntryStatusDraft
	}
	if entry.Version == 0 {
		entry.Version = 1
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	const query = `INSERT INTO schedule_entries (id, subject_id, faculty_id, classroom_id, slots, semester, academic_year, status, version, created_by, created_at, updated_at) VALUES (:id, :subject_id, :faculty_id, :classroom_id, :slots, :semester, :academic_year, :status, :version, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entry); err != nil {
		return fmt.Errorf("insert schedule entry: %w", err)
	}
	return nil
}

// Update modifies a schedule entry and bumps its version.
func (r *ScheduleEntryRepository) Update(ctx context.Context, entry *models.ScheduleEntry) error {
	entry.Version++
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedule_entries SET subject_id = :subject_id, faculty_id = :faculty_id, classroom_id = :classroom_id, slots = :slots, semester = :semester, academic_year = :academic_year, status = :status, version = :version, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("update schedule entry: %w", err)
	}
	return nil
}

// UpdateStatusBatchWithTx sets the status of many entries inside a
// transaction, so batch publishes stay all-or-nothing.
func (r *ScheduleEntryRepository) UpdateStatusBatchWithTx(ctx context.Context, tx *sqlx.Tx, ids []string, status models.EntryStatus) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE schedule_entries SET status = ?, version = version + 1, updated_at = ? WHERE id IN (?)`, status, time.Now().UTC(), ids)
	if err != nil {
		return fmt.Errorf("build status batch query: %w", err)
	}
	query = tx.Rebind(query)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update schedule entry statuses: %w", err)
	}
	return nil
}

// ArchiveTermWithTx archives every non-archived entry of a term.
func (r *ScheduleEntryRepository) ArchiveTermWithTx(ctx context.Context, tx *sqlx.Tx, semester, academicYear string) (int64, error) {
	if tx == nil {
		return 0, fmt.Errorf("nil transaction provided")
	}
	res, err := tx.ExecContext(ctx, `UPDATE schedule_entries SET status = $1, version = version + 1, updated_at = $2 WHERE semester = $3 AND academic_year = $4 AND status <> $1`, models.EntryStatusArchived, time.Now().UTC(), semester, academicYear)
	if err != nil {
		return 0, fmt.Errorf("archive term entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive term entries affected: %w", err)
	}
	return affected, nil
}

// DeleteBySubjectsWithTx removes a term's live entries for the given
// subjects, used when a committed proposal replaces released assignments.
// Archived rows are history and stay untouched.
func (r *ScheduleEntryRepository) DeleteBySubjectsWithTx(ctx context.Context, tx *sqlx.Tx, semester, academicYear string, subjectIDs []string) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	if len(subjectIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM schedule_entries WHERE semester = ? AND academic_year = ? AND status <> ? AND subject_id IN (?)`, semester, academicYear, models.EntryStatusArchived, subjectIDs)
	if err != nil {
		return fmt.Errorf("build subject delete query: %w", err)
	}
	query = tx.Rebind(query)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete schedule entries by subject: %w", err)
	}
	return nil
}

// Delete removes a schedule entry by id.
func (r *ScheduleEntryRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM schedule_entries WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete schedule entry: %w", err)
	}
	return nil
}
