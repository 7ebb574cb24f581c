package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acadforge/timetable-api/internal/models"
)

const facultyColumns = "id, employee_no, email, full_name, department_id, employment_type, min_load, max_load, max_preparations, availability, status, created_at, updated_at"

// FacultyRepository manages persistence for faculty members.
type FacultyRepository struct {
	db *sqlx.DB
}

// NewFacultyRepository constructs a FacultyRepository.
func NewFacultyRepository(db *sqlx.DB) *FacultyRepository {
	return &FacultyRepository{db: db}
}

// List returns faculty matching filters along with total count.
func (r *FacultyRepository) List(ctx context.Context, filter models.FacultyFilter) ([]models.Faculty, int, error) {
	base := "FROM faculty WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.EmploymentType != "" {
		conditions = append(conditions, fmt.Sprintf("employment_type = $%d", len(args)+1))
		args = append(args, filter.EmploymentType)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(email) LIKE $%d OR LOWER(COALESCE(employee_no, '')) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, search)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	allowedSorts := map[string]string{
		"full_name":  "full_name",
		"email":      "email",
		"max_load":   "max_load",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "created_at"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", facultyColumns, base, column, order, size, offset)
	var faculty []models.Faculty
	if err := r.db.SelectContext(ctx, &faculty, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list faculty: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count faculty: %w", err)
	}

	return faculty, total, nil
}

// FindByID fetches a faculty member by ID.
func (r *FacultyRepository) FindByID(ctx context.Context, id string) (*models.Faculty, error) {
	query := fmt.Sprintf("SELECT %s FROM faculty WHERE id = $1", facultyColumns)
	var fac models.Faculty
	if err := r.db.GetContext(ctx, &fac, query, id); err != nil {
		return nil, err
	}
	return &fac, nil
}

// ListActiveByDepartment returns every active faculty member of a department.
func (r *FacultyRepository) ListActiveByDepartment(ctx context.Context, departmentID string) ([]models.Faculty, error) {
	query := fmt.Sprintf("SELECT %s FROM faculty WHERE department_id = $1 AND status = $2 ORDER BY id ASC", facultyColumns)
	var faculty []models.Faculty
	if err := r.db.SelectContext(ctx, &faculty, query, departmentID, models.FacultyStatusActive); err != nil {
		return nil, fmt.Errorf("list active faculty: %w", err)
	}
	return faculty, nil
}

// ListAll returns every faculty member ordered by id, for snapshot builds.
func (r *FacultyRepository) ListAll(ctx context.Context) ([]models.Faculty, error) {
	query := fmt.Sprintf("SELECT %s FROM faculty ORDER BY id ASC", facultyColumns)
	var faculty []models.Faculty
	if err := r.db.SelectContext(ctx, &faculty, query); err != nil {
		return nil, fmt.Errorf("list all faculty: %w", err)
	}
	return faculty, nil
}

// ExistsByEmail checks whether the email is taken, ignoring excludeID.
func (r *FacultyRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	query := "SELECT 1 FROM faculty WHERE LOWER(email) = LOWER($1)"
	args := []interface{}{email}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	query += " LIMIT 1"

	var one int
	err := r.db.GetContext(ctx, &one, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check faculty email: %w", err)
	}
	return true, nil
}

// Create stores a new faculty record.
func (r *FacultyRepository) Create(ctx context.Context, fac *models.Faculty) error {
	if fac.ID == "" {
		fac.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if fac.CreatedAt.IsZero() {
		fac.CreatedAt = now
	}
	fac.UpdatedAt = now

	const query = `INSERT INTO faculty (id, employee_no, email, full_name, department_id, employment_type, min_load, max_load, max_preparations, availability, status, created_at, updated_at) VALUES (:id, :employee_no, :email, :full_name, :department_id, :employment_type, :min_load, :max_load, :max_preparations, :availability, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fac); err != nil {
		return fmt.Errorf("create faculty: %w", err)
	}
	return nil
}

// Update modifies a faculty record.
func (r *FacultyRepository) Update(ctx context.Context, fac *models.Faculty) error {
	fac.UpdatedAt = time.Now().UTC()
	const query = `UPDATE faculty SET employee_no = :employee_no, email = :email, full_name = :full_name, department_id = :department_id, employment_type = :employment_type, min_load = :min_load, max_load = :max_load, max_preparations = :max_preparations, availability = :availability, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, fac); err != nil {
		return fmt.Errorf("update faculty: %w", err)
	}
	return nil
}

// SetStatus flips a faculty member's active flag.
func (r *FacultyRepository) SetStatus(ctx context.Context, id string, status models.FacultyStatus) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE faculty SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set faculty status: %w", err)
	}
	return nil
}

// Delete removes a faculty member by id.
func (r *FacultyRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM faculty WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete faculty: %w", err)
	}
	return nil
}
