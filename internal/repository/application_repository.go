package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/od-approval-api/internal/models"
)

// ErrVersionConflict is returned by CompareAndSet when the stored version moved on.
var ErrVersionConflict = errors.New("application version conflict")

const maxListLimit = 500

const applicationColumns = `id, student_id, student_reg_no, student_name, year, section, department, od_type,
       club_name, college_name, role, event_name, event_description, start_date, end_date,
       faculty_approved, faculty_approved_by, faculty_approved_at, faculty_remarks,
       hod_approved, hod_approved_by, hod_approved_at, hod_remarks,
       rejected_stage, rejected_by, rejected_at, cancelled_at,
       version, submitted_at, updated_at`

// ApplicationRepository persists OD applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// validID reports whether id can address a uuid primary key. Anything else cannot exist.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// applicationRow adds the persisted status column, which is always written from the approval facts.
type applicationRow struct {
	*models.Application
	Status models.ApplicationStatus `db:"status"`
}

// Create inserts a new application. Status is derived from the facts, never taken from the caller.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.Version <= 0 {
		app.Version = 1
	}
	if app.SubmittedAt.IsZero() {
		app.SubmittedAt = time.Now().UTC()
	}
	if app.UpdatedAt.IsZero() {
		app.UpdatedAt = app.SubmittedAt
	}
	app.SyncStatus()

	const query = `INSERT INTO od_applications
	(id, student_id, student_reg_no, student_name, year, section, department, od_type, club_name, college_name,
	 role, event_name, event_description, start_date, end_date,
	 faculty_approved, faculty_approved_by, faculty_approved_at, faculty_remarks,
	 hod_approved, hod_approved_by, hod_approved_at, hod_remarks,
	 rejected_stage, rejected_by, rejected_at, cancelled_at, status, version, submitted_at, updated_at)
	VALUES (:id, :student_id, :student_reg_no, :student_name, :year, :section, :department, :od_type, :club_name, :college_name,
	 :role, :event_name, :event_description, :start_date, :end_date,
	 :faculty_approved, :faculty_approved_by, :faculty_approved_at, :faculty_remarks,
	 :hod_approved, :hod_approved_by, :hod_approved_at, :hod_remarks,
	 :rejected_stage, :rejected_by, :rejected_at, :cancelled_at, :status, :version, :submitted_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, applicationRow{Application: app, Status: app.Status}); err != nil {
		return fmt.Errorf("create od application: %w", err)
	}
	return nil
}

// GetByID fetches an application. It returns sql.ErrNoRows when absent or when id is not a uuid.
func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*models.Application, error) {
	if !validID(id) {
		return nil, sql.ErrNoRows
	}
	query := `SELECT ` + applicationColumns + ` FROM od_applications WHERE id = $1`
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	app.SyncStatus()
	return &app, nil
}

// CompareAndSet writes facts only if the stored version still equals expectedVersion.
// It returns ErrVersionConflict when another writer got there first and sql.ErrNoRows
// when the application does not exist.
func (r *ApplicationRepository) CompareAndSet(ctx context.Context, id string, expectedVersion int, facts models.ApprovalFacts) (*models.Application, error) {
	if !validID(id) {
		return nil, sql.ErrNoRows
	}
	query := `UPDATE od_applications SET
	faculty_approved = $1, faculty_approved_by = $2, faculty_approved_at = $3, faculty_remarks = $4,
	hod_approved = $5, hod_approved_by = $6, hod_approved_at = $7, hod_remarks = $8,
	rejected_stage = $9, rejected_by = $10, rejected_at = $11, cancelled_at = $12,
	status = $13, version = version + 1, updated_at = $14
	WHERE id = $15 AND version = $16
	RETURNING ` + applicationColumns

	var app models.Application
	err := r.db.QueryRowxContext(ctx, query,
		facts.FacultyApproved, facts.FacultyApprovedBy, facts.FacultyApprovedAt, facts.FacultyRemarks,
		facts.HODApproved, facts.HODApprovedBy, facts.HODApprovedAt, facts.HODRemarks,
		facts.RejectedStage, facts.RejectedBy, facts.RejectedAt, facts.CancelledAt,
		facts.DeriveStatus(), time.Now().UTC(),
		id, expectedVersion,
	).StructScan(&app)
	if err == nil {
		app.SyncStatus()
		return &app, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("compare and set od application: %w", err)
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM od_applications WHERE id = $1)`, id); err != nil {
		return nil, fmt.Errorf("check od application existence: %w", err)
	}
	if exists {
		return nil, ErrVersionConflict
	}
	return nil, sql.ErrNoRows
}

// Query returns applications matching the filter. Results are ordered by submission time
// (ascending unless NewestFirst) with ties broken by id.
func (r *ApplicationRepository) Query(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 8)
	builder.WriteString(`SELECT ` + applicationColumns + ` FROM od_applications`)

	conditions := make([]string, 0, 6)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.ExcludeStudentID != "" {
		args = append(args, filter.ExcludeStudentID)
		conditions = append(conditions, fmt.Sprintf("student_id <> $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.FacultyApproved != nil {
		args = append(args, *filter.FacultyApproved)
		conditions = append(conditions, fmt.Sprintf("faculty_approved = $%d", len(args)))
	}
	if filter.ActiveOn != nil {
		args = append(args, models.CalendarDate(*filter.ActiveOn))
		conditions = append(conditions, fmt.Sprintf("start_date <= $%d AND end_date >= $%d", len(args), len(args)))
	}
	if filter.Year != nil {
		args = append(args, *filter.Year)
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)))
	}
	if filter.Section != "" {
		args = append(args, filter.Section)
		conditions = append(conditions, fmt.Sprintf("section = $%d", len(args)))
	}
	if filter.ODType != "" {
		args = append(args, filter.ODType)
		conditions = append(conditions, fmt.Sprintf("od_type = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	if filter.NewestFirst {
		builder.WriteString(" ORDER BY submitted_at DESC, id DESC")
	} else {
		builder.WriteString(" ORDER BY submitted_at ASC, id ASC")
	}

	if filter.Limit > 0 {
		limit := filter.Limit
		if limit > maxListLimit {
			limit = maxListLimit
		}
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))
	}

	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query od applications: %w", err)
	}
	for i := range apps {
		apps[i].SyncStatus()
	}
	return apps, nil
}

// StudentStats counts a student's applications per status.
func (r *ApplicationRepository) StudentStats(ctx context.Context, studentID string) (*models.StudentStats, error) {
	const query = `SELECT COUNT(*) AS total,
       COUNT(*) FILTER (WHERE status = 'pending') AS pending,
       COUNT(*) FILTER (WHERE status = 'approved') AS approved,
       COUNT(*) FILTER (WHERE status = 'rejected') AS rejected,
       COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled
	FROM od_applications WHERE student_id = $1`
	var stats models.StudentStats
	if err := r.db.GetContext(ctx, &stats, query, studentID); err != nil {
		return nil, fmt.Errorf("student od stats: %w", err)
	}
	return &stats, nil
}
