package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/od-approval-api/internal/models"
)

var applicationColumnNames = []string{
	"id", "student_id", "student_reg_no", "student_name", "year", "section", "department", "od_type",
	"club_name", "college_name", "role", "event_name", "event_description", "start_date", "end_date",
	"faculty_approved", "faculty_approved_by", "faculty_approved_at", "faculty_remarks",
	"hod_approved", "hod_approved_by", "hod_approved_at", "hod_remarks",
	"rejected_stage", "rejected_by", "rejected_at", "cancelled_at",
	"version", "submitted_at", "updated_at",
}

const (
	appUUID     = "0f8fad5b-d9cb-469f-a165-70867728950e"
	missingUUID = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
)

func newSQLMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func applicationRows() *sqlmock.Rows {
	return sqlmock.NewRows(applicationColumnNames)
}

func addApplicationRow(rows *sqlmock.Rows, id string, version int, facultyApproved, hodApproved bool, rejected interface{}, submitted time.Time) *sqlmock.Rows {
	start := time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC)
	return rows.AddRow(
		id, "stu-1", "REG-1", "Asha", 3, "A", nil, "internal",
		"Robotics", nil, "Participant", "Hackathon", nil, start, start.AddDate(0, 0, 2),
		facultyApproved, nil, nil, nil,
		hodApproved, nil, nil, nil,
		rejected, nil, nil, nil,
		version, submitted, submitted,
	)
}

func TestApplicationRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO od_applications")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	app := &models.Application{StudentID: "stu-1", ODType: models.ODTypeInternal, EventName: "Hackathon"}
	require.NoError(t, repo.Create(context.Background(), app))
	require.NotEmpty(t, app.ID)
	require.Equal(t, 1, app.Version)
	require.Equal(t, models.StatusPending, app.Status)

	submitted := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id")).
		WithArgs(app.ID).
		WillReturnRows(addApplicationRow(applicationRows(), app.ID, 1, true, true, nil, submitted))

	found, err := repo.GetByID(context.Background(), app.ID)
	require.NoError(t, err)
	require.Equal(t, app.ID, found.ID)
	require.Equal(t, models.StatusApproved, found.Status)
	require.Equal(t, "Robotics", found.Venue())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id")).
		WithArgs(missingUUID).
		WillReturnRows(applicationRows())

	_, err := repo.GetByID(context.Background(), missingUUID)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryCompareAndSet(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	facts := models.ApprovalFacts{FacultyApproved: true}
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE od_applications SET")).
		WithArgs(true, nil, nil, nil, false, nil, nil, nil, nil, nil, nil, nil,
			models.StatusPending, sqlmock.AnyArg(), appUUID, 1).
		WillReturnRows(addApplicationRow(applicationRows(), appUUID, 2, true, false, nil, time.Now()))

	updated, err := repo.CompareAndSet(context.Background(), appUUID, 1, facts)
	require.NoError(t, err)
	require.Equal(t, 2, updated.Version)
	require.True(t, updated.FacultyApproved)
	require.Equal(t, models.StatusPending, updated.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryCompareAndSetConflict(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE od_applications SET")).
		WillReturnRows(applicationRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs(appUUID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := repo.CompareAndSet(context.Background(), appUUID, 1, models.ApprovalFacts{FacultyApproved: true})
	require.True(t, errors.Is(err, ErrVersionConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryCompareAndSetMissing(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE od_applications SET")).
		WillReturnRows(applicationRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs(missingUUID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := repo.CompareAndSet(context.Background(), missingUUID, 3, models.ApprovalFacts{})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryQueryFilters(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	year := 3
	active := time.Date(2025, 10, 21, 14, 0, 0, 0, time.UTC)
	approved := true

	mock.ExpectQuery(`(?s)SELECT id, student_id.+FROM od_applications WHERE status IN \(\$1\) AND faculty_approved = \$2 AND start_date <= \$3 AND end_date >= \$3 AND year = \$4 AND section = \$5 ORDER BY submitted_at ASC, id ASC LIMIT 500 OFFSET 0`).
		WithArgs(models.StatusApproved, true, time.Date(2025, 10, 21, 0, 0, 0, 0, time.UTC), 3, "A").
		WillReturnRows(addApplicationRow(applicationRows(), appUUID, 4, true, true, nil, time.Now()))

	apps, err := repo.Query(context.Background(), models.ApplicationFilter{
		Statuses:        []models.ApplicationStatus{models.StatusApproved},
		FacultyApproved: &approved,
		ActiveOn:        &active,
		Year:            &year,
		Section:         "A",
		Limit:           1000,
	})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	require.Equal(t, models.StatusApproved, apps[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryQueryExcludesStudentBeforeLimit(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	approved := false

	mock.ExpectQuery(`(?s)FROM od_applications WHERE student_id <> \$1 AND status IN \(\$2\) AND faculty_approved = \$3 ORDER BY submitted_at ASC, id ASC LIMIT 20 OFFSET 20`).
		WithArgs("staff-1", models.StatusPending, false).
		WillReturnRows(applicationRows())

	apps, err := repo.Query(context.Background(), models.ApplicationFilter{
		ExcludeStudentID: "staff-1",
		Statuses:         []models.ApplicationStatus{models.StatusPending},
		FacultyApproved:  &approved,
		Limit:            20,
		Offset:           20,
	})
	require.NoError(t, err)
	require.Empty(t, apps)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryQueryStudentNewestFirst(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	rejected := "faculty"
	rows := applicationRows()
	addApplicationRow(rows, "app-2", 2, false, false, rejected, time.Now())
	addApplicationRow(rows, appUUID, 1, false, false, nil, time.Now().Add(-time.Hour))

	mock.ExpectQuery(`FROM od_applications WHERE student_id = \$1 ORDER BY submitted_at DESC, id DESC LIMIT 20 OFFSET 20`).
		WithArgs("stu-1").
		WillReturnRows(rows)

	apps, err := repo.Query(context.Background(), models.ApplicationFilter{StudentID: "stu-1", NewestFirst: true, Limit: 20, Offset: 20})
	require.NoError(t, err)
	require.Len(t, apps, 2)
	require.Equal(t, models.StatusRejected, apps[0].Status)
	require.Equal(t, models.StageFaculty, *apps[0].RejectedStage)
	require.Equal(t, models.StatusPending, apps[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryStudentStats(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) AS total")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "pending", "approved", "rejected", "cancelled"}).AddRow(6, 2, 2, 1, 1))

	stats, err := repo.StudentStats(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Equal(t, 6, stats.Total)
	require.Equal(t, 1, stats.Cancelled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryMalformedIDIsMissing(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)

	_, err := repo.GetByID(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, sql.ErrNoRows)

	_, err = repo.CompareAndSet(context.Background(), "APP 1", 1, models.ApprovalFacts{FacultyApproved: true})
	require.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, mock.ExpectationsWereMet())
}
