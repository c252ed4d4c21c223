package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/od-approval-api/internal/models"
	"github.com/noah-isme/od-approval-api/internal/repository"
)

var (
	testNow     = time.Date(2025, 10, 16, 9, 0, 0, 0, time.UTC)
	testStudent = models.Actor{ID: "stu-1", Role: models.RoleStudent, Name: "Asha", RegNo: "REG-1", Year: 3, Section: "A"}
	testOther   = models.Actor{ID: "stu-2", Role: models.RoleStudent, Name: "Ravi", RegNo: "REG-2", Year: 3, Section: "A"}
	testStaff   = models.Actor{ID: "staff-1", Role: models.RoleStaff, Name: "Dr. Rao", StaffID: "S-1"}
	testHOD     = models.Actor{ID: "hod-1", Role: models.RoleHOD, Name: "Prof. Iyer", StaffID: "H-1"}
)

func fixedClock() time.Time { return testNow }

func strPtr(s string) *string { return &s }

// memoryStore is an in-memory applicationStore with real version checks.
type memoryStore struct {
	mu   sync.Mutex
	apps map[string]models.Application

	// beforeCAS runs after the load and before the version check, simulating a competing writer.
	beforeCAS func(s *memoryStore, id string)
	failGet   map[string]error
	queryErr  error
	lastQuery models.ApplicationFilter
	queries   int
}

func newMemoryStore(apps ...models.Application) *memoryStore {
	s := &memoryStore{apps: map[string]models.Application{}, failGet: map[string]error{}}
	for _, app := range apps {
		s.apps[app.ID] = app
	}
	return s
}

func (s *memoryStore) Create(ctx context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if app.ID == "" {
		app.ID = "app-new"
	}
	app.SyncStatus()
	s.apps[app.ID] = *app
	return nil
}

func (s *memoryStore) GetByID(ctx context.Context, id string) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failGet[id]; err != nil {
		return nil, err
	}
	app, ok := s.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	app.SyncStatus()
	return &app, nil
}

func (s *memoryStore) CompareAndSet(ctx context.Context, id string, expectedVersion int, facts models.ApprovalFacts) (*models.Application, error) {
	if s.beforeCAS != nil {
		s.beforeCAS(s, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if app.Version != expectedVersion {
		return nil, repository.ErrVersionConflict
	}
	app.ApprovalFacts = facts
	app.Version++
	app.UpdatedAt = testNow
	app.SyncStatus()
	s.apps[id] = app
	return &app, nil
}

// overwrite replaces facts and bumps the version as a competing writer would.
func (s *memoryStore) overwrite(id string, mutate func(*models.ApprovalFacts)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app := s.apps[id]
	mutate(&app.ApprovalFacts)
	app.Version++
	s.apps[id] = app
}

func (s *memoryStore) Query(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	s.lastQuery = filter
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	out := make([]models.Application, 0, len(s.apps))
	for _, app := range s.apps {
		app.SyncStatus()
		if filter.StudentID != "" && app.StudentID != filter.StudentID {
			continue
		}
		if filter.ExcludeStudentID != "" && app.StudentID == filter.ExcludeStudentID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, app.Status) {
			continue
		}
		if filter.FacultyApproved != nil && app.FacultyApproved != *filter.FacultyApproved {
			continue
		}
		out = append(out, app)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []models.Application{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *memoryStore) StudentStats(ctx context.Context, studentID string) (*models.StudentStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &models.StudentStats{}
	for _, app := range s.apps {
		if app.StudentID != studentID {
			continue
		}
		stats.Total++
		switch app.ApprovalFacts.DeriveStatus() {
		case models.StatusPending:
			stats.Pending++
		case models.StatusApproved:
			stats.Approved++
		case models.StatusRejected:
			stats.Rejected++
		case models.StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

func (s *memoryStore) get(id string) models.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	app := s.apps[id]
	app.SyncStatus()
	return app
}

func containsStatus(list []models.ApplicationStatus, status models.ApplicationStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.NotificationEvent
	to     []string
}

func (n *recordingNotifier) Notify(ctx context.Context, recipientID string, event models.NotificationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.to = append(n.to, recipientID)
	n.events = append(n.events, event)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type recordingAudit struct {
	mu   sync.Mutex
	logs []models.AuditLog
	err  error
}

func (a *recordingAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, *log)
	return a.err
}

type recordingInvalidator struct {
	mu       sync.Mutex
	patterns []string
}

func (c *recordingInvalidator) Invalidate(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns = append(c.patterns, pattern)
	return errors.New("redis unavailable")
}

// pendingApp builds a stored pending application owned by studentID.
func pendingApp(id, studentID string) models.Application {
	start := time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC)
	app := models.Application{
		ID:           id,
		StudentID:    studentID,
		StudentRegNo: "REG-" + id,
		StudentName:  "Student " + id,
		Year:         3,
		Section:      "A",
		ODType:       models.ODTypeInternal,
		ClubName:     strPtr("Coding Club"),
		Role:         "Participant",
		EventName:    "Hackathon",
		StartDate:    start,
		EndDate:      start.AddDate(0, 0, 2),
		Version:      1,
		SubmittedAt:  testNow,
		UpdatedAt:    testNow,
	}
	app.SyncStatus()
	return app
}

func facultyApproved(app models.Application) models.Application {
	app.FacultyApproved = true
	app.FacultyApprovedBy = strPtr(testStaff.ID)
	app.Version = 2
	app.SyncStatus()
	return app
}
