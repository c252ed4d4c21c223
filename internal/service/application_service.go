package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/od-approval-api/internal/dto"
	"github.com/noah-isme/od-approval-api/internal/models"
	"github.com/noah-isme/od-approval-api/internal/workflow"
	appErrors "github.com/noah-isme/od-approval-api/pkg/errors"
)

// ApplicationService exposes the OD workflow use cases.
type ApplicationService struct {
	store       applicationStore
	coordinator *BatchCoordinator
	validator   *validator.Validate
	audit       auditRecorder
	cache       cacheInvalidator
	logger      *zap.Logger
	now         func() time.Time
}

// ApplicationServiceOption customises the service.
type ApplicationServiceOption func(*ApplicationService)

// WithApplicationAudit enables audit logging of submissions.
func WithApplicationAudit(a auditRecorder) ApplicationServiceOption {
	return func(s *ApplicationService) { s.audit = a }
}

// WithApplicationCache sets the roster cache to invalidate on submit.
func WithApplicationCache(cache cacheInvalidator) ApplicationServiceOption {
	return func(s *ApplicationService) { s.cache = cache }
}

// WithApplicationClock overrides the time source.
func WithApplicationClock(now func() time.Time) ApplicationServiceOption {
	return func(s *ApplicationService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewApplicationService constructs the service.
func NewApplicationService(store applicationStore, coordinator *BatchCoordinator, validate *validator.Validate, logger *zap.Logger, opts ...ApplicationServiceOption) *ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = dto.NewValidator()
	}
	if coordinator == nil {
		coordinator = NewBatchCoordinator(store, WithBatchLogger(logger))
	}
	s := &ApplicationService{store: store, coordinator: coordinator, validator: validate, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit files a new pending application for the calling student.
func (s *ApplicationService) Submit(ctx context.Context, actor models.Actor, req dto.SubmitApplicationRequest) (*models.Application, error) {
	if err := workflow.Authorize(actor, models.TransitionSubmit, nil); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid od application payload")
	}
	start, err := models.ParseDate(req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "startDate must be YYYY-MM-DD")
	}
	end, err := models.ParseDate(req.EndDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate must be YYYY-MM-DD")
	}

	draft := models.Application{
		StudentRegNo:     firstNonEmpty(req.StudentRegNo, actor.RegNo),
		StudentName:      firstNonEmpty(req.StudentName, actor.Name),
		Year:             req.Year,
		Section:          firstNonEmpty(req.Section, actor.Section),
		Department:       req.Department,
		ODType:           models.ODType(req.ODType),
		ClubName:         blankToNil(req.ClubName),
		CollegeName:      blankToNil(req.CollegeName),
		Role:             strings.TrimSpace(req.Role),
		EventName:        strings.TrimSpace(req.EventName),
		EventDescription: blankToNil(req.EventDescription),
		StartDate:        start,
		EndDate:          end,
	}
	if draft.Year == 0 {
		draft.Year = actor.Year
	}
	if draft.Department == nil && actor.Department != "" {
		dept := actor.Department
		draft.Department = &dept
	}

	app, err := workflow.NewApplication(draft, actor, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create od application")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, rosterCachePattern); err != nil {
			s.logger.Warn("roster cache invalidation failed", zap.Error(err))
		}
	}
	newValues, _ := json.Marshal(app)
	actorID, resourceID := actor.ID, app.ID
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionODSubmit,
		Resource:   auditResource,
		ResourceID: &resourceID,
		NewValues:  newValues,
	})
	s.logger.Info("od application submitted", zap.String("id", app.ID), zap.String("student_id", app.StudentID))
	return app, nil
}

// Get returns one application. Students may only read their own.
func (s *ApplicationService) Get(ctx context.Context, actor models.Actor, id string) (*models.Application, error) {
	app, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "od application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load od application")
	}
	if actor.Role == models.RoleStudent && app.StudentID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only view their own applications")
	}
	return app, nil
}

// ListMine returns the calling student's applications, newest first.
func (s *ApplicationService) ListMine(ctx context.Context, actor models.Actor, query dto.ListQuery) ([]models.Application, *models.Pagination, error) {
	if err := requireRole(actor, models.RoleStudent); err != nil {
		return nil, nil, err
	}
	page := query.Normalize()
	apps, err := s.store.Query(ctx, models.ApplicationFilter{
		StudentID:   actor.ID,
		NewestFirst: true,
		Limit:       page.PageSize,
		Offset:      page.Offset(),
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list od applications")
	}
	stats, err := s.store.StudentStats(ctx, actor.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count od applications")
	}
	return apps, &models.Pagination{Page: page.Page, PageSize: page.PageSize, TotalCount: stats.Total}, nil
}

// Stats summarises the calling student's applications.
func (s *ApplicationService) Stats(ctx context.Context, actor models.Actor) (*models.StudentStats, error) {
	if err := requireRole(actor, models.RoleStudent); err != nil {
		return nil, err
	}
	stats, err := s.store.StudentStats(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load od stats")
	}
	return stats, nil
}

// PendingFaculty lists pending applications awaiting faculty review, oldest first.
func (s *ApplicationService) PendingFaculty(ctx context.Context, actor models.Actor, query dto.ListQuery) ([]models.Application, error) {
	if err := requireRole(actor, models.RoleStaff); err != nil {
		return nil, err
	}
	return s.pending(ctx, actor, false, query)
}

// PendingHOD lists faculty-approved applications awaiting HOD review, oldest first.
func (s *ApplicationService) PendingHOD(ctx context.Context, actor models.Actor, query dto.ListQuery) ([]models.Application, error) {
	if err := requireRole(actor, models.RoleHOD); err != nil {
		return nil, err
	}
	return s.pending(ctx, actor, true, query)
}

func (s *ApplicationService) pending(ctx context.Context, actor models.Actor, facultyApproved bool, query dto.ListQuery) ([]models.Application, error) {
	page := query.Normalize()
	// Reviewers never see their own submissions in a queue they cannot act on.
	apps, err := s.store.Query(ctx, models.ApplicationFilter{
		Statuses:         []models.ApplicationStatus{models.StatusPending},
		FacultyApproved:  &facultyApproved,
		ExcludeStudentID: actor.ID,
		Limit:            page.PageSize,
		Offset:           page.Offset(),
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending od applications")
	}
	return apps, nil
}

// Cancel withdraws the calling student's pending application.
func (s *ApplicationService) Cancel(ctx context.Context, actor models.Actor, id string, req dto.CancelRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancel payload")
	}
	return s.coordinator.TransitionOne(ctx, actor, id, models.TransitionCancel, strings.TrimSpace(req.Reason))
}

// Transition applies one reviewer transition.
func (s *ApplicationService) Transition(ctx context.Context, actor models.Actor, id string, req dto.TransitionRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transition payload")
	}
	return s.coordinator.TransitionOne(ctx, actor, id, models.Transition(req.Transition), strings.TrimSpace(req.Remarks))
}

// Batch applies one transition to many applications.
func (s *ApplicationService) Batch(ctx context.Context, actor models.Actor, req dto.BatchTransitionRequest) (*models.BatchResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	return s.coordinator.Execute(ctx, actor, req.IDs, models.Transition(req.Transition), strings.TrimSpace(req.Remarks))
}

func (s *ApplicationService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "od-workflow"
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func requireRole(actor models.Actor, role models.UserRole) error {
	if actor.ID == "" {
		return appErrors.ErrUnauthorized
	}
	if actor.Role != role {
		return appErrors.Clone(appErrors.ErrForbidden, "requires role "+string(role))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func blankToNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
