package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/od-approval-api/internal/models"
	"github.com/noah-isme/od-approval-api/internal/repository"
	"github.com/noah-isme/od-approval-api/internal/workflow"
	appErrors "github.com/noah-isme/od-approval-api/pkg/errors"
)

const (
	rosterCachePattern    = "roster:*"
	auditResource         = "od_application"
	defaultBatchWorkers   = 4
	defaultBatchMaxItems  = 200
	notificationEventType = "od.transition"
)

type applicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	GetByID(ctx context.Context, id string) (*models.Application, error)
	CompareAndSet(ctx context.Context, id string, expectedVersion int, facts models.ApprovalFacts) (*models.Application, error)
	Query(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error)
	StudentStats(ctx context.Context, studentID string) (*models.StudentStats, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Notifier receives fire-and-forget workflow events.
type Notifier interface {
	Notify(ctx context.Context, recipientID string, event models.NotificationEvent)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// BatchCoordinator applies transitions to one or many applications. Each id is loaded, gated,
// guarded and written with a compare-and-set on the version it was loaded at.
type BatchCoordinator struct {
	store       applicationStore
	notifier    Notifier
	audit       auditRecorder
	cache       cacheInvalidator
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
	concurrency int
	maxItems    int
}

// BatchOption customises a BatchCoordinator.
type BatchOption func(*BatchCoordinator)

// WithBatchNotifier sets the notification collaborator.
func WithBatchNotifier(n Notifier) BatchOption {
	return func(c *BatchCoordinator) { c.notifier = n }
}

// WithBatchAudit enables audit trails.
func WithBatchAudit(a auditRecorder) BatchOption {
	return func(c *BatchCoordinator) { c.audit = a }
}

// WithBatchCache sets the roster cache to invalidate on writes.
func WithBatchCache(cache cacheInvalidator) BatchOption {
	return func(c *BatchCoordinator) { c.cache = cache }
}

// WithBatchMetrics records transition metrics.
func WithBatchMetrics(m *MetricsService) BatchOption {
	return func(c *BatchCoordinator) { c.metrics = m }
}

// WithBatchLogger sets the logger.
func WithBatchLogger(logger *zap.Logger) BatchOption {
	return func(c *BatchCoordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBatchClock overrides the time source.
func WithBatchClock(now func() time.Time) BatchOption {
	return func(c *BatchCoordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithBatchLimits bounds fan-out and request size. Non-positive values keep the defaults.
func WithBatchLimits(concurrency, maxItems int) BatchOption {
	return func(c *BatchCoordinator) {
		if concurrency > 0 {
			c.concurrency = concurrency
		}
		if maxItems > 0 {
			c.maxItems = maxItems
		}
	}
}

// NewBatchCoordinator constructs the coordinator.
func NewBatchCoordinator(store applicationStore, opts ...BatchOption) *BatchCoordinator {
	c := &BatchCoordinator{
		store:       store,
		logger:      zap.NewNop(),
		now:         time.Now,
		concurrency: defaultBatchWorkers,
		maxItems:    defaultBatchMaxItems,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute applies t to every distinct id. Duplicate ids are processed once, at their first position.
// Per-item failures are reported in the result; only an invalid request returns an error.
func (c *BatchCoordinator) Execute(ctx context.Context, actor models.Actor, ids []string, t models.Transition, remarks string) (*models.BatchResult, error) {
	if !t.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown transition %q", t))
	}
	if t == models.TransitionSubmit {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submit cannot be applied to existing applications")
	}
	unique := dedupe(ids)
	if len(unique) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ids must not be empty")
	}
	if len(unique) > c.maxItems {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, fmt.Sprintf("at most %d ids per batch", c.maxItems), map[string]interface{}{
			"limit":     c.maxItems,
			"requested": len(unique),
		})
	}

	start := time.Now()
	items := make([]models.BatchItemResult, len(unique))
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, id := range unique {
		i, id := i, id
		g.Go(func() error {
			items[i] = c.item(ctx, actor, id, t, remarks)
			return nil
		})
	}
	_ = g.Wait()

	result := &models.BatchResult{Transition: t, Items: items}
	for _, item := range items {
		if item.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}
	c.metrics.ObserveBatch(len(unique), time.Since(start))
	c.logger.Info("batch transition completed",
		zap.String("transition", string(t)),
		zap.String("actor_id", actor.ID),
		zap.Int("requested", len(unique)),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))
	return result, nil
}

// TransitionOne applies t to a single application and returns the stored result.
func (c *BatchCoordinator) TransitionOne(ctx context.Context, actor models.Actor, id string, t models.Transition, remarks string) (*models.Application, error) {
	if t == models.TransitionSubmit {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submit cannot be applied to existing applications")
	}
	return c.transition(ctx, actor, id, t, remarks)
}

func (c *BatchCoordinator) item(ctx context.Context, actor models.Actor, id string, t models.Transition, remarks string) models.BatchItemResult {
	app, err := c.transition(ctx, actor, id, t, remarks)
	if err != nil {
		appErr := appErrors.FromError(err)
		return models.BatchItemResult{
			ID:      id,
			Success: false,
			Error: &models.BatchItemError{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Details,
			},
		}
	}
	return models.BatchItemResult{ID: id, Success: true, Status: app.Status, Application: app}
}

func (c *BatchCoordinator) transition(ctx context.Context, actor models.Actor, id string, t models.Transition, remarks string) (*models.Application, error) {
	app, err := c.store.GetByID(ctx, id)
	if err != nil {
		return nil, c.fail(t, c.storeError(err, id, "failed to load od application"))
	}
	if err := workflow.Authorize(actor, t, app); err != nil {
		return nil, c.fail(t, err)
	}
	change, err := workflow.Apply(app, t, actor, c.now(), remarks)
	if err != nil {
		return nil, c.fail(t, err)
	}
	if change.Noop {
		c.metrics.RecordTransition(t, "noop")
		return app, nil
	}

	updated, err := c.store.CompareAndSet(ctx, id, app.Version, change.Facts)
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, c.fail(t, appErrors.WithDetails(appErrors.ErrConcurrentModification, "", map[string]interface{}{
				"id":              id,
				"expectedVersion": app.Version,
			}))
		}
		return nil, c.fail(t, c.storeError(err, id, "failed to update od application"))
	}

	c.metrics.RecordTransition(t, "ok")
	c.afterWrite(ctx, actor, app, updated, t, remarks)
	return updated, nil
}

func (c *BatchCoordinator) afterWrite(ctx context.Context, actor models.Actor, before, after *models.Application, t models.Transition, remarks string) {
	if c.cache != nil {
		if err := c.cache.Invalidate(ctx, rosterCachePattern); err != nil {
			c.logger.Warn("roster cache invalidation failed", zap.Error(err))
		}
	}
	if c.notifier != nil && t.Reviewer() {
		c.notifier.Notify(ctx, after.StudentID, models.NotificationEvent{
			Type:          notificationEventType,
			ApplicationID: after.ID,
			Transition:    t,
			Status:        after.Status,
			ActorID:       actor.ID,
			ActorRole:     actor.Role,
			EventName:     after.EventName,
			Remarks:       remarks,
			OccurredAt:    after.UpdatedAt,
		})
	}

	action := models.AuditActionODTransition
	if t == models.TransitionCancel {
		action = models.AuditActionODCancel
	}
	oldValues, _ := json.Marshal(map[string]interface{}{"status": before.Status, "version": before.Version})
	newValues, _ := json.Marshal(map[string]interface{}{
		"status":     after.Status,
		"version":    after.Version,
		"transition": t,
		"actor":      actor.Reference(),
		"remarks":    remarks,
	})
	actorID := actor.ID
	resourceID := after.ID
	c.emitAudit(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   auditResource,
		ResourceID: &resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
	})
}

func (c *BatchCoordinator) emitAudit(ctx context.Context, log *models.AuditLog) {
	if c.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "od-workflow"
	if err := c.audit.CreateAuditLog(ctx, log); err != nil {
		c.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func (c *BatchCoordinator) fail(t models.Transition, err error) error {
	c.metrics.RecordTransition(t, appErrors.FromError(err).Code)
	return err
}

func (c *BatchCoordinator) storeError(err error, id, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.WithDetails(appErrors.ErrNotFound, "od application not found", map[string]interface{}{"id": id})
	}
	c.logger.Error(message, zap.String("id", id), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
