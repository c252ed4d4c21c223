package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/od-approval-api/internal/dto"
	"github.com/noah-isme/od-approval-api/internal/models"
	appErrors "github.com/noah-isme/od-approval-api/pkg/errors"
	"github.com/noah-isme/od-approval-api/pkg/jobs"
)

const notificationJobType = "od.notification"

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// NotificationQueueConfig sizes the delivery worker pool.
type NotificationQueueConfig struct {
	Enabled    bool
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

type delivery struct {
	Notification models.Notification
	Event        models.NotificationEvent
}

// NotificationService hands workflow events to a background queue and serves the inbox.
type NotificationService struct {
	store     notificationStore
	publisher EventPublisher
	queue     *jobs.Queue
	metrics   *MetricsService
	logger    *zap.Logger
	enabled   bool
}

// NewNotificationService wires the delivery queue. publisher may be nil.
func NewNotificationService(store notificationStore, publisher EventPublisher, metrics *MetricsService, logger *zap.Logger, cfg NotificationQueueConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		enabled:   cfg.Enabled,
	}
	s.queue = jobs.NewQueue("notifications", s.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	if s.enabled {
		s.queue.Start(ctx)
	}
}

// Stop drains workers and closes the publisher.
func (s *NotificationService) Stop() {
	s.queue.Stop()
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Warn("close notification publisher", zap.Error(err))
		}
	}
}

// Notify enqueues event for recipientID. It never blocks and never fails the caller.
func (s *NotificationService) Notify(ctx context.Context, recipientID string, event models.NotificationEvent) {
	if s == nil || !s.enabled || recipientID == "" {
		return
	}
	title, message := describe(event)
	appID := event.ApplicationID
	d := delivery{
		Notification: models.Notification{
			ID:            uuid.NewString(),
			UserID:        recipientID,
			ApplicationID: &appID,
			Type:          event.Type,
			Title:         title,
			Message:       message,
			CreatedAt:     event.OccurredAt,
		},
		Event: event,
	}
	if err := s.queue.TryEnqueue(jobs.Job{ID: d.Notification.ID, Type: notificationJobType, Payload: d}); err != nil {
		s.metrics.RecordNotification("dropped")
		s.logger.Warn("notification dropped",
			zap.String("application_id", event.ApplicationID),
			zap.String("recipient_id", recipientID),
			zap.Error(err))
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	d, ok := job.Payload.(delivery)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := s.store.Create(ctx, &d.Notification); err != nil {
		s.metrics.RecordNotification("failed")
		return err
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, d.Notification.UserID, d.Event); err != nil {
			s.metrics.RecordNotification("failed")
			return err
		}
	}
	s.metrics.RecordNotification("delivered")
	return nil
}

// List returns the caller's inbox.
func (s *NotificationService) List(ctx context.Context, actor models.Actor, query dto.NotificationQuery) ([]models.Notification, error) {
	if actor.ID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	page := query.ListQuery.Normalize()
	items, err := s.store.List(ctx, models.NotificationFilter{
		UserID:     actor.ID,
		UnreadOnly: query.UnreadOnly,
		Limit:      page.PageSize,
		Offset:     page.Offset(),
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, nil
}

// UnreadCount returns the caller's unread total.
func (s *NotificationService) UnreadCount(ctx context.Context, actor models.Actor) (int, error) {
	if actor.ID == "" {
		return 0, appErrors.ErrUnauthorized
	}
	count, err := s.store.UnreadCount(ctx, actor.ID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}

// MarkRead flags one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, actor models.Actor, id string) error {
	if actor.ID == "" {
		return appErrors.ErrUnauthorized
	}
	if err := s.store.MarkRead(ctx, id, actor.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	return nil
}

// MarkAllRead flags every unread notification of the caller.
func (s *NotificationService) MarkAllRead(ctx context.Context, actor models.Actor) (int64, error) {
	if actor.ID == "" {
		return 0, appErrors.ErrUnauthorized
	}
	n, err := s.store.MarkAllRead(ctx, actor.ID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notifications")
	}
	return n, nil
}

func describe(event models.NotificationEvent) (string, string) {
	switch event.Transition {
	case models.TransitionFacultyApprove:
		return "OD approved by faculty", fmt.Sprintf("Your OD request for %s was approved by faculty and is awaiting HOD approval.", event.EventName)
	case models.TransitionFacultyReject:
		return "OD rejected by faculty", withRemarks(fmt.Sprintf("Your OD request for %s was rejected by faculty.", event.EventName), event.Remarks)
	case models.TransitionHODApprove:
		return "OD approved", fmt.Sprintf("Your OD request for %s has been approved by the HOD.", event.EventName)
	case models.TransitionHODReject:
		return "OD rejected by HOD", withRemarks(fmt.Sprintf("Your OD request for %s was rejected by the HOD.", event.EventName), event.Remarks)
	default:
		return "OD update", fmt.Sprintf("Your OD request for %s is now %s.", event.EventName, event.Status)
	}
}

func withRemarks(message, remarks string) string {
	if remarks == "" {
		return message
	}
	return message + " Remarks: " + remarks
}
