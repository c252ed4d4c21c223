package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/od-approval-api/internal/dto"
	"github.com/noah-isme/od-approval-api/internal/models"
	appErrors "github.com/noah-isme/od-approval-api/pkg/errors"
)

type notificationServiceStub struct {
	items     []models.Notification
	unread    int
	updated   int64
	markErr   error
	lastQuery dto.NotificationQuery
	lastActor models.Actor
	lastID    string
}

func (s *notificationServiceStub) List(ctx context.Context, actor models.Actor, query dto.NotificationQuery) ([]models.Notification, error) {
	s.lastActor, s.lastQuery = actor, query
	return s.items, nil
}

func (s *notificationServiceStub) UnreadCount(ctx context.Context, actor models.Actor) (int, error) {
	s.lastActor = actor
	return s.unread, nil
}

func (s *notificationServiceStub) MarkRead(ctx context.Context, actor models.Actor, id string) error {
	s.lastActor, s.lastID = actor, id
	return s.markErr
}

func (s *notificationServiceStub) MarkAllRead(ctx context.Context, actor models.Actor) (int64, error) {
	s.lastActor = actor
	return s.updated, nil
}

func notificationRoutes(svc *notificationServiceStub) http.Handler {
	h := NewNotificationHandler(svc)
	r := newRouter(studentClaims)
	r.GET("/notifications", h.List)
	r.GET("/notifications/unread-count", h.UnreadCount)
	r.POST("/notifications/read-all", h.MarkAllRead)
	r.POST("/notifications/:id/read", h.MarkRead)
	return r
}

func TestNotificationHandlerListUnreadOnly(t *testing.T) {
	svc := &notificationServiceStub{items: []models.Notification{{ID: "n-1", Title: "OD approved by faculty"}}}
	r := notificationRoutes(svc)

	w := perform(t, r, http.MethodGet, "/notifications?unread=true", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.lastQuery.UnreadOnly)
	assert.Equal(t, "stu-1", svc.lastActor.ID)

	var items []models.Notification
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "n-1", items[0].ID)
}

func TestNotificationHandlerUnreadCount(t *testing.T) {
	svc := &notificationServiceStub{unread: 3}
	r := notificationRoutes(svc)

	w := perform(t, r, http.MethodGet, "/notifications/unread-count", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var payload dto.UnreadCountResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &payload))
	assert.Equal(t, 3, payload.Unread)
}

func TestNotificationHandlerMarkRead(t *testing.T) {
	svc := &notificationServiceStub{}
	r := notificationRoutes(svc)

	w := perform(t, r, http.MethodPost, "/notifications/n-9/read", nil)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "n-9", svc.lastID)
}

func TestNotificationHandlerMarkReadNotFound(t *testing.T) {
	svc := &notificationServiceStub{markErr: appErrors.Clone(appErrors.ErrNotFound, "notification not found")}
	r := notificationRoutes(svc)

	w := perform(t, r, http.MethodPost, "/notifications/n-9/read", nil)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotificationHandlerMarkAllRead(t *testing.T) {
	svc := &notificationServiceStub{updated: 4}
	r := notificationRoutes(svc)

	w := perform(t, r, http.MethodPost, "/notifications/read-all", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var payload dto.MarkAllReadResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &payload))
	assert.EqualValues(t, 4, payload.Updated)
}
