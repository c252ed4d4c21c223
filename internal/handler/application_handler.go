package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/od-approval-api/internal/dto"
	"github.com/noah-isme/od-approval-api/internal/models"
	appErrors "github.com/noah-isme/od-approval-api/pkg/errors"
	"github.com/noah-isme/od-approval-api/pkg/response"
)

type applicationService interface {
	Submit(ctx context.Context, actor models.Actor, req dto.SubmitApplicationRequest) (*models.Application, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Application, error)
	ListMine(ctx context.Context, actor models.Actor, query dto.ListQuery) ([]models.Application, *models.Pagination, error)
	Stats(ctx context.Context, actor models.Actor) (*models.StudentStats, error)
	PendingFaculty(ctx context.Context, actor models.Actor, query dto.ListQuery) ([]models.Application, error)
	PendingHOD(ctx context.Context, actor models.Actor, query dto.ListQuery) ([]models.Application, error)
	Cancel(ctx context.Context, actor models.Actor, id string, req dto.CancelRequest) (*models.Application, error)
	Transition(ctx context.Context, actor models.Actor, id string, req dto.TransitionRequest) (*models.Application, error)
	Batch(ctx context.Context, actor models.Actor, req dto.BatchTransitionRequest) (*models.BatchResult, error)
}

// ApplicationHandler exposes the OD application workflow.
type ApplicationHandler struct {
	service applicationService
}

// NewApplicationHandler builds the handler.
func NewApplicationHandler(service applicationService) *ApplicationHandler {
	return &ApplicationHandler{service: service}
}

// Submit godoc
// @Summary Submit an OD application
// @Tags OD Applications
// @Accept json
// @Produce json
// @Param payload body dto.SubmitApplicationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /od-applications [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	var req dto.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid od application payload"))
		return
	}
	app, err := h.service.Submit(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// Mine godoc
// @Summary List the caller's OD applications
// @Tags OD Applications
// @Produce json
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /od-applications/mine [get]
func (h *ApplicationHandler) Mine(c *gin.Context) {
	var query dto.ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid paging parameters"))
		return
	}
	apps, pagination, err := h.service.ListMine(c.Request.Context(), actorFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, pagination)
}

// Stats godoc
// @Summary Summarise the caller's OD applications by status
// @Tags OD Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /od-applications/stats [get]
func (h *ApplicationHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// PendingFaculty godoc
// @Summary Applications awaiting faculty review
// @Tags OD Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /od-applications/pending/faculty [get]
func (h *ApplicationHandler) PendingFaculty(c *gin.Context) {
	h.pending(c, h.service.PendingFaculty)
}

// PendingHOD godoc
// @Summary Applications awaiting HOD review
// @Tags OD Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /od-applications/pending/hod [get]
func (h *ApplicationHandler) PendingHOD(c *gin.Context) {
	h.pending(c, h.service.PendingHOD)
}

func (h *ApplicationHandler) pending(c *gin.Context, list func(context.Context, models.Actor, dto.ListQuery) ([]models.Application, error)) {
	var query dto.ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid paging parameters"))
		return
	}
	apps, err := list(c.Request.Context(), actorFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, nil)
}

// Get godoc
// @Summary Get an OD application
// @Tags OD Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /od-applications/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	app, err := h.service.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Cancel godoc
// @Summary Cancel a pending OD application
// @Tags OD Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.CancelRequest false "Cancellation reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /od-applications/{id}/cancel [post]
func (h *ApplicationHandler) Cancel(c *gin.Context) {
	var req dto.CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cancel payload"))
			return
		}
	}
	app, err := h.service.Cancel(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Transition godoc
// @Summary Apply a reviewer transition
// @Tags OD Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.TransitionRequest true "Transition"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /od-applications/{id}/transitions [post]
func (h *ApplicationHandler) Transition(c *gin.Context) {
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transition payload"))
		return
	}
	app, err := h.service.Transition(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Batch godoc
// @Summary Apply one transition to many applications
// @Description Each id succeeds or fails independently; the response lists per-id outcomes in request order.
// @Tags OD Applications
// @Accept json
// @Produce json
// @Param payload body dto.BatchTransitionRequest true "Batch"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /od-applications/batch [post]
func (h *ApplicationHandler) Batch(c *gin.Context) {
	var req dto.BatchTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}
	result, err := h.service.Batch(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, map[string]interface{}{
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	})
}
