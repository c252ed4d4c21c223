package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/od-approval-api/internal/dto"
	"github.com/noah-isme/od-approval-api/internal/models"
	"github.com/noah-isme/od-approval-api/internal/service"
	appErrors "github.com/noah-isme/od-approval-api/pkg/errors"
	"github.com/noah-isme/od-approval-api/pkg/response"
)

type rosterService interface {
	ParseQuery(params dto.RosterQueryParams) (models.RosterQuery, error)
	Query(ctx context.Context, q models.RosterQuery) ([]models.Application, error)
	Export(ctx context.Context, q models.RosterQuery, format string) (*service.ExportFile, error)
}

// RosterHandler serves the on-duty roster.
type RosterHandler struct {
	service rosterService
}

// NewRosterHandler builds the handler.
func NewRosterHandler(service rosterService) *RosterHandler {
	return &RosterHandler{service: service}
}

func (h *RosterHandler) parse(c *gin.Context) (dto.RosterQueryParams, models.RosterQuery, bool) {
	var params dto.RosterQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid roster query"))
		return params, models.RosterQuery{}, false
	}
	q, err := h.service.ParseQuery(params)
	if err != nil {
		response.Error(c, err)
		return params, models.RosterQuery{}, false
	}
	return params, q, true
}

// Roster godoc
// @Summary Students on OD for a date
// @Tags Roster
// @Produce json
// @Param date query string false "Reference date YYYY-MM-DD (defaults to today)"
// @Param year query string false "Year, or all"
// @Param section query string false "Section or all"
// @Param odType query string false "internal, external or all"
// @Param status query string false "Status filter (default approved, all disables)"
// @Success 200 {object} response.Envelope
// @Router /roster [get]
func (h *RosterHandler) Roster(c *gin.Context) {
	_, q, ok := h.parse(c)
	if !ok {
		return
	}
	apps, err := h.service.Query(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.RosterResponse{
		Date:    q.Date.Format(models.DateLayout),
		Count:   len(apps),
		Items:   apps,
		Filters: q,
	}, nil)
}

// Export godoc
// @Summary Export the roster as CSV or PDF
// @Tags Roster
// @Produce text/csv
// @Produce application/pdf
// @Param date query string false "Reference date YYYY-MM-DD"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /roster/export [get]
func (h *RosterHandler) Export(c *gin.Context) {
	params, q, ok := h.parse(c)
	if !ok {
		return
	}
	file, err := h.service.Export(c.Request.Context(), q, params.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
