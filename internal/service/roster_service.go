package service

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/od-approval-api/internal/dto"
	"github.com/noah-isme/od-approval-api/internal/models"
	appErrors "github.com/noah-isme/od-approval-api/pkg/errors"
	"github.com/noah-isme/od-approval-api/pkg/export"
)

// RosterHeaders is the fixed column order of roster exports.
var RosterHeaders = []string{"Reg No", "Name", "Year", "Section", "OD Type", "Club/College", "Event", "Role", "Start Date", "End Date", "Status"}

// Export formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

type rosterStore interface {
	Query(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error)
}

type rosterCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ExportFile is a rendered roster document.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// RosterService answers "who is on duty on date X".
type RosterService struct {
	store     rosterStore
	cache     rosterCache
	cacheTTL  time.Duration
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewRosterService constructs the roster engine. cache may be nil.
func NewRosterService(store rosterStore, cache rosterCache, cacheTTL time.Duration, metrics *MetricsService, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{
		store:     store,
		cache:     cache,
		cacheTTL:  cacheTTL,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: dto.NewValidator(),
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// ParseQuery validates request parameters. A missing date means today.
func (s *RosterService) ParseQuery(params dto.RosterQueryParams) (models.RosterQuery, error) {
	if err := s.validator.Struct(params); err != nil {
		return models.RosterQuery{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster query")
	}
	year, err := parseRosterYear(params.Year)
	if err != nil {
		return models.RosterQuery{}, err
	}
	q := models.RosterQuery{
		Year:    year,
		Section: params.Section,
		ODType:  models.ODType(params.ODType),
		Status:  params.Status,
		Date:    s.now(),
	}
	if strings.TrimSpace(params.Date) != "" {
		date, err := models.ParseDate(params.Date)
		if err != nil {
			return models.RosterQuery{}, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
		}
		q.Date = date
	}
	return q.Normalize(), nil
}

// parseRosterYear accepts a positive year, or "all" and empty for no year filter.
func parseRosterYear(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "all") {
		return nil, nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1 {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "year must be a positive number or all", map[string]interface{}{"year": raw})
	}
	return &year, nil
}

// Query returns the applications active on q.Date that satisfy every filter, in roster order.
func (s *RosterService) Query(ctx context.Context, q models.RosterQuery) ([]models.Application, error) {
	q = q.Normalize()
	key := q.CacheKey()

	if s.cache != nil {
		var cached []models.Application
		hit, err := s.cache.Get(ctx, key, &cached)
		if err == nil && hit {
			for i := range cached {
				cached[i].SyncStatus()
			}
			return cached, nil
		}
	}

	filter := models.ApplicationFilter{
		ActiveOn: &q.Date,
		Year:     q.Year,
		Section:  q.Section,
		ODType:   q.ODType,
	}
	if status := q.StatusFilter(); status != nil {
		filter.Statuses = []models.ApplicationStatus{*status}
	}
	apps, err := s.store.Query(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query roster")
	}
	roster := models.SelectRoster(apps, q)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, roster, s.cacheTTL); err != nil {
			s.logger.Debug("roster cache write skipped", zap.String("key", key), zap.Error(err))
		}
	}
	return roster, nil
}

// Export renders the roster for q in format (csv or pdf).
func (s *RosterService) Export(ctx context.Context, q models.RosterQuery, format string) (*ExportFile, error) {
	q = q.Normalize()
	if format == "" {
		format = FormatCSV
	}
	apps, err := s.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	data := RosterDataset(apps)
	day := q.Date.Format(models.DateLayout)
	base := fmt.Sprintf("od-%s-%s", exportLabel(q), day)

	buf := &bytes.Buffer{}
	file := &ExportFile{Rows: len(apps)}
	switch format {
	case FormatCSV:
		err = s.csv.Write(buf, data)
		file.Filename = base + ".csv"
		file.ContentType = "text/csv; charset=utf-8"
	case FormatPDF:
		err = s.pdf.Write(buf, data, "On-Duty Roster", fmt.Sprintf("%s (%d records)", day, len(apps)))
		file.Filename = base + ".pdf"
		file.ContentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster export")
	}
	file.Body = buf.Bytes()
	s.metrics.RecordExport(format)
	return file, nil
}

// RosterDataset maps applications to export rows in the given order.
func RosterDataset(apps []models.Application) export.Dataset {
	rows := make([][]string, 0, len(apps))
	for i := range apps {
		app := &apps[i]
		rows = append(rows, []string{
			app.StudentRegNo,
			app.StudentName,
			strconv.Itoa(app.Year),
			app.Section,
			string(app.ODType),
			app.Venue(),
			app.EventName,
			app.Role,
			app.StartDate.Format(models.DateLayout),
			app.EndDate.Format(models.DateLayout),
			string(app.ApprovalFacts.DeriveStatus()),
		})
	}
	return export.Dataset{Headers: RosterHeaders, Rows: rows}
}

func exportLabel(q models.RosterQuery) string {
	if q.Status == models.RosterStatusAll {
		return "all"
	}
	return q.Status
}
