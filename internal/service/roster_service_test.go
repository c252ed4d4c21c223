package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/od-approval-api/internal/dto"
	"github.com/noah-isme/od-approval-api/internal/models"
	appErrors "github.com/noah-isme/od-approval-api/pkg/errors"
)

type mapCache struct {
	entries map[string][]models.Application
	sets    int
}

func (c *mapCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	value, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	*(dest.(*[]models.Application)) = append([]models.Application(nil), value...)
	return true, nil
}

func (c *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.entries[key] = value.([]models.Application)
	c.sets++
	return nil
}

func datedApp(id string, start, end string, submitted time.Time) models.Application {
	app := pendingApp(id, "stu-"+id)
	app.StartDate, _ = models.ParseDate(start)
	app.EndDate, _ = models.ParseDate(end)
	app.SubmittedAt = submitted
	app.FacultyApproved = true
	app.HODApproved = true
	app.SyncStatus()
	return app
}

func TestRosterMatchesClosedInterval(t *testing.T) {
	store := newMemoryStore(
		datedApp("a", "2025-10-15", "2025-10-17", testNow),
		datedApp("b", "2025-10-17", "2025-10-20", testNow),
	)
	svc := NewRosterService(store, nil, 0, nil, nil)
	date, _ := models.ParseDate("2025-10-16")

	roster, err := svc.Query(context.Background(), models.RosterQuery{Date: date})
	require.NoError(t, err)
	require.Len(t, roster, 1)
	require.Equal(t, "a", roster[0].ID)
	require.Equal(t, []models.ApplicationStatus{models.StatusApproved}, store.lastQuery.Statuses)
	require.Equal(t, date, *store.lastQuery.ActiveOn)
}

func TestRosterStatusAllAndOrdering(t *testing.T) {
	pending := pendingApp("p", "stu-p")
	pending.StartDate, _ = models.ParseDate("2025-10-16")
	pending.EndDate = pending.StartDate
	pending.SubmittedAt = testNow.Add(-time.Hour)
	store := newMemoryStore(
		datedApp("z", "2025-10-16", "2025-10-16", testNow),
		datedApp("y", "2025-10-16", "2025-10-16", testNow),
		pending,
	)
	svc := NewRosterService(store, nil, 0, nil, nil)
	date, _ := models.ParseDate("2025-10-16")

	roster, err := svc.Query(context.Background(), models.RosterQuery{Date: date, Status: "all"})
	require.NoError(t, err)
	require.Equal(t, []string{"p", "y", "z"}, []string{roster[0].ID, roster[1].ID, roster[2].ID})
	require.Empty(t, store.lastQuery.Statuses)
}

func TestRosterServedFromCache(t *testing.T) {
	store := newMemoryStore(datedApp("a", "2025-10-15", "2025-10-17", testNow))
	cache := &mapCache{entries: map[string][]models.Application{}}
	svc := NewRosterService(store, cache, time.Minute, nil, nil)
	q := models.RosterQuery{Date: time.Date(2025, 10, 16, 15, 30, 0, 0, time.UTC)}

	first, err := svc.Query(context.Background(), q)
	require.NoError(t, err)
	second, err := svc.Query(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, first[0].ID, second[0].ID)
	require.Equal(t, 1, store.queries)
	require.Equal(t, 1, cache.sets)
	require.Contains(t, cache.entries, "roster:2025-10-16:all:all:all:approved")
}

func TestRosterExportCSV(t *testing.T) {
	first := datedApp("a", "2025-10-15", "2025-10-17", testNow)
	first.StudentName = "Asha, K"
	second := datedApp("b", "2025-10-16", "2025-10-16", testNow.Add(time.Minute))
	second.ODType = models.ODTypeExternal
	second.ClubName = nil
	second.CollegeName = strPtr("IIT Madras")
	store := newMemoryStore(first, second, pendingApp("c", "stu-c"))
	metrics := NewMetricsService()
	svc := NewRosterService(store, nil, 0, metrics, nil)
	date, _ := models.ParseDate("2025-10-16")

	file, err := svc.Export(context.Background(), models.RosterQuery{Date: date}, FormatCSV)
	require.NoError(t, err)
	require.Equal(t, "od-approved-2025-10-16.csv", file.Filename)
	require.Equal(t, 2, file.Rows)

	lines := strings.Split(strings.TrimRight(string(file.Body), "\n"), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "Reg No,Name,Year,Section,OD Type,Club/College,Event,Role,Start Date,End Date,Status", lines[0])
	require.Equal(t, `REG-a,"Asha, K",3,A,internal,Coding Club,Hackathon,Participant,2025-10-15,2025-10-17,approved`, lines[1])
	require.Equal(t, "REG-b,Student b,3,A,external,IIT Madras,Hackathon,Participant,2025-10-16,2025-10-16,approved", lines[2])
}

func TestRosterExportPDFAndBadFormat(t *testing.T) {
	store := newMemoryStore(datedApp("a", "2025-10-15", "2025-10-17", testNow))
	svc := NewRosterService(store, nil, 0, nil, nil)
	date, _ := models.ParseDate("2025-10-16")

	file, err := svc.Export(context.Background(), models.RosterQuery{Date: date, Status: "all"}, FormatPDF)
	require.NoError(t, err)
	require.Equal(t, "od-all-2025-10-16.pdf", file.Filename)
	require.Equal(t, "application/pdf", file.ContentType)
	require.True(t, strings.HasPrefix(string(file.Body), "%PDF"))

	_, err = svc.Export(context.Background(), models.RosterQuery{Date: date}, "xlsx")
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRosterParseQuery(t *testing.T) {
	svc := NewRosterService(newMemoryStore(), nil, 0, nil, nil)
	svc.now = fixedClock

	q, err := svc.ParseQuery(dto.RosterQueryParams{})
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 10, 16, 0, 0, 0, 0, time.UTC), q.Date)
	require.Equal(t, "approved", q.Status)

	q, err = svc.ParseQuery(dto.RosterQueryParams{Date: "2025-11-01", Year: "3", Section: "all", ODType: "external", Status: "all"})
	require.NoError(t, err)
	require.NotNil(t, q.Year)
	require.Equal(t, 3, *q.Year)
	require.Equal(t, "", q.Section)
	require.Equal(t, models.ODTypeExternal, q.ODType)
	require.Nil(t, q.StatusFilter())

	_, err = svc.ParseQuery(dto.RosterQueryParams{Date: "16-10-2025"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.ParseQuery(dto.RosterQueryParams{Status: "done"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRosterParseQueryYear(t *testing.T) {
	svc := NewRosterService(newMemoryStore(), nil, 0, nil, nil)
	svc.now = fixedClock

	for _, raw := range []string{"", "all", "ALL", " all "} {
		q, err := svc.ParseQuery(dto.RosterQueryParams{Year: raw})
		require.NoError(t, err, raw)
		require.Nil(t, q.Year, raw)
	}

	for _, raw := range []string{"x", "0", "-2", "2.5"} {
		_, err := svc.ParseQuery(dto.RosterQueryParams{Year: raw})
		require.ErrorIs(t, err, appErrors.ErrValidation, raw)
	}
}
