package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := ParseDate(raw)
	require.NoError(t, err)
	return d
}

func approvedApp(t *testing.T, id, start, end string) Application {
	t.Helper()
	app := Application{
		ID:        id,
		Year:      3,
		Section:   "A",
		ODType:    ODTypeInternal,
		StartDate: day(t, start),
		EndDate:   day(t, end),
	}
	app.HODApproved = true
	app.FacultyApproved = true
	app.SyncStatus()
	return app
}

func TestRosterQueryDateContainment(t *testing.T) {
	q := RosterQuery{Date: day(t, "2025-10-16")}

	spanning := approvedApp(t, "a", "2025-10-15", "2025-10-17")
	later := approvedApp(t, "b", "2025-10-17", "2025-10-20")
	single := approvedApp(t, "c", "2025-10-16", "2025-10-16")
	endsOnDay := approvedApp(t, "d", "2025-10-10", "2025-10-16")

	require.True(t, q.Matches(&spanning))
	require.False(t, q.Matches(&later))
	require.True(t, q.Matches(&single))
	require.True(t, q.Matches(&endsOnDay))
}

func TestRosterQueryIgnoresClockAndZone(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	q := RosterQuery{Date: time.Date(2025, 10, 17, 23, 30, 0, 0, loc)}
	app := approvedApp(t, "a", "2025-10-15", "2025-10-17")
	require.True(t, q.Matches(&app))
}

func TestRosterQueryFiltersCombineWithAnd(t *testing.T) {
	year := 3
	base := approvedApp(t, "a", "2025-10-16", "2025-10-16")

	otherSection := base
	otherSection.ID = "b"
	otherSection.Section = "B"

	external := base
	external.ID = "c"
	external.ODType = ODTypeExternal

	pending := base
	pending.ID = "d"
	pending.HODApproved = false
	pending.SyncStatus()

	apps := []Application{base, otherSection, external, pending}

	q := RosterQuery{Date: day(t, "2025-10-16"), Year: &year, Section: "A", ODType: ODTypeInternal}
	got := SelectRoster(apps, q)
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].ID)

	all := SelectRoster(apps, RosterQuery{Date: day(t, "2025-10-16"), Status: RosterStatusAll, Section: "all"})
	require.Len(t, all, 4)

	onlyPending := SelectRoster(apps, RosterQuery{Date: day(t, "2025-10-16"), Status: "pending"})
	require.Len(t, onlyPending, 1)
	require.Equal(t, "d", onlyPending[0].ID)
}

func TestSortRosterBySubmissionThenID(t *testing.T) {
	ts := time.Date(2025, 9, 28, 10, 0, 0, 0, time.UTC)
	apps := []Application{
		{ID: "c", SubmittedAt: ts.Add(time.Hour)},
		{ID: "b", SubmittedAt: ts},
		{ID: "a", SubmittedAt: ts},
	}
	SortRoster(apps)
	require.Equal(t, []string{"a", "b", "c"}, []string{apps[0].ID, apps[1].ID, apps[2].ID})
}

func TestRosterCacheKeyNormalizes(t *testing.T) {
	a := RosterQuery{Date: time.Date(2025, 10, 16, 9, 0, 0, 0, time.UTC), Section: " A ", ODType: "INTERNAL"}
	b := RosterQuery{Date: day(t, "2025-10-16"), Section: "A", ODType: ODTypeInternal, Status: "approved"}
	require.Equal(t, a.CacheKey(), b.CacheKey())
	require.Equal(t, "roster:2025-10-16:all:A:internal:approved", a.CacheKey())
}
