package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by queries and exports.
const DateLayout = "2006-01-02"

// RosterStatusAll disables the status filter of a roster query.
const RosterStatusAll = "all"

// RosterQuery selects the applications active on a reference date.
type RosterQuery struct {
	Date    time.Time
	Year    *int
	Section string
	ODType  ODType
	// Status defaults to approved when empty; RosterStatusAll matches every status.
	Status string
}

// Normalize applies defaults and truncates the reference date to a calendar day.
func (q RosterQuery) Normalize() RosterQuery {
	q.Date = CalendarDate(q.Date)
	q.Section = strings.TrimSpace(q.Section)
	q.ODType = ODType(strings.ToLower(strings.TrimSpace(string(q.ODType))))
	q.Status = strings.ToLower(strings.TrimSpace(q.Status))
	if q.Status == "" {
		q.Status = string(StatusApproved)
	}
	if q.Section == RosterStatusAll {
		q.Section = ""
	}
	if q.ODType == RosterStatusAll {
		q.ODType = ""
	}
	return q
}

// StatusFilter returns the status constraint, or nil when every status matches.
func (q RosterQuery) StatusFilter() *ApplicationStatus {
	if q.Status == RosterStatusAll {
		return nil
	}
	status := ApplicationStatus(q.Status)
	if q.Status == "" {
		status = StatusApproved
	}
	return &status
}

// Matches reports whether app falls on the reference date and satisfies every filter.
func (q RosterQuery) Matches(app *Application) bool {
	if app == nil {
		return false
	}
	day := CalendarDate(q.Date)
	if day.Before(CalendarDate(app.StartDate)) || day.After(CalendarDate(app.EndDate)) {
		return false
	}
	if q.Year != nil && app.Year != *q.Year {
		return false
	}
	if q.Section != "" && app.Section != q.Section {
		return false
	}
	if q.ODType != "" && app.ODType != q.ODType {
		return false
	}
	if status := q.StatusFilter(); status != nil && app.ApprovalFacts.DeriveStatus() != *status {
		return false
	}
	return true
}

// CacheKey is a stable identifier for the normalized query.
func (q RosterQuery) CacheKey() string {
	n := q.Normalize()
	year := "all"
	if n.Year != nil {
		year = strconv.Itoa(*n.Year)
	}
	section := n.Section
	if section == "" {
		section = "all"
	}
	odType := string(n.ODType)
	if odType == "" {
		odType = "all"
	}
	return fmt.Sprintf("roster:%s:%s:%s:%s:%s", n.Date.Format(DateLayout), year, section, odType, n.Status)
}

// SelectRoster filters apps with q and returns them in roster order.
func SelectRoster(apps []Application, q RosterQuery) []Application {
	q = q.Normalize()
	result := make([]Application, 0, len(apps))
	for i := range apps {
		if q.Matches(&apps[i]) {
			result = append(result, apps[i])
		}
	}
	SortRoster(result)
	return result
}

// SortRoster orders by submission time ascending with ties broken by id.
func SortRoster(apps []Application) {
	sort.SliceStable(apps, func(i, j int) bool {
		if !apps[i].SubmittedAt.Equal(apps[j].SubmittedAt) {
			return apps[i].SubmittedAt.Before(apps[j].SubmittedAt)
		}
		return apps[i].ID < apps[j].ID
	})
}

// CalendarDate strips the clock, keeping the calendar day as seen in t's location.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(raw string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(raw))
}
