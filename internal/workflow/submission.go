package workflow

import (
	"strings"
	"time"

	"github.com/noah-isme/od-approval-api/internal/models"
	appErrors "github.com/noah-isme/od-approval-api/pkg/errors"
)

// ValidateDraft enforces the invariants a new application must satisfy.
func ValidateDraft(draft *models.Application) error {
	if draft == nil {
		return appErrors.Clone(appErrors.ErrValidation, "application is required")
	}
	required := map[string]string{
		"studentId":    draft.StudentID,
		"studentRegNo": draft.StudentRegNo,
		"studentName":  draft.StudentName,
		"section":      draft.Section,
		"role":         draft.Role,
		"eventName":    draft.EventName,
	}
	for _, field := range []string{"studentId", "studentRegNo", "studentName", "section", "role", "eventName"} {
		if strings.TrimSpace(required[field]) == "" {
			return validation(field + " is required")
		}
	}
	if draft.Year <= 0 {
		return validation("year must be a positive integer")
	}
	if draft.StartDate.IsZero() || draft.EndDate.IsZero() {
		return validation("startDate and endDate are required")
	}
	if models.CalendarDate(draft.EndDate).Before(models.CalendarDate(draft.StartDate)) {
		return validation("endDate must not be before startDate")
	}

	club := trimmed(draft.ClubName)
	college := trimmed(draft.CollegeName)
	switch draft.ODType {
	case models.ODTypeInternal:
		if club == "" {
			return validation("clubName is required for internal OD")
		}
		if college != "" {
			return validation("collegeName must be empty for internal OD")
		}
	case models.ODTypeExternal:
		if college == "" {
			return validation("collegeName is required for external OD")
		}
		if club != "" {
			return validation("clubName must be empty for external OD")
		}
	default:
		return validation("odType must be internal or external")
	}
	return nil
}

// NewApplication validates draft and returns the record to persist: pending, both
// approval flags false, dates truncated to calendar days.
func NewApplication(draft models.Application, actor models.Actor, now time.Time) (*models.Application, error) {
	if err := Authorize(actor, models.TransitionSubmit, nil); err != nil {
		return nil, err
	}
	draft.StudentID = actor.ID
	if err := ValidateDraft(&draft); err != nil {
		return nil, err
	}
	app := draft
	app.ID = ""
	app.ApprovalFacts = models.ApprovalFacts{}
	app.StartDate = models.CalendarDate(draft.StartDate)
	app.EndDate = models.CalendarDate(draft.EndDate)
	app.Version = 1
	app.SubmittedAt = now.UTC()
	app.UpdatedAt = app.SubmittedAt
	app.SyncStatus()
	return &app, nil
}

func validation(message string) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrValidation, message)
}

func trimmed(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}
