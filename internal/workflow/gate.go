package workflow

import (
	"fmt"

	"github.com/noah-isme/od-approval-api/internal/models"
	appErrors "github.com/noah-isme/od-approval-api/pkg/errors"
)

var requiredRole = map[models.Transition]models.UserRole{
	models.TransitionSubmit:         models.RoleStudent,
	models.TransitionCancel:         models.RoleStudent,
	models.TransitionFacultyApprove: models.RoleStaff,
	models.TransitionFacultyReject:  models.RoleStaff,
	models.TransitionHODApprove:     models.RoleHOD,
	models.TransitionHODReject:      models.RoleHOD,
}

// CanPerform reports whether actor may invoke t on app. app may be nil for submit.
func CanPerform(actor models.Actor, t models.Transition, app *models.Application) bool {
	return reason(actor, t, app) == ""
}

// Authorize is CanPerform returning a FORBIDDEN error that explains the refusal.
func Authorize(actor models.Actor, t models.Transition, app *models.Application) error {
	if why := reason(actor, t, app); why != "" {
		return appErrors.WithDetails(appErrors.ErrForbidden, why, map[string]interface{}{
			"transition": t,
			"role":       actor.Role,
		})
	}
	return nil
}

func reason(actor models.Actor, t models.Transition, app *models.Application) string {
	if actor.ID == "" || !actor.Role.Valid() {
		return "actor identity is required"
	}
	role, ok := requiredRole[t]
	if !ok {
		return fmt.Sprintf("unknown transition %q", t)
	}
	if actor.Role != role {
		return fmt.Sprintf("%s requires role %s", t, role)
	}
	if t == models.TransitionSubmit {
		return ""
	}
	if app == nil {
		return "application is required"
	}
	switch {
	case t == models.TransitionCancel && app.StudentID != actor.ID:
		return "students may only cancel their own applications"
	case t.Reviewer() && app.StudentID == actor.ID:
		return "reviewers may not act on their own submission"
	}
	return ""
}
