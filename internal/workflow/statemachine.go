package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/od-approval-api/internal/models"
	appErrors "github.com/noah-isme/od-approval-api/pkg/errors"
)

// Guard messages. They are surfaced to callers in INVALID_TRANSITION details.
const (
	GuardMustBePending          = "application must be pending"
	GuardFacultyAlreadyApproved = "faculty approval already recorded"
	GuardFacultyRequiredFirst   = "faculty approval required first"
	GuardHODAlreadyApproved     = "hod approval already recorded"
	GuardNotTerminal            = "application must not be in a terminal state"
	GuardAlreadySubmitted       = "application already submitted"
)

// Change describes the outcome of applying a transition.
type Change struct {
	Facts models.ApprovalFacts
	// Noop is set when the transition is legal but leaves the record untouched,
	// e.g. rejecting an application that is already rejected.
	Noop bool
}

// Status returns the status the record will have after the change.
func (c Change) Status() models.ApplicationStatus {
	return c.Facts.DeriveStatus()
}

// Guard checks whether transition t may be applied to app in its current state.
// It ignores the actor; authorization is the gate's concern.
func Guard(app *models.Application, t models.Transition) error {
	_, err := evaluate(app, t)
	return err
}

// Apply computes the approval facts produced by transition t. The input is never mutated.
func Apply(app *models.Application, t models.Transition, actor models.Actor, now time.Time, remarks string) (Change, error) {
	noop, err := evaluate(app, t)
	if err != nil {
		return Change{}, err
	}
	facts := app.ApprovalFacts
	if noop {
		return Change{Facts: facts, Noop: true}, nil
	}

	now = now.UTC()
	by := actor.ID
	note := optionalString(remarks)

	switch t {
	case models.TransitionFacultyApprove:
		facts.FacultyApproved = true
		facts.FacultyApprovedBy = &by
		facts.FacultyApprovedAt = &now
		facts.FacultyRemarks = note
	case models.TransitionFacultyReject:
		stage := models.StageFaculty
		facts.RejectedStage = &stage
		facts.RejectedBy = &by
		facts.RejectedAt = &now
		facts.FacultyRemarks = note
	case models.TransitionHODApprove:
		facts.HODApproved = true
		facts.HODApprovedBy = &by
		facts.HODApprovedAt = &now
		facts.HODRemarks = note
	case models.TransitionHODReject:
		stage := models.StageHOD
		facts.RejectedStage = &stage
		facts.RejectedBy = &by
		facts.RejectedAt = &now
		facts.HODRemarks = note
	case models.TransitionCancel:
		facts.CancelledAt = &now
	}
	return Change{Facts: facts}, nil
}

// rejectedAt reports whether the application is already rejected by the given tier.
// Only a repeat reject from that same tier is a noop.
func rejectedAt(facts models.ApprovalFacts, stage models.ReviewStage) bool {
	return facts.CancelledAt == nil && facts.RejectedStage != nil && *facts.RejectedStage == stage
}

// evaluate returns (noop, error) for t against the current facts of app.
func evaluate(app *models.Application, t models.Transition) (bool, error) {
	if app == nil {
		return false, appErrors.ErrNotFound
	}
	status := app.ApprovalFacts.DeriveStatus()
	facts := app.ApprovalFacts

	switch t {
	case models.TransitionSubmit:
		return false, invalid(status, t, GuardAlreadySubmitted)

	case models.TransitionFacultyApprove:
		if status != models.StatusPending {
			return false, invalid(status, t, GuardMustBePending)
		}
		if facts.FacultyApproved {
			return false, invalid(status, t, GuardFacultyAlreadyApproved)
		}

	case models.TransitionFacultyReject:
		if rejectedAt(facts, models.StageFaculty) {
			return true, nil
		}
		if status.Terminal() {
			return false, invalid(status, t, GuardNotTerminal)
		}
		if facts.FacultyApproved {
			return false, invalid(status, t, GuardFacultyAlreadyApproved)
		}

	case models.TransitionHODApprove:
		// The ordering rule is checked before anything else so it reports the same
		// reason from every state that lacks faculty approval.
		if !facts.FacultyApproved {
			return false, invalid(status, t, GuardFacultyRequiredFirst)
		}
		if status.Terminal() {
			return false, invalid(status, t, GuardNotTerminal)
		}
		if facts.HODApproved {
			return false, invalid(status, t, GuardHODAlreadyApproved)
		}

	case models.TransitionHODReject:
		if !facts.FacultyApproved {
			return false, invalid(status, t, GuardFacultyRequiredFirst)
		}
		if rejectedAt(facts, models.StageHOD) {
			return true, nil
		}
		if status.Terminal() {
			return false, invalid(status, t, GuardNotTerminal)
		}

	case models.TransitionCancel:
		if status != models.StatusPending {
			return false, invalid(status, t, GuardMustBePending)
		}

	default:
		return false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown transition %q", t))
	}
	return false, nil
}

func invalid(status models.ApplicationStatus, t models.Transition, guard string) *appErrors.Error {
	return appErrors.WithDetails(appErrors.ErrInvalidTransition,
		fmt.Sprintf("cannot %s a %s application: %s", t, status, guard),
		map[string]interface{}{
			"currentStatus": status,
			"transition":    t,
			"guard":         guard,
		})
}

func optionalString(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}
