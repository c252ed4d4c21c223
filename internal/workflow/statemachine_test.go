package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/od-approval-api/internal/models"
	appErrors "github.com/noah-isme/od-approval-api/pkg/errors"
)

var (
	student = models.Actor{ID: "stu-1", Role: models.RoleStudent, RegNo: "21CS001", Year: 3, Section: "A"}
	staff   = models.Actor{ID: "staff-1", Role: models.RoleStaff, StaffID: "ST01", Department: "CSE"}
	hod     = models.Actor{ID: "hod-1", Role: models.RoleHOD, StaffID: "HOD01", Department: "CSE"}
	clock   = time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
)

func strPtr(s string) *string { return &s }

func newDraft(t *testing.T) models.Application {
	t.Helper()
	start, err := models.ParseDate("2025-10-20")
	require.NoError(t, err)
	end, err := models.ParseDate("2025-10-22")
	require.NoError(t, err)
	return models.Application{
		StudentRegNo: "21CS001",
		StudentName:  "Asha",
		Year:         3,
		Section:      "A",
		ODType:       models.ODTypeInternal,
		ClubName:     strPtr("Coding Club"),
		Role:         "Participant",
		EventName:    "Hackathon",
		StartDate:    start,
		EndDate:      end,
	}
}

func submitted(t *testing.T) *models.Application {
	t.Helper()
	app, err := NewApplication(newDraft(t), student, clock)
	require.NoError(t, err)
	app.ID = "app-1"
	return app
}

// step applies a transition and folds the change back into app.
func step(t *testing.T, app *models.Application, tr models.Transition, actor models.Actor) error {
	t.Helper()
	change, err := Apply(app, tr, actor, clock, "")
	if err != nil {
		return err
	}
	app.ApprovalFacts = change.Facts
	app.SyncStatus()
	require.Equal(t, app.ApprovalFacts.DeriveStatus(), app.Status)
	return nil
}

func requireInvalid(t *testing.T, err error, guard string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, appErrors.ErrInvalidTransition), "got %v", err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, guard, appErr.Details["guard"])
	require.NotEmpty(t, appErr.Details["currentStatus"])
	require.NotEmpty(t, appErr.Details["transition"])
}

func TestFullApprovalScenario(t *testing.T) {
	app := submitted(t)
	require.Equal(t, models.StatusPending, app.Status)
	require.False(t, app.FacultyApproved)
	require.False(t, app.HODApproved)

	requireInvalid(t, step(t, app, models.TransitionHODApprove, hod), GuardFacultyRequiredFirst)

	require.NoError(t, step(t, app, models.TransitionFacultyApprove, staff))
	require.True(t, app.FacultyApproved)
	require.Equal(t, models.StatusPending, app.Status)
	require.Equal(t, "staff-1", *app.FacultyApprovedBy)
	require.NotNil(t, app.FacultyApprovedAt)

	require.NoError(t, step(t, app, models.TransitionHODApprove, hod))
	require.Equal(t, models.StatusApproved, app.Status)
	require.Equal(t, "hod-1", *app.HODApprovedBy)
}

func TestHODApproveRequiresFacultyFromEveryState(t *testing.T) {
	fresh := submitted(t)

	rejected := submitted(t)
	require.NoError(t, step(t, rejected, models.TransitionFacultyReject, staff))

	cancelled := submitted(t)
	require.NoError(t, step(t, cancelled, models.TransitionCancel, student))

	for _, app := range []*models.Application{fresh, rejected, cancelled} {
		for _, actor := range []models.Actor{student, staff, hod} {
			_, err := Apply(app, models.TransitionHODApprove, actor, clock, "")
			requireInvalid(t, err, GuardFacultyRequiredFirst)
		}
	}
}

func TestCancelOnlyWhilePending(t *testing.T) {
	pending := submitted(t)
	require.NoError(t, Guard(pending, models.TransitionCancel))

	facultyApproved := submitted(t)
	require.NoError(t, step(t, facultyApproved, models.TransitionFacultyApprove, staff))
	require.NoError(t, step(t, facultyApproved, models.TransitionCancel, student))
	require.Equal(t, models.StatusCancelled, facultyApproved.Status)

	approved := submitted(t)
	require.NoError(t, step(t, approved, models.TransitionFacultyApprove, staff))
	require.NoError(t, step(t, approved, models.TransitionHODApprove, hod))

	rejected := submitted(t)
	require.NoError(t, step(t, rejected, models.TransitionFacultyReject, staff))

	cancelled := submitted(t)
	require.NoError(t, step(t, cancelled, models.TransitionCancel, student))

	for _, app := range []*models.Application{approved, rejected, cancelled} {
		requireInvalid(t, Guard(app, models.TransitionCancel), GuardMustBePending)
	}
}

func TestRejectIsIdempotent(t *testing.T) {
	app := submitted(t)
	require.NoError(t, step(t, app, models.TransitionFacultyReject, staff))
	require.Equal(t, models.StatusRejected, app.Status)

	change, err := Apply(app, models.TransitionFacultyReject, staff, clock.Add(time.Hour), "again")
	require.NoError(t, err)
	require.True(t, change.Noop)
	require.Equal(t, app.ApprovalFacts, change.Facts)

	hodRejected := submitted(t)
	require.NoError(t, step(t, hodRejected, models.TransitionFacultyApprove, staff))
	require.NoError(t, step(t, hodRejected, models.TransitionHODReject, hod))

	change, err = Apply(hodRejected, models.TransitionHODReject, hod, clock.Add(time.Hour), "again")
	require.NoError(t, err)
	require.True(t, change.Noop)
	require.Equal(t, hodRejected.ApprovalFacts, change.Facts)
}

func TestRejectNoopOnlyForSameTier(t *testing.T) {
	facultyRejected := submitted(t)
	require.NoError(t, step(t, facultyRejected, models.TransitionFacultyReject, staff))
	requireInvalid(t, step(t, facultyRejected, models.TransitionHODReject, hod), GuardFacultyRequiredFirst)
	require.False(t, facultyRejected.FacultyApproved)

	hodRejected := submitted(t)
	require.NoError(t, step(t, hodRejected, models.TransitionFacultyApprove, staff))
	require.NoError(t, step(t, hodRejected, models.TransitionHODReject, hod))
	requireInvalid(t, step(t, hodRejected, models.TransitionFacultyReject, staff), GuardNotTerminal)
}

func TestFacultyGuards(t *testing.T) {
	app := submitted(t)
	require.NoError(t, step(t, app, models.TransitionFacultyApprove, staff))

	requireInvalid(t, step(t, app, models.TransitionFacultyApprove, staff), GuardFacultyAlreadyApproved)
	requireInvalid(t, step(t, app, models.TransitionFacultyReject, staff), GuardFacultyAlreadyApproved)

	cancelled := submitted(t)
	require.NoError(t, step(t, cancelled, models.TransitionCancel, student))
	requireInvalid(t, step(t, cancelled, models.TransitionFacultyReject, staff), GuardNotTerminal)
	requireInvalid(t, step(t, cancelled, models.TransitionFacultyApprove, staff), GuardMustBePending)
}

func TestHODRejectGuards(t *testing.T) {
	app := submitted(t)
	requireInvalid(t, step(t, app, models.TransitionHODReject, hod), GuardFacultyRequiredFirst)

	require.NoError(t, step(t, app, models.TransitionFacultyApprove, staff))
	change, err := Apply(app, models.TransitionHODReject, hod, clock, " not sanctioned ")
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, change.Status())
	require.Equal(t, models.StageHOD, *change.Facts.RejectedStage)
	require.Equal(t, "not sanctioned", *change.Facts.HODRemarks)

	approved := submitted(t)
	require.NoError(t, step(t, approved, models.TransitionFacultyApprove, staff))
	require.NoError(t, step(t, approved, models.TransitionHODApprove, hod))
	requireInvalid(t, step(t, approved, models.TransitionHODReject, hod), GuardNotTerminal)
	requireInvalid(t, step(t, approved, models.TransitionHODApprove, hod), GuardNotTerminal)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	app := submitted(t)
	before := app.ApprovalFacts
	_, err := Apply(app, models.TransitionFacultyApprove, staff, clock, "ok")
	require.NoError(t, err)
	require.Equal(t, before, app.ApprovalFacts)
}

func TestSubmitAndUnknownTransitions(t *testing.T) {
	app := submitted(t)
	requireInvalid(t, Guard(app, models.TransitionSubmit), GuardAlreadySubmitted)

	err := Guard(app, models.Transition("escalate"))
	require.True(t, errors.Is(err, appErrors.ErrValidation))
}
