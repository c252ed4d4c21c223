package models

import "time"

// ODType classifies an on-duty request by where the event takes place.
type ODType string

const (
	ODTypeInternal ODType = "internal"
	ODTypeExternal ODType = "external"
)

// Valid reports whether the type is supported.
func (t ODType) Valid() bool {
	return t == ODTypeInternal || t == ODTypeExternal
}

// ApplicationStatus is the derived lifecycle state of an OD application.
type ApplicationStatus string

const (
	StatusPending   ApplicationStatus = "pending"
	StatusApproved  ApplicationStatus = "approved"
	StatusRejected  ApplicationStatus = "rejected"
	StatusCancelled ApplicationStatus = "cancelled"
)

// Valid reports whether the status is one of the four lifecycle states.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further reviewer or student action is possible.
func (s ApplicationStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// ReviewStage names the reviewer tier that produced a decision.
type ReviewStage string

const (
	StageFaculty ReviewStage = "faculty"
	StageHOD     ReviewStage = "hod"
)

// ApprovalFacts are the only reviewer-mutable columns of an application.
type ApprovalFacts struct {
	FacultyApproved   bool         `db:"faculty_approved" json:"facultyApproved"`
	FacultyApprovedBy *string      `db:"faculty_approved_by" json:"facultyApprovedBy,omitempty"`
	FacultyApprovedAt *time.Time   `db:"faculty_approved_at" json:"facultyApprovedAt,omitempty"`
	FacultyRemarks    *string      `db:"faculty_remarks" json:"facultyRemarks,omitempty"`
	HODApproved       bool         `db:"hod_approved" json:"hodApproved"`
	HODApprovedBy     *string      `db:"hod_approved_by" json:"hodApprovedBy,omitempty"`
	HODApprovedAt     *time.Time   `db:"hod_approved_at" json:"hodApprovedAt,omitempty"`
	HODRemarks        *string      `db:"hod_remarks" json:"hodRemarks,omitempty"`
	RejectedStage     *ReviewStage `db:"rejected_stage" json:"rejectedStage,omitempty"`
	RejectedBy        *string      `db:"rejected_by" json:"rejectedBy,omitempty"`
	RejectedAt        *time.Time   `db:"rejected_at" json:"rejectedAt,omitempty"`
	CancelledAt       *time.Time   `db:"cancelled_at" json:"cancelledAt,omitempty"`
}

// DeriveStatus computes the lifecycle state. It is the single source of truth for status.
func (f ApprovalFacts) DeriveStatus() ApplicationStatus {
	switch {
	case f.CancelledAt != nil:
		return StatusCancelled
	case f.RejectedStage != nil:
		return StatusRejected
	case f.HODApproved:
		return StatusApproved
	default:
		return StatusPending
	}
}

// Application is a student's OD request.
type Application struct {
	ID               string    `db:"id" json:"id"`
	StudentID        string    `db:"student_id" json:"studentId"`
	StudentRegNo     string    `db:"student_reg_no" json:"studentRegNo"`
	StudentName      string    `db:"student_name" json:"studentName"`
	Year             int       `db:"year" json:"year"`
	Section          string    `db:"section" json:"section"`
	Department       *string   `db:"department" json:"department,omitempty"`
	ODType           ODType    `db:"od_type" json:"odType"`
	ClubName         *string   `db:"club_name" json:"clubName,omitempty"`
	CollegeName      *string   `db:"college_name" json:"collegeName,omitempty"`
	Role             string    `db:"role" json:"role"`
	EventName        string    `db:"event_name" json:"eventName"`
	EventDescription *string   `db:"event_description" json:"eventDescription,omitempty"`
	StartDate        time.Time `db:"start_date" json:"startDate"`
	EndDate          time.Time `db:"end_date" json:"endDate"`
	ApprovalFacts
	Status      ApplicationStatus `db:"-" json:"status"`
	Version     int               `db:"version" json:"version"`
	SubmittedAt time.Time         `db:"submitted_at" json:"submittedAt"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updatedAt"`
}

// SyncStatus recomputes Status from the approval facts. Call it after loading or mutating facts.
func (a *Application) SyncStatus() {
	a.Status = a.ApprovalFacts.DeriveStatus()
}

// Venue returns the club name for internal ODs and the college name for external ones.
func (a *Application) Venue() string {
	switch {
	case a.ODType == ODTypeInternal && a.ClubName != nil:
		return *a.ClubName
	case a.ODType == ODTypeExternal && a.CollegeName != nil:
		return *a.CollegeName
	default:
		return ""
	}
}

// ApplicationFilter constrains listing queries against the record store.
type ApplicationFilter struct {
	StudentID string
	// ExcludeStudentID drops one student's applications, applied before paging.
	ExcludeStudentID string
	Statuses         []ApplicationStatus
	FacultyApproved  *bool
	ActiveOn         *time.Time
	Year             *int
	Section          string
	ODType           ODType
	NewestFirst      bool
	Limit            int
	Offset           int
}

// StudentStats summarises a student's applications by status.
type StudentStats struct {
	Total     int `db:"total" json:"total"`
	Pending   int `db:"pending" json:"pending"`
	Approved  int `db:"approved" json:"approved"`
	Rejected  int `db:"rejected" json:"rejected"`
	Cancelled int `db:"cancelled" json:"cancelled"`
}
