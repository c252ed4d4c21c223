package dto

// SubmitApplicationRequest is the payload students send to file an OD request.
// Student identity fields default to the caller's token claims when omitted.
type SubmitApplicationRequest struct {
	StudentRegNo     string  `json:"studentRegNo" validate:"omitempty,max=32"`
	StudentName      string  `json:"studentName" validate:"omitempty,max=120"`
	Year             int     `json:"year" validate:"omitempty,min=1,max=10"`
	Section          string  `json:"section" validate:"omitempty,max=16"`
	Department       *string `json:"department" validate:"omitempty,max=120"`
	ODType           string  `json:"odType" validate:"required,od_type"`
	ClubName         *string `json:"clubName" validate:"omitempty,max=200"`
	CollegeName      *string `json:"collegeName" validate:"omitempty,max=200"`
	Role             string  `json:"role" validate:"required,max=120"`
	EventName        string  `json:"eventName" validate:"required,max=200"`
	EventDescription *string `json:"eventDescription" validate:"omitempty,max=2000"`
	StartDate        string  `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate          string  `json:"endDate" validate:"required,datetime=2006-01-02"`
}

// TransitionRequest applies one reviewer transition to a single application.
type TransitionRequest struct {
	Transition string `json:"transition" validate:"required,transition"`
	Remarks    string `json:"remarks" validate:"max=1000"`
}

// CancelRequest carries an optional reason for a student cancellation.
type CancelRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// BatchTransitionRequest applies one transition to many applications.
type BatchTransitionRequest struct {
	IDs        []string `json:"ids" validate:"required,min=1,dive,required"`
	Transition string   `json:"transition" validate:"required,transition"`
	Remarks    string   `json:"remarks" validate:"max=1000"`
}

// ListQuery is the pagination accepted by list endpoints.
type ListQuery struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

// Normalize clamps paging to sane bounds.
func (q ListQuery) Normalize() ListQuery {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}
	return q
}

// Offset returns the row offset for the page.
func (q ListQuery) Offset() int {
	n := q.Normalize()
	return (n.Page - 1) * n.PageSize
}
