package models

// Transition names a workflow action on an application.
type Transition string

const (
	TransitionSubmit         Transition = "submit"
	TransitionFacultyApprove Transition = "facultyApprove"
	TransitionFacultyReject  Transition = "facultyReject"
	TransitionHODApprove     Transition = "hodApprove"
	TransitionHODReject      Transition = "hodReject"
	TransitionCancel         Transition = "cancel"
)

// Valid reports whether the transition is known.
func (t Transition) Valid() bool {
	switch t {
	case TransitionSubmit, TransitionFacultyApprove, TransitionFacultyReject,
		TransitionHODApprove, TransitionHODReject, TransitionCancel:
		return true
	default:
		return false
	}
}

// Reviewer reports whether the transition is performed by a faculty or HOD reviewer.
func (t Transition) Reviewer() bool {
	switch t {
	case TransitionFacultyApprove, TransitionFacultyReject, TransitionHODApprove, TransitionHODReject:
		return true
	default:
		return false
	}
}

// BatchItemError is the per-item failure payload of a batch result.
type BatchItemError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// BatchItemResult is the outcome of one id within a batch.
type BatchItemResult struct {
	ID          string            `json:"id"`
	Success     bool              `json:"success"`
	Status      ApplicationStatus `json:"status,omitempty"`
	Application *Application      `json:"application,omitempty"`
	Error       *BatchItemError   `json:"error,omitempty"`
}

// BatchResult aggregates per-id outcomes in request order.
type BatchResult struct {
	Transition Transition        `json:"transition"`
	Items      []BatchItemResult `json:"items"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
}
