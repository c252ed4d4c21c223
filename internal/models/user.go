package models

// UserRole identifies the workflow role supplied by the identity provider.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleStaff   UserRole = "staff"
	RoleHOD     UserRole = "hod"
)

// Valid reports whether the role is known.
func (r UserRole) Valid() bool {
	return r == RoleStudent || r == RoleStaff || r == RoleHOD
}

// Actor is the caller of a workflow operation. It is never persisted by this service.
type Actor struct {
	ID         string   `json:"id"`
	Role       UserRole `json:"role"`
	Name       string   `json:"name"`
	RegNo      string   `json:"regNo,omitempty"`
	StaffID    string   `json:"staffId,omitempty"`
	Year       int      `json:"year,omitempty"`
	Section    string   `json:"section,omitempty"`
	Department string   `json:"department,omitempty"`
}

// Reference returns the institutional reference for audit trails: reg no for students, staff id otherwise.
func (a Actor) Reference() string {
	if a.Role == RoleStudent && a.RegNo != "" {
		return a.RegNo
	}
	if a.StaffID != "" {
		return a.StaffID
	}
	return a.ID
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
