package dto

// RosterQueryParams mirrors the roster query string.
type RosterQueryParams struct {
	Date    string `form:"date" validate:"omitempty,datetime=2006-01-02"`
	Year    string `form:"year" validate:"omitempty,max=8"`
	Section string `form:"section" validate:"omitempty,max=16"`
	ODType  string `form:"odType" validate:"omitempty,oneof=internal external all"`
	Status  string `form:"status" validate:"omitempty,oneof=pending approved rejected cancelled all"`
	Format  string `form:"format" validate:"omitempty,oneof=csv pdf"`
}

// RosterResponse is the roster payload.
type RosterResponse struct {
	Date    string      `json:"date"`
	Count   int         `json:"count"`
	Items   interface{} `json:"items"`
	Filters interface{} `json:"filters"`
}
