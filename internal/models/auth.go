package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the access token payload issued by the identity provider.
type JWTClaims struct {
	UserID     string   `json:"user_id"`
	Role       UserRole `json:"role"`
	Name       string   `json:"name"`
	RegNo      string   `json:"reg_no,omitempty"`
	StaffID    string   `json:"staff_id,omitempty"`
	Year       int      `json:"year,omitempty"`
	Section    string   `json:"section,omitempty"`
	Department string   `json:"department,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts verified claims into a workflow actor.
func (c *JWTClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{
		ID:         c.UserID,
		Role:       c.Role,
		Name:       c.Name,
		RegNo:      c.RegNo,
		StaffID:    c.StaffID,
		Year:       c.Year,
		Section:    c.Section,
		Department: c.Department,
	}
}
