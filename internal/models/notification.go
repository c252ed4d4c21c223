package models

import "time"

// NotificationEvent is the payload handed to the notification collaborator.
type NotificationEvent struct {
	Type          string            `json:"type"`
	ApplicationID string            `json:"applicationId"`
	Transition    Transition        `json:"transition"`
	Status        ApplicationStatus `json:"status"`
	ActorID       string            `json:"actorId"`
	ActorRole     UserRole          `json:"actorRole"`
	EventName     string            `json:"eventName"`
	Remarks       string            `json:"remarks,omitempty"`
	OccurredAt    time.Time         `json:"occurredAt"`
}

// Notification is an inbox entry for a user.
type Notification struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"userId"`
	ApplicationID *string   `db:"application_id" json:"applicationId,omitempty"`
	Type          string    `db:"type" json:"type"`
	Title         string    `db:"title" json:"title"`
	Message       string    `db:"message" json:"message"`
	IsRead        bool      `db:"is_read" json:"isRead"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// NotificationFilter scopes inbox listings.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Limit      int
	Offset     int
}
