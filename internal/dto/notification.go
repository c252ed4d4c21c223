package dto

// NotificationQuery filters the caller's inbox.
type NotificationQuery struct {
	UnreadOnly bool `form:"unread"`
	ListQuery
}

// UnreadCountResponse wraps the unread counter.
type UnreadCountResponse struct {
	Unread int `json:"unread"`
}

// MarkAllReadResponse reports how many notifications changed.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
