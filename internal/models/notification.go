package models

import "time"

const (
	NotificationRequestAccepted  = "request_accepted"
	NotificationRequestDeclined  = "request_declined"
	NotificationRequestCompleted = "request_completed"
)

type Notification struct {
	ID        string
	UserID    string
	Type      string
	Message   string
	Read      bool
	CreatedAt time.Time
}
