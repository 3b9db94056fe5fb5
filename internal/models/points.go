package models

import "time"

// Points is a user's internal dining-points balance. Balance is never negative.
type Points struct {
	UserID    string
	Balance   int
	UpdatedAt time.Time
}
