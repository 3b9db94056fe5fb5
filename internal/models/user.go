package models

import "time"

// User is the profile side of an account. Identity itself is owned by the
// caller's bearer token; this row carries the donor preferences.
type User struct {
	ID                     string
	Email                  string
	Name                   string
	DefaultFulfillmentMode FulfillmentMode
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// DisplayName returns the name shown to other users in notifications.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// DonorProfile is what acceptance needs to know about a donor.
type DonorProfile struct {
	User   *User
	Linked bool
}
