package models

import "time"

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAccepted  RequestStatus = "accepted"
	RequestDeclined  RequestStatus = "declined"
	RequestCompleted RequestStatus = "completed"
)

// CompletionFirstGetTransaction marks a request completed because the donor's
// GET ledger showed a transaction inside the code window.
const CompletionFirstGetTransaction = "first_get_transaction"

// Request is a help request for dining points.
//
// DonorID and FulfillmentMode are set together on acceptance. The code window
// fields are only populated for modes that issue a code, and are frozen once
// the request is completed.
type Request struct {
	ID                string
	RequesterID       string
	DonorID           *string
	PointsRequested   int
	Location          string
	Message           *string
	Status            RequestStatus
	FulfillmentMode   *FulfillmentMode
	CodeIssuedAt      *time.Time
	CodeExpiresAt     *time.Time
	CompletedAt       *time.Time
	CompletionTrigger *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Mode returns the effective fulfillment mode, or "" before acceptance.
func (r *Request) Mode() FulfillmentMode {
	if r.FulfillmentMode == nil {
		return ""
	}
	return *r.FulfillmentMode
}

// IsParticipant reports whether userID is the requester or the donor.
func (r *Request) IsParticipant(userID string) bool {
	if r.RequesterID == userID {
		return true
	}
	return r.DonorID != nil && *r.DonorID == userID
}

// RequestRole filters request listings relative to the caller.
type RequestRole string

const (
	RoleRequester RequestRole = "requester"
	RoleDonor     RequestRole = "donor"
	RoleOpen      RequestRole = "open"
)

func (r RequestRole) Valid() bool {
	return r == RoleRequester || r == RoleDonor || r == RoleOpen
}
