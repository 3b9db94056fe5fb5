package models

import "time"

// Operation is one staged mutation in a unit of work. A unit of work applies
// its operations in order inside a single database transaction.
type Operation interface {
	operation()
}

// AdjustPoints adds Delta to a user's balance, creating a zero row first if
// needed. A delta that would drive the balance negative fails with
// ErrInsufficientBalance.
type AdjustPoints struct {
	UserID string
	Delta  int
}

// AcceptRequest moves a pending request to accepted. It fails with
// ErrConflict when the request is no longer pending.
type AcceptRequest struct {
	RequestID     string
	DonorID       string
	Mode          FulfillmentMode
	CodeIssuedAt  *time.Time
	CodeExpiresAt *time.Time
}

// DeclineRequest moves a pending request to declined. It fails with
// ErrConflict when the request is no longer pending.
type DeclineRequest struct {
	RequestID string
	DonorID   string
}

// CompleteRequest moves an accepted request to completed and freezes the
// code window at CompletedAt. It fails with ErrConflict when the request is
// no longer accepted.
type CompleteRequest struct {
	RequestID   string
	CompletedAt time.Time
	Trigger     string
}

// CreateNotification queues an in-app notification for UserID.
type CreateNotification struct {
	UserID  string
	Type    string
	Message string
}

func (AdjustPoints) operation()       {}
func (AcceptRequest) operation()      {}
func (DeclineRequest) operation()     {}
func (CompleteRequest) operation()    {}
func (CreateNotification) operation() {}
