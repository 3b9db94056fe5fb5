package models

import "time"

// ScanState is the closed set of redemption states served to a requester.
// Exactly one of ActiveScan, CompletedScan or UnavailableScan is returned.
type ScanState interface {
	scanState()
}

type UnavailableReason string

const (
	ReasonNotAccepted   UnavailableReason = "not_accepted"
	ReasonNotCodeMode   UnavailableReason = "not_code_mode"
	ReasonDonorUnlinked UnavailableReason = "donor_unlinked"
)

type ActiveScan struct {
	Payload   string
	ExpiresAt time.Time
	Refresh   time.Duration
}

type CompletedScan struct {
	CompletedAt time.Time
}

type UnavailableScan struct {
	Reason UnavailableReason
}

func (ActiveScan) scanState()      {}
func (CompletedScan) scanState()   {}
func (UnavailableScan) scanState() {}

// AcceptResult is returned by a successful acceptance. DonorBalanceBefore is
// nil when no transfer took place.
type AcceptResult struct {
	Mode               FulfillmentMode
	TransferredPoints  int
	DonorBalanceBefore *int
}
