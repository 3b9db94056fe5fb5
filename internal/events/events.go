// Package events publishes redemption lifecycle events for downstream
// consumers such as push delivery and analytics.
package events

import (
	"context"
	"time"

	"github.com/pointshare/redeem/internal/models"
)

const (
	TypeRequestAccepted  = "request.accepted"
	TypeRequestDeclined  = "request.declined"
	TypeRequestCompleted = "request.completed"
)

// Event is the JSON body published for each lifecycle transition.
type Event struct {
	Type              string                 `json:"type"`
	RequestID         string                 `json:"request_id"`
	RequesterID       string                 `json:"requester_id"`
	DonorID           string                 `json:"donor_id,omitempty"`
	PointsRequested   int                    `json:"points_requested"`
	FulfillmentMode   models.FulfillmentMode `json:"fulfillment_mode,omitempty"`
	TransferredPoints int                    `json:"transferred_points,omitempty"`
	CompletionTrigger string                 `json:"completion_trigger,omitempty"`
	OccurredAt        time.Time              `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
