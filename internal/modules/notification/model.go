// README: Notification records emitted on every lifecycle transition.
package notification

import (
	"time"

	"staybook/internal/types"
)

type Type string

const (
	TypeBookingCreated       Type = "booking_created"
	TypeBookingConfirmed     Type = "booking_confirmed"
	TypeBookingCancelled     Type = "booking_cancelled"
	TypeBookingCompleted     Type = "booking_completed"
	TypeBookingStatusChanged Type = "booking_status_changed"
	TypeOrderCreated         Type = "order_created"
	TypeOrderConfirmed       Type = "order_confirmed"
	TypeOrderAccepted        Type = "order_accepted"
	TypeOrderRejected        Type = "order_rejected"
	TypeOrderCancelled       Type = "order_cancelled"
	TypeOrderStarted         Type = "order_started"
	TypeOrderCompleted       Type = "order_completed"
	TypeOrderStatusChanged   Type = "order_status_changed"
	TypePaymentFailed        Type = "payment_failed"
	TypePaymentRefunded      Type = "payment_refunded"
	TypeJobAssigned          Type = "job_assigned"
	TypeJobAccepted          Type = "job_accepted"
	TypeJobRejected          Type = "job_rejected"
	TypeJobCancelled         Type = "job_cancelled"
	TypeApplicationApproved  Type = "application_approved"
	TypeApplicationRejected  Type = "application_rejected"
	TypeAccountApproved      Type = "account_approved"
	TypeAccountRejected      Type = "account_rejected"
	TypeRoleChanged          Type = "role_changed"
)

// Message is what producers hand to the sink.
type Message struct {
	UserID    types.ID
	Type      Type
	Title     string
	Body      string
	RelatedID types.ID
}

type Notification struct {
	ID        types.ID  `json:"id"`
	UserID    types.ID  `json:"user_id"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	RelatedID *types.ID `json:"related_id,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
