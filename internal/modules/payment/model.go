// README: Payment gateway contract plus the payment/refund status axes shared by orders and bookings.
package payment

import (
	"context"

	"staybook/internal/types"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusFailed   Status = "failed"
	StatusRefunded Status = "refunded"
)

// RefundStatus makes the outcome of a fail-open refund observable on the entity.
type RefundStatus string

const (
	RefundNone RefundStatus = "none"
	// RefundRequested is set before the gateway call, so a charge.refunded notice racing
	// the local bookkeeping is recognised as ours.
	RefundRequested RefundStatus = "requested"
	RefundRefunded  RefundStatus = "refunded"
	RefundFailed    RefundStatus = "failed"
)

// Metadata keys tying a gateway intent back to a local row.
const (
	MetaOrderID   = "orderId"
	MetaBookingID = "bookingId"
)

const IntentSucceeded = "succeeded"

type Intent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Status       string            `json:"status"`
	Amount       types.Money       `json:"amount"`
	Currency     string            `json:"currency"`
	Metadata     map[string]string `json:"-"`
}

type EventType string

const (
	EventPaymentSucceeded EventType = "payment_intent.succeeded"
	EventPaymentFailed    EventType = "payment_intent.payment_failed"
	EventChargeRefunded   EventType = "charge.refunded"
)

// Event is a verified webhook event reduced to what reconciliation needs.
type Event struct {
	ID       string
	Type     EventType
	Intent   Intent
	RefundID string
}

type Gateway interface {
	CreateIntent(ctx context.Context, amount types.Money, currency string, metadata map[string]string) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
	Refund(ctx context.Context, intentID string) (string, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}
