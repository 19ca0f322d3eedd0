// README: ServiceOrder aggregate and status definitions.
package order

import (
	"time"

	"staybook/internal/modules/catalog"
	"staybook/internal/modules/payment"
	"staybook/internal/types"
)

type Status string

const (
	StatusNone              Status = "none"
	StatusPendingPayment    Status = "pending_payment"
	StatusConfirmed         Status = "confirmed"
	StatusPendingAcceptance Status = "pending_acceptance"
	StatusAccepted          Status = "accepted"
	StatusInProgress        Status = "in_progress"
	StatusCompleted         Status = "completed"
	StatusRejected          Status = "rejected"
	StatusCancelled         Status = "cancelled"
)

var knownStatuses = map[Status]bool{
	StatusPendingPayment: true, StatusConfirmed: true, StatusPendingAcceptance: true,
	StatusAccepted: true, StatusInProgress: true, StatusCompleted: true,
	StatusRejected: true, StatusCancelled: true,
}

func (s Status) Valid() bool { return knownStatuses[s] }

// TaxPercent is the flat tax applied to every service order subtotal.
const TaxPercent = 10

type Order struct {
	ID                    types.ID             `json:"id"`
	OrderCode             string               `json:"order_code"`
	ClientID              types.ID             `json:"client_id"`
	ProviderID            types.ID             `json:"service_provider_id"`
	BookingID             *types.ID            `json:"booking_id,omitempty"`
	ServiceDate           time.Time            `json:"service_date"`
	StartTime             string               `json:"start_time"`
	EndTime               string               `json:"end_time"`
	Subtotal              types.Money          `json:"subtotal"`
	TaxAmount             types.Money          `json:"tax_amount"`
	TotalAmount           types.Money          `json:"total_amount"`
	PlatformFeePercentage types.Rate           `json:"platform_fee_percentage"`
	PlatformFeeAmount     types.Money          `json:"platform_fee_amount"`
	ProviderAmount        types.Money          `json:"provider_amount"`
	Status                Status               `json:"status"`
	StatusVersion         int                  `json:"-"`
	PaymentStatus         payment.Status       `json:"payment_status"`
	RefundStatus          payment.RefundStatus `json:"refund_status"`
	PaymentIntentID       *string              `json:"payment_intent_id,omitempty"`
	StripeRefundID        *string              `json:"stripe_refund_id,omitempty"`
	RejectionReason       *string              `json:"rejection_reason,omitempty"`
	CancellationReason    *string              `json:"cancellation_reason,omitempty"`
	ProviderNotes         *string              `json:"provider_notes,omitempty"`
	Notes                 string               `json:"notes"`
	AcceptedAt            *time.Time           `json:"accepted_at,omitempty"`
	StartedAt             *time.Time           `json:"started_at,omitempty"`
	CompletedAt           *time.Time           `json:"completed_at,omitempty"`
	CancelledAt           *time.Time           `json:"cancelled_at,omitempty"`
	CreatedAt             time.Time            `json:"created_at"`
	UpdatedAt             time.Time            `json:"updated_at"`
	Items                 []Item               `json:"items"`
}

// Item is a line priced from the provider's catalog at creation time.
type Item struct {
	ID        types.ID         `json:"id"`
	OrderID   types.ID         `json:"order_id"`
	Type      catalog.ItemKind `json:"item_type"`
	RefID     types.ID         `json:"ref_id"`
	Name      string           `json:"name"`
	UnitPrice types.Money      `json:"unit_price"`
	Quantity  int              `json:"quantity"`
	LineTotal types.Money      `json:"line_total"`
}

// AllowedTransitions represents the service order flow as code. pending_acceptance is a
// legacy state that may still be rejected or cancelled; only confirmed can be accepted.
// Overrides bypass this table.
var AllowedTransitions = map[Status][]Status{
	StatusPendingPayment:    {StatusConfirmed},
	StatusConfirmed:         {StatusAccepted, StatusRejected, StatusCancelled},
	StatusPendingAcceptance: {StatusRejected, StatusCancelled},
	StatusAccepted:          {StatusInProgress, StatusCompleted},
	StatusInProgress:        {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
