// README: Booking (property stay) and ServiceBooking (add-on service) entities and their lifecycles.
package booking

import (
	"time"

	"staybook/internal/modules/payment"
	"staybook/internal/types"
)

type Status string

const (
	StatusNone           Status = "none"
	StatusPendingPayment Status = "pending_payment"
	StatusConfirmed      Status = "confirmed"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// AllowedTransitions holds the client/owner driven moves; the paid transition
// pending_payment -> confirmed goes through MarkPaid only.
var AllowedTransitions = map[Status][]Status{
	StatusPendingPayment: {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ServiceStatus is the lifecycle of one add-on service line.
type ServiceStatus string

const (
	ServicePending            ServiceStatus = "pending"
	ServiceAwaitingAssignment ServiceStatus = "awaiting_assignment"
	ServiceAssigned           ServiceStatus = "assigned"
	ServiceConfirmed          ServiceStatus = "confirmed"
	ServiceCompleted          ServiceStatus = "completed"
	ServiceCancelled          ServiceStatus = "cancelled"
)

// Bundle discount tiers, in whole percent of property plus services.
const (
	DiscountSmallBundle = 5
	DiscountLargeBundle = 10
	largeBundleSize     = 3
)

// DiscountPercent returns the bundle discount for n add-on services.
func DiscountPercent(n int) int64 {
	switch {
	case n >= largeBundleSize:
		return DiscountLargeBundle
	case n > 0:
		return DiscountSmallBundle
	}
	return 0
}

type Booking struct {
	ID                 types.ID             `json:"id"`
	BookingCode        string               `json:"booking_code"`
	ClientID           types.ID             `json:"client_id"`
	PropertyID         types.ID             `json:"property_id"`
	CheckIn            time.Time            `json:"check_in"`
	CheckOut           time.Time            `json:"check_out"`
	Guests             int                  `json:"guests"`
	PropertyTotal      types.Money          `json:"property_total"`
	ServicesTotal      types.Money          `json:"services_total"`
	DiscountAmount     types.Money          `json:"discount_amount"`
	TotalAmount        types.Money          `json:"total_amount"`
	Status             Status               `json:"status"`
	StatusVersion      int                  `json:"-"`
	PaymentStatus      payment.Status       `json:"payment_status"`
	RefundStatus       payment.RefundStatus `json:"refund_status"`
	PaymentIntentID    *string              `json:"payment_intent_id,omitempty"`
	RefundID           *string              `json:"refund_id,omitempty"`
	CancellationReason *string              `json:"cancellation_reason,omitempty"`
	ConfirmedAt        *time.Time           `json:"confirmed_at,omitempty"`
	CompletedAt        *time.Time           `json:"completed_at,omitempty"`
	CancelledAt        *time.Time           `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
	Services           []ServiceBooking     `json:"services"`
}

// Nights is the length of stay in whole days.
func (b *Booking) Nights() int {
	return nights(b.CheckIn, b.CheckOut)
}

func nights(in, out time.Time) int {
	return int(out.Sub(in).Hours() / 24)
}

type ServiceBooking struct {
	ID          types.ID      `json:"id"`
	BookingID   types.ID      `json:"booking_id"`
	CategoryID  string        `json:"category_id"`
	ProviderID  *types.ID     `json:"service_provider_id,omitempty"`
	ServiceName string        `json:"service_name"`
	ServiceDate time.Time     `json:"service_date"`
	Hours       int           `json:"hours"`
	Rate        types.Money   `json:"rate"`
	Total       types.Money   `json:"total"`
	Status      ServiceStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Offer is an unanswered job offer on one of the booking's add-ons.
type Offer struct {
	ServiceBookingID types.ID
	ProviderID       types.ID
}
