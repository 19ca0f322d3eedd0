// README: Job assignments pairing an add-on service booking with a candidate provider.
package assignment

import (
	"time"

	"staybook/internal/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Active reports whether the assignment still holds its service booking.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusAccepted
}

// AllowedTransitions: every outcome is terminal, accepted included.
var AllowedTransitions = map[Status][]Status{
	StatusPending: {StatusAccepted, StatusRejected, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Assignment struct {
	ID               types.ID   `json:"id"`
	ServiceBookingID types.ID   `json:"service_booking_id"`
	AssignedBy       types.ID   `json:"assigned_by"`
	ProviderID       types.ID   `json:"service_provider_id"`
	Status           Status     `json:"status"`
	RejectionReason  *string    `json:"rejection_reason,omitempty"`
	RespondedAt      *time.Time `json:"responded_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
