// README: Catalog entities: properties, service categories, provider profiles and their priced items.
package catalog

import (
	"time"

	"staybook/internal/types"
)

type Category struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	BaseRate types.Money `json:"base_rate"`
}

type Property struct {
	ID            types.ID    `json:"id"`
	OwnerID       types.ID    `json:"owner_id"`
	Title         string      `json:"title"`
	City          string      `json:"city"`
	Country       string      `json:"country"`
	PricePerNight types.Money `json:"price_per_night"`
	MaxGuests     int         `json:"max_guests"`
	IsActive      bool        `json:"is_active"`
	CreatedAt     time.Time   `json:"created_at"`
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type Provider struct {
	ID              types.ID       `json:"id"`
	UserID          types.ID       `json:"user_id"`
	CategoryID      string         `json:"category_id"`
	BusinessName    string         `json:"business_name"`
	Description     string         `json:"description"`
	City            string         `json:"city"`
	Country         string         `json:"country"`
	HourlyRate      types.Money    `json:"hourly_rate"`
	ApprovalStatus  ApprovalStatus `json:"approval_status"`
	IsActive        bool           `json:"is_active"`
	RejectionReason *string        `json:"rejection_reason,omitempty"`
	ApprovedBy      *types.ID      `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Bookable reports whether clients may order from this provider.
func (p *Provider) Bookable() bool {
	return p.ApprovalStatus == ApprovalApproved && p.IsActive
}

type ItemKind string

const (
	KindMenuItem ItemKind = "menu_item"
	KindTask     ItemKind = "task"
)

func (k ItemKind) Valid() bool { return k == KindMenuItem || k == KindTask }

// Item is a priced entry in a provider's catalog: a dish on a chef's menu or a
// fixed-price task for other categories.
type Item struct {
	ID         types.ID    `json:"id"`
	ProviderID types.ID    `json:"provider_id"`
	Kind       ItemKind    `json:"kind"`
	Name       string      `json:"name"`
	Price      types.Money `json:"price"`
	Available  bool        `json:"available"`
	CreatedAt  time.Time   `json:"created_at"`
}

type ApplicationInput struct {
	CategoryID   string
	BusinessName string
	Description  string
	City         string
	Country      string
	HourlyRate   types.Money
}

type PropertyInput struct {
	Title         string
	City          string
	Country       string
	PricePerNight types.Money
	MaxGuests     int
}
