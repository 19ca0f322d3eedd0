// README: Commission split and settlement ledger entries (frozen per-order amounts).
package ledger

import (
	"time"

	"staybook/internal/types"
)

// Split is the commission breakdown frozen on an order at creation.
type Split struct {
	Rate           types.Rate  `json:"platform_fee_percentage"`
	PlatformFee    types.Money `json:"platform_fee_amount"`
	ProviderAmount types.Money `json:"provider_amount"`
}

// Filter narrows the set of orders aggregated. Empty fields mean "any".
type Filter struct {
	From          *time.Time
	To            *time.Time
	ProviderID    types.ID
	Status        string
	PaymentStatus string
}

// Entry is one order's frozen settlement values.
type Entry struct {
	OrderID        types.ID    `json:"order_id"`
	OrderCode      string      `json:"order_code"`
	ProviderID     types.ID    `json:"service_provider_id"`
	ProviderName   string      `json:"provider_name"`
	Status         string      `json:"status"`
	PaymentStatus  string      `json:"payment_status"`
	Rate           types.Rate  `json:"platform_fee_percentage"`
	Total          types.Money `json:"total_amount"`
	PlatformFee    types.Money `json:"platform_fee_amount"`
	ProviderAmount types.Money `json:"provider_amount"`
	CreatedAt      time.Time   `json:"created_at"`
}

type ProviderTotals struct {
	ProviderID      types.ID    `json:"service_provider_id"`
	ProviderName    string      `json:"provider_name"`
	Orders          int         `json:"orders"`
	Gross           types.Money `json:"gross"`
	PlatformFees    types.Money `json:"platform_fees"`
	ProviderPayouts types.Money `json:"provider_payouts"`
}

type Summary struct {
	Orders          int              `json:"orders"`
	Gross           types.Money      `json:"gross"`
	PlatformFees    types.Money      `json:"platform_fees"`
	ProviderPayouts types.Money      `json:"provider_payouts"`
	ByProvider      []ProviderTotals `json:"by_provider"`
}
