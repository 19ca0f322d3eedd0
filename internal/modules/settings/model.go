// README: Platform settings (key/value/type); service_commission_rate drives commission.
package settings

import (
	"time"

	"staybook/internal/types"
)

const (
	KeyCommissionRate = "service_commission_rate"

	TypeDecimal = "decimal"
	TypeString  = "string"
	TypeBool    = "boolean"
)

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Type      string    `json:"type"`
	UpdatedBy *types.ID `json:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
