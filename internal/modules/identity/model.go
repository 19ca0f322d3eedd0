// README: Users, roles and approval status; role changes go through admin fiat or a request.
package identity

import (
	"time"

	"staybook/internal/types"
)

type Role string

const (
	RoleAdmin            Role = "admin"
	RoleBilling          Role = "billing"
	RoleOperation        Role = "operation"
	RoleMarketing        Role = "marketing"
	RolePropertyOwner    Role = "property_owner"
	RoleServiceProvider  Role = "service_provider"
	RoleClient           Role = "client"
	RoleCountryManager   Role = "country_manager"
	RoleCityManager      Role = "city_manager"
	RoleOperationSupport Role = "operation_support"
)

var allRoles = map[Role]bool{
	RoleAdmin: true, RoleBilling: true, RoleOperation: true, RoleMarketing: true,
	RolePropertyOwner: true, RoleServiceProvider: true, RoleClient: true,
	RoleCountryManager: true, RoleCityManager: true, RoleOperationSupport: true,
}

func (r Role) Valid() bool { return allRoles[r] }

// SelfService reports whether a user may register with this role without an admin.
func (r Role) SelfService() bool {
	switch r {
	case RoleClient, RolePropertyOwner, RoleServiceProvider, RoleCountryManager, RoleCityManager:
		return true
	}
	return false
}

// AutoApproved reports whether self-registration with this role starts approved.
func (r Role) AutoApproved() bool { return r == RoleClient }

// IsCoordinator reports whether the role may assign jobs and approve providers.
func (r Role) IsCoordinator() bool {
	return r == RoleCountryManager || r == RoleCityManager
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type User struct {
	ID           types.ID   `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	Status       Status     `json:"status"`
	ApprovedBy   *types.ID  `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type RoleChangeRequest struct {
	ID             types.ID   `json:"id"`
	UserID         types.ID   `json:"user_id"`
	RequestedRole  Role       `json:"requested_role"`
	Reason         string     `json:"reason"`
	Status         Status     `json:"status"`
	DecidedBy      *types.ID  `json:"decided_by,omitempty"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
	DecisionReason *string    `json:"decision_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type ListFilter struct {
	Role   Role
	Status Status
}
