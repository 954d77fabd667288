package models

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RolePartner  Role = "PARTNER"
	RoleDelivery Role = "DELIVERY"
	RoleAdmin    Role = "ADMIN"
)

// Actor is the already-authenticated caller of an operation.
type Actor struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	PartnerID string `json:"partner_id,omitempty"`
	Phone     string `json:"phone,omitempty"`
}
