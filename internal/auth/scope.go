package auth

import (
	"local-delivery/internal/models"
)

// Scope is the closed set of ways an actor can own orders.
type Scope interface {
	isScope()
}

type CustomerScope struct{ CustomerID string }

type DeliveryScope struct{ DeliveryPartnerID string }

// PartnerScope carries an already resolved partner id.
type PartnerScope struct{ PartnerID string }

type AdminScope struct{}

func (CustomerScope) isScope() {}
func (DeliveryScope) isScope() {}
func (PartnerScope) isScope()  {}
func (AdminScope) isScope()    {}

// ScopeOf maps an actor onto its scope. Partner actors must carry their
// resolved partner id in PartnerID.
func ScopeOf(a models.Actor) (Scope, error) {
	if a.ID == "" {
		return nil, &Denial{Op: OpViewOrder, Reason: ReasonUnauthenticated}
	}
	switch a.Role {
	case models.RoleCustomer:
		return CustomerScope{CustomerID: a.ID}, nil
	case models.RoleDelivery:
		return DeliveryScope{DeliveryPartnerID: a.ID}, nil
	case models.RolePartner:
		if a.PartnerID == "" {
			return nil, models.ErrNotOnboarded
		}
		return PartnerScope{PartnerID: a.PartnerID}, nil
	case models.RoleAdmin:
		return AdminScope{}, nil
	}
	return nil, &Denial{Op: OpViewOrder, Reason: ReasonWrongRole, Detail: "unknown role " + string(a.Role)}
}

// FilterFor returns the store filter selecting the orders a scope owns.
// Admins have no "own" orders and must use the list-all operation.
func FilterFor(s Scope) (models.OrderFilter, error) {
	switch v := s.(type) {
	case CustomerScope:
		return models.OrderFilter{CustomerID: v.CustomerID}, nil
	case DeliveryScope:
		return models.OrderFilter{DeliveryPartnerID: v.DeliveryPartnerID}, nil
	case PartnerScope:
		return models.OrderFilter{PartnerID: v.PartnerID}, nil
	case AdminScope:
		return models.OrderFilter{}, &Denial{Op: OpViewOrder, Reason: ReasonWrongRole, Detail: "admins list orders through the admin listing"}
	}
	return models.OrderFilter{}, &Denial{Op: OpViewOrder, Reason: ReasonWrongRole, Detail: "unsupported scope"}
}
