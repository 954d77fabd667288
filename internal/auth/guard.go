// Package auth decides who may perform which order operation. The guard is a
// pure function of the actor and a resource snapshot; it never touches the
// store.
package auth

import (
	"fmt"

	"local-delivery/internal/models"
)

type Operation string

const (
	OpCreateOrder          Operation = "create_order"
	OpPriceOrder           Operation = "price_order"
	OpConfirmPrice         Operation = "confirm_price"
	OpAssignDelivery       Operation = "assign_delivery"
	OpUpdateDeliveryStatus Operation = "update_delivery_status"
	OpCancelOrder          Operation = "cancel_order"
	OpViewOrder            Operation = "view_order"
	OpViewCustomStatus     Operation = "view_custom_status"
	OpCreateSubOrder       Operation = "create_sub_order"
	OpRespondSubOrder      Operation = "respond_sub_order"
	OpProgressSubOrder     Operation = "progress_sub_order"
	OpDeliveryView         Operation = "delivery_view"
	OpAdmin                Operation = "admin"
)

// Reason classifies a denial.
type Reason string

const (
	ReasonUnauthenticated Reason = "UNAUTHENTICATED"
	ReasonWrongRole       Reason = "WRONG_ROLE"
	ReasonNotOwner        Reason = "NOT_OWNER"
	ReasonInvalidState    Reason = "INVALID_STATE"
)

// Denial is returned by CanPerform. It matches the corresponding models
// sentinel with errors.Is.
type Denial struct {
	Op     Operation
	Reason Reason
	Detail string
}

func (d *Denial) Error() string {
	if d.Detail == "" {
		return fmt.Sprintf("%s denied: %s", d.Op, d.Reason)
	}
	return fmt.Sprintf("%s denied: %s: %s", d.Op, d.Reason, d.Detail)
}

func (d *Denial) Unwrap() error {
	switch d.Reason {
	case ReasonUnauthenticated:
		return models.ErrUnauthenticated
	case ReasonWrongRole:
		return models.ErrWrongRole
	case ReasonNotOwner:
		return models.ErrNotOwner
	default:
		return models.ErrInvalidState
	}
}

// Resource is the snapshot of an order or sub-order the guard decides on.
// Target is the status the caller wants to move to, when relevant.
type Resource struct {
	OrderType          models.OrderType
	OrderStatus        models.OrderStatus
	CustomerID         string
	PartnerID          string
	DeliveryPartnerID  string
	SubOrderPartnerIDs []string

	SubOrderStatus models.SubOrderStatus
	SubOrderTarget models.SubOrderStatus

	Target models.OrderStatus
}

// OrderResource snapshots an order together with the partners of its
// sub-orders.
func OrderResource(o *models.Order, subs []*models.SubOrder) Resource {
	r := Resource{
		OrderType:   o.OrderType,
		OrderStatus: o.Status,
		CustomerID:  o.CustomerID,
	}
	if o.PartnerID != nil {
		r.PartnerID = *o.PartnerID
	}
	if o.DeliveryPartnerID != nil {
		r.DeliveryPartnerID = *o.DeliveryPartnerID
	}
	for _, s := range subs {
		r.SubOrderPartnerIDs = append(r.SubOrderPartnerIDs, s.PartnerID)
	}
	return r
}

// SubOrderResource snapshots a sub-order.
func SubOrderResource(s *models.SubOrder) Resource {
	return Resource{
		PartnerID:      s.PartnerID,
		SubOrderStatus: s.Status,
	}
}

func deny(op Operation, reason Reason, format string, args ...interface{}) error {
	return &Denial{Op: op, Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func requireRole(op Operation, a models.Actor, roles ...models.Role) error {
	for _, r := range roles {
		if a.Role == r {
			return nil
		}
	}
	return deny(op, ReasonWrongRole, "role %s", a.Role)
}

// CanPerform returns nil when the actor may perform op on res, or a *Denial.
// Checks run in the order authentication, role, ownership, state.
func CanPerform(a models.Actor, op Operation, res Resource) error {
	if a.ID == "" || a.Role == "" {
		return &Denial{Op: op, Reason: ReasonUnauthenticated}
	}

	switch op {
	case OpCreateOrder:
		return requireRole(op, a, models.RoleCustomer)

	case OpAdmin:
		return requireRole(op, a, models.RoleAdmin)

	case OpDeliveryView:
		return requireRole(op, a, models.RoleDelivery)

	case OpPriceOrder:
		if err := requireRole(op, a, models.RoleAdmin); err != nil {
			return err
		}
		if res.OrderType != models.OrderTypeCustom {
			return deny(op, ReasonInvalidState, "only CUSTOM orders are priced, got %s", res.OrderType)
		}
		return requireEdge(op, res.OrderStatus, models.OrderStatusPriced)

	case OpConfirmPrice:
		if err := requireRole(op, a, models.RoleCustomer); err != nil {
			return err
		}
		if a.ID != res.CustomerID {
			return deny(op, ReasonNotOwner, "order belongs to another customer")
		}
		return requireEdge(op, res.OrderStatus, models.OrderStatusConfirmed)

	case OpAssignDelivery:
		if err := requireRole(op, a, models.RoleAdmin); err != nil {
			return err
		}
		return requireEdge(op, res.OrderStatus, models.OrderStatusAssigned)

	case OpUpdateDeliveryStatus:
		if res.DeliveryPartnerID == "" || a.ID != res.DeliveryPartnerID {
			return deny(op, ReasonNotOwner, "order is not assigned to this delivery actor")
		}
		if res.Target != models.OrderStatusPickedUp && res.Target != models.OrderStatusDelivered {
			return deny(op, ReasonInvalidState, "delivery actors may only set PICKED_UP or DELIVERED")
		}
		return requireEdge(op, res.OrderStatus, res.Target)

	case OpCancelOrder:
		if a.ID != res.CustomerID {
			return deny(op, ReasonNotOwner, "order belongs to another customer")
		}
		return requireEdge(op, res.OrderStatus, models.OrderStatusCancelled)

	case OpViewOrder:
		if canView(a, res) {
			return nil
		}
		return deny(op, ReasonNotOwner, "no view rights on this order")

	case OpViewCustomStatus:
		if a.Role == models.RoleAdmin || (a.Role == models.RoleCustomer && a.ID == res.CustomerID) {
			return nil
		}
		return deny(op, ReasonNotOwner, "order belongs to another customer")

	case OpCreateSubOrder:
		if err := requireRole(op, a, models.RoleAdmin); err != nil {
			return err
		}
		if res.OrderType != models.OrderTypeCustom {
			return deny(op, ReasonInvalidState, "sub-orders are only created for CUSTOM orders")
		}
		if res.OrderStatus != models.OrderStatusCreated && res.OrderStatus != models.OrderStatusPriced {
			return deny(op, ReasonInvalidState, "order is %s", res.OrderStatus)
		}
		return nil

	case OpRespondSubOrder:
		if err := requirePartnerOwner(op, a, res); err != nil {
			return err
		}
		if res.SubOrderStatus != models.SubOrderCreated {
			return deny(op, ReasonInvalidState, "sub-order is %s", res.SubOrderStatus)
		}
		return nil

	case OpProgressSubOrder:
		if err := requirePartnerOwner(op, a, res); err != nil {
			return err
		}
		if !models.CanProgress(res.SubOrderStatus, res.SubOrderTarget) {
			return deny(op, ReasonInvalidState, "cannot move sub-order from %s to %s", res.SubOrderStatus, res.SubOrderTarget)
		}
		return nil
	}

	return deny(op, ReasonWrongRole, "unknown operation")
}

func requireEdge(op Operation, from, to models.OrderStatus) error {
	if !models.CanTransition(from, to) {
		return deny(op, ReasonInvalidState, "cannot move order from %s to %s", from, to)
	}
	return nil
}

// requirePartnerOwner expects a.PartnerID to hold the resolved partner id.
func requirePartnerOwner(op Operation, a models.Actor, res Resource) error {
	if err := requireRole(op, a, models.RolePartner); err != nil {
		return err
	}
	if a.PartnerID == "" || a.PartnerID != res.PartnerID {
		return deny(op, ReasonNotOwner, "sub-order belongs to another partner")
	}
	return nil
}

func canView(a models.Actor, res Resource) bool {
	switch a.Role {
	case models.RoleAdmin:
		return true
	case models.RoleCustomer:
		return a.ID == res.CustomerID
	case models.RoleDelivery:
		return res.DeliveryPartnerID != "" && a.ID == res.DeliveryPartnerID
	case models.RolePartner:
		if a.PartnerID == "" {
			return false
		}
		if a.PartnerID == res.PartnerID {
			return true
		}
		for _, id := range res.SubOrderPartnerIDs {
			if id == a.PartnerID {
				return true
			}
		}
	}
	return false
}
