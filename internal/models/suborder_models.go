package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SubOrderStatus string

const (
	SubOrderCreated   SubOrderStatus = "CREATED"
	SubOrderAccepted  SubOrderStatus = "ACCEPTED"
	SubOrderRejected  SubOrderStatus = "REJECTED"
	SubOrderPreparing SubOrderStatus = "PREPARING"
	SubOrderReady     SubOrderStatus = "READY"
	SubOrderPickedUp  SubOrderStatus = "PICKED_UP"
	SubOrderDelivered SubOrderStatus = "DELIVERED"
)

// subOrderProgress lists the forward-only kitchen steps a partner may report
// once a sub-order is accepted.
var subOrderProgress = map[SubOrderStatus]SubOrderStatus{
	SubOrderAccepted:  SubOrderPreparing,
	SubOrderPreparing: SubOrderReady,
}

// CanProgress reports whether a partner may move a sub-order from one
// kitchen step to the next.
func CanProgress(from, to SubOrderStatus) bool {
	next, ok := subOrderProgress[from]
	return ok && next == to
}

type SubOrderItem struct {
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

// SubOrder records a partner's assignment to (part of) an order and the
// price the partner quoted. It never drives Order.Status.
type SubOrder struct {
	ID        string              `json:"id"`
	OrderID   string              `json:"order_id"`
	PartnerID string              `json:"partner_id"`
	Items     []SubOrderItem      `json:"items"`
	Status    SubOrderStatus      `json:"status"`
	Price     decimal.NullDecimal `json:"price"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

type CreateSubOrderRequest struct {
	PartnerID string         `json:"partner_id" validate:"required"`
	Items     []SubOrderItem `json:"items" validate:"required,min=1,dive"`
}

type AcceptSubOrderRequest struct {
	Price *decimal.Decimal `json:"price" validate:"required"`
}

type SubOrderProgressRequest struct {
	Status SubOrderStatus `json:"status" validate:"required,oneof=PREPARING READY"`
}
