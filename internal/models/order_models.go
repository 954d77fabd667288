package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Totals are rendered as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// OrderType distinguishes menu orders from free-text requests.
type OrderType string

const (
	OrderTypeShop   OrderType = "SHOP"
	OrderTypeCustom OrderType = "CUSTOM"
)

// OrderStatus is the canonical lifecycle status of an order.
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusPriced    OrderStatus = "PRICED"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusAssigned  OrderStatus = "ASSIGNED"
	OrderStatusPickedUp  OrderStatus = "PICKED_UP"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentPaid       PaymentStatus = "PAID"
	PaymentFailed     PaymentStatus = "FAILED"
)

// IsMoney reports whether d is a non-negative amount with at most two
// decimal places, the precision totals are stored with.
func IsMoney(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Round(2))
}

// orderTransitions lists every legal edge of the order state machine.
// SHOP orders are inserted directly as CONFIRMED and never pass through here.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated:   {OrderStatusPriced, OrderStatusCancelled},
	OrderStatusPriced:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusAssigned, OrderStatusCancelled},
	OrderStatusAssigned:  {OrderStatusPickedUp},
	OrderStatusPickedUp:  {OrderStatusDelivered},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist from s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// IsCancellable reports whether a customer may still cancel.
func (s OrderStatus) IsCancellable() bool {
	return CanTransition(s, OrderStatusCancelled)
}

// OrderItem is a price snapshot taken when the order is placed. It is not
// linked to the live menu.
type OrderItem struct {
	Name     string          `json:"name" validate:"required"`
	Quantity int             `json:"quantity" validate:"required,gt=0"`
	Price    decimal.Decimal `json:"price"`
}

// LineTotal is price times quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Identity is a display projection of a related user or partner.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// Order represents a customer's delivery request.
type Order struct {
	ID                string              `json:"id"`
	OrderType         OrderType           `json:"order_type"`
	CustomerID        string              `json:"customer_id"`
	PartnerID         *string             `json:"partner_id,omitempty"`
	DeliveryPartnerID *string             `json:"delivery_partner_id,omitempty"`
	DeliveryAddress   string              `json:"delivery_address"`
	Note              string              `json:"note,omitempty"`
	Items             []OrderItem         `json:"items"`
	ItemTotal         decimal.NullDecimal `json:"item_total"`
	DeliveryFee       decimal.NullDecimal `json:"delivery_fee"`
	GrandTotal        decimal.NullDecimal `json:"grand_total"`
	PaymentStatus     PaymentStatus       `json:"payment_status"`
	Status            OrderStatus         `json:"status"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`

	Customer        *Identity `json:"customer,omitempty"`
	Partner         *Identity `json:"partner,omitempty"`
	DeliveryPartner *Identity `json:"delivery_partner,omitempty"`
}

// IsPriced reports whether all three totals are present.
func (o *Order) IsPriced() bool {
	return o.ItemTotal.Valid && o.DeliveryFee.Valid && o.GrandTotal.Valid
}

// OrderItemInput is one requested line. Price is a pointer so a SHOP line
// without a price is rejected instead of read as free.
type OrderItemInput struct {
	Name     string           `json:"name" validate:"required"`
	Quantity int              `json:"quantity" validate:"required,gt=0"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// CreateOrderRequest is the customer's order placement payload.
type CreateOrderRequest struct {
	OrderType       OrderType        `json:"order_type" validate:"required,oneof=SHOP CUSTOM"`
	PartnerID       string           `json:"partner_id,omitempty"`
	DeliveryAddress string           `json:"delivery_address" validate:"required"`
	Note            string           `json:"note,omitempty"`
	Items           []OrderItemInput `json:"items,omitempty" validate:"dive"`
	PaymentMethodID string           `json:"payment_method_id,omitempty"`
}

// PriceOrderRequest is the admin's quote for a CUSTOM order. Pointers tell a
// missing value apart from zero.
type PriceOrderRequest struct {
	ItemTotal   *decimal.Decimal `json:"item_total" validate:"required"`
	DeliveryFee *decimal.Decimal `json:"delivery_fee" validate:"required"`
}

// PaymentRequest represents the data needed to pay for an order.
type PaymentRequest struct {
	PaymentMethodID string `json:"payment_method_id,omitempty"`
}

type AssignDeliveryRequest struct {
	DeliveryPartnerID string `json:"delivery_partner_id" validate:"required"`
}

type DeliveryStatusRequest struct {
	Status OrderStatus `json:"status" validate:"required,oneof=PICKED_UP DELIVERED"`
}

// OrderFilter selects orders by owning party. Empty fields are ignored.
type OrderFilter struct {
	CustomerID        string
	DeliveryPartnerID string
	PartnerID         string
	Status            OrderStatus
}

// CustomOrderStatus is the customer's view of a CUSTOM order. QuotedPrice
// comes from the first accepted sub-order, not from the order totals.
type CustomOrderStatus struct {
	OrderID     string              `json:"order_id"`
	Status      OrderStatus         `json:"status"`
	PartnerID   *string             `json:"partner_id,omitempty"`
	SubOrderID  *string             `json:"sub_order_id,omitempty"`
	QuotedPrice decimal.NullDecimal `json:"quoted_price"`
	GrandTotal  decimal.NullDecimal `json:"grand_total"`
}

// StatusChange is a conditional status transition. It applies only while the
// stored status still equals From and the payment claim matches Claimed.
// Zero-valued optional fields leave the stored value untouched.
type StatusChange struct {
	From OrderStatus
	To   OrderStatus
	// Claimed is set by the holder of a payment claim. Without it the
	// transition fails while a charge is in flight.
	Claimed           bool
	ItemTotal         decimal.NullDecimal
	DeliveryFee       decimal.NullDecimal
	GrandTotal        decimal.NullDecimal
	PaymentStatus     PaymentStatus
	DeliveryPartnerID string
}
