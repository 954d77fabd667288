package models

import "time"

type DeliveryJobStatus string

const (
	DeliveryJobAssigned  DeliveryJobStatus = "ASSIGNED"
	DeliveryJobPicking   DeliveryJobStatus = "PICKING"
	DeliveryJobDelivered DeliveryJobStatus = "DELIVERED"
)

// DeliveryJob is the history record tying an order to its delivery actor.
type DeliveryJob struct {
	ID                string            `json:"id"`
	OrderID           string            `json:"order_id"`
	DeliveryPartnerID string            `json:"delivery_partner_id"`
	Status            DeliveryJobStatus `json:"status"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// JobStatusFor returns the delivery job status implied by an order status,
// or false when the order should have no job yet.
func JobStatusFor(s OrderStatus) (DeliveryJobStatus, bool) {
	switch s {
	case OrderStatusAssigned:
		return DeliveryJobAssigned, true
	case OrderStatusPickedUp:
		return DeliveryJobPicking, true
	case OrderStatusDelivered:
		return DeliveryJobDelivered, true
	}
	return "", false
}

// ConsistencyReport lists disagreements between an order and its history
// records.
type ConsistencyReport struct {
	OrderID     string       `json:"order_id"`
	Status      OrderStatus  `json:"status"`
	Consistent  bool         `json:"consistent"`
	Mismatches  []string     `json:"mismatches,omitempty"`
	DeliveryJob *DeliveryJob `json:"delivery_job,omitempty"`
	SubOrders   []*SubOrder  `json:"sub_orders,omitempty"`
}
