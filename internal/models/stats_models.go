package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DashboardStats are the admin dashboard counters.
type DashboardStats struct {
	TotalOrders     int             `json:"total_orders"`
	PendingOrders   int             `json:"pending_orders"`
	TodayOrders     int             `json:"today_orders"`
	TotalPartners   int             `json:"total_partners"`
	PendingPartners int             `json:"pending_partners"`
	ActivePartners  int             `json:"active_partners"`
	TotalEarnings   decimal.Decimal `json:"total_earnings"`
}

// EarningsSummary is the partner or delivery actor's income view.
type EarningsSummary struct {
	DeliveredOrders int             `json:"delivered_orders"`
	TodayDelivered  int             `json:"today_delivered"`
	TotalEarnings   decimal.Decimal `json:"total_earnings"`
	TodayEarnings   decimal.Decimal `json:"today_earnings"`
	ActiveOrders    int             `json:"active_orders"`
}

// OrderSnapshot is the minimal projection the aggregation views read.
type OrderSnapshot struct {
	Status     OrderStatus
	GrandTotal decimal.NullDecimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
