// Package aggregate computes read-only views over order history. Every
// function here is lenient: records with missing totals count as zero and
// never fail the whole aggregate.
package aggregate

import (
	"time"

	"local-delivery/internal/models"

	"github.com/shopspring/decimal"
)

// DayWindow returns the local midnight that starts now's day and the
// midnight that ends it.
func DayWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	t := now.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// GrandTotalOf returns the order's grand total, or zero when unset.
func GrandTotalOf(o models.OrderSnapshot) decimal.Decimal {
	if !o.GrandTotal.Valid {
		return decimal.Zero
	}
	return o.GrandTotal.Decimal
}

// Earnings sums grand totals over delivered orders.
func Earnings(orders []models.OrderSnapshot) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		if o.Status == models.OrderStatusDelivered {
			total = total.Add(GrandTotalOf(o))
		}
	}
	return total
}

// CountCreatedBetween counts orders created in [start, end).
func CountCreatedBetween(orders []models.OrderSnapshot, start, end time.Time) int {
	n := 0
	for _, o := range orders {
		if within(o.CreatedAt, start, end) {
			n++
		}
	}
	return n
}

// CountStatus counts orders in the given status. The legacy "PENDING" value
// is not an order status, so it always counts zero.
func CountStatus(orders []models.OrderSnapshot, status models.OrderStatus) int {
	n := 0
	for _, o := range orders {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Summarize builds the earnings view for one party's orders. Delivered
// orders are bucketed into "today" by their last update, which for a
// terminal order is the delivery itself.
func Summarize(orders []models.OrderSnapshot, now time.Time, loc *time.Location) models.EarningsSummary {
	start, end := DayWindow(now, loc)
	sum := models.EarningsSummary{
		TotalEarnings: decimal.Zero,
		TodayEarnings: decimal.Zero,
	}
	for _, o := range orders {
		switch {
		case o.Status == models.OrderStatusDelivered:
			amount := GrandTotalOf(o)
			sum.DeliveredOrders++
			sum.TotalEarnings = sum.TotalEarnings.Add(amount)
			if within(o.UpdatedAt, start, end) {
				sum.TodayDelivered++
				sum.TodayEarnings = sum.TodayEarnings.Add(amount)
			}
		case !o.Status.IsTerminal():
			sum.ActiveOrders++
		}
	}
	return sum
}

// PartnerCounts holds partner tallies for the admin dashboard.
type PartnerCounts struct {
	Total   int
	Pending int
	Active  int
}

// CountPartners tallies partners; active means approved and open.
func CountPartners(partners []*models.Partner) PartnerCounts {
	var c PartnerCounts
	seen := make(map[string]struct{}, len(partners))
	for _, p := range partners {
		if p == nil {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		c.Total++
		switch {
		case p.Status == models.PartnerPending:
			c.Pending++
		case p.Status == models.PartnerApproved && p.IsOpen:
			c.Active++
		}
	}
	return c
}

// Dashboard assembles the admin dashboard from order and partner history.
func Dashboard(orders []models.OrderSnapshot, partners []*models.Partner, now time.Time, loc *time.Location) models.DashboardStats {
	start, end := DayWindow(now, loc)
	pc := CountPartners(partners)
	return models.DashboardStats{
		TotalOrders:     len(orders),
		PendingOrders:   CountStatus(orders, legacyPendingStatus),
		TodayOrders:     CountCreatedBetween(orders, start, end),
		TotalPartners:   pc.Total,
		PendingPartners: pc.Pending,
		ActivePartners:  pc.Active,
		TotalEarnings:   Earnings(orders),
	}
}

// legacyPendingStatus survives from an older schema; no order holds it.
const legacyPendingStatus models.OrderStatus = "PENDING"
