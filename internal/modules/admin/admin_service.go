// Package admin serves the admin dashboard and the order history
// consistency check.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"local-delivery/internal/aggregate"
	"local-delivery/internal/auth"
	"local-delivery/internal/models"
)

type ServiceInterface interface {
	GetDashboardStats(ctx context.Context, actor models.Actor) (*models.DashboardStats, error)
	CheckConsistency(ctx context.Context, actor models.Actor, orderID string) (*models.ConsistencyReport, error)
}

// OrderStore, PartnerLister, JobReader and SubOrderReader are satisfied by
// the order, partner and logistics repositories.
type OrderStore interface {
	FindByID(ctx context.Context, orderID string) (*models.Order, error)
	Snapshots(ctx context.Context, f models.OrderFilter) ([]models.OrderSnapshot, error)
}

type PartnerLister interface {
	ListPartners(ctx context.Context, status models.PartnerStatus) ([]*models.Partner, error)
}

type JobReader interface {
	FindJobByOrder(ctx context.Context, orderID string) (*models.DeliveryJob, error)
}

type SubOrderReader interface {
	ListSubOrdersByOrder(ctx context.Context, orderID string) ([]*models.SubOrder, error)
}

type service struct {
	orders    OrderStore
	partners  PartnerLister
	jobs      JobReader
	subOrders SubOrderReader
	loc       *time.Location
	now       func() time.Time
}

func NewService(orders OrderStore, partners PartnerLister, jobs JobReader, subOrders SubOrderReader, loc *time.Location) ServiceInterface {
	if loc == nil {
		loc = time.Local
	}
	return &service{orders: orders, partners: partners, jobs: jobs, subOrders: subOrders, loc: loc, now: time.Now}
}

func (s *service) GetDashboardStats(ctx context.Context, actor models.Actor) (*models.DashboardStats, error) {
	if err := auth.CanPerform(actor, auth.OpAdmin, auth.Resource{}); err != nil {
		return nil, err
	}
	snaps, err := s.orders.Snapshots(ctx, models.OrderFilter{})
	if err != nil {
		return nil, fmt.Errorf("service.GetDashboardStats: orders: %w", err)
	}
	partners, err := s.partners.ListPartners(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("service.GetDashboardStats: partners: %w", err)
	}
	stats := aggregate.Dashboard(snaps, partners, s.now(), s.loc)
	return &stats, nil
}

// CheckConsistency compares an order's status with its delivery job and
// sub-orders. Disagreements are reported, never repaired: the report comes
// back together with an error matching models.ErrInconsistentState.
func (s *service) CheckConsistency(ctx context.Context, actor models.Actor, orderID string) (*models.ConsistencyReport, error) {
	if err := auth.CanPerform(actor, auth.OpAdmin, auth.Resource{}); err != nil {
		return nil, err
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.CheckConsistency: %w", err)
	}
	job, err := s.jobs.FindJobByOrder(ctx, orderID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("service.CheckConsistency: job: %w", err)
	}
	subs, err := s.subOrders.ListSubOrdersByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.CheckConsistency: sub-orders: %w", err)
	}

	report := &models.ConsistencyReport{
		OrderID:     order.ID,
		Status:      order.Status,
		DeliveryJob: job,
		SubOrders:   subs,
	}
	report.Mismatches = append(jobMismatches(order, job), subOrderMismatches(order, subs)...)
	report.Consistent = len(report.Mismatches) == 0
	if !report.Consistent {
		return report, fmt.Errorf("order %s: %s: %w", order.ID, strings.Join(report.Mismatches, "; "), models.ErrInconsistentState)
	}
	return report, nil
}

func jobMismatches(o *models.Order, job *models.DeliveryJob) []string {
	want, hasJob := models.JobStatusFor(o.Status)
	var out []string
	switch {
	case hasJob && job == nil:
		out = append(out, fmt.Sprintf("order is %s but has no delivery job", o.Status))
	case !hasJob && job != nil:
		out = append(out, fmt.Sprintf("order is %s but delivery job is %s", o.Status, job.Status))
	case hasJob && job.Status != want:
		out = append(out, fmt.Sprintf("order is %s but delivery job is %s, expected %s", o.Status, job.Status, want))
	}
	if job != nil && (o.DeliveryPartnerID == nil || *o.DeliveryPartnerID != job.DeliveryPartnerID) {
		out = append(out, fmt.Sprintf("delivery job belongs to %s, order to %s", job.DeliveryPartnerID, stringOf(o.DeliveryPartnerID)))
	}
	return out
}

// subOrderMismatches checks that delivery milestones stamped on accepted
// sub-orders match the order.
func subOrderMismatches(o *models.Order, subs []*models.SubOrder) []string {
	var want models.SubOrderStatus
	switch o.Status {
	case models.OrderStatusPickedUp:
		want = models.SubOrderPickedUp
	case models.OrderStatusDelivered:
		want = models.SubOrderDelivered
	}

	var out []string
	for _, sub := range subs {
		switch sub.Status {
		case models.SubOrderCreated, models.SubOrderRejected:
			continue
		}
		stamped := sub.Status == models.SubOrderPickedUp || sub.Status == models.SubOrderDelivered
		switch {
		case want == "" && stamped:
			out = append(out, fmt.Sprintf("sub-order %s is %s while order is %s", sub.ID, sub.Status, o.Status))
		case want != "" && sub.Status != want:
			out = append(out, fmt.Sprintf("sub-order %s is %s, expected %s", sub.ID, sub.Status, want))
		}
	}
	return out
}

func stringOf(p *string) string {
	if p == nil {
		return "nobody"
	}
	return *p
}
