package logistics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"local-delivery/internal/aggregate"
	"local-delivery/internal/auth"
	"local-delivery/internal/models"
	"local-delivery/pkg/notify"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
)

// ServiceInterface is the delivery side of the order lifecycle.
type ServiceInterface interface {
	AssignDelivery(ctx context.Context, actor models.Actor, orderID string, req models.AssignDeliveryRequest) (*models.Order, error)
	UpdateDeliveryStatus(ctx context.Context, actor models.Actor, orderID string, req models.DeliveryStatusRequest) (*models.Order, error)
	ListMyJobs(ctx context.Context, actor models.Actor) ([]*models.DeliveryJob, error)
	GetDeliveryStats(ctx context.Context, actor models.Actor) (*models.EarningsSummary, error)
}

// OrderStore is the part of the order store the delivery flows need.
type OrderStore interface {
	FindByID(ctx context.Context, orderID string) (*models.Order, error)
	Transition(ctx context.Context, orderID string, change models.StatusChange) (*models.Order, error)
	Snapshots(ctx context.Context, f models.OrderFilter) ([]models.OrderSnapshot, error)
}

type service struct {
	repo   RepositoryInterface
	orders OrderStore
	events *notify.Dispatcher
	loc    *time.Location
	now    func() time.Time
}

// NewService wires the delivery flows. loc defines the "today" window of
// the delivery stats.
func NewService(repo RepositoryInterface, orders OrderStore, events *notify.Dispatcher, loc *time.Location) ServiceInterface {
	if loc == nil {
		loc = time.Local
	}
	return &service{repo: repo, orders: orders, events: events, loc: loc, now: time.Now}
}

// AssignDelivery hands a CONFIRMED order to a delivery actor.
func (s *service) AssignDelivery(ctx context.Context, actor models.Actor, orderID string, req models.AssignDeliveryRequest) (*models.Order, error) {
	if req.DeliveryPartnerID == "" {
		return nil, fmt.Errorf("delivery_partner_id is required: %w", models.ErrValidation)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.AssignDelivery: %w", err)
	}
	if err := auth.CanPerform(actor, auth.OpAssignDelivery, auth.OrderResource(order, nil)); err != nil {
		return nil, err
	}

	role, err := s.repo.FindUserRole(ctx, req.DeliveryPartnerID)
	if errors.Is(err, models.ErrNotFound) || (err == nil && role != models.RoleDelivery) {
		return nil, fmt.Errorf("user %s is not a delivery partner: %w", req.DeliveryPartnerID, models.ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("service.AssignDelivery: %w", err)
	}

	updated, err := s.orders.Transition(ctx, orderID, models.StatusChange{
		From:              order.Status,
		To:                models.OrderStatusAssigned,
		DeliveryPartnerID: req.DeliveryPartnerID,
	})
	if err != nil {
		return nil, fmt.Errorf("service.AssignDelivery: %w", err)
	}

	s.recordJob(ctx, updated)
	s.announce(actor, updated)
	return updated, nil
}

// UpdateDeliveryStatus lets the assigned delivery actor report pickup and
// drop-off.
func (s *service) UpdateDeliveryStatus(ctx context.Context, actor models.Actor, orderID string, req models.DeliveryStatusRequest) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.UpdateDeliveryStatus: %w", err)
	}
	res := auth.OrderResource(order, nil)
	res.Target = req.Status
	if err := auth.CanPerform(actor, auth.OpUpdateDeliveryStatus, res); err != nil {
		return nil, err
	}

	updated, err := s.orders.Transition(ctx, orderID, models.StatusChange{From: order.Status, To: req.Status})
	if err != nil {
		return nil, fmt.Errorf("service.UpdateDeliveryStatus: %w", err)
	}

	s.recordJob(ctx, updated)
	stamp := models.SubOrderPickedUp
	if updated.Status == models.OrderStatusDelivered {
		stamp = models.SubOrderDelivered
	}
	if err := s.repo.StampSubOrders(ctx, orderID, stamp); err != nil {
		log.Warnj(log.JSON{"action": "logistics.stamp_sub_orders", "order_id": orderID, "error": err.Error()})
	}
	s.announce(actor, updated)
	return updated, nil
}

// recordJob mirrors the order status onto its delivery job. The job is
// history only, so a failed write is logged and the transition stands.
func (s *service) recordJob(ctx context.Context, o *models.Order) {
	status, ok := models.JobStatusFor(o.Status)
	if !ok || o.DeliveryPartnerID == nil {
		return
	}
	job := &models.DeliveryJob{
		ID:                uuid.NewString(),
		OrderID:           o.ID,
		DeliveryPartnerID: *o.DeliveryPartnerID,
		Status:            status,
	}
	if err := s.repo.UpsertJob(ctx, job); err != nil {
		log.Warnj(log.JSON{"action": "logistics.record_job", "order_id": o.ID, "status": string(status), "error": err.Error()})
	}
}

func (s *service) announce(actor models.Actor, o *models.Order) {
	ev := notify.Event{
		Type:    notify.EventOrderStatusChanged,
		OrderID: o.ID,
		Status:  string(o.Status),
		ActorID: actor.ID,
	}
	if o.PartnerID != nil {
		ev.PartnerID = *o.PartnerID
	}
	s.events.Dispatch(ev)
}

// ListMyJobs returns the delivery jobs of the calling delivery actor.
func (s *service) ListMyJobs(ctx context.Context, actor models.Actor) ([]*models.DeliveryJob, error) {
	if err := auth.CanPerform(actor, auth.OpDeliveryView, auth.Resource{}); err != nil {
		return nil, err
	}
	jobs, err := s.repo.ListJobsByDeliveryPartner(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("service.ListMyJobs: %w", err)
	}
	return jobs, nil
}

// GetDeliveryStats summarizes the calling delivery actor's deliveries.
func (s *service) GetDeliveryStats(ctx context.Context, actor models.Actor) (*models.EarningsSummary, error) {
	if err := auth.CanPerform(actor, auth.OpDeliveryView, auth.Resource{}); err != nil {
		return nil, err
	}
	snaps, err := s.orders.Snapshots(ctx, models.OrderFilter{DeliveryPartnerID: actor.ID})
	if err != nil {
		return nil, fmt.Errorf("service.GetDeliveryStats: %w", err)
	}
	summary := aggregate.Summarize(snaps, s.now(), s.loc)
	return &summary, nil
}
