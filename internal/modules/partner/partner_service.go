package partner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"local-delivery/internal/aggregate"
	"local-delivery/internal/auth"
	"local-delivery/internal/models"
	"local-delivery/pkg/notify"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ServiceInterface covers the partner side of the order lifecycle and the
// admin's partner management.
type ServiceInterface interface {
	CreateSubOrder(ctx context.Context, actor models.Actor, orderID string, req models.CreateSubOrderRequest) (*models.SubOrder, error)
	AcceptSubOrder(ctx context.Context, actor models.Actor, subOrderID string, req models.AcceptSubOrderRequest) (*models.SubOrder, error)
	RejectSubOrder(ctx context.Context, actor models.Actor, subOrderID string) (*models.SubOrder, error)
	ProgressSubOrder(ctx context.Context, actor models.Actor, subOrderID string, req models.SubOrderProgressRequest) (*models.SubOrder, error)
	ListSubOrders(ctx context.Context, actor models.Actor) ([]*models.SubOrder, error)
	GetEarnings(ctx context.Context, actor models.Actor) (*models.EarningsSummary, error)
	SetOpen(ctx context.Context, actor models.Actor, req models.PartnerOpenRequest) (*models.Partner, error)
	ListPartners(ctx context.Context, actor models.Actor, status models.PartnerStatus) ([]*models.Partner, error)
	SetPartnerStatus(ctx context.Context, actor models.Actor, partnerID string, req models.PartnerStatusRequest) (*models.Partner, error)
}

// OrderReader is the part of the order store partner flows read.
type OrderReader interface {
	FindByID(ctx context.Context, orderID string) (*models.Order, error)
	Snapshots(ctx context.Context, f models.OrderFilter) ([]models.OrderSnapshot, error)
}

// Resolver turns a partner user into its partner id.
type Resolver interface {
	WithPartner(ctx context.Context, a models.Actor) (models.Actor, error)
}

type service struct {
	repo     RepositoryInterface
	orders   OrderReader
	resolver Resolver
	events   *notify.Dispatcher
	loc      *time.Location
	now      func() time.Time
}

func NewService(repo RepositoryInterface, orders OrderReader, resolver Resolver, events *notify.Dispatcher, loc *time.Location) ServiceInterface {
	if loc == nil {
		loc = time.Local
	}
	return &service{repo: repo, orders: orders, resolver: resolver, events: events, loc: loc, now: time.Now}
}

// partnerActor resolves the caller's partner. Non-partners fail with
// ErrWrongRole, partners without a profile with ErrNotOnboarded.
func (s *service) partnerActor(ctx context.Context, actor models.Actor) (models.Actor, error) {
	if actor.ID == "" {
		return actor, models.ErrUnauthenticated
	}
	resolved, err := s.resolver.WithPartner(ctx, actor)
	if err != nil {
		if errors.Is(err, models.ErrForbidden) {
			return actor, err
		}
		return actor, fmt.Errorf("service.partnerActor: %w", err)
	}
	return resolved, nil
}

// CreateSubOrder asks a partner to quote (part of) a CUSTOM order.
func (s *service) CreateSubOrder(ctx context.Context, actor models.Actor, orderID string, req models.CreateSubOrderRequest) (*models.SubOrder, error) {
	if strings.TrimSpace(req.PartnerID) == "" || len(req.Items) == 0 {
		return nil, fmt.Errorf("partner_id and items are required: %w", models.ErrValidation)
	}
	for i, it := range req.Items {
		if strings.TrimSpace(it.Name) == "" || it.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d] needs a name and a positive quantity: %w", i, models.ErrValidation)
		}
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.CreateSubOrder: %w", err)
	}
	if err := auth.CanPerform(actor, auth.OpCreateSubOrder, auth.OrderResource(order, nil)); err != nil {
		return nil, err
	}

	partner, err := s.repo.FindPartnerByID(ctx, req.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("service.CreateSubOrder: partner %s: %w", req.PartnerID, err)
	}
	if partner.Status != models.PartnerApproved {
		return nil, fmt.Errorf("partner %s is %s: %w", partner.ID, partner.Status, models.ErrInvalidState)
	}

	sub := &models.SubOrder{
		ID:        uuid.NewString(),
		OrderID:   order.ID,
		PartnerID: partner.ID,
		Items:     req.Items,
		Status:    models.SubOrderCreated,
	}
	if err := s.repo.CreateSubOrder(ctx, sub); err != nil {
		return nil, fmt.Errorf("service.CreateSubOrder: %w", err)
	}
	s.announce(notify.EventSubOrderCreated, actor, sub)
	return sub, nil
}

// AcceptSubOrder records the partner's quote. Only the sub-order changes;
// the order's own totals stay with the admin.
func (s *service) AcceptSubOrder(ctx context.Context, actor models.Actor, subOrderID string, req models.AcceptSubOrderRequest) (*models.SubOrder, error) {
	if req.Price == nil || !req.Price.IsPositive() || !models.IsMoney(*req.Price) {
		return nil, fmt.Errorf("price must be a positive amount in cents: %w", models.ErrValidation)
	}
	return s.respond(ctx, actor, subOrderID, models.SubOrderAccepted, decimal.NewNullDecimal(*req.Price))
}

// RejectSubOrder declines a sub-order. No reason is recorded.
func (s *service) RejectSubOrder(ctx context.Context, actor models.Actor, subOrderID string) (*models.SubOrder, error) {
	return s.respond(ctx, actor, subOrderID, models.SubOrderRejected, decimal.NullDecimal{})
}

func (s *service) respond(ctx context.Context, actor models.Actor, subOrderID string, next models.SubOrderStatus, price decimal.NullDecimal) (*models.SubOrder, error) {
	actor, err := s.partnerActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	sub, err := s.repo.FindSubOrderByID(ctx, subOrderID)
	if err != nil {
		return nil, fmt.Errorf("service.respond: %w", err)
	}
	if err := auth.CanPerform(actor, auth.OpRespondSubOrder, auth.SubOrderResource(sub)); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateSubOrderStatus(ctx, subOrderID, models.SubOrderCreated, next, price)
	if err != nil {
		return nil, fmt.Errorf("service.respond %s: %w", next, err)
	}
	s.announce(notify.EventSubOrderUpdated, actor, updated)
	return updated, nil
}

// ProgressSubOrder reports kitchen progress on an accepted sub-order. It is
// history only and never moves the order.
func (s *service) ProgressSubOrder(ctx context.Context, actor models.Actor, subOrderID string, req models.SubOrderProgressRequest) (*models.SubOrder, error) {
	actor, err := s.partnerActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	sub, err := s.repo.FindSubOrderByID(ctx, subOrderID)
	if err != nil {
		return nil, fmt.Errorf("service.ProgressSubOrder: %w", err)
	}
	res := auth.SubOrderResource(sub)
	res.SubOrderTarget = req.Status
	if err := auth.CanPerform(actor, auth.OpProgressSubOrder, res); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateSubOrderStatus(ctx, subOrderID, sub.Status, req.Status, decimal.NullDecimal{})
	if err != nil {
		return nil, fmt.Errorf("service.ProgressSubOrder: %w", err)
	}
	s.announce(notify.EventSubOrderUpdated, actor, updated)
	return updated, nil
}

func (s *service) announce(t notify.EventType, actor models.Actor, sub *models.SubOrder) {
	s.events.Dispatch(notify.Event{
		Type:       t,
		OrderID:    sub.OrderID,
		SubOrderID: sub.ID,
		PartnerID:  sub.PartnerID,
		Status:     string(sub.Status),
		ActorID:    actor.ID,
	})
}

func (s *service) ListSubOrders(ctx context.Context, actor models.Actor) ([]*models.SubOrder, error) {
	actor, err := s.partnerActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	subs, err := s.repo.ListSubOrdersByPartner(ctx, actor.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("service.ListSubOrders: %w", err)
	}
	return subs, nil
}

// GetEarnings sums the partner's delivered orders, with a "today" bucket.
func (s *service) GetEarnings(ctx context.Context, actor models.Actor) (*models.EarningsSummary, error) {
	actor, err := s.partnerActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	snaps, err := s.orders.Snapshots(ctx, models.OrderFilter{PartnerID: actor.PartnerID})
	if err != nil {
		return nil, fmt.Errorf("service.GetEarnings: %w", err)
	}
	summary := aggregate.Summarize(snaps, s.now(), s.loc)
	return &summary, nil
}

// SetOpen toggles whether the partner takes SHOP orders.
func (s *service) SetOpen(ctx context.Context, actor models.Actor, req models.PartnerOpenRequest) (*models.Partner, error) {
	if req.IsOpen == nil {
		return nil, fmt.Errorf("is_open is required: %w", models.ErrValidation)
	}
	actor, err := s.partnerActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.SetPartnerOpen(ctx, actor.PartnerID, *req.IsOpen)
	if err != nil {
		return nil, fmt.Errorf("service.SetOpen: %w", err)
	}
	return p, nil
}

func (s *service) ListPartners(ctx context.Context, actor models.Actor, status models.PartnerStatus) ([]*models.Partner, error) {
	if err := auth.CanPerform(actor, auth.OpAdmin, auth.Resource{}); err != nil {
		return nil, err
	}
	partners, err := s.repo.ListPartners(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("service.ListPartners: %w", err)
	}
	return partners, nil
}

// SetPartnerStatus moves a partner through onboarding. Any status may be set
// from any other by an admin.
func (s *service) SetPartnerStatus(ctx context.Context, actor models.Actor, partnerID string, req models.PartnerStatusRequest) (*models.Partner, error) {
	if err := auth.CanPerform(actor, auth.OpAdmin, auth.Resource{}); err != nil {
		return nil, err
	}
	switch req.Status {
	case models.PartnerPending, models.PartnerApproved, models.PartnerRejected, models.PartnerSuspended:
	default:
		return nil, fmt.Errorf("unknown partner status %q: %w", req.Status, models.ErrValidation)
	}
	p, err := s.repo.SetPartnerStatus(ctx, partnerID, req.Status)
	if err != nil {
		return nil, fmt.Errorf("service.SetPartnerStatus: %w", err)
	}
	s.events.Dispatch(notify.Event{
		Type:      notify.EventPartnerUpdated,
		PartnerID: p.ID,
		Status:    string(p.Status),
		ActorID:   actor.ID,
	})
	return p, nil
}
