package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"local-delivery/internal/auth"
	"local-delivery/internal/models"
	"local-delivery/pkg/notify"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"
)

// ServiceInterface defines the contract for the order service.
type ServiceInterface interface {
	CreateOrder(ctx context.Context, actor models.Actor, req models.CreateOrderRequest) (*models.Order, error)
	PriceOrder(ctx context.Context, actor models.Actor, orderID string, req models.PriceOrderRequest) (*models.Order, error)
	ConfirmPrice(ctx context.Context, actor models.Actor, orderID string, req models.PaymentRequest) (*models.Order, error)
	CancelOrder(ctx context.Context, actor models.Actor, orderID string) (*models.Order, error)
	GetOrderDetails(ctx context.Context, actor models.Actor, orderID string) (*models.Order, error)
	GetCustomOrderStatus(ctx context.Context, actor models.Actor, orderID string) (*models.CustomOrderStatus, error)
	GetMyOrders(ctx context.Context, actor models.Actor, page, limit int) ([]*models.Order, int, error)
	ListAllOrders(ctx context.Context, actor models.Actor, status models.OrderStatus, page, limit int) ([]*models.Order, int, error)
}

// SubOrderReader lists the sub-orders of an order, oldest first.
type SubOrderReader interface {
	ListSubOrdersByOrder(ctx context.Context, orderID string) ([]*models.SubOrder, error)
}

// PartnerReader loads a partner by id.
type PartnerReader interface {
	FindPartnerByID(ctx context.Context, partnerID string) (*models.Partner, error)
}

// PartnerResolverInterface attaches the resolved partner id to an actor.
type PartnerResolverInterface interface {
	WithPartner(ctx context.Context, a models.Actor) (models.Actor, error)
}

// PaymentServiceInterface defines the contract for a payment processing service.
type PaymentServiceInterface interface {
	ProcessPayment(ctx context.Context, userID string, amount decimal.Decimal, paymentMethodID, idempotencyKey string) (string, error)
}

// Service implements the order lifecycle for customers and admins.
type Service struct {
	repo           RepositoryInterface
	subOrders      SubOrderReader
	partners       PartnerReader
	resolver       PartnerResolverInterface
	paymentService PaymentServiceInterface
	events         *notify.Dispatcher
	shopFee        decimal.Decimal
}

// NewService creates a new order service. shopFee is the delivery fee added
// to every SHOP order.
func NewService(repo RepositoryInterface, subOrders SubOrderReader, partners PartnerReader, resolver PartnerResolverInterface,
	paymentService PaymentServiceInterface, events *notify.Dispatcher, shopFee decimal.Decimal) *Service {
	return &Service{
		repo:           repo,
		subOrders:      subOrders,
		partners:       partners,
		resolver:       resolver,
		paymentService: paymentService,
		events:         events,
		shopFee:        shopFee.Round(2),
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), models.ErrValidation)
}

// CreateOrder places a SHOP order (priced and paid immediately) or a CUSTOM
// request awaiting an admin quote.
func (s *Service) CreateOrder(ctx context.Context, actor models.Actor, req models.CreateOrderRequest) (*models.Order, error) {
	if err := auth.CanPerform(actor, auth.OpCreateOrder, auth.Resource{}); err != nil {
		return nil, err
	}
	address := strings.TrimSpace(req.DeliveryAddress)
	if address == "" {
		return nil, invalid("delivery_address is required")
	}
	items, err := snapshotItems(req.Items, req.OrderType == models.OrderTypeShop)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:              uuid.NewString(),
		OrderType:       req.OrderType,
		CustomerID:      actor.ID,
		DeliveryAddress: address,
		Note:            strings.TrimSpace(req.Note),
		Items:           items,
	}

	switch req.OrderType {
	case models.OrderTypeShop:
		if err := s.prepareShopOrder(ctx, actor, order, req); err != nil {
			return nil, err
		}
	case models.OrderTypeCustom:
		order.Status = models.OrderStatusCreated
		order.PaymentStatus = models.PaymentPending
	default:
		return nil, invalid("order_type must be SHOP or CUSTOM")
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("service.CreateOrder: %w", err)
	}
	if order.PaymentStatus == models.PaymentProcessing {
		if err := s.chargeShopOrder(ctx, actor, order, req.PaymentMethodID); err != nil {
			return nil, err
		}
	}

	s.events.Dispatch(notify.Event{
		Type:      notify.EventOrderCreated,
		OrderID:   order.ID,
		PartnerID: stringOf(order.PartnerID),
		Status:    string(order.Status),
		ActorID:   actor.ID,
	})
	return order, nil
}

// prepareShopOrder prices a SHOP order from its item snapshot. SHOP orders
// skip PRICED and start CONFIRMED, holding the payment claim until the
// charge settles.
func (s *Service) prepareShopOrder(ctx context.Context, actor models.Actor, order *models.Order, req models.CreateOrderRequest) error {
	if req.PartnerID == "" {
		return invalid("partner_id is required for SHOP orders")
	}
	if len(order.Items) == 0 {
		return invalid("items are required for SHOP orders")
	}
	partner, err := s.partners.FindPartnerByID(ctx, req.PartnerID)
	if err != nil {
		return fmt.Errorf("service.CreateOrder: partner %s: %w", req.PartnerID, err)
	}
	if partner.Status != models.PartnerApproved || !partner.IsOpen {
		return fmt.Errorf("partner %s is not accepting orders: %w", partner.ID, models.ErrInvalidState)
	}

	itemTotal := decimal.Zero
	for _, it := range order.Items {
		itemTotal = itemTotal.Add(it.LineTotal())
	}
	grandTotal := itemTotal.Add(s.shopFee)

	order.PartnerID = &partner.ID
	order.ItemTotal = decimal.NewNullDecimal(itemTotal)
	order.DeliveryFee = decimal.NewNullDecimal(s.shopFee)
	order.GrandTotal = decimal.NewNullDecimal(grandTotal)
	order.Status = models.OrderStatusConfirmed
	order.PaymentStatus = models.PaymentPaid
	if grandTotal.IsPositive() {
		order.PaymentStatus = models.PaymentProcessing
	}
	return nil
}

// chargeShopOrder charges a stored SHOP order. A declined charge cancels
// the order with payment FAILED.
func (s *Service) chargeShopOrder(ctx context.Context, actor models.Actor, order *models.Order, paymentMethodID string) error {
	_, err := s.paymentService.ProcessPayment(ctx, actor.ID, order.GrandTotal.Decimal, paymentMethodID, order.ID+":create")
	if err != nil {
		if _, terr := s.repo.Transition(ctx, order.ID, models.StatusChange{
			From:          models.OrderStatusConfirmed,
			To:            models.OrderStatusCancelled,
			PaymentStatus: models.PaymentFailed,
			Claimed:       true,
		}); terr != nil {
			log.Errorj(log.JSON{"action": "order.create", "order_id": order.ID, "error": terr.Error()})
		}
		return fmt.Errorf("service.CreateOrder: %v: %w", err, models.ErrPaymentFailed)
	}
	if err := s.repo.SetPaymentStatus(ctx, order.ID, models.OrderStatusConfirmed, models.PaymentPaid); err != nil {
		log.Errorj(log.JSON{"action": "order.create", "order_id": order.ID, "error": err.Error(), "critical": "payment captured but not recorded"})
		return fmt.Errorf("service.CreateOrder: %w", err)
	}
	order.PaymentStatus = models.PaymentPaid
	return nil
}

// snapshotItems copies the requested lines. SHOP lines must carry a price;
// CUSTOM lines without one are stored at zero for the admin to quote.
func snapshotItems(in []models.OrderItemInput, requirePrice bool) ([]models.OrderItem, error) {
	out := make([]models.OrderItem, 0, len(in))
	for i, it := range in {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			return nil, invalid("items[%d].name is required", i)
		}
		if it.Quantity <= 0 {
			return nil, invalid("items[%d].quantity must be positive", i)
		}
		price := decimal.Zero
		switch {
		case it.Price != nil:
			price = *it.Price
		case requirePrice:
			return nil, invalid("items[%d].price is required", i)
		}
		if !models.IsMoney(price) {
			return nil, invalid("items[%d].price must be a non-negative amount in cents", i)
		}
		out = append(out, models.OrderItem{Name: name, Quantity: it.Quantity, Price: price})
	}
	return out, nil
}

// PriceOrder records the admin's quote for a CUSTOM order.
func (s *Service) PriceOrder(ctx context.Context, actor models.Actor, orderID string, req models.PriceOrderRequest) (*models.Order, error) {
	if req.ItemTotal == nil || req.DeliveryFee == nil {
		return nil, invalid("item_total and delivery_fee are required")
	}
	if !models.IsMoney(*req.ItemTotal) || !models.IsMoney(*req.DeliveryFee) {
		return nil, invalid("item_total and delivery_fee must be non-negative amounts in cents")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.PriceOrder: %w", err)
	}
	if err := auth.CanPerform(actor, auth.OpPriceOrder, auth.OrderResource(order, nil)); err != nil {
		return nil, err
	}

	return s.advance(ctx, actor, orderID, models.StatusChange{
		From:        order.Status,
		To:          models.OrderStatusPriced,
		ItemTotal:   decimal.NewNullDecimal(*req.ItemTotal),
		DeliveryFee: decimal.NewNullDecimal(*req.DeliveryFee),
		GrandTotal:  decimal.NewNullDecimal(req.ItemTotal.Add(*req.DeliveryFee)),
	})
}

// ConfirmPrice lets the customer accept the quote and pay for it. The
// payment claim is taken before charging, so concurrent confirms charge at
// most once.
func (s *Service) ConfirmPrice(ctx context.Context, actor models.Actor, orderID string, req models.PaymentRequest) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.ConfirmPrice: %w", err)
	}
	if err := auth.CanPerform(actor, auth.OpConfirmPrice, auth.OrderResource(order, nil)); err != nil {
		return nil, err
	}
	if !order.IsPriced() {
		return nil, fmt.Errorf("order %s has no quote: %w", orderID, models.ErrInvalidState)
	}

	if err := s.repo.ClaimPayment(ctx, orderID, models.OrderStatusPriced); err != nil {
		return nil, fmt.Errorf("service.ConfirmPrice: %w", err)
	}

	if order.GrandTotal.Decimal.IsPositive() {
		key := orderID + ":confirm:" + req.PaymentMethodID
		if _, err := s.paymentService.ProcessPayment(ctx, actor.ID, order.GrandTotal.Decimal, req.PaymentMethodID, key); err != nil {
			if perr := s.repo.SetPaymentStatus(ctx, orderID, models.OrderStatusPriced, models.PaymentFailed); perr != nil {
				log.Warnj(log.JSON{"action": "order.confirm_price", "order_id": orderID, "error": perr.Error()})
			}
			return nil, fmt.Errorf("service.ConfirmPrice: %v: %w", err, models.ErrPaymentFailed)
		}
	}

	updated, err := s.advance(ctx, actor, orderID, models.StatusChange{
		From:          models.OrderStatusPriced,
		To:            models.OrderStatusConfirmed,
		PaymentStatus: models.PaymentPaid,
		Claimed:       true,
	})
	if err != nil {
		log.Errorj(log.JSON{"action": "order.confirm_price", "order_id": orderID, "error": err.Error(), "critical": "payment captured without confirmation"})
		return nil, err
	}
	return updated, nil
}

// CancelOrder cancels an order that has not been handed to delivery yet.
// Cancelling twice fails with ErrInvalidState.
func (s *Service) CancelOrder(ctx context.Context, actor models.Actor, orderID string) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.CancelOrder: %w", err)
	}
	if err := auth.CanPerform(actor, auth.OpCancelOrder, auth.OrderResource(order, nil)); err != nil {
		return nil, err
	}
	return s.advance(ctx, actor, orderID, models.StatusChange{
		From: order.Status,
		To:   models.OrderStatusCancelled,
	})
}

// advance persists a guarded transition and announces it.
func (s *Service) advance(ctx context.Context, actor models.Actor, orderID string, change models.StatusChange) (*models.Order, error) {
	updated, err := s.repo.Transition(ctx, orderID, change)
	if err != nil {
		return nil, fmt.Errorf("service.advance %s->%s: %w", change.From, change.To, err)
	}
	s.events.Dispatch(notify.Event{
		Type:      notify.EventOrderStatusChanged,
		OrderID:   updated.ID,
		PartnerID: stringOf(updated.PartnerID),
		Status:    string(updated.Status),
		ActorID:   actor.ID,
	})
	return updated, nil
}

// GetOrderDetails returns an order with its parties joined, to the
// customer, the assigned delivery actor, the owning partner or an admin.
func (s *Service) GetOrderDetails(ctx context.Context, actor models.Actor, orderID string) (*models.Order, error) {
	order, err := s.repo.FindDetails(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.GetOrderDetails: %w", err)
	}

	var subs []*models.SubOrder
	if actor.Role == models.RolePartner {
		actor, err = s.resolvePartner(ctx, actor)
		if err != nil {
			return nil, err
		}
		if subs, err = s.subOrders.ListSubOrdersByOrder(ctx, orderID); err != nil {
			return nil, fmt.Errorf("service.GetOrderDetails: sub-orders: %w", err)
		}
	}
	if err := auth.CanPerform(actor, auth.OpViewOrder, auth.OrderResource(order, subs)); err != nil {
		return nil, err
	}
	return order, nil
}

// resolvePartner attaches the partner id. A user without a partner profile
// keeps an empty id and is denied by the guard.
func (s *Service) resolvePartner(ctx context.Context, actor models.Actor) (models.Actor, error) {
	resolved, err := s.resolver.WithPartner(ctx, actor)
	if errors.Is(err, models.ErrNotOnboarded) {
		return actor, nil
	}
	if err != nil {
		return actor, fmt.Errorf("service.resolvePartner: %w", err)
	}
	return resolved, nil
}

// GetCustomOrderStatus reports a CUSTOM order's progress. The quoted price
// is read from the first accepted sub-order; the admin's grand total is
// reported alongside it, unreconciled.
func (s *Service) GetCustomOrderStatus(ctx context.Context, actor models.Actor, orderID string) (*models.CustomOrderStatus, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.GetCustomOrderStatus: %w", err)
	}
	if err := auth.CanPerform(actor, auth.OpViewCustomStatus, auth.OrderResource(order, nil)); err != nil {
		return nil, err
	}
	if order.OrderType != models.OrderTypeCustom {
		return nil, fmt.Errorf("order %s is not a CUSTOM order: %w", orderID, models.ErrInvalidState)
	}

	subs, err := s.subOrders.ListSubOrdersByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.GetCustomOrderStatus: %w", err)
	}

	out := &models.CustomOrderStatus{
		OrderID:    order.ID,
		Status:     order.Status,
		GrandTotal: order.GrandTotal,
	}
	for _, sub := range subs {
		if sub.Status == models.SubOrderAccepted {
			out.SubOrderID = &sub.ID
			out.PartnerID = &sub.PartnerID
			out.QuotedPrice = sub.Price
			break
		}
	}
	return out, nil
}

// GetMyOrders lists the orders the actor owns, newest first. A partner user
// without a partner profile simply has no orders.
func (s *Service) GetMyOrders(ctx context.Context, actor models.Actor, page, limit int) ([]*models.Order, int, error) {
	if actor.Role == models.RolePartner {
		resolved, err := s.resolver.WithPartner(ctx, actor)
		if errors.Is(err, models.ErrNotOnboarded) {
			return []*models.Order{}, 0, nil
		}
		if err != nil {
			return nil, 0, fmt.Errorf("service.GetMyOrders: %w", err)
		}
		actor = resolved
	}

	scope, err := auth.ScopeOf(actor)
	if err != nil {
		return nil, 0, err
	}
	filter, err := auth.FilterFor(scope)
	if err != nil {
		return nil, 0, err
	}

	page, limit = normalizePage(page, limit, 20)
	orders, total, err := s.repo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("service.GetMyOrders: %w", err)
	}
	return orders, total, nil
}

// ListAllOrders lists all orders in the system, optionally by status.
func (s *Service) ListAllOrders(ctx context.Context, actor models.Actor, status models.OrderStatus, page, limit int) ([]*models.Order, int, error) {
	if err := auth.CanPerform(actor, auth.OpAdmin, auth.Resource{}); err != nil {
		return nil, 0, err
	}
	page, limit = normalizePage(page, limit, 50)
	return s.repo.List(ctx, models.OrderFilter{Status: status}, page, limit)
}

func normalizePage(page, limit, def int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = def
	}
	return page, limit
}

func stringOf(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
