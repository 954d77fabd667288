package order

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"local-delivery/internal/auth"
	"local-delivery/internal/models"
	"local-delivery/pkg/notify"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ----------------------------------------------------------------------------
// fakeRepo keeps orders in a map and applies transitions conditionally,
// like the SQL repository does.
// ----------------------------------------------------------------------------
type fakeRepo struct {
	mu     sync.Mutex
	orders map[string]*models.Order
	seq    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: make(map[string]*models.Order)}
}

func (f *fakeRepo) put(o *models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	cp := *o
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Date(2026, 1, 1, 0, 0, f.seq, 0, time.UTC)
	}
	cp.UpdatedAt = cp.CreatedAt
	f.orders[o.ID] = &cp
}

func (f *fakeRepo) Create(ctx context.Context, o *models.Order) error {
	f.put(o)
	return nil
}

func (f *fakeRepo) FindByID(ctx context.Context, orderID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeRepo) FindDetails(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := f.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	o.Customer = &models.Identity{ID: o.CustomerID, Name: "customer " + o.CustomerID}
	return o, nil
}

func (f *fakeRepo) List(ctx context.Context, filter models.OrderFilter, page, limit int) ([]*models.Order, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Order
	for _, o := range f.orders {
		if filter.CustomerID != "" && o.CustomerID != filter.CustomerID {
			continue
		}
		if filter.DeliveryPartnerID != "" && (o.DeliveryPartnerID == nil || *o.DeliveryPartnerID != filter.DeliveryPartnerID) {
			continue
		}
		if filter.PartnerID != "" && (o.PartnerID == nil || *o.PartnerID != filter.PartnerID) {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (f *fakeRepo) Transition(ctx context.Context, orderID string, change models.StatusChange) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if o.Status != change.From || (o.PaymentStatus == models.PaymentProcessing) != change.Claimed {
		return nil, models.ErrInvalidState
	}
	o.Status = change.To
	if change.ItemTotal.Valid {
		o.ItemTotal = change.ItemTotal
	}
	if change.DeliveryFee.Valid {
		o.DeliveryFee = change.DeliveryFee
	}
	if change.GrandTotal.Valid {
		o.GrandTotal = change.GrandTotal
	}
	if change.PaymentStatus != "" {
		o.PaymentStatus = change.PaymentStatus
	}
	if change.DeliveryPartnerID != "" {
		id := change.DeliveryPartnerID
		o.DeliveryPartnerID = &id
	}
	cp := *o
	return &cp, nil
}

func (f *fakeRepo) ClaimPayment(ctx context.Context, orderID string, expected models.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return models.ErrNotFound
	}
	if o.Status != expected || (o.PaymentStatus != models.PaymentPending && o.PaymentStatus != models.PaymentFailed) {
		return models.ErrInvalidState
	}
	o.PaymentStatus = models.PaymentProcessing
	return nil
}

func (f *fakeRepo) SetPaymentStatus(ctx context.Context, orderID string, expected models.OrderStatus, status models.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return models.ErrNotFound
	}
	if o.Status != expected || o.PaymentStatus != models.PaymentProcessing {
		return models.ErrInvalidState
	}
	o.PaymentStatus = status
	return nil
}

func (f *fakeRepo) Snapshots(ctx context.Context, filter models.OrderFilter) ([]models.OrderSnapshot, error) {
	orders, _, err := f.List(ctx, filter, 1, 1<<20)
	if err != nil {
		return nil, err
	}
	out := make([]models.OrderSnapshot, 0, len(orders))
	for _, o := range orders {
		out = append(out, models.OrderSnapshot{Status: o.Status, GrandTotal: o.GrandTotal, CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt})
	}
	return out, nil
}

type fakeSubOrders map[string][]*models.SubOrder

func (f fakeSubOrders) ListSubOrdersByOrder(ctx context.Context, orderID string) ([]*models.SubOrder, error) {
	return f[orderID], nil
}

type fakePartners map[string]*models.Partner

func (f fakePartners) FindPartnerByID(ctx context.Context, id string) (*models.Partner, error) {
	p, ok := f[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return p, nil
}

func (f fakePartners) FindPartnerByOwner(ctx context.Context, ownerID string) (*models.Partner, error) {
	for _, p := range f {
		if p.OwnerID == ownerID {
			return p, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f fakePartners) FindPartnerByPhone(ctx context.Context, phone string) (*models.Partner, error) {
	for _, p := range f {
		if p.Phone == phone {
			return p, nil
		}
	}
	return nil, models.ErrNotFound
}

// fakePayment records charges. When hold is set, each charge signals
// entered and waits for hold to close before completing.
type fakePayment struct {
	mu      sync.Mutex
	charged []decimal.Decimal
	keys    []string
	fail    bool
	entered chan struct{}
	hold    chan struct{}
}

func (f *fakePayment) ProcessPayment(ctx context.Context, userID string, amount decimal.Decimal, paymentMethodID, idempotencyKey string) (string, error) {
	if f.hold != nil {
		f.entered <- struct{}{}
		<-f.hold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("card declined")
	}
	f.charged = append(f.charged, amount)
	f.keys = append(f.keys, idempotencyKey)
	return "pi_test", nil
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(ctx context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Close() error { return nil }

type fixture struct {
	svc      *Service
	repo     *fakeRepo
	subs     fakeSubOrders
	partners fakePartners
	payments *fakePayment
	events   *recorder
	dispatch *notify.Dispatcher
}

func newFixture() *fixture {
	f := &fixture{
		repo: newFakeRepo(),
		subs: fakeSubOrders{},
		partners: fakePartners{
			"P1": {ID: "P1", OwnerID: "owner-1", Phone: "555-0101", Name: "Bakery", Status: models.PartnerApproved, IsOpen: true},
			"P2": {ID: "P2", OwnerID: "owner-2", Name: "Closed Cafe", Status: models.PartnerApproved, IsOpen: false},
			"P3": {ID: "P3", OwnerID: "owner-3", Name: "New Shop", Status: models.PartnerPending, IsOpen: true},
		},
		payments: &fakePayment{},
		events:   &recorder{},
	}
	f.dispatch = notify.NewDispatcher(f.events)
	f.svc = NewService(f.repo, f.subs, f.partners, auth.NewPartnerResolver(f.partners), f.payments, f.dispatch, decimal.NewFromInt(25))
	return f
}

var (
	customer = models.Actor{ID: "C1", Role: models.RoleCustomer}
	stranger = models.Actor{ID: "C2", Role: models.RoleCustomer}
	admin    = models.Actor{ID: "A1", Role: models.RoleAdmin}
	driver   = models.Actor{ID: "D1", Role: models.RoleDelivery}
)

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func (f *fixture) customOrder(t *testing.T) *models.Order {
	t.Helper()
	o, err := f.svc.CreateOrder(context.Background(), customer, models.CreateOrderRequest{
		OrderType:       models.OrderTypeCustom,
		DeliveryAddress: "12 Lake Rd",
		Note:            "2 idli, 1 vada",
	})
	require.NoError(t, err)
	return o
}

func (f *fixture) seed(id string, status models.OrderStatus) {
	f.repo.put(&models.Order{
		ID:            id,
		OrderType:     models.OrderTypeCustom,
		CustomerID:    customer.ID,
		Status:        status,
		PaymentStatus: models.PaymentPending,
	})
}

func TestCustomOrderHappyPath(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o := f.customOrder(t)
	assert.Equal(t, models.OrderStatusCreated, o.Status)
	assert.Equal(t, models.PaymentPending, o.PaymentStatus)
	assert.False(t, o.GrandTotal.Valid)

	priced, err := f.svc.PriceOrder(ctx, admin, o.ID, models.PriceOrderRequest{ItemTotal: dec(150), DeliveryFee: dec(30)})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPriced, priced.Status)
	assert.True(t, priced.GrandTotal.Decimal.Equal(decimal.NewFromInt(180)))

	confirmed, err := f.svc.ConfirmPrice(ctx, customer, o.ID, models.PaymentRequest{PaymentMethodID: "pm_card_visa"})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, confirmed.Status)
	assert.Equal(t, models.PaymentPaid, confirmed.PaymentStatus)
	require.Len(t, f.payments.charged, 1)
	assert.True(t, f.payments.charged[0].Equal(decimal.NewFromInt(180)))
	assert.Equal(t, []string{o.ID + ":confirm:pm_card_visa"}, f.payments.keys)

	f.dispatch.Wait()
	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	require.Len(t, f.events.events, 3)
	assert.Equal(t, notify.EventOrderCreated, f.events.events[0].Type)
	assert.Equal(t, string(models.OrderStatusPriced), f.events.events[1].Status)
	assert.Equal(t, string(models.OrderStatusConfirmed), f.events.events[2].Status)
}

func TestShopOrderIsConfirmedImmediately(t *testing.T) {
	f := newFixture()

	o, err := f.svc.CreateOrder(context.Background(), customer, models.CreateOrderRequest{
		OrderType:       models.OrderTypeShop,
		PartnerID:       "P1",
		DeliveryAddress: "12 Lake Rd",
		Items:           []models.OrderItemInput{{Name: "Croissant", Quantity: 2, Price: dec(60)}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, o.Status)
	assert.Equal(t, models.PaymentPaid, o.PaymentStatus)
	stored, _ := f.repo.FindByID(context.Background(), o.ID)
	assert.Equal(t, models.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, []string{o.ID + ":create"}, f.payments.keys)
	assert.True(t, o.ItemTotal.Decimal.Equal(decimal.NewFromInt(120)))
	assert.True(t, o.GrandTotal.Decimal.Equal(decimal.NewFromInt(145)))
	require.NotNil(t, o.PartnerID)
	assert.Equal(t, "P1", *o.PartnerID)

	// A SHOP order can never be priced.
	_, err = f.svc.PriceOrder(context.Background(), admin, o.ID, models.PriceOrderRequest{ItemTotal: dec(1), DeliveryFee: dec(1)})
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestShopOrderRejections(t *testing.T) {
	items := []models.OrderItemInput{{Name: "Tea", Quantity: 1, Price: dec(10)}}
	subCent := decimal.RequireFromString("10.005")
	tests := []struct {
		name string
		req  models.CreateOrderRequest
		want error
	}{
		{"missing partner", models.CreateOrderRequest{OrderType: models.OrderTypeShop, DeliveryAddress: "x", Items: items}, models.ErrValidation},
		{"no items", models.CreateOrderRequest{OrderType: models.OrderTypeShop, PartnerID: "P1", DeliveryAddress: "x"}, models.ErrValidation},
		{"blank address", models.CreateOrderRequest{OrderType: models.OrderTypeShop, PartnerID: "P1", DeliveryAddress: "  ", Items: items}, models.ErrValidation},
		{"negative price", models.CreateOrderRequest{OrderType: models.OrderTypeShop, PartnerID: "P1", DeliveryAddress: "x",
			Items: []models.OrderItemInput{{Name: "Tea", Quantity: 1, Price: dec(-1)}}}, models.ErrValidation},
		{"missing price", models.CreateOrderRequest{OrderType: models.OrderTypeShop, PartnerID: "P1", DeliveryAddress: "x",
			Items: []models.OrderItemInput{{Name: "Croissant", Quantity: 2}}}, models.ErrValidation},
		{"sub-cent price", models.CreateOrderRequest{OrderType: models.OrderTypeShop, PartnerID: "P1", DeliveryAddress: "x",
			Items: []models.OrderItemInput{{Name: "Tea", Quantity: 1, Price: &subCent}}}, models.ErrValidation},
		{"unknown partner", models.CreateOrderRequest{OrderType: models.OrderTypeShop, PartnerID: "nope", DeliveryAddress: "x", Items: items}, models.ErrNotFound},
		{"closed partner", models.CreateOrderRequest{OrderType: models.OrderTypeShop, PartnerID: "P2", DeliveryAddress: "x", Items: items}, models.ErrInvalidState},
		{"unapproved partner", models.CreateOrderRequest{OrderType: models.OrderTypeShop, PartnerID: "P3", DeliveryAddress: "x", Items: items}, models.ErrInvalidState},
		{"bad type", models.CreateOrderRequest{OrderType: "RENTAL", DeliveryAddress: "x"}, models.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.CreateOrder(context.Background(), customer, tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.repo.orders)
			assert.Empty(t, f.payments.charged)
		})
	}
}

func TestCustomOrderItemsWithoutPrice(t *testing.T) {
	f := newFixture()
	o, err := f.svc.CreateOrder(context.Background(), customer, models.CreateOrderRequest{
		OrderType:       models.OrderTypeCustom,
		DeliveryAddress: "12 Lake Rd",
		Items:           []models.OrderItemInput{{Name: "idli", Quantity: 2}},
	})
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.True(t, o.Items[0].Price.IsZero())
}

func TestShopOrderPaymentFailure(t *testing.T) {
	f := newFixture()
	f.payments.fail = true

	_, err := f.svc.CreateOrder(context.Background(), customer, models.CreateOrderRequest{
		OrderType:       models.OrderTypeShop,
		PartnerID:       "P1",
		DeliveryAddress: "12 Lake Rd",
		Items:           []models.OrderItemInput{{Name: "Croissant", Quantity: 1, Price: dec(60)}},
	})
	assert.ErrorIs(t, err, models.ErrPaymentFailed)

	require.Len(t, f.repo.orders, 1)
	for _, stored := range f.repo.orders {
		assert.Equal(t, models.OrderStatusCancelled, stored.Status)
		assert.Equal(t, models.PaymentFailed, stored.PaymentStatus)
	}
}

func TestCreateOrderRequiresCustomer(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateOrder(context.Background(), admin, models.CreateOrderRequest{OrderType: models.OrderTypeCustom, DeliveryAddress: "x"})
	assert.ErrorIs(t, err, models.ErrWrongRole)

	_, err = f.svc.CreateOrder(context.Background(), models.Actor{}, models.CreateOrderRequest{OrderType: models.OrderTypeCustom, DeliveryAddress: "x"})
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestPriceOrderOnlyFromCreated(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o := f.customOrder(t)

	_, err := f.svc.PriceOrder(ctx, customer, o.ID, models.PriceOrderRequest{ItemTotal: dec(1), DeliveryFee: dec(1)})
	assert.ErrorIs(t, err, models.ErrWrongRole)

	_, err = f.svc.PriceOrder(ctx, admin, o.ID, models.PriceOrderRequest{ItemTotal: dec(-1), DeliveryFee: dec(1)})
	assert.ErrorIs(t, err, models.ErrValidation)

	subCent := decimal.RequireFromString("99.999")
	_, err = f.svc.PriceOrder(ctx, admin, o.ID, models.PriceOrderRequest{ItemTotal: &subCent, DeliveryFee: dec(1)})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.svc.PriceOrder(ctx, admin, o.ID, models.PriceOrderRequest{ItemTotal: dec(100), DeliveryFee: dec(20)})
	require.NoError(t, err)

	_, err = f.svc.PriceOrder(ctx, admin, o.ID, models.PriceOrderRequest{ItemTotal: dec(90), DeliveryFee: dec(20)})
	assert.ErrorIs(t, err, models.ErrInvalidState)

	stored, _ := f.repo.FindByID(ctx, o.ID)
	assert.True(t, stored.GrandTotal.Decimal.Equal(decimal.NewFromInt(120)))
}

func TestConfirmByNonOwnerLeavesOrderUnchanged(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o := f.customOrder(t)
	_, err := f.svc.PriceOrder(ctx, admin, o.ID, models.PriceOrderRequest{ItemTotal: dec(150), DeliveryFee: dec(30)})
	require.NoError(t, err)

	_, err = f.svc.ConfirmPrice(ctx, stranger, o.ID, models.PaymentRequest{})
	assert.ErrorIs(t, err, models.ErrNotOwner)
	assert.ErrorIs(t, err, models.ErrForbidden)

	stored, _ := f.repo.FindByID(ctx, o.ID)
	assert.Equal(t, models.OrderStatusPriced, stored.Status)
	assert.Empty(t, f.payments.charged)
}

func TestConfirmBeforePricing(t *testing.T) {
	f := newFixture()
	o := f.customOrder(t)

	_, err := f.svc.ConfirmPrice(context.Background(), customer, o.ID, models.PaymentRequest{})
	assert.ErrorIs(t, err, models.ErrInvalidState)
	assert.Empty(t, f.payments.charged)
}

func TestConfirmPaymentFailureMarksPayment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o := f.customOrder(t)
	_, err := f.svc.PriceOrder(ctx, admin, o.ID, models.PriceOrderRequest{ItemTotal: dec(150), DeliveryFee: dec(30)})
	require.NoError(t, err)

	f.payments.fail = true
	_, err = f.svc.ConfirmPrice(ctx, customer, o.ID, models.PaymentRequest{})
	assert.ErrorIs(t, err, models.ErrPaymentFailed)

	stored, _ := f.repo.FindByID(ctx, o.ID)
	assert.Equal(t, models.OrderStatusPriced, stored.Status)
	assert.Equal(t, models.PaymentFailed, stored.PaymentStatus)

	// A failed payment can be retried.
	f.payments.fail = false
	confirmed, err := f.svc.ConfirmPrice(ctx, customer, o.ID, models.PaymentRequest{PaymentMethodID: "pm_other"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, confirmed.PaymentStatus)
}

func TestConfirmWhileChargeInFlight(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o := f.customOrder(t)
	_, err := f.svc.PriceOrder(ctx, admin, o.ID, models.PriceOrderRequest{ItemTotal: dec(150), DeliveryFee: dec(30)})
	require.NoError(t, err)

	f.payments.entered = make(chan struct{}, 1)
	f.payments.hold = make(chan struct{})
	first := make(chan error, 1)
	go func() {
		_, err := f.svc.ConfirmPrice(ctx, customer, o.ID, models.PaymentRequest{PaymentMethodID: "pm_card_visa"})
		first <- err
	}()
	<-f.payments.entered

	_, err = f.svc.ConfirmPrice(ctx, customer, o.ID, models.PaymentRequest{PaymentMethodID: "pm_card_visa"})
	assert.ErrorIs(t, err, models.ErrInvalidState)
	_, err = f.svc.CancelOrder(ctx, customer, o.ID)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	close(f.payments.hold)
	require.NoError(t, <-first)
	assert.Len(t, f.payments.charged, 1)

	stored, _ := f.repo.FindByID(ctx, o.ID)
	assert.Equal(t, models.OrderStatusConfirmed, stored.Status)
	assert.Equal(t, models.PaymentPaid, stored.PaymentStatus)
}

func TestConcurrentConfirmChargesOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o := f.customOrder(t)
	_, err := f.svc.PriceOrder(ctx, admin, o.ID, models.PriceOrderRequest{ItemTotal: dec(150), DeliveryFee: dec(30)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ConfirmPrice(ctx, customer, o.ID, models.PaymentRequest{PaymentMethodID: "pm_card_visa"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else {
				assert.ErrorIs(t, err, models.ErrInvalidState)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Len(t, f.payments.charged, 1)
}

func TestCancelOrder(t *testing.T) {
	cancellable := []models.OrderStatus{models.OrderStatusCreated, models.OrderStatusPriced, models.OrderStatusConfirmed}
	for _, status := range cancellable {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture()
			f.seed("o1", status)
			o, err := f.svc.CancelOrder(context.Background(), customer, "o1")
			require.NoError(t, err)
			assert.Equal(t, models.OrderStatusCancelled, o.Status)
		})
	}

	blocked := []models.OrderStatus{models.OrderStatusAssigned, models.OrderStatusPickedUp, models.OrderStatusDelivered}
	for _, status := range blocked {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture()
			f.seed("o1", status)
			_, err := f.svc.CancelOrder(context.Background(), customer, "o1")
			assert.ErrorIs(t, err, models.ErrInvalidState)
			stored, _ := f.repo.FindByID(context.Background(), "o1")
			assert.Equal(t, status, stored.Status)
		})
	}
}

func TestCancelTwiceFails(t *testing.T) {
	f := newFixture()
	f.seed("o1", models.OrderStatusCreated)

	_, err := f.svc.CancelOrder(context.Background(), customer, "o1")
	require.NoError(t, err)
	_, err = f.svc.CancelOrder(context.Background(), customer, "o1")
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

func TestCancelByStranger(t *testing.T) {
	f := newFixture()
	f.seed("o1", models.OrderStatusCreated)

	_, err := f.svc.CancelOrder(context.Background(), stranger, "o1")
	assert.ErrorIs(t, err, models.ErrNotOwner)

	_, err = f.svc.CancelOrder(context.Background(), customer, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestConcurrentCancelHasOneWinner(t *testing.T) {
	f := newFixture()
	f.seed("o1", models.OrderStatusConfirmed)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, conflicts := 0, 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CancelOrder(context.Background(), customer, "o1")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if errors.Is(err, models.ErrInvalidState) {
				conflicts++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, 7, conflicts)
}

func TestGetOrderDetailsVisibility(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p1 := "P1"
	d1 := "D1"
	f.repo.put(&models.Order{ID: "o1", OrderType: models.OrderTypeShop, CustomerID: customer.ID, PartnerID: &p1,
		DeliveryPartnerID: &d1, Status: models.OrderStatusAssigned})
	f.seed("o2", models.OrderStatusCreated)
	f.subs["o2"] = []*models.SubOrder{{ID: "s1", OrderID: "o2", PartnerID: "P1", Status: models.SubOrderCreated}}

	partnerOwner := models.Actor{ID: "owner-1", Role: models.RolePartner}
	otherPartner := models.Actor{ID: "owner-2", Role: models.RolePartner}
	unboarded := models.Actor{ID: "nobody", Role: models.RolePartner}

	tests := []struct {
		name  string
		actor models.Actor
		order string
		want  error
	}{
		{"customer", customer, "o1", nil},
		{"stranger", stranger, "o1", models.ErrForbidden},
		{"delivery", driver, "o1", nil},
		{"other delivery", models.Actor{ID: "D2", Role: models.RoleDelivery}, "o1", models.ErrForbidden},
		{"partner", partnerOwner, "o1", nil},
		{"partner by sub-order", partnerOwner, "o2", nil},
		{"other partner", otherPartner, "o1", models.ErrForbidden},
		{"partner without profile", unboarded, "o1", models.ErrForbidden},
		{"admin", admin, "o2", nil},
		{"missing", admin, "o9", models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := f.svc.GetOrderDetails(ctx, tt.actor, tt.order)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, o.Customer)
		})
	}
}

func TestGetCustomOrderStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o := f.customOrder(t)
	_, err := f.svc.PriceOrder(ctx, admin, o.ID, models.PriceOrderRequest{ItemTotal: dec(150), DeliveryFee: dec(30)})
	require.NoError(t, err)
	f.subs[o.ID] = []*models.SubOrder{
		{ID: "s1", OrderID: o.ID, PartnerID: "P2", Status: models.SubOrderRejected},
		{ID: "s2", OrderID: o.ID, PartnerID: "P1", Status: models.SubOrderAccepted, Price: decimal.NewNullDecimal(decimal.NewFromInt(140))},
	}

	st, err := f.svc.GetCustomOrderStatus(ctx, customer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPriced, st.Status)
	require.NotNil(t, st.SubOrderID)
	assert.Equal(t, "s2", *st.SubOrderID)
	assert.True(t, st.QuotedPrice.Decimal.Equal(decimal.NewFromInt(140)))
	assert.True(t, st.GrandTotal.Decimal.Equal(decimal.NewFromInt(180)))

	_, err = f.svc.GetCustomOrderStatus(ctx, stranger, o.ID)
	assert.ErrorIs(t, err, models.ErrNotOwner)
}

func TestGetMyOrdersScopes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p1 := "P1"
	d1 := "D1"
	f.repo.put(&models.Order{ID: "o1", CustomerID: "C1", PartnerID: &p1, Status: models.OrderStatusConfirmed})
	f.repo.put(&models.Order{ID: "o2", CustomerID: "C1", DeliveryPartnerID: &d1, Status: models.OrderStatusAssigned})
	f.repo.put(&models.Order{ID: "o3", CustomerID: "C2", Status: models.OrderStatusCreated})

	ids := func(orders []*models.Order) []string {
		out := make([]string, 0, len(orders))
		for _, o := range orders {
			out = append(out, o.ID)
		}
		return out
	}

	orders, total, err := f.svc.GetMyOrders(ctx, customer, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []string{"o2", "o1"}, ids(orders))

	orders, _, err = f.svc.GetMyOrders(ctx, driver, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"o2"}, ids(orders))

	orders, _, err = f.svc.GetMyOrders(ctx, models.Actor{ID: "someone", Role: models.RolePartner, Phone: "555-0101"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, ids(orders))

	orders, total, err = f.svc.GetMyOrders(ctx, models.Actor{ID: "nobody", Role: models.RolePartner}, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Zero(t, total)

	_, _, err = f.svc.GetMyOrders(ctx, admin, 1, 10)
	assert.ErrorIs(t, err, models.ErrWrongRole)
}

func TestListAllOrders(t *testing.T) {
	f := newFixture()
	f.seed("o1", models.OrderStatusCreated)
	f.seed("o2", models.OrderStatusCancelled)

	orders, total, err := f.svc.ListAllOrders(context.Background(), admin, models.OrderStatusCreated, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "o1", orders[0].ID)

	_, _, err = f.svc.ListAllOrders(context.Background(), customer, "", 1, 10)
	assert.ErrorIs(t, err, models.ErrWrongRole)
}
