package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"local-delivery/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryInterface defines the contract for the order repository.
type RepositoryInterface interface {
	Create(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, orderID string) (*models.Order, error)
	FindDetails(ctx context.Context, orderID string) (*models.Order, error)
	List(ctx context.Context, f models.OrderFilter, page, limit int) ([]*models.Order, int, error)
	Transition(ctx context.Context, orderID string, change models.StatusChange) (*models.Order, error)
	ClaimPayment(ctx context.Context, orderID string, expected models.OrderStatus) error
	SetPaymentStatus(ctx context.Context, orderID string, expected models.OrderStatus, status models.PaymentStatus) error
	Snapshots(ctx context.Context, f models.OrderFilter) ([]models.OrderSnapshot, error)
}

// Repository implements the RepositoryInterface.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new order repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const orderColumns = `o.id, o.order_type, o.customer_id, o.partner_id, o.delivery_partner_id,
	o.delivery_address, o.note, o.items, o.item_total, o.delivery_fee, o.grand_total,
	o.payment_status, o.status, o.created_at, o.updated_at`

const partyColumns = `cu.id, cu.name, cu.phone, p.id, p.name, p.phone, du.id, du.name, du.phone`

const partyJoins = `
	LEFT JOIN users cu ON cu.id = o.customer_id
	LEFT JOIN partners p ON p.id = o.partner_id
	LEFT JOIN users du ON du.id = o.delivery_partner_id`

func orderDest(o *models.Order) []any {
	return []any{
		&o.ID, &o.OrderType, &o.CustomerID, &o.PartnerID, &o.DeliveryPartnerID,
		&o.DeliveryAddress, &o.Note, &o.Items, &o.ItemTotal, &o.DeliveryFee, &o.GrandTotal,
		&o.PaymentStatus, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	}
}

// scanOrder is a helper function to scan a row into an Order model.
func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	if err := row.Scan(orderDest(&o)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	return &o, nil
}

// party collects one nullable LEFT JOIN side.
type party struct {
	id, name, phone *string
}

func (p *party) dest() []any { return []any{&p.id, &p.name, &p.phone} }

// identity returns nil for an orphaned reference so dirty rows still render.
func (p *party) identity() *models.Identity {
	if p.id == nil {
		return nil
	}
	id := &models.Identity{ID: *p.id}
	if p.name != nil {
		id.Name = *p.name
	}
	if p.phone != nil {
		id.Phone = *p.phone
	}
	return id
}

func scanOrderWithParties(row pgx.Row) (*models.Order, error) {
	var o models.Order
	var cu, pa, du party
	dest := orderDest(&o)
	dest = append(dest, cu.dest()...)
	dest = append(dest, pa.dest()...)
	dest = append(dest, du.dest()...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	o.Customer = cu.identity()
	o.Partner = pa.identity()
	o.DeliveryPartner = du.identity()
	return &o, nil
}

// Create inserts a new order. The store stamps both timestamps.
func (r *Repository) Create(ctx context.Context, o *models.Order) error {
	query := `
		INSERT INTO orders (id, order_type, customer_id, partner_id, delivery_address, note, items,
			item_total, delivery_fee, grand_total, payment_status, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	items := o.Items
	if items == nil {
		items = []models.OrderItem{}
	}
	err := r.db.QueryRow(ctx, query,
		o.ID, o.OrderType, o.CustomerID, o.PartnerID, o.DeliveryAddress, o.Note, items,
		o.ItemTotal, o.DeliveryFee, o.GrandTotal, o.PaymentStatus, o.Status,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository.CreateOrder: %w", err)
	}
	return nil
}

// FindByID retrieves a single order by its ID.
func (r *Repository) FindByID(ctx context.Context, orderID string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`
	o, err := scanOrder(r.db.QueryRow(ctx, query, orderID))
	if err != nil {
		return nil, fmt.Errorf("repository.FindByID: %w", err)
	}
	return o, nil
}

// FindDetails retrieves an order with its customer, partner and delivery
// actor joined for display.
func (r *Repository) FindDetails(ctx context.Context, orderID string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + `, ` + partyColumns + ` FROM orders o` + partyJoins + ` WHERE o.id = $1`
	o, err := scanOrderWithParties(r.db.QueryRow(ctx, query, orderID))
	if err != nil {
		return nil, fmt.Errorf("repository.FindDetails: %w", err)
	}
	return o, nil
}

func whereClause(f models.OrderFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if f.CustomerID != "" {
		add("o.customer_id", f.CustomerID)
	}
	if f.DeliveryPartnerID != "" {
		add("o.delivery_partner_id", f.DeliveryPartnerID)
	}
	if f.PartnerID != "" {
		add("o.partner_id", f.PartnerID)
	}
	if f.Status != "" {
		add("o.status", f.Status)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List retrieves matching orders newest first, with related parties joined.
func (r *Repository) List(ctx context.Context, f models.OrderFilter, page, limit int) ([]*models.Order, int, error) {
	where, args := whereClause(f)
	offset := (page - 1) * limit
	query := fmt.Sprintf(`SELECT %s, %s FROM orders o %s %s
		ORDER BY o.created_at DESC, o.id
		LIMIT $%d OFFSET $%d`, orderColumns, partyColumns, partyJoins, where, len(args)+1, len(args)+2)

	rows, err := r.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.List.Query: %w", err)
	}
	defer rows.Close()

	orders := []*models.Order{}
	for rows.Next() {
		o, err := scanOrderWithParties(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository.List.scanOrder: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repository.List.rows: %w", err)
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM orders o"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository.List.Count: %w", err)
	}
	return orders, total, nil
}

// Transition applies change only if the order is still in change.From.
// When no row matches, the order is re-read to tell a missing order
// (ErrNotFound) from a lost race or illegal edge (ErrInvalidState).
func (r *Repository) Transition(ctx context.Context, orderID string, change models.StatusChange) (*models.Order, error) {
	query := `
		UPDATE orders o
		SET status = $3,
			item_total = COALESCE($4, o.item_total),
			delivery_fee = COALESCE($5, o.delivery_fee),
			grand_total = COALESCE($6, o.grand_total),
			payment_status = COALESCE(NULLIF($7, ''), o.payment_status),
			delivery_partner_id = COALESCE(NULLIF($8, ''), o.delivery_partner_id),
			updated_at = now()
		WHERE o.id = $1 AND o.status = $2 AND (o.payment_status = 'PROCESSING') = $9
		RETURNING ` + orderColumns

	o, err := scanOrder(r.db.QueryRow(ctx, query,
		orderID, change.From, change.To,
		change.ItemTotal, change.DeliveryFee, change.GrandTotal,
		string(change.PaymentStatus), change.DeliveryPartnerID, change.Claimed,
	))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("repository.Transition: %w", err)
	}
	return nil, r.explainMiss(ctx, "repository.Transition", orderID, change.From)
}

// explainMiss re-reads an order after a conditional update matched nothing.
func (r *Repository) explainMiss(ctx context.Context, op, orderID string, expected models.OrderStatus) error {
	var current models.OrderStatus
	var payment models.PaymentStatus
	err := r.db.QueryRow(ctx, `SELECT status, payment_status FROM orders WHERE id = $1`, orderID).Scan(&current, &payment)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: recheck: %w", op, err)
	}
	return fmt.Errorf("%s: order is %s (payment %s), expected %s: %w", op, current, payment, expected, models.ErrInvalidState)
}

// ClaimPayment marks the order's payment PROCESSING. Only one caller can
// hold the claim; the rest fail with ErrInvalidState.
func (r *Repository) ClaimPayment(ctx context.Context, orderID string, expected models.OrderStatus) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE orders SET payment_status = 'PROCESSING', updated_at = now()
		WHERE id = $1 AND status = $2 AND payment_status IN ('PENDING', 'FAILED')`, orderID, expected)
	if err != nil {
		return fmt.Errorf("repository.ClaimPayment: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return r.explainMiss(ctx, "repository.ClaimPayment", orderID, expected)
	}
	return nil
}

// SetPaymentStatus settles a claimed payment while the order is still in
// the expected status.
func (r *Repository) SetPaymentStatus(ctx context.Context, orderID string, expected models.OrderStatus, status models.PaymentStatus) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE orders SET payment_status = $3, updated_at = now()
		WHERE id = $1 AND status = $2 AND payment_status = 'PROCESSING'`, orderID, expected, status)
	if err != nil {
		return fmt.Errorf("repository.SetPaymentStatus: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return r.explainMiss(ctx, "repository.SetPaymentStatus", orderID, expected)
	}
	return nil
}

// Snapshots returns the fields aggregation needs for every matching order.
func (r *Repository) Snapshots(ctx context.Context, f models.OrderFilter) ([]models.OrderSnapshot, error) {
	where, args := whereClause(f)
	rows, err := r.db.Query(ctx, `SELECT o.status, o.grand_total, o.created_at, o.updated_at FROM orders o`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("repository.Snapshots.Query: %w", err)
	}
	defer rows.Close()

	var out []models.OrderSnapshot
	for rows.Next() {
		var s models.OrderSnapshot
		if err := rows.Scan(&s.Status, &s.GrandTotal, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repository.Snapshots.Scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository.Snapshots.rows: %w", err)
	}
	return out, nil
}
