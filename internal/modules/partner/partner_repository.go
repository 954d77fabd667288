package partner

import (
	"context"
	"errors"
	"fmt"

	"local-delivery/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// RepositoryInterface defines the partner and sub-order store.
type RepositoryInterface interface {
	FindPartnerByID(ctx context.Context, partnerID string) (*models.Partner, error)
	FindPartnerByOwner(ctx context.Context, ownerID string) (*models.Partner, error)
	FindPartnerByPhone(ctx context.Context, phone string) (*models.Partner, error)
	ListPartners(ctx context.Context, status models.PartnerStatus) ([]*models.Partner, error)
	SetPartnerStatus(ctx context.Context, partnerID string, status models.PartnerStatus) (*models.Partner, error)
	SetPartnerOpen(ctx context.Context, partnerID string, open bool) (*models.Partner, error)

	CreateSubOrder(ctx context.Context, s *models.SubOrder) error
	FindSubOrderByID(ctx context.Context, subOrderID string) (*models.SubOrder, error)
	ListSubOrdersByOrder(ctx context.Context, orderID string) ([]*models.SubOrder, error)
	ListSubOrdersByPartner(ctx context.Context, partnerID string) ([]*models.SubOrder, error)
	// UpdateSubOrderStatus applies only while the stored status equals
	// expected. A valid price is stored alongside.
	UpdateSubOrderStatus(ctx context.Context, subOrderID string, expected, next models.SubOrderStatus, price decimal.NullDecimal) (*models.SubOrder, error)
}

// Repository implements RepositoryInterface on PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const partnerColumns = `id, owner_id, name, COALESCE(phone, ''), status, is_open, created_at, updated_at`

func scanPartner(row pgx.Row) (*models.Partner, error) {
	p := &models.Partner{}
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Phone, &p.Status, &p.IsOpen, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *Repository) findPartner(ctx context.Context, op, where string, arg any) (*models.Partner, error) {
	p, err := scanPartner(r.db.QueryRow(ctx, `SELECT `+partnerColumns+` FROM partners WHERE `+where+` ORDER BY created_at LIMIT 1`, arg))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	return p, err
}

func (r *Repository) FindPartnerByID(ctx context.Context, partnerID string) (*models.Partner, error) {
	return r.findPartner(ctx, "FindPartnerByID", "id = $1", partnerID)
}

func (r *Repository) FindPartnerByOwner(ctx context.Context, ownerID string) (*models.Partner, error) {
	return r.findPartner(ctx, "FindPartnerByOwner", "owner_id = $1", ownerID)
}

func (r *Repository) FindPartnerByPhone(ctx context.Context, phone string) (*models.Partner, error) {
	return r.findPartner(ctx, "FindPartnerByPhone", "phone = $1", phone)
}

func (r *Repository) ListPartners(ctx context.Context, status models.PartnerStatus) ([]*models.Partner, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+partnerColumns+` FROM partners WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC`,
		string(status))
	if err != nil {
		return nil, fmt.Errorf("ListPartners failed: %w", err)
	}
	defer rows.Close()

	partners := []*models.Partner{}
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, fmt.Errorf("ListPartners scan: %w", err)
		}
		partners = append(partners, p)
	}
	return partners, rows.Err()
}

func (r *Repository) SetPartnerStatus(ctx context.Context, partnerID string, status models.PartnerStatus) (*models.Partner, error) {
	p, err := scanPartner(r.db.QueryRow(ctx,
		`UPDATE partners SET status = $2, updated_at = now() WHERE id = $1 RETURNING `+partnerColumns,
		partnerID, status))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("SetPartnerStatus failed: %w", err)
	}
	return p, err
}

func (r *Repository) SetPartnerOpen(ctx context.Context, partnerID string, open bool) (*models.Partner, error) {
	p, err := scanPartner(r.db.QueryRow(ctx,
		`UPDATE partners SET is_open = $2, updated_at = now() WHERE id = $1 RETURNING `+partnerColumns,
		partnerID, open))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("SetPartnerOpen failed: %w", err)
	}
	return p, err
}

const subOrderColumns = `id, order_id, partner_id, items, status, price, created_at, updated_at`

func scanSubOrder(row pgx.Row) (*models.SubOrder, error) {
	s := &models.SubOrder{}
	if err := row.Scan(&s.ID, &s.OrderID, &s.PartnerID, &s.Items, &s.Status, &s.Price, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *Repository) CreateSubOrder(ctx context.Context, s *models.SubOrder) error {
	const query = `
		INSERT INTO sub_orders (id, order_id, partner_id, items, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`
	if err := r.db.QueryRow(ctx, query, s.ID, s.OrderID, s.PartnerID, s.Items, s.Status).Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
		return fmt.Errorf("CreateSubOrder failed: %w", err)
	}
	return nil
}

func (r *Repository) FindSubOrderByID(ctx context.Context, subOrderID string) (*models.SubOrder, error) {
	s, err := scanSubOrder(r.db.QueryRow(ctx, `SELECT `+subOrderColumns+` FROM sub_orders WHERE id = $1`, subOrderID))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("FindSubOrderByID failed: %w", err)
	}
	return s, err
}

func (r *Repository) listSubOrders(ctx context.Context, op, query string, arg any) ([]*models.SubOrder, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	defer rows.Close()

	subs := []*models.SubOrder{}
	for rows.Next() {
		s, err := scanSubOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// ListSubOrdersByOrder returns an order's sub-orders, oldest first.
func (r *Repository) ListSubOrdersByOrder(ctx context.Context, orderID string) ([]*models.SubOrder, error) {
	return r.listSubOrders(ctx, "ListSubOrdersByOrder",
		`SELECT `+subOrderColumns+` FROM sub_orders WHERE order_id = $1 ORDER BY created_at, id`, orderID)
}

// ListSubOrdersByPartner returns a partner's sub-orders, newest first.
func (r *Repository) ListSubOrdersByPartner(ctx context.Context, partnerID string) ([]*models.SubOrder, error) {
	return r.listSubOrders(ctx, "ListSubOrdersByPartner",
		`SELECT `+subOrderColumns+` FROM sub_orders WHERE partner_id = $1 ORDER BY created_at DESC`, partnerID)
}

func (r *Repository) UpdateSubOrderStatus(ctx context.Context, subOrderID string, expected, next models.SubOrderStatus, price decimal.NullDecimal) (*models.SubOrder, error) {
	const query = `
		UPDATE sub_orders s
		SET status = $3, price = COALESCE($4, s.price), updated_at = now()
		WHERE s.id = $1 AND s.status = $2
		RETURNING ` + subOrderColumns
	s, err := scanSubOrder(r.db.QueryRow(ctx, query, subOrderID, expected, next, price))
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("UpdateSubOrderStatus failed: %w", err)
	}
	// No row matched: either the sub-order is gone or it moved on.
	if _, ferr := r.FindSubOrderByID(ctx, subOrderID); ferr != nil {
		return nil, ferr
	}
	return nil, models.ErrInvalidState
}
