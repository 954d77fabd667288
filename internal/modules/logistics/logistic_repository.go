package logistics

import (
	"context"
	"errors"
	"fmt"

	"local-delivery/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryInterface covers the delivery history records and delivery
// actor lookups. Order status itself lives in the order store.
type RepositoryInterface interface {
	// FindUserRole returns the role of a user, or ErrNotFound.
	FindUserRole(ctx context.Context, userID string) (models.Role, error)
	// UpsertJob records the delivery job for an order. There is at most one
	// job per order; reassignment overwrites it.
	UpsertJob(ctx context.Context, job *models.DeliveryJob) error
	FindJobByOrder(ctx context.Context, orderID string) (*models.DeliveryJob, error)
	ListJobsByDeliveryPartner(ctx context.Context, deliveryPartnerID string) ([]*models.DeliveryJob, error)
	// StampSubOrders copies a delivery milestone onto the order's accepted
	// sub-orders. It never touches rejected or unanswered ones.
	StampSubOrders(ctx context.Context, orderID string, status models.SubOrderStatus) error
}

// Repository implements RepositoryInterface on PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindUserRole(ctx context.Context, userID string) (models.Role, error) {
	var role models.Role
	err := r.db.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", models.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("FindUserRole failed: %w", err)
	}
	return role, nil
}

func (r *Repository) UpsertJob(ctx context.Context, job *models.DeliveryJob) error {
	const query = `
		INSERT INTO delivery_jobs (id, order_id, delivery_partner_id, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id) DO UPDATE
		SET delivery_partner_id = EXCLUDED.delivery_partner_id,
		    status = EXCLUDED.status,
		    updated_at = now()
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query, job.ID, job.OrderID, job.DeliveryPartnerID, job.Status).
		Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("UpsertJob failed: %w", err)
	}
	return nil
}

const jobColumns = `id, order_id, delivery_partner_id, status, created_at, updated_at`

func scanJob(row pgx.Row) (*models.DeliveryJob, error) {
	j := &models.DeliveryJob{}
	if err := row.Scan(&j.ID, &j.OrderID, &j.DeliveryPartnerID, &j.Status, &j.CreatedAt, &j.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return j, nil
}

func (r *Repository) FindJobByOrder(ctx context.Context, orderID string) (*models.DeliveryJob, error) {
	job, err := scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM delivery_jobs WHERE order_id = $1`, orderID))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("FindJobByOrder failed: %w", err)
	}
	return job, err
}

func (r *Repository) ListJobsByDeliveryPartner(ctx context.Context, deliveryPartnerID string) ([]*models.DeliveryJob, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+jobColumns+` FROM delivery_jobs WHERE delivery_partner_id = $1 ORDER BY updated_at DESC`,
		deliveryPartnerID)
	if err != nil {
		return nil, fmt.Errorf("ListJobsByDeliveryPartner failed: %w", err)
	}
	defer rows.Close()

	jobs := []*models.DeliveryJob{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("ListJobsByDeliveryPartner scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *Repository) StampSubOrders(ctx context.Context, orderID string, status models.SubOrderStatus) error {
	const query = `
		UPDATE sub_orders
		SET status = $2, updated_at = now()
		WHERE order_id = $1
		  AND status IN ('ACCEPTED', 'PREPARING', 'READY', 'PICKED_UP')`
	if _, err := r.db.Exec(ctx, query, orderID, status); err != nil {
		return fmt.Errorf("StampSubOrders failed: %w", err)
	}
	return nil
}
