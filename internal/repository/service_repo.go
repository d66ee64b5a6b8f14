package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/event_marketplace_api/internal/models"
)

const serviceColumns = `id, supplier_id, name, category, subcategories, price, price_currency,
	price_type, price_available, availability, min_capacity, max_capacity, created_at, updated_at`

// ServiceRepository provides data access for the services catalog.
type ServiceRepository struct {
	db *sqlx.DB
}

// NewServiceRepository creates a new ServiceRepository.
func NewServiceRepository(db *sqlx.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

// GetByID finds a service by id.
func (r *ServiceRepository) GetByID(ctx context.Context, id int) (*models.Service, error) {
	var s models.Service
	if err := r.db.GetContext(ctx, &s, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new service.
func (r *ServiceRepository) Create(ctx context.Context, s *models.Service) error {
	query := `INSERT INTO services (supplier_id, name, category, subcategories, price, price_currency,
                  price_type, price_available, availability, min_capacity, max_capacity)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
              RETURNING id, created_at, updated_at`
	return r.db.QueryRowxContext(ctx, query,
		s.SupplierID,
		s.Name,
		s.Category,
		s.Subcategories,
		s.Price,
		s.PriceCurrency,
		s.PriceType,
		s.PriceAvailable,
		s.Availability,
		s.MinCapacity,
		s.MaxCapacity,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// ListBySupplier returns the services offered by a supplier.
func (r *ServiceRepository) ListBySupplier(ctx context.Context, supplierID int) ([]*models.Service, error) {
	var items []*models.Service
	err := r.db.SelectContext(ctx, &items,
		`SELECT `+serviceColumns+` FROM services WHERE supplier_id = $1 ORDER BY created_at DESC`, supplierID)
	return items, err
}

// PublishPrice copies a quoted price onto the service and marks it bookable.
func (r *ServiceRepository) PublishPrice(ctx context.Context, id int, q models.QuotedPrice) error {
	priceType := q.PriceType
	if priceType == "" {
		priceType = models.PriceFixed
	}
	_, err := r.db.ExecContext(ctx, `UPDATE services
		SET price = $2, price_currency = COALESCE(NULLIF($3, ''), price_currency),
		    price_type = $4, price_available = TRUE, updated_at = NOW()
		WHERE id = $1`, id, q.Amount, q.Currency, priceType)
	return err
}
