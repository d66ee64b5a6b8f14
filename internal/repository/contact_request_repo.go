package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/event_marketplace_api/internal/database"
	"github.com/GTDGit/event_marketplace_api/internal/models"
)

const contactRequestColumns = `id, client_id, supplier_id, service_id, message, via, quoted_amount,
	quoted_currency, quoted_price_type, converted_to_booking, status, created_at, updated_at`

// ContactRequestRepository provides data access for contact_requests.
type ContactRequestRepository struct {
	db *sqlx.DB
}

// NewContactRequestRepository creates a new ContactRequestRepository.
func NewContactRequestRepository(db *sqlx.DB) *ContactRequestRepository {
	return &ContactRequestRepository{db: db}
}

// Create inserts a pending contact request.
func (r *ContactRequestRepository) Create(ctx context.Context, cr *models.ContactRequest) error {
	query := `INSERT INTO contact_requests (client_id, supplier_id, service_id, message, via, status)
              VALUES ($1, $2, $3, $4, $5, $6)
              RETURNING id, created_at, updated_at`
	if cr.Status == "" {
		cr.Status = models.ContactPending
	}
	return r.db.QueryRowxContext(ctx, query,
		cr.ClientID, cr.SupplierID, cr.ServiceID, cr.Message, cr.Via, cr.Status,
	).Scan(&cr.ID, &cr.CreatedAt, &cr.UpdatedAt)
}

// GetByID finds a contact request by id.
func (r *ContactRequestRepository) GetByID(ctx context.Context, id int) (*models.ContactRequest, error) {
	var cr models.ContactRequest
	if err := r.db.GetContext(ctx, &cr, `SELECT `+contactRequestColumns+` FROM contact_requests WHERE id = $1`, id); err != nil {
		return nil, err
	}
	cr.Hydrate()
	return &cr, nil
}

func (r *ContactRequestRepository) list(ctx context.Context, column string, id, page, limit int) ([]*models.ContactRequest, int, error) {
	_, limit, offset := pageOffset(page, limit)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM contact_requests WHERE `+column+` = $1`, id); err != nil {
		return nil, 0, err
	}
	var items []*models.ContactRequest
	err := r.db.SelectContext(ctx, &items, `SELECT `+contactRequestColumns+` FROM contact_requests
		WHERE `+column+` = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, id, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, cr := range items {
		cr.Hydrate()
	}
	return items, total, nil
}

// ListBySupplier returns a page of requests received by a supplier.
func (r *ContactRequestRepository) ListBySupplier(ctx context.Context, supplierID, page, limit int) ([]*models.ContactRequest, int, error) {
	return r.list(ctx, "supplier_id", supplierID, page, limit)
}

// ListByClient returns a page of requests sent by a client.
func (r *ContactRequestRepository) ListByClient(ctx context.Context, clientID, page, limit int) ([]*models.ContactRequest, int, error) {
	return r.list(ctx, "client_id", clientID, page, limit)
}

// GetLatest returns the most recent request for a (client, supplier, service)
// triple.
func (r *ContactRequestRepository) GetLatest(ctx context.Context, clientID, supplierID, serviceID int) (*models.ContactRequest, error) {
	var cr models.ContactRequest
	err := r.db.GetContext(ctx, &cr, `SELECT `+contactRequestColumns+` FROM contact_requests
		WHERE client_id = $1 AND supplier_id = $2 AND service_id = $3
		ORDER BY created_at DESC LIMIT 1`, clientID, supplierID, serviceID)
	if err != nil {
		return nil, err
	}
	cr.Hydrate()
	return &cr, nil
}

// Respond moves a pending request to status and stores the quote, if any.
// A request that is no longer pending yields ErrStaleState.
func (r *ContactRequestRepository) Respond(ctx context.Context, id int, status models.ContactRequestStatus, quote *models.QuotedPrice) (*models.ContactRequest, error) {
	var amount *float64
	var currency, priceType *string
	if quote != nil {
		a, c, p := quote.Amount, quote.Currency, string(quote.PriceType)
		amount = &a
		if c != "" {
			currency = &c
		}
		if p != "" {
			priceType = &p
		}
	}
	var cr models.ContactRequest
	err := r.db.GetContext(ctx, &cr, `UPDATE contact_requests
		SET status = $2,
		    quoted_amount = COALESCE($3, quoted_amount),
		    quoted_currency = COALESCE($4, quoted_currency),
		    quoted_price_type = COALESCE($5, quoted_price_type),
		    updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+contactRequestColumns, id, status, amount, currency, priceType)
	if err != nil {
		return nil, staleIfNoRows(err)
	}
	cr.Hydrate()
	return &cr, nil
}

// ConvertToBooking flips converted_to_booking and inserts the booking in one
// transaction. A request that was already converted yields ErrStaleState.
func (r *ContactRequestRepository) ConvertToBooking(ctx context.Context, requestID int, b *models.Booking) error {
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE contact_requests
			SET converted_to_booking = TRUE, updated_at = NOW()
			WHERE id = $1 AND converted_to_booking = FALSE`, requestID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrStaleState
		}
		b.ContactRequestID = &requestID
		return insertBooking(ctx, tx, b)
	})
	return staleIfDuplicate(err)
}

// MarkConverted sets converted_to_booking. changed is false when the flag
// was already set.
func (r *ContactRequestRepository) MarkConverted(ctx context.Context, id int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE contact_requests
		SET converted_to_booking = TRUE, updated_at = NOW()
		WHERE id = $1 AND converted_to_booking = FALSE`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ReconcileConverted flips converted_to_booking on up to limit requests that
// a booking already references, returning the ids it fixed.
func (r *ContactRequestRepository) ReconcileConverted(ctx context.Context, limit int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `UPDATE contact_requests cr
		SET converted_to_booking = TRUE, updated_at = NOW()
		WHERE cr.id IN (
			SELECT c.id FROM contact_requests c
			JOIN bookings b ON b.contact_request_id = c.id
			WHERE c.converted_to_booking = FALSE
			ORDER BY c.id
			LIMIT $1
		)
		RETURNING cr.id`, limit)
	return ids, err
}
