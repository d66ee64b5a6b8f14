package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/event_marketplace_api/internal/models"
)

const bookingColumns = `id, service_id, supplier_id, client_id, contact_request_id, event_date,
	number_of_people, total_price, paid_amount, currency, status, created_at, updated_at`

// BookingRepository provides data access for bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func insertBooking(ctx context.Context, q queryer, b *models.Booking) error {
	if b.Status == "" {
		b.Status = models.BookingPending
	}
	query := `INSERT INTO bookings (service_id, supplier_id, client_id, contact_request_id, event_date,
                  number_of_people, total_price, paid_amount, currency, status)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
              RETURNING id, created_at, updated_at`
	return q.QueryRowxContext(ctx, query,
		b.ServiceID,
		b.SupplierID,
		b.ClientID,
		b.ContactRequestID,
		b.EventDate,
		b.NumberOfPeople,
		b.TotalPrice,
		b.PaidAmount,
		b.Currency,
		b.Status,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

// Create inserts a booking. A second booking for the same contact request
// yields ErrStaleState.
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	return staleIfDuplicate(insertBooking(ctx, r.db, b))
}

// GetByID finds a booking by id.
func (r *BookingRepository) GetByID(ctx context.Context, id int) (*models.Booking, error) {
	var b models.Booking
	if err := r.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepository) list(ctx context.Context, column string, id, page, limit int) ([]*models.Booking, int, error) {
	_, limit, offset := pageOffset(page, limit)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM bookings WHERE `+column+` = $1`, id); err != nil {
		return nil, 0, err
	}
	var items []*models.Booking
	err := r.db.SelectContext(ctx, &items, `SELECT `+bookingColumns+` FROM bookings
		WHERE `+column+` = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, id, limit, offset)
	return items, total, err
}

// ListByClient returns a page of a client's bookings.
func (r *BookingRepository) ListByClient(ctx context.Context, clientID, page, limit int) ([]*models.Booking, int, error) {
	return r.list(ctx, "client_id", clientID, page, limit)
}

// ListBySupplier returns a page of bookings for a supplier's services.
func (r *BookingRepository) ListBySupplier(ctx context.Context, supplierID, page, limit int) ([]*models.Booking, int, error) {
	return r.list(ctx, "supplier_id", supplierID, page, limit)
}

// UpdateStatus sets the status of a booking.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id int, status models.BookingStatus) (*models.Booking, error) {
	var b models.Booking
	err := r.db.GetContext(ctx, &b, `UPDATE bookings SET status = $2, updated_at = NOW()
		WHERE id = $1 RETURNING `+bookingColumns, id, status)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CancelPending cancels a booking that is still pending. Any other status
// yields ErrStaleState.
func (r *BookingRepository) CancelPending(ctx context.Context, id int) (*models.Booking, error) {
	var b models.Booking
	err := r.db.GetContext(ctx, &b, `UPDATE bookings SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = 'pending' RETURNING `+bookingColumns, id)
	if err != nil {
		return nil, staleIfNoRows(err)
	}
	return &b, nil
}

func staleIfNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrStaleState
	}
	return err
}
