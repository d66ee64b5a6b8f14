package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/event_marketplace_api/internal/models"
)

const ratingColumns = `r.id, r.service_id, r.user_id, COALESCE(u.name, '') AS user_name,
	r.score, r.comment, r.created_at, r.updated_at`

// RatingRepository provides data access for service ratings.
type RatingRepository struct {
	db *sqlx.DB
}

// NewRatingRepository creates a new RatingRepository.
func NewRatingRepository(db *sqlx.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Upsert stores the rating of (service, user), replacing an earlier one.
func (r *RatingRepository) Upsert(ctx context.Context, rt *models.Rating) error {
	query := `INSERT INTO ratings (service_id, user_id, score, comment)
              VALUES ($1, $2, $3, $4)
              ON CONFLICT (service_id, user_id)
              DO UPDATE SET score = EXCLUDED.score, comment = EXCLUDED.comment, updated_at = NOW()
              RETURNING id, created_at, updated_at`
	return r.db.QueryRowxContext(ctx, query, rt.ServiceID, rt.UserID, rt.Score, rt.Comment).
		Scan(&rt.ID, &rt.CreatedAt, &rt.UpdatedAt)
}

// GetByUser returns the rating user gave service.
func (r *RatingRepository) GetByUser(ctx context.Context, serviceID, userID int) (*models.Rating, error) {
	var rt models.Rating
	err := r.db.GetContext(ctx, &rt, `SELECT `+ratingColumns+`
		FROM ratings r LEFT JOIN users u ON u.id = r.user_id
		WHERE r.service_id = $1 AND r.user_id = $2`, serviceID, userID)
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

// ListByService returns a page of ratings for a service, newest first.
func (r *RatingRepository) ListByService(ctx context.Context, serviceID, page, limit int) ([]*models.Rating, int, error) {
	_, limit, offset := pageOffset(page, limit)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM ratings WHERE service_id = $1`, serviceID); err != nil {
		return nil, 0, err
	}
	var items []*models.Rating
	err := r.db.SelectContext(ctx, &items, `SELECT `+ratingColumns+`
		FROM ratings r LEFT JOIN users u ON u.id = r.user_id
		WHERE r.service_id = $1
		ORDER BY r.updated_at DESC, r.id DESC
		LIMIT $2 OFFSET $3`, serviceID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Summary returns the average score and count of a service's ratings.
func (r *RatingRepository) Summary(ctx context.Context, serviceID int) (*models.RatingSummary, error) {
	s := models.RatingSummary{ServiceID: serviceID}
	err := r.db.GetContext(ctx, &s, `SELECT $1::int AS service_id,
		COALESCE(ROUND(AVG(score)::numeric, 1), 0)::float8 AS average,
		COUNT(*) AS count
		FROM ratings WHERE service_id = $1`, serviceID)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// HasConfirmedBooking reports whether client holds a confirmed booking of
// the service.
func (r *RatingRepository) HasConfirmedBooking(ctx context.Context, serviceID, clientID int) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok, `SELECT EXISTS (
		SELECT 1 FROM bookings WHERE service_id = $1 AND client_id = $2 AND status = 'confirmed')`,
		serviceID, clientID)
	return ok, err
}

// HasAnsweredContact reports whether a contact request of client about the
// service was accepted or converted to a booking.
func (r *RatingRepository) HasAnsweredContact(ctx context.Context, serviceID, clientID int) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok, `SELECT EXISTS (
		SELECT 1 FROM contact_requests
		WHERE service_id = $1 AND client_id = $2 AND (status = 'accepted' OR converted_to_booking))`,
		serviceID, clientID)
	return ok, err
}
