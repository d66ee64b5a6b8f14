package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/GTDGit/event_marketplace_api/internal/models"
)

const joinRequestColumns = `id, name, phone, country, service_type, city, notes, status,
	user_id, reviewed_by, reviewed_at, created_at, updated_at`

// JoinRequestRepository provides data access for supplier applications.
type JoinRequestRepository struct {
	db *sqlx.DB
}

// NewJoinRequestRepository creates a new JoinRequestRepository.
func NewJoinRequestRepository(db *sqlx.DB) *JoinRequestRepository {
	return &JoinRequestRepository{db: db}
}

// Create inserts a pending application. A second pending application for
// the same phone yields ErrStaleState.
func (r *JoinRequestRepository) Create(ctx context.Context, jr *models.JoinRequest) error {
	query := `INSERT INTO join_requests (name, phone, country, service_type, city, notes)
              VALUES ($1, $2, $3, $4, $5, $6)
              RETURNING ` + joinRequestColumns
	err := r.db.GetContext(ctx, jr, query, jr.Name, jr.Phone, jr.Country, jr.ServiceType, jr.City, jr.Notes)
	return staleIfDuplicate(err)
}

// GetByID finds an application by id.
func (r *JoinRequestRepository) GetByID(ctx context.Context, id int) (*models.JoinRequest, error) {
	var jr models.JoinRequest
	if err := r.db.GetContext(ctx, &jr, `SELECT `+joinRequestColumns+` FROM join_requests WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &jr, nil
}

// List returns a page of applications, newest first.
func (r *JoinRequestRepository) List(ctx context.Context, f models.JoinRequestFilter) ([]*models.JoinRequest, int, error) {
	_, limit, offset := pageOffset(f.Page, f.Limit)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM join_requests
		WHERE ($1 = '' OR status = $1)`, f.Status); err != nil {
		return nil, 0, err
	}

	var items []*models.JoinRequest
	err := r.db.SelectContext(ctx, &items, `SELECT `+joinRequestColumns+` FROM join_requests
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, f.Status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// SetStatus moves an application from one of the from states to to and
// records the reviewer. userID, when set, links the approved account. Any
// other current state yields ErrStaleState.
func (r *JoinRequestRepository) SetStatus(ctx context.Context, id int, from []models.JoinRequestStatus, to models.JoinRequestStatus, reviewerID int, userID *int) (*models.JoinRequest, error) {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	var jr models.JoinRequest
	err := r.db.GetContext(ctx, &jr, `UPDATE join_requests
		SET status = $2, reviewed_by = $3, reviewed_at = NOW(), user_id = COALESCE($4, user_id), updated_at = NOW()
		WHERE id = $1 AND status = ANY($5)
		RETURNING `+joinRequestColumns, id, to, reviewerID, userID, pq.Array(states))
	if err != nil {
		return nil, staleIfDuplicate(staleIfNoRows(err))
	}
	return &jr, nil
}
