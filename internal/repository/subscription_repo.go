package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/event_marketplace_api/internal/database"
	"github.com/GTDGit/event_marketplace_api/internal/models"
)

const subscriptionColumns = `id, supplier_id, plan, status, start_date, end_date, auto_renew, amount,
	payment_id, cancelled_at, cancel_reason, supplier_synced, created_at, updated_at`

// SubscriptionRepository provides data access for subscriptions and their
// audit notes.
type SubscriptionRepository struct {
	db *sqlx.DB
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(db *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// insertSubscription writes s with supplier_synced = FALSE; the caller marks
// it synced once the supplier account reflects the new period.
func insertSubscription(ctx context.Context, q queryer, s *models.Subscription) error {
	query := `INSERT INTO subscriptions (supplier_id, plan, status, start_date, end_date, auto_renew, amount, payment_id, supplier_synced)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)
              RETURNING id, created_at, updated_at`
	s.SupplierSynced = false
	return q.QueryRowxContext(ctx, query,
		s.SupplierID,
		s.Plan,
		s.Status,
		s.StartDate,
		s.EndDate,
		s.AutoRenew,
		s.Amount,
		s.PaymentID,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// Replace expires the supplier's active subscription, if any, and inserts s
// in the same transaction. The expired subscription is returned when one
// existed. Losing an insert race against another active period yields
// ErrStaleState.
func (r *SubscriptionRepository) Replace(ctx context.Context, s *models.Subscription) (*models.Subscription, error) {
	var previous *models.Subscription
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var old []*models.Subscription
		if err := tx.SelectContext(ctx, &old, `UPDATE subscriptions
			SET status = 'expired', supplier_synced = TRUE, updated_at = NOW()
			WHERE supplier_id = $1 AND status = 'active'
			RETURNING `+subscriptionColumns, s.SupplierID); err != nil {
			return err
		}
		if len(old) > 0 {
			previous = old[0]
		}
		return insertSubscription(ctx, tx, s)
	})
	if err != nil {
		return nil, staleIfDuplicate(err)
	}
	return previous, nil
}

// RollOver expires the active subscription expiredID and inserts next in one
// transaction. rolled is false, and nothing is written, when expiredID was
// no longer active.
func (r *SubscriptionRepository) RollOver(ctx context.Context, expiredID int, next *models.Subscription) (bool, error) {
	rolled := false
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE subscriptions
			SET status = 'expired', supplier_synced = TRUE, updated_at = NOW()
			WHERE id = $1 AND status = 'active'`, expiredID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if err := insertSubscription(ctx, tx, next); err != nil {
			return err
		}
		rolled = true
		return nil
	})
	return rolled, staleIfDuplicate(err)
}

// Create inserts a subscription. A second active subscription for the same
// supplier yields ErrStaleState.
func (r *SubscriptionRepository) Create(ctx context.Context, s *models.Subscription) error {
	return staleIfDuplicate(insertSubscription(ctx, r.db, s))
}

// GetByID finds a subscription by id, including its notes.
func (r *SubscriptionRepository) GetByID(ctx context.Context, id int) (*models.Subscription, error) {
	var s models.Subscription
	if err := r.db.GetContext(ctx, &s, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id); err != nil {
		return nil, err
	}
	notes, err := r.ListNotes(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Notes = notes
	return &s, nil
}

// GetActiveBySupplier returns the supplier's active subscription.
func (r *SubscriptionRepository) GetActiveBySupplier(ctx context.Context, supplierID int) (*models.Subscription, error) {
	var s models.Subscription
	err := r.db.GetContext(ctx, &s, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE supplier_id = $1 AND status = 'active'
		ORDER BY end_date DESC LIMIT 1`, supplierID)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// MarkExpired expires an active subscription and leaves it unsynced until
// the supplier is locked. changed is false when another writer already moved
// it out of active.
func (r *SubscriptionRepository) MarkExpired(ctx context.Context, id int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE subscriptions
		SET status = 'expired', supplier_synced = FALSE, updated_at = NOW()
		WHERE id = $1 AND status = 'active'`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Cancel cancels an active subscription. Any other status yields ErrStaleState.
func (r *SubscriptionRepository) Cancel(ctx context.Context, id int, reason string, at time.Time) (*models.Subscription, error) {
	var s models.Subscription
	err := r.db.GetContext(ctx, &s, `UPDATE subscriptions
		SET status = 'cancelled', cancelled_at = $2, cancel_reason = $3, auto_renew = FALSE,
			supplier_synced = FALSE, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
		RETURNING `+subscriptionColumns, id, at, reason)
	if err != nil {
		return nil, staleIfNoRows(err)
	}
	return &s, nil
}

// SetAutoRenew toggles auto renewal of an active subscription.
func (r *SubscriptionRepository) SetAutoRenew(ctx context.Context, id int, autoRenew bool) (*models.Subscription, error) {
	var s models.Subscription
	err := r.db.GetContext(ctx, &s, `UPDATE subscriptions SET auto_renew = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
		RETURNING `+subscriptionColumns, id, autoRenew)
	if err != nil {
		return nil, staleIfNoRows(err)
	}
	return &s, nil
}

// Extend pushes end_date forward by days and appends the audit note in one
// transaction.
func (r *SubscriptionRepository) Extend(ctx context.Context, id, days int, note *models.SubscriptionNote) (*models.Subscription, error) {
	var s models.Subscription
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &s, `UPDATE subscriptions
			SET end_date = end_date + make_interval(days => $2), updated_at = NOW()
			WHERE id = $1
			RETURNING `+subscriptionColumns, id, days); err != nil {
			return err
		}
		note.SubscriptionID = id
		return tx.QueryRowxContext(ctx, `INSERT INTO subscription_notes (subscription_id, action, days, reason, actor_id)
			VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
			note.SubscriptionID, note.Action, note.Days, note.Reason, note.ActorID,
		).Scan(&note.ID, &note.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	notes, err := r.ListNotes(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Notes = notes
	return &s, nil
}

// Update applies an admin edit and appends its audit note in one
// transaction. A status change clears supplier_synced. Reactivating a
// period while another one is active yields ErrStaleState.
func (r *SubscriptionRepository) Update(ctx context.Context, id int, u models.SubscriptionUpdate, note *models.SubscriptionNote) (*models.Subscription, error) {
	var s models.Subscription
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &s, `UPDATE subscriptions SET
			supplier_synced = CASE WHEN $2::varchar IS NULL OR $2::varchar = status THEN supplier_synced ELSE FALSE END,
			cancelled_at = CASE WHEN $2::varchar = 'cancelled' AND status <> 'cancelled' THEN NOW() ELSE cancelled_at END,
			status = COALESCE($2::varchar, status),
			plan = COALESCE($3::varchar, plan),
			amount = COALESCE($4::numeric, amount),
			end_date = COALESCE($5::timestamptz, end_date),
			auto_renew = COALESCE($6::boolean, auto_renew),
			updated_at = NOW()
			WHERE id = $1
			RETURNING `+subscriptionColumns, id, u.Status, u.Plan, u.Amount, u.EndDate, u.AutoRenew); err != nil {
			return err
		}
		note.SubscriptionID = id
		return tx.QueryRowxContext(ctx, `INSERT INTO subscription_notes (subscription_id, action, days, reason, actor_id)
			VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
			note.SubscriptionID, note.Action, note.Days, note.Reason, note.ActorID,
		).Scan(&note.ID, &note.CreatedAt)
	})
	if err != nil {
		return nil, staleIfDuplicate(err)
	}
	notes, err := r.ListNotes(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Notes = notes
	return &s, nil
}

// MarkSupplierSynced records that the supplier account reflects the
// subscription's status.
func (r *SubscriptionRepository) MarkSupplierSynced(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE subscriptions SET supplier_synced = TRUE WHERE id = $1`, id)
	return err
}

// ListUnsynced returns up to limit subscriptions whose supplier follow-up is
// still pending and that were last written before olderThan, oldest first.
func (r *SubscriptionRepository) ListUnsynced(ctx context.Context, olderThan time.Time, limit int) ([]*models.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []*models.Subscription
	err := r.db.SelectContext(ctx, &items, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE supplier_synced = FALSE AND updated_at < $1
		ORDER BY updated_at, id LIMIT $2`, olderThan, limit)
	return items, err
}

// ListNotes returns the audit notes of a subscription, oldest first.
func (r *SubscriptionRepository) ListNotes(ctx context.Context, subscriptionID int) ([]models.SubscriptionNote, error) {
	var notes []models.SubscriptionNote
	err := r.db.SelectContext(ctx, &notes, `SELECT id, subscription_id, action, days, reason, actor_id, created_at
		FROM subscription_notes WHERE subscription_id = $1 ORDER BY created_at, id`, subscriptionID)
	return notes, err
}

// ListActiveEndingBefore returns active subscriptions whose end_date is
// before t.
func (r *SubscriptionRepository) ListActiveEndingBefore(ctx context.Context, t time.Time) ([]*models.Subscription, error) {
	var items []*models.Subscription
	err := r.db.SelectContext(ctx, &items, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE status = 'active' AND end_date < $1 ORDER BY end_date`, t)
	return items, err
}

func buildSubscriptionFilter(f models.SubscriptionFilter) (string, []interface{}) {
	var where []string
	var args []interface{}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Plan != "" {
		args = append(args, f.Plan)
		where = append(where, fmt.Sprintf("plan = $%d", len(args)))
	}
	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// List returns a filtered page of subscriptions, newest first.
func (r *SubscriptionRepository) List(ctx context.Context, f models.SubscriptionFilter) ([]*models.Subscription, int, error) {
	where, args := buildSubscriptionFilter(f)
	_, limit, offset := pageOffset(f.Page, f.Limit)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM subscriptions`+where, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM subscriptions%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		subscriptionColumns, where, len(args)-1, len(args))
	var items []*models.Subscription
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListAll returns every subscription matching f without paging, for exports.
func (r *SubscriptionRepository) ListAll(ctx context.Context, f models.SubscriptionFilter) ([]*models.Subscription, error) {
	where, args := buildSubscriptionFilter(f)
	var items []*models.Subscription
	err := r.db.SelectContext(ctx, &items, `SELECT `+subscriptionColumns+` FROM subscriptions`+where+` ORDER BY created_at DESC`, args...)
	return items, err
}

type planStatusRow struct {
	Plan    string  `db:"plan"`
	Status  string  `db:"status"`
	Count   int     `db:"count"`
	Revenue float64 `db:"revenue"`
}

// Stats aggregates subscriptions by plan and status. ExpiringSoon counts
// active subscriptions ending before soon.
func (r *SubscriptionRepository) Stats(ctx context.Context, soon time.Time) (*models.SubscriptionStats, error) {
	var rows []planStatusRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT plan, status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS revenue
		FROM subscriptions GROUP BY plan, status`); err != nil {
		return nil, err
	}

	stats := &models.SubscriptionStats{
		ByStatus:      map[string]int{},
		ByPlan:        map[string]int{},
		RevenueByPlan: map[string]float64{},
	}
	for _, row := range rows {
		stats.Total += row.Count
		stats.ByStatus[row.Status] += row.Count
		stats.ByPlan[row.Plan] += row.Count
		if row.Status == string(models.SubscriptionActive) {
			stats.ActiveRevenue += row.Revenue
			stats.RevenueByPlan[row.Plan] += row.Revenue
		}
	}

	if err := r.db.GetContext(ctx, &stats.ExpiringSoon, `SELECT COUNT(*) FROM subscriptions
		WHERE status = 'active' AND end_date < $1`, soon); err != nil {
		return nil, err
	}
	return stats, nil
}
