package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/event_marketplace_api/internal/models"
)

const userColumns = `id, name, phone, language, role, contact_count, booking_count,
	is_locked, lock_reason, lock_expiry_date, created_at, updated_at`

// UserRepository provides data access for users, including the supplier
// usage counters and lock state.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID finds a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	var u models.User
	if err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByPhone finds a user by phone number.
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	var u models.User
	if err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a user. A concurrent insert of the same phone returns the
// existing row instead of failing.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	query := `INSERT INTO users (name, phone, language, role)
              VALUES ($1, $2, $3, $4)
              ON CONFLICT (phone) DO UPDATE SET phone = EXCLUDED.phone
              RETURNING ` + userColumns
	return r.db.GetContext(ctx, u, query, u.Name, u.Phone, u.Language.Normalize(), u.Role)
}

// incrementQuery bumps one counter and flips is_locked in the same statement
// when the new value reaches the limit. SET expressions read the pre-update
// row, so "+ 1" appears in each of them.
func incrementQuery(column string) string {
	return `UPDATE users SET
	` + column + ` = ` + column + ` + 1,
	is_locked = (` + column + ` + 1 >= $2),
	lock_reason = CASE WHEN ` + column + ` + 1 >= $2 THEN $3 ELSE lock_reason END,
	updated_at = NOW()
	WHERE id = $1 AND is_locked = FALSE
	RETURNING ` + userColumns
}

// IncrementContactCount atomically increments contact_count of an unlocked
// user and locks it when the new count reaches limit. A locked or missing
// user yields sql.ErrNoRows.
func (r *UserRepository) IncrementContactCount(ctx context.Context, id, limit int) (*models.User, error) {
	var u models.User
	if err := r.db.GetContext(ctx, &u, incrementQuery("contact_count"), id, limit, models.LockReasonContactLimit); err != nil {
		return nil, err
	}
	return &u, nil
}

// IncrementBookingCount is IncrementContactCount for booking_count.
func (r *UserRepository) IncrementBookingCount(ctx context.Context, id, limit int) (*models.User, error) {
	var u models.User
	if err := r.db.GetContext(ctx, &u, incrementQuery("booking_count"), id, limit, models.LockReasonBookingLimit); err != nil {
		return nil, err
	}
	return &u, nil
}

// DecrementContactCount undoes a claimed contact slot. The lock flag is left
// untouched.
func (r *UserRepository) DecrementContactCount(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET contact_count = GREATEST(contact_count - 1, 0), updated_at = NOW() WHERE id = $1`, id)
	return err
}

// DecrementBookingCount undoes a claimed booking slot.
func (r *UserRepository) DecrementBookingCount(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET booking_count = GREATEST(booking_count - 1, 0), updated_at = NOW() WHERE id = $1`, id)
	return err
}

// lockedUser is a user row plus its lock state before the update.
type lockedUser struct {
	models.User
	WasLocked bool `db:"was_locked"`
}

// Lock sets is_locked and the reason. It reports whether the user was
// unlocked before, so callers can act on the transition only once.
func (r *UserRepository) Lock(ctx context.Context, id int, reason string) (*models.User, bool, error) {
	query := `UPDATE users u SET is_locked = TRUE, lock_reason = $2, updated_at = NOW()
              FROM (SELECT id, is_locked AS was_locked FROM users WHERE id = $1 FOR UPDATE) prev
              WHERE u.id = prev.id
              RETURNING prev.was_locked, u.id, u.name, u.phone, u.language, u.role, u.contact_count,
                  u.booking_count, u.is_locked, u.lock_reason, u.lock_expiry_date, u.created_at, u.updated_at`
	var lu lockedUser
	if err := r.db.GetContext(ctx, &lu, query, id, reason); err != nil {
		return nil, false, err
	}
	return &lu.User, !lu.WasLocked, nil
}

// Unlock clears the lock and resets both counters when the user is locked.
// For an unlocked user nothing is written and changed is false.
func (r *UserRepository) Unlock(ctx context.Context, id int) (*models.User, bool, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `UPDATE users SET is_locked = FALSE, lock_reason = NULL,
		lock_expiry_date = NULL, contact_count = 0, booking_count = 0, updated_at = NOW()
		WHERE id = $1 AND is_locked = TRUE
		RETURNING `+userColumns, id)
	if err == nil {
		return &u, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}
	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return cur, false, nil
}

// ResetUsage unconditionally unlocks the user and zeroes both counters.
func (r *UserRepository) ResetUsage(ctx context.Context, id int) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `UPDATE users SET is_locked = FALSE, lock_reason = NULL,
		lock_expiry_date = NULL, contact_count = 0, booking_count = 0, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListNeedingAttention returns suppliers that are locked or whose counters
// reached the warning thresholds, most urgent first. The contact threshold
// follows the plan of the supplier's active subscription.
func (r *UserRepository) ListNeedingAttention(ctx context.Context, t models.AttentionThresholds, limit int) ([]*models.User, error) {
	if limit <= 0 {
		limit = 100
	}
	args := []interface{}{t.ContactDefault, t.Booking}
	threshold := "$1::int"
	if len(t.ContactByPlan) > 0 {
		plans := make([]string, 0, len(t.ContactByPlan))
		for plan := range t.ContactByPlan {
			plans = append(plans, plan)
		}
		sort.Strings(plans)
		var b strings.Builder
		b.WriteString("CASE s.plan")
		for _, plan := range plans {
			args = append(args, plan, t.ContactByPlan[plan])
			fmt.Fprintf(&b, " WHEN $%d::varchar THEN $%d::int", len(args)-1, len(args))
		}
		b.WriteString(" ELSE $1::int END")
		threshold = b.String()
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT u.id, u.name, u.phone, u.language, u.role, u.contact_count, u.booking_count,
                  u.is_locked, u.lock_reason, u.lock_expiry_date, u.created_at, u.updated_at
              FROM users u
              LEFT JOIN subscriptions s ON s.supplier_id = u.id AND s.status = 'active'
              WHERE u.role = 'supplier'
                AND (u.is_locked OR u.contact_count >= %s OR u.booking_count >= $2::int)
              ORDER BY u.is_locked DESC, GREATEST(u.contact_count, u.booking_count) DESC, u.id
              LIMIT $%d`, threshold, len(args))
	var users []*models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, err
	}
	return users, nil
}

// SetRole changes the role of a user.
func (r *UserRepository) SetRole(ctx context.Context, id int, role models.Role) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `UPDATE users SET role = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, id, role)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CountLocked returns the number of locked suppliers.
func (r *UserRepository) CountLocked(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE role = 'supplier' AND is_locked`)
	return n, err
}
