package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/event_marketplace_api/internal/models"
	"github.com/GTDGit/event_marketplace_api/internal/notify"
	"github.com/GTDGit/event_marketplace_api/internal/policy"
	"github.com/GTDGit/event_marketplace_api/internal/sse"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

// AccountService owns the supplier usage counters and lock state. Every
// mutation is a single atomic statement in the store; this service evaluates
// thresholds on the post-update row and fires side effects.
type AccountService struct {
	users    UserStore
	subs     SubscriptionStore
	notifier notify.Notifier
	events   sse.EventNotifier
	metrics  Recorder
}

// NewAccountService constructs an AccountService. notifier, events and
// metrics may be nil.
func NewAccountService(users UserStore, subs SubscriptionStore, notifier notify.Notifier, events sse.EventNotifier, metrics Recorder) *AccountService {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	if events == nil {
		events = sse.NopNotifier{}
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &AccountService{users: users, subs: subs, notifier: notifier, events: events, metrics: metrics}
}

// GetSupplier loads a supplier account.
func (s *AccountService) GetSupplier(ctx context.Context, id int) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrSupplierNotFound
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	return u, nil
}

// EnsureReachable fails with ErrSupplierLocked when the supplier is locked.
func (s *AccountService) EnsureReachable(ctx context.Context, supplierID int) (*models.User, error) {
	u, err := s.GetSupplier(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	if u.IsLocked {
		return nil, utils.ErrSupplierLocked
	}
	return u, nil
}

// ContactLimit returns the contact limit of the supplier's active plan, or
// the basic plan's limit without an active subscription.
func (s *AccountService) ContactLimit(ctx context.Context, supplierID int) int {
	plan := ""
	sub, err := s.subs.GetActiveBySupplier(ctx, supplierID)
	switch {
	case err == nil:
		plan = sub.Plan
	case !errors.Is(err, sql.ErrNoRows):
		log.Warn().Err(err).Int("supplier_id", supplierID).Msg("Failed to load active subscription, using basic contact limit")
	}
	return policy.ContactLimitFor(plan)
}

// RecordContact claims one contact slot for the supplier.
func (s *AccountService) RecordContact(ctx context.Context, supplierID int) (*models.User, error) {
	limit := s.ContactLimit(ctx, supplierID)
	u, err := s.users.IncrementContactCount(ctx, supplierID, limit)
	if err != nil {
		return nil, s.incrementError(ctx, supplierID, err)
	}

	if policy.ShouldWarn(u.ContactCount, limit) {
		s.metrics.LimitWarning("contact")
		s.notifier.Notify(ctx, u.Phone, u.Language, notify.ContactLimitWarning, policy.Remaining(u.ContactCount, limit))
	}
	if u.IsLocked {
		s.onLimitLock(ctx, u, notify.ContactLimitReached, limit)
	}
	return u, nil
}

// RecordBooking claims one booking slot for the supplier.
func (s *AccountService) RecordBooking(ctx context.Context, supplierID int) (*models.User, error) {
	limit := policy.BookingLimit
	u, err := s.users.IncrementBookingCount(ctx, supplierID, limit)
	if err != nil {
		return nil, s.incrementError(ctx, supplierID, err)
	}

	if policy.ShouldWarn(u.BookingCount, limit) {
		s.metrics.LimitWarning("booking")
		s.notifier.Notify(ctx, u.Phone, u.Language, notify.BookingLimitWarning, u.BookingCount, limit)
	}
	if u.IsLocked {
		s.onLimitLock(ctx, u, notify.BookingLimitReached, limit)
	}
	return u, nil
}

// ReleaseContact gives back a contact slot claimed by a request that was
// never persisted.
func (s *AccountService) ReleaseContact(ctx context.Context, supplierID int) {
	if err := s.users.DecrementContactCount(ctx, supplierID); err != nil {
		log.Error().Err(err).Int("supplier_id", supplierID).Msg("Failed to release contact slot")
	}
}

// ReleaseBooking gives back a booking slot.
func (s *AccountService) ReleaseBooking(ctx context.Context, supplierID int) {
	if err := s.users.DecrementBookingCount(ctx, supplierID); err != nil {
		log.Error().Err(err).Int("supplier_id", supplierID).Msg("Failed to release booking slot")
	}
}

// onLimitLock runs once per lock: the increment only matches unlocked rows,
// so a locked result means this call made the transition.
func (s *AccountService) onLimitLock(ctx context.Context, u *models.User, key notify.TemplateKey, limit int) {
	log.Info().
		Int("supplier_id", u.ID).
		Str("reason", u.LockReasonText()).
		Int("contact_count", u.ContactCount).
		Int("booking_count", u.BookingCount).
		Msg("Supplier locked")
	s.metrics.SupplierLocked(u.LockReasonText())
	s.events.NotifySupplier(sse.EventSupplierLocked, u)
	s.notifier.Notify(ctx, u.Phone, u.Language, key, limit)
}

// incrementError tells a locked supplier apart from a missing one after an
// increment matched no row.
func (s *AccountService) incrementError(ctx context.Context, supplierID int, err error) error {
	if !errors.Is(err, sql.ErrNoRows) {
		return utils.Internal(err)
	}
	u, err := s.GetSupplier(ctx, supplierID)
	if err != nil {
		return err
	}
	if u.IsLocked {
		return utils.ErrSupplierLocked
	}
	return utils.Internal(fmt.Errorf("increment matched no row for unlocked supplier %d", supplierID))
}

// Lock locks the supplier with reason. Locking a locked supplier only
// updates the reason.
func (s *AccountService) Lock(ctx context.Context, supplierID int, reason string) (*models.User, error) {
	u, changed, err := s.users.Lock(ctx, supplierID, reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrSupplierNotFound
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	if changed {
		log.Info().Int("supplier_id", supplierID).Str("reason", reason).Msg("Supplier locked")
		s.metrics.SupplierLocked(reason)
		s.events.NotifySupplier(sse.EventSupplierLocked, u)
	}
	return u, nil
}

// Unlock clears the lock and resets both counters. Unlocking an unlocked
// supplier changes nothing and returns the current state.
func (s *AccountService) Unlock(ctx context.Context, supplierID int) (*models.User, error) {
	u, changed, err := s.users.Unlock(ctx, supplierID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrSupplierNotFound
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	if changed {
		log.Info().Int("supplier_id", supplierID).Msg("Supplier unlocked")
		s.metrics.SupplierUnlocked("admin")
		s.events.NotifySupplier(sse.EventSupplierUnlocked, u)
		s.notifier.Notify(ctx, u.Phone, u.Language, notify.SupplierUnlocked)
	}
	return u, nil
}

// ResetUsage unlocks the supplier and zeroes both counters regardless of the
// current state. Used when a subscription starts.
func (s *AccountService) ResetUsage(ctx context.Context, supplierID int) (*models.User, error) {
	u, err := s.users.ResetUsage(ctx, supplierID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrSupplierNotFound
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	s.events.NotifySupplier(sse.EventSupplierUnlocked, u)
	return u, nil
}

// NeedingAttention lists suppliers that are locked or inside a warning band
// of their own plan.
func (s *AccountService) NeedingAttention(ctx context.Context, limit int) ([]*models.User, error) {
	t := models.AttentionThresholds{
		ContactByPlan:  map[string]int{},
		ContactDefault: policy.WarnThreshold(policy.ContactLimitFor("")),
		Booking:        policy.WarnThreshold(policy.BookingLimit),
	}
	for _, p := range policy.Plans() {
		t.ContactByPlan[p.Name] = policy.WarnThreshold(p.ContactLimit)
	}
	users, err := s.users.ListNeedingAttention(ctx, t, limit)
	if err != nil {
		return nil, utils.Internal(err)
	}
	return users, nil
}

// BootstrapAdmins grants the admin role to every phone in phones, creating
// the account when it does not exist yet.
func (s *AccountService) BootstrapAdmins(ctx context.Context, phones []string) error {
	for _, phone := range phones {
		u, err := s.users.GetByPhone(ctx, phone)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			u = &models.User{Name: "Admin", Phone: phone, Language: models.LangArabic, Role: models.RoleAdmin}
			if err := s.users.Create(ctx, u); err != nil {
				return fmt.Errorf("create admin %s: %w", phone, err)
			}
		case err != nil:
			return fmt.Errorf("load admin %s: %w", phone, err)
		}
		if u.Role == models.RoleAdmin {
			continue
		}
		if _, err := s.users.SetRole(ctx, u.ID, models.RoleAdmin); err != nil {
			return fmt.Errorf("promote admin %s: %w", phone, err)
		}
		log.Info().Int("user_id", u.ID).Msg("Admin role granted")
	}
	return nil
}
