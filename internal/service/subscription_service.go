package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/event_marketplace_api/internal/models"
	"github.com/GTDGit/event_marketplace_api/internal/notify"
	"github.com/GTDGit/event_marketplace_api/internal/policy"
	"github.com/GTDGit/event_marketplace_api/internal/repository"
	"github.com/GTDGit/event_marketplace_api/internal/sse"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

// ExpiryWarningWindow is how far ahead of end_date suppliers are warned.
const ExpiryWarningWindow = 7 * 24 * time.Hour

// SupplierSyncGrace keeps ReconcileSuppliers away from rows whose writer may
// still be applying the supplier follow-up itself.
const SupplierSyncGrace = 2 * time.Minute

// contactHistoryLimit caps the contact requests shown in subscription details.
const contactHistoryLimit = 50

// SubscriptionService manages subscription periods and their effect on the
// supplier lock state.
type SubscriptionService struct {
	subs     SubscriptionStore
	users    UserStore
	requests ContactRequestStore
	accounts *AccountService
	notifier notify.Notifier
	events   sse.EventNotifier
	metrics  Recorder
	now      func() time.Time
}

// NewSubscriptionService constructs a SubscriptionService.
func NewSubscriptionService(
	subs SubscriptionStore,
	users UserStore,
	requests ContactRequestStore,
	accounts *AccountService,
	notifier notify.Notifier,
	events sse.EventNotifier,
	metrics Recorder,
) *SubscriptionService {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	if events == nil {
		events = sse.NopNotifier{}
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &SubscriptionService{
		subs:     subs,
		users:    users,
		requests: requests,
		accounts: accounts,
		notifier: notifier,
		events:   events,
		metrics:  metrics,
		now:      time.Now,
	}
}

// CreateSubscriptionRequest is the body of POST /v1/subscriptions.
type CreateSubscriptionRequest struct {
	Plan      string  `json:"plan" binding:"required"`
	AutoRenew bool    `json:"autoRenew"`
	PaymentID *string `json:"paymentId"`
}

// RenewSubscriptionRequest is the body of POST /v1/subscriptions/renew.
// Empty fields keep the values of the current subscription.
type RenewSubscriptionRequest struct {
	Plan      string  `json:"plan"`
	AutoRenew *bool   `json:"autoRenew"`
	PaymentID *string `json:"paymentId"`
}

// CancelSubscriptionRequest is the body of the cancel endpoints.
type CancelSubscriptionRequest struct {
	Reason string `json:"reason"`
}

// ExtendSubscriptionRequest is the body of POST /v1/admin/subscriptions/:id/extend.
type ExtendSubscriptionRequest struct {
	Days   int    `json:"days"`
	Reason string `json:"reason"`
}

// UpdateSubscriptionRequest is the body of PATCH /v1/admin/subscriptions/:id.
// Omitted fields are left unchanged.
type UpdateSubscriptionRequest struct {
	Status    *models.SubscriptionStatus `json:"status"`
	Plan      *string                    `json:"plan"`
	EndDate   *time.Time                 `json:"endDate"`
	AutoRenew *bool                      `json:"autoRenew"`
	Reason    string                     `json:"reason"`
}

// SubscriptionDetails is the admin view of one subscription.
type SubscriptionDetails struct {
	Subscription   *models.Subscription     `json:"subscription"`
	Supplier       *models.User             `json:"supplier"`
	ContactHistory []*models.ContactRequest `json:"contactHistory"`
}

// AutoRenewRequest is the body of POST /v1/subscriptions/auto-renew.
type AutoRenewRequest struct {
	AutoRenew bool `json:"autoRenew"`
}

// UsageInfo is the supplier's view of plan consumption.
type UsageInfo struct {
	Plan            string               `json:"plan"`
	Status          string               `json:"status"`
	ContactLimit    int                  `json:"contactLimit"`
	ContactsUsed    int                  `json:"contactsUsed"`
	BookingLimit    int                  `json:"bookingLimit"`
	BookingsUsed    int                  `json:"bookingsUsed"`
	UsagePercentage float64              `json:"usagePercentage"`
	IsLocked        bool                 `json:"isLocked"`
	LockReason      string               `json:"lockReason,omitempty"`
	DaysUntilExpiry int                  `json:"daysUntilExpiry"`
	HasWarning      bool                 `json:"hasWarning"`
	Warnings        []string             `json:"warnings"`
	WarningType     string               `json:"warningType,omitempty"`
	Subscription    *models.Subscription `json:"subscription,omitempty"`
}

// SweepResult counts what a DailySweep did.
type SweepResult struct {
	Warned  int `json:"warned"`
	Expired int `json:"expired"`
	Renewed int `json:"renewed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func (s *SubscriptionService) newPeriod(supplierID int, plan policy.Plan, autoRenew bool, paymentID *string) *models.Subscription {
	start := s.now()
	return &models.Subscription{
		SupplierID: supplierID,
		Plan:       plan.Name,
		Status:     models.SubscriptionActive,
		StartDate:  start,
		EndDate:    start.AddDate(0, 0, plan.DurationDays),
		AutoRenew:  autoRenew,
		Amount:     plan.Price,
		PaymentID:  paymentID,
	}
}

func (s *SubscriptionService) active(ctx context.Context, supplierID int) (*models.Subscription, error) {
	sub, err := s.subs.GetActiveBySupplier(ctx, supplierID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	return sub, nil
}

// Create starts a new period for the supplier, superseding any active one,
// and unlocks the supplier with both counters reset.
func (s *SubscriptionService) Create(ctx context.Context, actor Actor, req CreateSubscriptionRequest) (*models.Subscription, error) {
	plan, ok := policy.LookupPlan(req.Plan)
	if !ok {
		return nil, utils.ErrInvalidPlan
	}
	sub := s.newPeriod(actor.ID, plan, req.AutoRenew, req.PaymentID)
	if err := s.replace(ctx, sub); err != nil {
		return nil, err
	}

	s.events.NotifySubscription(sse.EventSubscriptionCreated, sub)
	if u := s.startPeriod(ctx, sub); u != nil {
		s.notifier.Notify(ctx, u.Phone, u.Language, notify.SubscriptionCreated, plan.Name)
	}
	log.Info().Int("supplier_id", actor.ID).Int("subscription_id", sub.ID).Str("plan", plan.Name).Msg("Subscription created")
	return sub, nil
}

// Renew replaces the active subscription with a fresh period.
func (s *SubscriptionService) Renew(ctx context.Context, actor Actor, req RenewSubscriptionRequest) (*models.Subscription, error) {
	planName, autoRenew := req.Plan, false
	current, err := s.subs.GetActiveBySupplier(ctx, actor.ID)
	switch {
	case err == nil:
		if planName == "" {
			planName = current.Plan
		}
		autoRenew = current.AutoRenew
	case !errors.Is(err, sql.ErrNoRows):
		return nil, utils.Internal(err)
	}
	if planName == "" {
		planName = policy.PlanBasic
	}
	if req.AutoRenew != nil {
		autoRenew = *req.AutoRenew
	}
	plan, ok := policy.LookupPlan(planName)
	if !ok {
		return nil, utils.ErrInvalidPlan
	}

	sub := s.newPeriod(actor.ID, plan, autoRenew, req.PaymentID)
	if err := s.replace(ctx, sub); err != nil {
		return nil, err
	}

	s.events.NotifySubscription(sse.EventSubscriptionRenewed, sub)
	if u := s.startPeriod(ctx, sub); u != nil {
		s.notifier.Notify(ctx, u.Phone, u.Language, notify.SubscriptionRenewed)
	}
	log.Info().Int("supplier_id", actor.ID).Int("subscription_id", sub.ID).Str("plan", plan.Name).Msg("Subscription renewed")
	return sub, nil
}

func (s *SubscriptionService) replace(ctx context.Context, sub *models.Subscription) error {
	_, err := s.subs.Replace(ctx, sub)
	if errors.Is(err, repository.ErrStaleState) {
		return utils.ErrSubscriptionConflict
	}
	if err != nil {
		return utils.Internal(err)
	}
	return nil
}

// startPeriod unlocks the supplier for a freshly written period. The period
// is already committed, so a failure is logged and left unsynced for
// ReconcileSuppliers instead of failing the request.
func (s *SubscriptionService) startPeriod(ctx context.Context, sub *models.Subscription) *models.User {
	u, err := s.syncSupplier(ctx, sub, "")
	if err != nil {
		log.Error().Err(err).
			Int("subscription_id", sub.ID).
			Int("supplier_id", sub.SupplierID).
			Msg("Failed to reset supplier usage, left for reconciliation")
		return nil
	}
	return u
}

// syncSupplier brings the supplier account in line with sub: an active
// period unlocks and resets usage, an ended one locks with lockReason.
// sub is marked synced afterwards.
func (s *SubscriptionService) syncSupplier(ctx context.Context, sub *models.Subscription, lockReason string) (*models.User, error) {
	var u *models.User
	var err error
	if sub.Status == models.SubscriptionActive {
		u, err = s.accounts.ResetUsage(ctx, sub.SupplierID)
	} else {
		u, err = s.accounts.Lock(ctx, sub.SupplierID, lockReason)
	}
	if err != nil {
		return nil, err
	}
	if err := s.subs.MarkSupplierSynced(ctx, sub.ID); err != nil {
		log.Warn().Err(err).Int("subscription_id", sub.ID).Msg("Failed to mark subscription synced")
	}
	return u, nil
}

// CancelOwn cancels the caller's active subscription.
func (s *SubscriptionService) CancelOwn(ctx context.Context, actor Actor, reason string) (*models.Subscription, error) {
	sub, err := s.active(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, actor, sub, reason)
}

// Cancel cancels a subscription by id. Suppliers may only cancel their own.
func (s *SubscriptionService) Cancel(ctx context.Context, actor Actor, id int, reason string) (*models.Subscription, error) {
	sub, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && sub.SupplierID != actor.ID {
		return nil, utils.ErrForbidden
	}
	return s.cancel(ctx, actor, sub, reason)
}

func (s *SubscriptionService) cancel(ctx context.Context, actor Actor, sub *models.Subscription, reason string) (*models.Subscription, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "No reason provided"
	}
	cancelled, err := s.subs.Cancel(ctx, sub.ID, reason, s.now())
	if errors.Is(err, repository.ErrStaleState) {
		return nil, utils.ErrSubscriptionNotActive
	}
	if err != nil {
		return nil, utils.Internal(err)
	}

	by := "supplier"
	if actor.IsAdmin() {
		by = "admin"
	}
	s.events.NotifySubscription(sse.EventSubscriptionCancelled, cancelled)
	u, err := s.syncSupplier(ctx, cancelled, "Subscription cancelled by "+by+": "+reason)
	if err != nil {
		log.Error().Err(err).
			Int("subscription_id", sub.ID).
			Int("supplier_id", sub.SupplierID).
			Msg("Failed to lock supplier after cancellation, left for reconciliation")
	} else {
		s.notifier.Notify(ctx, u.Phone, u.Language, notify.SubscriptionCancelled)
	}
	log.Info().
		Int("subscription_id", sub.ID).
		Int("supplier_id", sub.SupplierID).
		Int("actor_id", actor.ID).
		Str("reason", reason).
		Msg("Subscription cancelled")
	return cancelled, nil
}

// Extend pushes the end date of a subscription and records an audit note.
func (s *SubscriptionService) Extend(ctx context.Context, actor Actor, id int, req ExtendSubscriptionRequest) (*models.Subscription, error) {
	if req.Days <= 0 {
		return nil, utils.ErrInvalidDays
	}
	if _, err := s.get(ctx, id); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "Extended by admin"
	}
	days := req.Days
	note := &models.SubscriptionNote{
		Action:  "extended",
		Days:    &days,
		Reason:  reason,
		ActorID: actor.ID,
	}
	sub, err := s.subs.Extend(ctx, id, req.Days, note)
	if err != nil {
		return nil, utils.Internal(err)
	}

	if u, err := s.users.GetByID(ctx, sub.SupplierID); err == nil {
		s.notifier.Notify(ctx, u.Phone, u.Language, notify.SubscriptionExtended, req.Days)
	}
	log.Info().Int("subscription_id", id).Int("days", req.Days).Int("actor_id", actor.ID).Msg("Subscription extended")
	return sub, nil
}

// SetAutoRenew toggles auto renewal on the caller's active subscription.
func (s *SubscriptionService) SetAutoRenew(ctx context.Context, actor Actor, autoRenew bool) (*models.Subscription, error) {
	sub, err := s.active(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	updated, err := s.subs.SetAutoRenew(ctx, sub.ID, autoRenew)
	if errors.Is(err, repository.ErrStaleState) {
		return nil, utils.ErrSubscriptionNotActive
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	return updated, nil
}

func (s *SubscriptionService) get(ctx context.Context, id int) (*models.Subscription, error) {
	sub, err := s.subs.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrSubscriptionNotFound.WithMessage("subscription not found")
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	return sub, nil
}

// Usage reports the caller's consumption of their plan. Warnings are
// near-limit, expiring and locked; locked wins as WarningType.
func (s *SubscriptionService) Usage(ctx context.Context, actor Actor) (*UsageInfo, error) {
	u, err := s.accounts.GetSupplier(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	sub, err := s.subs.GetActiveBySupplier(ctx, actor.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, utils.Internal(err)
	}

	info := &UsageInfo{
		Plan:         policy.PlanBasic,
		Status:       "inactive",
		ContactsUsed: u.ContactCount,
		BookingLimit: policy.BookingLimit,
		BookingsUsed: u.BookingCount,
		IsLocked:     u.IsLocked,
		LockReason:   u.LockReasonText(),
		Warnings:     []string{},
		Subscription: sub,
	}
	if sub != nil {
		info.Plan = sub.Plan
		info.Status = string(sub.Status)
		info.DaysUntilExpiry = daysUntil(s.now(), sub.EndDate)
	}
	info.ContactLimit = policy.ContactLimitFor(info.Plan)
	info.UsagePercentage = policy.UsagePercent(u.ContactCount, info.ContactLimit)

	if policy.ShouldWarn(u.ContactCount, info.ContactLimit) {
		info.Warnings = append(info.Warnings, "near-limit")
		info.WarningType = "near-limit"
	}
	if sub != nil && info.DaysUntilExpiry < 7 && u.ContactCount > 0 {
		info.Warnings = append(info.Warnings, "expiring")
		if info.WarningType == "" {
			info.WarningType = "expiring"
		}
	}
	if u.IsLocked {
		info.Warnings = append(info.Warnings, "locked")
		info.WarningType = "locked"
	}
	info.HasWarning = len(info.Warnings) > 0
	return info, nil
}

// Plans lists the available plans.
func (s *SubscriptionService) Plans() []policy.Plan {
	return policy.Plans()
}

// List returns a filtered page of subscriptions for admins.
func (s *SubscriptionService) List(ctx context.Context, f models.SubscriptionFilter) ([]*models.Subscription, int, error) {
	items, total, err := s.subs.List(ctx, f)
	if err != nil {
		return nil, 0, utils.Internal(err)
	}
	return items, total, nil
}

// Stats summarizes subscriptions and locked suppliers.
func (s *SubscriptionService) Stats(ctx context.Context) (*models.SubscriptionStats, error) {
	stats, err := s.subs.Stats(ctx, s.now().Add(ExpiryWarningWindow))
	if err != nil {
		return nil, utils.Internal(err)
	}
	locked, err := s.users.CountLocked(ctx)
	if err != nil {
		return nil, utils.Internal(err)
	}
	stats.LockedSuppliers = locked
	return stats, nil
}

// DailySweep warns suppliers whose subscription ends within a week and
// expires subscriptions past their end date, renewing those with auto
// renewal and locking the rest. Each subscription is handled on its own;
// a failure is logged and counted without stopping the sweep.
func (s *SubscriptionService) DailySweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := s.now()
	subs, err := s.subs.ListActiveEndingBefore(ctx, now.Add(ExpiryWarningWindow))
	if err != nil {
		return res, utils.Internal(err)
	}

	for _, sub := range subs {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		var outcome string
		var err error
		if sub.EndDate.Before(now) {
			outcome, err = s.expire(ctx, sub)
		} else {
			outcome, err = s.warnExpiring(ctx, sub, now)
		}
		if err != nil {
			res.Failed++
			s.metrics.Sweep("failed")
			log.Error().Err(err).Int("subscription_id", sub.ID).Int("supplier_id", sub.SupplierID).Msg("Subscription sweep failed")
			continue
		}
		s.metrics.Sweep(outcome)
		switch outcome {
		case "warned":
			res.Warned++
		case "expired":
			res.Expired++
		case "renewed":
			res.Renewed++
		default:
			res.Skipped++
		}
	}
	return res, nil
}

func (s *SubscriptionService) warnExpiring(ctx context.Context, sub *models.Subscription, now time.Time) (string, error) {
	u, err := s.users.GetByID(ctx, sub.SupplierID)
	if err != nil {
		return "", err
	}
	s.notifier.Notify(ctx, u.Phone, u.Language, notify.SubscriptionExpiring, daysUntil(now, sub.EndDate))
	return "warned", nil
}

func (s *SubscriptionService) expire(ctx context.Context, sub *models.Subscription) (string, error) {
	if sub.AutoRenew {
		plan, ok := policy.LookupPlan(sub.Plan)
		if !ok {
			plan, _ = policy.LookupPlan(policy.PlanBasic)
		}
		next := s.newPeriod(sub.SupplierID, plan, true, nil)
		rolled, err := s.subs.RollOver(ctx, sub.ID, next)
		if err != nil {
			return "", err
		}
		if !rolled {
			return "skipped", nil
		}
		u, err := s.syncSupplier(ctx, next, "")
		if err != nil {
			return "", err
		}
		s.events.NotifySubscription(sse.EventSubscriptionRenewed, next)
		s.notifier.Notify(ctx, u.Phone, u.Language, notify.SubscriptionRenewed)
		log.Info().Int("subscription_id", sub.ID).Int("next_subscription_id", next.ID).Msg("Subscription auto-renewed")
		return "renewed", nil
	}

	changed, err := s.subs.MarkExpired(ctx, sub.ID)
	if err != nil {
		return "", err
	}
	if !changed {
		return "skipped", nil
	}
	sub.Status = models.SubscriptionExpired
	u, err := s.syncSupplier(ctx, sub, models.LockReasonExpired)
	if err != nil {
		return "", err
	}
	s.events.NotifySubscription(sse.EventSubscriptionExpired, sub)
	s.notifier.Notify(ctx, u.Phone, u.Language, notify.SubscriptionExpired)
	log.Info().Int("subscription_id", sub.ID).Int("supplier_id", sub.SupplierID).Msg("Subscription expired")
	return "expired", nil
}

// ReconcileSuppliers repairs supplier accounts whose subscription follow-up
// never completed. A supplier with an unsynced active period is unlocked with
// usage reset; a supplier whose period ended without an active successor is
// locked. Returns how many subscriptions were brought in sync.
func (s *SubscriptionService) ReconcileSuppliers(ctx context.Context, batch int) (int, error) {
	subs, err := s.subs.ListUnsynced(ctx, s.now().Add(-SupplierSyncGrace), batch)
	if err != nil {
		return 0, utils.Internal(err)
	}

	fixed := 0
	for _, sub := range subs {
		if ctx.Err() != nil {
			return fixed, ctx.Err()
		}
		if err := s.reconcileSupplier(ctx, sub); err != nil {
			log.Error().Err(err).
				Int("subscription_id", sub.ID).
				Int("supplier_id", sub.SupplierID).
				Msg("Supplier reconciliation failed")
			continue
		}
		fixed++
	}
	if fixed > 0 {
		log.Info().Int("count", fixed).Msg("Reconciled supplier lock state")
	}
	return fixed, nil
}

func (s *SubscriptionService) reconcileSupplier(ctx context.Context, sub *models.Subscription) error {
	if sub.Status != models.SubscriptionActive {
		_, err := s.subs.GetActiveBySupplier(ctx, sub.SupplierID)
		if err == nil {
			// A newer period owns the supplier state.
			return s.markSynced(ctx, sub.ID)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return utils.Internal(err)
		}
	}

	u, err := s.syncSupplier(ctx, sub, endedLockReason(sub))
	if utils.KindOf(err) == utils.KindNotFound {
		return s.markSynced(ctx, sub.ID)
	}
	if err != nil {
		return err
	}
	log.Info().
		Int("subscription_id", sub.ID).
		Int("supplier_id", sub.SupplierID).
		Str("status", string(sub.Status)).
		Bool("locked", u.IsLocked).
		Msg("Supplier state repaired")
	return nil
}

func (s *SubscriptionService) markSynced(ctx context.Context, id int) error {
	if err := s.subs.MarkSupplierSynced(ctx, id); err != nil {
		return utils.Internal(err)
	}
	return nil
}

func endedLockReason(sub *models.Subscription) string {
	if sub.Status == models.SubscriptionCancelled {
		if sub.CancelReason != nil && *sub.CancelReason != "" {
			return "Subscription cancelled: " + *sub.CancelReason
		}
		return "Subscription cancelled"
	}
	return models.LockReasonExpired
}

// Details returns a subscription with its supplier and their most recent
// contact requests.
func (s *SubscriptionService) Details(ctx context.Context, id int) (*SubscriptionDetails, error) {
	sub, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	supplier, err := s.accounts.GetSupplier(ctx, sub.SupplierID)
	if err != nil {
		return nil, err
	}
	history, _, err := s.requests.ListBySupplier(ctx, sub.SupplierID, 1, contactHistoryLimit)
	if err != nil {
		return nil, utils.Internal(err)
	}
	if history == nil {
		history = []*models.ContactRequest{}
	}
	return &SubscriptionDetails{Subscription: sub, Supplier: supplier, ContactHistory: history}, nil
}

// Update applies an admin edit. Moving a subscription to cancelled or expired
// locks the supplier; moving it back to active unlocks it with usage reset.
func (s *SubscriptionService) Update(ctx context.Context, actor Actor, id int, req UpdateSubscriptionRequest) (*models.Subscription, error) {
	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	var upd models.SubscriptionUpdate
	var changes []string
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, utils.ErrInvalidStatus
		}
		upd.Status = req.Status
		changes = append(changes, "status="+string(*req.Status))
	}
	if req.Plan != nil {
		plan, ok := policy.LookupPlan(*req.Plan)
		if !ok {
			return nil, utils.ErrInvalidPlan
		}
		upd.Plan = &plan.Name
		upd.Amount = &plan.Price
		changes = append(changes, "plan="+plan.Name)
	}
	if req.EndDate != nil {
		if !req.EndDate.After(current.StartDate) {
			return nil, utils.ErrInvalidInput.WithMessage("endDate must be after the start date")
		}
		upd.EndDate = req.EndDate
		changes = append(changes, "endDate="+req.EndDate.UTC().Format(time.RFC3339))
	}
	if req.AutoRenew != nil {
		upd.AutoRenew = req.AutoRenew
		changes = append(changes, "autoRenew="+strconv.FormatBool(*req.AutoRenew))
	}
	if len(changes) == 0 {
		return nil, utils.ErrInvalidInput.WithMessage("nothing to update")
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = strings.Join(changes, ", ")
	}
	note := &models.SubscriptionNote{Action: "updated", Reason: reason, ActorID: actor.ID}
	sub, err := s.subs.Update(ctx, id, upd, note)
	if errors.Is(err, repository.ErrStaleState) {
		return nil, utils.ErrSubscriptionConflict
	}
	if err != nil {
		return nil, utils.Internal(err)
	}

	if sub.Status != current.Status {
		lockReason := "Subscription " + string(sub.Status) + " by admin"
		if _, err := s.syncSupplier(ctx, sub, lockReason); err != nil {
			log.Error().Err(err).
				Int("subscription_id", id).
				Int("supplier_id", sub.SupplierID).
				Msg("Failed to apply subscription status to supplier, left for reconciliation")
		}
		s.events.NotifySubscription(statusEvent(sub.Status), sub)
	}
	log.Info().Int("subscription_id", id).Int("actor_id", actor.ID).Strs("changes", changes).Msg("Subscription updated")
	return sub, nil
}

func statusEvent(status models.SubscriptionStatus) sse.EventType {
	switch status {
	case models.SubscriptionCancelled:
		return sse.EventSubscriptionCancelled
	case models.SubscriptionExpired:
		return sse.EventSubscriptionExpired
	default:
		return sse.EventSubscriptionRenewed
	}
}

// daysUntil rounds up to whole days, never below zero.
func daysUntil(now, end time.Time) int {
	d := end.Sub(now).Hours() / 24
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d))
}
