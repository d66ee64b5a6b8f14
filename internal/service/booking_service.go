package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/event_marketplace_api/internal/models"
	"github.com/GTDGit/event_marketplace_api/internal/notify"
	"github.com/GTDGit/event_marketplace_api/internal/policy"
	"github.com/GTDGit/event_marketplace_api/internal/repository"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

// BookingService creates bookings and drives their status.
type BookingService struct {
	bookings        BookingStore
	services        ServiceStore
	requests        ContactRequestStore
	users           UserStore
	accounts        *AccountService
	notifier        notify.Notifier
	metrics         Recorder
	defaultCurrency string
}

// NewBookingService constructs a BookingService.
func NewBookingService(
	bookings BookingStore,
	services ServiceStore,
	requests ContactRequestStore,
	users UserStore,
	accounts *AccountService,
	notifier notify.Notifier,
	metrics Recorder,
	defaultCurrency string,
) *BookingService {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if defaultCurrency == "" {
		defaultCurrency = "JOD"
	}
	return &BookingService{
		bookings:        bookings,
		services:        services,
		requests:        requests,
		users:           users,
		accounts:        accounts,
		notifier:        notifier,
		metrics:         metrics,
		defaultCurrency: defaultCurrency,
	}
}

// CreateBookingRequest is the body of POST /v1/bookings.
type CreateBookingRequest struct {
	ServiceID        int       `json:"serviceId" binding:"required"`
	EventDate        time.Time `json:"eventDate" binding:"required"`
	NumberOfPeople   int       `json:"numberOfPeople"`
	ContactRequestID *int      `json:"contactRequestId"`
}

// UpdateBookingStatusRequest is the body of PATCH /v1/bookings/:id/status.
type UpdateBookingStatusRequest struct {
	Status models.BookingStatus `json:"status" binding:"required"`
}

type resolvedPrice struct {
	amount   float64
	currency string
	request  *models.ContactRequest
}

// Create books a directly bookable service. Services without a published
// price need an accepted, quoted, unconverted contact request of the caller.
func (s *BookingService) Create(ctx context.Context, actor Actor, req CreateBookingRequest) (*models.Booking, error) {
	if req.EventDate.IsZero() || req.NumberOfPeople < 0 {
		return nil, utils.ErrInvalidInput.WithMessage("eventDate is required and numberOfPeople must not be negative")
	}
	svc, err := s.services.GetByID(ctx, req.ServiceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrServiceNotFound
	}
	if err != nil {
		return nil, utils.Internal(err)
	}

	if policy.Classify(svc).ByCategory {
		s.metrics.Booking("direct", "rejected_contact_only")
		return nil, utils.ErrContactOnlyCategory
	}

	price, err := s.resolvePrice(ctx, actor, svc, req.ContactRequestID)
	if err != nil {
		return nil, err
	}

	if !policy.IsDateAvailable(svc.Availability, req.EventDate) {
		s.metrics.Booking(sourceOf(price), "rejected_date")
		return nil, utils.ErrDateNotAvailable
	}
	if !withinCapacity(svc, req.NumberOfPeople) {
		return nil, utils.ErrCapacityOutOfRange
	}

	if _, err := s.accounts.EnsureReachable(ctx, svc.SupplierID); err != nil {
		s.metrics.Booking(sourceOf(price), "rejected_locked")
		return nil, err
	}
	metered := policy.ShouldEnforceLimit(svc)
	if metered {
		if _, err := s.accounts.RecordBooking(ctx, svc.SupplierID); err != nil {
			s.metrics.Booking(sourceOf(price), "rejected_locked")
			return nil, err
		}
	}

	b := &models.Booking{
		ServiceID:      svc.ID,
		SupplierID:     svc.SupplierID,
		ClientID:       actor.ID,
		EventDate:      req.EventDate,
		NumberOfPeople: req.NumberOfPeople,
		TotalPrice:     price.amount,
		PaidAmount:     Deposit(price.amount),
		Currency:       price.currency,
		Status:         models.BookingPending,
	}
	if price.request != nil {
		id := price.request.ID
		b.ContactRequestID = &id
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		if metered {
			s.accounts.ReleaseBooking(ctx, svc.SupplierID)
		}
		if errors.Is(err, repository.ErrStaleState) {
			return nil, utils.ErrAlreadyConverted
		}
		return nil, utils.Internal(err)
	}

	// Secondary write of the saga; the reconcile worker repairs failures.
	if price.request != nil {
		if _, err := s.requests.MarkConverted(ctx, price.request.ID); err != nil {
			log.Error().Err(err).
				Int("booking_id", b.ID).
				Int("contact_request_id", price.request.ID).
				Msg("Failed to mark contact request converted")
		}
	}

	s.metrics.Booking(sourceOf(price), "created")
	s.notifySupplier(ctx, svc, b)
	log.Info().
		Int("booking_id", b.ID).
		Int("service_id", svc.ID).
		Int("client_id", actor.ID).
		Float64("total_price", b.TotalPrice).
		Msg("Booking created")
	return b, nil
}

func (s *BookingService) resolvePrice(ctx context.Context, actor Actor, svc *models.Service, contactRequestID *int) (*resolvedPrice, error) {
	if !policy.PriceMissing(svc) {
		currency := svc.PriceCurrency
		if currency == "" {
			currency = s.defaultCurrency
		}
		return &resolvedPrice{amount: *svc.Price, currency: currency}, nil
	}
	if contactRequestID == nil {
		return nil, utils.ErrPriceNotAvailable
	}

	cr, err := s.requests.GetByID(ctx, *contactRequestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrContactRequestNotFound
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	if cr.ClientID != actor.ID {
		return nil, utils.ErrForbidden
	}
	if cr.ServiceID != svc.ID {
		return nil, utils.ErrContactRequestMismatch
	}
	if cr.Status != models.ContactAccepted {
		return nil, utils.ErrPriceNotAvailable
	}
	if cr.ConvertedToBooking {
		return nil, utils.ErrAlreadyConverted
	}
	q := cr.QuotedPrice()
	if q == nil {
		return nil, utils.ErrPriceNotAvailable
	}
	currency := q.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}
	return &resolvedPrice{amount: q.Amount, currency: currency, request: cr}, nil
}

func sourceOf(p *resolvedPrice) string {
	if p != nil && p.request != nil {
		return "contact_request"
	}
	return "direct"
}

func withinCapacity(svc *models.Service, people int) bool {
	if svc.MinCapacity > 0 && people < svc.MinCapacity {
		return false
	}
	if svc.MaxCapacity > 0 && people > svc.MaxCapacity {
		return false
	}
	return true
}

func (s *BookingService) notifySupplier(ctx context.Context, svc *models.Service, b *models.Booking) {
	supplier, err := s.users.GetByID(ctx, svc.SupplierID)
	if err != nil {
		log.Warn().Err(err).Int("booking_id", b.ID).Msg("Skipping booking notification")
		return
	}
	s.notifier.Notify(ctx, supplier.Phone, supplier.Language, notify.BookingCreatedSupplier,
		svc.Name, b.EventDate.Format("2006-01-02"))
}

func (s *BookingService) get(ctx context.Context, id int) (*models.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrBookingNotFound
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	return b, nil
}

// UpdateStatus lets the owning supplier confirm or cancel a booking.
func (s *BookingService) UpdateStatus(ctx context.Context, actor Actor, id int, status models.BookingStatus) (*models.Booking, error) {
	if status != models.BookingConfirmed && status != models.BookingCancelled {
		return nil, utils.ErrInvalidStatus
	}
	b, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.SupplierID != actor.ID {
		return nil, utils.ErrForbidden
	}
	updated, err := s.bookings.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, utils.Internal(err)
	}
	s.notifyClientStatus(ctx, updated)
	return updated, nil
}

// Cancel lets the client cancel their own booking while it is pending.
func (s *BookingService) Cancel(ctx context.Context, actor Actor, id int) (*models.Booking, error) {
	b, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.ClientID != actor.ID {
		return nil, utils.ErrForbidden
	}
	if b.Status != models.BookingPending {
		return nil, utils.ErrBookingNotPending
	}
	updated, err := s.bookings.CancelPending(ctx, id)
	if errors.Is(err, repository.ErrStaleState) {
		return nil, utils.ErrBookingNotPending
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	return updated, nil
}

func (s *BookingService) notifyClientStatus(ctx context.Context, b *models.Booking) {
	client, err := s.users.GetByID(ctx, b.ClientID)
	if err != nil {
		log.Warn().Err(err).Int("booking_id", b.ID).Msg("Skipping booking status notification")
		return
	}
	serviceName := ""
	if svc, err := s.services.GetByID(ctx, b.ServiceID); err == nil {
		serviceName = svc.Name
	}
	s.notifier.Notify(ctx, client.Phone, client.Language, notify.BookingStatusChanged, serviceName, string(b.Status))
}

// ListForClient returns a page of the caller's bookings.
func (s *BookingService) ListForClient(ctx context.Context, actor Actor, page, limit int) ([]*models.Booking, int, error) {
	items, total, err := s.bookings.ListByClient(ctx, actor.ID, page, limit)
	if err != nil {
		return nil, 0, utils.Internal(err)
	}
	return items, total, nil
}

// ListForSupplier returns a page of bookings of the caller's services.
func (s *BookingService) ListForSupplier(ctx context.Context, actor Actor, page, limit int) ([]*models.Booking, int, error) {
	items, total, err := s.bookings.ListBySupplier(ctx, actor.ID, page, limit)
	if err != nil {
		return nil, 0, utils.Internal(err)
	}
	return items, total, nil
}
