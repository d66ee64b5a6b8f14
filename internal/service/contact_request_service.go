package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/event_marketplace_api/internal/models"
	"github.com/GTDGit/event_marketplace_api/internal/notify"
	"github.com/GTDGit/event_marketplace_api/internal/policy"
	"github.com/GTDGit/event_marketplace_api/internal/repository"
	"github.com/GTDGit/event_marketplace_api/internal/utils"
)

// ContactRequestService runs the contact request workflow:
// pending -> accepted | rejected, then at most one conversion to a booking.
type ContactRequestService struct {
	requests        ContactRequestStore
	services        ServiceStore
	users           UserStore
	chats           ChatStore
	accounts        *AccountService
	notifier        notify.Notifier
	metrics         Recorder
	defaultCurrency string
}

// NewContactRequestService constructs a ContactRequestService.
func NewContactRequestService(
	requests ContactRequestStore,
	services ServiceStore,
	users UserStore,
	chats ChatStore,
	accounts *AccountService,
	notifier notify.Notifier,
	metrics Recorder,
	defaultCurrency string,
) *ContactRequestService {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if defaultCurrency == "" {
		defaultCurrency = "JOD"
	}
	return &ContactRequestService{
		requests:        requests,
		services:        services,
		users:           users,
		chats:           chats,
		accounts:        accounts,
		notifier:        notifier,
		metrics:         metrics,
		defaultCurrency: defaultCurrency,
	}
}

// SubmitContactRequest is the body of POST /v1/contact-requests.
type SubmitContactRequest struct {
	ServiceID int    `json:"serviceId" binding:"required"`
	Message   string `json:"message"`
	Via       string `json:"via"`
}

// RespondContactRequest is the body of PATCH /v1/contact-requests/:id/status.
type RespondContactRequest struct {
	Status       models.ContactRequestStatus `json:"status" binding:"required"`
	QuotedPrice  *models.QuotedPrice         `json:"quotedPrice"`
	PublishPrice bool                        `json:"publishPrice"`
}

// ConvertContactRequest is the body of POST /v1/contact-requests/:id/convert.
type ConvertContactRequest struct {
	EventDate      time.Time `json:"eventDate" binding:"required"`
	NumberOfPeople int       `json:"numberOfPeople"`
	PublishPrice   bool      `json:"publishPrice"`
}

func (s *ContactRequestService) getService(ctx context.Context, id int) (*models.Service, error) {
	svc, err := s.services.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrServiceNotFound
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	return svc, nil
}

func (s *ContactRequestService) get(ctx context.Context, id int) (*models.ContactRequest, error) {
	cr, err := s.requests.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrContactRequestNotFound
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	return cr, nil
}

// Submit creates a pending contact request for a service that cannot be
// booked directly and claims one contact slot of its supplier.
func (s *ContactRequestService) Submit(ctx context.Context, actor Actor, req SubmitContactRequest) (*models.ContactRequest, error) {
	svc, err := s.getService(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if svc.SupplierID == actor.ID {
		return nil, utils.ErrInvalidInput.WithMessage("cannot send a contact request to yourself")
	}
	if !policy.Classify(svc).Any() {
		return nil, utils.ErrContactRequestNotNeeded
	}

	if _, err := s.accounts.EnsureReachable(ctx, svc.SupplierID); err != nil {
		s.metrics.ContactRequest("rejected_locked")
		return nil, err
	}
	if _, err := s.accounts.RecordContact(ctx, svc.SupplierID); err != nil {
		s.metrics.ContactRequest("rejected_locked")
		return nil, err
	}

	via := strings.TrimSpace(req.Via)
	if via == "" {
		via = "direct"
	}
	cr := &models.ContactRequest{
		ClientID:   actor.ID,
		SupplierID: svc.SupplierID,
		ServiceID:  svc.ID,
		Message:    req.Message,
		Via:        via,
		Status:     models.ContactPending,
	}
	if err := s.requests.Create(ctx, cr); err != nil {
		s.accounts.ReleaseContact(ctx, svc.SupplierID)
		return nil, utils.Internal(err)
	}

	s.metrics.ContactRequest("created")
	log.Info().
		Int("contact_request_id", cr.ID).
		Int("client_id", cr.ClientID).
		Int("supplier_id", cr.SupplierID).
		Int("service_id", cr.ServiceID).
		Msg("Contact request submitted")
	return cr, nil
}

// Respond records the supplier's answer to a pending request. Chat creation,
// price publishing and notifications are best effort.
func (s *ContactRequestService) Respond(ctx context.Context, actor Actor, id int, req RespondContactRequest) (*models.ContactRequest, error) {
	if req.Status != models.ContactAccepted && req.Status != models.ContactRejected {
		return nil, utils.ErrInvalidStatus
	}
	cr, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cr.SupplierID != actor.ID {
		return nil, utils.ErrForbidden
	}
	if cr.Status != models.ContactPending {
		return nil, utils.ErrRequestNotPending
	}

	var quote *models.QuotedPrice
	if req.Status == models.ContactAccepted && req.QuotedPrice != nil {
		if req.QuotedPrice.Amount < 0 || math.IsNaN(req.QuotedPrice.Amount) {
			return nil, utils.ErrInvalidInput.WithMessage("quoted amount must not be negative")
		}
		if req.QuotedPrice.PriceType != "" && !req.QuotedPrice.PriceType.Valid() {
			return nil, utils.ErrInvalidInput.WithMessage("unknown price type")
		}
		q := *req.QuotedPrice
		q.Currency = strings.ToUpper(strings.TrimSpace(q.Currency))
		quote = &q
	}

	updated, err := s.requests.Respond(ctx, id, req.Status, quote)
	if errors.Is(err, repository.ErrStaleState) {
		return nil, utils.ErrRequestNotPending
	}
	if err != nil {
		return nil, utils.Internal(err)
	}

	if updated.Status == models.ContactAccepted {
		s.ensureChat(ctx, updated)
		if req.PublishPrice {
			s.publishPrice(ctx, updated)
		}
	}
	s.notifyResponse(ctx, updated)

	log.Info().
		Int("contact_request_id", updated.ID).
		Str("status", string(updated.Status)).
		Bool("quoted", updated.Quote != nil).
		Msg("Contact request answered")
	return updated, nil
}

func (s *ContactRequestService) ensureChat(ctx context.Context, cr *models.ContactRequest) {
	if s.chats == nil || cr.ClientID == cr.SupplierID {
		return
	}
	requestID := cr.ID
	chat, created, err := s.chats.Ensure(ctx, cr.ClientID, cr.SupplierID, &requestID)
	if err != nil {
		log.Warn().Err(err).Int("contact_request_id", cr.ID).Msg("Failed to ensure chat channel")
		return
	}
	if created {
		log.Info().Int("chat_id", chat.ID).Int("contact_request_id", cr.ID).Msg("Chat channel created")
	}
}

func (s *ContactRequestService) publishPrice(ctx context.Context, cr *models.ContactRequest) {
	q := cr.QuotedPrice()
	if q == nil {
		return
	}
	if err := s.services.PublishPrice(ctx, cr.ServiceID, *q); err != nil {
		log.Warn().Err(err).Int("service_id", cr.ServiceID).Int("contact_request_id", cr.ID).Msg("Failed to publish quoted price")
	}
}

func (s *ContactRequestService) notifyResponse(ctx context.Context, cr *models.ContactRequest) {
	client, errClient := s.users.GetByID(ctx, cr.ClientID)
	supplier, errSupplier := s.users.GetByID(ctx, cr.SupplierID)
	if errClient != nil || errSupplier != nil {
		log.Warn().
			AnErr("client_err", errClient).
			AnErr("supplier_err", errSupplier).
			Int("contact_request_id", cr.ID).
			Msg("Skipping contact request notifications")
		return
	}
	serviceName := ""
	if svc, err := s.services.GetByID(ctx, cr.ServiceID); err == nil {
		serviceName = svc.Name
	}

	supplierKey, clientKey := notify.ContactRequestRejected, notify.ClientRequestRejected
	if cr.Status == models.ContactAccepted {
		supplierKey, clientKey = notify.ContactRequestAccepted, notify.ClientRequestAccepted
	}
	s.notifier.Notify(ctx, supplier.Phone, supplier.Language, supplierKey, client.Name, serviceName)
	s.notifier.Notify(ctx, client.Phone, client.Language, clientKey, supplier.Name, serviceName)
}

// Convert turns an accepted, quoted request into a pending booking. It
// succeeds at most once per request.
func (s *ContactRequestService) Convert(ctx context.Context, actor Actor, id int, req ConvertContactRequest) (*models.Booking, error) {
	if req.EventDate.IsZero() || req.NumberOfPeople < 0 {
		return nil, utils.ErrInvalidInput.WithMessage("eventDate is required and numberOfPeople must not be negative")
	}
	cr, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cr.ClientID != actor.ID {
		return nil, utils.ErrForbidden
	}
	if cr.Status != models.ContactAccepted {
		return nil, utils.ErrRequestNotAccepted
	}
	if cr.ConvertedToBooking {
		return nil, utils.ErrAlreadyConverted
	}
	quote := cr.QuotedPrice()
	if quote == nil {
		return nil, utils.ErrNoQuotedPrice
	}

	svc, err := s.getService(ctx, cr.ServiceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.accounts.EnsureReachable(ctx, cr.SupplierID); err != nil {
		return nil, err
	}
	metered := policy.ShouldEnforceLimit(svc)
	if metered {
		if _, err := s.accounts.RecordBooking(ctx, cr.SupplierID); err != nil {
			return nil, err
		}
	}

	b := s.bookingFromQuote(cr, quote, req)
	err = s.requests.ConvertToBooking(ctx, cr.ID, b)
	if err != nil {
		if metered {
			s.accounts.ReleaseBooking(ctx, cr.SupplierID)
		}
		if errors.Is(err, repository.ErrStaleState) {
			return nil, utils.ErrAlreadyConverted
		}
		return nil, utils.Internal(err)
	}

	if req.PublishPrice {
		s.publishPrice(ctx, cr)
	}
	s.metrics.Booking("contact_request", "created")
	log.Info().
		Int("booking_id", b.ID).
		Int("contact_request_id", cr.ID).
		Float64("total_price", b.TotalPrice).
		Msg("Contact request converted to booking")
	return b, nil
}

func (s *ContactRequestService) bookingFromQuote(cr *models.ContactRequest, q *models.QuotedPrice, req ConvertContactRequest) *models.Booking {
	currency := q.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}
	requestID := cr.ID
	return &models.Booking{
		ServiceID:        cr.ServiceID,
		SupplierID:       cr.SupplierID,
		ClientID:         cr.ClientID,
		ContactRequestID: &requestID,
		EventDate:        req.EventDate,
		NumberOfPeople:   req.NumberOfPeople,
		TotalPrice:       q.Amount,
		PaidAmount:       Deposit(q.Amount),
		Currency:         currency,
		Status:           models.BookingPending,
	}
}

// Deposit is the upfront share of total, rounded to 3 decimals (fils).
func Deposit(total float64) float64 {
	return math.Round(total*models.DepositRate*1000) / 1000
}

// ListForSupplier returns a page of requests received by the supplier.
func (s *ContactRequestService) ListForSupplier(ctx context.Context, actor Actor, page, limit int) ([]*models.ContactRequest, int, error) {
	items, total, err := s.requests.ListBySupplier(ctx, actor.ID, page, limit)
	if err != nil {
		return nil, 0, utils.Internal(err)
	}
	return items, total, nil
}

// ListForClient returns a page of requests sent by the client.
func (s *ContactRequestService) ListForClient(ctx context.Context, actor Actor, page, limit int) ([]*models.ContactRequest, int, error) {
	items, total, err := s.requests.ListByClient(ctx, actor.ID, page, limit)
	if err != nil {
		return nil, 0, utils.Internal(err)
	}
	return items, total, nil
}

// Status returns the latest request between a client and a supplier for a
// service. Only the two parties and admins may look it up.
func (s *ContactRequestService) Status(ctx context.Context, actor Actor, clientID, supplierID, serviceID int) (*models.ContactRequest, error) {
	if !actor.IsAdmin() && actor.ID != clientID && actor.ID != supplierID {
		return nil, utils.ErrForbidden
	}
	cr, err := s.requests.GetLatest(ctx, clientID, supplierID, serviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrContactRequestNotFound
	}
	if err != nil {
		return nil, utils.Internal(err)
	}
	return cr, nil
}

// ReconcileConverted marks requests that already have a booking as converted.
// It repairs conversions whose secondary write failed and returns how many
// requests were fixed.
func (s *ContactRequestService) ReconcileConverted(ctx context.Context, batch int) (int, error) {
	ids, err := s.requests.ReconcileConverted(ctx, batch)
	if err != nil {
		return 0, utils.Internal(err)
	}
	if len(ids) > 0 {
		log.Warn().Ints("contact_request_ids", ids).Msg("Repaired unconverted contact requests")
	}
	return len(ids), nil
}
