package service

import (
	"context"
	"time"

	"github.com/GTDGit/event_marketplace_api/internal/models"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   int
	Role models.Role
}

// IsAdmin reports whether the actor is an administrator.
func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// UserStore is implemented by repository.UserRepository.
type UserStore interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	IncrementContactCount(ctx context.Context, id, limit int) (*models.User, error)
	IncrementBookingCount(ctx context.Context, id, limit int) (*models.User, error)
	DecrementContactCount(ctx context.Context, id int) error
	DecrementBookingCount(ctx context.Context, id int) error
	Lock(ctx context.Context, id int, reason string) (*models.User, bool, error)
	Unlock(ctx context.Context, id int) (*models.User, bool, error)
	ResetUsage(ctx context.Context, id int) (*models.User, error)
	ListNeedingAttention(ctx context.Context, t models.AttentionThresholds, limit int) ([]*models.User, error)
	CountLocked(ctx context.Context) (int, error)
	SetRole(ctx context.Context, id int, role models.Role) (*models.User, error)
}

// ServiceStore is implemented by repository.ServiceRepository.
type ServiceStore interface {
	GetByID(ctx context.Context, id int) (*models.Service, error)
	Create(ctx context.Context, s *models.Service) error
	ListBySupplier(ctx context.Context, supplierID int) ([]*models.Service, error)
	PublishPrice(ctx context.Context, id int, q models.QuotedPrice) error
}

// ContactRequestStore is implemented by repository.ContactRequestRepository.
type ContactRequestStore interface {
	Create(ctx context.Context, cr *models.ContactRequest) error
	GetByID(ctx context.Context, id int) (*models.ContactRequest, error)
	ListBySupplier(ctx context.Context, supplierID, page, limit int) ([]*models.ContactRequest, int, error)
	ListByClient(ctx context.Context, clientID, page, limit int) ([]*models.ContactRequest, int, error)
	GetLatest(ctx context.Context, clientID, supplierID, serviceID int) (*models.ContactRequest, error)
	Respond(ctx context.Context, id int, status models.ContactRequestStatus, quote *models.QuotedPrice) (*models.ContactRequest, error)
	ConvertToBooking(ctx context.Context, requestID int, b *models.Booking) error
	MarkConverted(ctx context.Context, id int) (bool, error)
	ReconcileConverted(ctx context.Context, limit int) ([]int, error)
}

// BookingStore is implemented by repository.BookingRepository.
type BookingStore interface {
	Create(ctx context.Context, b *models.Booking) error
	GetByID(ctx context.Context, id int) (*models.Booking, error)
	ListByClient(ctx context.Context, clientID, page, limit int) ([]*models.Booking, int, error)
	ListBySupplier(ctx context.Context, supplierID, page, limit int) ([]*models.Booking, int, error)
	UpdateStatus(ctx context.Context, id int, status models.BookingStatus) (*models.Booking, error)
	CancelPending(ctx context.Context, id int) (*models.Booking, error)
}

// SubscriptionStore is implemented by repository.SubscriptionRepository.
type SubscriptionStore interface {
	Replace(ctx context.Context, s *models.Subscription) (*models.Subscription, error)
	RollOver(ctx context.Context, expiredID int, next *models.Subscription) (bool, error)
	Create(ctx context.Context, s *models.Subscription) error
	GetByID(ctx context.Context, id int) (*models.Subscription, error)
	GetActiveBySupplier(ctx context.Context, supplierID int) (*models.Subscription, error)
	MarkExpired(ctx context.Context, id int) (bool, error)
	Cancel(ctx context.Context, id int, reason string, at time.Time) (*models.Subscription, error)
	SetAutoRenew(ctx context.Context, id int, autoRenew bool) (*models.Subscription, error)
	Extend(ctx context.Context, id, days int, note *models.SubscriptionNote) (*models.Subscription, error)
	Update(ctx context.Context, id int, u models.SubscriptionUpdate, note *models.SubscriptionNote) (*models.Subscription, error)
	MarkSupplierSynced(ctx context.Context, id int) error
	ListUnsynced(ctx context.Context, olderThan time.Time, limit int) ([]*models.Subscription, error)
	ListActiveEndingBefore(ctx context.Context, t time.Time) ([]*models.Subscription, error)
	List(ctx context.Context, f models.SubscriptionFilter) ([]*models.Subscription, int, error)
	ListAll(ctx context.Context, f models.SubscriptionFilter) ([]*models.Subscription, error)
	Stats(ctx context.Context, soon time.Time) (*models.SubscriptionStats, error)
}

// JoinRequestStore is implemented by repository.JoinRequestRepository.
type JoinRequestStore interface {
	Create(ctx context.Context, jr *models.JoinRequest) error
	GetByID(ctx context.Context, id int) (*models.JoinRequest, error)
	List(ctx context.Context, f models.JoinRequestFilter) ([]*models.JoinRequest, int, error)
	SetStatus(ctx context.Context, id int, from []models.JoinRequestStatus, to models.JoinRequestStatus, reviewerID int, userID *int) (*models.JoinRequest, error)
}

// RatingStore is implemented by repository.RatingRepository.
type RatingStore interface {
	Upsert(ctx context.Context, r *models.Rating) error
	GetByUser(ctx context.Context, serviceID, userID int) (*models.Rating, error)
	ListByService(ctx context.Context, serviceID, page, limit int) ([]*models.Rating, int, error)
	Summary(ctx context.Context, serviceID int) (*models.RatingSummary, error)
	HasConfirmedBooking(ctx context.Context, serviceID, clientID int) (bool, error)
	HasAnsweredContact(ctx context.Context, serviceID, clientID int) (bool, error)
}

// ChatStore is implemented by repository.ChatRepository.
type ChatStore interface {
	Ensure(ctx context.Context, a, b int, contactRequestID *int) (*models.Chat, bool, error)
}

// OTPStore is implemented by cache.OTPStore.
type OTPStore interface {
	Save(ctx context.Context, phone, code string, ttl time.Duration) error
	Verify(ctx context.Context, phone, code string) (bool, error)
}

// RateLimiter is implemented by cache.RateLimiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// Recorder receives domain counters. *metrics.Collector implements it.
type Recorder interface {
	ContactRequest(outcome string)
	Booking(source, outcome string)
	SupplierLocked(reason string)
	SupplierUnlocked(reason string)
	LimitWarning(kind string)
	Sweep(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ContactRequest(string)   {}
func (nopRecorder) Booking(string, string)  {}
func (nopRecorder) SupplierLocked(string)   {}
func (nopRecorder) SupplierUnlocked(string) {}
func (nopRecorder) LimitWarning(string)     {}
func (nopRecorder) Sweep(string)            {}
