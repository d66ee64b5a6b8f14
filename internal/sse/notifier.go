package sse

import (
	"time"

	"github.com/GTDGit/event_marketplace_api/internal/models"
)

// EventNotifier is the interface services use to emit admin dashboard events.
type EventNotifier interface {
	NotifySupplier(event EventType, user *models.User)
	NotifySubscription(event EventType, sub *models.Subscription)
}

// HubNotifier implements EventNotifier using the SSE Hub.
type HubNotifier struct {
	hub *Hub
	now func() time.Time
}

// NewHubNotifier creates a notifier backed by the given Hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub, now: time.Now}
}

func (n *HubNotifier) NotifySupplier(event EventType, user *models.User) {
	if user == nil || n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(&SupplierEvent{
		Event:        event,
		SupplierID:   user.ID,
		Phone:        user.Phone,
		IsLocked:     user.IsLocked,
		LockReason:   user.LockReasonText(),
		ContactCount: user.ContactCount,
		BookingCount: user.BookingCount,
		Timestamp:    n.now(),
	})
}

func (n *HubNotifier) NotifySubscription(event EventType, sub *models.Subscription) {
	if sub == nil || n.hub.ClientCount() == 0 {
		return
	}
	id := sub.ID
	n.hub.Broadcast(&SupplierEvent{
		Event:          event,
		SupplierID:     sub.SupplierID,
		SubscriptionID: &id,
		Plan:           sub.Plan,
		Timestamp:      n.now(),
	})
}

// NopNotifier is a no-op implementation for when SSE is not needed.
type NopNotifier struct{}

func (NopNotifier) NotifySupplier(EventType, *models.User)             {}
func (NopNotifier) NotifySubscription(EventType, *models.Subscription) {}
