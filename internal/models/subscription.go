package models

import "time"

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Subscription is a paid period that keeps a supplier unlocked.
type Subscription struct {
	ID           int                `db:"id" json:"id"`
	SupplierID   int                `db:"supplier_id" json:"supplierId"`
	Plan         string             `db:"plan" json:"plan"`
	Status       SubscriptionStatus `db:"status" json:"status"`
	StartDate    time.Time          `db:"start_date" json:"startDate"`
	EndDate      time.Time          `db:"end_date" json:"endDate"`
	AutoRenew    bool               `db:"auto_renew" json:"autoRenew"`
	Amount       float64            `db:"amount" json:"amount"`
	PaymentID    *string            `db:"payment_id" json:"paymentId,omitempty"`
	CancelledAt  *time.Time         `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CancelReason *string            `db:"cancel_reason" json:"cancelReason,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updatedAt"`

	// SupplierSynced is false until the supplier lock state reflects Status.
	SupplierSynced bool `db:"supplier_synced" json:"-"`

	Notes []SubscriptionNote `db:"-" json:"notes,omitempty"`
}

// SubscriptionNote is an audit entry appended by admin actions.
type SubscriptionNote struct {
	ID             int       `db:"id" json:"id"`
	SubscriptionID int       `db:"subscription_id" json:"subscriptionId"`
	Action         string    `db:"action" json:"action"`
	Days           *int      `db:"days" json:"days,omitempty"`
	Reason         string    `db:"reason" json:"reason"`
	ActorID        int       `db:"actor_id" json:"adminId"`
	CreatedAt      time.Time `db:"created_at" json:"date"`
}

// Valid reports whether s is a known status.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionActive, SubscriptionExpired, SubscriptionCancelled:
		return true
	}
	return false
}

// SubscriptionUpdate carries an admin edit. Nil fields are left unchanged.
type SubscriptionUpdate struct {
	Status    *SubscriptionStatus
	Plan      *string
	Amount    *float64
	EndDate   *time.Time
	AutoRenew *bool
}

// SubscriptionFilter narrows admin subscription listings.
type SubscriptionFilter struct {
	Status string
	Plan   string
	Page   int
	Limit  int
}

// SubscriptionStats summarizes subscriptions for the admin dashboard.
type SubscriptionStats struct {
	Total           int                `json:"total"`
	ByStatus        map[string]int     `json:"byStatus"`
	ByPlan          map[string]int     `json:"byPlan"`
	ActiveRevenue   float64            `json:"activeRevenue"`
	RevenueByPlan   map[string]float64 `json:"revenueByPlan"`
	ExpiringSoon    int                `json:"expiringSoon"`
	LockedSuppliers int                `json:"lockedSuppliers"`
}
