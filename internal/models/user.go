package models

import "time"

// Role identifies what a user may do on the marketplace.
type Role string

const (
	RoleClient   Role = "client"
	RoleSupplier Role = "supplier"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleSupplier, RoleAdmin:
		return true
	}
	return false
}

// Language is the preferred notification language.
type Language string

const (
	LangArabic  Language = "ar"
	LangEnglish Language = "en"
)

// Normalize falls back to Arabic for unknown values.
func (l Language) Normalize() Language {
	if l == LangEnglish {
		return LangEnglish
	}
	return LangArabic
}

// User is a marketplace account. For suppliers it also carries the usage
// counters and lock state that gate new contact requests and bookings.
type User struct {
	ID             int        `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	Phone          string     `db:"phone" json:"phone"`
	Language       Language   `db:"language" json:"language"`
	Role           Role       `db:"role" json:"role"`
	ContactCount   int        `db:"contact_count" json:"contactCount"`
	BookingCount   int        `db:"booking_count" json:"bookingCount"`
	IsLocked       bool       `db:"is_locked" json:"isLocked"`
	LockReason     *string    `db:"lock_reason" json:"lockReason,omitempty"`
	LockExpiryDate *time.Time `db:"lock_expiry_date" json:"lockExpiryDate,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsSupplier reports whether the user offers services.
func (u *User) IsSupplier() bool {
	return u.Role == RoleSupplier
}

// LockReasonText returns the lock reason or an empty string.
func (u *User) LockReasonText() string {
	if u.LockReason == nil {
		return ""
	}
	return *u.LockReason
}

// Lock reasons written by the usage engine.
const (
	LockReasonContactLimit = "Contact limit reached"
	LockReasonBookingLimit = "Booking limit reached"
	LockReasonExpired      = "Subscription expired"
)

// AttentionThresholds are the counter values at which a supplier shows up on
// the admin attention list. ContactByPlan is keyed by the plan of the active
// subscription; ContactDefault applies without one.
type AttentionThresholds struct {
	ContactByPlan  map[string]int
	ContactDefault int
	Booking        int
}
