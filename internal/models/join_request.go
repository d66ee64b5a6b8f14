package models

import "time"

// JoinRequestStatus is the review state of a supplier application.
type JoinRequestStatus string

const (
	JoinPending  JoinRequestStatus = "pending"
	JoinReviewed JoinRequestStatus = "reviewed"
	JoinApproved JoinRequestStatus = "approved"
	JoinRejected JoinRequestStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s JoinRequestStatus) Valid() bool {
	switch s {
	case JoinPending, JoinReviewed, JoinApproved, JoinRejected:
		return true
	}
	return false
}

// Countries a supplier may apply from.
const (
	CountryJordan = "jordan"
	CountryKuwait = "kuwait"
)

// JoinRequest is an application to become a supplier. Approval creates or
// promotes the user owning Phone.
type JoinRequest struct {
	ID          int               `db:"id" json:"id"`
	Name        string            `db:"name" json:"name"`
	Phone       string            `db:"phone" json:"phone"`
	Country     string            `db:"country" json:"country"`
	ServiceType string            `db:"service_type" json:"serviceType"`
	City        string            `db:"city" json:"city"`
	Notes       string            `db:"notes" json:"notes,omitempty"`
	Status      JoinRequestStatus `db:"status" json:"status"`
	UserID      *int              `db:"user_id" json:"userId,omitempty"`
	ReviewedBy  *int              `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time        `db:"reviewed_at" json:"reviewedAt,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updatedAt"`
}

// JoinRequestFilter narrows admin join request listings.
type JoinRequestFilter struct {
	Status string
	Page   int
	Limit  int
}
