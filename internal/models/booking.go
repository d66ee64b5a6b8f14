package models

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// DepositRate is the share of the total price paid upfront.
const DepositRate = 0.10

// Booking is a reservation of a service for an event date.
type Booking struct {
	ID               int           `db:"id" json:"id"`
	ServiceID        int           `db:"service_id" json:"serviceId"`
	SupplierID       int           `db:"supplier_id" json:"supplierId"`
	ClientID         int           `db:"client_id" json:"clientId"`
	ContactRequestID *int          `db:"contact_request_id" json:"contactRequestId,omitempty"`
	EventDate        time.Time     `db:"event_date" json:"eventDate"`
	NumberOfPeople   int           `db:"number_of_people" json:"numberOfPeople"`
	TotalPrice       float64       `db:"total_price" json:"totalPrice"`
	PaidAmount       float64       `db:"paid_amount" json:"paidAmount"`
	Currency         string        `db:"currency" json:"currency"`
	Status           BookingStatus `db:"status" json:"status"`
	CreatedAt        time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updatedAt"`
}
