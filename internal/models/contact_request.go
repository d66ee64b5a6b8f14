package models

import "time"

// ContactRequestStatus is the lifecycle state of a contact request.
type ContactRequestStatus string

const (
	ContactPending  ContactRequestStatus = "pending"
	ContactAccepted ContactRequestStatus = "accepted"
	ContactRejected ContactRequestStatus = "rejected"
)

// QuotedPrice is the price a supplier attaches when accepting a request.
type QuotedPrice struct {
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency,omitempty"`
	PriceType PriceType `json:"priceType,omitempty"`
}

// ContactRequest is a client's request to reach a supplier about a service.
type ContactRequest struct {
	ID                 int                  `db:"id" json:"id"`
	ClientID           int                  `db:"client_id" json:"clientId"`
	SupplierID         int                  `db:"supplier_id" json:"supplierId"`
	ServiceID          int                  `db:"service_id" json:"serviceId"`
	Message            string               `db:"message" json:"message"`
	Via                string               `db:"via" json:"via"`
	QuotedAmount       *float64             `db:"quoted_amount" json:"-"`
	QuotedCurrency     *string              `db:"quoted_currency" json:"-"`
	QuotedPriceType    *string              `db:"quoted_price_type" json:"-"`
	ConvertedToBooking bool                 `db:"converted_to_booking" json:"convertedToBooking"`
	Status             ContactRequestStatus `db:"status" json:"status"`
	CreatedAt          time.Time            `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time            `db:"updated_at" json:"updatedAt"`

	// Quote is the JSON view of the quoted_* columns.
	Quote *QuotedPrice `db:"-" json:"quotedPrice,omitempty"`
}

// QuotedPrice assembles the quote from its columns. A missing or zero amount
// means no usable quote.
func (r *ContactRequest) QuotedPrice() *QuotedPrice {
	if r.QuotedAmount == nil || *r.QuotedAmount <= 0 {
		return nil
	}
	q := &QuotedPrice{Amount: *r.QuotedAmount}
	if r.QuotedCurrency != nil {
		q.Currency = *r.QuotedCurrency
	}
	if r.QuotedPriceType != nil {
		q.PriceType = PriceType(*r.QuotedPriceType)
	}
	return q
}

// SetQuote writes q into the quoted_* columns.
func (r *ContactRequest) SetQuote(q *QuotedPrice) {
	if q == nil {
		return
	}
	amount := q.Amount
	r.QuotedAmount = &amount
	if q.Currency != "" {
		cur := q.Currency
		r.QuotedCurrency = &cur
	}
	if q.PriceType != "" {
		pt := string(q.PriceType)
		r.QuotedPriceType = &pt
	}
	r.Quote = r.QuotedPrice()
}

// Hydrate fills the JSON-only fields after a database read.
func (r *ContactRequest) Hydrate() {
	r.Quote = r.QuotedPrice()
}
