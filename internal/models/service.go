package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
)

// PriceType describes how a service is priced.
type PriceType string

const (
	PriceFixed       PriceType = "fixed"
	PriceFrom        PriceType = "from"
	PriceNegotiable  PriceType = "negotiable"
	PriceFree        PriceType = "free"
	PriceNotProvided PriceType = "not_provided"
)

// Valid reports whether p is a known price type.
func (p PriceType) Valid() bool {
	switch p {
	case PriceFixed, PriceFrom, PriceNegotiable, PriceFree, PriceNotProvided:
		return true
	}
	return false
}

// DateRange is an inclusive availability window.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Availability describes when a service can be booked. The range form takes
// precedence; AvailableDates is the older explicit list.
type Availability struct {
	DateRange      *DateRange  `json:"dateRange,omitempty"`
	ExcludedDates  []time.Time `json:"excludedDates,omitempty"`
	AvailableDates []time.Time `json:"availableDates,omitempty"`
}

// Value implements driver.Valuer for database storage
func (a Availability) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for database retrieval
func (a *Availability) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return errors.New("failed to scan Availability")
	}
}

// Service is an item offered by a supplier (hall, farm, catering, ...).
// A nil Price means the supplier did not publish one.
type Service struct {
	ID             int            `db:"id" json:"id"`
	SupplierID     int            `db:"supplier_id" json:"supplierId"`
	Name           string         `db:"name" json:"name"`
	Category       string         `db:"category" json:"category"`
	Subcategories  pq.StringArray `db:"subcategories" json:"subcategories"`
	Price          *float64       `db:"price" json:"price,omitempty"`
	PriceCurrency  string         `db:"price_currency" json:"priceCurrency"`
	PriceType      PriceType      `db:"price_type" json:"priceType"`
	PriceAvailable bool           `db:"price_available" json:"priceAvailable"`
	Availability   Availability   `db:"availability" json:"availability"`
	MinCapacity    int            `db:"min_capacity" json:"minCapacity"`
	MaxCapacity    int            `db:"max_capacity" json:"maxCapacity"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
}
