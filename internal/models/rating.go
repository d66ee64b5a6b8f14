package models

import "time"

// Rating is one client's score for a service. A client holds at most one
// rating per service; rating again replaces it.
type Rating struct {
	ID        int       `db:"id" json:"id"`
	ServiceID int       `db:"service_id" json:"serviceId"`
	UserID    int       `db:"user_id" json:"userId"`
	UserName  string    `db:"user_name" json:"userName,omitempty"`
	Score     int       `db:"score" json:"score"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// RatingSummary aggregates the ratings of a service.
type RatingSummary struct {
	ServiceID int     `db:"service_id" json:"serviceId"`
	Average   float64 `db:"average" json:"average"`
	Count     int     `db:"count" json:"count"`
}
