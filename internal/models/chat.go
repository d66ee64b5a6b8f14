package models

import "time"

// Chat is a direct channel between two users. Participants are stored in
// ascending id order so each unordered pair maps to one row.
type Chat struct {
	ID               int       `db:"id" json:"id"`
	ParticipantLow   int       `db:"participant_low" json:"participantLow"`
	ParticipantHigh  int       `db:"participant_high" json:"participantHigh"`
	ContactRequestID *int      `db:"contact_request_id" json:"contactRequestId,omitempty"`
	LastMessage      string    `db:"last_message" json:"lastMessage"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

// OrderedPair returns a and b in ascending order.
func OrderedPair(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}
