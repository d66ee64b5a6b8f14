package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/event_marketplace_api/internal/models"
)

// ChatRepository provides data access for chats.
type ChatRepository struct {
	db *sqlx.DB
}

// NewChatRepository creates a new ChatRepository.
func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Ensure returns the chat between a and b, creating it if it does not exist.
// created is true only for the caller that inserted the row.
func (r *ChatRepository) Ensure(ctx context.Context, a, b int, contactRequestID *int) (*models.Chat, bool, error) {
	low, high := models.OrderedPair(a, b)

	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `INSERT INTO chats (participant_low, participant_high, contact_request_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (participant_low, participant_high) DO NOTHING
		RETURNING id, participant_low, participant_high, contact_request_id, last_message, created_at`,
		low, high, contactRequestID)
	if err == nil {
		return &chat, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}
	if err := r.db.GetContext(ctx, &chat, `SELECT id, participant_low, participant_high, contact_request_id, last_message, created_at
		FROM chats WHERE participant_low = $1 AND participant_high = $2`, low, high); err != nil {
		return nil, false, err
	}
	return &chat, false, nil
}
