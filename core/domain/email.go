package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Email is the persisted record of one inbound message, identified by
// (user, external message id). Never mutated after creation — a retried
// Email Processor confirms the row already exists and stops (spec.md §4.2).
type Email struct {
	ID         int64     `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	MessageID  string    `json:"message_id"` // external message id from the inbox provider
	ThreadID   string    `json:"thread_id"`
	FromEmail  string    `json:"from_email"`
	FromName   *string   `json:"from_name,omitempty"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"received_at"`

	// Snippet is a preview truncated to 200 chars; the pipeline never
	// stores the full body (spec.md §1 Non-goals).
	Snippet string `json:"snippet"`

	Labels           []string `json:"labels,omitempty"`
	ThreadReplyCount int      `json:"thread_reply_count"`

	CreatedAt time.Time `json:"created_at"`
}

// EmailRepository persists Email rows. Create must be safe under
// at-least-once redelivery: callers are expected to check GetByMessageID
// first, and the unique (user_id, message_id) constraint backstops races.
type EmailRepository interface {
	GetByID(ctx context.Context, id int64) (*Email, error)
	GetByMessageID(ctx context.Context, userID uuid.UUID, messageID string) (*Email, error)
	Create(ctx context.Context, email *Email) error
	ListByDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*Email, error)
}
