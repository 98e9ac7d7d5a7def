package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/apperr"
)

// EmailAdapter implements domain.EmailRepository over pgxQuerier, so the
// same adapter runs standalone or embedded in an EmailProcessorTx.
type EmailAdapter struct {
	db pgxQuerier
}

func NewEmailAdapter(db *pgxpool.Pool) *EmailAdapter {
	return &EmailAdapter{db: db}
}

func (a *EmailAdapter) GetByID(ctx context.Context, id int64) (*domain.Email, error) {
	query := `
		SELECT id, user_id, message_id, thread_id, from_email, from_name, subject,
		       received_at, snippet, labels, thread_reply_count, created_at
		FROM emails WHERE id = $1`

	return a.scanEmail(a.db.QueryRow(ctx, query, id))
}

func (a *EmailAdapter) GetByMessageID(ctx context.Context, userID uuid.UUID, messageID string) (*domain.Email, error) {
	query := `
		SELECT id, user_id, message_id, thread_id, from_email, from_name, subject,
		       received_at, snippet, labels, thread_reply_count, created_at
		FROM emails WHERE user_id = $1 AND message_id = $2`

	return a.scanEmail(a.db.QueryRow(ctx, query, userID, messageID))
}

func (a *EmailAdapter) scanEmail(row pgx.Row) (*domain.Email, error) {
	var e domain.Email
	var fromName sql.NullString

	err := row.Scan(
		&e.ID, &e.UserID, &e.MessageID, &e.ThreadID, &e.FromEmail, &fromName, &e.Subject,
		&e.ReceivedAt, &e.Snippet, &e.Labels, &e.ThreadReplyCount, &e.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("email")
		}
		return nil, apperr.DatabaseError("get email", err)
	}
	if fromName.Valid {
		e.FromName = &fromName.String
	}
	return &e, nil
}

// Create inserts email. At-least-once redelivery is tolerated: a hit on
// the (user_id, message_id) unique constraint maps to IntegrityViolation,
// which the Email Processor treats as "already processed, continue"
// (spec.md §4.2).
func (a *EmailAdapter) Create(ctx context.Context, email *domain.Email) error {
	query := `
		INSERT INTO emails (user_id, message_id, thread_id, from_email, from_name, subject,
		                     received_at, snippet, labels, thread_reply_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	err := a.db.QueryRow(ctx, query,
		email.UserID, email.MessageID, email.ThreadID, email.FromEmail, email.FromName,
		email.Subject, email.ReceivedAt, email.Snippet, email.Labels, email.ThreadReplyCount,
	).Scan(&email.ID, &email.CreatedAt)
	if err != nil {
		return wrapIntegrityOrDB("create email", "emails_user_id_message_id_key", err)
	}
	return nil
}

func (a *EmailAdapter) ListByDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Email, error) {
	query := `
		SELECT id, user_id, message_id, thread_id, from_email, from_name, subject,
		       received_at, snippet, labels, thread_reply_count, created_at
		FROM emails
		WHERE user_id = $1 AND received_at >= $2 AND received_at < $3
		ORDER BY received_at`

	rows, err := a.db.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, apperr.DatabaseError("list emails by date range", err)
	}
	defer rows.Close()

	var emails []*domain.Email
	for rows.Next() {
		e, err := a.scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.DatabaseError("list emails by date range", err)
	}
	return emails, nil
}
