package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/apperr"
)

// SenderStatsAdapter implements domain.SenderStatsRepository over
// pgxQuerier, so the same adapter runs standalone or embedded in an
// EmailProcessorTx.
type SenderStatsAdapter struct {
	db pgxQuerier
}

func NewSenderStatsAdapter(db *pgxpool.Pool) *SenderStatsAdapter {
	return &SenderStatsAdapter{db: db}
}

func (a *SenderStatsAdapter) GetByUserAndSender(ctx context.Context, userID uuid.UUID, sender string) (*domain.SenderStats, error) {
	query := `
		SELECT id, user_id, sender, email_count, last_email_at, in_contacts, updated_at
		FROM sender_stats WHERE user_id = $1 AND sender = $2`

	var s domain.SenderStats
	err := a.db.QueryRow(ctx, query, userID, sender).Scan(
		&s.ID, &s.UserID, &s.Sender, &s.EmailCount, &s.LastEmailAt, &s.InContacts, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("sender stats")
		}
		return nil, apperr.DatabaseError("get sender stats", err)
	}
	return &s, nil
}

// UpsertContribution increments email_count by one and advances
// last_email_at to max(existing, receivedAt) for (userID, sender), creating
// the row on first contact. A single statement keeps the read-modify-write
// race-free under concurrent Email Processor instances (spec.md §4.2).
func (a *SenderStatsAdapter) UpsertContribution(ctx context.Context, userID uuid.UUID, sender string, receivedAt time.Time) error {
	query := `
		INSERT INTO sender_stats (user_id, sender, email_count, last_email_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (user_id, sender) DO UPDATE SET
			email_count = sender_stats.email_count + 1,
			last_email_at = GREATEST(sender_stats.last_email_at, EXCLUDED.last_email_at),
			updated_at = NOW()`

	_, err := a.db.Exec(ctx, query, userID, sender, receivedAt)
	if err != nil {
		return apperr.DatabaseError("upsert sender stats contribution", err)
	}
	return nil
}
