package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SenderStats tracks per-(user, sender) aggregates the Feature Extractor
// reads as pure input (spec.md §3, §4.4). Maintained exclusively by the
// Email Processor via upsert: EmailCount is monotonic non-decreasing,
// LastEmailAt is the max of all contributing emails' received_at.
type SenderStats struct {
	ID          int64     `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Sender      string    `json:"sender"`
	EmailCount  int64     `json:"email_count"`
	LastEmailAt time.Time `json:"last_email_at"`
	InContacts  bool      `json:"in_contacts"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DaysSinceLastEmail returns the elapsed days since LastEmailAt, as used by
// the freshness/recency terms of SenderScore (spec.md §4.4).
func (s *SenderStats) DaysSinceLastEmail(now time.Time) float64 {
	if s.LastEmailAt.IsZero() {
		return 0
	}
	return now.Sub(s.LastEmailAt).Hours() / 24
}

// SenderStatsRepository persists SenderStats with upsert semantics: a
// contributing email bumps EmailCount by one and advances LastEmailAt to
// max(existing, received_at) in a single statement (spec.md §4.2).
type SenderStatsRepository interface {
	GetByUserAndSender(ctx context.Context, userID uuid.UUID, sender string) (*SenderStats, error)

	// UpsertContribution increments email_count by one and advances
	// last_email_at to max(existing, receivedAt) for (userID, sender),
	// creating the row if absent.
	UpsertContribution(ctx context.Context, userID uuid.UUID, sender string, receivedAt time.Time) error
}
