package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/apperr"
)

// FeedbackAdapter implements domain.FeedbackRepository over pgxpool.
// Feedback is append-only: there is no Update or Delete path.
type FeedbackAdapter struct {
	db *pgxpool.Pool
}

func NewFeedbackAdapter(db *pgxpool.Pool) *FeedbackAdapter {
	return &FeedbackAdapter{db: db}
}

func (a *FeedbackAdapter) Create(ctx context.Context, feedback *domain.Feedback) error {
	query := `
		INSERT INTO feedback (user_id, link_id, ranking_id, action, relevance_label, provided_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, provided_at`

	err := a.db.QueryRow(ctx, query,
		feedback.UserID, feedback.LinkID, feedback.RankingID, feedback.Action, feedback.RelevanceLabel,
		feedback.ProvidedAt,
	).Scan(&feedback.ID, &feedback.ProvidedAt)
	if err != nil {
		return apperr.DatabaseError("create feedback", err)
	}
	return nil
}

func (a *FeedbackAdapter) ListByUserInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Feedback, error) {
	query := `
		SELECT id, user_id, link_id, ranking_id, action, relevance_label, provided_at
		FROM feedback
		WHERE user_id = $1 AND provided_at >= $2 AND provided_at < $3
		ORDER BY provided_at`

	rows, err := a.db.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, apperr.DatabaseError("list feedback by range", err)
	}
	defer rows.Close()

	var results []*domain.Feedback
	for rows.Next() {
		var f domain.Feedback
		var rankingID sql.NullInt64
		var relevanceLabel sql.NullString

		if err := rows.Scan(
			&f.ID, &f.UserID, &f.LinkID, &rankingID, &f.Action, &relevanceLabel, &f.ProvidedAt,
		); err != nil {
			return nil, apperr.DatabaseError("scan feedback", err)
		}
		if rankingID.Valid {
			f.RankingID = &rankingID.Int64
		}
		if relevanceLabel.Valid {
			label := domain.Classification(relevanceLabel.String)
			f.RelevanceLabel = &label
		}
		results = append(results, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.DatabaseError("list feedback by range", err)
	}
	return results, nil
}
