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

// RankingAdapter implements domain.RankingRepository over pgxpool.
type RankingAdapter struct {
	db *pgxpool.Pool
}

func NewRankingAdapter(db *pgxpool.Pool) *RankingAdapter {
	return &RankingAdapter{db: db}
}

// Upsert truncates RankedAt to the second before writing so that the
// (user_id, link_id, ranked_at) unique constraint collapses same-second
// reruns in place rather than accumulating duplicate rows, while still
// preserving the distinct history points the Evaluation Harness' stability
// metric needs across separate ranking passes (spec.md §4.5, §4.7).
func (a *RankingAdapter) Upsert(ctx context.Context, ranking *domain.Ranking) error {
	ranking.RankedAt = ranking.RankedAt.Truncate(time.Second)

	query := `
		INSERT INTO rankings (user_id, link_id, ranked_at, sender_score, thread_score,
		                       freshness_score, topic_match_score, noise_penalty, final_score,
		                       classification, explanation, topic_tags, channel_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, link_id, ranked_at) DO UPDATE SET
			sender_score = EXCLUDED.sender_score,
			thread_score = EXCLUDED.thread_score,
			freshness_score = EXCLUDED.freshness_score,
			topic_match_score = EXCLUDED.topic_match_score,
			noise_penalty = EXCLUDED.noise_penalty,
			final_score = EXCLUDED.final_score,
			classification = EXCLUDED.classification,
			explanation = EXCLUDED.explanation,
			topic_tags = EXCLUDED.topic_tags,
			channel_id = EXCLUDED.channel_id
		RETURNING id`

	err := a.db.QueryRow(ctx, query,
		ranking.UserID, ranking.LinkID, ranking.RankedAt,
		ranking.Features.SenderScore, ranking.Features.ThreadScore, ranking.Features.FreshnessScore,
		ranking.Features.TopicMatchScore, ranking.Features.NoisePenalty, ranking.FinalScore,
		ranking.Classification, ranking.Explanation, ranking.TopicTags, ranking.ChannelID,
	).Scan(&ranking.ID)
	if err != nil {
		return apperr.DatabaseError("upsert ranking", err)
	}
	return nil
}

func (a *RankingAdapter) ListByUserInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Ranking, error) {
	query := `
		SELECT id, user_id, link_id, ranked_at, sender_score, thread_score, freshness_score,
		       topic_match_score, noise_penalty, final_score, classification, explanation,
		       topic_tags, channel_id
		FROM rankings
		WHERE user_id = $1 AND ranked_at >= $2 AND ranked_at < $3
		ORDER BY ranked_at`

	rows, err := a.db.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, apperr.DatabaseError("list rankings by range", err)
	}
	defer rows.Close()
	return collectRankings(rows)
}

// TopKByScore returns up to k rankings ordered by final_score desc, then
// ranked_at desc, the input to precision@k (spec.md §4.7).
func (a *RankingAdapter) TopKByScore(ctx context.Context, userID uuid.UUID, from, to time.Time, k int) ([]*domain.Ranking, error) {
	query := `
		SELECT id, user_id, link_id, ranked_at, sender_score, thread_score, freshness_score,
		       topic_match_score, noise_penalty, final_score, classification, explanation,
		       topic_tags, channel_id
		FROM rankings
		WHERE user_id = $1 AND ranked_at >= $2 AND ranked_at < $3
		ORDER BY final_score DESC, ranked_at DESC
		LIMIT $4`

	rows, err := a.db.Query(ctx, query, userID, from, to, k)
	if err != nil {
		return nil, apperr.DatabaseError("top k rankings", err)
	}
	defer rows.Close()
	return collectRankings(rows)
}

func collectRankings(rows pgx.Rows) ([]*domain.Ranking, error) {
	var rankings []*domain.Ranking
	for rows.Next() {
		var r domain.Ranking
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.LinkID, &r.RankedAt,
			&r.Features.SenderScore, &r.Features.ThreadScore, &r.Features.FreshnessScore,
			&r.Features.TopicMatchScore, &r.Features.NoisePenalty, &r.FinalScore,
			&r.Classification, &r.Explanation, &r.TopicTags, &r.ChannelID,
		); err != nil {
			return nil, apperr.DatabaseError("scan ranking", err)
		}
		rankings = append(rankings, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.DatabaseError("list rankings", err)
	}
	return rankings, nil
}
