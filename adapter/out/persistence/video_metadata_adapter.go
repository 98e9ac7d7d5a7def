package persistence

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/apperr"
)

// VideoMetadataAdapter implements domain.VideoMetadataRepository over pgxpool.
type VideoMetadataAdapter struct {
	db *pgxpool.Pool
}

func NewVideoMetadataAdapter(db *pgxpool.Pool) *VideoMetadataAdapter {
	return &VideoMetadataAdapter{db: db}
}

func (a *VideoMetadataAdapter) GetByVideoID(ctx context.Context, videoID string) (*domain.VideoMetadata, error) {
	query := `
		SELECT video_id, title, channel_id, channel_title, published_at, duration_seconds,
		       category, description_keywords, thumbnail_url, view_count, like_count, fetched_at
		FROM video_metadata WHERE video_id = $1`

	return a.scan(a.db.QueryRow(ctx, query, videoID))
}

func (a *VideoMetadataAdapter) scan(row pgx.Row) (*domain.VideoMetadata, error) {
	var m domain.VideoMetadata
	var category, thumbnailURL sql.NullString

	err := row.Scan(
		&m.VideoID, &m.Title, &m.ChannelID, &m.ChannelTitle, &m.PublishedAt, &m.DurationSeconds,
		&category, &m.DescriptionKeywords, &thumbnailURL, &m.ViewCount, &m.LikeCount, &m.FetchedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.NotFound("video metadata")
		}
		return nil, apperr.DatabaseError("get video metadata", err)
	}
	if category.Valid {
		m.Category = category.String
	}
	if thumbnailURL.Valid {
		m.ThumbnailURL = thumbnailURL.String
	}
	return &m, nil
}

func (a *VideoMetadataAdapter) GetByVideoIDs(ctx context.Context, videoIDs []string) ([]*domain.VideoMetadata, error) {
	if len(videoIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT video_id, title, channel_id, channel_title, published_at, duration_seconds,
		       category, description_keywords, thumbnail_url, view_count, like_count, fetched_at
		FROM video_metadata WHERE video_id = ANY($1)`

	rows, err := a.db.Query(ctx, query, videoIDs)
	if err != nil {
		return nil, apperr.DatabaseError("get video metadata batch", err)
	}
	defer rows.Close()

	var results []*domain.VideoMetadata
	for rows.Next() {
		m, err := a.scan(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.DatabaseError("get video metadata batch", err)
	}
	return results, nil
}

// Upsert inserts the row, or refreshes every enrichment field in place when
// video_id already exists — the enrichment client re-fetches the same
// video across multiple users' links, and every pass should win (spec.md §3).
func (a *VideoMetadataAdapter) Upsert(ctx context.Context, metadata *domain.VideoMetadata) error {
	query := `
		INSERT INTO video_metadata (video_id, title, channel_id, channel_title, published_at,
		                             duration_seconds, category, description_keywords, thumbnail_url,
		                             view_count, like_count, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (video_id) DO UPDATE SET
			title = EXCLUDED.title,
			channel_id = EXCLUDED.channel_id,
			channel_title = EXCLUDED.channel_title,
			published_at = EXCLUDED.published_at,
			duration_seconds = EXCLUDED.duration_seconds,
			category = EXCLUDED.category,
			description_keywords = EXCLUDED.description_keywords,
			thumbnail_url = EXCLUDED.thumbnail_url,
			view_count = EXCLUDED.view_count,
			like_count = EXCLUDED.like_count,
			fetched_at = NOW()
		RETURNING fetched_at`

	err := a.db.QueryRow(ctx, query,
		metadata.VideoID, metadata.Title, metadata.ChannelID, metadata.ChannelTitle, metadata.PublishedAt,
		metadata.DurationSeconds, metadata.Category, metadata.DescriptionKeywords,
		metadata.ThumbnailURL, metadata.ViewCount, metadata.LikeCount,
	).Scan(&metadata.FetchedAt)
	if err != nil {
		return apperr.DatabaseError("upsert video metadata", err)
	}
	return nil
}
