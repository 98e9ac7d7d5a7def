package domain

import (
	"context"
	"time"
)

// VideoMetadata is the authoritative, globally-unique-by-video-id record
// fetched from the metadata enrichment upstream (spec.md §3). Created on
// cache miss by an Enrichment worker; refreshed in place; never deleted by
// the core.
type VideoMetadata struct {
	VideoID             string    `json:"video_id"`
	Title               string    `json:"title"`
	ChannelID           string    `json:"channel_id"`
	ChannelTitle        string    `json:"channel_title"`
	PublishedAt         time.Time `json:"published_at"`
	DurationSeconds     int       `json:"duration_seconds"`
	Category            string    `json:"category,omitempty"`
	DescriptionKeywords []string  `json:"description_keywords,omitempty"`
	ThumbnailURL        string    `json:"thumbnail_url,omitempty"`
	ViewCount           int64     `json:"view_count"`
	LikeCount           int64     `json:"like_count"`
	FetchedAt           time.Time `json:"fetched_at"`
}

// VideoMetadataRepository persists VideoMetadata in the relational store,
// the authoritative source of truth; pkg/cache holds the ephemeral
// video:metadata:{video-id} read-through copy (spec.md §3).
type VideoMetadataRepository interface {
	GetByVideoID(ctx context.Context, videoID string) (*VideoMetadata, error)
	GetByVideoIDs(ctx context.Context, videoIDs []string) ([]*VideoMetadata, error)

	// Upsert inserts or refreshes a row in place, keyed on VideoID.
	Upsert(ctx context.Context, metadata *VideoMetadata) error
}
