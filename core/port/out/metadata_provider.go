package out

import (
	"context"
	"time"
)

// MetadataProvider is the enrichment upstream: list videos by id, up to
// batchSize per call, requesting snippet/contentDetails/statistics
// (spec.md §4.3, §6).
type MetadataProvider interface {
	ListVideos(ctx context.Context, videoIDs []string) ([]MetadataVideo, error)
}

// MetadataVideo is one upstream video item, pre-parsing: Duration is the
// raw ISO-8601 period string ("PT1H2M10S") and PublishedAt the raw
// ISO-8601 timestamp string, left for the enrichment client to parse per
// spec.md §4.3 step 4 so this port stays a thin transport boundary.
type MetadataVideo struct {
	VideoID      string
	Title        string
	ChannelID    string
	ChannelTitle string
	PublishedAt  string
	Duration     string
	Category     string
	Description  string
	ThumbnailURL string
	ViewCount    int64
	LikeCount    int64
}

// QuotaExhaustedError is returned when the upstream signals its quota
// marker on an HTTP 403 (spec.md §4.3 retry rule 2); no further retries.
type QuotaExhaustedError struct {
	Err error
}

func (e *QuotaExhaustedError) Error() string {
	return "quota exhausted: " + e.Err.Error()
}

func (e *QuotaExhaustedError) Unwrap() error {
	return e.Err
}

// RateLimitedError is returned on HTTP 429; RetryAfter is the upstream's
// advertised wait, zero if absent (spec.md §4.3 retry rule 1).
type RateLimitedError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitedError) Error() string {
	return "rate limited: " + e.Err.Error()
}

func (e *RateLimitedError) Unwrap() error {
	return e.Err
}
