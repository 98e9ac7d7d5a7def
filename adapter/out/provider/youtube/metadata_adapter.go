// Package youtube adapts the YouTube Data API v3 to the pipeline's
// MetadataProvider port (spec.md §4.3, §6).
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	youtubev3 "google.golang.org/api/youtube/v3"

	out "github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/port/out"
)

// quotaReasons are the error reasons the Data API returns on its daily
// quota marker (spec.md §4.3 retry rule 2).
var quotaReasons = map[string]bool{
	"quotaExceeded":      true,
	"dailyLimitExceeded": true,
}

// MetadataAdapter implements out.MetadataProvider against the real
// YouTube Data API. It carries no retry or circuit-breaking logic of its
// own — that belongs to the Enrichment Client sitting in front of it —
// it only translates transport errors into the port's sentinel types.
type MetadataAdapter struct {
	svc *youtubev3.Service
}

// NewMetadataAdapter builds an adapter authenticated with a YouTube Data
// API key (read-only public metadata needs no OAuth user consent).
func NewMetadataAdapter(ctx context.Context, apiKey string) (*MetadataAdapter, error) {
	svc, err := youtubev3.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("youtube: build service: %w", err)
	}
	return &MetadataAdapter{svc: svc}, nil
}

// ListVideos requests {snippet, contentDetails, statistics} for up to
// len(videoIDs) ids in a single call; the caller is responsible for
// keeping each call within the upstream's batch-size limit.
func (a *MetadataAdapter) ListVideos(ctx context.Context, videoIDs []string) ([]out.MetadataVideo, error) {
	if len(videoIDs) == 0 {
		return nil, nil
	}

	call := a.svc.Videos.List([]string{"snippet", "contentDetails", "statistics"}).
		Id(strings.Join(videoIDs, ",")).
		Context(ctx)

	resp, err := call.Do()
	if err != nil {
		return nil, wrapError(err)
	}

	videos := make([]out.MetadataVideo, 0, len(resp.Items))
	for _, item := range resp.Items {
		videos = append(videos, convertVideo(item))
	}
	return videos, nil
}

func wrapError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return &out.RateLimitedError{RetryAfter: retryAfter(apiErr), Err: err}
		case http.StatusForbidden:
			if isQuotaError(apiErr) {
				return &out.QuotaExhaustedError{Err: err}
			}
		}
	}
	return fmt.Errorf("youtube list videos: %w", err)
}

func isQuotaError(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		if quotaReasons[item.Reason] {
			return true
		}
	}
	return false
}

func retryAfter(apiErr *googleapi.Error) time.Duration {
	if apiErr.Header == nil {
		return 0
	}
	v := apiErr.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func convertVideo(item *youtubev3.Video) out.MetadataVideo {
	v := out.MetadataVideo{VideoID: item.Id}

	if item.Snippet != nil {
		v.Title = item.Snippet.Title
		v.ChannelID = item.Snippet.ChannelId
		v.ChannelTitle = item.Snippet.ChannelTitle
		v.PublishedAt = item.Snippet.PublishedAt
		v.Description = item.Snippet.Description
		v.Category = item.Snippet.CategoryId
		if item.Snippet.Thumbnails != nil && item.Snippet.Thumbnails.High != nil {
			v.ThumbnailURL = item.Snippet.Thumbnails.High.Url
		}
	}
	if item.ContentDetails != nil {
		v.Duration = item.ContentDetails.Duration
	}
	if item.Statistics != nil {
		v.ViewCount = int64(item.Statistics.ViewCount)
		v.LikeCount = int64(item.Statistics.LikeCount)
	}

	return v
}

var _ out.MetadataProvider = (*MetadataAdapter)(nil)
