package enrich

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/port/out"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/apperr"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/ratelimit"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/resilience"
)

// fakeCache is an in-memory stand-in for pkg/cache.RedisCache.
type fakeCache struct {
	mu    sync.Mutex
	items map[string]*domain.VideoMetadata
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[string]*domain.VideoMetadata)}
}

func (c *fakeCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	if !ok {
		return false, nil
	}
	*dest.(*domain.VideoMetadata) = *v
	return true, nil
}

func (c *fakeCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value.(*domain.VideoMetadata)
	return nil
}

type fakeMetadataStore struct {
	mu      sync.Mutex
	upserts map[string]*domain.VideoMetadata
}

func newFakeMetadataStore() *fakeMetadataStore {
	return &fakeMetadataStore{upserts: make(map[string]*domain.VideoMetadata)}
}

func (s *fakeMetadataStore) GetByVideoID(ctx context.Context, videoID string) (*domain.VideoMetadata, error) {
	return nil, apperr.NotFound("video metadata")
}

func (s *fakeMetadataStore) GetByVideoIDs(ctx context.Context, videoIDs []string) ([]*domain.VideoMetadata, error) {
	return nil, nil
}

func (s *fakeMetadataStore) Upsert(ctx context.Context, metadata *domain.VideoMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts[metadata.VideoID] = metadata
	return nil
}

type fakeProvider struct {
	mu        sync.Mutex
	calls     int
	batches   [][]string
	failTimes int
	failErr   error
	videos    map[string]out.MetadataVideo
}

func (p *fakeProvider) ListVideos(ctx context.Context, videoIDs []string) ([]out.MetadataVideo, error) {
	p.mu.Lock()
	p.calls++
	p.batches = append(p.batches, append([]string(nil), videoIDs...))
	if p.calls <= p.failTimes {
		err := p.failErr
		p.mu.Unlock()
		return nil, err
	}
	p.mu.Unlock()

	var result []out.MetadataVideo
	for _, id := range videoIDs {
		if v, ok := p.videos[id]; ok {
			result = append(result, v)
		}
	}
	return result, nil
}

func newTestClient(provider *fakeProvider, c *fakeCache, store *fakeMetadataStore, batchSize int) *Client {
	breaker := resilience.NewCircuitBreaker(nil, resilience.DefaultConfig("youtube-metadata"))
	limiter := ratelimit.NewAPIProtector(nil, ratelimit.DefaultConfig())
	return NewClient(c, breaker, limiter, provider, store, batchSize, 7*24*time.Hour, nil)
}

func TestClient_GetMetadata_CacheHitSkipsUpstream(t *testing.T) {
	cache := newFakeCache()
	cache.items[cacheKey("v1")] = &domain.VideoMetadata{VideoID: "v1", Title: "cached"}

	provider := &fakeProvider{}
	store := newFakeMetadataStore()
	client := newTestClient(provider, cache, store, 50)

	result, err := client.GetMetadata(context.Background(), []string{"v1"})
	if err != nil {
		t.Fatalf("GetMetadata returned error: %v", err)
	}
	if result["v1"].Title != "cached" {
		t.Errorf("expected cached title, got %q", result["v1"].Title)
	}
	if provider.calls != 0 {
		t.Errorf("expected 0 upstream calls for a full cache hit, got %d", provider.calls)
	}
}

func TestClient_GetMetadata_BatchesMissesAndWritesThrough(t *testing.T) {
	provider := &fakeProvider{
		videos: map[string]out.MetadataVideo{
			"v1": {VideoID: "v1", Title: "Intro to Go", PublishedAt: "2024-01-15T10:00:00Z", Duration: "PT10M30S", Description: "learn golang concurrency patterns today"},
			"v2": {VideoID: "v2", Title: "Advanced Go", PublishedAt: "2024-02-01T00:00:00Z", Duration: "PT1H2M10S", Description: "short"},
			"v3": {VideoID: "v3", Title: "Go Testing", PublishedAt: "2024-03-01T00:00:00Z", Duration: "PT45S"},
		},
	}
	cache := newFakeCache()
	store := newFakeMetadataStore()
	client := newTestClient(provider, cache, store, 2)

	result, err := client.GetMetadata(context.Background(), []string{"v1", "v2", "v3"})
	if err != nil {
		t.Fatalf("GetMetadata returned error: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("expected 3 resolved videos, got %d", len(result))
	}
	if provider.calls != 2 {
		t.Errorf("expected 2 batch calls for batchSize=2 over 3 ids, got %d", provider.calls)
	}

	v1 := result["v1"]
	if v1.DurationSeconds != 630 {
		t.Errorf("v1 duration = %d, want 630", v1.DurationSeconds)
	}
	if len(v1.DescriptionKeywords) != 5 {
		t.Errorf("v1 keywords = %v, want 5 tokens over length 3", v1.DescriptionKeywords)
	}
	if v1.PublishedAt.Year() != 2024 {
		t.Errorf("v1 published year = %d, want 2024", v1.PublishedAt.Year())
	}

	v3 := result["v3"]
	if v3.DurationSeconds != 45 {
		t.Errorf("v3 duration = %d, want 45", v3.DurationSeconds)
	}

	if len(cache.items) != 3 {
		t.Errorf("expected 3 cache write-throughs, got %d", len(cache.items))
	}
	if len(store.upserts) != 3 {
		t.Errorf("expected 3 store upserts, got %d", len(store.upserts))
	}

	// A second call finds everything cached and makes no further upstream calls.
	_, err = client.GetMetadata(context.Background(), []string{"v1", "v2", "v3"})
	if err != nil {
		t.Fatalf("second GetMetadata returned error: %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("expected no additional upstream calls once cached, got %d total", provider.calls)
	}
}

func TestClient_GetMetadata_QuotaExceededNoRetry(t *testing.T) {
	provider := &fakeProvider{failTimes: 10, failErr: &out.QuotaExhaustedError{Err: context.DeadlineExceeded}}
	client := newTestClient(provider, newFakeCache(), newFakeMetadataStore(), 50)

	_, err := client.GetMetadata(context.Background(), []string{"v1"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if apperr.Code(err) != apperr.CodeQuotaExceeded {
		t.Errorf("error code = %s, want %s", apperr.Code(err), apperr.CodeQuotaExceeded)
	}
	if provider.calls != 1 {
		t.Errorf("expected exactly 1 upstream call for a quota error, got %d", provider.calls)
	}
}

func TestClient_GetMetadata_TransientRetriesThenSucceeds(t *testing.T) {
	provider := &fakeProvider{
		failTimes: 1,
		failErr:   &out.RateLimitedError{RetryAfter: 10 * time.Millisecond, Err: context.DeadlineExceeded},
		videos: map[string]out.MetadataVideo{
			"v1": {VideoID: "v1", Title: "Recovered", PublishedAt: "2024-01-01T00:00:00Z", Duration: "PT1M"},
		},
	}
	client := newTestClient(provider, newFakeCache(), newFakeMetadataStore(), 50)

	result, err := client.GetMetadata(context.Background(), []string{"v1"})
	if err != nil {
		t.Fatalf("GetMetadata returned error after recovering: %v", err)
	}
	if result["v1"].Title != "Recovered" {
		t.Errorf("expected recovered result, got %+v", result["v1"])
	}
	if provider.calls != 2 {
		t.Errorf("expected 1 failure + 1 retry = 2 calls, got %d", provider.calls)
	}
}

func TestParseISO8601Duration(t *testing.T) {
	cases := map[string]int{
		"PT1H2M10S": 3730,
		"PT10M30S":  630,
		"PT45S":     45,
		"PT1H":      3600,
		"":          0,
		"garbage":   0,
	}
	for input, want := range cases {
		if got := parseISO8601Duration(input); got != want {
			t.Errorf("parseISO8601Duration(%q) = %d, want %d", input, got, want)
		}
	}
}

func TestDescriptionKeywords(t *testing.T) {
	desc := "the quick brown fox jumps over a lazy dog and then keeps running through fields of golden wheat forever"
	keywords := descriptionKeywords(desc)
	if len(keywords) > maxDescriptionKeywords {
		t.Fatalf("got %d keywords, want at most %d", len(keywords), maxDescriptionKeywords)
	}
	for _, k := range keywords {
		if len(k) <= minKeywordLength {
			t.Errorf("keyword %q has length %d, want > %d", k, len(k), minKeywordLength)
		}
	}
}
