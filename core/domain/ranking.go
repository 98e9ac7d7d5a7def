package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Classification is the Ranker's three-way verdict (spec.md §4.5), ordered
// most to least favorable: watch_now > save > skip.
type Classification string

const (
	ClassificationWatchNow Classification = "watch_now"
	ClassificationSave     Classification = "save"
	ClassificationSkip     Classification = "skip"
)

// classificationRank backs Classification.AtLeastAsFavorableAs so property
// tests can assert monotonicity (spec.md §8 invariant 6) without string
// comparisons.
var classificationRank = map[Classification]int{
	ClassificationWatchNow: 2,
	ClassificationSave:     1,
	ClassificationSkip:     0,
}

// AtLeastAsFavorableAs reports whether c is at least as favorable as other
// under watch_now > save > skip.
func (c Classification) AtLeastAsFavorableAs(other Classification) bool {
	return classificationRank[c] >= classificationRank[other]
}

// FeatureVector is the five independent [0,1] scores the Feature Extractor
// computes from persisted state (spec.md §4.4). It is pure data: every
// field is a deterministic function of its inputs, no I/O.
type FeatureVector struct {
	SenderScore     float64 `json:"sender_score"`
	ThreadScore     float64 `json:"thread_score"`
	FreshnessScore  float64 `json:"freshness_score"`
	TopicMatchScore float64 `json:"topic_match_score"`
	NoisePenalty    float64 `json:"noise_penalty"`
}

// Ranking is one scored pass over a Link, identified by (user, link,
// ranked-at). A link accumulates many historical Rankings over time —
// never deleted, since §4.7's stability metric needs the time series
// (spec.md §3, §4.5).
type Ranking struct {
	ID             int64          `json:"id"`
	UserID         uuid.UUID      `json:"user_id"`
	LinkID         int64          `json:"link_id"`
	RankedAt       time.Time      `json:"ranked_at"`
	Features       FeatureVector  `json:"features"`
	FinalScore     float64        `json:"final_score"`
	Classification Classification `json:"classification"`
	Explanation    string         `json:"explanation"`
	TopicTags      []string       `json:"topic_tags,omitempty"`

	// Denormalized for the evaluation harness (spec.md §4.7 novelty
	// metric), populated from the joined VideoMetadata at ranking time.
	ChannelID string `json:"channel_id,omitempty"`
}

// RankingRepository persists Ranking rows. Upsert on (user_id, link_id,
// ranked_at) collapses same-second reruns in place; it never deletes
// history (spec.md §4.5).
type RankingRepository interface {
	// Upsert inserts a Ranking row, or updates score/classification/
	// explanation/tags in place when (user_id, link_id, ranked_at)
	// (truncated to the second) already exists.
	Upsert(ctx context.Context, ranking *Ranking) error

	ListByUserInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*Ranking, error)

	// TopKByScore returns up to k rankings in [from, to) ordered by
	// final_score desc, then ranked_at desc (spec.md §4.7 precision@k).
	TopKByScore(ctx context.Context, userID uuid.UUID, from, to time.Time, k int) ([]*Ranking, error)
}
