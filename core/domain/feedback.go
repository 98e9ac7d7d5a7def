package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FeedbackAction is the observed user action backing the relevance map the
// Evaluation Harness builds (spec.md §4.7).
type FeedbackAction string

const (
	FeedbackWatched   FeedbackAction = "watched"
	FeedbackSaved     FeedbackAction = "saved"
	FeedbackSkipped   FeedbackAction = "skipped"
	FeedbackDismissed FeedbackAction = "dismissed"
)

// IsRelevant reports whether this action alone marks a link relevant for
// evaluation purposes — "watched", per the relevance map rule (spec.md
// §4.7). A RelevanceLabel of watch_now on the Feedback row also counts;
// that check lives alongside the relevance-map builder in the eval
// package since it spans two fields.
func (a FeedbackAction) IsRelevant() bool {
	return a == FeedbackWatched
}

// Feedback is an append-only record of what a user did with a ranked Link,
// the input to the offline Evaluation Harness (spec.md §3, §4.7).
type Feedback struct {
	ID              int64           `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	LinkID          int64           `json:"link_id"`
	RankingID       *int64          `json:"ranking_id,omitempty"`
	Action          FeedbackAction  `json:"action"`
	RelevanceLabel  *Classification `json:"relevance_label,omitempty"`
	ProvidedAt      time.Time       `json:"provided_at"`
}

// FeedbackRepository appends and reads Feedback rows; there is no update
// or delete operation — feedback is append-only by design.
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *Feedback) error
	ListByUserInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*Feedback, error)
}
