// Package eval implements the offline Evaluation Harness: given a user and
// a date range, it reports precision@k, coverage, novelty, and stability
// over that range's persisted rankings and feedback (spec.md §4.7). Every
// metric is a deterministic function of what's already in the store —
// running it twice over the same snapshot reports the same numbers.
package eval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/logger"
)

// DefaultKValues matches the harness's default k list when the caller
// supplies none.
var DefaultKValues = []int{5, 10, 20}

// Result is one evaluation run's metrics (spec.md §4.7).
type Result struct {
	PrecisionAtK map[int]float64 `json:"precision_at_k"`
	Coverage     float64         `json:"coverage"`
	Novelty      float64         `json:"novelty"`
	Stability    float64         `json:"stability"`
}

// Harness runs the evaluation over a user's persisted rankings and
// feedback; it performs no writes.
type Harness struct {
	rankings domain.RankingRepository
	feedback domain.FeedbackRepository
	links    domain.LinkRepository
	logger   *logger.Logger
}

func NewHarness(rankings domain.RankingRepository, feedback domain.FeedbackRepository, links domain.LinkRepository, log *logger.Logger) *Harness {
	if log == nil {
		log = logger.Default()
	}
	return &Harness{rankings: rankings, feedback: feedback, links: links, logger: log}
}

// Evaluate runs the full metric set for userID over [from, to). An empty
// kValues falls back to DefaultKValues.
func (h *Harness) Evaluate(ctx context.Context, userID uuid.UUID, from, to time.Time, kValues []int) (*Result, error) {
	if len(kValues) == 0 {
		kValues = DefaultKValues
	}

	rankings, err := h.rankings.ListByUserInRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list rankings: %w", err)
	}

	feedbackRows, err := h.feedback.ListByUserInRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	relevant := buildRelevanceMap(feedbackRows)

	precisionAtKByK := make(map[int]float64, len(kValues))
	for _, k := range kValues {
		topK, err := h.rankings.TopKByScore(ctx, userID, from, to, k)
		if err != nil {
			return nil, fmt.Errorf("top-%d rankings: %w", k, err)
		}
		precisionAtKByK[k] = precisionAtK(topK, relevant)
	}

	links, err := h.links.ListByDateRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}

	result := &Result{
		PrecisionAtK: precisionAtKByK,
		Coverage:     coverage(rankings, links),
		Novelty:      novelty(rankings),
		Stability:    stability(rankings),
	}

	h.logger.WithField("user_id", userID.String()).
		WithField("rankings", len(rankings)).
		WithField("coverage", result.Coverage).
		WithField("novelty", result.Novelty).
		WithField("stability", result.Stability).
		Info("evaluation harness run complete")

	return result, nil
}
