package eval

import (
	"testing"
	"time"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
)

func classification(c domain.Classification) *domain.Classification { return &c }

func TestBuildRelevanceMap(t *testing.T) {
	feedback := []*domain.Feedback{
		{LinkID: 1, Action: domain.FeedbackWatched},
		{LinkID: 2, Action: domain.FeedbackSkipped},
		{LinkID: 3, Action: domain.FeedbackSaved, RelevanceLabel: classification(domain.ClassificationWatchNow)},
		{LinkID: 4, Action: domain.FeedbackSaved, RelevanceLabel: classification(domain.ClassificationSave)},
	}
	got := buildRelevanceMap(feedback)

	if !got[1] {
		t.Error("watched feedback should mark its link relevant")
	}
	if got[2] {
		t.Error("skipped feedback alone should not mark its link relevant")
	}
	if !got[3] {
		t.Error("a watch_now relevance label should mark its link relevant")
	}
	if got[4] {
		t.Error("a save relevance label should not mark its link relevant")
	}
}

// TestPrecisionAtK_S7 reproduces spec.md §8's S7 scenario: ten rankings
// with relevance pattern [1,1,0,1,0,0,1,0,0,0] in top-k order.
func TestPrecisionAtK_S7(t *testing.T) {
	relevantIDs := map[int64]bool{1: true, 2: true, 4: true, 7: true}
	all := make([]*domain.Ranking, 10)
	for i := 0; i < 10; i++ {
		all[i] = &domain.Ranking{LinkID: int64(i + 1)}
	}

	if got := precisionAtK(all[:5], relevantIDs); got != 0.6 {
		t.Errorf("precision@5 = %v, want 0.6", got)
	}
	if got := precisionAtK(all[:10], relevantIDs); got != 0.4 {
		t.Errorf("precision@10 = %v, want 0.4", got)
	}
}

func TestPrecisionAtK_Empty(t *testing.T) {
	if got := precisionAtK(nil, map[int64]bool{}); got != 0 {
		t.Errorf("precisionAtK(nil) = %v, want 0", got)
	}
}

func TestCoverage(t *testing.T) {
	rankings := []*domain.Ranking{{LinkID: 1}, {LinkID: 1}, {LinkID: 2}}
	links := []*domain.Link{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}

	if got := coverage(rankings, links); got != 0.5 {
		t.Errorf("coverage = %v, want 0.5 (2 distinct ranked / 4 extracted)", got)
	}
	if got := coverage(rankings, nil); got != 0 {
		t.Errorf("coverage with no extracted links = %v, want 0", got)
	}
}

func TestNovelty(t *testing.T) {
	rankings := []*domain.Ranking{
		{ChannelID: "a"}, {ChannelID: "a"}, {ChannelID: "b"}, {ChannelID: "c"},
	}
	if got := novelty(rankings); got != 0.75 {
		t.Errorf("novelty = %v, want 0.75 (3 distinct channels / 4 rankings)", got)
	}
	if got := novelty(nil); got != 0 {
		t.Errorf("novelty(nil) = %v, want 0", got)
	}
}

func TestStability_FewerThanTwoDays(t *testing.T) {
	day := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	rankings := []*domain.Ranking{{LinkID: 1, RankedAt: day, FinalScore: 0.9}}
	if got := stability(rankings); got != 1.0 {
		t.Errorf("stability with <2 days = %v, want 1.0", got)
	}
}

func TestStability_IdenticalDaysScoreOne(t *testing.T) {
	day1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	rankings := []*domain.Ranking{
		{LinkID: 1, RankedAt: day1, FinalScore: 0.9},
		{LinkID: 2, RankedAt: day1, FinalScore: 0.8},
		{LinkID: 1, RankedAt: day2, FinalScore: 0.9},
		{LinkID: 2, RankedAt: day2, FinalScore: 0.8},
	}
	if got := stability(rankings); got != 1.0 {
		t.Errorf("stability with identical top sets across days = %v, want 1.0", got)
	}
}

func TestStability_DisjointDaysScoreZero(t *testing.T) {
	day1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	rankings := []*domain.Ranking{
		{LinkID: 1, RankedAt: day1, FinalScore: 0.9},
		{LinkID: 2, RankedAt: day2, FinalScore: 0.9},
	}
	if got := stability(rankings); got != 0 {
		t.Errorf("stability with disjoint top sets = %v, want 0", got)
	}
}

func TestJaccard_BothEmpty(t *testing.T) {
	if got := jaccard(map[int64]bool{}, map[int64]bool{}); got != 1.0 {
		t.Errorf("jaccard of two empty sets = %v, want 1.0", got)
	}
}
