package rank

import (
	"math"
	"testing"
	"time"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestExtractFeatures_UnknownSender(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := RankingContext{
		ThreadReplyCount:      0,
		EmailReceivedAt:       now,
		VideoPublishedAt:      now,
		VideoTitle:            "",
		LearningGoals:         nil,
		SenderStats:           nil,
		FreshnessHalfLifeDays: 30,
	}

	f := ExtractFeatures(ctx, now)
	if f.SenderScore != unknownSenderScore {
		t.Errorf("SenderScore = %v, want %v for unknown sender", f.SenderScore, unknownSenderScore)
	}
	if f.NoisePenalty != unknownNoisePenalty {
		t.Errorf("NoisePenalty = %v, want %v for unknown sender", f.NoisePenalty, unknownNoisePenalty)
	}
	if f.TopicMatchScore != noGoalsTopicScore {
		t.Errorf("TopicMatchScore = %v, want %v with no goals", f.TopicMatchScore, noGoalsTopicScore)
	}
}

func TestExtractFeatures_KnownSenderScoreClamped(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	stats := &domain.SenderStats{
		EmailCount:  5000,
		LastEmailAt: now,
		InContacts:  true,
	}
	ctx := RankingContext{
		SenderStats:           stats,
		FreshnessHalfLifeDays: 30,
	}

	f := ExtractFeatures(ctx, now)
	if f.SenderScore > 1 {
		t.Errorf("SenderScore = %v, want clamped to <= 1", f.SenderScore)
	}
	if f.NoisePenalty != 0.5 {
		t.Errorf("NoisePenalty = %v, want 0.5 (clamped floor for heavy senders)", f.NoisePenalty)
	}
}

func TestThreadScore(t *testing.T) {
	cases := map[int]float64{0: 0, 1: 1.0 / 3, 3: 1, 10: 1}
	for replies, want := range cases {
		if got := threadScore(replies); !almostEqual(got, want) {
			t.Errorf("threadScore(%d) = %v, want %v", replies, got, want)
		}
	}
}

func TestFreshnessScore(t *testing.T) {
	published := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sameDay := freshnessScore(published, published, 30)
	if !almostEqual(sameDay, 1) {
		t.Errorf("freshnessScore at publish time = %v, want 1", sameDay)
	}

	received := published.Add(30 * 24 * time.Hour)
	halfLife := freshnessScore(received, published, 30)
	if !almostEqual(halfLife, math.Exp(-1)) {
		t.Errorf("freshnessScore at one half-life = %v, want %v", halfLife, math.Exp(-1))
	}

	// Published after received (clock skew / backfill): clamped to 0 days, not negative.
	future := freshnessScore(published, received, 30)
	if !almostEqual(future, 1) {
		t.Errorf("freshnessScore with future publish = %v, want 1 (clamped)", future)
	}
}

func TestTopicMatchScore(t *testing.T) {
	goals := []string{"golang", "docker"}
	score := topicMatchScore("Intro to Golang Concurrency", "", goals)
	if !almostEqual(score, 0.5) {
		t.Errorf("topicMatchScore = %v, want 0.5 (1 of 2 goals matched)", score)
	}

	both := topicMatchScore("Golang and Docker tutorial", "", goals)
	if !almostEqual(both, 1) {
		t.Errorf("topicMatchScore = %v, want 1 (both goals matched)", both)
	}

	none := topicMatchScore("Cooking pasta", "", goals)
	if !almostEqual(none, 0) {
		t.Errorf("topicMatchScore = %v, want 0", none)
	}
}
