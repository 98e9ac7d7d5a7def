package rank

import (
	"testing"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
)

var defaultWeights = Weights{Sender: 0.3, Thread: 0.2, Freshness: 0.2, Topic: 0.2, NoisePenalty: 0.1}
var defaultThresholds = Thresholds{WatchNow: 0.7, Save: 0.4}

func TestFinalScore_Clamped(t *testing.T) {
	allOnes := domain.FeatureVector{SenderScore: 1, ThreadScore: 1, FreshnessScore: 1, TopicMatchScore: 1, NoisePenalty: 1}
	if got := FinalScore(allOnes, defaultWeights); !almostEqual(got, 1) {
		t.Errorf("FinalScore with all-1 features = %v, want 1", got)
	}

	allZeros := domain.FeatureVector{}
	if got := FinalScore(allZeros, defaultWeights); !almostEqual(got, 0) {
		t.Errorf("FinalScore with all-0 features = %v, want 0", got)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		score float64
		want  domain.Classification
	}{
		{0.9, domain.ClassificationWatchNow},
		{0.7, domain.ClassificationWatchNow},
		{0.5, domain.ClassificationSave},
		{0.4, domain.ClassificationSave},
		{0.1, domain.ClassificationSkip},
	}
	for _, tt := range cases {
		if got := Classify(tt.score, defaultThresholds); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestClassification_AtLeastAsFavorableAs(t *testing.T) {
	if !domain.ClassificationWatchNow.AtLeastAsFavorableAs(domain.ClassificationSave) {
		t.Error("watch_now should be at least as favorable as save")
	}
	if domain.ClassificationSkip.AtLeastAsFavorableAs(domain.ClassificationSave) {
		t.Error("skip should not be at least as favorable as save")
	}
}
