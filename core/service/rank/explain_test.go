package rank

import (
	"strings"
	"testing"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
)

func TestExplain_AllReasons(t *testing.T) {
	f := domain.FeatureVector{SenderScore: 0.9, ThreadScore: 0.9, FreshnessScore: 0.9, TopicMatchScore: 0.9, NoisePenalty: 0.1}
	got := Explain(f, domain.ClassificationWatchNow, 0.85)

	for _, want := range []string{"important sender", "active thread", "recently published", "learning goals", "frequent sender"} {
		if !strings.Contains(got, want) {
			t.Errorf("Explain() = %q, want it to contain %q", got, want)
		}
	}
}

func TestExplain_NoReasonsFallsBackToScore(t *testing.T) {
	f := domain.FeatureVector{SenderScore: 0.2, ThreadScore: 0.1, FreshnessScore: 0.2, TopicMatchScore: 0.1, NoisePenalty: 0.9}
	got := Explain(f, domain.ClassificationSkip, 0.15)

	if !strings.Contains(got, "skip") || !strings.Contains(got, "0.15") {
		t.Errorf("Explain() = %q, want fallback mentioning classification and score", got)
	}
}

func TestExplain_Deterministic(t *testing.T) {
	f := domain.FeatureVector{SenderScore: 0.8, ThreadScore: 0.1, FreshnessScore: 0.1, TopicMatchScore: 0.1, NoisePenalty: 0.9}
	first := Explain(f, domain.ClassificationSave, 0.5)
	second := Explain(f, domain.ClassificationSave, 0.5)
	if first != second {
		t.Errorf("Explain is not deterministic: %q != %q", first, second)
	}
}
