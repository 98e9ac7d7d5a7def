package rank

import "github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"

// Weights are the ranker's configurable per-feature weights, defaulting to
// 0.3/0.2/0.2/0.2/0.1 for sender/thread/freshness/topic/noise-penalty
// (spec.md §4.5, §6).
type Weights struct {
	Sender       float64
	Thread       float64
	Freshness    float64
	Topic        float64
	NoisePenalty float64
}

// Thresholds are the classification cut points (spec.md §4.5), defaulting
// to 0.7 (watch_now) and 0.4 (save).
type Thresholds struct {
	WatchNow float64
	Save     float64
}

// FinalScore combines the feature vector into a single clamped [0,1]
// score via the weighted linear combination (spec.md §4.5).
func FinalScore(f domain.FeatureVector, w Weights) float64 {
	score := w.Sender*f.SenderScore +
		w.Thread*f.ThreadScore +
		w.Freshness*f.FreshnessScore +
		w.Topic*f.TopicMatchScore +
		w.NoisePenalty*f.NoisePenalty

	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}

// Classify maps a final score to a Classification per t's thresholds.
func Classify(score float64, t Thresholds) domain.Classification {
	switch {
	case score >= t.WatchNow:
		return domain.ClassificationWatchNow
	case score >= t.Save:
		return domain.ClassificationSave
	default:
		return domain.ClassificationSkip
	}
}
