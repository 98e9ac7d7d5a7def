package rank

import (
	"fmt"
	"strings"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
)

const (
	importantSenderThreshold = 0.7
	activeThreadThreshold    = 0.5
	recentThreshold          = 0.7
	topicMatchThreshold      = 0.5
	frequentSenderThreshold  = 0.7
)

// Explain produces a deterministic, human-readable reason string for one
// ranking, checking each feature in the same fixed order every time
// (spec.md §4.5).
func Explain(f domain.FeatureVector, classification domain.Classification, score float64) string {
	var reasons []string

	if f.SenderScore > importantSenderThreshold {
		reasons = append(reasons, "from an important sender")
	}
	if f.ThreadScore > activeThreadThreshold {
		reasons = append(reasons, "part of an active thread")
	}
	if f.FreshnessScore > recentThreshold {
		reasons = append(reasons, "recently published")
	}
	if f.TopicMatchScore > topicMatchThreshold {
		reasons = append(reasons, "matches your learning goals")
	}
	if f.NoisePenalty < frequentSenderThreshold {
		reasons = append(reasons, "from a frequent sender")
	}

	if len(reasons) == 0 {
		return fmt.Sprintf("classified as %s (score %.2f)", classification, score)
	}
	return strings.Join(reasons, "; ")
}
