// Package rank implements the Feature Extractor and Ranker: five pure
// [0,1] scores per link, a weighted final score, a three-way
// classification, a deterministic explanation, and topic tags (spec.md
// §4.4, §4.5).
package rank

import (
	"math"
	"strings"
	"time"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
)

const (
	hoursPerDay = 24.0

	// senderNormLogCap is the email-count cap; log(senderNormLogCap+1) = log(1001) normalizes
	// log(email_count+1) into roughly [0,1] (spec.md §4.4 SenderScore).
	senderNormLogCap = 1000

	unknownSenderScore  = 0.1
	unknownNoisePenalty = 1.0
	contactsBoostFactor = 1.5
	noContactsBoost     = 1.0

	threadScoreDivisor = 3.0

	noGoalsTopicScore = 0.5
)

// RankingContext carries everything the Feature Extractor needs to score
// one link, assembled by the Ranker from Email/Link/VideoMetadata/
// SenderStats/User reads (spec.md §4.4). SenderStats is nil for a sender
// with no prior contribution recorded.
type RankingContext struct {
	ThreadReplyCount      int
	EmailReceivedAt        time.Time
	VideoPublishedAt       time.Time
	VideoTitle             string
	VideoDescription       string
	LearningGoals          []string
	SenderStats            *domain.SenderStats
	FreshnessHalfLifeDays  float64
}

// ExtractFeatures computes the five independent scores for ctx as of now.
// Every computation is pure given ctx and now — no I/O.
func ExtractFeatures(ctx RankingContext, now time.Time) domain.FeatureVector {
	return domain.FeatureVector{
		SenderScore:     senderScore(ctx.SenderStats, now),
		ThreadScore:     threadScore(ctx.ThreadReplyCount),
		FreshnessScore:  freshnessScore(ctx.EmailReceivedAt, ctx.VideoPublishedAt, ctx.FreshnessHalfLifeDays),
		TopicMatchScore: topicMatchScore(ctx.VideoTitle, ctx.VideoDescription, ctx.LearningGoals),
		NoisePenalty:    noisePenalty(ctx.SenderStats),
	}
}

func senderScore(stats *domain.SenderStats, now time.Time) float64 {
	if stats == nil {
		return unknownSenderScore
	}

	normLog := math.Log(float64(stats.EmailCount)+1) / math.Log(senderNormLogCap+1)
	if normLog > 1 {
		normLog = 1
	}

	daysSinceLastEmail := stats.DaysSinceLastEmail(now)
	recency := math.Exp(-daysSinceLastEmail / 30)

	contactsBoost := noContactsBoost
	if stats.InContacts {
		contactsBoost = contactsBoostFactor
	}

	score := normLog * recency * contactsBoost
	if score > 1 {
		score = 1
	}
	return score
}

func threadScore(threadReplyCount int) float64 {
	score := float64(threadReplyCount) / threadScoreDivisor
	if score > 1 {
		score = 1
	}
	return score
}

func freshnessScore(receivedAt, publishedAt time.Time, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		halfLifeDays = 30
	}
	daysSincePublish := receivedAt.Sub(publishedAt).Hours() / hoursPerDay
	if daysSincePublish < 0 {
		daysSincePublish = 0
	}
	return math.Exp(-daysSincePublish / halfLifeDays)
}

// topicMatchScore matches learning goals against the title and available
// description text. VideoMetadata persists only the extracted
// descriptionKeywords (not the raw description body, per spec.md §4.3's
// storage shape), so description here is that keyword text joined back
// into a string rather than the upstream's original free-form paragraph.
func topicMatchScore(title, description string, goals []string) float64 {
	if len(goals) == 0 {
		return noGoalsTopicScore
	}

	haystack := strings.ToLower(title + " " + description)
	matches := 0
	for _, g := range goals {
		if strings.Contains(haystack, strings.ToLower(g)) {
			matches++
		}
	}
	return float64(matches) / float64(len(goals))
}

func noisePenalty(stats *domain.SenderStats) float64 {
	if stats == nil {
		return unknownNoisePenalty
	}
	ratio := float64(stats.EmailCount) / 100
	if ratio > 0.5 {
		ratio = 0.5
	}
	return 1 - ratio
}
