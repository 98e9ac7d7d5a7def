package eval

import (
	"sort"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
)

// stabilityTopN bounds each day's comparison set for the stability metric
// (spec.md §4.7).
const stabilityTopN = 20

// buildRelevanceMap marks a link relevant iff some Feedback row for it was
// a "watched" action or carried a watch_now relevance label (spec.md
// §4.7's relevance-map rule).
func buildRelevanceMap(feedback []*domain.Feedback) map[int64]bool {
	relevant := make(map[int64]bool, len(feedback))
	for _, f := range feedback {
		if f.Action.IsRelevant() || (f.RelevanceLabel != nil && *f.RelevanceLabel == domain.ClassificationWatchNow) {
			relevant[f.LinkID] = true
		}
	}
	return relevant
}

// precisionAtK assumes topK is already bounded to at most k entries
// (TopKByScore's contract), so the denominator is simply len(topK), which
// is min(k, |rankings|) by construction.
func precisionAtK(topK []*domain.Ranking, relevant map[int64]bool) float64 {
	if len(topK) == 0 {
		return 0
	}
	hits := 0
	for _, r := range topK {
		if relevant[r.LinkID] {
			hits++
		}
	}
	return float64(hits) / float64(len(topK))
}

// coverage is the fraction of links extracted in range that were ever
// ranked (spec.md §4.7).
func coverage(rankings []*domain.Ranking, links []*domain.Link) float64 {
	if len(links) == 0 {
		return 0
	}
	distinct := make(map[int64]bool, len(rankings))
	for _, r := range rankings {
		distinct[r.LinkID] = true
	}
	return float64(len(distinct)) / float64(len(links))
}

// novelty is the fraction of rankings that come from distinct channels
// (spec.md §4.7).
func novelty(rankings []*domain.Ranking) float64 {
	if len(rankings) == 0 {
		return 0
	}
	channels := make(map[string]bool, len(rankings))
	for _, r := range rankings {
		if r.ChannelID != "" {
			channels[r.ChannelID] = true
		}
	}
	return float64(len(channels)) / float64(len(rankings))
}

// stability is the mean day-over-day Jaccard similarity of each day's
// top-20 ranked link-id set (spec.md §4.7). Fewer than two distinct days
// yields 1.0 — there is nothing to compare yet, not an unstable ranking.
func stability(rankings []*domain.Ranking) float64 {
	byDay := groupByDay(rankings)
	days := sortedDayKeys(byDay)
	if len(days) < 2 {
		return 1.0
	}

	var sum float64
	for i := 0; i < len(days)-1; i++ {
		s1 := topLinkSet(byDay[days[i]], stabilityTopN)
		s2 := topLinkSet(byDay[days[i+1]], stabilityTopN)
		sum += jaccard(s1, s2)
	}
	return sum / float64(len(days)-1)
}

func groupByDay(rankings []*domain.Ranking) map[string][]*domain.Ranking {
	byDay := make(map[string][]*domain.Ranking)
	for _, r := range rankings {
		day := r.RankedAt.UTC().Format("2006-01-02")
		byDay[day] = append(byDay[day], r)
	}
	return byDay
}

func sortedDayKeys(byDay map[string][]*domain.Ranking) []string {
	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)
	return days
}

// topLinkSet returns the link ids of the top-n rankings in a day by
// final_score desc, then ranked_at desc — the same ordering TopKByScore
// uses (spec.md §4.7).
func topLinkSet(rankings []*domain.Ranking, n int) map[int64]bool {
	sorted := append([]*domain.Ranking(nil), rankings...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].FinalScore != sorted[j].FinalScore {
			return sorted[i].FinalScore > sorted[j].FinalScore
		}
		return sorted[i].RankedAt.After(sorted[j].RankedAt)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	set := make(map[int64]bool, len(sorted))
	for _, r := range sorted {
		set[r.LinkID] = true
	}
	return set
}

// jaccard is |a ∩ b| / |a ∪ b|; two empty sets are defined as identical.
func jaccard(a, b map[int64]bool) float64 {
	union := make(map[int64]bool, len(a)+len(b))
	intersection := 0
	for id := range a {
		union[id] = true
		if b[id] {
			intersection++
		}
	}
	for id := range b {
		union[id] = true
	}
	if len(union) == 0 {
		return 1.0
	}
	return float64(intersection) / float64(len(union))
}
