package enrich

import (
	"regexp"
	"strconv"
	"strings"
)

// durationPattern matches the subset of ISO-8601 periods the upstream
// emits for video length: PT[nH][nM][nS]. No corpus library parses
// ISO-8601 periods, so this stays a small stdlib regex.
var durationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISO8601Duration converts an ISO-8601 period string to seconds.
// Missing components default to 0 (spec.md §4.3 step 4). An unrecognized
// string also yields 0 rather than failing the whole batch over one
// malformed field.
func parseISO8601Duration(s string) int {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	return hours*3600 + minutes*60 + seconds
}

const (
	maxDescriptionKeywords = 20
	minKeywordLength       = 3
)

// descriptionKeywords splits a video description on whitespace and keeps
// the first 20 tokens longer than 3 characters (spec.md §4.3 step 4).
func descriptionKeywords(description string) []string {
	fields := strings.Fields(description)
	keywords := make([]string, 0, maxDescriptionKeywords)
	for _, f := range fields {
		if len(keywords) == maxDescriptionKeywords {
			break
		}
		if len(f) > minKeywordLength {
			keywords = append(keywords, f)
		}
	}
	return keywords
}
