package rank

import (
	"regexp"
	"strings"
)

const maxTopicTags = 5

// nonAlnumPattern strips punctuation from a token before vocabulary
// matching (spec.md §4.5 topic tags).
var nonAlnumPattern = regexp.MustCompile(`[^a-z0-9]+`)

// curatedVocabulary is the small, fixed set of learning/tech terms topic
// tags are drawn from. Titles are free text; this keeps tags meaningful
// instead of surfacing every long word a title happens to contain.
var curatedVocabulary = buildVocabulary([]string{
	"golang", "python", "javascript", "typescript", "java", "rust",
	"docker", "kubernetes", "database", "programming", "tutorial",
	"algorithm", "algorithms", "software", "engineering", "machine",
	"learning", "data", "science", "design", "system", "systems",
	"security", "network", "networking", "cloud", "backend", "frontend",
	"react", "mongodb", "postgres", "linux", "devops", "testing",
	"architecture", "framework", "language", "concurrency", "performance",
	"debugging", "refactoring", "interview", "beginner", "advanced",
	"crash", "course", "explained", "guide", "deep", "dive",
})

func buildVocabulary(terms []string) map[string]bool {
	vocab := make(map[string]bool, len(terms))
	for _, t := range terms {
		vocab[t] = true
	}
	return vocab
}

// TopicTags tokenizes title on whitespace, lowercases and strips
// non-alphanumerics from each token, and retains tokens of length > 3
// present in curatedVocabulary, capped at 5, in first-seen order
// (spec.md §4.5).
func TopicTags(title string) []string {
	var tags []string
	seen := make(map[string]bool)

	for _, field := range strings.Fields(title) {
		if len(tags) == maxTopicTags {
			break
		}
		token := nonAlnumPattern.ReplaceAllString(strings.ToLower(field), "")
		if len(token) <= 3 || seen[token] || !curatedVocabulary[token] {
			continue
		}
		seen[token] = true
		tags = append(tags, token)
	}

	return tags
}
