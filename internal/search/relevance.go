package search

import "strings"

// Relevance score bands.
const (
	ScoreExact      = 100.0
	ScoreContains   = 80.0
	ScorePartialMax = 60.0
)

// RelevanceScore rates how well title matches keyword: an exact match
// scores 100, containing the whole keyword 80, otherwise the fraction of
// keyword tokens found in the title scaled to 60. Matching ignores case.
func RelevanceScore(title, keyword string) float64 {
	title = strings.ToLower(strings.TrimSpace(title))
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if title == "" || keyword == "" {
		return 0
	}
	if title == keyword {
		return ScoreExact
	}
	if strings.Contains(title, keyword) {
		return ScoreContains
	}

	tokens := strings.Fields(keyword)
	matched := 0
	for _, tok := range tokens {
		if strings.Contains(title, tok) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	return float64(matched) / float64(len(tokens)) * ScorePartialMax
}
