package search

import (
	"net/url"
	"sort"
	"strconv"
)

// EngineSpec describes how to query one search engine and read its result
// page. Item selectors are evaluated inside each Container match.
type EngineSpec struct {
	Name       string
	Display    string
	BaseURL    string
	QueryParam string
	CountParam string // empty when the engine has no result-count parameter
	Extra      map[string]string

	Container string
	Title     string
	Link      string
	Snippet   string

	// FallbackContainer is tried when Container matches nothing.
	FallbackContainer string
}

// Generic item selectors used with FallbackContainer.
const (
	fallbackTitle   = "h2 a, h3 a, a"
	fallbackSnippet = "p, .snippet, .c-abstract"
)

// DefaultEngines returns the built-in engine table keyed by name.
func DefaultEngines() map[string]EngineSpec {
	return map[string]EngineSpec{
		"bing": {
			Name:              "bing",
			Display:           "Bing",
			BaseURL:           "https://www.bing.com/search",
			QueryParam:        "q",
			CountParam:        "count",
			Extra:             map[string]string{"setlang": "zh-CN"},
			Container:         ".b_algo",
			Title:             "h2 a",
			Link:              "h2 a",
			Snippet:           ".b_caption p, .b_lineclamp2",
			FallbackContainer: ".b_result",
		},
		"baidu": {
			Name:              "baidu",
			Display:           "Baidu",
			BaseURL:           "https://www.baidu.com/s",
			QueryParam:        "wd",
			CountParam:        "rn",
			Container:         "#content_left .c-container",
			Title:             "h3 a",
			Link:              "h3 a",
			Snippet:           ".c-abstract, .content-right_8Zs40, .c-span-last",
			FallbackContainer: "#content_left .result, #content_left .result-op",
		},
		"duckduckgo": {
			Name:              "duckduckgo",
			Display:           "DuckDuckGo",
			BaseURL:           "https://html.duckduckgo.com/html/",
			QueryParam:        "q",
			Container:         ".result",
			Title:             "a.result__a",
			Link:              "a.result__a",
			Snippet:           ".result__snippet",
			FallbackContainer: ".web-result",
		},
		"google": {
			Name:              "google",
			Display:           "Google",
			BaseURL:           "https://www.google.com/search",
			QueryParam:        "q",
			CountParam:        "num",
			Extra:             map[string]string{"hl": "zh-CN"},
			Container:         "div.g",
			Title:             "h3",
			Link:              "a",
			Snippet:           ".VwiC3b, div[role='doc-subtitle'], span.st",
			FallbackContainer: "#search .MjjYud",
		},
	}
}

// EngineNames lists the built-in engines in stable order.
func EngineNames() []string {
	names := make([]string, 0, 4)
	for name := range DefaultEngines() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// QueryURL builds the result-page URL for keyword.
func (s EngineSpec) QueryURL(keyword string, maxResults int) string {
	q := url.Values{}
	q.Set(s.QueryParam, keyword)
	if s.CountParam != "" && maxResults > 0 {
		q.Set(s.CountParam, strconv.Itoa(maxResults))
	}
	for k, v := range s.Extra {
		q.Set(k, v)
	}
	return s.BaseURL + "?" + q.Encode()
}
