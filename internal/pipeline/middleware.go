package pipeline

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/IshaanNene/topicscout/internal/types"
)

// HTMLSanitizeMiddleware strips tags and entities that search engines leave
// in titles and snippets (e.g. <em> highlighting).
type HTMLSanitizeMiddleware struct {
	stripRe *regexp.Regexp
}

func NewHTMLSanitizeMiddleware() *HTMLSanitizeMiddleware {
	return &HTMLSanitizeMiddleware{
		stripRe: regexp.MustCompile(`<[^>]*>`),
	}
}

func (m *HTMLSanitizeMiddleware) Name() string { return "html_sanitize" }

func (m *HTMLSanitizeMiddleware) Process(r *types.CrawlResult) (*types.CrawlResult, error) {
	r.Title = m.clean(r.Title)
	r.Author = m.clean(r.Author)
	if strings.ContainsAny(r.Content, "<&") {
		r.Content = html.UnescapeString(m.stripRe.ReplaceAllString(r.Content, ""))
	}
	return r, nil
}

func (m *HTMLSanitizeMiddleware) clean(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	return html.UnescapeString(m.stripRe.ReplaceAllString(s, ""))
}

// DateNormalizeMiddleware rewrites PublishTime into a standard layout when it
// parses as one of the known input layouts. Unparseable values are kept.
type DateNormalizeMiddleware struct {
	outFormat string
	inFormats []string
}

func NewDateNormalizeMiddleware(outFormat string) *DateNormalizeMiddleware {
	if outFormat == "" {
		outFormat = time.RFC3339
	}
	return &DateNormalizeMiddleware{
		outFormat: outFormat,
		inFormats: []string{
			time.RFC3339,
			time.RFC1123,
			time.RFC1123Z,
			"2006-01-02",
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05",
			"2006-01-02 15:04",
			"2006/01/02",
			"2006/01/02 15:04",
			"2006年01月02日",
			"2006年1月2日",
			"2006年01月02日 15:04",
			"January 2, 2006",
			"Jan 2, 2006",
			"2 Jan 2006",
		},
	}
}

func (m *DateNormalizeMiddleware) Name() string { return "date_normalize" }

func (m *DateNormalizeMiddleware) Process(r *types.CrawlResult) (*types.CrawlResult, error) {
	s := strings.TrimSpace(r.PublishTime)
	if s == "" {
		return r, nil
	}
	for _, format := range m.inFormats {
		if t, err := time.Parse(format, s); err == nil {
			r.PublishTime = t.Format(m.outFormat)
			break
		}
	}
	return r, nil
}

// KeywordFilterMiddleware drops results whose title or content contains a
// blocked keyword.
type KeywordFilterMiddleware struct {
	Blocked []string
}

func (m *KeywordFilterMiddleware) Name() string { return "keyword_filter" }

func (m *KeywordFilterMiddleware) Process(r *types.CrawlResult) (*types.CrawlResult, error) {
	for _, kw := range m.Blocked {
		if kw == "" {
			continue
		}
		if strings.Contains(r.Title, kw) || strings.Contains(r.Content, kw) {
			return nil, nil
		}
	}
	return r, nil
}
