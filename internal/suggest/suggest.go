// Package suggest turns search results into content topic suggestions with
// the help of an LLM.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/IshaanNene/topicscout/internal/search"
	"github.com/IshaanNene/topicscout/internal/types"
)

const (
	defaultCategory    = "综合"
	defaultPlatform    = "小红书"
	defaultHeat        = 85
	defaultViews       = 50000
	contextExcerptRune = 200
)

// Suggestion is one proposed content topic.
type Suggestion struct {
	ID                   string   `json:"id"`
	Title                string   `json:"title"`
	Category             string   `json:"category"`
	Difficulty           string   `json:"difficulty"`
	Heat                 int      `json:"heat"`
	Description          string   `json:"description"`
	Keywords             []string `json:"keywords"`
	Platform             string   `json:"platform"`
	CompetitionLevel     string   `json:"competitionLevel"`
	EstimatedViews       int      `json:"estimatedViews"`
	SuggestedContentType string   `json:"suggestedContentType"`
	CreatedAt            string   `json:"createdAt"`
}

// BuildContext renders results as a numbered digest of platform, title,
// url and a content excerpt.
func BuildContext(results []*types.CrawlResult) string {
	var b strings.Builder
	n := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. [%s] %s\n", n, r.Platform, r.Title)
		fmt.Fprintf(&b, "   %s\n", r.URL)
		if excerpt := strings.Join(strings.Fields(r.Content), " "); excerpt != "" {
			fmt.Fprintf(&b, "   %s\n", truncate(excerpt, contextExcerptRune))
		}
	}
	return b.String()
}

// Merge concatenates suggestion lists, keeping the first suggestion for
// each (title, platform) pair.
func Merge(lists ...[]Suggestion) []Suggestion {
	seen := make(map[string]bool)
	out := []Suggestion{}
	for _, list := range lists {
		for _, s := range list {
			key := strings.ToLower(strings.TrimSpace(s.Title)) + "\x00" + s.Platform
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}

var (
	fencedRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	arrayRe  = regexp.MustCompile(`(?s)\[.*\]`)
	objectRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// rawSuggestion accepts both the English field names and the Chinese ones
// some models answer with.
type rawSuggestion struct {
	Title                string          `json:"title"`
	TitleZH              string          `json:"选题标题"`
	Category             string          `json:"category"`
	Difficulty           string          `json:"difficulty"`
	Heat                 float64         `json:"heat"`
	Popularity           float64         `json:"popularity"`
	Description          string          `json:"description"`
	DescriptionZH        string          `json:"选题描述"`
	Highlights           []string        `json:"核心亮点"`
	Directions           []string        `json:"内容方向"`
	Keywords             json.RawMessage `json:"keywords"`
	Platform             string          `json:"platform"`
	CompetitionLevel     string          `json:"competitionLevel"`
	EstimatedViews       float64         `json:"estimatedViews"`
	SuggestedContentType string          `json:"suggestedContentType"`
}

// Parse reads suggestions from model output. It accepts a JSON array, a
// single object, or either wrapped in prose or a fenced code block, and
// returns an empty slice when nothing usable is found.
func Parse(output string, now time.Time) []Suggestion {
	for _, candidate := range candidates(output) {
		var list []rawSuggestion
		if err := json.Unmarshal([]byte(candidate), &list); err == nil {
			return normalize(list, now)
		}
		var one rawSuggestion
		if err := json.Unmarshal([]byte(candidate), &one); err == nil && one.title() != "" {
			return normalize([]rawSuggestion{one}, now)
		}
	}
	return []Suggestion{}
}

func candidates(output string) []string {
	output = strings.TrimSpace(output)
	out := []string{output}
	if m := fencedRe.FindStringSubmatch(output); m != nil {
		out = append(out, strings.TrimSpace(m[1]))
	}
	if m := arrayRe.FindString(output); m != "" {
		out = append(out, m)
	}
	if m := objectRe.FindString(output); m != "" {
		out = append(out, m)
	}
	return out
}

func (r rawSuggestion) title() string {
	if r.Title != "" {
		return r.Title
	}
	return r.TitleZH
}

func normalize(list []rawSuggestion, now time.Time) []Suggestion {
	out := make([]Suggestion, 0, len(list))
	for i, r := range list {
		s := Suggestion{
			ID:                   fmt.Sprintf("suggestion_%d_%d", now.UnixMilli(), i),
			Title:                r.title(),
			Category:             orDefault(r.Category, defaultCategory),
			Difficulty:           orDefault(r.Difficulty, "easy"),
			Heat:                 firstPositive(r.Heat, r.Popularity, defaultHeat),
			Description:          r.description(),
			Keywords:             keywords(r.Keywords),
			Platform:             orDefault(r.Platform, defaultPlatform),
			CompetitionLevel:     orDefault(r.CompetitionLevel, "medium"),
			EstimatedViews:       firstPositive(r.EstimatedViews, defaultViews),
			SuggestedContentType: orDefault(r.SuggestedContentType, "article"),
			CreatedAt:            now.UTC().Format(time.RFC3339),
		}
		if s.Title == "" {
			s.Title = fmt.Sprintf("选题建议 %d", i+1)
		}
		out = append(out, s)
	}
	return out
}

func (r rawSuggestion) description() string {
	switch {
	case r.Description != "":
		return r.Description
	case r.DescriptionZH != "":
		return r.DescriptionZH
	case len(r.Highlights) > 0:
		return strings.Join(r.Highlights, " ")
	case len(r.Directions) > 0:
		return strings.Join(r.Directions, " ")
	}
	return "基于关键词的选题建议"
}

func keywords(raw json.RawMessage) []string {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && list != nil {
		return list
	}
	return []string{}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func firstPositive(vals ...float64) int {
	for _, v := range vals {
		if v > 0 {
			return int(v + 0.5)
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// Completer produces model output for a prompt.
type Completer interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// WebSearcher supplies the results suggestions are grounded on.
type WebSearcher interface {
	SearchWeb(ctx context.Context, keyword string, opts search.Options) ([]*types.CrawlResult, error)
}

// Generator searches the web for a keyword and asks the model for topic
// suggestions based on what it found.
type Generator struct {
	web    WebSearcher
	llm    Completer
	opts   search.Options
	clock  func() time.Time
	logger *slog.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithClock sets the time source for suggestion ids and timestamps.
func WithClock(clock func() time.Time) GeneratorOption {
	return func(g *Generator) { g.clock = clock }
}

// NewGenerator creates a Generator. opts are passed to every web search.
func NewGenerator(web WebSearcher, llm Completer, opts search.Options, logger *slog.Logger, options ...GeneratorOption) *Generator {
	g := &Generator{
		web:    web,
		llm:    llm,
		opts:   opts,
		clock:  time.Now,
		logger: logger.With("component", "suggest_generator"),
	}
	for _, o := range options {
		o(g)
	}
	return g
}

// Generate returns up to count suggestions for keyword aimed at platform.
func (g *Generator) Generate(ctx context.Context, keyword, platform string, count int) ([]Suggestion, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, types.ErrEmptyKeyword
	}
	count = max(count, 1)
	if platform == "" {
		platform = defaultPlatform
	}

	results, err := g.web.SearchWeb(ctx, keyword, g.opts)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", keyword, err)
	}

	prompt := buildPrompt(keyword, platform, count, BuildContext(results))
	output, err := g.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate suggestions: %w", err)
	}

	suggestions := Merge(Parse(output, g.clock()))
	if len(suggestions) > count {
		suggestions = suggestions[:count]
	}
	g.logger.Info("suggestions generated",
		"keyword", keyword,
		"platform", platform,
		"results", len(results),
		"suggestions", len(suggestions),
	)
	return suggestions, nil
}

func buildPrompt(keyword, platform string, count int, digest string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Keyword: %s\nTarget platform: %s\n\n", keyword, platform)
	if digest != "" {
		b.WriteString("Recent content:\n")
		b.WriteString(digest)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Propose %d content topics as a JSON array. Each element has the fields "+
		"title, category, difficulty, heat, description, keywords, platform, competitionLevel, "+
		"estimatedViews and suggestedContentType.\n", count)
	return b.String()
}
