// Package rules holds the extraction rules that tell the crawler where to
// find each field on a page, and the registry that serves them.
package rules

import (
	"fmt"
	"regexp"
	"time"

	"github.com/IshaanNene/topicscout/internal/types"
)

// Rule is one extraction configuration. Selector lists are ordered
// candidates; a selector prefixed with "xpath:" is evaluated as XPath.
type Rule struct {
	Name         string         `json:"name"                    yaml:"name"`
	Description  string         `json:"description,omitempty"   yaml:"description,omitempty"`
	URLPatterns  []string       `json:"urlPatterns,omitempty"   yaml:"url_patterns,omitempty"`
	SiteType     types.SiteType `json:"siteType"                yaml:"site_type"`
	Selectors    Selectors      `json:"selectors"               yaml:"selectors"`
	Preprocess   Preprocess     `json:"preprocessing,omitempty" yaml:"preprocessing,omitempty"`
	CustomFields []CustomField  `json:"customFields,omitempty"  yaml:"custom_fields,omitempty"`
	Options      Options        `json:"options,omitempty"       yaml:"options,omitempty"`
	Content      ContentPolicy  `json:"content,omitempty"       yaml:"content,omitempty"`

	patterns  []*regexp.Regexp
	replacers []replacer
}

// Selectors lists candidate selectors per field.
type Selectors struct {
	Title    []string `json:"title,omitempty"    yaml:"title,omitempty"`
	Content  []string `json:"content,omitempty"  yaml:"content,omitempty"`
	Author   []string `json:"author,omitempty"   yaml:"author,omitempty"`
	Date     []string `json:"date,omitempty"     yaml:"date,omitempty"`
	Images   []string `json:"images,omitempty"   yaml:"images,omitempty"`
	Views    []string `json:"views,omitempty"    yaml:"views,omitempty"`
	Likes    []string `json:"likes,omitempty"    yaml:"likes,omitempty"`
	Comments []string `json:"comments,omitempty" yaml:"comments,omitempty"`
	Shares   []string `json:"shares,omitempty"   yaml:"shares,omitempty"`
	Price    []string `json:"price,omitempty"    yaml:"price,omitempty"`
	Rating   []string `json:"rating,omitempty"   yaml:"rating,omitempty"`
}

// Preprocess runs before and after text extraction.
type Preprocess struct {
	RemoveElements []string      `json:"removeElements,omitempty"  yaml:"remove_elements,omitempty"`
	Replace        []Replacement `json:"replacePatterns,omitempty" yaml:"replace_patterns,omitempty"`
}

// Replacement rewrites extracted content with a regular expression.
type Replacement struct {
	Pattern string `json:"pattern"     yaml:"pattern"`
	With    string `json:"replacement" yaml:"replacement"`
}

// CustomField extracts an extra value into CrawlResult.Metadata. An empty
// or "text" Attribute takes the element text.
type CustomField struct {
	Name      string `json:"name"                yaml:"name"`
	Selector  string `json:"selector"            yaml:"selector"`
	Attribute string `json:"attribute,omitempty" yaml:"attribute,omitempty"`
}

// Options are crawl settings the rule imposes on pages it matches.
type Options struct {
	UseBrowser   bool              `json:"useBrowser,omitempty"      yaml:"use_browser,omitempty"`
	WaitSelector string            `json:"waitForSelector,omitempty" yaml:"wait_selector,omitempty"`
	DelayMS      int               `json:"delay,omitempty"           yaml:"delay_ms,omitempty"`
	Retries      int               `json:"retries,omitempty"         yaml:"retries,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"         yaml:"headers,omitempty"`
}

// Delay returns the artificial pre-fetch delay.
func (o Options) Delay() time.Duration {
	return time.Duration(o.DelayMS) * time.Millisecond
}

// ContentPolicy tunes how the content field is assembled. Lengths count runes.
type ContentPolicy struct {
	// MinLength is the length a content selector's text must exceed to qualify.
	MinLength int `json:"minLength,omitempty" yaml:"min_length,omitempty"`
	// Floor is the length below which the next fallback is tried (default 50).
	Floor int `json:"floor,omitempty" yaml:"floor,omitempty"`
	// MaxLength truncates the final content; 0 leaves it to the crawler.
	MaxLength int `json:"maxLength,omitempty" yaml:"max_length,omitempty"`

	SummarySelectors []string `json:"summarySelectors,omitempty" yaml:"summary_selectors,omitempty"`
	SummaryMinLength int      `json:"summaryMinLength,omitempty" yaml:"summary_min_length,omitempty"`

	ParagraphSelector  string   `json:"paragraphSelector,omitempty"  yaml:"paragraph_selector,omitempty"`
	ParagraphMinLength int      `json:"paragraphMinLength,omitempty" yaml:"paragraph_min_length,omitempty"`
	MaxParagraphs      int      `json:"maxParagraphs,omitempty"      yaml:"max_paragraphs,omitempty"`
	PreferParagraphs   bool     `json:"preferParagraphs,omitempty"   yaml:"prefer_paragraphs,omitempty"`
	ExcludeKeywords    []string `json:"excludeKeywords,omitempty"    yaml:"exclude_keywords,omitempty"`
}

// ContentFloor returns Floor or its default.
func (p ContentPolicy) ContentFloor() int {
	if p.Floor > 0 {
		return p.Floor
	}
	return 50
}

type replacer struct {
	re   *regexp.Regexp
	with string
}

// compile validates the rule and prepares its regular expressions.
func (r *Rule) compile() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", types.ErrInvalidRule)
	}
	if r.SiteType == "" {
		return fmt.Errorf("%w: rule %q has no site type", types.ErrInvalidRule, r.Name)
	}
	if _, err := types.ParseSiteType(string(r.SiteType)); err != nil {
		return fmt.Errorf("%w: rule %q: %v", types.ErrInvalidRule, r.Name, err)
	}

	r.patterns = r.patterns[:0]
	for _, p := range r.URLPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return fmt.Errorf("%w: rule %q pattern %q: %v", types.ErrInvalidRule, r.Name, p, err)
		}
		r.patterns = append(r.patterns, re)
	}

	r.replacers = r.replacers[:0]
	for _, rep := range r.Preprocess.Replace {
		re, err := regexp.Compile(rep.Pattern)
		if err != nil {
			return fmt.Errorf("%w: rule %q replace %q: %v", types.ErrInvalidRule, r.Name, rep.Pattern, err)
		}
		r.replacers = append(r.replacers, replacer{re: re, with: rep.With})
	}
	return nil
}

// Matches reports whether rawURL matches any of the rule's URL patterns.
func (r *Rule) Matches(rawURL string) bool {
	for _, re := range r.patterns {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// ApplyReplacements runs the rule's replace patterns over s.
func (r *Rule) ApplyReplacements(s string) string {
	for _, rep := range r.replacers {
		s = rep.re.ReplaceAllString(s, rep.with)
	}
	return s
}

// clone returns a deep copy so registry callers cannot mutate stored rules.
func (r *Rule) clone() *Rule {
	c := *r
	c.URLPatterns = append([]string(nil), r.URLPatterns...)
	c.CustomFields = append([]CustomField(nil), r.CustomFields...)
	c.Preprocess.RemoveElements = append([]string(nil), r.Preprocess.RemoveElements...)
	c.Preprocess.Replace = append([]Replacement(nil), r.Preprocess.Replace...)
	if r.Options.Headers != nil {
		c.Options.Headers = make(map[string]string, len(r.Options.Headers))
		for k, v := range r.Options.Headers {
			c.Options.Headers[k] = v
		}
	}
	c.patterns = append([]*regexp.Regexp(nil), r.patterns...)
	c.replacers = append([]replacer(nil), r.replacers...)
	return &c
}
