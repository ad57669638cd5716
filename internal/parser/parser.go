// Package parser applies extraction rules to an HTML page and produces a
// CrawlResult. Selectors are CSS (goquery) unless prefixed with "xpath:".
package parser

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/topicscout/internal/rules"
	"github.com/IshaanNene/topicscout/internal/types"
)

const (
	xpathPrefix      = "xpath:"
	maxImages        = 20
	maxShortField    = 100
	paragraphDefault = 20
)

// Extractor turns raw HTML into a CrawlResult using a rule.
type Extractor struct {
	maxContentLength int
	logger           *slog.Logger
}

// NewExtractor creates an Extractor. maxContentLength bounds content for
// rules without their own MaxLength; 0 means unbounded.
func NewExtractor(maxContentLength int, logger *slog.Logger) *Extractor {
	return &Extractor{
		maxContentLength: maxContentLength,
		logger:           logger.With("component", "extractor"),
	}
}

// Extract parses rawHTML fetched from pageURL. excludeSelectors are removed
// together with the rule's RemoveElements before any text is read. Missing
// fields are left empty; Extract only fails if the HTML cannot be parsed.
func (e *Extractor) Extract(rawHTML, pageURL string, siteType types.SiteType, rule *rules.Rule, excludeSelectors []string) (*types.CrawlResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	p := &page{doc: doc, logger: e.logger}
	p.base, _ = url.Parse(pageURL)

	// Fallbacks that read <head> run before removal so excludes cannot hide them.
	docTitle := normalizeSpace(doc.Find("title").First().Text())
	if docTitle == "" {
		docTitle = p.metaContent(`meta[property="og:title"]`)
	}
	metaAuthor := p.metaContent(`meta[name="author"]`, `meta[property="article:author"]`)
	metaDate := p.metaContent(`meta[property="article:published_time"]`, `meta[name="pubdate"]`, `meta[name="publishdate"]`)

	for _, sel := range rule.Preprocess.RemoveElements {
		p.remove(sel)
	}
	for _, sel := range excludeSelectors {
		p.remove(sel)
	}

	result := &types.CrawlResult{
		ID:       types.ResultID(pageURL),
		URL:      pageURL,
		Platform: types.PlatformWeb,
		SiteType: siteType,
	}

	result.Title = p.firstText(rule.Selectors.Title, 0)
	if result.Title == "" {
		result.Title = docTitle
	}
	result.Title = truncateRunes(result.Title, 200)

	result.Content = e.content(p, rule)

	result.Author = truncateRunes(p.firstText(rule.Selectors.Author, 0), maxShortField)
	if result.Author == "" {
		result.Author = metaAuthor
	}

	result.PublishTime = p.date(rule.Selectors.Date)
	if result.PublishTime == "" {
		result.PublishTime = metaDate
	}

	result.Images = p.images(rule.Selectors.Images)

	metrics := &types.Metrics{
		Views:    ParseCount(p.firstText(rule.Selectors.Views, 0)),
		Likes:    ParseCount(p.firstText(rule.Selectors.Likes, 0)),
		Comments: ParseCount(p.firstText(rule.Selectors.Comments, 0)),
		Shares:   ParseCount(p.firstText(rule.Selectors.Shares, 0)),
	}
	if !metrics.IsZero() {
		result.Metrics = metrics
	}

	result.Metadata = p.metadata(rule)
	return result, nil
}

// content assembles the content field through progressively weaker
// fallbacks: summary, rule paragraphs, content selectors, generic <p>.
func (e *Extractor) content(p *page, rule *rules.Rule) string {
	policy := rule.Content
	floor := policy.ContentFloor()

	var content string
	take := func(candidate string) {
		if runeLen(candidate) > runeLen(content) {
			content = candidate
		}
	}

	if len(policy.SummarySelectors) > 0 {
		take(p.firstBlock(policy.SummarySelectors, policy.SummaryMinLength))
	}
	if runeLen(content) < floor && policy.ParagraphSelector != "" && policy.PreferParagraphs {
		take(p.paragraphs(policy.ParagraphSelector, policy.ParagraphMinLength, policy.MaxParagraphs, policy.ExcludeKeywords))
	}
	if runeLen(content) < floor {
		take(p.firstBlock(rule.Selectors.Content, policy.MinLength))
	}
	if runeLen(content) < floor && policy.ParagraphSelector != "" && !policy.PreferParagraphs {
		take(p.paragraphs(policy.ParagraphSelector, policy.ParagraphMinLength, policy.MaxParagraphs, policy.ExcludeKeywords))
	}
	if runeLen(content) < floor {
		take(p.paragraphs("p", paragraphDefault, 3, policy.ExcludeKeywords))
	}

	content = normalizeBlock(rule.ApplyReplacements(content))

	limit := policy.MaxLength
	if limit <= 0 {
		limit = e.maxContentLength
	}
	return truncateRunes(content, limit)
}

// page wraps a parsed document for selector evaluation.
type page struct {
	doc    *goquery.Document
	base   *url.URL
	logger *slog.Logger
}

// nodes evaluates a CSS or "xpath:" selector.
func (p *page) nodes(sel string) []*html.Node {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return nil
	}
	if expr, ok := strings.CutPrefix(sel, xpathPrefix); ok {
		if len(p.doc.Nodes) == 0 {
			return nil
		}
		found, err := htmlquery.QueryAll(p.doc.Nodes[0], expr)
		if err != nil {
			p.logger.Debug("invalid xpath", "selector", expr, "error", err)
			return nil
		}
		return found
	}
	return p.doc.Find(sel).Nodes
}

func (p *page) remove(sel string) {
	for _, n := range p.nodes(sel) {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

// firstText returns the first single-line text longer than minLen found by
// trying selectors in order.
func (p *page) firstText(selectors []string, minLen int) string {
	for _, sel := range selectors {
		for _, n := range p.nodes(sel) {
			if text := normalizeSpace(nodeText(n)); text != "" && runeLen(text) > minLen {
				return text
			}
		}
	}
	return ""
}

// firstBlock is firstText preserving line structure.
func (p *page) firstBlock(selectors []string, minLen int) string {
	for _, sel := range selectors {
		for _, n := range p.nodes(sel) {
			if text := normalizeBlock(nodeText(n)); text != "" && runeLen(text) > minLen {
				return text
			}
		}
	}
	return ""
}

// paragraphs joins up to max qualifying paragraphs with blank lines.
func (p *page) paragraphs(sel string, minLen, max int, exclude []string) string {
	var out []string
	for _, n := range p.nodes(sel) {
		if max > 0 && len(out) >= max {
			break
		}
		text := normalizeSpace(nodeText(n))
		if runeLen(text) <= minLen || containsAny(text, exclude) {
			continue
		}
		out = append(out, text)
	}
	return strings.Join(out, "\n\n")
}

// date prefers a <time datetime> attribute over element text.
func (p *page) date(selectors []string) string {
	for _, sel := range selectors {
		for _, n := range p.nodes(sel) {
			if n.Data == "time" {
				if dt := strings.TrimSpace(htmlquery.SelectAttr(n, "datetime")); dt != "" {
					return dt
				}
			}
			if text := normalizeSpace(nodeText(n)); text != "" {
				return truncateRunes(text, maxShortField)
			}
		}
	}
	return ""
}

// images collects de-duplicated absolute image URLs in document order.
func (p *page) images(selectors []string) []string {
	seen := make(map[string]bool)
	out := []string{}
	add := func(src string) {
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") || len(out) >= maxImages {
			return
		}
		src = p.resolve(src)
		if seen[src] {
			return
		}
		seen[src] = true
		out = append(out, src)
	}

	for _, sel := range selectors {
		for _, n := range p.nodes(sel) {
			switch n.Data {
			case "img":
				add(imageSrc(n))
			case "video":
				add(htmlquery.SelectAttr(n, "poster"))
			default:
				if bg := htmlquery.SelectAttr(n, "data-src"); bg != "" {
					add(bg)
					continue
				}
				for _, img := range goquery.NewDocumentFromNode(n).Find("img").Nodes {
					add(imageSrc(img))
				}
			}
		}
	}
	return out
}

func imageSrc(n *html.Node) string {
	for _, attr := range []string{"src", "data-src", "data-original"} {
		if v := htmlquery.SelectAttr(n, attr); v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return ""
}

// metadata gathers custom fields plus price and rating.
func (p *page) metadata(rule *rules.Rule) map[string]string {
	meta := make(map[string]string)
	for _, cf := range rule.CustomFields {
		nodes := p.nodes(cf.Selector)
		if len(nodes) == 0 {
			continue
		}
		var v string
		if cf.Attribute == "" || cf.Attribute == "text" {
			v = normalizeSpace(nodeText(nodes[0]))
		} else {
			v = strings.TrimSpace(htmlquery.SelectAttr(nodes[0], cf.Attribute))
		}
		if v != "" {
			meta[cf.Name] = v
		}
	}
	if _, ok := meta["price"]; !ok {
		if v := p.firstText(rule.Selectors.Price, 0); v != "" {
			meta["price"] = v
		}
	}
	if v := p.firstText(rule.Selectors.Rating, 0); v != "" {
		meta["rating"] = v
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

func (p *page) metaContent(selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := p.doc.Find(sel).First().Attr("content"); ok {
			if v = normalizeSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func (p *page) resolve(ref string) string {
	if p.base == nil {
		return ref
	}
	u, err := p.base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
