package types

// Platform tag used for results that came from general web crawling.
const PlatformWeb = "web"

// CrawlResult is the structured record produced for one page or one
// platform post. It is the only shape downstream consumers see.
type CrawlResult struct {
	ID          string            `json:"id" bson:"_id"`
	Title       string            `json:"title" bson:"title"`
	Content     string            `json:"content" bson:"content"`
	URL         string            `json:"url" bson:"url"`
	Author      string            `json:"author,omitempty" bson:"author,omitempty"`
	PublishTime string            `json:"publishTime,omitempty" bson:"publish_time,omitempty"`
	Platform    string            `json:"platform" bson:"platform"`
	SiteType    SiteType          `json:"siteType" bson:"site_type"`
	Metrics     *Metrics          `json:"metrics,omitempty" bson:"metrics,omitempty"`
	Images      []string          `json:"images" bson:"images"`
	Metadata    map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// Metrics holds engagement counters. Zero means not extractable.
type Metrics struct {
	Views    int64 `json:"views" bson:"views"`
	Likes    int64 `json:"likes" bson:"likes"`
	Comments int64 `json:"comments" bson:"comments"`
	Shares   int64 `json:"shares" bson:"shares"`
}

// IsZero reports whether no counter was populated.
func (m *Metrics) IsZero() bool {
	return m == nil || (m.Views == 0 && m.Likes == 0 && m.Comments == 0 && m.Shares == 0)
}

// SearchResult is one entry scraped from a search engine result page.
// It is ephemeral: the orchestrator turns it into a CrawlResult.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Engine  string `json:"engine"`
}

// ToCrawlResult builds the minimal stand-in record used when a search
// result is not (or could not be) crawled.
func (r SearchResult) ToCrawlResult() *CrawlResult {
	return &CrawlResult{
		ID:       ResultID(r.URL),
		Title:    r.Title,
		Content:  r.Snippet,
		URL:      r.URL,
		Platform: PlatformWeb,
		SiteType: SiteNews,
		Images:   []string{},
	}
}
