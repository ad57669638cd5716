// Package classifier maps URLs to coarse site types with keyword heuristics.
package classifier

import (
	"net/url"
	"strings"

	"github.com/IshaanNene/topicscout/internal/types"
)

// Rule assigns Type to a URL whose host ends in one of Hosts or whose
// lower-cased text contains one of Keywords.
type Rule struct {
	Type     types.SiteType
	Hosts    []string
	Keywords []string
}

// DefaultRules are checked in order; domain-specific rules come before the
// generic path keywords so that e.g. a wikipedia "news" page stays encyclopedia.
func DefaultRules() []Rule {
	return []Rule{
		{Type: types.SiteEncyclopedia, Hosts: []string{"wikipedia.org", "baike.baidu.com", "baike.sogou.com", "baike.so.com", "baike.com"}, Keywords: []string{"baike.baidu.com", "wikipedia.org"}},
		{Type: types.SiteGov, Hosts: []string{"gov.cn", "gov"}, Keywords: []string{".gov.cn"}},
		{Type: types.SiteSocial, Hosts: []string{"weibo.com", "weibo.cn", "xiaohongshu.com", "twitter.com", "x.com", "facebook.com", "reddit.com", "douban.com", "tieba.baidu.com", "zhihu.com", "stackoverflow.com", "quora.com"}},
		{Type: types.SiteVideo, Hosts: []string{"douyin.com", "bilibili.com", "youtube.com", "youku.com", "ixigua.com", "kuaishou.com"}},
		{Type: types.SiteNews, Keywords: []string{"news", "article", "story", "report", "journalism"}},
		{Type: types.SiteBlog, Keywords: []string{"blog", "post", "diary", "journal"}},
		{Type: types.SiteEcommerce, Keywords: []string{"shop", "store", "buy", "product", "cart", "price"}},
		{Type: types.SiteVideo, Keywords: []string{"video", "watch", "play", "stream", "tube"}},
		{Type: types.SiteSocial, Keywords: []string{"social", "share", "community", "forum", "discussion"}},
	}
}

// Classifier is stateless after construction and safe for concurrent use.
type Classifier struct {
	rules []Rule
}

// New creates a Classifier. With no rules it uses DefaultRules.
func New(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Classify returns the first matching site type, or general.
func (c *Classifier) Classify(rawURL string) types.SiteType {
	lower := strings.ToLower(rawURL)
	host := ""
	if u, err := url.Parse(lower); err == nil {
		host = u.Hostname()
	}

	for _, r := range c.rules {
		for _, h := range r.Hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return r.Type
			}
		}
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r.Type
			}
		}
	}
	return types.SiteGeneral
}

var defaultClassifier = New()

// Classify uses the default rules.
func Classify(rawURL string) types.SiteType {
	return defaultClassifier.Classify(rawURL)
}
