// Package redirect resolves search-engine click wrappers to the URL they
// point at.
package redirect

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/IshaanNene/topicscout/internal/fetcher"
)

// Wrapper describes one family of redirect wrapper URLs.
type Wrapper struct {
	Host   string   // host suffix, empty matches any host
	Path   string   // path prefix
	Params []string // query keys that may carry the destination, in priority order
	Follow bool     // whether a browser navigation may be used when no param decodes
}

// DefaultWrappers covers the engines TopicScout searches.
func DefaultWrappers() []Wrapper {
	return []Wrapper{
		{Host: "baidu.com", Path: "/link", Params: []string{"url", "u"}, Follow: true},
		{Host: "bing.com", Path: "/ck/a", Params: []string{"u"}, Follow: true},
		{Host: "bing.com", Path: "/a/clck", Params: []string{"u", "url"}},
		{Host: "google.com", Path: "/url", Params: []string{"q", "url"}},
		{Host: "duckduckgo.com", Path: "/l/", Params: []string{"uddg"}},
		{Host: "so.com", Path: "/link", Params: []string{"m", "url"}, Follow: true},
		{Host: "sogou.com", Path: "/link", Params: []string{"url"}, Follow: true},
		{Path: "/link", Params: []string{"url", "u", "target"}},
		{Path: "/redirect", Params: []string{"url", "u", "target", "to"}},
	}
}

// Resolver turns wrapper URLs into their destination. It never fails:
// anything it cannot resolve comes back unchanged.
type Resolver struct {
	wrappers  []Wrapper
	navigator fetcher.Navigator
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithNavigator enables the browser-navigation fallback.
func WithNavigator(n fetcher.Navigator) Option {
	return func(r *Resolver) { r.navigator = n }
}

// WithWrappers replaces the wrapper table.
func WithWrappers(w []Wrapper) Option {
	return func(r *Resolver) { r.wrappers = w }
}

// NewResolver creates a Resolver. timeout bounds the navigation fallback.
func NewResolver(timeout time.Duration, logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		wrappers: DefaultWrappers(),
		timeout:  timeout,
		logger:   logger.With("component", "redirect_resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the destination behind rawURL, trying the embedded query
// parameter first and a bounded browser navigation second.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) string {
	w, ok := r.match(rawURL)
	if !ok {
		return rawURL
	}

	if dest := DecodeParam(rawURL, w.Params); dest != "" {
		r.logger.Debug("redirect decoded from parameter", "from", rawURL, "to", dest)
		return dest
	}

	if !w.Follow || r.navigator == nil {
		return rawURL
	}

	navCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	chain, err := r.navigator.NavigationChain(navCtx, rawURL)
	if err != nil {
		r.logger.Warn("redirect unresolved", "url", rawURL, "error", err)
		return rawURL
	}
	for i := len(chain) - 1; i >= 0; i-- {
		candidate := chain[i]
		if candidate == rawURL || !isHTTP(candidate) || r.IsWrapper(candidate) {
			continue
		}
		r.logger.Debug("redirect followed", "from", rawURL, "to", candidate)
		return candidate
	}

	r.logger.Debug("redirect unresolved", "url", rawURL)
	return rawURL
}

// IsWrapper reports whether rawURL matches a known wrapper family.
func (r *Resolver) IsWrapper(rawURL string) bool {
	_, ok := r.match(rawURL)
	return ok
}

func (r *Resolver) match(rawURL string) (Wrapper, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return Wrapper{}, false
	}
	host := strings.ToLower(u.Hostname())
	for _, w := range r.wrappers {
		if w.Host != "" && host != w.Host && !strings.HasSuffix(host, "."+w.Host) {
			continue
		}
		if !strings.HasPrefix(u.Path, w.Path) {
			continue
		}
		// Host-agnostic families only count when a destination is present.
		if w.Host == "" && DecodeParam(rawURL, w.Params) == "" {
			continue
		}
		return w, true
	}
	return Wrapper{}, false
}

// DecodeParam returns the first of params that decodes to an absolute
// http(s) URL, or "". Bing-style "a1"+base64url values are understood.
func DecodeParam(rawURL string, params []string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	for _, key := range params {
		v := strings.TrimSpace(q.Get(key))
		if v == "" {
			continue
		}
		if dest := decodeValue(v); dest != "" {
			return dest
		}
	}
	return ""
}

func decodeValue(v string) string {
	if isHTTP(v) {
		return v
	}
	if unescaped, err := url.QueryUnescape(v); err == nil && isHTTP(unescaped) {
		return unescaped
	}
	if strings.HasPrefix(v, "a1") {
		payload := v[2:]
		for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding, base64.StdEncoding} {
			if b, err := enc.DecodeString(payload); err == nil && isHTTP(string(b)) {
				return string(b)
			}
		}
	}
	return ""
}

func isHTTP(s string) bool {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Host != ""
}
