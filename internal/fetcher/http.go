package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"

	"github.com/IshaanNene/topicscout/internal/config"
	"github.com/IshaanNene/topicscout/internal/types"
)

// HTTPFetcher implements LightFetcher using net/http.
type HTTPFetcher struct {
	client         *http.Client
	cfg            *config.FetcherConfig
	logger         *slog.Logger
	userAgents     []string
	acceptLanguage string
	uaIndex        atomic.Int64
}

// NewHTTPFetcher creates a new HTTP fetcher. The proxy manager may be nil.
func NewHTTPFetcher(cfg *config.Config, proxies *ProxyManager, logger *slog.Logger) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.Fetcher.MaxIdleConns,
		MaxIdleConnsPerHost: max(cfg.Fetcher.MaxIdleConns/2, 1),
		IdleConnTimeout:     cfg.Fetcher.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.Fetcher.TLSInsecure,
		},
		DisableCompression: true, // decompressed by hand, brotli included
	}
	if proxies != nil && proxies.Count() > 0 {
		transport.Proxy = proxies.ProxyFunc()
	}

	maxRedirects := cfg.Fetcher.MaxRedirects
	client := &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   cfg.Crawler.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("max redirects (%d) reached", maxRedirects)
			}
			return nil
		},
	}

	return &HTTPFetcher{
		client:         client,
		cfg:            &cfg.Fetcher,
		logger:         logger.With("component", "http_fetcher"),
		userAgents:     cfg.Crawler.UserAgents,
		acceptLanguage: cfg.Crawler.AcceptLanguage,
	}, nil
}

// FetchLight issues a GET and returns the decoded body as UTF-8 HTML.
// Transport failures return *types.NetworkError, non-2xx statuses return
// *types.HTTPError.
func (f *HTTPFetcher) FetchLight(ctx context.Context, rawURL string, headers map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}

	req.Header.Set("User-Agent", f.nextUserAgent())
	for k, v := range defaultHeaders(f.acceptLanguage) {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", &types.NetworkError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		httpErr := &types.HTTPError{URL: rawURL, StatusCode: resp.StatusCode}
		switch {
		case httpErr.Blocked():
			f.logger.Warn("likely blocked", "url", rawURL, "status", resp.StatusCode)
		case httpErr.RateLimited():
			httpErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
			f.logger.Warn("rate limited", "url", rawURL, "retry_after", httpErr.RetryAfter)
		}
		return "", httpErr
	}

	var reader io.Reader = resp.Body
	if f.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(reader, f.cfg.MaxBodySize)
	}
	reader, err = decompressReader(resp.Header.Get("Content-Encoding"), reader)
	if err != nil {
		return "", &types.NetworkError{URL: rawURL, Err: fmt.Errorf("decompress: %w", err)}
	}

	// Chinese sites still serve GBK/GB2312; charset sniffs header and <meta>.
	utf8Reader, err := charset.NewReader(reader, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", &types.NetworkError{URL: rawURL, Err: fmt.Errorf("charset: %w", err)}
	}

	body, err := io.ReadAll(utf8Reader)
	if err != nil {
		return "", &types.NetworkError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}

	f.logger.Debug("fetch complete",
		"url", rawURL,
		"status", resp.StatusCode,
		"size", len(body),
		"duration", time.Since(start),
	)
	return string(body), nil
}

// Close releases idle connections.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

func (f *HTTPFetcher) nextUserAgent() string {
	if len(f.userAgents) == 0 {
		return "TopicScout/" + config.Version
	}
	idx := f.uaIndex.Add(1) % int64(len(f.userAgents))
	return f.userAgents[idx]
}

// decompressReader wraps a reader with the decompressor for encoding.
func decompressReader(encoding string, reader io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// parseRetryAfter parses the Retry-After header value.
// Supports both integer seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		if secs > 120 {
			secs = 120
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			return time.Second
		}
		if d > 2*time.Minute {
			return 2 * time.Minute
		}
		return d
	}
	return 5 * time.Second
}
