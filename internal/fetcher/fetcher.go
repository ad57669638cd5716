package fetcher

import (
	"context"
)

// LightFetcher retrieves raw HTML with a plain HTTP GET (no JavaScript).
type LightFetcher interface {
	FetchLight(ctx context.Context, url string, headers map[string]string) (string, error)
}

// RenderedFetcher retrieves HTML after client-side rendering in a headless browser.
type RenderedFetcher interface {
	FetchRendered(ctx context.Context, url, waitSelector string, headers map[string]string) (string, error)
}

// Navigator loads a URL in the browser and reports every document URL
// visited on the way, ending with the page's final URL.
type Navigator interface {
	NavigationChain(ctx context.Context, url string) ([]string, error)
}

// defaultHeaders is the browser-like header set sent with every light fetch.
func defaultHeaders(acceptLanguage string) map[string]string {
	if acceptLanguage == "" {
		acceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"
	}
	return map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language":           acceptLanguage,
		"Accept-Encoding":           "gzip, deflate, br",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
		"DNT":                       "1",
	}
}
