// Package scrape fetches screenshot sharing pages and finds the image they show.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const maxPageBytes = 4 << 20

// Fetcher retrieves the HTML of a sharing page.
type Fetcher interface {
	FetchPage(ctx context.Context, pageURL string) (string, error)
}

// HTTPFetcher implements Fetcher with a plain GET.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates a fetcher whose requests give up after timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: "cardbot/1.0",
	}
}

// FetchPage implements Fetcher. Non-2xx answers are errors.
func (f *HTTPFetcher) FetchPage(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid sharing url %q", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build page request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	res, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("fetch page: status %d", res.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}
	return string(body), nil
}

// imageMarkers are tried in order. The first is the viewer image of the
// current sharing page layout; the rest are page-preview metadata that
// older and alternate layouts carry.
var imageMarkers = []struct {
	selector string
	attr     string
}{
	{`img[data-testid="viewer-content-image"]`, "src"},
	{`meta[property="og:image"]`, "content"},
	{`meta[name="twitter:image"]`, "content"},
	{`link[rel="image_src"]`, "href"},
}

// ExtractImage returns the image reference shown by a sharing page.
// Relative references are resolved against pageURL. It reports false when
// no marker carries a usable value.
func ExtractImage(html, pageURL string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	for _, m := range imageMarkers {
		var found string
		doc.Find(m.selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v, ok := s.Attr(m.attr); ok && strings.TrimSpace(v) != "" {
				found = strings.TrimSpace(v)
				return false
			}
			return true
		})
		if found != "" {
			return absolute(found, pageURL), true
		}
	}
	return "", false
}

func absolute(ref, pageURL string) string {
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() {
		return ref
	}
	base, err := url.Parse(pageURL)
	if err != nil || !base.IsAbs() {
		return ref
	}
	return base.ResolveReference(r).String()
}
