// Package newssearch queries a news-search RSS endpoint for corroborating coverage.
package newssearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed/rss"

	"NewsDigest/internal/config"
	"NewsDigest/internal/ports"
)

const userAgent = "Mozilla/5.0 (compatible; NewsDigest/1.0)"

// GoogleNews implements ports.NewsSearcher against the Google News RSS search surface.
type GoogleNews struct {
	endpoint string
	language string
	region   string
	client   *http.Client
}

var _ ports.NewsSearcher = (*GoogleNews)(nil)

// NewGoogleNews builds a searcher from configuration.
func NewGoogleNews(cfg config.SearchConfig) *GoogleNews {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GoogleNews{
		endpoint: cfg.Endpoint,
		language: cfg.Language,
		region:   cfg.Region,
		client:   &http.Client{Timeout: timeout},
	}
}

// Search returns every hit of the query in feed order. The link of each hit
// is the original publisher URL when the feed names one.
func (g *GoogleNews) Search(ctx context.Context, query string) ([]ports.SearchResult, error) {
	endpoint, err := g.searchURL(query)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("search %q: unexpected status %s", query, resp.Status)
	}

	parser := &rss.Parser{}
	feed, err := parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search feed: %w", err)
	}

	results := make([]ports.SearchResult, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		link := strings.TrimSpace(item.Link)
		if item.Source != nil && strings.TrimSpace(item.Source.URL) != "" {
			link = strings.TrimSpace(item.Source.URL)
		}
		results = append(results, ports.SearchResult{Title: strings.TrimSpace(item.Title), Link: link})
	}
	return results, nil
}

func (g *GoogleNews) searchURL(query string) (string, error) {
	base, err := url.Parse(g.endpoint)
	if err != nil || base.Host == "" {
		return "", fmt.Errorf("invalid search endpoint %q", g.endpoint)
	}
	lang := orDefault(g.language, "en-IN")
	region := orDefault(g.region, "IN")

	params := base.Query()
	params.Set("q", query)
	params.Set("hl", lang)
	params.Set("gl", region)
	params.Set("ceid", region+":"+strings.SplitN(lang, "-", 2)[0])
	base.RawQuery = params.Encode()
	return base.String(), nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
