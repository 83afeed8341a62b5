package parser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/scanner"
	"NewsDigest/internal/textutil"
)

const defaultFeedLimit = 10

// RSSScanner reads RSS and Atom feeds.
type RSSScanner struct {
	client *http.Client
}

var _ scanner.Scanner = (*RSSScanner)(nil)

// NewRSSScanner wires an HTTP client; nil selects the shared default.
func NewRSSScanner(client *http.Client) *RSSScanner {
	if client == nil {
		client = NewHTTPClient()
	}
	return &RSSScanner{client: client}
}

// Name identifies the strategy inside the registry.
func (r *RSSScanner) Name() string {
	return "rss"
}

// Scan reads every feed of the site and keeps at most req.Limit entries per
// feed. Feeds that fail are reported in the returned error while entries from
// the others are still returned.
func (r *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Item, error) {
	if len(req.Feeds) == 0 {
		return nil, fmt.Errorf("no feeds provided for site %s", req.SiteName)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultFeedLimit
	}

	var (
		items []domain.Item
		errs  []error
	)
	for _, feed := range req.Feeds {
		parsed, err := r.readFeed(ctx, feed.URL)
		if err != nil {
			errs = append(errs, fmt.Errorf("feed %s: %w", feed.URL, err))
			continue
		}
		for i, entry := range parsed.Items {
			if i >= limit {
				break
			}
			if item, ok := toItem(entry); ok {
				items = append(items, item)
			}
		}
	}
	return items, errors.Join(errs...)
}

func (r *RSSScanner) readFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	body, err := fetch(ctx, r.client, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

func toItem(entry *gofeed.Item) (domain.Item, bool) {
	if entry == nil {
		return domain.Item{}, false
	}
	url := strings.TrimSpace(entry.Link)
	title := textutil.Truncate(strings.TrimSpace(entry.Title), maxTitleChars)
	if url == "" || title == "" {
		return domain.Item{}, false
	}

	raw := entry.Description
	if raw == "" {
		raw = entry.Content
	}

	var published time.Time
	if entry.PublishedParsed != nil {
		published = entry.PublishedParsed.UTC()
	}

	return domain.Item{
		URL:         url,
		Title:       title,
		Body:        textutil.Truncate(textutil.PlainText(raw), maxBodyChars),
		PublishedAt: published,
	}, true
}
