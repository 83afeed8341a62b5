package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/scanner"
)

const (
	hackerNewsAPI   = "https://hacker-news.firebaseio.com/v0"
	hnTopStories    = 40
	hnMaxItems      = 10
	hnFetchParallel = 10
)

var hnKeywords = []string{
	"ai", "llm", "gpt", "claude", "machine learning", "neural", "langchain",
	"huggingface", "openai", "anthropic", "python", "data science", "inference",
	"model", "agent", "fine-tun", "rag", "retrieval", "embedding",
}

type hnStory struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
}

// HackerNewsScanner reads the top stories list and keeps the ones whose title
// matches a topic keyword.
type HackerNewsScanner struct {
	client *http.Client
}

var _ scanner.Scanner = (*HackerNewsScanner)(nil)

// NewHackerNewsScanner wires an HTTP client; nil selects the shared default.
func NewHackerNewsScanner(client *http.Client) *HackerNewsScanner {
	if client == nil {
		client = NewHTTPClient()
	}
	return &HackerNewsScanner{client: client}
}

// Name identifies the strategy inside the registry.
func (h *HackerNewsScanner) Name() string {
	return "hackernews"
}

// Scan fetches the top stories and returns up to req.Limit matching ones in rank order.
func (h *HackerNewsScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Item, error) {
	base := hackerNewsAPI
	if len(req.Feeds) > 0 && req.Feeds[0].URL != "" {
		base = strings.TrimRight(req.Feeds[0].URL, "/")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = hnMaxItems
	}

	var ids []int64
	if err := h.getJSON(ctx, base+"/topstories.json", &ids); err != nil {
		return nil, fmt.Errorf("top stories: %w", err)
	}
	if len(ids) > hnTopStories {
		ids = ids[:hnTopStories]
	}

	stories := make([]*hnStory, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hnFetchParallel)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			var story hnStory
			if err := h.getJSON(gctx, fmt.Sprintf("%s/item/%d.json", base, id), &story); err == nil {
				stories[i] = &story
			}
			return nil
		})
	}
	_ = g.Wait()

	var items []domain.Item
	for _, story := range stories {
		if story == nil || story.Type != "story" || !matchesTopic(story.Title) {
			continue
		}
		link := story.URL
		if link == "" {
			link = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", story.ID)
		}
		items = append(items, domain.Item{
			URL:   link,
			Title: story.Title,
			Body:  fmt.Sprintf("HackerNews: %d points, %d comments", story.Score, story.Descendants),
		})
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

func (h *HackerNewsScanner) getJSON(ctx context.Context, url string, out any) error {
	body, err := fetch(ctx, h.client, url)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func matchesTopic(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range hnKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
