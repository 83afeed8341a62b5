package dedup

import (
	"context"
	"fmt"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

const (
	defaultWindow   = 7 * 24 * time.Hour
	defaultMaxBatch = 50
)

// Deduplicator drops items whose URL was already seen inside the lookback window.
type Deduplicator struct {
	store    ports.LookbackStore
	window   time.Duration
	maxBatch int
	now      func() time.Time
}

// New builds a Deduplicator; non-positive window or maxBatch use the defaults.
func New(store ports.LookbackStore, window time.Duration, maxBatch int) *Deduplicator {
	if window <= 0 {
		window = defaultWindow
	}
	if maxBatch <= 0 {
		maxBatch = defaultMaxBatch
	}
	return &Deduplicator{store: store, window: window, maxBatch: maxBatch, now: time.Now}
}

// Filter returns the unseen items in arrival order, truncated to the batch cap.
// A URL repeated within the batch keeps only its first occurrence.
// When the lookback store fails the full batch passes through (fail open) and
// the store error is returned alongside so the caller can record it.
func (d *Deduplicator) Filter(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	withURL := make([]domain.Item, 0, len(items))
	urls := make([]string, 0, len(items))
	collected := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.URL == "" {
			continue
		}
		if _, dup := collected[item.URL]; dup {
			continue
		}
		collected[item.URL] = struct{}{}
		withURL = append(withURL, item)
		urls = append(urls, item.URL)
	}
	if len(withURL) == 0 {
		return []domain.Item{}, nil
	}

	var lookupErr error
	fresh := withURL
	if d.store != nil {
		seen, err := d.store.SeenSince(ctx, urls, d.now().Add(-d.window))
		if err != nil {
			lookupErr = fmt.Errorf("lookback store: %w", err)
		} else {
			fresh = make([]domain.Item, 0, len(withURL))
			for _, item := range withURL {
				if !seen[item.URL] {
					fresh = append(fresh, item)
				}
			}
		}
	}

	if len(fresh) > d.maxBatch {
		fresh = fresh[:d.maxBatch]
	}
	return fresh, lookupErr
}
