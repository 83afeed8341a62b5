package dedup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NewsDigest/internal/domain"
)

type fakeLookback struct {
	seen  map[string]bool
	err   error
	since time.Time
	calls int
}

func (f *fakeLookback) SeenSince(_ context.Context, urls []string, since time.Time) (map[string]bool, error) {
	f.calls++
	f.since = since
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]bool{}
	for _, u := range urls {
		if f.seen[u] {
			out[u] = true
		}
	}
	return out, nil
}

func batch(n int) []domain.Item {
	items := make([]domain.Item, n)
	for i := range items {
		items[i] = domain.Item{URL: fmt.Sprintf("https://example.com/%d", i), Title: fmt.Sprintf("item %d", i)}
	}
	return items
}

func TestFilterDropsSeenItems(t *testing.T) {
	store := &fakeLookback{seen: map[string]bool{"https://example.com/1": true}}
	d := New(store, 0, 0)

	out, err := d.Filter(context.Background(), batch(3))
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "https://example.com/0", out[0].URL)
	require.Equal(t, "https://example.com/2", out[1].URL)
}

func TestFilterUsesLookbackWindow(t *testing.T) {
	store := &fakeLookback{}
	d := New(store, 48*time.Hour, 10)
	fixed := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return fixed }

	_, err := d.Filter(context.Background(), batch(1))
	require.NoError(t, err)
	require.Equal(t, fixed.Add(-48*time.Hour), store.since)
}

func TestFilterIsIdempotent(t *testing.T) {
	store := &fakeLookback{seen: map[string]bool{"https://example.com/0": true}}
	d := New(store, 0, 0)
	items := batch(5)

	first, err := d.Filter(context.Background(), items)
	require.NoError(t, err)
	second, err := d.Filter(context.Background(), items)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestFilterAllSeenYieldsEmpty(t *testing.T) {
	items := batch(4)
	seen := map[string]bool{}
	for _, it := range items {
		seen[it.URL] = true
	}
	d := New(&fakeLookback{seen: seen}, 0, 0)

	out, err := d.Filter(context.Background(), items)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestFilterFailsOpen(t *testing.T) {
	store := &fakeLookback{err: errors.New("connection refused")}
	d := New(store, 0, 0)

	out, err := d.Filter(context.Background(), batch(3))
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")
	require.Len(t, out, 3)
}

func TestFilterCapsBatchPreservingOrder(t *testing.T) {
	d := New(&fakeLookback{}, 0, 0)

	out, err := d.Filter(context.Background(), batch(60))
	require.NoError(t, err)
	require.Len(t, out, 50)
	for i, item := range out {
		require.Equal(t, fmt.Sprintf("https://example.com/%d", i), item.URL)
	}
}

func TestFilterSkipsItemsWithoutURL(t *testing.T) {
	store := &fakeLookback{}
	d := New(store, 0, 0)

	out, err := d.Filter(context.Background(), []domain.Item{{Title: "no link"}})
	require.NoError(t, err)
	require.Empty(t, out)
	require.Zero(t, store.calls)
}

func TestFilterDropsInBatchDuplicates(t *testing.T) {
	store := &fakeLookback{}
	d := New(store, 0, 0)
	items := batch(3)
	dup := items[0]
	dup.Title = "same story, second feed"

	out, err := d.Filter(context.Background(), []domain.Item{items[0], items[1], dup, items[2]})
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, "item 0", out[0].Title)
	require.Equal(t, "https://example.com/1", out[1].URL)
	require.Equal(t, "https://example.com/2", out[2].URL)
}

func TestFilterDuplicatesDoNotTakeBatchSlots(t *testing.T) {
	d := New(nil, 0, 2)
	a := domain.Item{URL: "https://example.com/a"}
	b := domain.Item{URL: "https://example.com/b"}

	out, err := d.Filter(context.Background(), []domain.Item{a, a, a, b})
	require.NoError(t, err)
	require.Equal(t, []domain.Item{a, b}, out)
}
