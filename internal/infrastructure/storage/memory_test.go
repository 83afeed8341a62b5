package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

func validated(url string, cat domain.Category) domain.ValidatedItem {
	return domain.ValidatedItem{
		Item:       domain.Item{URL: url, Title: "title " + url, Category: cat},
		Validation: domain.Validation{Status: domain.StatusVerified, CredibilityScore: 90},
	}
}

func TestMemoryStoreLookback(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveValidated(ctx, []domain.ValidatedItem{validated("https://a", domain.CategoryTech)}, now.Add(-8*24*time.Hour)))
	require.NoError(t, store.SaveValidated(ctx, []domain.ValidatedItem{validated("https://b", domain.CategoryTech)}, now.Add(-time.Hour)))

	seen, err := store.SeenSince(ctx, []string{"https://a", "https://b", "https://c"}, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"https://b": true}, seen)
}

func TestMemoryStoreFeedbackSurvivesUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()

	require.NoError(t, store.SaveValidated(ctx, []domain.ValidatedItem{validated("https://a", domain.CategoryFinance)}, now))
	require.NoError(t, store.SetFeedback(ctx, "https://a", "too generic"))
	require.NoError(t, store.SaveValidated(ctx, []domain.ValidatedItem{validated("https://a", domain.CategoryFinance)}, now.Add(time.Minute)))

	items, err := store.RecentItems(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "too generic", items[0].UserFeedback)

	require.ErrorIs(t, store.SetFeedback(ctx, "https://missing", "x"), ports.ErrNotFound)
}

func TestMemoryStoreRecentItemsFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Now()

	require.NoError(t, store.SaveValidated(ctx, []domain.ValidatedItem{validated("https://old", domain.CategoryTech)}, base))
	require.NoError(t, store.SaveValidated(ctx, []domain.ValidatedItem{validated("https://new", domain.CategoryTech)}, base.Add(time.Hour)))
	require.NoError(t, store.SaveValidated(ctx, []domain.ValidatedItem{validated("https://fin", domain.CategoryFinance)}, base.Add(2*time.Hour)))

	tech, err := store.RecentItems(ctx, 10, domain.CategoryTech)
	require.NoError(t, err)
	require.Len(t, tech, 2)
	require.Equal(t, "https://new", tech[0].URL)

	limited, err := store.RecentItems(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, "https://fin", limited[0].URL)

	count, err := store.CountItems(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestMemoryStoreDigestTransitions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	t0 := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateDigest(ctx, domain.Digest{RunID: "r1", Status: domain.DigestPending, CreatedAt: t0}))
	require.NoError(t, store.CreateDigest(ctx, domain.Digest{RunID: "r2", Status: domain.DigestPending, CreatedAt: t0.Add(time.Hour)}))
	require.NoError(t, store.CreateDigest(ctx, domain.Digest{RunID: "r3", Status: domain.DigestSkipped, CreatedAt: t0.Add(2 * time.Hour)}))

	latest, err := store.LatestDigest(ctx, domain.DigestPending)
	require.NoError(t, err)
	require.Equal(t, "r2", latest.RunID)

	anyLatest, err := store.LatestDigest(ctx)
	require.NoError(t, err)
	require.Equal(t, "r3", anyLatest.RunID)

	changed, err := store.TransitionDigest(ctx, "r2", domain.DigestPending, domain.DigestSent, t0.Add(3*time.Hour))
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = store.TransitionDigest(ctx, "r2", domain.DigestPending, domain.DigestRejected, t0.Add(4*time.Hour))
	require.NoError(t, err)
	require.False(t, changed)

	sent, err := store.LatestDigest(ctx, domain.DigestSent)
	require.NoError(t, err)
	require.NotNil(t, sent.SentAt)

	n, err := store.RejectPending(ctx, t0.Add(5*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = store.LatestDigest(ctx, domain.DigestPending)
	require.ErrorIs(t, err, ports.ErrNotFound)

	list, err := store.ListDigests(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "r3", list[0].RunID)
	require.Equal(t, "r2", list[1].RunID)
}

func TestMemoryStoreRuns(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	t0 := time.Now()

	_, err := store.LatestRun(ctx)
	require.ErrorIs(t, err, ports.ErrNotFound)

	require.NoError(t, store.StartRun(ctx, domain.RunRecord{RunID: "a", Status: domain.RunRunning, StartedAt: t0}))
	require.NoError(t, store.StartRun(ctx, domain.RunRecord{RunID: "b", Status: domain.RunRunning, StartedAt: t0.Add(time.Minute)}))
	require.NoError(t, store.FinishRun(ctx, domain.RunRecord{RunID: "a", Status: domain.RunCompleted, StartedAt: t0, Errors: []string{"feed down"}}))

	run, err := store.GetRun(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, domain.RunCompleted, run.Status)
	require.Equal(t, []string{"feed down"}, run.Errors)

	latest, err := store.LatestRun(ctx)
	require.NoError(t, err)
	require.Equal(t, "b", latest.RunID)

	count, err := store.CountRuns(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	_, err = store.GetRun(ctx, "missing")
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestSeenCacheCapacityEvictsOldest(t *testing.T) {
	cache := newSeenCache(1, time.Hour)
	now := time.Now()

	cache.markSeen("first", now)
	cache.markSeen("second", now.Add(time.Second))

	require.False(t, cache.seenSince("first", now.Add(-time.Minute)))
	require.True(t, cache.seenSince("second", now.Add(-time.Minute)))
}

func TestSeenCacheTTLExpiry(t *testing.T) {
	cache := newSeenCache(10, time.Minute)
	now := time.Now()

	cache.markSeen("old", now)
	cache.markSeen("fresh", now.Add(2*time.Minute))

	require.False(t, cache.seenSince("old", time.Time{}))
	require.True(t, cache.seenSince("fresh", time.Time{}))
}
