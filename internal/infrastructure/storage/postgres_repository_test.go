package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NewsDigest/internal/domain"
)

func TestSeenSinceQuery(t *testing.T) {
	since := time.Date(2026, 10, 9, 0, 0, 0, 0, time.UTC)

	query, args, err := seenSinceQuery([]string{"https://a", "https://b"}, since).ToSql()

	require.NoError(t, err)
	require.Equal(t, "SELECT url FROM items WHERE url = ANY($1) AND fetched_at >= $2", query)
	require.Len(t, args, 2)
	require.Equal(t, since, args[1])
}

func TestUpsertItemsQuerySkipsDuplicatesAndEmptyURLs(t *testing.T) {
	items := []domain.ValidatedItem{
		{Item: domain.Item{URL: "https://a", Title: "A"}},
		{Item: domain.Item{URL: "https://a", Title: "A again"}},
		{Item: domain.Item{Title: "no url"}},
		{Item: domain.Item{URL: "https://b", Title: "B"}},
	}

	builder, rows, err := upsertItemsQuery(items, time.Now())
	require.NoError(t, err)
	require.Equal(t, 2, rows)

	query, args, err := builder.ToSql()
	require.NoError(t, err)
	require.Contains(t, query, "INSERT INTO items")
	require.Contains(t, query, "ON CONFLICT (url) DO UPDATE")
	require.NotContains(t, query, "user_feedback")
	require.Len(t, args, 16)
}

func TestDigestsQueryFiltersStatuses(t *testing.T) {
	query, args, err := digestsQuery(1, []domain.DigestStatus{domain.DigestSent, domain.DigestPending}).ToSql()

	require.NoError(t, err)
	require.Contains(t, query, "FROM digests WHERE status IN ($1,$2) ORDER BY created_at DESC LIMIT 1")
	require.Equal(t, []any{"sent", "pending"}, args)

	query, args, err = digestsQuery(7, nil).ToSql()
	require.NoError(t, err)
	require.NotContains(t, query, "WHERE")
	require.Empty(t, args)
}

func TestTransitionQueryIsConditional(t *testing.T) {
	at := time.Now()

	query, args, err := transitionQuery("run-1", domain.DigestPending, domain.DigestSent, at).ToSql()

	require.NoError(t, err)
	require.Equal(t, "UPDATE digests SET status = $1, updated_at = $2, sent_at = $3 WHERE run_id = $4 AND status = $5", query)
	require.Equal(t, []any{"sent", at, at, "run-1", "pending"}, args)
}

func TestRecentItemsQueryCategory(t *testing.T) {
	query, args, err := recentItemsQuery(50, domain.CategoryFinance).ToSql()

	require.NoError(t, err)
	require.Equal(t, "SELECT payload, user_feedback FROM items WHERE category = $1 ORDER BY fetched_at DESC, url LIMIT 50", query)
	require.Equal(t, []any{"finance"}, args)
}

func TestUpsertRunQueryEncodesErrors(t *testing.T) {
	run := domain.RunRecord{RunID: "r", Status: domain.RunFailed, StartedAt: time.Now(), UpdatedAt: time.Now()}

	builder, err := upsertRunQuery(run)
	require.NoError(t, err)

	query, args, err := builder.ToSql()
	require.NoError(t, err)
	require.Contains(t, query, "INSERT INTO agent_runs")
	require.Contains(t, query, "ON CONFLICT (run_id) DO UPDATE")
	require.Len(t, args, 7)
	require.Equal(t, "failed", args[1])
}
