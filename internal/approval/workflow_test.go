package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/infrastructure/storage"
	"NewsDigest/internal/ports"
)

const chat = "42"

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *recordingNotifier) PublishMessage(_ context.Context, chatID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.messages = append(n.messages, text)
	return nil
}

func (n *recordingNotifier) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.messages) == 0 {
		return ""
	}
	return n.messages[len(n.messages)-1]
}

type stubTrigger struct {
	err     error
	origins []string
}

func (s *stubTrigger) Trigger(_ context.Context, origin string) (string, error) {
	s.origins = append(s.origins, origin)
	return "run-x", s.err
}

func digestWith(runID string, created time.Time, titles ...string) domain.Digest {
	items := make([]domain.ValidatedItem, len(titles))
	for i, title := range titles {
		items[i] = domain.ValidatedItem{
			Item: domain.Item{URL: "https://example.com/" + title, Title: title, Category: domain.CategoryTech},
			Validation: domain.Validation{
				Status:           domain.StatusVerified,
				CredibilityScore: 90 - i,
				IsActionable:     true,
			},
		}
	}
	return domain.Digest{RunID: runID, Items: items, Body: "body of " + runID, CreatedAt: created}
}

func newWorkflow(t *testing.T) (*Workflow, *storage.MemoryStore, *recordingNotifier) {
	t.Helper()
	store := storage.NewMemoryStore()
	notifier := &recordingNotifier{}
	return New(store, notifier, nil, Options{ChatID: chat}), store, notifier
}

func TestOpenPendingSendsPreview(t *testing.T) {
	w, store, notifier := newWorkflow(t)

	d, err := w.Open(context.Background(), digestWith("r1", time.Now(), "a", "b"))

	require.NoError(t, err)
	require.Equal(t, domain.DigestPending, d.Status)
	require.Contains(t, notifier.last(), "Reply YES")

	stored, err := store.LatestDigest(context.Background(), domain.DigestPending)
	require.NoError(t, err)
	require.Equal(t, "r1", stored.RunID)
}

func TestOpenSkipsEmptyDigest(t *testing.T) {
	w, store, notifier := newWorkflow(t)

	d, err := w.Open(context.Background(), domain.Digest{RunID: "r1", CreatedAt: time.Now()})

	require.NoError(t, err)
	require.Equal(t, domain.DigestSkipped, d.Status)
	require.Contains(t, notifier.last(), "No new actionable updates")

	_, err = store.LatestDigest(context.Background(), domain.DigestPending)
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestOpenSkipsWhenChannelUnconfigured(t *testing.T) {
	store := storage.NewMemoryStore()
	w := New(store, nil, nil, Options{})

	d, err := w.Open(context.Background(), digestWith("r1", time.Now(), "a"))

	require.NoError(t, err)
	require.Equal(t, domain.DigestSkipped, d.Status)
}

type failingDigestStore struct {
	*storage.MemoryStore
}

func (failingDigestStore) CreateDigest(context.Context, domain.Digest) error {
	return errors.New("db down")
}

func TestOpenPersistFailureSendsNothing(t *testing.T) {
	notifier := &recordingNotifier{}
	w := New(failingDigestStore{storage.NewMemoryStore()}, notifier, nil, Options{ChatID: chat})

	_, err := w.Open(context.Background(), digestWith("r1", time.Now(), "a"))

	require.Error(t, err)
	require.Empty(t, notifier.messages)
}

func TestApproveFlushesLatestPendingOnly(t *testing.T) {
	w, store, notifier := newWorkflow(t)
	ctx := context.Background()
	t0 := time.Now()
	_, err := w.Open(ctx, digestWith("old", t0, "a"))
	require.NoError(t, err)
	_, err = w.Open(ctx, digestWith("new", t0.Add(time.Hour), "b"))
	require.NoError(t, err)

	require.NoError(t, w.Handle(ctx, chat, "YES", nil))

	require.Equal(t, "body of new", notifier.last())
	sent, err := store.LatestDigest(ctx, domain.DigestSent)
	require.NoError(t, err)
	require.Equal(t, "new", sent.RunID)

	// the superseded digest stays pending and untouched
	pending, err := store.LatestDigest(ctx, domain.DigestPending)
	require.NoError(t, err)
	require.Equal(t, "old", pending.RunID)
}

func TestApproveChunksLongBody(t *testing.T) {
	store := storage.NewMemoryStore()
	notifier := &recordingNotifier{}
	w := New(store, notifier, nil, Options{ChatID: chat, MessageLimit: 20})
	d := digestWith("r1", time.Now(), "a")
	d.Body = strings.Repeat("p", 15) + "\n\n" + strings.Repeat("q", 15) + "\n\n" + strings.Repeat("r", 15)
	d.Status = domain.DigestPending
	require.NoError(t, store.CreateDigest(context.Background(), d))

	require.NoError(t, w.Approve(context.Background()))

	require.Equal(t, []string{strings.Repeat("p", 15), strings.Repeat("q", 15), strings.Repeat("r", 15)}, notifier.messages)
}

type flakyNotifier struct {
	calls    int
	failOn   int
	messages []string
}

func (n *flakyNotifier) PublishMessage(_ context.Context, _, text string) error {
	n.calls++
	if n.calls == n.failOn {
		return errors.New("telegram: 502 bad gateway")
	}
	n.messages = append(n.messages, text)
	return nil
}

func TestApproveReportsPartialDelivery(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	notifier := &flakyNotifier{failOn: 2}
	w := New(store, notifier, nil, Options{ChatID: chat, MessageLimit: 20})
	d := digestWith("r1", time.Now(), "a")
	d.Body = strings.Repeat("p", 15) + "\n\n" + strings.Repeat("q", 15) + "\n\n" + strings.Repeat("r", 15)
	d.Status = domain.DigestPending
	require.NoError(t, store.CreateDigest(ctx, d))

	err := w.Approve(ctx)

	require.ErrorContains(t, err, "502 bad gateway")
	require.Equal(t, []string{strings.Repeat("p", 15), deliveryFailedText}, notifier.messages)
	sent, err := store.LatestDigest(ctx, domain.DigestSent)
	require.NoError(t, err)
	require.Equal(t, "r1", sent.RunID)
}

func TestApproveWithoutPending(t *testing.T) {
	w, _, notifier := newWorkflow(t)

	require.NoError(t, w.Approve(context.Background()))

	require.Contains(t, notifier.last(), "No pending digest")
}

func TestDecisionsAreTerminal(t *testing.T) {
	w, store, _ := newWorkflow(t)
	ctx := context.Background()
	_, err := w.Open(ctx, digestWith("r1", time.Now(), "a"))
	require.NoError(t, err)

	require.NoError(t, w.Handle(ctx, chat, "YES", nil))
	require.NoError(t, w.Handle(ctx, chat, "NO", nil))
	require.NoError(t, w.Handle(ctx, chat, "YES", nil))

	latest, err := store.LatestDigest(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.DigestSent, latest.Status)

	_, err = w.Open(ctx, digestWith("r2", time.Now().Add(time.Minute), "b"))
	require.NoError(t, err)
	require.NoError(t, w.Handle(ctx, chat, "skip", nil))
	require.NoError(t, w.Handle(ctx, chat, "YES", nil))

	latest, err = store.LatestDigest(ctx)
	require.NoError(t, err)
	require.Equal(t, "r2", latest.RunID)
	require.Equal(t, domain.DigestRejected, latest.Status)
}

func TestRejectAppliesToAllPending(t *testing.T) {
	w, store, notifier := newWorkflow(t)
	ctx := context.Background()
	t0 := time.Now()
	for i := 0; i < 3; i++ {
		_, err := w.Open(ctx, digestWith(fmt.Sprintf("r%d", i), t0.Add(time.Duration(i)*time.Minute), "a"))
		require.NoError(t, err)
	}

	require.NoError(t, w.Reject(ctx))

	_, err := store.LatestDigest(ctx, domain.DigestPending)
	require.ErrorIs(t, err, ports.ErrNotFound)
	require.Contains(t, notifier.last(), "Digest skipped")
}

func TestRejectWithoutPending(t *testing.T) {
	w, _, notifier := newWorkflow(t)
	ctx := context.Background()

	require.NoError(t, w.Handle(ctx, chat, "NO", nil))

	require.Equal(t, "No pending digest found.", notifier.last())
}

func TestDetailsAndFeedback(t *testing.T) {
	w, store, notifier := newWorkflow(t)
	ctx := context.Background()
	d := digestWith("r1", time.Now(), "first", "second")
	require.NoError(t, store.SaveValidated(ctx, d.Items, time.Now()))
	_, err := w.Open(ctx, d)
	require.NoError(t, err)

	require.NoError(t, w.Handle(ctx, chat, "details 2", nil))
	require.Contains(t, notifier.last(), "2. second")

	require.NoError(t, w.Handle(ctx, chat, "details 9", nil))
	require.Equal(t, "Item 9 not found. Digest has 2 items.", notifier.last())

	require.NoError(t, w.Handle(ctx, chat, "details", nil))
	require.NoError(t, w.Handle(ctx, chat, "details zero", nil))
	require.Contains(t, notifier.last(), "Usage")

	require.NoError(t, w.Handle(ctx, chat, "feedback 1 too generic", nil))
	require.Contains(t, notifier.last(), "Feedback noted for item 1")
	items, err := store.RecentItems(ctx, 10, "")
	require.NoError(t, err)
	feedback := map[string]string{}
	for _, item := range items {
		feedback[item.Title] = item.UserFeedback
	}
	require.Equal(t, "too generic", feedback["first"])

	require.NoError(t, w.Handle(ctx, chat, "feedback 5 nope", nil))
	require.Equal(t, "Item 5 not found. Digest has 2 items.", notifier.last())
}

func TestDetailsWithoutDigest(t *testing.T) {
	w, _, notifier := newWorkflow(t)

	require.NoError(t, w.Details(context.Background(), 1))

	require.Equal(t, "No recent digest found.", notifier.last())
}

func TestHandleIgnoresForeignChatAndUnknownText(t *testing.T) {
	w, _, notifier := newWorkflow(t)
	ctx := context.Background()

	require.NoError(t, w.Handle(ctx, "999", "/help", nil))
	require.NoError(t, w.Handle(ctx, chat, "hello there", nil))

	require.Empty(t, notifier.messages)
}

func TestHandleAppliesCooldownToNonDecisions(t *testing.T) {
	w, _, notifier := newWorkflow(t)
	ctx := context.Background()
	cooldown := NewCooldown(time.Hour)

	require.NoError(t, w.Handle(ctx, chat, "/help", cooldown))
	require.NoError(t, w.Handle(ctx, chat, "/help", cooldown))
	require.Len(t, notifier.messages, 1)

	require.NoError(t, w.Handle(ctx, chat, "NO", cooldown))
	require.NoError(t, w.Handle(ctx, chat, "NO", cooldown))
	require.Len(t, notifier.messages, 3)
}

func TestRefresh(t *testing.T) {
	w, store, notifier := newWorkflow(t)
	ctx := context.Background()
	trigger := &stubTrigger{}
	w.SetTrigger(trigger)

	require.NoError(t, w.Handle(ctx, chat, "/refresh", nil))
	require.Equal(t, []string{domain.OriginTelegramRefresh}, trigger.origins)
	require.Contains(t, notifier.last(), "Refreshing now")

	started := time.Now().Add(-30 * time.Second)
	require.NoError(t, store.StartRun(ctx, domain.RunRecord{RunID: "busy", Status: domain.RunRunning, StartedAt: started}))
	trigger.err = ports.ErrRunInProgress
	w.now = func() time.Time { return started.Add(30 * time.Second) }

	require.NoError(t, w.Refresh(ctx))
	require.Contains(t, notifier.last(), "already in progress (started 30s ago)")
}

func TestStatusHistoryTop(t *testing.T) {
	w, store, notifier := newWorkflow(t)
	ctx := context.Background()

	require.NoError(t, w.History(ctx))
	require.Contains(t, notifier.last(), "No digest history yet")
	require.NoError(t, w.Top(ctx))
	require.Contains(t, notifier.last(), "No digest available yet")

	require.NoError(t, store.StartRun(ctx, domain.RunRecord{
		RunID: "r1", Status: domain.RunCompleted, StartedAt: time.Now(),
		Stats: domain.Stats{TotalFetched: 40, AfterDedup: 12, VerifiedAfterXref: 5, Actionable: 7},
	}))
	names := []string{"a", "b", "c", "d", "e", "f", "g"}
	_, err := w.Open(ctx, digestWith("r1", time.Now(), names...))
	require.NoError(t, err)

	require.NoError(t, w.Status(ctx))
	status := notifier.last()
	require.Contains(t, status, "Last run:</b> completed")
	require.Contains(t, status, "Fetched: 40 articles")
	require.Contains(t, status, "Verified: 5")
	require.Contains(t, status, "Yes, reply YES")

	require.NoError(t, w.History(ctx))
	require.Contains(t, notifier.last(), "1. <b>")
	require.Contains(t, notifier.last(), "7 items")

	require.NoError(t, w.Top(ctx))
	top := notifier.last()
	require.Contains(t, top, "Top 5 Articles")
	require.Contains(t, top, "1. <b>a</b>")
	require.NotContains(t, top, "<b>f</b>")
}
