package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NewsDigest/internal/approval"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/infrastructure/storage"
	"NewsDigest/internal/ports"
)

type stubTrigger struct {
	err error
}

func (s stubTrigger) Trigger(context.Context, string) (string, error) {
	return "run-123", s.err
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) PublishMessage(_ context.Context, _, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return nil
}

func newTestServer(t *testing.T, trigger ports.RunTrigger, secret string) (*httptest.Server, *storage.MemoryStore, *recordingNotifier) {
	t.Helper()
	store := storage.NewMemoryStore()
	notifier := &recordingNotifier{}
	workflow := approval.New(store, notifier, trigger, approval.Options{ChatID: "42"})
	srv := New(Deps{
		Store:    store,
		Trigger:  trigger,
		Workflow: workflow,
		Cooldown: approval.NewCooldown(time.Hour),
		Secret:   secret,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store, notifier
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func post(t *testing.T, url, auth, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	ts, _, _ := newTestServer(t, stubTrigger{}, "")

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", decode(t, resp)["status"])
}

func TestTrigger(t *testing.T) {
	ts, _, _ := newTestServer(t, stubTrigger{}, "s3cret")

	resp := post(t, ts.URL+"/api/agent/trigger", "", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = post(t, ts.URL+"/api/agent/trigger", "Bearer wrong", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = post(t, ts.URL+"/api/agent/trigger", "Bearer s3cret", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	body := decode(t, resp)
	require.Equal(t, "triggered", body["status"])
	require.Equal(t, "run-123", body["run_id"])
}

func TestTriggerConflict(t *testing.T) {
	ts, _, _ := newTestServer(t, stubTrigger{err: ports.ErrRunInProgress}, "")

	resp := post(t, ts.URL+"/api/agent/trigger", "", "")

	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "run already in progress", decode(t, resp)["error"])
}

func TestStatusAndHistory(t *testing.T) {
	ts, store, _ := newTestServer(t, stubTrigger{}, "")
	ctx := context.Background()

	resp, err := http.Get(ts.URL + "/api/agent/status")
	require.NoError(t, err)
	body := decode(t, resp)
	require.Nil(t, body["last_run"])
	require.Nil(t, body["pending_digest"])

	now := time.Now()
	require.NoError(t, store.StartRun(ctx, domain.RunRecord{RunID: "r1", Status: domain.RunCompleted, StartedAt: now}))
	require.NoError(t, store.CreateDigest(ctx, domain.Digest{
		RunID: "r1", Status: domain.DigestPending, CreatedAt: now, Body: "secret body",
		Items: []domain.ValidatedItem{{Item: domain.Item{URL: "https://a"}}},
	}))

	resp, err = http.Get(ts.URL + "/api/agent/status")
	require.NoError(t, err)
	body = decode(t, resp)
	require.Equal(t, "r1", body["last_run"].(map[string]any)["run_id"])
	pending := body["pending_digest"].(map[string]any)
	require.Equal(t, "pending", pending["status"])
	require.EqualValues(t, 1, pending["items"])

	resp, err = http.Get(ts.URL + "/api/agent/history")
	require.NoError(t, err)
	raw := decode(t, resp)
	require.EqualValues(t, 1, raw["count"])
	require.NotContains(t, raw["digests"].([]any)[0], "body")

	resp, err = http.Get(ts.URL + "/api/agent/runs")
	require.NoError(t, err)
	require.EqualValues(t, 1, decode(t, resp)["count"])
}

func TestArticles(t *testing.T) {
	ts, store, _ := newTestServer(t, stubTrigger{}, "")
	items := []domain.ValidatedItem{
		{Item: domain.Item{URL: "https://f", Category: domain.CategoryFinance}},
		{Item: domain.Item{URL: "https://t", Category: domain.CategoryTech}},
	}
	require.NoError(t, store.SaveValidated(context.Background(), items, time.Now()))

	resp, err := http.Get(ts.URL + "/api/agent/articles?category=finance")
	require.NoError(t, err)
	body := decode(t, resp)
	require.EqualValues(t, 1, body["count"])

	resp, err = http.Get(ts.URL + "/api/agent/articles?limit=abc")
	require.NoError(t, err)
	require.EqualValues(t, 2, decode(t, resp)["count"])

	resp, err = http.Get(ts.URL + "/api/agent/articles?category=sports")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestWebhookAlwaysAcknowledges(t *testing.T) {
	ts, _, notifier := newTestServer(t, stubTrigger{}, "")

	for _, payload := range []string{
		`not json`,
		`{"message":{"chat":{"id":7},"text":"/help"}}`,
		`{"message":{"chat":{"id":42},"text":"/help"}}`,
		`{"message":{"chat":{"id":42},"text":"/help"}}`,
	} {
		resp := post(t, ts.URL+"/api/telegram/webhook", "", payload)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, true, decode(t, resp)["ok"])
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.messages, 1, "foreign chat ignored and repeat throttled")
	require.Contains(t, notifier.messages[0], "/refresh")
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t, stubTrigger{}, "")

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
