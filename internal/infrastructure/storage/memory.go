package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

const (
	memorySeenCapacity = 20000
	memorySeenTTL      = 30 * 24 * time.Hour
)

type storedItem struct {
	item      domain.ValidatedItem
	fetchedAt time.Time
}

// MemoryStore keeps every record in process memory. It backs runs without a
// database and the tests.
type MemoryStore struct {
	mu      sync.RWMutex
	seen    *seenCache
	items   map[string]storedItem
	digests []domain.Digest
	runs    []domain.RunRecord
}

var _ ports.Store = (*MemoryStore)(nil)

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seen:  newSeenCache(memorySeenCapacity, memorySeenTTL),
		items: make(map[string]storedItem),
	}
}

// SeenSince returns the urls stored at or after since.
func (m *MemoryStore) SeenSince(_ context.Context, urls []string, since time.Time) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, u := range urls {
		if m.seen.seenSince(u, since) {
			out[u] = true
		}
	}
	return out, nil
}

// SaveValidated upserts items by url, keeping feedback already recorded.
func (m *MemoryStore) SaveValidated(_ context.Context, items []domain.ValidatedItem, fetchedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, item := range items {
		if item.URL == "" {
			continue
		}
		if prev, ok := m.items[item.URL]; ok && item.UserFeedback == "" {
			item.UserFeedback = prev.item.UserFeedback
		}
		m.items[item.URL] = storedItem{item: item, fetchedAt: fetchedAt}
		m.seen.markSeen(item.URL, fetchedAt)
	}
	return nil
}

// SetFeedback attaches feedback to a stored item.
func (m *MemoryStore) SetFeedback(_ context.Context, url, feedback string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.items[url]
	if !ok {
		return ports.ErrNotFound
	}
	stored.item.UserFeedback = feedback
	m.items[url] = stored
	return nil
}

// RecentItems returns the newest items first, optionally restricted to one category.
func (m *MemoryStore) RecentItems(_ context.Context, limit int, category domain.Category) ([]domain.ValidatedItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := make([]storedItem, 0, len(m.items))
	for _, s := range m.items {
		if category != "" && s.item.Category != category {
			continue
		}
		stored = append(stored, s)
	}
	sort.Slice(stored, func(i, j int) bool {
		if stored[i].fetchedAt.Equal(stored[j].fetchedAt) {
			return stored[i].item.URL < stored[j].item.URL
		}
		return stored[i].fetchedAt.After(stored[j].fetchedAt)
	})
	if limit > 0 && len(stored) > limit {
		stored = stored[:limit]
	}

	out := make([]domain.ValidatedItem, len(stored))
	for i, s := range stored {
		out[i] = s.item
	}
	return out, nil
}

// CountItems returns how many items are stored.
func (m *MemoryStore) CountItems(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items), nil
}

// CreateDigest appends a digest.
func (m *MemoryStore) CreateDigest(_ context.Context, d domain.Digest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.digests = append(m.digests, cloneDigest(d))
	return nil
}

// LatestDigest returns the newest digest whose status is one of statuses.
// No statuses means any status.
func (m *MemoryStore) LatestDigest(_ context.Context, statuses ...domain.DigestStatus) (domain.Digest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	best := -1
	for i, d := range m.digests {
		if !statusIn(d.Status, statuses) {
			continue
		}
		if best < 0 || !d.CreatedAt.Before(m.digests[best].CreatedAt) {
			best = i
		}
	}
	if best < 0 {
		return domain.Digest{}, ports.ErrNotFound
	}
	return cloneDigest(m.digests[best]), nil
}

// TransitionDigest moves the digest from -> to. It reports false when the
// digest is missing or no longer in from.
func (m *MemoryStore) TransitionDigest(_ context.Context, runID string, from, to domain.DigestStatus, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.digests {
		d := &m.digests[i]
		if d.RunID != runID || d.Status != from {
			continue
		}
		d.Status = to
		d.UpdatedAt = at
		if to == domain.DigestSent {
			sentAt := at
			d.SentAt = &sentAt
		}
		return true, nil
	}
	return false, nil
}

// RejectPending marks every pending digest rejected.
func (m *MemoryStore) RejectPending(_ context.Context, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for i := range m.digests {
		if m.digests[i].Status == domain.DigestPending {
			m.digests[i].Status = domain.DigestRejected
			m.digests[i].UpdatedAt = at
			n++
		}
	}
	return n, nil
}

// ListDigests returns the newest digests first.
func (m *MemoryStore) ListDigests(_ context.Context, limit int) ([]domain.Digest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Digest, 0, len(m.digests))
	for i := len(m.digests) - 1; i >= 0; i-- {
		out = append(out, cloneDigest(m.digests[i]))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// StartRun records a new run.
func (m *MemoryStore) StartRun(_ context.Context, run domain.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertRun(run)
	return nil
}

// FinishRun overwrites the run with its final state.
func (m *MemoryStore) FinishRun(_ context.Context, run domain.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertRun(run)
	return nil
}

func (m *MemoryStore) upsertRun(run domain.RunRecord) {
	run.Errors = append([]string(nil), run.Errors...)
	for i := range m.runs {
		if m.runs[i].RunID == run.RunID {
			m.runs[i] = run
			return
		}
	}
	m.runs = append(m.runs, run)
}

// GetRun returns one run by id.
func (m *MemoryStore) GetRun(_ context.Context, runID string) (domain.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, run := range m.runs {
		if run.RunID == runID {
			return run, nil
		}
	}
	return domain.RunRecord{}, ports.ErrNotFound
}

// LatestRun returns the most recently started run.
func (m *MemoryStore) LatestRun(ctx context.Context) (domain.RunRecord, error) {
	runs, _ := m.ListRuns(ctx, 1)
	if len(runs) == 0 {
		return domain.RunRecord{}, ports.ErrNotFound
	}
	return runs[0], nil
}

// ListRuns returns runs newest first.
func (m *MemoryStore) ListRuns(_ context.Context, limit int) ([]domain.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.RunRecord, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0; i-- {
		out = append(out, m.runs[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountRuns returns the number of recorded runs.
func (m *MemoryStore) CountRuns(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs), nil
}

func statusIn(status domain.DigestStatus, statuses []domain.DigestStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func cloneDigest(d domain.Digest) domain.Digest {
	d.Items = append([]domain.ValidatedItem(nil), d.Items...)
	if d.SentAt != nil {
		sentAt := *d.SentAt
		d.SentAt = &sentAt
	}
	return d
}
