package ports

import (
	"context"
	"errors"
	"time"

	"NewsDigest/internal/domain"
)

var (
	// ErrNotFound is returned by repositories when no record matches.
	ErrNotFound = errors.New("not found")
	// ErrRunInProgress is returned when a pipeline run is already executing.
	ErrRunInProgress = errors.New("run already in progress")
)

// ItemSource pulls fresh items from upstream feeds. Individual source
// failures are reported as strings and never abort the fetch.
type ItemSource interface {
	Fetch(ctx context.Context) ([]domain.Item, []string)
}

// LookbackStore answers which identifiers were already seen recently.
type LookbackStore interface {
	SeenSince(ctx context.Context, urls []string, since time.Time) (map[string]bool, error)
}

// ItemRepository persists validated items and user feedback.
type ItemRepository interface {
	SaveValidated(ctx context.Context, items []domain.ValidatedItem, fetchedAt time.Time) error
	SetFeedback(ctx context.Context, url, feedback string) error
	RecentItems(ctx context.Context, limit int, category domain.Category) ([]domain.ValidatedItem, error)
	CountItems(ctx context.Context) (int, error)
}

// DigestRepository persists digests and their approval status.
type DigestRepository interface {
	CreateDigest(ctx context.Context, digest domain.Digest) error
	// LatestDigest returns the newest digest in one of the given statuses.
	LatestDigest(ctx context.Context, statuses ...domain.DigestStatus) (domain.Digest, error)
	// TransitionDigest moves one digest from -> to and reports whether it changed.
	TransitionDigest(ctx context.Context, runID string, from, to domain.DigestStatus, at time.Time) (bool, error)
	// RejectPending marks every pending digest rejected and returns how many changed.
	RejectPending(ctx context.Context, at time.Time) (int, error)
	ListDigests(ctx context.Context, limit int) ([]domain.Digest, error)
}

// RunRepository persists run records.
type RunRepository interface {
	StartRun(ctx context.Context, run domain.RunRecord) error
	FinishRun(ctx context.Context, run domain.RunRecord) error
	GetRun(ctx context.Context, runID string) (domain.RunRecord, error)
	LatestRun(ctx context.Context) (domain.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
	CountRuns(ctx context.Context) (int, error)
}

// Store bundles every persistence concern the pipeline needs.
type Store interface {
	LookbackStore
	ItemRepository
	DigestRepository
	RunRepository
}

// Classifier sends a prompt to a remote text-classification model and returns its raw reply.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

// SearchResult is one hit from the corroboration search surface.
type SearchResult struct {
	Title string
	Link  string
}

// NewsSearcher queries an independent news-search surface.
type NewsSearcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Notifier sends a bounded-length message to a chat destination.
type Notifier interface {
	PublishMessage(ctx context.Context, chatID, text string) error
}

// RunGuard prevents two pipeline runs from executing at once.
type RunGuard interface {
	TryAcquire(ctx context.Context, runID string) (bool, error)
	Release(ctx context.Context, runID string) error
}

// RunTrigger starts a pipeline run in the background and returns its id.
type RunTrigger interface {
	Trigger(ctx context.Context, origin string) (string, error)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
