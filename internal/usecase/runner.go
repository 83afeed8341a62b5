package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/logging"
	"NewsDigest/internal/metrics"
	"NewsDigest/internal/ports"
)

const (
	defaultRunTimeout = 10 * time.Minute
	finishTimeout     = 10 * time.Second
	refreshFailedText = "❌ <b>Refresh failed.</b> Please try again or wait for the next scheduled run."
)

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	// BaseContext parents background runs; it outlives the triggering request.
	BaseContext context.Context
	RunTimeout  time.Duration
	Notifier    ports.Notifier
	ChatID      string
	Logger      *slog.Logger
}

// Runner starts pipeline runs behind a single-flight guard and keeps their
// run records.
type Runner struct {
	pipeline *Pipeline
	store    ports.RunRepository
	guard    ports.RunGuard
	notifier ports.Notifier
	chatID   string
	timeout  time.Duration
	base     context.Context
	logger   *slog.Logger
	newID    func() string
	now      func() time.Time
	wg       sync.WaitGroup
}

var _ ports.RunTrigger = (*Runner)(nil)

// NewRunner wires the pipeline with its run repository and guard.
func NewRunner(pipeline *Pipeline, store ports.RunRepository, guard ports.RunGuard, opts RunnerOptions) *Runner {
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = defaultRunTimeout
	}
	return &Runner{
		pipeline: pipeline,
		store:    store,
		guard:    guard,
		notifier: opts.Notifier,
		chatID:   opts.ChatID,
		timeout:  opts.RunTimeout,
		base:     opts.BaseContext,
		logger:   logging.OrDiscard(opts.Logger),
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Trigger starts a run in the background and returns its id. It returns
// ports.ErrRunInProgress when another run holds the guard.
func (r *Runner) Trigger(ctx context.Context, origin string) (string, error) {
	record, err := r.begin(ctx, origin)
	if err != nil {
		return "", err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(r.base, record)
	}()
	return record.RunID, nil
}

// RunNow executes a run synchronously and returns its final record.
func (r *Runner) RunNow(ctx context.Context, origin string) (domain.RunRecord, error) {
	record, err := r.begin(ctx, origin)
	if err != nil {
		return domain.RunRecord{}, err
	}
	return r.execute(ctx, record), nil
}

// Wait blocks until every background run has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) begin(ctx context.Context, origin string) (domain.RunRecord, error) {
	runID := r.newID()
	ok, err := r.guard.TryAcquire(ctx, runID)
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("acquire run guard: %w", err)
	}
	if !ok {
		return domain.RunRecord{}, ports.ErrRunInProgress
	}

	now := r.now()
	record := domain.RunRecord{
		RunID:     runID,
		Status:    domain.RunRunning,
		Origin:    origin,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.StartRun(ctx, record); err != nil {
		r.release(runID)
		return domain.RunRecord{}, fmt.Errorf("start run %s: %w", runID, err)
	}
	r.logger.Info("run started", "run_id", runID, "origin", origin)
	return record, nil
}

func (r *Runner) execute(ctx context.Context, record domain.RunRecord) domain.RunRecord {
	defer r.release(record.RunID)

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	state, err := r.pipeline.Run(runCtx, record.RunID)
	cancel()

	record.Stats = state.Stats
	record.Errors = state.Errors
	record.Status = domain.RunCompleted
	if err != nil {
		record.Status = domain.RunFailed
		record.Errors = append(record.Errors, err.Error())
	}
	record.UpdatedAt = r.now()

	finishCtx, cancelFinish := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancelFinish()
	if fErr := r.store.FinishRun(finishCtx, record); fErr != nil {
		r.logger.Error("record run outcome", "run_id", record.RunID, "error", fErr)
	}
	metrics.RecordRun(string(record.Status))

	if record.Status == domain.RunFailed {
		r.logger.Error("run failed", "run_id", record.RunID, "origin", record.Origin, "error", err)
		if record.Origin == domain.OriginTelegramRefresh && r.notifier != nil && r.chatID != "" {
			if nErr := r.notifier.PublishMessage(finishCtx, r.chatID, refreshFailedText); nErr != nil {
				r.logger.Error("notify refresh failure", "run_id", record.RunID, "error", nErr)
			}
		}
	}
	return record
}

func (r *Runner) release(runID string) {
	ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()
	if err := r.guard.Release(ctx, runID); err != nil {
		r.logger.Warn("release run guard", "run_id", runID, "error", err)
	}
}
