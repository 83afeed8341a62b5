package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsDigest/internal/approval"
	"NewsDigest/internal/corroborator"
	"NewsDigest/internal/dedup"
	"NewsDigest/internal/digest"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/logging"
	"NewsDigest/internal/metrics"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/validator"
)

// RunState is the value threaded through the pipeline stages. Each stage
// receives the previous state and returns a new one.
type RunState struct {
	RunID     string
	StartedAt time.Time
	Fetched   []domain.Item
	Fresh     []domain.Item
	Validated []domain.ValidatedItem
	Checked   []domain.ValidatedItem
	Digest    domain.Digest
	Stats     domain.Stats
	Errors    []string
}

func (s RunState) withError(msg string) RunState {
	errs := make([]string, len(s.Errors), len(s.Errors)+1)
	copy(errs, s.Errors)
	s.Errors = append(errs, msg)
	return s
}

type stage struct {
	name string
	run  func(context.Context, RunState) RunState
}

// PipelineDeps wires all collaborators into the orchestration pipeline.
type PipelineDeps struct {
	Source       ports.ItemSource
	Dedup        *dedup.Deduplicator
	Validator    *validator.Validator
	Corroborator *corroborator.Corroborator
	Store        ports.Store
	Workflow     *approval.Workflow
	Digest       digest.Options
	Logger       *slog.Logger
}

// Pipeline implements fetch → dedup → validate → corroborate → build, then
// persists the outcome and opens the approval workflow.
type Pipeline struct {
	source       ports.ItemSource
	dedup        *dedup.Deduplicator
	validator    *validator.Validator
	corroborator *corroborator.Corroborator
	store        ports.Store
	workflow     *approval.Workflow
	digestOpts   digest.Options
	logger       *slog.Logger
	now          func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		source:       deps.Source,
		dedup:        deps.Dedup,
		validator:    deps.Validator,
		corroborator: deps.Corroborator,
		store:        deps.Store,
		workflow:     deps.Workflow,
		digestOpts:   deps.Digest,
		logger:       logging.OrDiscard(deps.Logger),
		now:          time.Now,
	}
}

// Run executes one pipeline pass. Stage-local failures are recorded in the
// returned state and never abort the run. The error is non-nil only when the
// outcome could not be persisted, in which case no preview was sent.
func (p *Pipeline) Run(ctx context.Context, runID string) (RunState, error) {
	state := RunState{RunID: runID, StartedAt: p.now()}
	logger := p.logger.With("run_id", runID)

	for _, st := range p.stages() {
		started := time.Now()
		state = st.run(ctx, state)
		metrics.RecordStage(st.name, time.Since(started).Seconds())
		logger.Debug("stage done", "stage", st.name, "elapsed", time.Since(started))
	}

	started := time.Now()
	state, err := p.persist(ctx, state)
	metrics.RecordStage("persist", time.Since(started).Seconds())
	if err != nil {
		logger.Error("persist run outcome", "error", err)
		return state, err
	}

	logger.Info("run finished",
		"fetched", state.Stats.TotalFetched,
		"after_dedup", state.Stats.AfterDedup,
		"verified", state.Stats.VerifiedAfterXref,
		"actionable", state.Stats.Actionable,
		"digest", state.Digest.Status,
		"errors", len(state.Errors),
	)
	return state, nil
}

func (p *Pipeline) stages() []stage {
	return []stage{
		{name: "fetch", run: p.fetch},
		{name: "dedup", run: p.deduplicate},
		{name: "validate", run: p.validate},
		{name: "corroborate", run: p.corroborate},
		{name: "build", run: p.build},
	}
}

func (p *Pipeline) fetch(ctx context.Context, s RunState) RunState {
	if p.source == nil {
		return s
	}
	items, errs := p.source.Fetch(ctx)
	s.Fetched = items
	s.Stats.TotalFetched = len(items)
	for _, e := range errs {
		s = s.withError(e)
	}
	return s
}

func (p *Pipeline) deduplicate(ctx context.Context, s RunState) RunState {
	if p.dedup == nil {
		s.Fresh = s.Fetched
		s.Stats.AfterDedup = len(s.Fresh)
		return s
	}
	fresh, err := p.dedup.Filter(ctx, s.Fetched)
	if err != nil {
		p.logger.Warn("dedup failed open", "run_id", s.RunID, "error", err)
		s = s.withError(fmt.Sprintf("dedup: %v", err))
	}
	s.Fresh = fresh
	s.Stats.AfterDedup = len(fresh)
	return s
}

func (p *Pipeline) validate(ctx context.Context, s RunState) RunState {
	if p.validator == nil {
		return s
	}
	s.Validated = p.validator.ValidateAll(ctx, s.Fresh)
	counts := digest.CountStatuses(s.Validated)
	s.Stats.Verified = counts[domain.StatusVerified]
	s.Stats.Unverified = counts[domain.StatusUnverified]
	s.Stats.Conflicting = counts[domain.StatusConflicting]
	return s
}

func (p *Pipeline) corroborate(ctx context.Context, s RunState) RunState {
	s.Checked = s.Validated
	if p.corroborator != nil {
		s.Checked = p.corroborator.Corroborate(ctx, s.Validated)
	}
	s.Stats.VerifiedAfterXref = digest.CountStatuses(s.Checked)[domain.StatusVerified]

	byCategory := make(map[domain.Category]int, 3)
	for _, item := range s.Checked {
		byCategory[domain.ParseCategory(string(item.Category))]++
	}
	s.Stats.ByCategory = byCategory
	return s
}

func (p *Pipeline) build(_ context.Context, s RunState) RunState {
	opts := p.digestOpts
	opts.Now = p.now()
	s.Digest = digest.Build(s.RunID, s.Checked, s.Stats, opts)
	s.Stats = s.Digest.Stats
	return s
}

func (p *Pipeline) persist(ctx context.Context, s RunState) (RunState, error) {
	if p.store != nil && len(s.Checked) > 0 {
		if err := p.store.SaveValidated(ctx, s.Checked, s.StartedAt); err != nil {
			return s, fmt.Errorf("save validated items: %w", err)
		}
	}
	if p.workflow == nil {
		return s, nil
	}
	opened, err := p.workflow.Open(ctx, s.Digest)
	if err != nil {
		return s, err
	}
	s.Digest = opened
	return s, nil
}
