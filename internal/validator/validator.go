// Package validator assigns a credibility verdict to every fetched item,
// preferring the remote classifier and falling back to domain-tier rules.
package validator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/logging"
	"NewsDigest/internal/metrics"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/textutil"
)

const (
	defaultConcurrency = 5
	defaultTimeout     = 40 * time.Second
)

// Options tunes the validator.
type Options struct {
	Profile     string
	Concurrency int
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Validator runs the primary classifier path with a rule-based fallback.
type Validator struct {
	classifier  ports.Classifier
	profile     string
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
}

// New builds a Validator. A nil classifier selects the fallback rules for every item.
func New(classifier ports.Classifier, opts Options) *Validator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Validator{
		classifier:  classifier,
		profile:     opts.Profile,
		concurrency: opts.Concurrency,
		timeout:     opts.Timeout,
		logger:      logging.OrDiscard(opts.Logger),
	}
}

// ValidateAll returns exactly one validated item per input, in input order.
// No more than the configured number of classifier calls run at once.
func (v *Validator) ValidateAll(ctx context.Context, items []domain.Item) []domain.ValidatedItem {
	out := make([]domain.ValidatedItem, len(items))

	var g errgroup.Group
	g.SetLimit(v.concurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			out[i] = v.Validate(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// Validate classifies one item. It never fails: any classifier problem
// yields the fallback result.
func (v *Validator) Validate(ctx context.Context, item domain.Item) domain.ValidatedItem {
	if v.classifier == nil {
		metrics.RecordValidation(string(domain.PathRules))
		return Fallback(item)
	}

	result, err := v.classify(ctx, item)
	if err != nil {
		v.logger.Warn("classifier validation failed, using rules",
			"title", shortTitle(item.Title), "error", err)
		metrics.RecordValidation(string(domain.PathRules))
		return Fallback(item)
	}

	metrics.RecordValidation(string(domain.PathClassifier))
	return result
}

func (v *Validator) classify(ctx context.Context, item domain.Item) (domain.ValidatedItem, error) {
	callCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	reply, err := v.classifier.Classify(callCtx, BuildPrompt(item, v.profile))
	if err != nil {
		return domain.ValidatedItem{}, fmt.Errorf("classify: %w", err)
	}

	parsed, err := parseReply(reply)
	if err != nil {
		return domain.ValidatedItem{}, fmt.Errorf("parse reply: %w", err)
	}
	return overlay(item, parsed), nil
}

func shortTitle(title string) string {
	return textutil.Truncate(title, 60)
}
