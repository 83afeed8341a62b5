// Package corroborator upgrades unverified items that independent outlets also report.
package corroborator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/errgroup"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/logging"
	"NewsDigest/internal/metrics"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/textutil"
)

const (
	defaultConcurrency = 5
	defaultMaxResults  = 15
	defaultThreshold   = 2
	defaultBonus       = 15
	maxQueryChars      = 100
)

// Options tunes corroboration.
type Options struct {
	Concurrency int
	MaxResults  int
	Threshold   int
	Bonus       int
	Logger      *slog.Logger
}

// Corroborator counts independent outlets reporting the same story.
type Corroborator struct {
	searcher    ports.NewsSearcher
	concurrency int
	maxResults  int
	threshold   int
	bonus       int
	logger      *slog.Logger
}

// New builds a Corroborator; zero options use the defaults.
func New(searcher ports.NewsSearcher, opts Options) *Corroborator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaultMaxResults
	}
	if opts.Threshold <= 0 {
		opts.Threshold = defaultThreshold
	}
	if opts.Bonus <= 0 {
		opts.Bonus = defaultBonus
	}
	return &Corroborator{
		searcher:    searcher,
		concurrency: opts.Concurrency,
		maxResults:  opts.MaxResults,
		threshold:   opts.Threshold,
		bonus:       opts.Bonus,
		logger:      logging.OrDiscard(opts.Logger),
	}
}

// Eligible reports whether an item takes part in corroboration.
func Eligible(item domain.ValidatedItem) bool {
	return item.NeedsCrossReference && item.Status == domain.StatusUnverified
}

// Corroborate returns a new slice in input order. Only eligible items are
// looked up; every other item is returned unchanged.
func (c *Corroborator) Corroborate(ctx context.Context, items []domain.ValidatedItem) []domain.ValidatedItem {
	out := make([]domain.ValidatedItem, len(items))
	copy(out, items)
	if c.searcher == nil {
		return out
	}

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i := range out {
		if !Eligible(out[i]) {
			continue
		}
		i := i
		g.Go(func() error {
			count := c.countSources(ctx, out[i].Item)
			out[i] = c.apply(out[i], count)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (c *Corroborator) apply(item domain.ValidatedItem, count int) domain.ValidatedItem {
	item.CrossReferenceCount = count
	if count < c.threshold {
		return item
	}
	item.Status = domain.StatusVerified
	item.CredibilityScore = domain.ClampScore(item.CredibilityScore + c.bonus)
	item.Reasoning = strings.TrimSpace(fmt.Sprintf("%s [%d other sources confirm]", item.Reasoning, count))
	return item
}

// countSources returns the number of distinct registrable domains among the
// top search results, excluding the item's own. Lookup errors count as zero.
func (c *Corroborator) countSources(ctx context.Context, item domain.Item) int {
	query := textutil.Truncate(strings.TrimSpace(item.Title), maxQueryChars)
	if query == "" {
		metrics.RecordLookup("skipped")
		return 0
	}

	results, err := c.searcher.Search(ctx, query)
	if err != nil {
		c.logger.Debug("corroboration search failed", "query", textutil.Truncate(query, 60), "error", err)
		metrics.RecordLookup("error")
		return 0
	}
	if len(results) > c.maxResults {
		results = results[:c.maxResults]
	}

	own := RegistrableDomain(item.SourceDomain)
	if own == "" {
		own = RegistrableDomain(item.URL)
	}

	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		d := RegistrableDomain(r.Link)
		if d == "" || d == own {
			continue
		}
		seen[d] = struct{}{}
	}

	if len(seen) >= c.threshold {
		metrics.RecordLookup("confirmed")
	} else {
		metrics.RecordLookup("unconfirmed")
	}
	return len(seen)
}

// RegistrableDomain reduces a URL or bare host to its eTLD+1, e.g.
// "https://www.bbc.co.uk/news" becomes "bbc.co.uk".
func RegistrableDomain(raw string) string {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return ""
	}

	host := raw
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return ""
		}
		host = u.Hostname()
	} else if i := strings.IndexAny(host, "/:"); i >= 0 {
		host = host[:i]
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "www."), ".")
	if host == "" {
		return ""
	}

	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return etld1
}
