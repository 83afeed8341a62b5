package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/logging"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/scanner"
)

const siteConcurrency = 4

var financeKeywords = []string{
	"upi", "credit card", "debit card", "cashback", "reward points", "reward program",
	"contactless payment", "tap to pay", "nfc payment", "digital payment",
	"hdfc", "icici bank", "axis bank", "amex", "american express", "sbi card", "rupay",
	"kotak mahindra", "indusind bank", "yes bank", "idfc first",
	"paytm", "amazon pay", "gpay", "phonepe", "bhim", "google pay",
	"rbi", "repo rate", "neft", "imps", "rtgs", "bank offer", "banking scheme",
	"emi offer", "loan rate", "fd rate", "fixed deposit", "savings account",
	"fd interest", "savings rate", "rd rate", "recurring deposit",
	"card launch", "card benefit", "lounge access", "milestone benefit",
	"annual fee", "credit score", "credit limit", "card reward", "welcome bonus",
	"spend offer", "fuel surcharge", "forex markup",
	"tax slab", "income tax", "itr", "gst rate", "subsidy", "govt scheme",
	"insurance premium", "lic", "national pension", "epf", "ppf",
}

// StrategySource implements ports.ItemSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.SiteConfig
	logger   *slog.Logger
}

var _ ports.ItemSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sites:    sites,
		logger:   logging.OrDiscard(log),
	}
}

type siteResult struct {
	items []domain.Item
	err   error
}

// Fetch scans every configured site in parallel and concatenates the results
// in site order. A failing site contributes an error string and never aborts
// the fetch.
func (s *StrategySource) Fetch(ctx context.Context) ([]domain.Item, []string) {
	if s.registry == nil {
		return nil, []string{"scanner registry is not configured"}
	}

	s.logger.Debug("fetch sources", "sites", len(s.sites))

	results := make([]siteResult, len(s.sites))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(siteConcurrency)
	for i, site := range s.sites {
		i, site := i, site
		g.Go(func() error {
			items, err := s.scanSite(gctx, site)
			results[i] = siteResult{items: items, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var (
		aggregated []domain.Item
		errs       []string
		dropped    int
	)
	for i, res := range results {
		site := s.sites[i]
		if res.err != nil {
			s.logger.Warn("site fetch failed", "site", site.Name, "error", res.err)
			errs = append(errs, fmt.Sprintf("source %s: %v", site.Name, res.err))
		}
		for _, item := range res.items {
			if item.Category == domain.CategoryFinance && !FinanceRelevant(item.Title, item.Body) {
				dropped++
				continue
			}
			aggregated = append(aggregated, item)
		}
		s.logger.Debug("site produced items", "site", site.Name, "count", len(res.items))
	}

	s.logger.Info("fetch done", "items", len(aggregated), "finance_filtered", dropped, "errors", len(errs))
	return aggregated, errs
}

func (s *StrategySource) scanSite(ctx context.Context, site config.SiteConfig) ([]domain.Item, error) {
	strategy, err := s.registry.Resolve(site.Scanner)
	if err != nil {
		return nil, err
	}

	req := toRequest(site)
	items, err := strategy.Scan(ctx, req)

	out := items[:0]
	for _, item := range items {
		item.Title = strings.TrimSpace(item.Title)
		if item.URL == "" || item.Title == "" {
			continue
		}
		if item.SourceDomain == "" {
			item.SourceDomain = req.Domain
		}
		item.Category = req.Category
		item.SourceKind = req.Kind
		out = append(out, item)
	}
	return out, err
}

func toRequest(site config.SiteConfig) scanner.Request {
	kind, _ := domain.ParseSourceKind(site.SourceKind)
	feeds := make([]scanner.Feed, 0, len(site.Feeds))
	for _, f := range site.Feeds {
		feeds = append(feeds, scanner.Feed{Name: f.Name, URL: f.URL})
	}
	return scanner.Request{
		SiteName: site.Name,
		Domain:   site.Domain,
		Category: domain.ParseCategory(site.Category),
		Kind:     kind,
		Limit:    site.Limit,
		Feeds:    feeds,
		Options:  site.Options,
	}
}

// FinanceRelevant reports whether the text carries at least one payments,
// banking or tax keyword.
func FinanceRelevant(title, body string) bool {
	text := strings.ToLower(title + " " + body)
	for _, kw := range financeKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
