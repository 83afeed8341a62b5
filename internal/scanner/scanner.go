package scanner

import (
	"context"
	"fmt"
	"sort"

	"NewsDigest/internal/domain"
)

// Feed describes one concrete endpoint provided by config.
type Feed struct {
	Name string
	URL  string
}

// Request carries all parameters required to scan one site.
type Request struct {
	SiteName string
	Domain   string
	Category domain.Category
	Kind     domain.SourceKind
	Limit    int
	Feeds    []Feed
	Options  map[string]string
}

// Scanner captures a single fetch strategy (RSS, HackerNews, etc.). A scanner
// may return the items it did collect together with an error describing the
// feeds that failed.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.Item, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds a registry holding the given scanners.
func NewRegistry(scanners ...Scanner) *Registry {
	r := &Registry{scanners: map[string]Scanner{}}
	for _, s := range scanners {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

// Names lists registered scanners in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
