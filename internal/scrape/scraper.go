// Package scrape extracts structured event data from event platform pages
// using a headless browser.
package scrape

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/eventscope/internal/model"
)

// Scraper extracts a single event from a platform URL.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*model.Event, error)
	Platform() string
	CanHandle(url string) bool
}

// Registry selects the scraper for a URL. Scrapers are consulted in
// registration order and the first match wins.
type Registry struct {
	scrapers []Scraper
}

// NewRegistry creates a Registry with the given scrapers.
func NewRegistry(scrapers ...Scraper) *Registry {
	return &Registry{scrapers: scrapers}
}

// Register appends a scraper to the registry.
func (r *Registry) Register(s Scraper) {
	r.scrapers = append(r.scrapers, s)
}

// For returns the first scraper that can handle the URL, or
// model.ErrNoScraper.
func (r *Registry) For(url string) (Scraper, error) {
	for _, s := range r.scrapers {
		if s.CanHandle(url) {
			return s, nil
		}
	}
	return nil, eris.Wrapf(model.ErrNoScraper, "url %s", url)
}

// Platforms lists the registered platform names.
func (r *Registry) Platforms() []string {
	names := make([]string, len(r.scrapers))
	for i, s := range r.scrapers {
		names[i] = s.Platform()
	}
	return names
}

// hostContains reports whether the URL mentions the given domain. Platform
// URLs are matched loosely so subdomains and locale variants work.
func hostContains(url, domain string) bool {
	return strings.Contains(strings.ToLower(url), domain)
}
