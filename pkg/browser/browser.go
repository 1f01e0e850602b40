// Package browser provides headless browser automation for scrapers.
// Scrapers depend only on the Client and Session contracts, never on a
// specific automation engine.
package browser

import "context"

// Session is one exclusive browser page. A session must never be shared
// across concurrent scrapes; acquire one per scrape call and release it on
// every exit path.
type Session interface {
	// Navigate loads the URL and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error

	// WaitVisible blocks until the selector matches a visible element.
	WaitVisible(ctx context.Context, selector string) error

	// WaitIdle waits for in-flight page activity to settle after a
	// navigation or scroll, for pages that render client-side.
	WaitIdle(ctx context.Context) error

	// Text returns the trimmed text content of the first element matching
	// the selector, or "" when no element matches.
	Text(ctx context.Context, selector string) (string, error)

	// Attribute returns the named attribute of the first matching
	// element, or "" when the element or attribute is absent.
	Attribute(ctx context.Context, selector, attribute string) (string, error)

	// Texts returns the text content of every matching element.
	Texts(ctx context.Context, selector string) ([]string, error)

	// Attributes returns the named attribute of every matching element,
	// skipping elements without it.
	Attributes(ctx context.Context, selector, attribute string) ([]string, error)

	// ScrollBottom scrolls to the bottom of the page to trigger lazy
	// loading.
	ScrollBottom(ctx context.Context) error
}

// ReleaseFunc tears down a session and its OS-level browser resources.
type ReleaseFunc func()

// Client creates browser sessions.
type Client interface {
	NewSession(ctx context.Context) (Session, ReleaseFunc, error)
}
