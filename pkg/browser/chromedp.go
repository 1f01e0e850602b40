package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/eventscope/internal/resilience"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// ChromeClient creates chromedp-backed sessions. Each session gets its own
// allocator so releasing it kills the underlying Chrome process.
type ChromeClient struct {
	userAgent   string
	navTimeout  time.Duration
	waitTimeout time.Duration
}

// Option configures the ChromeClient.
type Option func(*ChromeClient)

// WithUserAgent overrides the browser user agent.
func WithUserAgent(ua string) Option {
	return func(c *ChromeClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithNavTimeout bounds page navigations.
func WithNavTimeout(d time.Duration) Option {
	return func(c *ChromeClient) {
		if d > 0 {
			c.navTimeout = d
		}
	}
}

// WithWaitTimeout bounds selector waits.
func WithWaitTimeout(d time.Duration) Option {
	return func(c *ChromeClient) {
		if d > 0 {
			c.waitTimeout = d
		}
	}
}

// NewChromeClient creates a headless Chrome session factory.
func NewChromeClient(opts ...Option) *ChromeClient {
	c := &ChromeClient{
		userAgent:   defaultUserAgent,
		navTimeout:  30 * time.Second,
		waitTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewSession launches a fresh headless browser context. The returned release
// func cancels both the tab and its allocator, which terminates the Chrome
// process even when the caller's context is still alive.
func (c *ChromeClient) NewSession(ctx context.Context) (Session, ReleaseFunc, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(c.userAgent),
		)...,
	)

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	release := func() {
		browserCancel()
		allocCancel()
	}

	return &chromeSession{client: c, ctx: browserCtx}, release, nil
}

type chromeSession struct {
	client *ChromeClient
	ctx    context.Context
}

// run executes actions against the session tab, honoring both the caller's
// context and the session lifetime.
func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()

	select {
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx, s.client.navTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return resilience.NewTransientError(eris.Wrapf(err, "browser: navigate %s", url), 0)
	}
	return nil
}

func (s *chromeSession) WaitVisible(ctx context.Context, selector string) error {
	err := s.run(ctx, s.client.waitTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
	)
	if err != nil {
		return resilience.NewTransientError(eris.Wrapf(err, "browser: wait visible %s", selector), 0)
	}
	return nil
}

func (s *chromeSession) WaitIdle(ctx context.Context) error {
	// Client-rendered pages keep mutating after load; a short settle pause
	// is the pragmatic equivalent of network-idle.
	err := s.run(ctx, s.client.waitTimeout, chromedp.Sleep(1500*time.Millisecond))
	if err != nil {
		return resilience.NewTransientError(eris.Wrap(err, "browser: wait idle"), 0)
	}
	return nil
}

func (s *chromeSession) Text(ctx context.Context, selector string) (string, error) {
	var out string
	err := s.run(ctx, s.client.waitTimeout,
		chromedp.EvaluateAsDevTools(textExpr(selector), &out),
	)
	if err != nil {
		return "", eris.Wrapf(err, "browser: text %s", selector)
	}
	return strings.TrimSpace(out), nil
}

func (s *chromeSession) Attribute(ctx context.Context, selector, attribute string) (string, error) {
	var out string
	err := s.run(ctx, s.client.waitTimeout,
		chromedp.EvaluateAsDevTools(attrExpr(selector, attribute), &out),
	)
	if err != nil {
		return "", eris.Wrapf(err, "browser: attribute %s[%s]", selector, attribute)
	}
	return strings.TrimSpace(out), nil
}

func (s *chromeSession) Texts(ctx context.Context, selector string) ([]string, error) {
	var out []string
	err := s.run(ctx, s.client.waitTimeout,
		chromedp.EvaluateAsDevTools(textsExpr(selector), &out),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "browser: texts %s", selector)
	}
	return out, nil
}

func (s *chromeSession) Attributes(ctx context.Context, selector, attribute string) ([]string, error) {
	var out []string
	err := s.run(ctx, s.client.waitTimeout,
		chromedp.EvaluateAsDevTools(attrsExpr(selector, attribute), &out),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "browser: attributes %s[%s]", selector, attribute)
	}
	return out, nil
}

func (s *chromeSession) ScrollBottom(ctx context.Context) error {
	err := s.run(ctx, s.client.waitTimeout,
		chromedp.EvaluateAsDevTools(`window.scrollTo(0, document.body.scrollHeight); true`, nil),
	)
	if err != nil {
		return eris.Wrap(err, "browser: scroll bottom")
	}
	return nil
}

// Extraction expressions return "" / [] for missing elements so that field
// extraction stays independently optional.

func textExpr(selector string) string {
	return fmt.Sprintf(`(document.querySelector(%q)?.textContent ?? "")`, selector)
}

func attrExpr(selector, attribute string) string {
	return fmt.Sprintf(`(document.querySelector(%q)?.getAttribute(%q) ?? "")`, selector, attribute)
}

func textsExpr(selector string) string {
	return fmt.Sprintf(
		`Array.from(document.querySelectorAll(%q)).map(el => el.textContent.trim()).filter(t => t.length > 0)`,
		selector,
	)
}

func attrsExpr(selector, attribute string) string {
	return fmt.Sprintf(
		`Array.from(document.querySelectorAll(%q)).map(el => el.getAttribute(%q)).filter(v => v)`,
		selector, attribute,
	)
}
