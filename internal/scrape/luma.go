package scrape

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/eventscope/internal/model"
	"github.com/sells-group/eventscope/internal/resilience"
	"github.com/sells-group/eventscope/pkg/browser"
)

// Luma scrapes event pages on lu.ma.
type Luma struct {
	browser browser.Client
	breaker *circuitBreaker
}

// NewLuma creates a Luma scraper.
func NewLuma(b browser.Client) *Luma {
	return &Luma{browser: b, breaker: defaultBreaker("luma")}
}

func (s *Luma) Platform() string { return "luma" }

func (s *Luma) CanHandle(url string) bool {
	return hostContains(url, "lu.ma/") || hostContains(url, "luma.com")
}

func (s *Luma) Scrape(ctx context.Context, url string) (*model.Event, error) {
	if s.breaker.isOpen() {
		return nil, resilience.NewTransientError(eris.New("luma: circuit breaker open"), 0)
	}

	session, release, err := s.browser.NewSession(ctx)
	if err != nil {
		s.breaker.recordFailure()
		return nil, eris.Wrap(err, "luma: new session")
	}
	defer release()

	if err := session.Navigate(ctx, url); err != nil {
		s.breaker.recordFailure()
		return nil, eris.Wrapf(err, "luma: navigate %s", url)
	}
	if err := session.WaitVisible(ctx, `h1`); err != nil {
		s.breaker.recordFailure()
		return nil, eris.Wrapf(err, "luma: wait for event page %s", url)
	}

	ex := &extractor{session: session}

	name := ex.text(ctx, `h1`)
	if name == "" {
		s.breaker.recordSuccess()
		return nil, eris.Wrap(model.ErrExtraction, "luma: event name")
	}

	dateStr := ex.attr(ctx, `time[datetime]`, "datetime")
	if dateStr == "" {
		dateStr = ex.text(ctx, `[class*='event-time']`)
	}
	startDate, ok := parseEventDate(dateStr)
	if !ok {
		s.breaker.recordSuccess()
		return nil, eris.Wrap(model.ErrExtraction, "luma: start date")
	}

	event := &model.Event{
		Name:        name,
		Description: ex.text(ctx, `[class*='event-about']`),
		StartDate:   startDate,
		SourceURL:   url,
		Platform:    s.Platform(),
		Images:      ex.attrs(ctx, `img[class*='cover-image']`, "src"),
		Metadata: map[string]any{
			"scraped_at": time.Now().UTC(),
			"platform":   s.Platform(),
		},
	}

	address := ex.text(ctx, `[class*='event-location']`)
	joinURL := ex.attr(ctx, `a[class*='join-link']`, "href")
	locType := model.LocationPhysical
	if joinURL != "" || locationType(address) == model.LocationVirtual {
		locType = model.LocationVirtual
	}
	event.Location = model.Location{Type: locType, Address: address, URL: joinURL}

	event.Host = model.Host{Name: ex.text(ctx, `[class*='host-name']`)}
	if event.Host.Name == "" {
		event.Host.Name = "Unknown"
	}

	event.Pricing = parsePricing(ex.text(ctx, `[class*='event-price']`))

	s.breaker.recordSuccess()
	return event, nil
}
