package scrape

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/eventscope/internal/model"
	"github.com/sells-group/eventscope/internal/resilience"
	"github.com/sells-group/eventscope/pkg/browser"
)

// Eventbrite scrapes event detail pages on eventbrite.com.
type Eventbrite struct {
	browser browser.Client
	breaker *circuitBreaker
}

// NewEventbrite creates an Eventbrite scraper.
func NewEventbrite(b browser.Client) *Eventbrite {
	return &Eventbrite{browser: b, breaker: defaultBreaker("eventbrite")}
}

func (s *Eventbrite) Platform() string { return "eventbrite" }

func (s *Eventbrite) CanHandle(url string) bool {
	return hostContains(url, "eventbrite.com")
}

func (s *Eventbrite) Scrape(ctx context.Context, url string) (*model.Event, error) {
	if s.breaker.isOpen() {
		return nil, resilience.NewTransientError(eris.New("eventbrite: circuit breaker open"), 0)
	}

	session, release, err := s.browser.NewSession(ctx)
	if err != nil {
		s.breaker.recordFailure()
		return nil, eris.Wrap(err, "eventbrite: new session")
	}
	defer release()

	if err := session.Navigate(ctx, url); err != nil {
		s.breaker.recordFailure()
		return nil, eris.Wrapf(err, "eventbrite: navigate %s", url)
	}
	if err := session.WaitVisible(ctx, `[data-testid='event-title']`); err != nil {
		s.breaker.recordFailure()
		return nil, eris.Wrapf(err, "eventbrite: wait for event page %s", url)
	}

	ex := &extractor{session: session}

	name := ex.text(ctx, `[data-testid='event-title']`)
	if name == "" {
		s.breaker.recordSuccess()
		return nil, eris.Wrap(model.ErrExtraction, "eventbrite: event name")
	}

	startDate, ok := parseEventDate(ex.text(ctx, `[data-testid='event-date']`))
	if !ok {
		s.breaker.recordSuccess()
		return nil, eris.Wrap(model.ErrExtraction, "eventbrite: start date")
	}

	event := &model.Event{
		Name:        name,
		Description: ex.text(ctx, `[data-testid='event-description']`),
		StartDate:   startDate,
		SourceURL:   url,
		Platform:    s.Platform(),
		Images:      ex.attrs(ctx, `[data-testid='event-image'] img`, "src"),
		Tags:        ex.texts(ctx, `[data-testid='event-category']`),
		Metadata: map[string]any{
			"scraped_at": time.Now().UTC(),
			"platform":   s.Platform(),
		},
	}

	if endDate, ok := parseEventDate(ex.text(ctx, `[data-testid='event-end-date']`)); ok {
		event.EndDate = &endDate
	}

	event.Location = model.Location{
		Type:    locationType(ex.text(ctx, `[data-testid='event-location-type']`)),
		Address: ex.text(ctx, `[data-testid='event-location-address']`),
		URL:     ex.attr(ctx, `[data-testid='event-location-url']`, "href"),
	}

	event.Host = model.Host{
		Name:    ex.text(ctx, `[data-testid='event-organizer']`),
		Website: ex.attr(ctx, `[data-testid='event-organizer-website']`, "href"),
	}
	if event.Host.Name == "" {
		event.Host.Name = "Unknown"
	}

	event.Pricing = parsePricing(ex.text(ctx, `[data-testid='event-price']`))

	s.breaker.recordSuccess()
	return event, nil
}
