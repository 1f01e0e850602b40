package scrape

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/eventscope/internal/model"
	"github.com/sells-group/eventscope/internal/resilience"
	"github.com/sells-group/eventscope/pkg/browser"
)

// Meetup scrapes event detail pages on meetup.com.
type Meetup struct {
	browser browser.Client
	breaker *circuitBreaker
}

// NewMeetup creates a Meetup scraper.
func NewMeetup(b browser.Client) *Meetup {
	return &Meetup{browser: b, breaker: defaultBreaker("meetup")}
}

func (s *Meetup) Platform() string { return "meetup" }

func (s *Meetup) CanHandle(url string) bool {
	return hostContains(url, "meetup.com")
}

func (s *Meetup) Scrape(ctx context.Context, url string) (*model.Event, error) {
	if s.breaker.isOpen() {
		return nil, resilience.NewTransientError(eris.New("meetup: circuit breaker open"), 0)
	}

	session, release, err := s.browser.NewSession(ctx)
	if err != nil {
		s.breaker.recordFailure()
		return nil, eris.Wrap(err, "meetup: new session")
	}
	defer release()

	if err := session.Navigate(ctx, url); err != nil {
		s.breaker.recordFailure()
		return nil, eris.Wrapf(err, "meetup: navigate %s", url)
	}
	if err := session.WaitVisible(ctx, `h1[data-testid='event-title']`); err != nil {
		s.breaker.recordFailure()
		return nil, eris.Wrapf(err, "meetup: wait for event page %s", url)
	}

	// The description and photo gallery render lazily below the fold.
	if err := session.ScrollBottom(ctx); err == nil {
		_ = session.WaitIdle(ctx)
	}

	ex := &extractor{session: session}

	name := ex.text(ctx, `h1[data-testid='event-title']`)
	if name == "" {
		s.breaker.recordSuccess()
		return nil, eris.Wrap(model.ErrExtraction, "meetup: event name")
	}

	// Meetup renders the machine-readable time in a <time> datetime attr,
	// falling back to the displayed text.
	dateStr := ex.attr(ctx, `time[datetime]`, "datetime")
	if dateStr == "" {
		dateStr = ex.text(ctx, `time`)
	}
	startDate, ok := parseEventDate(dateStr)
	if !ok {
		s.breaker.recordSuccess()
		return nil, eris.Wrap(model.ErrExtraction, "meetup: start date")
	}

	event := &model.Event{
		Name:        name,
		Description: ex.text(ctx, `[data-testid='event-description']`),
		StartDate:   startDate,
		SourceURL:   url,
		Platform:    s.Platform(),
		Images:      ex.attrs(ctx, `[data-testid='event-image'] img`, "src"),
		Tags:        ex.texts(ctx, `[data-testid='event-topic']`),
		Metadata: map[string]any{
			"scraped_at": time.Now().UTC(),
			"platform":   s.Platform(),
		},
	}

	venue := ex.text(ctx, `[data-testid='venue-name']`)
	address := ex.text(ctx, `[data-testid='venue-address']`)
	if venue != "" && address != "" {
		address = venue + ", " + address
	} else if address == "" {
		address = venue
	}
	joinURL := ex.attr(ctx, `[data-testid='online-event-link']`, "href")

	locType := model.LocationPhysical
	if joinURL != "" || hostContains(venue, "online event") {
		locType = model.LocationVirtual
	}
	event.Location = model.Location{Type: locType, Address: address, URL: joinURL}

	event.Host = model.Host{
		Name:    ex.text(ctx, `[data-testid='event-group-name']`),
		Website: ex.attr(ctx, `[data-testid='event-group-link']`, "href"),
	}
	if event.Host.Name == "" {
		event.Host.Name = "Unknown"
	}

	event.Pricing = parsePricing(ex.text(ctx, `[data-testid='event-fee']`))

	s.breaker.recordSuccess()
	return event, nil
}
