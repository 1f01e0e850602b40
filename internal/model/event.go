package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// LocationType distinguishes in-person from online events.
type LocationType string

const (
	LocationPhysical LocationType = "physical"
	LocationVirtual  LocationType = "virtual"
)

// Location describes where an event takes place. Physical events carry an
// address; virtual events carry a join URL.
type Location struct {
	Type    LocationType `json:"type"`
	Address string       `json:"address,omitempty"`
	URL     string       `json:"url,omitempty"`
}

// Host is the organizer of an event.
type Host struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`
}

// PricingType distinguishes free from paid events.
type PricingType string

const (
	PricingFree PricingType = "free"
	PricingPaid PricingType = "paid"
)

// Pricing describes admission cost. Amount and Currency are only set for
// paid events.
type Pricing struct {
	Type     PricingType `json:"type"`
	Amount   float64     `json:"amount,omitempty"`
	Currency string      `json:"currency,omitempty"`
}

// Event is a structured record extracted from an event-listing page.
// Name and StartDate are required; a scraper that cannot extract them must
// fail rather than return a partial record. Everything else is best-effort.
type Event struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	StartDate   time.Time      `json:"start_date"`
	EndDate     *time.Time     `json:"end_date,omitempty"`
	Location    Location       `json:"location"`
	Host        Host           `json:"host"`
	SourceURL   string         `json:"source_url"`
	Platform    string         `json:"platform"`
	Pricing     *Pricing       `json:"pricing,omitempty"`
	Images      []string       `json:"images,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Indexed     bool           `json:"indexed"`
	CreatedAt   time.Time      `json:"created_at,omitempty"`
}

// EventStatus describes an event's position relative to now.
type EventStatus string

const (
	EventUpcoming EventStatus = "upcoming"
	EventOngoing  EventStatus = "ongoing"
	EventPast     EventStatus = "past"
)

// Status returns whether the event is upcoming, ongoing, or past at the
// given instant.
func (e *Event) Status(now time.Time) EventStatus {
	if now.Before(e.StartDate) {
		return EventUpcoming
	}
	if e.EndDate != nil && now.After(*e.EndDate) {
		return EventPast
	}
	return EventOngoing
}

// Duration returns a human-readable duration, or "TBD" when no end date
// is known.
func (e *Event) Duration() string {
	if e.EndDate == nil {
		return "TBD"
	}
	d := e.EndDate.Sub(e.StartDate)
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	switch {
	case hours == 0:
		return fmt.Sprintf("%dm", minutes)
	case minutes == 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug returns a URL-safe identifier derived from the event name.
func (e *Event) Slug() string {
	s := slugRe.ReplaceAllString(strings.ToLower(e.Name), "-")
	return strings.Trim(s, "-")
}

// EventFilter specifies criteria for listing events.
type EventFilter struct {
	Platform string `json:"platform,omitempty"`
	Indexed  *bool  `json:"indexed,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}
