package scrape

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/eventscope/internal/model"
	"github.com/sells-group/eventscope/pkg/browser"
)

// extractor wraps a browser session with lenient lookups. Missing optional
// elements return zero values instead of errors, matching how event pages
// vary between listings.
type extractor struct {
	session browser.Session
}

func (e *extractor) text(ctx context.Context, selector string) string {
	s, err := e.session.Text(ctx, selector)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func (e *extractor) attr(ctx context.Context, selector, attribute string) string {
	s, err := e.session.Attribute(ctx, selector, attribute)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func (e *extractor) texts(ctx context.Context, selector string) []string {
	items, err := e.session.Texts(ctx, selector)
	if err != nil {
		return nil
	}
	var out []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (e *extractor) attrs(ctx context.Context, selector, attribute string) []string {
	items, err := e.session.Attributes(ctx, selector, attribute)
	if err != nil {
		return nil
	}
	var out []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var priceRe = regexp.MustCompile(`([0-9,.]+)\s*([A-Z]{3})?`)

// parsePricing interprets a displayed price string. "Free" maps to free
// pricing, otherwise the first number is the amount with USD as the
// default currency.
func parsePricing(priceText string) *model.Pricing {
	priceText = strings.TrimSpace(priceText)
	if priceText == "" {
		return nil
	}
	if strings.Contains(strings.ToLower(priceText), "free") {
		return &model.Pricing{Type: model.PricingFree}
	}

	m := priceRe.FindStringSubmatch(priceText)
	if m == nil || m[1] == "" {
		return nil
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return nil
	}
	currency := m[2]
	if currency == "" {
		currency = "USD"
	}
	return &model.Pricing{Type: model.PricingPaid, Amount: amount, Currency: currency}
}

// dateLayouts covers the display formats seen across event platforms.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"January 2, 2006 3:04 PM",
	"January 2, 2006, 3:04 PM",
	"January 2, 2006",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"Monday, January 2, 2006 3:04 PM",
	"Monday, January 2, 2006",
	"Mon, Jan 2, 2006 3:04 PM",
	"Mon, Jan 2, 3:04 PM MST",
	"2 January 2006",
}

// parseEventDate tries each known display layout in turn.
func parseEventDate(dateStr string) (time.Time, bool) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}, false
	}
	// Platforms often prefix dates with a label like "Date and time".
	dateStr = strings.TrimPrefix(dateStr, "Date and time")
	dateStr = strings.TrimSpace(strings.Trim(dateStr, "·"))

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// locationType classifies a displayed location hint.
func locationType(typeText string) model.LocationType {
	if strings.Contains(strings.ToLower(typeText), "online") ||
		strings.Contains(strings.ToLower(typeText), "virtual") {
		return model.LocationVirtual
	}
	return model.LocationPhysical
}
