package scrape

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/eventscope/internal/model"
)

func TestParsePricing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  *model.Pricing
	}{
		{"free", "Free", &model.Pricing{Type: model.PricingFree}},
		{"free mixed case", "FREE admission", &model.Pricing{Type: model.PricingFree}},
		{"amount with currency", "25.00 EUR", &model.Pricing{Type: model.PricingPaid, Amount: 25, Currency: "EUR"}},
		{"amount default currency", "From 1,250.50", &model.Pricing{Type: model.PricingPaid, Amount: 1250.50, Currency: "USD"}},
		{"empty", "", nil},
		{"no number", "Tickets at the door", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := parsePricing(tt.input)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEventDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  time.Time
		ok    bool
	}{
		{"rfc3339", "2026-09-15T18:00:00Z", time.Date(2026, 9, 15, 18, 0, 0, 0, time.UTC), true},
		{"display long", "September 15, 2026", time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC), true},
		{"display with time", "Sep 15, 2026 6:00 PM", time.Date(2026, 9, 15, 18, 0, 0, 0, time.UTC), true},
		{"labeled", "Date and time 2026-09-15", time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC), true},
		{"garbage", "sometime soon", time.Time{}, false},
		{"empty", "", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := parseEventDate(tt.input)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
			}
		})
	}
}

func TestLocationType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.LocationVirtual, locationType("Online event"))
	assert.Equal(t, model.LocationVirtual, locationType("Virtual"))
	assert.Equal(t, model.LocationPhysical, locationType("In person"))
	assert.Equal(t, model.LocationPhysical, locationType(""))
}
