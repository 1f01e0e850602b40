package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvent_Status(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)
	ev := Event{Name: "Tech Meetup", StartDate: start, EndDate: &end}

	assert.Equal(t, EventUpcoming, ev.Status(start.Add(-time.Hour)))
	assert.Equal(t, EventOngoing, ev.Status(start.Add(time.Hour)))
	assert.Equal(t, EventPast, ev.Status(end.Add(time.Minute)))
}

func TestEvent_Status_NoEndDate(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	ev := Event{Name: "Open Ended", StartDate: start}

	// Without an end date, anything after the start counts as ongoing.
	assert.Equal(t, EventOngoing, ev.Status(start.Add(48*time.Hour)))
}

func TestEvent_Duration(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		end  *time.Time
		want string
	}{
		{"no end date", nil, "TBD"},
		{"whole hours", timePtr(start.Add(2 * time.Hour)), "2h"},
		{"minutes only", timePtr(start.Add(45 * time.Minute)), "45m"},
		{"mixed", timePtr(start.Add(90 * time.Minute)), "1h 30m"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := Event{StartDate: start, EndDate: tc.end}
			assert.Equal(t, tc.want, ev.Duration())
		})
	}
}

func TestEvent_Slug(t *testing.T) {
	t.Parallel()

	ev := Event{Name: "AI & ML Summit 2026 -- San Francisco!"}
	assert.Equal(t, "ai-ml-summit-2026-san-francisco", ev.Slug())
}

func timePtr(t time.Time) *time.Time { return &t }
