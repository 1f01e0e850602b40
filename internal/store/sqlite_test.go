package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/eventscope/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func testEvent(name string) model.Event {
	return model.Event{
		Name:        name,
		Description: "An evening of lightning talks about machine learning.",
		StartDate:   time.Date(2026, 9, 12, 18, 0, 0, 0, time.UTC),
		Location:    model.Location{Type: model.LocationPhysical, Address: "Portland, OR"},
		Host:        model.Host{Name: "PDX AI Group"},
		SourceURL:   "https://eventbrite.com/e/123",
		Platform:    "eventbrite",
	}
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := s.CreateEvent(ctx, testEvent("AI Meetup"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.Indexed)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := s.GetEvent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "AI Meetup", got.Name)
	assert.Equal(t, "eventbrite", got.Platform)
	assert.Equal(t, model.LocationPhysical, got.Location.Type)
}

func TestSQLiteStore_GetEvent_NotFound(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.GetEvent(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
}

func TestSQLiteStore_ListEvents_Filters(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	eb := testEvent("Eventbrite Conf")
	mu := testEvent("Meetup Night")
	mu.Platform = "meetup"

	created, err := s.CreateEvent(ctx, eb)
	require.NoError(t, err)
	_, err = s.CreateEvent(ctx, mu)
	require.NoError(t, err)

	byPlatform, err := s.ListEvents(ctx, model.EventFilter{Platform: "meetup"})
	require.NoError(t, err)
	require.Len(t, byPlatform, 1)
	assert.Equal(t, "Meetup Night", byPlatform[0].Name)

	require.NoError(t, s.MarkEventIndexed(ctx, created.ID))

	indexed := true
	byIndexed, err := s.ListEvents(ctx, model.EventFilter{Indexed: &indexed})
	require.NoError(t, err)
	require.Len(t, byIndexed, 1)
	assert.Equal(t, "Eventbrite Conf", byIndexed[0].Name)
	assert.True(t, byIndexed[0].Indexed)
}

func TestSQLiteStore_MarkEventIndexed_NotFound(t *testing.T) {
	s := newTestSQLiteStore(t)

	err := s.MarkEventIndexed(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
}

func TestSQLiteStore_SearchEvents(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	ml := testEvent("Machine Learning Summit")
	cooking := testEvent("Cooking Class")
	cooking.Description = "Hands-on pasta making."

	_, err := s.CreateEvent(ctx, ml)
	require.NoError(t, err)
	_, err = s.CreateEvent(ctx, cooking)
	require.NoError(t, err)

	results, err := s.SearchEvents(ctx, "machine learning events", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Machine Learning Summit", results[0].Name)

	results, err = s.SearchEvents(ctx, "pasta", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Cooking Class", results[0].Name)
}

func TestSQLiteStore_SearchEvents_EmptyQuery(t *testing.T) {
	s := newTestSQLiteStore(t)

	results, err := s.SearchEvents(context.Background(), "a of", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
