package app

import (
	"testing"
	"time"

	"github.com/fiffu/feedwatch/lib/health"
	"github.com/fiffu/feedwatch/lib/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemViewFrom(t *testing.T) {
	published := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	item := models.Item{
		ID:        "abc",
		Title:     "Post | Feed",
		Link:      "https://example.com/post",
		Published: &published,
		FeedURL:   "https://example.com/rss",
	}

	view := ItemView{}.From(item, true, false)
	assert.Equal(t, "abc", view.ID)
	assert.True(t, view.Read)
	assert.False(t, view.Favorite)
	require.NotNil(t, view.Published)
	assert.Equal(t, "2024-01-01T12:00:00Z", *view.Published)
}

func TestItemViewFromUndated(t *testing.T) {
	view := ItemView{}.From(models.Item{ID: "abc"}, false, false)
	assert.Nil(t, view.Published)
}

func TestHealthViewFrom(t *testing.T) {
	latency := 250 * time.Millisecond
	succeeded := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	record := health.Record{
		Status:      health.StatusHealthy,
		LastSuccess: &succeeded,
		LastLatency: &latency,
	}

	view := HealthView{}.From(record)
	assert.Equal(t, "healthy", view.Status)
	assert.Equal(t, "●", view.Indicator)
	assert.Equal(t, "OK (250ms)", view.Description)
	require.NotNil(t, view.LastLatencyMsecs)
	assert.EqualValues(t, 250, *view.LastLatencyMsecs)
	require.NotNil(t, view.LastSuccess)
	assert.Equal(t, "2024-01-01T12:00:00Z", *view.LastSuccess)
}

func TestHealthViewFromUnknown(t *testing.T) {
	view := HealthView{}.From(health.Record{Status: health.StatusUnknown})
	assert.Equal(t, "unknown", view.Status)
	assert.Nil(t, view.LastSuccess)
	assert.Nil(t, view.LastLatencyMsecs)
	assert.Empty(t, view.LastError)
}
