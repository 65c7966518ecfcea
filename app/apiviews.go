package app

import (
	"time"

	"github.com/fiffu/feedwatch/lib/health"
	"github.com/fiffu/feedwatch/lib/models"
)

type ItemView struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Link        string  `json:"link"`
	Published   *string `json:"published"`
	FeedURL     string  `json:"feed_url"`
	Read        bool    `json:"read"`
	Favorite    bool    `json:"favorite"`
}

func (view ItemView) From(item models.Item, read, favorite bool) ItemView {
	return ItemView{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		Link:        item.Link,
		Published:   isoformat(item.Published),
		FeedURL:     item.FeedURL,
		Read:        read,
		Favorite:    favorite,
	}
}

type FeedView struct {
	URL      string     `json:"url"`
	Title    string     `json:"title"`
	Category string     `json:"category,omitempty"`
	Unread   int        `json:"unread"`
	Health   HealthView `json:"health"`
}

type HealthView struct {
	Status              string  `json:"status"`
	Indicator           string  `json:"indicator"`
	Description         string  `json:"description"`
	LastSuccess         *string `json:"last_success"`
	LastLatencyMsecs    *int64  `json:"last_latency_msecs"`
	LastError           string  `json:"last_error,omitempty"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
}

func (view FeedView) From(src models.Source, record health.Record, unread int) FeedView {
	return FeedView{
		URL:      src.URL,
		Title:    src.Title,
		Category: src.Category,
		Unread:   unread,
		Health:   HealthView{}.From(record),
	}
}

func (view HealthView) From(record health.Record) HealthView {
	var latency *int64
	if record.LastLatency != nil {
		msecs := record.LastLatency.Milliseconds()
		latency = &msecs
	}
	return HealthView{
		Status:              string(record.Status),
		Indicator:           record.Indicator(),
		Description:         record.Description(),
		LastSuccess:         isoformat(record.LastSuccess),
		LastLatencyMsecs:    latency,
		LastError:           record.LastError,
		ConsecutiveFailures: record.ConsecutiveFailures,
	}
}

func isoformat(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
