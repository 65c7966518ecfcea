// Package models holds the domain entities shared across the engine:
// feed subscriptions and normalized feed items.
package models

import (
	"sort"
	"time"
)

// Source is one subscription. URL is the unique key; Title falls back to
// the URL when the feed never provided one.
type Source struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
}

// Item is a single normalized entry from a source. Items are immutable
// once parsed; they live in memory and inside cache entries only.
type Item struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Link        string     `json:"link"`
	Published   *time.Time `json:"published,omitempty"`
	ID          string     `json:"id"`
	FeedURL     string     `json:"feed_url"`
}

type Items []Item

// SortNewestFirst orders items by publish time descending. Items without
// a timestamp sort last.
func (items Items) SortNewestFirst() {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch {
		case a.Published == nil:
			return false
		case b.Published == nil:
			return true
		default:
			return a.Published.After(*b.Published)
		}
	})
}
