// Package lib exposes the engine to its consumers (the HTTP API, or any
// future UI layer) behind a single Service facade.
package lib

import (
	"context"
	"fmt"

	"github.com/fiffu/feedwatch/config"
	"github.com/fiffu/feedwatch/lib/feedcache"
	"github.com/fiffu/feedwatch/lib/health"
	"github.com/fiffu/feedwatch/lib/models"
	"github.com/fiffu/feedwatch/lib/refresher"
	"github.com/fiffu/feedwatch/lib/state"
	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	log      *zap.Logger
	settings *config.Settings

	state     *state.Store
	cache     *feedcache.Store
	health    *health.Tracker
	refresher *refresher.Refresher
}

func NewService(
	lc fx.Lifecycle,
	log *zap.Logger,
	settings *config.Settings,
	st *state.Store,
	cache *feedcache.Store,
	tracker *health.Tracker,
	r *refresher.Refresher,
) *Service {
	return &Service{
		log:       log,
		settings:  settings,
		state:     st,
		cache:     cache,
		health:    tracker,
		refresher: r,
	}
}

// Refresh runs one refresh cycle. force bypasses the cache entirely.
func (svc *Service) Refresh(ctx context.Context, force bool) error {
	return svc.refresher.Refresh(ctx, force)
}

// Items returns the current aggregate, optionally restricted to unread
// or favorite items.
func (svc *Service) Items(unreadOnly, favoritesOnly bool) models.Items {
	items := svc.refresher.Items()
	if unreadOnly {
		items = lo.Filter(items, func(item models.Item, _ int) bool {
			return !svc.state.IsRead(item.ID)
		})
	}
	if favoritesOnly {
		items = lo.Filter(items, func(item models.Item, _ int) bool {
			return svc.state.IsFavorite(item.ID)
		})
	}
	return items
}

// Feeds returns every subscription in stored order.
func (svc *Service) Feeds() []models.Source {
	return svc.state.Feeds()
}

// Health returns the health record for one source.
func (svc *Service) Health(url string) health.Record {
	return svc.health.Get(url)
}

// UnreadCount counts cached items of a source not yet marked read.
func (svc *Service) UnreadCount(url string) int {
	items, ok := svc.cache.Get(url)
	if !ok {
		return 0
	}
	return lo.CountBy(items, func(item models.Item) bool {
		return !svc.state.IsRead(item.ID)
	})
}

// AddFeed validates the URL by fetching and decoding it once, then
// subscribes using the feed's own title.
func (svc *Service) AddFeed(ctx context.Context, url string) (models.Source, error) {
	title, err := svc.refresher.Probe(ctx, url)
	if err != nil {
		return models.Source{}, fmt.Errorf("not a valid feed: %w", err)
	}

	src := models.Source{URL: url, Title: title}
	if err := svc.state.AddFeed(src); err != nil {
		return models.Source{}, err
	}
	svc.log.Sugar().Infow("Subscribed", "url", url, "title", title)
	return src, nil
}

// RemoveFeed unsubscribes and drops the source's items from the current
// aggregate. Read/favorite marks stay; stale identities are harmless.
func (svc *Service) RemoveFeed(url string) (bool, error) {
	removed, err := svc.state.RemoveFeed(url)
	if removed {
		svc.refresher.Forget(url)
		svc.log.Sugar().Infow("Unsubscribed", "url", url)
	}
	return removed, err
}

// SetCategory assigns a category label to a subscription; empty clears.
func (svc *Service) SetCategory(url, category string) (bool, error) {
	return svc.state.SetCategory(url, category)
}

// Categories lists distinct category labels in use.
func (svc *Service) Categories() []string {
	return svc.state.Categories()
}

// ToggleRead flips an item's read flag, reporting the new value.
func (svc *Service) ToggleRead(id string) (bool, error) {
	return svc.state.ToggleRead(id)
}

// MarkRead marks an item read without ever flipping it back, unlike
// ToggleRead. Intended for the open-an-article path.
func (svc *Service) MarkRead(id string) error {
	return svc.state.MarkRead(id)
}

// ToggleFavorite flips an item's favorite flag, reporting the new value.
func (svc *Service) ToggleFavorite(id string) (bool, error) {
	return svc.state.ToggleFavorite(id)
}

// MarkAllRead marks every item in the current aggregate as read.
func (svc *Service) MarkAllRead() error {
	ids := lo.Map(svc.refresher.Items(), func(item models.Item, _ int) string {
		return item.ID
	})
	return svc.state.MarkAllRead(ids)
}

// IsRead reports whether an item identity is marked read.
func (svc *Service) IsRead(id string) bool {
	return svc.state.IsRead(id)
}

// IsFavorite reports whether an item identity is marked favorite.
func (svc *Service) IsFavorite(id string) bool {
	return svc.state.IsFavorite(id)
}

// Warning drains the pending user-facing warning, if any (e.g. a state
// file that had to be cleared).
func (svc *Service) Warning() string {
	return svc.state.Warning()
}
