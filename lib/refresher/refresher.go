// Package refresher drives the refresh cycle: for every subscription it
// decides cache-hit vs fetch, decodes the response, updates the cache
// and health tracker, and diffs the aggregate against the seen set to
// surface newly-arrived items.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/fiffu/feedwatch/config"
	"github.com/fiffu/feedwatch/lib/feedcache"
	"github.com/fiffu/feedwatch/lib/feeds"
	"github.com/fiffu/feedwatch/lib/health"
	"github.com/fiffu/feedwatch/lib/models"
	"github.com/fiffu/feedwatch/lib/state"
	"github.com/fiffu/feedwatch/senders"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Refresher struct {
	log       *zap.Logger
	settings  *config.Settings
	transport http.RoundTripper

	state   *state.Store
	cache   *feedcache.Store
	health  *health.Tracker
	senders senders.Registry

	mu    sync.Mutex // refresh cycles never overlap
	alarm *alarmClock

	seen map[string]struct{}

	itemsMu sync.RWMutex
	items   models.Items
}

func NewRefresher(
	lc fx.Lifecycle,
	log *zap.Logger,
	settings *config.Settings,
	transport http.RoundTripper,
	st *state.Store,
	cache *feedcache.Store,
	tracker *health.Tracker,
	reg senders.Registry,
) *Refresher {
	r := New(log, settings, transport, st, cache, tracker, reg)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			r.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			r.Stop()
			return nil
		},
	})

	return r
}

func New(
	log *zap.Logger,
	settings *config.Settings,
	transport http.RoundTripper,
	st *state.Store,
	cache *feedcache.Store,
	tracker *health.Tracker,
	reg senders.Registry,
) *Refresher {
	r := &Refresher{
		log:       log,
		settings:  settings,
		transport: transport,
		state:     st,
		cache:     cache,
		health:    tracker,
		senders:   reg,
		alarm:     newAlarmClock(settings.AutoRefreshInterval()),
		seen:      make(map[string]struct{}),
	}

	// Seeding from cache suppresses a notification burst for articles
	// that were already on disk before this session.
	r.seedSeenFromCache()
	return r
}

// Start kicks off an immediate refresh and, when auto-refresh is
// configured, the periodic wakeup loop.
func (r *Refresher) Start() {
	c := r.alarm.Start(context.Background())

	go func() {
		for range c {
			if err := r.Refresh(context.Background(), false); err != nil {
				r.log.Sugar().Errorw("Refresh failed", "err", err)
			}
		}
	}()
}

func (r *Refresher) Stop() {
	r.alarm.Stop()
	r.log.Sugar().Info("Refresher stopped")
}

// Refresh runs one full cycle over every subscription, sequentially and
// in subscription order. Per-source failures are isolated: they land in
// the health tracker, never in the return value.
func (r *Refresher) Refresh(ctx context.Context, force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	started := time.Now().UTC()
	log := r.log.Sugar().With("cycle", uuid.NewString())

	var m cycleMetrics
	var all models.Items

	for _, src := range r.state.Feeds() {
		m.total++

		if !force {
			if items, ok := r.cache.Get(src.URL); ok {
				log.Debugw("Using cached content", "url", src.URL)
				all = append(all, items...)
				m.cached++
				continue
			}
		}

		items, ok := r.fetchSource(ctx, log, src)
		if !ok {
			m.broken++
			continue
		}
		m.fetched++
		all = append(all, items...)
	}

	all.SortNewestFirst()

	if r.settings.NotificationsEnabled {
		fresh := lo.Filter(all, func(item models.Item, _ int) bool {
			_, seen := r.seen[item.ID]
			return !seen
		})
		if len(fresh) > 0 {
			m.fresh = len(fresh)
			r.notify(ctx, log, fresh)
		}
	}

	for _, item := range all {
		r.seen[item.ID] = struct{}{}
	}

	r.itemsMu.Lock()
	r.items = all
	r.itemsMu.Unlock()

	elapsed := time.Now().UTC().Sub(started)
	log.Infow(fmt.Sprintf("Processed %d sources", m.total),
		append(m.logArgs(), "elapsed_msecs", int(elapsed.Milliseconds()))...,
	)
	return nil
}

// fetchSource does one timed GET plus decode, recording the outcome in
// the health tracker. ok is false when the source contributed nothing
// this cycle.
func (r *Refresher) fetchSource(ctx context.Context, log *zap.SugaredLogger, src models.Source) (models.Items, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.settings.HTTPTimeout())
	defer cancel()

	var body string
	started := time.Now()
	err := requests.URL(src.URL).
		Transport(r.transport).
		ToString(&body).
		Fetch(ctx)
	elapsed := time.Since(started)

	if err != nil {
		var respErr *requests.ResponseError
		if errors.As(err, &respErr) {
			log.Errorw("Fetch returned error status", "url", src.URL, "status", respErr.StatusCode)
			r.health.Failure(src.URL, &elapsed, fmt.Sprintf("HTTP %d", respErr.StatusCode))
		} else {
			log.Errorw("Fetch failed", "url", src.URL, "err", err)
			r.health.Failure(src.URL, nil, err.Error())
		}
		return nil, false
	}

	doc, err := feeds.Decode([]byte(body), src)
	if err != nil {
		log.Errorw("Failed to decode feed", "url", src.URL, "err", err)
		r.health.Failure(src.URL, &elapsed, "failed to parse feed")
		return nil, false
	}

	if err := r.cache.Put(src.URL, doc.Items); err != nil {
		log.Errorw("Failed to cache feed content", "url", src.URL, "err", err)
	}

	r.health.Success(src.URL, elapsed)
	return doc.Items, true
}

// Probe validates a candidate subscription URL by fetching and decoding
// it once, returning the feed's own title (falling back to the URL).
func (r *Refresher) Probe(ctx context.Context, url string) (string, error) {
	parsed, err := neturl.Parse(url)
	if err != nil {
		return "", fmt.Errorf("invalid feed URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}

	ctx, cancel := context.WithTimeout(ctx, r.settings.HTTPTimeout())
	defer cancel()

	var body string
	err = requests.URL(url).
		Transport(r.transport).
		ToString(&body).
		Fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}

	doc, err := feeds.Decode([]byte(body), models.Source{URL: url, Title: url})
	if err != nil {
		return "", err
	}

	if doc.Title == "" {
		return url, nil
	}
	return doc.Title, nil
}

// Items returns the current aggregate, newest first.
func (r *Refresher) Items() models.Items {
	r.itemsMu.RLock()
	defer r.itemsMu.RUnlock()
	return append(models.Items{}, r.items...)
}

// Forget drops a removed subscription's items from the current
// aggregate. Its cache entry and read marks are left behind.
func (r *Refresher) Forget(url string) {
	r.itemsMu.Lock()
	defer r.itemsMu.Unlock()

	r.items = lo.Reject(r.items, func(item models.Item, _ int) bool {
		return item.FeedURL == url
	})
}

func (r *Refresher) seedSeenFromCache() {
	for _, src := range r.state.Feeds() {
		if items, ok := r.cache.Get(src.URL); ok {
			for _, item := range items {
				r.seen[item.ID] = struct{}{}
			}
		}
	}
}

// notify emits one summary notification covering every fresh item, with
// at most 3 titles in the body. Delivery failures are logged, never
// propagated.
func (r *Refresher) notify(ctx context.Context, log *zap.SugaredLogger, fresh models.Items) {
	summary := "1 new article"
	if len(fresh) > 1 {
		summary = fmt.Sprintf("%d new articles", len(fresh))
	}

	shown := fresh
	if len(shown) > 3 {
		shown = shown[:3]
	}
	lines := lo.Map(shown, func(item models.Item, _ int) string {
		return "• " + item.Title
	})
	body := strings.Join(lines, "\n")
	if extra := len(fresh) - len(shown); extra > 0 {
		body += fmt.Sprintf("\n...and %d more", extra)
	}

	for platform, sender := range r.senders {
		if err := sender.Send(ctx, summary, body); err != nil {
			log.Warnw("Failed to deliver notification", "platform", platform, "err", err)
		}
	}
}
