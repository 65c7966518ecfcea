package refresher_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fiffu/feedwatch/config"
	"github.com/fiffu/feedwatch/lib/feedcache"
	"github.com/fiffu/feedwatch/lib/feeds"
	"github.com/fiffu/feedwatch/lib/health"
	"github.com/fiffu/feedwatch/lib/models"
	"github.com/fiffu/feedwatch/lib/refresher"
	"github.com/fiffu/feedwatch/lib/state"
	"github.com/fiffu/feedwatch/senders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type notification struct {
	summary, body string
}

// captureSender records notifications instead of delivering them.
type captureSender struct {
	mu    sync.Mutex
	calls []notification
}

func (c *captureSender) Send(ctx context.Context, summary, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, notification{summary, body})
	return nil
}

func (c *captureSender) captured() []notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notification{}, c.calls...)
}

type fixture struct {
	settings *config.Settings
	state    *state.Store
	cache    *feedcache.Store
	health   *health.Tracker
	sender   *captureSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		settings: &config.Settings{HTTPTimeoutSecs: 5, CacheDurationMins: 60},
		state:    state.Load(filepath.Join(t.TempDir(), "feeds.json"), zap.NewNop()),
		cache:    feedcache.New(t.TempDir(), time.Hour, zap.NewNop()),
		health:   health.New(zap.NewNop()),
		sender:   &captureSender{},
	}
}

func (f *fixture) build() *refresher.Refresher {
	reg := senders.Registry{"capture": f.sender}
	return refresher.New(zap.NewNop(), f.settings, http.DefaultTransport, f.state, f.cache, f.health, reg)
}

func rssFeed(feedTitle string, itemTitles ...string) string {
	var items strings.Builder
	for i, title := range itemTitles {
		fmt.Fprintf(&items, `<item>
			<title>%s</title>
			<link>https://example.com/posts/%d</link>
			<description>body of %s</description>
			<pubDate>Mon, 0%d Jan 2024 12:00:00 GMT</pubDate>
		</item>`, title, i, title, i+1)
	}
	return fmt.Sprintf(`<?xml version="1.0"?><rss version="2.0"><channel><title>%s</title>%s</channel></rss>`,
		feedTitle, items.String())
}

func serveFeed(t *testing.T, body *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(*body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRefreshIsolatesBrokenSource(t *testing.T) {
	f := newFixture(t)

	alpha := rssFeed("Alpha Feed", "Alpha")
	beta := rssFeed("Beta Feed", "Beta")
	good1 := serveFeed(t, &alpha)
	good2 := serveFeed(t, &beta)
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)

	require.NoError(t, f.state.AddFeed(models.Source{URL: good1.URL, Title: "Alpha Feed"}))
	require.NoError(t, f.state.AddFeed(models.Source{URL: broken.URL, Title: "Broken Feed"}))
	require.NoError(t, f.state.AddFeed(models.Source{URL: good2.URL, Title: "Beta Feed"}))

	r := f.build()
	require.NoError(t, r.Refresh(context.Background(), true))

	items := r.Items()
	require.Len(t, items, 2, "healthy sources still contribute when a sibling fails")

	assert.Equal(t, health.StatusHealthy, f.health.Get(good1.URL).Status)
	assert.Equal(t, health.StatusHealthy, f.health.Get(good2.URL).Status)

	rec := f.health.Get(broken.URL)
	assert.Equal(t, health.StatusBroken, rec.Status)
	assert.Equal(t, "HTTP 500", rec.LastError)
	assert.Equal(t, 1, rec.ConsecutiveFailures)
}

func TestRefreshReturnsNilWhenEverySourceFails(t *testing.T) {
	f := newFixture(t)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(broken.Close)
	require.NoError(t, f.state.AddFeed(models.Source{URL: broken.URL, Title: "Broken"}))

	r := f.build()
	assert.NoError(t, r.Refresh(context.Background(), true))
	assert.Empty(t, r.Items())
}

func TestRefreshUsesCacheUntilForced(t *testing.T) {
	f := newFixture(t)

	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(rssFeed("Cached Feed", "Only Post")))
	}))
	t.Cleanup(srv.Close)
	require.NoError(t, f.state.AddFeed(models.Source{URL: srv.URL, Title: "Cached Feed"}))

	r := f.build()

	require.NoError(t, r.Refresh(context.Background(), false))
	assert.Equal(t, 1, hits)

	require.NoError(t, r.Refresh(context.Background(), false))
	assert.Equal(t, 1, hits, "fresh cache entry short-circuits the fetch")
	assert.Len(t, r.Items(), 1)

	require.NoError(t, r.Refresh(context.Background(), true))
	assert.Equal(t, 2, hits, "force bypasses the cache")
}

func TestUnparseableBodyMarksSourceBroken(t *testing.T) {
	f := newFixture(t)

	garbage := "<html><body>definitely not a feed</body></html>"
	srv := serveFeed(t, &garbage)
	require.NoError(t, f.state.AddFeed(models.Source{URL: srv.URL, Title: "Garbage"}))

	r := f.build()
	require.NoError(t, r.Refresh(context.Background(), true))

	rec := f.health.Get(srv.URL)
	assert.Equal(t, health.StatusBroken, rec.Status)
	assert.Equal(t, "failed to parse feed", rec.LastError)
	assert.Empty(t, r.Items())
}

func TestNotificationsCoverOnlyUnseenItems(t *testing.T) {
	f := newFixture(t)
	f.settings.NotificationsEnabled = true

	body := rssFeed("Diff Feed", "Old One", "Old Two")
	srv := serveFeed(t, &body)
	require.NoError(t, f.state.AddFeed(models.Source{URL: srv.URL, Title: "Diff Feed"}))

	// Pre-populate the cache so construction seeds the seen set with the
	// two existing articles.
	doc, err := feeds.Decode([]byte(body), models.Source{URL: srv.URL, Title: "Diff Feed"})
	require.NoError(t, err)
	require.NoError(t, f.cache.Put(srv.URL, doc.Items))

	r := f.build()

	body = rssFeed("Diff Feed", "Old One", "Old Two", "Brand New")
	require.NoError(t, r.Refresh(context.Background(), true))

	calls := f.sender.captured()
	require.Len(t, calls, 1)
	assert.Equal(t, "1 new article", calls[0].summary)
	assert.Contains(t, calls[0].body, "Brand New")
	assert.NotContains(t, calls[0].body, "Old One")
	assert.NotContains(t, calls[0].body, "Old Two")
}

func TestNotificationBodyCapsAtThreeTitles(t *testing.T) {
	f := newFixture(t)
	f.settings.NotificationsEnabled = true

	body := rssFeed("Busy Feed", "One", "Two", "Three", "Four", "Five")
	srv := serveFeed(t, &body)
	require.NoError(t, f.state.AddFeed(models.Source{URL: srv.URL, Title: "Busy Feed"}))

	r := f.build()
	require.NoError(t, r.Refresh(context.Background(), true))

	calls := f.sender.captured()
	require.Len(t, calls, 1)
	assert.Equal(t, "5 new articles", calls[0].summary)
	assert.Equal(t, 3, strings.Count(calls[0].body, "•"))
	assert.Contains(t, calls[0].body, "...and 2 more")
}

func TestSecondRefreshIsQuiet(t *testing.T) {
	f := newFixture(t)
	f.settings.NotificationsEnabled = true

	body := rssFeed("Quiet Feed", "Steady")
	srv := serveFeed(t, &body)
	require.NoError(t, f.state.AddFeed(models.Source{URL: srv.URL, Title: "Quiet Feed"}))

	r := f.build()
	require.NoError(t, r.Refresh(context.Background(), true))
	require.NoError(t, r.Refresh(context.Background(), true))

	assert.Len(t, f.sender.captured(), 1, "unchanged content notifies once")
}

func TestNotificationsDisabledByDefault(t *testing.T) {
	f := newFixture(t)

	body := rssFeed("Silent Feed", "Something New")
	srv := serveFeed(t, &body)
	require.NoError(t, f.state.AddFeed(models.Source{URL: srv.URL, Title: "Silent Feed"}))

	r := f.build()
	require.NoError(t, r.Refresh(context.Background(), true))

	assert.Empty(t, f.sender.captured())
}

func TestAggregateSortsNewestFirst(t *testing.T) {
	f := newFixture(t)

	// rssFeed dates items by position, so later titles are newer.
	body := rssFeed("Sorted Feed", "Oldest", "Middle", "Newest")
	srv := serveFeed(t, &body)
	require.NoError(t, f.state.AddFeed(models.Source{URL: srv.URL, Title: "Sorted Feed"}))

	r := f.build()
	require.NoError(t, r.Refresh(context.Background(), true))

	items := r.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "Newest | Sorted Feed", items[0].Title)
	assert.Equal(t, "Oldest | Sorted Feed", items[2].Title)
}

func TestForgetDropsSourceItems(t *testing.T) {
	f := newFixture(t)

	body := rssFeed("Gone Feed", "Post")
	srv := serveFeed(t, &body)
	require.NoError(t, f.state.AddFeed(models.Source{URL: srv.URL, Title: "Gone Feed"}))

	r := f.build()
	require.NoError(t, r.Refresh(context.Background(), true))
	require.Len(t, r.Items(), 1)

	r.Forget(srv.URL)
	assert.Empty(t, r.Items())
}

func TestProbe(t *testing.T) {
	f := newFixture(t)
	r := f.build()

	body := rssFeed("Probe Feed", "Post")
	srv := serveFeed(t, &body)

	title, err := r.Probe(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Probe Feed", title)
}

func TestProbeFallsBackToURLWhenFeedUntitled(t *testing.T) {
	f := newFixture(t)
	r := f.build()

	body := rssFeed("", "Post")
	srv := serveFeed(t, &body)

	title, err := r.Probe(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, srv.URL, title)
}

func TestProbeRejectsNonHTTPSchemes(t *testing.T) {
	f := newFixture(t)
	r := f.build()

	_, err := r.Probe(context.Background(), "ftp://example.com/feed")
	assert.Error(t, err)
}

func TestProbeRejectsErrorStatus(t *testing.T) {
	f := newFixture(t)
	r := f.build()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	_, err := r.Probe(context.Background(), srv.URL)
	assert.Error(t, err)
}
