package feedcache

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fiffu/feedwatch/lib/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testURL = "https://example.com/rss"

func newTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	return New(t.TempDir(), ttl, zap.NewNop())
}

func TestPutThenGet(t *testing.T) {
	s := newTestStore(t, time.Hour)

	items := models.Items{{Title: "A", ID: "a"}, {Title: "B", ID: "b"}}
	require.NoError(t, s.Put(testURL, items))

	got, ok := s.Get(testURL)
	require.True(t, ok)
	assert.Equal(t, items, got)
}

func TestGetMissingEntry(t *testing.T) {
	s := newTestStore(t, time.Hour)

	_, ok := s.Get(testURL)
	assert.False(t, ok)
}

func TestTTLBoundary(t *testing.T) {
	ttl := time.Hour
	items := models.Items{{Title: "A", ID: "a"}}

	s := newTestStore(t, ttl)
	require.NoError(t, s.write(testURL, items, time.Now().Add(-ttl+time.Second)))
	_, ok := s.Get(testURL)
	assert.True(t, ok, "entry one second younger than TTL should hit")

	require.NoError(t, s.write(testURL, items, time.Now().Add(-ttl-time.Second)))
	_, ok = s.Get(testURL)
	assert.False(t, ok, "entry one second older than TTL should miss")
}

func TestZeroTTLIsAlwaysStale(t *testing.T) {
	s := newTestStore(t, 0)
	require.NoError(t, s.Put(testURL, models.Items{{Title: "A", ID: "a"}}))

	_, ok := s.Get(testURL)
	assert.False(t, ok)
}

func TestCorruptEntrySelfHeals(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, time.Hour, zap.NewNop())

	path := filepath.Join(dir, base64.URLEncoding.EncodeToString([]byte(testURL))+".json")
	require.NoError(t, os.WriteFile(path, []byte("{{{not json"), 0o644))

	_, ok := s.Get(testURL)
	assert.False(t, ok)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "corrupt cache file should be deleted")
}

func TestPutOverwritesWholeEntry(t *testing.T) {
	s := newTestStore(t, time.Hour)

	require.NoError(t, s.Put(testURL, models.Items{{Title: "old", ID: "old"}}))
	require.NoError(t, s.Put(testURL, models.Items{{Title: "new", ID: "new"}}))

	got, ok := s.Get(testURL)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Title)
}
