// Package feedcache is the per-source, TTL-bounded store of normalized
// items. One JSON file per source URL keeps network fetches off the hot
// path between refreshes.
package feedcache

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/fiffu/feedwatch/config"
	"github.com/fiffu/feedwatch/lib/models"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// entry is the on-disk shape of one cached source.
type entry struct {
	URL         string       `json:"url"`
	Content     models.Items `json:"content"`
	LastUpdated time.Time    `json:"last_updated"`
}

type Store struct {
	dir string
	ttl time.Duration
	log *zap.Logger
}

func NewStore(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, settings *config.Settings) *Store {
	return New(cfg.CacheDir, settings.CacheTTL(), log)
}

func New(dir string, ttl time.Duration, log *zap.Logger) *Store {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Sugar().Errorf("failed to create cache dir %s: %s", dir, err)
	}
	return &Store{dir: dir, ttl: ttl, log: log}
}

// Get returns the cached items for a source, or absent when the entry is
// missing, stale, or unreadable. A corrupt file is deleted on the way
// out so the next fetch rebuilds it.
func (s *Store) Get(url string) (models.Items, bool) {
	path := s.path(url)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		s.log.Sugar().Warnf("removing corrupted cache entry for %s: %s", url, err)
		if err := os.Remove(path); err != nil {
			s.log.Sugar().Errorf("failed to remove corrupted cache entry: %s", err)
		}
		return nil, false
	}

	if time.Since(e.LastUpdated) >= s.ttl {
		return nil, false
	}
	return e.Content, true
}

// Put overwrites the whole entry for a source. There is no merge: the
// latest successful fetch is the truth.
func (s *Store) Put(url string, items models.Items) error {
	return s.write(url, items, time.Now().UTC())
}

func (s *Store) write(url string, items models.Items, at time.Time) error {
	raw, err := json.MarshalIndent(entry{URL: url, Content: items, LastUpdated: at}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(url), raw, 0o644)
}

// path derives the cache filename for a URL. The encoding is one-way by
// design: lookups always re-derive it from the same URL.
func (s *Store) path(url string) string {
	return filepath.Join(s.dir, base64.URLEncoding.EncodeToString([]byte(url))+".json")
}
