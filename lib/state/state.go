// Package state persists subscriptions and per-item read/favorite flags
// to a single JSON document, migrating older file shapes on read.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/fiffu/feedwatch/config"
	"github.com/fiffu/feedwatch/lib/models"
	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// savedState is the current on-disk schema.
type savedState struct {
	Feeds     []models.Source `json:"feeds"`
	ReadItems []string        `json:"read_items"`
	Favorites []string        `json:"favorites"`
}

// middleState predates structured subscriptions: feeds were bare URLs.
type middleState struct {
	Feeds     []string `json:"feeds"`
	ReadItems []string `json:"read_items"`
	Favorites []string `json:"favorites"`
}

// oldState is the original schema, before favorites existed.
type oldState struct {
	Feeds     []string `json:"feeds"`
	ReadItems []string `json:"read_items"`
}

const (
	corruptedWarning  = "Saved feeds were corrupted and have been cleared. Starting fresh."
	unreadableWarning = "Saved feeds could not be read. Starting fresh."
)

type Store struct {
	mu   sync.RWMutex
	path string
	log  *zap.Logger

	feeds     []models.Source
	readItems map[string]struct{}
	favorites map[string]struct{}

	warning string
}

func NewStore(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config) *Store {
	return Load(cfg.SavePath(), log)
}

// Load reads the state file, trying known schemas newest-first. A file
// that matches no schema is treated as corrupted: it is deleted and the
// store starts empty, with a warning retrievable via Warning().
func Load(path string, log *zap.Logger) *Store {
	s := &Store{
		path:      path,
		log:       log,
		readItems: make(map[string]struct{}),
		favorites: make(map[string]struct{}),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		// A missing file is a fresh install. Any other read failure is
		// an I/O problem, not corruption: start empty but leave the
		// file alone so nothing is lost if the problem is transient.
		if !os.IsNotExist(err) {
			s.log.Sugar().Errorf("failed to read state file %s: %s", path, err)
			s.warning = unreadableWarning
		}
		return s
	}

	if !s.migrate(raw) {
		s.clearCorrupted("state file matched no known schema")
	}
	return s
}

// migrate adopts the first schema that parses. The JSON shapes are
// mutually exclusive: structured feeds fail the string decoders and
// vice versa.
func (s *Store) migrate(raw []byte) bool {
	var current savedState
	if err := json.Unmarshal(raw, &current); err == nil && current.Feeds != nil {
		s.feeds = current.Feeds
		s.readItems = toSet(current.ReadItems)
		s.favorites = toSet(current.Favorites)
		s.log.Sugar().Debugf("loaded %d feeds, %d read, %d favorites", len(s.feeds), len(s.readItems), len(s.favorites))
		return true
	}

	var middle middleState
	if err := json.Unmarshal(raw, &middle); err == nil && middle.Feeds != nil && middle.Favorites != nil {
		s.feeds = sourcesFromURLs(middle.Feeds)
		s.readItems = toSet(middle.ReadItems)
		s.favorites = toSet(middle.Favorites)
		s.log.Sugar().Debugf("migrated %d feeds from middle-format state file", len(s.feeds))
		return true
	}

	var old oldState
	if err := json.Unmarshal(raw, &old); err == nil && old.Feeds != nil {
		s.feeds = sourcesFromURLs(old.Feeds)
		s.readItems = toSet(old.ReadItems)
		s.log.Sugar().Debugf("migrated %d feeds from old-format state file", len(s.feeds))
		return true
	}

	return false
}

func (s *Store) clearCorrupted(reason string) {
	s.log.Sugar().Errorf("%s; clearing state file %s", reason, s.path)
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.log.Sugar().Errorf("failed to remove corrupted state file: %s", err)
	}
	s.warning = corruptedWarning
}

// Warning returns and clears the pending user-facing warning, if any.
func (s *Store) Warning() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.warning
	s.warning = ""
	return w
}

// save rewrites the whole file in the current schema. Callers hold the
// lock. A failed write is reported but never rolls back memory.
func (s *Store) save() error {
	raw, err := json.MarshalIndent(savedState{
		Feeds:     append([]models.Source{}, s.feeds...),
		ReadItems: lo.Keys(s.readItems),
		Favorites: lo.Keys(s.favorites),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o644)
}

// Feeds returns the subscriptions in stored order.
func (s *Store) Feeds() []models.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Source{}, s.feeds...)
}

// Feed looks up one subscription by URL.
func (s *Store) Feed(url string) (models.Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.feeds {
		if f.URL == url {
			return f, true
		}
	}
	return models.Source{}, false
}

// AddFeed appends a subscription. Duplicate URLs are rejected.
func (s *Store) AddFeed(src models.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.feeds {
		if f.URL == src.URL {
			return fmt.Errorf("already subscribed to %s", src.URL)
		}
	}
	s.feeds = append(s.feeds, src)
	return s.save()
}

// RemoveFeed drops a subscription by URL. Read/favorite marks for its
// items are left behind; stale identities are harmless.
func (s *Store) RemoveFeed(url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := lo.Reject(s.feeds, func(f models.Source, _ int) bool {
		return f.URL == url
	})
	if len(kept) == len(s.feeds) {
		return false, nil
	}
	s.feeds = kept
	return true, s.save()
}

// SetCategory assigns (or clears, with "") a feed's category label.
func (s *Store) SetCategory(url, category string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.feeds {
		if s.feeds[i].URL == url {
			s.feeds[i].Category = category
			return true, s.save()
		}
	}
	return false, nil
}

// Categories lists the distinct category labels in use.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	labels := lo.FilterMap(s.feeds, func(f models.Source, _ int) (string, bool) {
		return f.Category, f.Category != ""
	})
	return lo.Uniq(labels)
}

func (s *Store) IsRead(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.readItems[id]
	return ok
}

func (s *Store) IsFavorite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.favorites[id]
	return ok
}

// ToggleRead flips the read flag for an item identity and reports the
// new value.
func (s *Store) ToggleRead(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.readItems[id]; ok {
		delete(s.readItems, id)
		return false, s.save()
	}
	s.readItems[id] = struct{}{}
	return true, s.save()
}

// MarkRead marks one item read regardless of its current flag. Used
// when an item is opened, where un-reading would be wrong.
func (s *Store) MarkRead(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.readItems[id]; ok {
		return nil
	}
	s.readItems[id] = struct{}{}
	return s.save()
}

// MarkAllRead marks every given identity as read in one write.
func (s *Store) MarkAllRead(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		s.readItems[id] = struct{}{}
	}
	return s.save()
}

// ToggleFavorite flips the favorite flag for an item identity and
// reports the new value.
func (s *Store) ToggleFavorite(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.favorites[id]; ok {
		delete(s.favorites, id)
		return false, s.save()
	}
	s.favorites[id] = struct{}{}
	return true, s.save()
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sourcesFromURLs(urls []string) []models.Source {
	return lo.Map(urls, func(url string, _ int) models.Source {
		return models.Source{URL: url, Title: url}
	})
}
