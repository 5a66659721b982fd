// Package history keeps a bounded, newest-first record of generated voice
// lines in a JSON file.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultLimit is the number of items kept when no limit is configured.
const DefaultLimit = 50

// ErrNotFound is returned when no item has the requested id.
var ErrNotFound = errors.New("history item not found")

// Item is one past generation. The audio itself is not stored here.
type Item struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	Voice     string `json:"voice"`
	Language  string `json:"language"`
}

// Time returns the item timestamp as a time.Time.
func (i Item) Time() time.Time {
	return time.UnixMilli(i.Timestamp)
}

// Store is a file-backed history list. It is safe for concurrent use.
type Store struct {
	path   string
	limit  int
	logger *slog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	items []Item
}

// Open loads the history file at path. A missing file yields an empty store;
// an unreadable or corrupt one is logged and also yields an empty store.
func Open(path string, limit int, logger *slog.Logger) (*Store, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	s := &Store{
		path:   path,
		limit:  limit,
		logger: logger,
		now:    time.Now,
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		logger.Error("failed to parse history", "path", path, "error", err)
	default:
		if err := json.Unmarshal(data, &s.items); err != nil {
			logger.Error("failed to parse history", "path", path, "error", err)
			s.items = nil
		}
	}

	if len(s.items) > limit {
		s.items = s.items[:limit]
	}

	logger.Debug("history loaded", "path", path, "items", len(s.items))
	return s, nil
}

// Add records a new generation at the front of the list and drops the
// oldest entries beyond the limit.
func (s *Store) Add(text, voice, language string) (Item, error) {
	item := Item{
		ID:        uuid.New().String(),
		Text:      text,
		Timestamp: s.now().UnixMilli(),
		Voice:     voice,
		Language:  language,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]Item, 0, min(len(s.items)+1, s.limit))
	items = append(items, item)
	for _, it := range s.items {
		if len(items) == s.limit {
			break
		}
		items = append(items, it)
	}

	if err := s.save(items); err != nil {
		return Item{}, err
	}
	s.items = items
	return item, nil
}

// List returns the items, newest first.
func (s *Store) List() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Item(nil), s.items...)
}

// Len returns the number of items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Get returns the item with the given id.
func (s *Store) Get(id string) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if it.ID == id {
			return it, nil
		}
	}
	return Item{}, ErrNotFound
}

// Delete removes the item with the given id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, it := range s.items {
		if it.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotFound
	}

	items := make([]Item, 0, len(s.items)-1)
	items = append(items, s.items[:idx]...)
	items = append(items, s.items[idx+1:]...)
	if err := s.save(items); err != nil {
		return err
	}
	s.items = items
	return nil
}

// Clear removes every item.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.save([]Item{}); err != nil {
		return err
	}
	s.items = nil
	return nil
}

// save writes items to a temp file and renames it over the history file.
func (s *Store) save(items []Item) error {
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}
