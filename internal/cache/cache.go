// Package cache stores encoded clips on disk, keyed by history id, with
// optional zstd compression and least-recently-used eviction.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	indexFile = "index.json"

	// Payloads at or below this size are stored uncompressed.
	compressThreshold = 1024
)

var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity.
	ErrItemTooLarge = errors.New("item too large for cache")
	// ErrClosed is returned by operations on a closed cache.
	ErrClosed = errors.New("cache closed")
)

// Stats holds cache counters.
type Stats struct {
	Capacity  int64   `json:"capacity"`
	Size      int64   `json:"size"`
	Items     int     `json:"items"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

type entry struct {
	Key          string    `json:"key"`
	File         string    `json:"file"`
	Size         int64     `json:"size"`
	OriginalSize int64     `json:"original_size"`
	Created      time.Time `json:"created"`
	LastAccess   time.Time `json:"last_access"`
	Compressed   bool      `json:"compressed"`
}

// Disk is a size-bounded on-disk clip cache. It is safe for concurrent use.
type Disk struct {
	dir      string
	capacity int64
	now      func() time.Time

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu     sync.Mutex
	index  map[string]*entry
	size   int64
	stats  Stats
	closed bool
}

// Open creates or reopens a cache in dir. A compression level of 0 disables
// compression; otherwise it is a zstd level between 1 and 22.
func Open(dir string, capacity int64, compressionLevel int) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	d := &Disk{
		dir:      dir,
		capacity: capacity,
		now:      time.Now,
		index:    make(map[string]*entry),
	}

	if compressionLevel > 0 {
		var err error
		d.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
	}
	// The decoder is always available so entries written with compression
	// stay readable after it is turned off.
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	d.decoder = dec

	if err := d.loadIndex(); err != nil {
		// Start empty; stale files are overwritten as keys come back.
		d.index = make(map[string]*entry)
	}
	for key, e := range d.index {
		if _, err := os.Stat(filepath.Join(d.dir, e.File)); err != nil {
			delete(d.index, key)
			continue
		}
		d.size += e.Size
	}

	return d, nil
}

// Get returns the stored value for key.
func (d *Disk) Get(key string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.index[key]
	if !ok || d.closed {
		d.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(d.dir, e.File))
	if err == nil && e.Compressed {
		data, err = d.decoder.DecodeAll(data, nil)
	}
	if err != nil {
		d.drop(key)
		d.saveIndex()
		d.stats.Misses++
		return nil, false
	}

	e.LastAccess = d.now()
	d.stats.Hits++
	return data, true
}

// Contains reports whether key is cached without touching its access time.
func (d *Disk) Contains(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.index[key]
	return ok
}

// Put stores value under key, evicting least recently used entries until it
// fits.
func (d *Disk) Put(key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	data, compressed := value, false
	if d.encoder != nil && len(value) > compressThreshold {
		if c := d.encoder.EncodeAll(value, nil); len(c) < len(value) {
			data, compressed = c, true
		}
	}

	diskSize := int64(len(data))
	if diskSize > d.capacity {
		return ErrItemTooLarge
	}

	if _, ok := d.index[key]; ok {
		d.drop(key)
	}
	for d.size+diskSize > d.capacity && len(d.index) > 0 {
		d.evictOldest()
	}

	name := fileName(key)
	if err := writeFile(filepath.Join(d.dir, name), data); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}

	now := d.now()
	d.index[key] = &entry{
		Key:          key,
		File:         name,
		Size:         diskSize,
		OriginalSize: int64(len(value)),
		Created:      now,
		LastAccess:   now,
		Compressed:   compressed,
	}
	d.size += diskSize

	return d.saveIndex()
}

// Delete removes key. Deleting a missing key is not an error.
func (d *Disk) Delete(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.index[key]; !ok {
		return nil
	}
	d.drop(key)
	return d.saveIndex()
}

// Clear removes every entry.
func (d *Disk) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key := range d.index {
		d.drop(key)
	}
	d.size = 0
	return d.saveIndex()
}

// Keys returns the cached keys, least recently used first.
func (d *Disk) Keys() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries := make([]*entry, 0, len(d.index))
	for _, e := range d.index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccess.Before(entries[j].LastAccess)
	})

	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

// Stats returns a snapshot of the cache counters.
func (d *Disk) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.stats
	s.Capacity = d.capacity
	s.Size = d.size
	s.Items = len(d.index)
	if s.Hits+s.Misses > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Hits+s.Misses)
	}
	return s
}

// Close saves the index and releases the codecs.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	err := d.saveIndex()
	if d.encoder != nil {
		err = errors.Join(err, d.encoder.Close())
	}
	d.decoder.Close()
	return err
}

// drop removes key and its file. Callers hold mu.
func (d *Disk) drop(key string) {
	e := d.index[key]
	os.Remove(filepath.Join(d.dir, e.File))
	delete(d.index, key)
	d.size -= e.Size
}

func (d *Disk) evictOldest() {
	var oldest *entry
	for _, e := range d.index {
		if oldest == nil || e.LastAccess.Before(oldest.LastAccess) {
			oldest = e
		}
	}
	if oldest != nil {
		d.drop(oldest.Key)
		d.stats.Evictions++
	}
}

func (d *Disk) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(d.dir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &d.index)
}

func (d *Disk) saveIndex() error {
	data, err := json.Marshal(d.index)
	if err != nil {
		return fmt.Errorf("encode cache index: %w", err)
	}
	if err := writeFile(filepath.Join(d.dir, indexFile), data); err != nil {
		return fmt.Errorf("write cache index: %w", err)
	}
	return nil
}

func fileName(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:16]) + ".clip"
}

// writeFile writes to a temp file first, then renames it into place.
func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
