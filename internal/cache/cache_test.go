package cache

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// newTestCache opens a cache with a clock that advances one second per call.
func newTestCache(t *testing.T, dir string, capacity int64, level int) *Disk {
	t.Helper()
	d, err := Open(dir, capacity, level)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	clock := time.Unix(1_700_000_000, 0)
	d.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestDisk_PutGet(t *testing.T) {
	d := newTestCache(t, t.TempDir(), 1<<20, 3)

	value := []byte("RIFF....WAVE")
	if err := d.Put("clip-1", value); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok := d.Get("clip-1")
	if !ok {
		t.Fatal("Get() miss, want hit")
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Get() = %q, want %q", got, value)
	}

	if _, ok := d.Get("missing"); ok {
		t.Error("Get(missing) hit, want miss")
	}

	stats := d.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.HitRate != 0.5 {
		t.Errorf("Stats() = %+v", stats)
	}
	if stats.Items != 1 || stats.Size != int64(len(value)) {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestDisk_Compression(t *testing.T) {
	dir := t.TempDir()
	d := newTestCache(t, dir, 1<<20, 3)

	// Silence compresses well.
	value := make([]byte, 64*1024)
	if err := d.Put("silence", value); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, fileName("silence")))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size() >= int64(len(value)) {
		t.Errorf("file size = %d, want < %d", info.Size(), len(value))
	}
	if d.Stats().Size != info.Size() {
		t.Errorf("Stats().Size = %d, want on-disk size %d", d.Stats().Size, info.Size())
	}

	got, ok := d.Get("silence")
	if !ok || !bytes.Equal(got, value) {
		t.Error("Get() did not return the original payload")
	}
}

func TestDisk_NoCompression(t *testing.T) {
	dir := t.TempDir()
	d := newTestCache(t, dir, 1<<20, 0)

	value := make([]byte, 8*1024)
	if err := d.Put("raw", value); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	info, _ := os.Stat(filepath.Join(dir, fileName("raw")))
	if info.Size() != int64(len(value)) {
		t.Errorf("file size = %d, want %d", info.Size(), len(value))
	}
}

func TestDisk_EvictsLeastRecentlyUsed(t *testing.T) {
	d := newTestCache(t, t.TempDir(), 30, 0)

	d.Put("a", bytes.Repeat([]byte("a"), 10))
	d.Put("b", bytes.Repeat([]byte("b"), 10))
	d.Put("c", bytes.Repeat([]byte("c"), 10))

	// Touch a so b becomes the oldest.
	if _, ok := d.Get("a"); !ok {
		t.Fatal("Get(a) miss")
	}

	if err := d.Put("d", bytes.Repeat([]byte("d"), 10)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if d.Contains("b") {
		t.Error("b should have been evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if !d.Contains(key) {
			t.Errorf("%s should still be cached", key)
		}
	}
	if got := d.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}

	keys := d.Keys()
	want := []string{"c", "a", "d"}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys() = %v, want %v", keys, want)
			break
		}
	}
}

func TestDisk_ItemTooLarge(t *testing.T) {
	d := newTestCache(t, t.TempDir(), 16, 0)
	err := d.Put("big", make([]byte, 17))
	if !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("Put() error = %v, want ErrItemTooLarge", err)
	}
}

func TestDisk_Replace(t *testing.T) {
	d := newTestCache(t, t.TempDir(), 1<<20, 0)
	d.Put("k", []byte("first"))
	d.Put("k", []byte("second value"))

	got, _ := d.Get("k")
	if string(got) != "second value" {
		t.Errorf("Get() = %q", got)
	}
	if s := d.Stats(); s.Items != 1 || s.Size != int64(len("second value")) {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestDisk_Reopen(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	value := bytes.Repeat([]byte{0, 0x40}, 4096)
	if err := d.Put("clip", value); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened := newTestCache(t, dir, 1<<20, 0)
	got, ok := reopened.Get("clip")
	if !ok || !bytes.Equal(got, value) {
		t.Error("reopened cache lost the compressed clip")
	}
}

func TestDisk_MissingFile(t *testing.T) {
	dir := t.TempDir()
	d := newTestCache(t, dir, 1<<20, 0)
	d.Put("clip", []byte("data"))

	os.Remove(filepath.Join(dir, fileName("clip")))

	if _, ok := d.Get("clip"); ok {
		t.Error("Get() hit after file removal")
	}
	if d.Contains("clip") {
		t.Error("entry should be dropped after a failed read")
	}
	if d.Stats().Size != 0 {
		t.Errorf("Size = %d, want 0", d.Stats().Size)
	}
}

func TestDisk_DeleteAndClear(t *testing.T) {
	dir := t.TempDir()
	d := newTestCache(t, dir, 1<<20, 0)
	d.Put("a", []byte("1"))
	d.Put("b", []byte("2"))

	if err := d.Delete("a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := d.Delete("a"); err != nil {
		t.Errorf("Delete(missing) error = %v, want nil", err)
	}
	if d.Contains("a") {
		t.Error("a still cached")
	}
	if _, err := os.Stat(filepath.Join(dir, fileName("a"))); !errors.Is(err, os.ErrNotExist) {
		t.Error("a file not removed")
	}

	if err := d.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if s := d.Stats(); s.Items != 0 || s.Size != 0 {
		t.Errorf("Stats() after Clear = %+v", s)
	}
}

func TestDisk_Closed(t *testing.T) {
	d, err := Open(t.TempDir(), 1<<20, 1)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := d.Put("k", []byte("v")); !errors.Is(err, ErrClosed) {
		t.Errorf("Put() error = %v, want ErrClosed", err)
	}
}
