package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTemp(t *testing.T, limit int) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "riser_tts_history.json")
	s, err := Open(path, limit, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s, path
}

func TestStore_AddPrepends(t *testing.T) {
	s, _ := openTemp(t, 0)

	clock := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time { return clock }

	first, err := s.Add("Believe it!", "Kore", "en")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	clock = clock.Add(time.Second)
	second, err := s.Add("Train harder.", "Fenrir", "ja")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if first.ID == "" || first.ID == second.ID {
		t.Errorf("ids = %q, %q, want distinct non-empty", first.ID, second.ID)
	}
	if first.Timestamp != 1_700_000_000_000 {
		t.Errorf("Timestamp = %d", first.Timestamp)
	}
	if !first.Time().Equal(time.UnixMilli(1_700_000_000_000)) {
		t.Errorf("Time() = %v", first.Time())
	}

	items := s.List()
	if len(items) != 2 || items[0].ID != second.ID || items[1].ID != first.ID {
		t.Errorf("List() = %+v, want newest first", items)
	}
}

func TestStore_Limit(t *testing.T) {
	s, path := openTemp(t, 3)

	var ids []string
	for i := 0; i < 5; i++ {
		item, err := s.Add(fmt.Sprintf("line %d", i), "Kore", "en")
		if err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		ids = append(ids, item.ID)
	}

	items := s.List()
	if len(items) != 3 {
		t.Fatalf("len(List()) = %d, want 3", len(items))
	}
	for i, want := range []string{ids[4], ids[3], ids[2]} {
		if items[i].ID != want {
			t.Errorf("items[%d] = %s, want %s", i, items[i].ID, want)
		}
	}

	reopened, err := Open(path, 3, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if reopened.Len() != 3 {
		t.Errorf("reopened Len() = %d, want 3", reopened.Len())
	}
}

func TestStore_DefaultLimit(t *testing.T) {
	s, _ := openTemp(t, 0)
	for i := 0; i < DefaultLimit+5; i++ {
		if _, err := s.Add("x", "Kore", "en"); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	if s.Len() != DefaultLimit {
		t.Errorf("Len() = %d, want %d", s.Len(), DefaultLimit)
	}
}

func TestStore_Persistence(t *testing.T) {
	s, path := openTemp(t, 0)
	item, err := s.Add("Concentrate your energy.", "Charon", "hi")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("history file is not a JSON array: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("len = %d, want 1", len(raw))
	}
	for _, key := range []string{"id", "text", "timestamp", "voice", "language"} {
		if _, ok := raw[0][key]; !ok {
			t.Errorf("item missing key %q", key)
		}
	}

	reopened, err := Open(path, 0, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	got, err := reopened.Get(item.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != item {
		t.Errorf("Get() = %+v, want %+v", got, item)
	}

	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temp file left behind: %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	s, path := openTemp(t, 0)
	a, _ := s.Add("a", "Kore", "en")
	b, _ := s.Add("b", "Kore", "en")

	if err := s.Delete(a.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(deleted) error = %v, want ErrNotFound", err)
	}

	reopened, _ := Open(path, 0, testLogger())
	items := reopened.List()
	if len(items) != 1 || items[0].ID != b.ID {
		t.Errorf("reopened List() = %+v", items)
	}
}

func TestStore_Clear(t *testing.T) {
	s, path := openTemp(t, 0)
	s.Add("a", "Kore", "en")
	s.Add("b", "Zephyr", "hinglish")

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}

	data, _ := os.ReadFile(path)
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("file = %q, want []", data)
	}
}

func TestOpen_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	s, err := Open(path, 0, logger)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
	if !strings.Contains(logs.String(), "failed to parse history") {
		t.Errorf("logs = %q, want parse failure", logs.String())
	}

	// The store is still usable and overwrites the corrupt file.
	if _, err := s.Add("fresh", "Kore", "en"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	reopened, _ := Open(path, 0, testLogger())
	if reopened.Len() != 1 {
		t.Errorf("reopened Len() = %d, want 1", reopened.Len())
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "history.json")
	s, err := Open(path, 0, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := s.Add("a", "Kore", "en"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
}

func TestStore_Concurrent(t *testing.T) {
	s, _ := openTemp(t, 10)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Add(fmt.Sprintf("line %d", i), "Kore", "en")
			s.List()
		}(i)
	}
	wg.Wait()

	if s.Len() != 10 {
		t.Errorf("Len() = %d, want 10", s.Len())
	}
}

func TestStore_ListIsCopy(t *testing.T) {
	s, _ := openTemp(t, 0)
	s.Add("a", "Kore", "en")

	items := s.List()
	items[0].Text = "mutated"

	if s.List()[0].Text != "a" {
		t.Error("List() returned shared backing storage")
	}
}
