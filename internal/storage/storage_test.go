package storage_test

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/Tiliavir/fleet-timesheet/internal/storage"
)

func TestFileStoreGetNotExist(t *testing.T) {
	s := storage.NewFileStore(t.TempDir())
	_, err := s.Get("missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get on missing key: err = %v, want ErrNotFound", err)
	}
}

func TestFileStoreSetAndGet(t *testing.T) {
	dir := t.TempDir()
	s := storage.NewFileStore(filepath.Join(dir, "nested"))

	if err := s.Set("timesheet-assignments-ABC123", []byte(`[["1",{"userId":"u1"}]]`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get("timesheet-assignments-ABC123")
	if err != nil {
		t.Fatalf("Get after set: %v", err)
	}
	if string(got) != `[["1",{"userId":"u1"}]]` {
		t.Errorf("Get = %s", got)
	}

	// No temp file is left behind by the atomic write.
	if _, err := os.Stat(filepath.Join(dir, "nested", "timesheet-assignments-ABC123.json.tmp")); !os.IsNotExist(err) {
		t.Error("temp file should not exist after Set")
	}
}

func TestFileStoreCorruptIsBackedUp(t *testing.T) {
	dir := t.TempDir()
	s := storage.NewFileStore(dir)

	path := filepath.Join(dir, "vehicles.json")
	if err := os.WriteFile(path, []byte("{bad json"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := s.Get("vehicles")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get on corrupt file: err = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(path + ".corrupt"); os.IsNotExist(err) {
		t.Error("expected backup file to exist after corrupt JSON")
	}
}

func TestFileStoreKeyCannotEscape(t *testing.T) {
	dir := t.TempDir()
	s := storage.NewFileStore(filepath.Join(dir, "store"))

	if err := s.Set("../outside", []byte(`{}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "outside.json")); !os.IsNotExist(err) {
		t.Error("key escaped the store directory")
	}
}

func TestFileStoreDistinctKeysDistinctFiles(t *testing.T) {
	s := storage.NewFileStore(t.TempDir())

	keys := []string{"timesheet-assignments-AB/C", "timesheet-assignments-AB_C", `timesheet-assignments-AB\C`, "timesheet-assignments-AB%2FC"}
	for i, key := range keys {
		if err := s.Set(key, []byte(strconv.Itoa(i))); err != nil {
			t.Fatalf("Set(%q): %v", key, err)
		}
	}
	for i, key := range keys {
		got, err := s.Get(key)
		if err != nil {
			t.Fatalf("Get(%q): %v", key, err)
		}
		if string(got) != strconv.Itoa(i) {
			t.Errorf("Get(%q) = %s, want %d", key, got, i)
		}
	}
}

func TestFileStoreDeleteAndClear(t *testing.T) {
	s := storage.NewFileStore(t.TempDir())

	for _, k := range []string{"a", "b", "c"} {
		if err := s.Set(k, []byte(`1`)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete("a"); err != nil {
		t.Fatalf("Delete of missing key: %v", err)
	}
	if _, err := s.Get("a"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("a still present after Delete")
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	for _, k := range []string{"b", "c"} {
		if _, err := s.Get(k); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("%s still present after Clear", k)
		}
	}
}

func TestMemoryStore(t *testing.T) {
	s := storage.NewMemoryStore()

	value := []byte(`{"x":1}`)
	if err := s.Set("k", value); err != nil {
		t.Fatal(err)
	}
	value[2] = 'y' // stored copy must not alias the caller's slice

	got, err := s.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"x":1}` {
		t.Errorf("Get = %s, want {\"x\":1}", got)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}

	_ = s.Clear()
	if _, err := s.Get("k"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("k still present after Clear")
	}
}

func TestReadWriteJSON(t *testing.T) {
	s := storage.NewMemoryStore()
	type record struct {
		Name string `json:"name"`
	}

	if err := storage.WriteJSON(s, "r", record{Name: "van"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var got record
	if err := storage.ReadJSON(s, "r", &got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.Name != "van" {
		t.Errorf("Name = %q, want %q", got.Name, "van")
	}

	if err := s.Set("bad", []byte("nope")); err != nil {
		t.Fatal(err)
	}
	if err := storage.ReadJSON(s, "bad", &got); err == nil {
		t.Error("ReadJSON on invalid JSON: expected error")
	}
}
