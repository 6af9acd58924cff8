package sqlite3

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/neilalexander/yggpost/internal/storage/types"
)

func openStorage(t *testing.T) *SQLite3Storage {
	t.Helper()
	s, err := NewSQLite3Storage(filepath.Join(t.TempDir(), "yggpost.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHistorySaveLoad(t *testing.T) {
	ctx := context.Background()
	s := openStorage(t)

	if _, ok, err := s.Load(ctx, "relay"); err != nil || ok {
		t.Fatalf("Load() on empty database = ok %v, err %v", ok, err)
	}

	records := []types.Record{
		{ID: 1, From: "a", To: "b", Content: "hi", Read: true},
		{ID: 2, From: "b", To: "a", Content: "line one\nline two"},
		{ID: 7, From: "a", To: "a", Content: "note"},
	}
	if err := s.Save(ctx, "relay", records); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Load(ctx, "relay")
	if err != nil || !ok {
		t.Fatalf("Load() = ok %v, err %v", ok, err)
	}
	if !reflect.DeepEqual(got, records) {
		t.Fatalf("Load() = %v, want %v", got, records)
	}

	// A second save replaces the first.
	if err := s.Save(ctx, "relay", records[:1]); err != nil {
		t.Fatal(err)
	}
	got, _, _ = s.Load(ctx, "relay")
	if !reflect.DeepEqual(got, records[:1]) {
		t.Fatalf("Load() after replace = %v, want %v", got, records[:1])
	}
}

func TestHistoryEmptySnapshotIsPresent(t *testing.T) {
	ctx := context.Background()
	s := openStorage(t)
	if err := s.Save(ctx, "relay", nil); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Load(ctx, "relay")
	if err != nil || !ok || len(got) != 0 {
		t.Fatalf("Load() = %v, ok %v, err %v", got, ok, err)
	}
}

func TestHistoryIdentitiesAreSeparate(t *testing.T) {
	ctx := context.Background()
	s := openStorage(t)
	one := []types.Record{{ID: 1, From: "a", To: "b", Content: "one"}}
	two := []types.Record{{ID: 1, From: "c", To: "d", Content: "two"}}
	if err := s.Save(ctx, "one", one); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "two", two); err != nil {
		t.Fatal(err)
	}
	if err := s.Erase(ctx, "one"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Load(ctx, "one"); ok {
		t.Fatal("snapshot still present after Erase")
	}
	got, ok, err := s.Load(ctx, "two")
	if err != nil || !ok || !reflect.DeepEqual(got, two) {
		t.Fatalf("Load(two) = %v, ok %v, err %v", got, ok, err)
	}
	// Erasing again is fine.
	if err := s.Erase(ctx, "one"); err != nil {
		t.Fatalf("second Erase() = %v", err)
	}
}

func TestHistorySurvivesReopen(t *testing.T) {
	ctx := context.Background()
	filename := filepath.Join(t.TempDir(), "yggpost.db")
	s, err := NewSQLite3Storage(filename)
	if err != nil {
		t.Fatal(err)
	}
	records := []types.Record{{ID: 3, From: "a", To: "b", Content: "kept"}}
	if err := s.Save(ctx, "relay", records); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = NewSQLite3Storage(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, ok, err := s.Load(ctx, "relay")
	if err != nil || !ok || !reflect.DeepEqual(got, records) {
		t.Fatalf("Load() after reopen = %v, ok %v, err %v", got, ok, err)
	}
}

func TestConfigPassword(t *testing.T) {
	s := openStorage(t)
	if ok, err := s.ConfigTryPassword("secret"); err != nil || ok {
		t.Fatalf("ConfigTryPassword() with no password = %v, %v", ok, err)
	}
	if err := s.ConfigSetPassword("secret"); err != nil {
		t.Fatal(err)
	}
	if ok, err := s.ConfigTryPassword("secret"); err != nil || !ok {
		t.Fatalf("ConfigTryPassword(secret) = %v, %v", ok, err)
	}
	if ok, err := s.ConfigTryPassword("wrong"); err != nil || ok {
		t.Fatalf("ConfigTryPassword(wrong) = %v, %v", ok, err)
	}
}

func TestConfigGetSet(t *testing.T) {
	s := openStorage(t)
	if v, err := s.ConfigGet("private_key"); err != nil || v != "" {
		t.Fatalf("ConfigGet() on empty table = %q, %v", v, err)
	}
	if err := s.ConfigSet("private_key", "abc"); err != nil {
		t.Fatal(err)
	}
	if v, err := s.ConfigGet("private_key"); err != nil || v != "abc" {
		t.Fatalf("ConfigGet() = %q, %v", v, err)
	}
}
