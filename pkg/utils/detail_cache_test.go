package utils

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestDetailCache(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "detail-cache")
	cache, err := OpenDetailCache(dbPath)
	if err != nil {
		t.Fatalf("Failed to open DetailCache: %v", err)
	}

	testDetailCacheBasic(t, cache)
	testDetailCacheDelete(t, cache)

	if err := cache.Close(); err != nil {
		t.Fatalf("Failed to close cache: %v", err)
	}

	testDetailCachePersistence(t, dbPath)
}

func testDetailCacheBasic(t *testing.T, cache *DetailCache) {
	if _, ok := cache.Get(1); ok {
		t.Error("Get on empty cache should miss")
	}

	want := []byte(`{"id":1,"message":"hello"}`)
	if err := cache.Put(1, want); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, ok := cache.Get(1)
	if !ok {
		t.Fatal("Get after Put missed")
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Get returned %q, want %q", got, want)
	}

	// Overwrite replaces the stored value.
	want = []byte(`{"id":1,"message":"edited"}`)
	if err := cache.Put(1, want); err != nil {
		t.Fatalf("Put overwrite failed: %v", err)
	}
	got, ok = cache.Get(1)
	if !ok || !bytes.Equal(got, want) {
		t.Errorf("Get after overwrite returned %q (ok=%v), want %q", got, ok, want)
	}
}

func testDetailCacheDelete(t *testing.T, cache *DetailCache) {
	if err := cache.Put(2, []byte("two")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := cache.Delete(2); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := cache.Get(2); ok {
		t.Error("Get after Delete should miss")
	}

	// Deleting an absent key is not an error.
	if err := cache.Delete(99); err != nil {
		t.Errorf("Delete of missing key failed: %v", err)
	}
}

func testDetailCachePersistence(t *testing.T, dbPath string) {
	cache, err := OpenDetailCache(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen DetailCache: %v", err)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			t.Logf("Error closing cache: %v", err)
		}
	}()

	got, ok := cache.Get(1)
	if !ok {
		t.Fatal("value did not survive reopen")
	}
	if want := []byte(`{"id":1,"message":"edited"}`); !bytes.Equal(got, want) {
		t.Errorf("reopened Get returned %q, want %q", got, want)
	}
	if _, ok := cache.Get(2); ok {
		t.Error("deleted value reappeared after reopen")
	}
}
