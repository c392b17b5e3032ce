package store

import (
	"path/filepath"
	"testing"

	"guardrail/internal/engine/parser"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "analyses.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleAnalysis(path string) *parser.File {
	return &parser.File{
		Path:     path,
		Language: "typescript",
		Definitions: []parser.Definition{
			{Name: "run", Kind: parser.KindFunction, Exported: true},
		},
	}
}

func TestContentHashStable(t *testing.T) {
	a := ContentHash([]byte("package main"))
	b := ContentHash([]byte("package main"))
	if a != b {
		t.Error("identical content must hash identically")
	}
	if a == ContentHash([]byte("package other")) {
		t.Error("different content must hash differently")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)

	hash := ContentHash([]byte("source"))
	if err := s.Put("src/app.ts", hash, sampleAnalysis("src/app.ts")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	file, ok, err := s.Get("src/app.ts", hash)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if file.Path != "src/app.ts" || len(file.Definitions) != 1 {
		t.Errorf("round-tripped analysis mangled: %+v", file)
	}
}

func TestStoreMissOnChangedContent(t *testing.T) {
	s := openTestStore(t)

	oldHash := ContentHash([]byte("v1"))
	if err := s.Put("src/app.ts", oldHash, sampleAnalysis("src/app.ts")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	_, ok, err := s.Get("src/app.ts", ContentHash([]byte("v2")))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("changed content must miss the cache")
	}
}

func TestStoreReplaceAndEvict(t *testing.T) {
	s := openTestStore(t)

	h1 := ContentHash([]byte("v1"))
	h2 := ContentHash([]byte("v2"))
	if err := s.Put("src/app.ts", h1, sampleAnalysis("src/app.ts")); err != nil {
		t.Fatalf("Put v1: %v", err)
	}
	if err := s.Put("src/app.ts", h2, sampleAnalysis("src/app.ts")); err != nil {
		t.Fatalf("Put v2: %v", err)
	}

	if _, ok, _ := s.Get("src/app.ts", h1); ok {
		t.Error("old revision should have been replaced")
	}
	if _, ok, _ := s.Get("src/app.ts", h2); !ok {
		t.Error("new revision should hit")
	}

	if err := s.Evict("src/app.ts"); err != nil {
		t.Fatalf("Evict: %v", err)
	}
	if _, ok, _ := s.Get("src/app.ts", h2); ok {
		t.Error("evicted path should miss")
	}
}

func TestNoopStore(t *testing.T) {
	var s AnalysisStore = NoopStore{}
	if err := s.Put("x", "h", sampleAnalysis("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok, _ := s.Get("x", "h"); ok {
		t.Error("NoopStore never hits")
	}
}
