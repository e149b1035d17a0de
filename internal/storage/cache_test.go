package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/regclause/internal/config"
	"github.com/hyperjump/regclause/internal/models"
)

var sampleClauses = []models.Clause{
	{Source: "Doc A", Filename: "a.pdf", Page: 1, Reference: "Article 1: Scope", Text: "This regulation applies to all entities processing personal data."},
	{Source: "Doc B", Filename: "b.pdf", Page: 4, Reference: "1-2-3", Text: "Organizations shall restrict access to critical systems <need-to-know>."},
}

func clauseCaches(t *testing.T) map[string]ClauseCache {
	t.Helper()
	dir := t.TempDir()
	sq, err := NewSQLiteClauseCache(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]ClauseCache{
		"json":   NewJSONClauseCache(filepath.Join(dir, "nested", "index.json")),
		"sqlite": sq,
	}
}

func TestClauseCache_roundTrip(t *testing.T) {
	ctx := context.Background()
	for name, c := range clauseCaches(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := c.Load(ctx); !errors.Is(err, ErrCacheMiss) {
				t.Fatalf("expected ErrCacheMiss before save, got %v", err)
			}
			if err := c.Save(ctx, sampleClauses); err != nil {
				t.Fatal(err)
			}
			got, err := c.Load(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(sampleClauses) {
				t.Fatalf("got %d clauses", len(got))
			}
			for i := range got {
				if got[i] != sampleClauses[i] {
					t.Errorf("clause %d = %+v, want %+v", i, got[i], sampleClauses[i])
				}
			}

			// A smaller snapshot fully replaces the previous one.
			if err := c.Save(ctx, sampleClauses[1:]); err != nil {
				t.Fatal(err)
			}
			got, err = c.Load(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 || got[0].Reference != "1-2-3" {
				t.Errorf("snapshot not replaced: %+v", got)
			}
		})
	}
}

func TestClauseCache_emptySnapshot(t *testing.T) {
	ctx := context.Background()
	for name, c := range clauseCaches(t) {
		t.Run(name, func(t *testing.T) {
			if err := c.Save(ctx, nil); err != nil {
				t.Fatal(err)
			}
			got, err := c.Load(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 0 {
				t.Errorf("expected empty snapshot, got %+v", got)
			}
		})
	}
}

func TestJSONClauseCache_corrupt(t *testing.T) {
	tests := map[string]string{
		"not json":       "{this is not json",
		"wrong shape":    `{"source": "x"}`,
		"partial record": `[{"source": "Doc A", "filename": "a.pdf", "page": 0, "reference": "r", "text": "t"}]`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "index.json")
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := NewJSONClauseCache(path).Load(context.Background())
			if !errors.Is(err, ErrCacheCorrupt) {
				t.Errorf("expected ErrCacheCorrupt, got %v", err)
			}
		})
	}
}

func TestJSONClauseCache_noTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	c := NewJSONClauseCache(filepath.Join(dir, "index.json"))
	if err := c.Save(context.Background(), sampleClauses); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "index.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("unexpected directory contents %v", names)
	}
}

func TestNewClauseCache(t *testing.T) {
	dir := t.TempDir()
	c, err := NewClauseCache(config.StorageConfig{Backend: config.BackendJSON, IndexPath: filepath.Join(dir, "i.json")})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*JSONClauseCache); !ok {
		t.Errorf("expected JSONClauseCache, got %T", c)
	}

	c, err = NewClauseCache(config.StorageConfig{Backend: config.BackendSQLite, IndexPath: filepath.Join(dir, "i.db")})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, ok := c.(*SQLiteClauseCache); !ok {
		t.Errorf("expected SQLiteClauseCache, got %T", c)
	}

	if _, err := NewClauseCache(config.StorageConfig{Backend: "redis"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestNewClauseCache_recreatesCorruptSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	if err := os.WriteFile(path, []byte("definitely not a sqlite database, just some bytes padding it out"), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := NewClauseCache(config.StorageConfig{Backend: config.BackendSQLite, IndexPath: path})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, err := c.Load(context.Background()); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss from recreated cache, got %v", err)
	}
}
