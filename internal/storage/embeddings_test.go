package storage

import (
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/regclause/internal/vector"
)

func TestEmbeddingCache_roundTrip(t *testing.T) {
	c := NewEmbeddingCache(filepath.Join(t.TempDir(), "data", "embeddings.bin"))
	m, err := vector.NewMatrix(3, [][]float32{{1, 0, 0}, {0, 0.6, 0.8}})
	if err != nil {
		t.Fatal(err)
	}
	fp := Fingerprint(sha256.Sum256([]byte("clauses")))
	if err := c.Save(m, fp); err != nil {
		t.Fatal(err)
	}
	got, gotFP, err := c.Load()
	if err != nil {
		t.Fatal(err)
	}
	if gotFP != fp {
		t.Error("fingerprint mismatch")
	}
	if got.Rows() != 2 || got.Dim() != 3 {
		t.Fatalf("shape %dx%d", got.Rows(), got.Dim())
	}
	if r := got.Row(1); r[1] != 0.6 || r[2] != 0.8 {
		t.Errorf("Row(1) = %v", r)
	}
}

func TestEmbeddingCache_zeroRows(t *testing.T) {
	c := NewEmbeddingCache(filepath.Join(t.TempDir(), "embeddings.bin"))
	m, _ := vector.NewMatrix(8, nil)
	if err := c.Save(m, Fingerprint{}); err != nil {
		t.Fatal(err)
	}
	got, _, err := c.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.Rows() != 0 || got.Dim() != 8 {
		t.Errorf("shape %dx%d", got.Rows(), got.Dim())
	}
}

func TestEmbeddingCache_missAndRemove(t *testing.T) {
	c := NewEmbeddingCache(filepath.Join(t.TempDir(), "embeddings.bin"))
	if _, _, err := c.Load(); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss, got %v", err)
	}
	if err := c.Remove(); err != nil {
		t.Errorf("Remove of missing file: %v", err)
	}
	m, _ := vector.NewMatrix(2, [][]float32{{1, 0}})
	if err := c.Save(m, Fingerprint{}); err != nil {
		t.Fatal(err)
	}
	if err := c.Remove(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(c.Path()); !os.IsNotExist(err) {
		t.Errorf("cache file still present: %v", err)
	}
}

func TestEmbeddingCache_corrupt(t *testing.T) {
	dir := t.TempDir()
	good := NewEmbeddingCache(filepath.Join(dir, "good.bin"))
	m, _ := vector.NewMatrix(2, [][]float32{{1, 0}, {0, 1}})
	if err := good.Save(m, Fingerprint{}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(good.Path())
	if err != nil {
		t.Fatal(err)
	}

	tests := map[string][]byte{
		"empty":     {},
		"bad magic": append([]byte("XXXX"), data[4:]...),
		"truncated": data[:len(data)-3],
		"trailing":  append(append([]byte{}, data...), 0, 0, 0, 0),
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".bin")
			if err := os.WriteFile(path, content, 0644); err != nil {
				t.Fatal(err)
			}
			if _, _, err := NewEmbeddingCache(path).Load(); !errors.Is(err, ErrCacheCorrupt) {
				t.Errorf("expected ErrCacheCorrupt, got %v", err)
			}
		})
	}
}
