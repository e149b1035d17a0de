package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/hyperjump/regclause/internal/models"
)

// JSONClauseCache stores the clause snapshot as a JSON array file.
type JSONClauseCache struct {
	path string
}

// NewJSONClauseCache returns a cache backed by the JSON file at path.
func NewJSONClauseCache(path string) *JSONClauseCache {
	return &JSONClauseCache{path: path}
}

// Load reads and validates the snapshot.
func (c *JSONClauseCache) Load(_ context.Context) ([]models.Clause, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCacheMiss, c.path)
		}
		return nil, fmt.Errorf("read index cache: %w", err)
	}
	var clauses []models.Clause
	if err := json.Unmarshal(data, &clauses); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCacheCorrupt, c.path, err)
	}
	if err := validateClauses(clauses); err != nil {
		return nil, err
	}
	return clauses, nil
}

// Save writes the snapshot atomically.
func (c *JSONClauseCache) Save(_ context.Context, clauses []models.Clause) error {
	if clauses == nil {
		clauses = []models.Clause{}
	}
	return writeFileAtomic(c.path, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		enc := json.NewEncoder(bw)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(clauses); err != nil {
			return fmt.Errorf("encode index cache: %w", err)
		}
		return bw.Flush()
	})
}

// Path returns the JSON file path.
func (c *JSONClauseCache) Path() string { return c.path }

// Close is a no-op.
func (c *JSONClauseCache) Close() error { return nil }
