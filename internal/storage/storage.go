// Package storage persists the clause index and embedding caches.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hyperjump/regclause/internal/config"
	"github.com/hyperjump/regclause/internal/models"
)

var (
	// ErrCacheMiss means no cache has been written yet.
	ErrCacheMiss = errors.New("cache miss")
	// ErrCacheCorrupt means a cache exists but cannot be parsed or fails its shape checks.
	ErrCacheCorrupt = errors.New("cache corrupt")
)

// ClauseCache persists a full clause snapshot.
type ClauseCache interface {
	// Load returns the cached clauses in index order. It returns an error wrapping
	// ErrCacheMiss when nothing is cached and ErrCacheCorrupt when the cache is unusable.
	Load(ctx context.Context) ([]models.Clause, error)
	// Save replaces the cached snapshot.
	Save(ctx context.Context, clauses []models.Clause) error
	// Path returns the backing file path.
	Path() string
	Close() error
}

// NewClauseCache opens the clause cache for the configured backend. A SQLite file
// that is not a usable database is removed and recreated.
func NewClauseCache(cfg config.StorageConfig) (ClauseCache, error) {
	switch cfg.Backend {
	case config.BackendJSON, "":
		return NewJSONClauseCache(cfg.IndexPath), nil
	case config.BackendSQLite:
		c, err := NewSQLiteClauseCache(cfg.IndexPath)
		if errors.Is(err, ErrCacheCorrupt) {
			// An unreadable database is disposable: start over with an empty one.
			if rmErr := os.Remove(cfg.IndexPath); rmErr != nil {
				return nil, err
			}
			return NewSQLiteClauseCache(cfg.IndexPath)
		}
		return c, err
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// validateClauses rejects a snapshot containing partial records.
func validateClauses(clauses []models.Clause) error {
	for i := range clauses {
		if err := clauses[i].Validate(); err != nil {
			return fmt.Errorf("%w: clause %d: %v", ErrCacheCorrupt, i, err)
		}
	}
	return nil
}
