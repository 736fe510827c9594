// Package cache is a content-addressed disk store shared by the download
// and extraction stages.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/singleflight"
)

// FetchFunc produces the payload for a cache miss.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Store persists fetch results keyed by content hash, namespaced per
// producing stage so a stage's logic version bump invalidates only that
// stage's entries.
//
// Layout on disk:
//
//	{dir}/{stage}/{hash[0:2]}/{hash}
type Store struct {
	dir   string
	group singleflight.Group
}

// New creates a cache store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Key computes the content hash for a source + origin identifier pair.
func Key(source, originID string) string {
	return HashBytes([]byte(source + "\x00" + originID))
}

// HashBytes returns the hex SHA-256 of the given bytes.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// GetOrFetch returns the cached payload for (stage, key), invoking fetch on
// a miss and persisting the result. Concurrent callers for the same
// in-flight (stage, key) share one fetch; the second caller waits for the
// first's result instead of duplicating the underlying call.
//
// The returned bool reports whether the payload came from cache.
func (s *Store) GetOrFetch(ctx context.Context, stage, key string, fetch FetchFunc) ([]byte, bool, error) {
	path := s.entryPath(stage, key)

	if data, err := os.ReadFile(path); err == nil {
		return data, true, nil
	}

	v, err, _ := s.group.Do(stage+"/"+key, func() (any, error) {
		// Re-check under the flight: a racing caller may have persisted
		// the entry between our miss and the group admitting us.
		if data, err := os.ReadFile(path); err == nil {
			return data, nil
		}

		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.persist(path, data); err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}

// has reports whether an entry exists for (stage, key).
func (s *Store) has(stage, key string) bool {
	_, err := os.Stat(s.entryPath(stage, key))
	return err == nil
}

// Put stores a payload directly, bypassing the fetch path. Used by stages
// that compute derived content (extraction) rather than fetching it.
func (s *Store) Put(stage, key string, data []byte) error {
	return s.persist(s.entryPath(stage, key), data)
}

// Get returns a cached payload, or nil when absent.
func (s *Store) Get(stage, key string) []byte {
	data, err := os.ReadFile(s.entryPath(stage, key))
	if err != nil {
		return nil
	}
	return data
}

// persist writes atomically via rename so a crashed run never leaves a
// half-written entry that a resume would trust.
func (s *Store) persist(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache entry directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("committing cache entry: %w", err)
	}
	return nil
}

func (s *Store) entryPath(stage, key string) string {
	return filepath.Join(s.dir, stage, key[:2], key)
}
