// Package store persists raw page artifacts and run bookkeeping on the
// local filesystem, so interrupted or failed runs resume without refetching.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactStore is a content-addressed store for fetched HTML, keyed by the
// navigation target's hierarchy path (for example
// "ministries/<ministry_id>/page"). A populated store makes re-runs skip the
// network entirely for keys already present.
type ArtifactStore struct {
	baseDir string
}

// NewArtifactStore creates the base directory if needed and verifies it is
// writable.
func NewArtifactStore(baseDir string) (*ArtifactStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(baseDir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, fmt.Errorf("base directory path is not a directory")
		}
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(baseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	default:
		return nil, fmt.Errorf("stat base directory: %w", err)
	}

	testFile := filepath.Join(baseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("clean up writability test file: %w", err)
	}

	return &ArtifactStore{baseDir: baseDir}, nil
}

// Put writes the artifact for key, overwriting any previous content.
func (s *ArtifactStore) Put(key string, html string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(path, []byte(html), 0o600); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// Get returns the artifact for key. A missing key is a cache miss, not an
// error.
func (s *ArtifactStore) Get(key string) (string, bool, error) {
	path, err := s.resolve(key)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read artifact: %w", err)
	}
	return string(data), true, nil
}

// resolve maps a key to a file path under baseDir and rejects traversal.
func (s *ArtifactStore) resolve(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}
	full := filepath.Join(s.baseDir, filepath.FromSlash(key)+".html")
	cleanBase := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(full), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("key escapes base directory")
	}
	return full, nil
}
