// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snapshot provides content-addressed archival of source trees.
//
// A key is the hex SHA-256 of the byte contents of every regular file under a
// directory, visited in sorted relative-path order. File names are not part
// of the digest, so two trees holding the same contents under swapped names
// hash identically. That coarseness is kept on purpose: the key identifies
// what a training run executed, and the run's entry points are fixed names.
//
// Snapshots are stored at <root>/<key>/src. Storing an existing key replaces
// its contents. Nothing is ever evicted; retention is the caller's concern.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

var (
	// ErrInvalidKey indicates a key that is not a hex SHA-256 digest.
	ErrInvalidKey = errors.New("invalid snapshot key")

	// ErrNotFound indicates no snapshot is stored under the key.
	ErrNotFound = errors.New("snapshot not found")
)

var keyPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ValidKey returns true if key looks like a digest produced by Hash.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// Hash computes the content key of a directory tree.
//
// Description:
//
//	Walks srcDir, sorts every regular file (symlinks to regular files are
//	followed) by slash-separated relative path, and feeds their bytes into a
//	single SHA-256 digest.
//
// Inputs:
//
//	srcDir - Directory to hash. Must exist.
//
// Outputs:
//
//	string - Lowercase hex digest
//	error - Non-nil if the tree cannot be read
func Hash(srcDir string) (string, error) {
	files, err := listFiles(srcDir)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	for _, rel := range files {
		if err := hashFile(h, filepath.Join(srcDir, filepath.FromSlash(rel))); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// listFiles returns the sorted relative paths of all regular files.
func listFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			info, statErr := os.Stat(path)
			if statErr != nil || !info.Mode().IsRegular() {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// =============================================================================
// STORE
// =============================================================================

// Store archives source trees under their content key.
//
// Thread Safety: Safe for concurrent use on distinct keys. Concurrent stores
// of the same key race on the final rename; both write identical content.
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore creates a store rooted at dir. The directory is created lazily.
func NewStore(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: root, logger: logger}
}

// Root returns the directory holding all snapshots.
func (s *Store) Root() string {
	return s.root
}

// Path returns where the source tree for key is (or would be) stored.
func (s *Store) Path(key string) (string, error) {
	if !ValidKey(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.root, key, "src"), nil
}

// Has returns true if a snapshot exists for key.
func (s *Store) Has(key string) bool {
	path, err := s.Path(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Snapshot hashes srcDir and stores it under the resulting key.
//
// Outputs:
//
//	string - The content key
//	error - Non-nil on hashing or copy failure
func (s *Store) Snapshot(srcDir string) (string, error) {
	key, err := Hash(srcDir)
	if err != nil {
		return "", err
	}
	if err := s.Store(srcDir, key); err != nil {
		return "", err
	}
	return key, nil
}

// Store copies srcDir verbatim under key, replacing any prior contents.
//
// Description:
//
//	The copy is written to a temporary sibling directory and renamed into
//	place, so readers never observe a half-written snapshot.
func (s *Store) Store(srcDir, key string) error {
	target, err := s.Path(key)
	if err != nil {
		return err
	}
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.MkdirTemp(parent, ".src-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	staged := filepath.Join(tmp, "src")
	if err := CopyTree(srcDir, staged); err != nil {
		return err
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("remove previous snapshot: %w", err)
	}
	if err := os.Rename(staged, target); err != nil {
		return fmt.Errorf("install snapshot: %w", err)
	}

	s.logger.Debug("Stored snapshot",
		slog.String("key", key),
		slog.String("path", target),
	)
	return nil
}

// Restore replaces dst with the snapshot stored under key.
func (s *Store) Restore(key, dst string) error {
	src, err := s.Path(key)
	if err != nil {
		return err
	}
	if !s.Has(key) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	tmp := dst + ".restore"
	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("clear restore staging: %w", err)
	}
	if err := CopyTree(src, tmp); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	if err := os.RemoveAll(dst); err != nil {
		os.RemoveAll(tmp)
		return fmt.Errorf("remove %s: %w", dst, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("install restored tree: %w", err)
	}

	s.logger.Info("Restored snapshot",
		slog.String("key", key),
		slog.String("dst", dst),
	)
	return nil
}

// Keys lists stored snapshot keys in sorted order.
func (s *Store) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot root: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() && s.Has(e.Name()) {
			keys = append(keys, e.Name())
		}
	}
	return keys, nil
}
