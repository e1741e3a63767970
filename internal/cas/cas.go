// Package cas is a zstd-compressed, key-addressed store for cached parse
// results.
package cas

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Store keeps entries under a directory, sharded by key prefix.
type Store struct {
	dir string
}

// New returns a store rooted at dir. The directory is created lazily.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Key hashes the given parts into a store key. Parts are length-prefixed so
// different splits of the same bytes never collide.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:", len(p))
		io.WriteString(h, p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// path returns the sharded file path for a key: <dir>/<first2>/<rest>.json.zst
func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key[:2], key[2:]+".json.zst")
}

// Put compresses and stores data under key, replacing any previous entry.
func (s *Store) Put(key string, data []byte) error {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("compressing cache entry: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing zstd writer: %w", err)
	}

	// write then rename so concurrent readers never see a partial entry
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming cache file: %w", err)
	}
	return nil
}

// Get retrieves the entry stored under key. A missing entry yields an error
// wrapping os.ErrNotExist.
func (s *Store) Get(key string) ([]byte, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("reading cache entry %s: %w", key, err)
	}
	defer f.Close()

	r, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing cache entry %s: %w", key, err)
	}
	return data, nil
}

// Clear removes every entry.
func (s *Store) Clear() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("removing cache directory: %w", err)
	}
	return nil
}
