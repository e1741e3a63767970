package docs

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jcdickinson/ferrisdoc/internal/discover"
)

// LoadSources reads discovered files into sources. Files larger than
// maxSize bytes are skipped when maxSize is positive.
func LoadSources(root string, entries []discover.FileEntry, maxSize int64) ([]Source, error) {
	sources := make([]Source, 0, len(entries))
	for _, e := range entries {
		if maxSize > 0 && e.Size > maxSize {
			slog.Info("skipping large file", "file", e.Path, "size", e.Size, "max", maxSize)
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(e.Path)))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Path, err)
		}
		sources = append(sources, Source{Path: e.Path, Module: e.Module, Content: string(data)})
	}
	return sources, nil
}
