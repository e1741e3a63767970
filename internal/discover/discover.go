// Package discover finds Rust source files in a crate and derives the module
// path each file defines.
package discover

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/jcdickinson/ferrisdoc/internal/model"
)

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path   string // Relative to the crate root, slash separated
	Module string
	Size   int64
}

var skipDirs = map[string]struct{}{
	"target":       {},
	"node_modules": {},
	".git":         {},
	".hg":          {},
	".svn":         {},
	"vendor":       {},
	"build":        {},
	"dist":         {},
}

// Files discovers .rs files under root. crate names the crate root module.
func Files(root, crate string) ([]FileEntry, error) {
	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}

	var results []FileEntry

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") || filepath.Ext(name) != ".rs" {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if gitFiles != nil {
			if _, ok := gitFiles[rel]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		var size int64
		if info, err := d.Info(); err == nil {
			size = info.Size()
		}

		results = append(results, FileEntry{Path: rel, Module: ModulePath(rel, crate), Size: size})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

// ModulePath derives the module a file defines from its slash-separated path
// relative to the crate root.
//
//	src/lib.rs, src/main.rs   -> crate
//	src/a.rs, src/a/mod.rs    -> crate::a
//	src/a/b.rs                -> crate::a::b
//	src/bin/x.rs, src/bin/x/main.rs -> x
//	tests/x.rs, examples/x.rs, benches/x.rs -> x
//
// Files outside these layouts are treated as if they lived under src.
func ModulePath(rel, crate string) string {
	rel = strings.TrimSuffix(filepath.ToSlash(rel), ".rs")
	segs := strings.Split(rel, "/")

	root := crate
	switch {
	case len(segs) >= 3 && segs[0] == "src" && segs[1] == "bin":
		root, segs = segs[2], segs[3:]
	case len(segs) >= 2 && (segs[0] == "tests" || segs[0] == "examples" || segs[0] == "benches"):
		root, segs = segs[1], segs[2:]
	case len(segs) >= 1 && segs[0] == "src":
		segs = segs[1:]
	}

	if n := len(segs); n > 0 {
		last := segs[n-1]
		switch {
		case last == "mod":
			segs = segs[:n-1]
		case n == 1 && (last == "lib" || last == "main"):
			segs = nil
		}
	}

	module := root
	for _, s := range segs {
		module = model.JoinPath(module, s)
	}
	return module
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
