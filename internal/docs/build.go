package docs

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jcdickinson/ferrisdoc/internal/associate"
	"github.com/jcdickinson/ferrisdoc/internal/cas"
	"github.com/jcdickinson/ferrisdoc/internal/index"
	"github.com/jcdickinson/ferrisdoc/internal/model"
	"github.com/jcdickinson/ferrisdoc/internal/tags"
)

// EngineVersion is mixed into result cache keys. Bump it whenever the
// output of ParseFile changes for the same input.
const EngineVersion = "2"

// Options configure the per-file pipeline and the build.
type Options struct {
	GapLimit    int
	BriefPolicy tags.Policy
	Concurrency int        // <= 0 means GOMAXPROCS
	Cache       *cas.Store // nil disables the result cache
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{GapLimit: associate.DefaultGapLimit, BriefPolicy: tags.FirstWins}
}

// Build runs the pipeline over every source and merges the results in input
// order. On cancellation the files finished so far are merged and the
// context error is returned alongside the partial index.
func Build(ctx context.Context, sources []Source, opts Options) (*index.Index, []model.Diagnostic, error) {
	start := time.Now()
	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]*model.FileResult, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fr, cached := parseCached(src, opts)
			slog.Debug("parsed source", "file", src.Path, "module", src.Module,
				"records", len(fr.Records), "diagnostics", len(fr.Diagnostics), "cached", cached)
			results[i] = fr
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	ix := index.New()
	var diags []model.Diagnostic
	merged := 0
	for _, fr := range results {
		if fr == nil {
			continue
		}
		diags = append(diags, fr.Diagnostics...)
		diags = append(diags, ix.Insert(fr)...)
		merged++
	}

	slog.Info("built documentation index", "files", merged, "of", len(sources),
		"records", ix.Len(), "diagnostics", len(diags), "elapsed", time.Since(start))
	return ix, diags, err
}

// cacheKey identifies a source under the options that affect ParseFile.
func cacheKey(src Source, opts Options) string {
	return cas.Key(EngineVersion, strconv.Itoa(opts.GapLimit), opts.BriefPolicy.String(), src.Path, src.Module, src.Content)
}

func parseCached(src Source, opts Options) (*model.FileResult, bool) {
	if opts.Cache == nil {
		return ParseFile(src, opts), false
	}
	key := cacheKey(src, opts)
	if data, err := opts.Cache.Get(key); err == nil {
		var fr model.FileResult
		if err := json.Unmarshal(data, &fr); err == nil {
			return &fr, true
		}
		slog.Warn("discarding corrupt cache entry", "file", src.Path, "key", key)
	}

	fr := ParseFile(src, opts)
	data, err := json.Marshal(fr)
	if err == nil {
		err = opts.Cache.Put(key, data)
	}
	if err != nil {
		slog.Warn("failed to cache parse result", "file", src.Path, "error", err)
	}
	return fr, false
}
