package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/ferrisdoc/internal/cas"
	"github.com/jcdickinson/ferrisdoc/internal/config"
	"github.com/jcdickinson/ferrisdoc/internal/discover"
	"github.com/jcdickinson/ferrisdoc/internal/docs"
	"github.com/jcdickinson/ferrisdoc/internal/index"
	"github.com/jcdickinson/ferrisdoc/internal/markdown"
	"github.com/jcdickinson/ferrisdoc/internal/model"
)

var scanCmd = &cobra.Command{
	Use:   "scan [root]",
	Short: "Extract documentation from a Rust source tree",
	Long: `Discover the .rs files under root (default "."), extract their documentation,
report diagnostics on stderr, store the index for get/tree/search/mcp and print
the rendered documentation. root may also be a single .rs file.`,
	Example: `  ferrisdoc scan
  ferrisdoc scan --crate mylib --format html -o docs.html ./mylib
  ferrisdoc scan --strict --format json src/lib.rs`,
	Args: cobra.MaximumNArgs(1),
	Run:  runScan,
}

var (
	scanFormat      string
	scanOutput      string
	scanCrate       string
	scanStrict      bool
	scanNoCache     bool
	scanNoSave      bool
	scanFrontMatter bool
)

func init() {
	scanCmd.Flags().StringVar(&scanFormat, "format", "md", "output format: md, html or json")
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "", "write output to a file instead of stdout")
	scanCmd.Flags().StringVar(&scanCrate, "crate", "", "crate root module name (default from config, \"crate\")")
	scanCmd.Flags().BoolVar(&scanStrict, "strict", false, "exit with status 2 when any diagnostic is reported")
	scanCmd.Flags().BoolVar(&scanNoCache, "no-cache", false, "do not read or write the parse result cache")
	scanCmd.Flags().BoolVar(&scanNoSave, "no-save", false, "do not store the index")
	scanCmd.Flags().BoolVar(&scanFrontMatter, "front-matter", false, "prepend a YAML header to Markdown output")
}

// scanResult is the JSON output of a scan.
type scanResult struct {
	Modules     []*index.Node      `json:"modules"`
	Diagnostics []model.Diagnostic `json:"diagnostics"`
}

func runScan(cmd *cobra.Command, args []string) {
	if code := scanTree(args); code != 0 {
		os.Exit(code)
	}
}

// scanTree runs a scan and returns the process exit status. Interrupt
// handling is released before it returns.
func scanTree(args []string) int {
	switch scanFormat {
	case "md", "html", "json":
	default:
		slog.Error("unknown output format", "format", scanFormat)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	crate := cfg.Scan.CrateName
	if scanCrate != "" {
		crate = scanCrate
	}

	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	root, entries, err := collect(root, crate)
	if err != nil {
		slog.Error("failed to discover sources", "error", err)
		return 1
	}

	sources, err := docs.LoadSources(root, entries, cfg.Scan.MaxFileSize)
	if err != nil {
		slog.Error("failed to read sources", "error", err)
		return 1
	}

	opts := docs.Options{
		GapLimit:    cfg.Scan.GapLimit,
		BriefPolicy: cfg.Tags.BriefPolicy,
		Concurrency: cfg.Scan.Concurrency,
	}
	if cfg.Cache.Enabled && !scanNoCache {
		opts.Cache = cas.New(config.CASDir())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ix, diags, err := docs.Build(ctx, sources, opts)
	if err != nil {
		slog.Error("scan interrupted", "error", err)
		return 1
	}

	for _, d := range diags {
		fmt.Fprintln(os.Stderr, d)
	}

	if !scanNoSave {
		database, err := openDB()
		if err != nil {
			slog.Error("failed to open index", "error", err)
			return 1
		}
		err = database.SaveIndex(root, len(sources), ix, diags)
		database.Close()
		if err != nil {
			slog.Error("failed to store index", "error", err)
			return 1
		}
	}

	out, err := renderScan(ix, diags, crate)
	if err != nil {
		slog.Error("failed to render output", "error", err)
		return 1
	}
	if scanOutput != "" {
		if err := os.WriteFile(scanOutput, out, 0o644); err != nil {
			slog.Error("failed to write output", "error", err)
			return 1
		}
	} else {
		os.Stdout.Write(out)
	}

	if scanStrict && len(diags) > 0 {
		return 2
	}
	return 0
}

// collect resolves root to a directory and the Rust files to scan in it. A
// file root is scanned alone as the crate root module.
func collect(root, crate string) (string, []discover.FileEntry, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", nil, err
	}
	if !info.IsDir() {
		entry := discover.FileEntry{Path: filepath.Base(abs), Module: crate, Size: info.Size()}
		return filepath.Dir(abs), []discover.FileEntry{entry}, nil
	}
	entries, err := discover.Files(abs, crate)
	if err != nil {
		return "", nil, err
	}
	return abs, entries, nil
}

func renderScan(ix *index.Index, diags []model.Diagnostic, crate string) ([]byte, error) {
	switch scanFormat {
	case "json":
		out, err := json.MarshalIndent(scanResult{Modules: ix.Roots(), Diagnostics: diags}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding index: %w", err)
		}
		return append(out, '\n'), nil
	case "html":
		return markdown.ToHTML(markdown.Render(ix, markdown.Options{Title: crate})), nil
	default:
		return []byte(markdown.Render(ix, markdown.Options{FrontMatter: scanFrontMatter, Title: crate})), nil
	}
}
