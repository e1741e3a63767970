package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/ferrisdoc/internal/model"
	"github.com/jcdickinson/ferrisdoc/internal/scan"
)

var findCmd = &cobra.Command{
	Use:   "find <kinds> [pattern]",
	Short: "Find stored declarations by kind and name pattern",
	Long: `List the stored declarations whose kind is one of kinds (separated by "," or
"|", "all" for every kind) and whose name matches the regular expression
pattern. With --source the declarations are extracted from the scanned tree.`,
	Example: `  ferrisdoc find fn '^new'
  ferrisdoc find 'struct|enum' Error
  ferrisdoc find --source --line-numbers trait .`,
	Args: cobra.RangeArgs(1, 2),
	Run:  runFind,
}

var (
	findLimit       int
	findSource      bool
	findLineNumbers bool
)

func init() {
	findCmd.Flags().IntVar(&findLimit, "limit", 0, "max results, 0 for all")
	findCmd.Flags().BoolVar(&findSource, "source", false, "print the source text of each declaration")
	findCmd.Flags().BoolVar(&findLineNumbers, "line-numbers", false, "prefix source lines with their line number")
}

func runFind(cmd *cobra.Command, args []string) {
	var kinds []model.DeclKind
	if args[0] != "all" {
		var err error
		if kinds, err = model.ParseKinds(args[0]); err != nil {
			slog.Error("invalid kinds", "error", err)
			os.Exit(1)
		}
	}
	pattern := ""
	if len(args) > 1 {
		pattern = args[1]
		if _, err := regexp.Compile(pattern); err != nil {
			slog.Error("invalid pattern", "error", err)
			os.Exit(1)
		}
	}

	database := mustOpenDB()
	defer database.Close()

	recs, err := database.Find(kinds, pattern, findLimit)
	if err != nil {
		slog.Error("find failed", "error", err)
		os.Exit(1)
	}
	if len(recs) == 0 {
		fmt.Println("no results")
		return
	}

	var source func(string) (string, error)
	if findSource {
		last, err := database.LastScan()
		if err != nil || last == nil {
			slog.Error("no stored scan to read sources from", "error", err)
			os.Exit(1)
		}
		source = func(file string) (string, error) {
			data, err := os.ReadFile(filepath.Join(last.Root, file))
			return string(data), err
		}
	}
	renderConstructs(os.Stdout, recs, source, findLineNumbers)
}

// renderConstructs writes recs grouped by file, one heading per declaration.
// When source is set each declaration is followed by its source text.
func renderConstructs(w io.Writer, recs []model.SymbolRecord, source func(file string) (string, error), lineNumbers bool) {
	var files []string
	byFile := make(map[string][]model.SymbolRecord)
	for _, r := range recs {
		if _, ok := byFile[r.File]; !ok {
			files = append(files, r.File)
		}
		byFile[r.File] = append(byFile[r.File], r)
	}

	for i, file := range files {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "@@@ %s | rust\n", file)

		var src string
		var lines *scan.Lines
		if source != nil {
			var err error
			if src, err = source(file); err != nil {
				slog.Warn("cannot read source", "file", file, "error", err)
			} else {
				lines = scan.NewLines(src)
			}
		}

		for _, r := range byFile[file] {
			d := r.Declaration
			fmt.Fprintf(w, "\n### %s: `%s`\n", d.Kind, r.Path())
			if d.Signature != "" {
				fmt.Fprintf(w, "- Signature: `%s`\n", d.Signature)
			}
			if lines == nil || d.AttrStart > d.End || d.End > len(src) {
				fmt.Fprintf(w, "- Line: %d\n", d.Line)
				continue
			}
			first := lines.Line(d.AttrStart)
			fmt.Fprintf(w, "- Lines: %d-%d\n", first, lines.Line(max(d.End-1, d.AttrStart)))
			fmt.Fprintln(w, "```rust")
			for j, line := range strings.Split(src[d.AttrStart:d.End], "\n") {
				if lineNumbers {
					fmt.Fprintf(w, "%d: ", first+j)
				}
				fmt.Fprintln(w, strings.TrimRight(line, " \t\r"))
			}
			fmt.Fprintln(w, "```")
		}
	}
}
