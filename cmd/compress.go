package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/ferrisdoc/internal/compress"
)

var compressCmd = &cobra.Command{
	Use:   "compress <file>...",
	Short: "Print Rust sources with comments and redundant whitespace removed",
	Long: `Strip comments, blank lines and redundant spacing from each file while keeping
string and char literals byte for byte. Each file is printed as a fenced block
headed by its path and the source lines it spans. "-" reads standard input.`,
	Example: `  ferrisdoc compress src/lib.rs src/util.rs
  ferrisdoc compress --line-numbers --keep-docs src/lib.rs`,
	Args: cobra.MinimumNArgs(1),
	Run:  runCompress,
}

var (
	compressLineNumbers bool
	compressKeepDocs    bool
)

func init() {
	compressCmd.Flags().BoolVar(&compressLineNumbers, "line-numbers", false, "prefix each line with its source line number")
	compressCmd.Flags().BoolVar(&compressKeepDocs, "keep-docs", false, "keep documentation comments")
}

func runCompress(cmd *cobra.Command, args []string) {
	opts := compress.Options{LineNumbers: compressLineNumbers, KeepDocs: compressKeepDocs}
	out, ok := compressFiles(args, os.Stdin, opts)
	if !ok {
		slog.Error("no file could be compressed")
		os.Exit(1)
	}
	fmt.Println(out)
}

// compressFiles compresses each path, skipping the ones that cannot be read
// or scanned. It reports whether any file was compressed.
func compressFiles(paths []string, stdin io.Reader, opts compress.Options) (string, bool) {
	var parts []string
	for _, path := range paths {
		var data []byte
		var err error
		if path == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			slog.Warn("skipping file", "file", path, "error", err)
			continue
		}
		block, err := compress.File(path, string(data), opts)
		if err != nil {
			slog.Warn("skipping file", "file", path, "error", err)
			continue
		}
		parts = append(parts, block)
	}
	return strings.Join(parts, "\n\n"), len(parts) > 0
}
