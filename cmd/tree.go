package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/ferrisdoc/internal/model"
)

var treeCmd = &cobra.Command{
	Use:   "tree [module]",
	Short: "List the stored symbols under a module",
	Example: `  ferrisdoc tree
  ferrisdoc tree crate::util
  ferrisdoc tree --undocumented crate`,
	Args: cobra.MaximumNArgs(1),
	Run:  runTree,
}

var treeUndocumented bool

func init() {
	treeCmd.Flags().BoolVar(&treeUndocumented, "undocumented", false, "only list symbols without documentation")
}

func runTree(cmd *cobra.Command, args []string) {
	module := ""
	if len(args) > 0 {
		module = args[0]
	}

	database := mustOpenDB()
	defer database.Close()

	recs, err := database.Children(module)
	if err != nil {
		slog.Error("listing failed", "error", err)
		os.Exit(1)
	}

	base := len(model.SplitPath(module))
	for _, r := range recs {
		if treeUndocumented && r.Documented() {
			continue
		}
		depth := len(model.SplitPath(r.Module)) - base
		fmt.Printf("%s%-8s %s", strings.Repeat("  ", max(depth, 0)), r.Declaration.Kind, r.Path())
		if r.Summary != "" {
			fmt.Printf(" - %s", firstLine(r.Summary))
		}
		fmt.Println()
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
