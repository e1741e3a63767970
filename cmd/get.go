package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/ferrisdoc/internal/markdown"
)

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Print the stored documentation of a symbol or module",
	Example: `  ferrisdoc get crate::Parser
  ferrisdoc get crate::Parser::new
  ferrisdoc get crate::util
  ferrisdoc get --section fields crate::Parser`,
	Args: cobra.ExactArgs(1),
	Run:  runGet,
}

var getSection string

func init() {
	getCmd.Flags().StringVar(&getSection, "section", "", "only print one section (fields, variants, implementations, ...)")
}

func runGet(cmd *cobra.Command, args []string) {
	path := args[0]

	database := mustOpenDB()
	defer database.Close()

	recs, err := database.Lookup(path)
	if err != nil {
		slog.Error("lookup failed", "error", err)
		os.Exit(1)
	}
	members, err := database.Children(path)
	if err != nil {
		slog.Error("lookup failed", "error", err)
		os.Exit(1)
	}
	doc, err := database.ModuleDoc(path)
	if err != nil {
		slog.Error("lookup failed", "error", err)
		os.Exit(1)
	}
	if len(recs) == 0 && doc == nil {
		fmt.Fprintf(os.Stderr, "%s: not found\n", path)
		os.Exit(1)
	}

	out := markdown.Document(path, doc, recs, members)
	if getSection != "" {
		sec, ok := markdown.Section(out, getSection)
		if !ok {
			fmt.Fprintf(os.Stderr, "%s: no %s section\n", path, getSection)
			os.Exit(1)
		}
		out = sec + "\n"
	}
	fmt.Print(out)
}
