package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search stored symbol names and documentation",
	Example: `  ferrisdoc search parser
  ferrisdoc search --limit 5 "unsafe"`,
	Args: cobra.ExactArgs(1),
	Run:  runSearch,
}

var searchLimit int

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "max results")
}

func runSearch(cmd *cobra.Command, args []string) {
	database := mustOpenDB()
	defer database.Close()

	recs, err := database.Search(args[0], searchLimit)
	if err != nil {
		slog.Error("search failed", "error", err)
		os.Exit(1)
	}

	if len(recs) == 0 {
		fmt.Println("no results")
		return
	}

	for i, r := range recs {
		fmt.Printf("%d. %s (%s) %s:%d\n", i+1, r.Path(), r.Declaration.Kind, r.File, r.Declaration.Line)
		if r.Summary != "" {
			fmt.Printf("   %s\n", firstLine(r.Summary))
		}
	}
}
