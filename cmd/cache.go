package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/ferrisdoc/internal/cas"
	"github.com/jcdickinson/ferrisdoc/internal/config"
)

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Remove the parse result cache",
	Run:   runClearCache,
}

func runClearCache(cmd *cobra.Command, args []string) {
	store := cas.New(config.CASDir())
	if err := store.Clear(); err != nil {
		slog.Error("failed to clear cache", "error", err)
		os.Exit(1)
	}
	fmt.Printf("cache cleared: %s\n", store.Dir())
}
