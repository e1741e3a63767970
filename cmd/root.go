package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/ferrisdoc/internal/config"
	"github.com/jcdickinson/ferrisdoc/internal/db"
)

// Version is reported by the MCP server.
var Version = "0.1.0"

var debug bool

var rootCmd = &cobra.Command{
	Use:   "ferrisdoc",
	Short: "Extract and query documentation from Rust source trees",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose log output on stderr")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(clearCacheCmd)
}

// openDB opens the persisted index.
func openDB() (*db.DB, error) {
	database, err := db.New(config.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return database, nil
}

// mustOpenDB opens the persisted index or exits.
func mustOpenDB() *db.DB {
	database, err := openDB()
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	return database
}
