package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/ferrisdoc/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the stored index as an MCP server on stdio",
	Run:   runMCP,
}

func runMCP(cmd *cobra.Command, args []string) {
	database := mustOpenDB()
	defer database.Close()

	if scan, err := database.LastScan(); err == nil && scan == nil {
		slog.Warn("index is empty, run ferrisdoc scan first")
	}

	if err := mcp.NewServer(database, Version).Run(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
