// ABOUTME: MCP server command for snapfeed CLI
// ABOUTME: Starts stdio-based MCP server for AI agent integration

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/snapfeed/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for AI agents",
	Long: `Start the Model Context Protocol (MCP) server on stdio.

This allows AI agents like Claude to page through the image collection,
upload images and export them to the gallery through structured tools.

The server keeps one feed session for its lifetime and communicates via
JSON-RPC on stdin/stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd.Context())
		if err != nil {
			return err
		}

		server := mcp.NewServer(mcp.Options{
			Version:   Version,
			Feed:      sess.feed,
			Uploader:  sess.uploader,
			Exporter:  sess.exporter,
			ExportDir: cfg.GetExportDir(),
			Source:    sess.source,
			Timeout:   cfg.GetTimeout(),
			Logger:    logger,
		})

		// Start serving on stdio
		if err := server.ServeStdio(); err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
